// Package ai wraps the Gemini API behind the categorization engine's
// Completer interface.
package ai

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"
)

// Client sends categorization prompts to Gemini. A Client with an empty API
// key is valid but unconfigured; the engine reports that as a distinct error
// instead of calling out.
type Client struct {
	apiKey  string
	model   string
	timeout time.Duration
}

func NewClient(apiKey, model string, timeout time.Duration) *Client {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{apiKey: apiKey, model: model, timeout: timeout}
}

func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Complete sends the prompt and returns the raw model text. The caller is
// responsible for parsing and validating it.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      c.apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return "", fmt.Errorf("create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model %s", c.model)
	}
	return text, nil
}
