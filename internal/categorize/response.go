package categorize

import (
	"encoding/json"
	"fmt"
	"strings"

	"huishoudboekje/internal/core"
)

// aiResponse is the structured shape the model is asked to return.
type aiResponse struct {
	Category    string  `json:"category"`
	Subcategory string  `json:"subcategory"`
	Confidence  float64 `json:"confidence"`
	Reasoning   string  `json:"reasoning"`
}

// parseAIResponse validates the model output against the taxonomy. An unknown
// category is an error; an unknown subcategory under a valid category falls
// back to the category's first subcategory. Missing confidence and reasoning
// get defaults.
func parseAIResponse(raw string, taxonomy core.Taxonomy) (core.Suggestion, error) {
	clean := stripCodeFences(raw)

	var resp aiResponse
	if err := json.Unmarshal([]byte(clean), &resp); err != nil {
		return core.Suggestion{}, fmt.Errorf("%w: unmarshal: %v", ErrInvalidAIResponse, err)
	}

	category, ok := taxonomy.ByKey(resp.Category)
	if !ok {
		return core.Suggestion{}, fmt.Errorf("%w: unknown category %q", ErrInvalidAIResponse, resp.Category)
	}

	subcategory := resp.Subcategory
	if !taxonomy.HasSubcategory(category.Key, subcategory) {
		if len(category.Subcategories) > 0 {
			subcategory = category.Subcategories[0]
		} else {
			subcategory = "Onbekend"
		}
	}

	confidence := resp.Confidence
	if confidence <= 0 || confidence > 1 {
		confidence = 0.8
	}
	reasoning := strings.TrimSpace(resp.Reasoning)
	if reasoning == "" {
		reasoning = "AI categorisatie"
	}

	return core.Suggestion{
		CategoryKey:     category.Key,
		SubcategoryName: subcategory,
		Confidence:      confidence,
		Reasoning:       reasoning,
		Source:          core.SourceAI,
	}, nil
}

// stripCodeFences removes Markdown fences the model may wrap around the JSON
// despite instructions, and trims any junk around the outermost object.
func stripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return strings.TrimSpace(s)
}
