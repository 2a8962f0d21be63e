package categorize

import (
	"context"
	"errors"
	"fmt"

	"huishoudboekje/internal/core"
	applog "huishoudboekje/internal/log"
)

var (
	// ErrAINotConfigured is returned when the AI stage is reached without an
	// API key. Callers surface this as "service not configured", distinct
	// from an upstream failure.
	ErrAINotConfigured = errors.New("AI service not configured")

	// ErrInvalidAIResponse is returned when the model output cannot be
	// parsed, or names a category outside the taxonomy.
	ErrInvalidAIResponse = errors.New("invalid AI response")
)

const cacheReasoning = "Gebaseerd op eerdere categorisatie van vergelijkbare transactie"

// TransactionFinder searches prior categorized transactions for counterparty
// matches, best match first (exact before substring, then user context, then
// most recently updated).
type TransactionFinder interface {
	FindSimilarCategorized(ctx context.Context, counterparty string, limit int, excludeMonth string) ([]core.Transaction, error)
}

// CacheEntry is a persisted suggestion keyed by normalized counterparty.
type CacheEntry struct {
	CategoryKey     string
	SubcategoryName string
	Confidence      float64
	Reasoning       string
	Source          core.Source
}

// SuggestionCache is the persisted suggestion cache. Get must only return
// entries younger than the configured TTL; Upsert replaces an existing entry
// for the same counterparty and refreshes its timestamp.
type SuggestionCache interface {
	Get(ctx context.Context, counterpartyNormalized string) (*CacheEntry, error)
	Upsert(ctx context.Context, counterpartyNormalized string, entry CacheEntry) error
}

// Completer produces a completion for a fully-formed prompt. Implemented by
// the Gemini client; tests plug in fakes.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Configured() bool
}

// Input carries the transaction fields the pipeline looks at.
type Input struct {
	TransactionID int64
	Counterparty  string
	Amount        float64
	Description   string
	UserContext   string
	// ExcludeMonth keeps a month's own categorizations out of the similarity
	// search during re-analysis of that month.
	ExcludeMonth string
}

// Engine resolves a categorization for a transaction through a three-stage
// pipeline: static prefilter, historical-similarity cache, AI fallback.
type Engine struct {
	finder       TransactionFinder
	cache        SuggestionCache
	completer    Completer
	taxonomy     core.Taxonomy
	similarLimit int
	logger       *applog.Logger
}

func NewEngine(finder TransactionFinder, cache SuggestionCache, completer Completer, taxonomy core.Taxonomy, similarLimit int) *Engine {
	if similarLimit <= 0 {
		similarLimit = 5
	}
	return &Engine{
		finder:       finder,
		cache:        cache,
		completer:    completer,
		taxonomy:     taxonomy,
		similarLimit: similarLimit,
		logger:       applog.New(applog.Config{Component: applog.ComponentCategorize}),
	}
}

// Suggest runs the pipeline in strict order, first success wins. skipCache
// bypasses the prefilter and both caches, forcing a fresh AI evaluation;
// bulk re-analysis uses it so historical categorizations cannot leak into
// the rescoring.
func (e *Engine) Suggest(ctx context.Context, in Input, skipCache bool) (core.Suggestion, error) {
	if !skipCache {
		if s := checkPrefilter(in.Counterparty); s != nil {
			return *s, nil
		}
		if s, err := e.checkCaches(ctx, in); err != nil {
			return core.Suggestion{}, err
		} else if s != nil {
			return *s, nil
		}
	}
	return e.suggestWithAI(ctx, in)
}

// BulkItem pairs a transaction id with its suggestion.
type BulkItem struct {
	TransactionID int64
	Suggestion    core.Suggestion
}

// BulkError records a single item's failure without aborting the batch.
type BulkError struct {
	TransactionID int64
	Err           error
}

func (e BulkError) Error() string {
	return fmt.Sprintf("transaction %d: %v", e.TransactionID, e.Err)
}

// BulkResult collects per-item outcomes; Success is true only when no item
// failed. Items appear in input order.
type BulkResult struct {
	Suggestions []BulkItem
	Errors      []BulkError
}

func (r BulkResult) Success() bool { return len(r.Errors) == 0 }

// SuggestBulk applies the single-transaction pipeline to each input in turn.
// One item's failure never suppresses the others.
func (e *Engine) SuggestBulk(ctx context.Context, inputs []Input, skipCache bool) BulkResult {
	var result BulkResult
	for _, in := range inputs {
		s, err := e.Suggest(ctx, in, skipCache)
		if err != nil {
			e.logger.WarnContext(ctx, "Bulk suggestion failed for transaction",
				applog.FieldTransactionID, in.TransactionID, applog.FieldError, err)
			result.Errors = append(result.Errors, BulkError{TransactionID: in.TransactionID, Err: err})
			continue
		}
		result.Suggestions = append(result.Suggestions, BulkItem{TransactionID: in.TransactionID, Suggestion: s})
	}
	return result
}

// checkCaches consults the persisted suggestion cache first, then the closest
// prior categorized transaction. Either hit is reported with the fixed cache
// confidence of 0.95.
func (e *Engine) checkCaches(ctx context.Context, in Input) (*core.Suggestion, error) {
	normalized := core.NormalizeCounterparty(in.Counterparty)
	if e.cache != nil && normalized != "" {
		entry, err := e.cache.Get(ctx, normalized)
		if err != nil {
			return nil, fmt.Errorf("suggestion cache lookup: %w", err)
		}
		if entry != nil {
			return &core.Suggestion{
				CategoryKey:     entry.CategoryKey,
				SubcategoryName: entry.SubcategoryName,
				Confidence:      0.95,
				Reasoning:       cacheReasoning,
				Source:          core.SourceCache,
			}, nil
		}
	}

	similar, err := e.finder.FindSimilarCategorized(ctx, in.Counterparty, 1, in.ExcludeMonth)
	if err != nil {
		return nil, fmt.Errorf("find similar transactions: %w", err)
	}
	if len(similar) > 0 && similar[0].IsCategorized() {
		t := similar[0]
		subcategory := t.SubcategoryName
		if subcategory == "" {
			subcategory = "Onbekend"
		}
		return &core.Suggestion{
			CategoryKey:     t.CategoryKey,
			SubcategoryName: subcategory,
			Confidence:      0.95,
			Reasoning:       cacheReasoning,
			Source:          core.SourceCache,
		}, nil
	}
	return nil, nil
}

func (e *Engine) suggestWithAI(ctx context.Context, in Input) (core.Suggestion, error) {
	if e.completer == nil || !e.completer.Configured() {
		return core.Suggestion{}, ErrAINotConfigured
	}

	similar, err := e.finder.FindSimilarCategorized(ctx, in.Counterparty, e.similarLimit, in.ExcludeMonth)
	if err != nil {
		return core.Suggestion{}, fmt.Errorf("find exemplar transactions: %w", err)
	}

	prompt := buildPrompt(e.taxonomy, in, similar)
	raw, err := e.completer.Complete(ctx, prompt)
	if err != nil {
		return core.Suggestion{}, fmt.Errorf("AI completion: %w", err)
	}

	suggestion, err := parseAIResponse(raw, e.taxonomy)
	if err != nil {
		return core.Suggestion{}, err
	}

	if e.cache != nil {
		normalized := core.NormalizeCounterparty(in.Counterparty)
		if normalized != "" {
			entry := CacheEntry{
				CategoryKey:     suggestion.CategoryKey,
				SubcategoryName: suggestion.SubcategoryName,
				Confidence:      suggestion.Confidence,
				Reasoning:       suggestion.Reasoning,
				Source:          core.SourceAI,
			}
			if err := e.cache.Upsert(ctx, normalized, entry); err != nil {
				// The suggestion itself is good; a failed cache write only
				// costs a future AI call.
				e.logger.WarnContext(ctx, "Failed to cache AI suggestion",
					applog.FieldCounterparty, normalized, applog.FieldError, err)
			}
		}
	}

	return suggestion, nil
}
