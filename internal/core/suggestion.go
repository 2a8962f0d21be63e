package core

// Source tags where a categorization suggestion came from. The set is closed:
// the prefilter table, the historical-similarity cache, or the AI model.
type Source string

const (
	SourcePrefilter Source = "prefilter"
	SourceCache     Source = "cache"
	SourceAI        Source = "ai"
)

func (s Source) IsValid() bool {
	switch s {
	case SourcePrefilter, SourceCache, SourceAI:
		return true
	}
	return false
}

// ConfidenceLevel bands a confidence score for presentation. Callers are
// expected to auto-apply only high-confidence suggestions and route the rest
// to manual review.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"   // >= 0.9
	ConfidenceMedium ConfidenceLevel = "medium" // [0.7, 0.9)
	ConfidenceLow    ConfidenceLevel = "low"    // < 0.7
)

// Suggestion is a proposed categorization for a single transaction.
type Suggestion struct {
	CategoryKey     string
	SubcategoryName string
	Confidence      float64 // in [0,1]
	Reasoning       string
	Source          Source
}

func (s Suggestion) Level() ConfidenceLevel {
	switch {
	case s.Confidence >= 0.9:
		return ConfidenceHigh
	case s.Confidence >= 0.7:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// AutoApplicable reports whether the suggestion is confident enough to apply
// without manual review.
func (s Suggestion) AutoApplicable() bool {
	return s.Level() == ConfidenceHigh
}
