package categorize

import (
	"context"
	"errors"
	"testing"

	"huishoudboekje/internal/core"
)

type fakeFinder struct {
	transactions []core.Transaction
	err          error
	calls        int
	lastExclude  string
}

func (f *fakeFinder) FindSimilarCategorized(ctx context.Context, counterparty string, limit int, excludeMonth string) ([]core.Transaction, error) {
	f.calls++
	f.lastExclude = excludeMonth
	if f.err != nil {
		return nil, f.err
	}
	if len(f.transactions) > limit {
		return f.transactions[:limit], nil
	}
	return f.transactions, nil
}

type fakeCache struct {
	entries map[string]CacheEntry
	getErr  error
	upserts int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]CacheEntry)}
}

func (c *fakeCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	if e, ok := c.entries[key]; ok {
		return &e, nil
	}
	return nil, nil
}

func (c *fakeCache) Upsert(ctx context.Context, key string, entry CacheEntry) error {
	c.upserts++
	c.entries[key] = entry
	return nil
}

type fakeCompleter struct {
	response   string
	err        error
	configured bool
	calls      int
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeCompleter) Configured() bool { return f.configured }

func newTestEngine(finder *fakeFinder, cache *fakeCache, completer *fakeCompleter) *Engine {
	return NewEngine(finder, cache, completer, core.DefaultTaxonomy(), 5)
}

func categorizedTx(counterparty, categoryKey, categoryName, subcategory string) core.Transaction {
	catID, subID := int64(1), int64(2)
	return core.Transaction{
		Counterparty:           counterparty,
		CounterpartyNormalized: core.NormalizeCounterparty(counterparty),
		CategoryID:             &catID,
		SubcategoryID:          &subID,
		CategoryKey:            categoryKey,
		CategoryName:           categoryName,
		SubcategoryName:        subcategory,
	}
}

func TestSuggest_PrefilterWinsWithoutAnyLookup(t *testing.T) {
	finder := &fakeFinder{}
	cache := newFakeCache()
	completer := &fakeCompleter{configured: true}
	engine := newTestEngine(finder, cache, completer)

	s, err := engine.Suggest(context.Background(), Input{Counterparty: "ALBERT HEIJN 1234", Amount: -42.50}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Source != core.SourcePrefilter {
		t.Fatalf("source = %s, want prefilter", s.Source)
	}
	if s.Confidence != 1.0 {
		t.Fatalf("confidence = %v, want 1.0", s.Confidence)
	}
	if finder.calls != 0 || completer.calls != 0 {
		t.Fatalf("prefilter hit should not reach finder (%d calls) or AI (%d calls)", finder.calls, completer.calls)
	}
}

func TestSuggest_CacheHitSkipsAI(t *testing.T) {
	finder := &fakeFinder{}
	cache := newFakeCache()
	cache.entries["onbekende winkel"] = CacheEntry{
		CategoryKey:     "vrijetijdsuitgaven",
		SubcategoryName: "Hobbys",
		Confidence:      0.8,
		Source:          core.SourceAI,
	}
	completer := &fakeCompleter{configured: true}
	engine := newTestEngine(finder, cache, completer)

	s, err := engine.Suggest(context.Background(), Input{Counterparty: "Onbekende Winkel"}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Source != core.SourceCache {
		t.Fatalf("source = %s, want cache", s.Source)
	}
	if s.Confidence != 0.95 {
		t.Fatalf("confidence = %v, want fixed 0.95 regardless of cached value", s.Confidence)
	}
	if s.CategoryKey != "vrijetijdsuitgaven" {
		t.Fatalf("category = %s, want vrijetijdsuitgaven", s.CategoryKey)
	}
	if completer.calls != 0 {
		t.Fatal("cache hit should not invoke AI")
	}
}

func TestSuggest_SimilarTransactionHit(t *testing.T) {
	finder := &fakeFinder{transactions: []core.Transaction{
		categorizedTx("Restaurant Milano", "vrijetijdsuitgaven", "Vrijetijdsuitgaven", "Uitgaan"),
	}}
	cache := newFakeCache()
	completer := &fakeCompleter{configured: true}
	engine := newTestEngine(finder, cache, completer)

	s, err := engine.Suggest(context.Background(), Input{Counterparty: "Restaurant Milano"}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Source != core.SourceCache {
		t.Fatalf("source = %s, want cache", s.Source)
	}
	if s.Confidence != 0.95 {
		t.Fatalf("confidence = %v, want 0.95", s.Confidence)
	}
	if s.SubcategoryName != "Uitgaan" {
		t.Fatalf("subcategory = %s, want Uitgaan", s.SubcategoryName)
	}
	if completer.calls != 0 {
		t.Fatal("similar-transaction hit should not invoke AI")
	}
}

func TestSuggest_SkipCacheForcesAI(t *testing.T) {
	finder := &fakeFinder{}
	cache := newFakeCache()
	cache.entries["albert heijn"] = CacheEntry{CategoryKey: "vrijetijdsuitgaven", SubcategoryName: "Hobbys"}
	completer := &fakeCompleter{
		configured: true,
		response:   `{"category": "huishoudelijke_uitgaven", "subcategory": "Boodschappen", "confidence": 0.85, "reasoning": "Supermarkt"}`,
	}
	engine := newTestEngine(finder, cache, completer)

	s, err := engine.Suggest(context.Background(), Input{Counterparty: "ALBERT HEIJN 1234"}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Source != core.SourceAI {
		t.Fatalf("source = %s, want ai; skipCache must bypass prefilter and caches", s.Source)
	}
	if completer.calls != 1 {
		t.Fatalf("AI calls = %d, want 1", completer.calls)
	}
}

func TestSuggest_AINotConfigured(t *testing.T) {
	engine := newTestEngine(&fakeFinder{}, newFakeCache(), &fakeCompleter{configured: false})

	_, err := engine.Suggest(context.Background(), Input{Counterparty: "Onbekend Bedrijf"}, false)
	if !errors.Is(err, ErrAINotConfigured) {
		t.Fatalf("error = %v, want ErrAINotConfigured", err)
	}
}

func TestSuggest_AIResultIsCached(t *testing.T) {
	cache := newFakeCache()
	completer := &fakeCompleter{
		configured: true,
		response:   `{"category": "vervoer", "subcategory": "Brandstof", "confidence": 0.9, "reasoning": "Tankstation"}`,
	}
	engine := newTestEngine(&fakeFinder{}, cache, completer)

	s, err := engine.Suggest(context.Background(), Input{Counterparty: "Tankstation De Berg"}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Source != core.SourceAI {
		t.Fatalf("source = %s, want ai", s.Source)
	}
	if cache.upserts != 1 {
		t.Fatalf("cache upserts = %d, want 1", cache.upserts)
	}

	// A repeated suggestion for the same counterparty now resolves from the
	// cache at the fixed cache confidence.
	s2, err := engine.Suggest(context.Background(), Input{Counterparty: "Tankstation De Berg"}, false)
	if err != nil {
		t.Fatalf("unexpected error on second call: %v", err)
	}
	if s2.Source != core.SourceCache {
		t.Fatalf("second source = %s, want cache", s2.Source)
	}
	if s2.Confidence != 0.95 {
		t.Fatalf("second confidence = %v, want 0.95", s2.Confidence)
	}
	if completer.calls != 1 {
		t.Fatalf("AI calls = %d, want 1 (second call served from cache)", completer.calls)
	}
}

func TestSuggest_InvalidAICategory(t *testing.T) {
	completer := &fakeCompleter{
		configured: true,
		response:   `{"category": "does_not_exist", "subcategory": "Whatever", "confidence": 0.9}`,
	}
	engine := newTestEngine(&fakeFinder{}, newFakeCache(), completer)

	_, err := engine.Suggest(context.Background(), Input{Counterparty: "Onbekend"}, false)
	if !errors.Is(err, ErrInvalidAIResponse) {
		t.Fatalf("error = %v, want ErrInvalidAIResponse", err)
	}
}

func TestSuggest_ExcludeMonthPropagates(t *testing.T) {
	finder := &fakeFinder{}
	completer := &fakeCompleter{
		configured: true,
		response:   `{"category": "vervoer", "subcategory": "Brandstof", "confidence": 0.9}`,
	}
	engine := newTestEngine(finder, newFakeCache(), completer)

	_, err := engine.Suggest(context.Background(), Input{Counterparty: "Onbekend", ExcludeMonth: "2026-03"}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if finder.lastExclude != "2026-03" {
		t.Fatalf("excludeMonth = %q, want 2026-03", finder.lastExclude)
	}
}

func TestSuggestBulk_PartialFailure(t *testing.T) {
	completer := &fakeCompleter{configured: false}
	engine := newTestEngine(&fakeFinder{}, newFakeCache(), completer)

	inputs := []Input{
		{TransactionID: 1, Counterparty: "ALBERT HEIJN 1234"},
		{TransactionID: 2, Counterparty: "Onbekend Bedrijf"}, // falls through to unconfigured AI
		{TransactionID: 3, Counterparty: "Jumbo Utrecht"},
	}

	result := engine.SuggestBulk(context.Background(), inputs, false)
	if result.Success() {
		t.Fatal("expected a failed item")
	}
	if len(result.Suggestions) != 2 {
		t.Fatalf("suggestions = %d, want 2", len(result.Suggestions))
	}
	if len(result.Errors) != 1 {
		t.Fatalf("errors = %d, want 1", len(result.Errors))
	}
	if result.Errors[0].TransactionID != 2 {
		t.Fatalf("failed transaction = %d, want 2", result.Errors[0].TransactionID)
	}
	if !errors.Is(result.Errors[0].Err, ErrAINotConfigured) {
		t.Fatalf("item error = %v, want ErrAINotConfigured", result.Errors[0].Err)
	}
}

func TestParseAIResponse(t *testing.T) {
	taxonomy := core.DefaultTaxonomy()

	tests := []struct {
		name            string
		raw             string
		wantErr         bool
		wantCategory    string
		wantSubcategory string
		wantConfidence  float64
		wantReasoning   string
	}{
		{
			name:            "plain JSON",
			raw:             `{"category": "vervoer", "subcategory": "Brandstof", "confidence": 0.85, "reasoning": "Tankstation"}`,
			wantCategory:    "vervoer",
			wantSubcategory: "Brandstof",
			wantConfidence:  0.85,
			wantReasoning:   "Tankstation",
		},
		{
			name: "markdown fenced JSON",
			raw: "```json\n" +
				`{"category": "vervoer", "subcategory": "Brandstof", "confidence": 0.85, "reasoning": "Tankstation"}` +
				"\n```",
			wantCategory:    "vervoer",
			wantSubcategory: "Brandstof",
			wantConfidence:  0.85,
			wantReasoning:   "Tankstation",
		},
		{
			name:            "unknown subcategory falls back to first",
			raw:             `{"category": "huishoudelijke_uitgaven", "subcategory": "Niet Bestaand", "confidence": 0.7, "reasoning": "x"}`,
			wantCategory:    "huishoudelijke_uitgaven",
			wantSubcategory: "Boodschappen",
			wantConfidence:  0.7,
			wantReasoning:   "x",
		},
		{
			name:            "missing confidence and reasoning get defaults",
			raw:             `{"category": "vervoer", "subcategory": "Brandstof"}`,
			wantCategory:    "vervoer",
			wantSubcategory: "Brandstof",
			wantConfidence:  0.8,
			wantReasoning:   "AI categorisatie",
		},
		{
			name:    "unknown category",
			raw:     `{"category": "nope", "subcategory": "x"}`,
			wantErr: true,
		},
		{
			name:    "not JSON at all",
			raw:     "ik weet het niet",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := parseAIResponse(tt.raw, taxonomy)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAIResponse) {
					t.Fatalf("error = %v, want ErrInvalidAIResponse", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.CategoryKey != tt.wantCategory {
				t.Errorf("category = %s, want %s", s.CategoryKey, tt.wantCategory)
			}
			if s.SubcategoryName != tt.wantSubcategory {
				t.Errorf("subcategory = %s, want %s", s.SubcategoryName, tt.wantSubcategory)
			}
			if s.Confidence != tt.wantConfidence {
				t.Errorf("confidence = %v, want %v", s.Confidence, tt.wantConfidence)
			}
			if s.Reasoning != tt.wantReasoning {
				t.Errorf("reasoning = %q, want %q", s.Reasoning, tt.wantReasoning)
			}
			if s.Source != core.SourceAI {
				t.Errorf("source = %s, want ai", s.Source)
			}
		})
	}
}
