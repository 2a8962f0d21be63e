package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"huishoudboekje/internal/amqp"
	"huishoudboekje/internal/categorize"
	"huishoudboekje/internal/core"
)

type fakeStore struct {
	transactions []core.Transaction
	listErr      error
	purges       int64
}

func (f *fakeStore) ListTransactionsByMonth(ctx context.Context, month string) ([]core.Transaction, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.transactions, nil
}

func (f *fakeStore) PurgeSuggestionCache(ctx context.Context) (int64, error) {
	atomic.AddInt64(&f.purges, 1)
	return 3, nil
}

type fakeEngine struct {
	results map[int64]core.Suggestion
}

func (f *fakeEngine) SuggestBulk(ctx context.Context, inputs []categorize.Input, skipCache bool) categorize.BulkResult {
	var result categorize.BulkResult
	for _, in := range inputs {
		s, ok := f.results[in.TransactionID]
		if !ok {
			result.Errors = append(result.Errors, categorize.BulkError{
				TransactionID: in.TransactionID,
				Err:           errors.New("no suggestion"),
			})
			continue
		}
		result.Suggestions = append(result.Suggestions, categorize.BulkItem{TransactionID: in.TransactionID, Suggestion: s})
	}
	return result
}

type fakeApplier struct {
	applied map[int64]string
}

func (f *fakeApplier) UpdateCategory(ctx context.Context, id int64, categoryKey, subcategoryName string) error {
	if f.applied == nil {
		f.applied = make(map[int64]string)
	}
	f.applied[id] = categoryKey + "/" + subcategoryName
	return nil
}

type fakeExporter struct {
	months []string
	rows   int
}

func (f *fakeExporter) ExportMonth(ctx context.Context, month string, transactions []core.Transaction) error {
	f.months = append(f.months, month)
	f.rows += len(transactions)
	return nil
}

func monthTx(id int64, counterparty string) core.Transaction {
	return core.Transaction{ID: id, Date: "2026-03-10", Counterparty: counterparty, Amount: -25}
}

func TestHandleReanalyzeMonth_AppliesOnlyHighConfidence(t *testing.T) {
	store := &fakeStore{transactions: []core.Transaction{
		monthTx(1, "Albert Heijn"),
		monthTx(2, "Onbekende Winkel"),
		monthTx(3, "Shell"),
	}}
	engine := &fakeEngine{results: map[int64]core.Suggestion{
		1: {CategoryKey: "huishoudelijke_uitgaven", SubcategoryName: "Boodschappen", Confidence: 1.0, Source: core.SourcePrefilter},
		2: {CategoryKey: "vrijetijdsuitgaven", SubcategoryName: "Hobbys", Confidence: 0.6, Source: core.SourceAI},
		3: {CategoryKey: "vervoer", SubcategoryName: "Brandstof", Confidence: 0.95, Source: core.SourceCache},
	}}
	applier := &fakeApplier{}
	w := New(store, engine, applier, nil)

	err := w.HandleReanalyzeMonth(context.Background(), amqp.ReanalyzeMonthMessage{Month: "2026-03", SkipCache: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(applier.applied) != 2 {
		t.Fatalf("applied = %d, want 2 (the low-confidence suggestion stays pending)", len(applier.applied))
	}
	if applier.applied[1] != "huishoudelijke_uitgaven/Boodschappen" {
		t.Errorf("transaction 1 applied %s", applier.applied[1])
	}
	if applier.applied[3] != "vervoer/Brandstof" {
		t.Errorf("transaction 3 applied %s", applier.applied[3])
	}
	if _, ok := applier.applied[2]; ok {
		t.Error("low-confidence suggestion must not be auto-applied")
	}
}

func TestHandleReanalyzeMonth_InvalidMonth(t *testing.T) {
	w := New(&fakeStore{}, &fakeEngine{}, &fakeApplier{}, nil)
	err := w.HandleReanalyzeMonth(context.Background(), amqp.ReanalyzeMonthMessage{Month: "maart"})
	if !errors.Is(err, core.ErrInvalidMonthKey) {
		t.Fatalf("error = %v, want ErrInvalidMonthKey", err)
	}
}

func TestHandleExportMonth(t *testing.T) {
	t.Run("exports month transactions", func(t *testing.T) {
		store := &fakeStore{transactions: []core.Transaction{monthTx(1, "Albert Heijn"), monthTx(2, "Shell")}}
		exporter := &fakeExporter{}
		w := New(store, &fakeEngine{}, &fakeApplier{}, exporter)

		if err := w.HandleExportMonth(context.Background(), amqp.ExportMonthMessage{Month: "2026-03"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(exporter.months) != 1 || exporter.months[0] != "2026-03" {
			t.Fatalf("exported months = %v", exporter.months)
		}
		if exporter.rows != 2 {
			t.Fatalf("exported rows = %d, want 2", exporter.rows)
		}
	})

	t.Run("nil exporter skips without error", func(t *testing.T) {
		w := New(&fakeStore{}, &fakeEngine{}, &fakeApplier{}, nil)
		if err := w.HandleExportMonth(context.Background(), amqp.ExportMonthMessage{Month: "2026-03"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestRunPurgeLoop_PurgesOnStartupAndStopsOnCancel(t *testing.T) {
	store := &fakeStore{}
	w := New(store, &fakeEngine{}, &fakeApplier{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.RunPurgeLoop(ctx, time.Hour)
	}()

	// Give the loop a moment to run its startup purge.
	deadline := time.After(time.Second)
	for atomic.LoadInt64(&store.purges) == 0 {
		select {
		case <-deadline:
			t.Fatal("startup purge never ran")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("loop returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("purge loop did not stop on cancel")
	}
}
