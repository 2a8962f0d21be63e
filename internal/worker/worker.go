// Package worker processes background jobs: month re-analysis, sheet export
// and suggestion cache maintenance.
package worker

import (
	"context"
	"fmt"
	"time"

	"huishoudboekje/internal/amqp"
	"huishoudboekje/internal/categorize"
	"huishoudboekje/internal/core"
	applog "huishoudboekje/internal/log"
)

// Store is the persistence surface the worker needs.
type Store interface {
	ListTransactionsByMonth(ctx context.Context, month string) ([]core.Transaction, error)
	PurgeSuggestionCache(ctx context.Context) (int64, error)
}

// Categorizer runs the categorization pipeline over a batch.
type Categorizer interface {
	SuggestBulk(ctx context.Context, inputs []categorize.Input, skipCache bool) categorize.BulkResult
}

// CategoryApplier persists a category assignment. Implemented by
// services.TransactionService.
type CategoryApplier interface {
	UpdateCategory(ctx context.Context, id int64, categoryKey, subcategoryName string) error
}

// Exporter pushes a month's transactions to an external sheet.
type Exporter interface {
	ExportMonth(ctx context.Context, month string, transactions []core.Transaction) error
}

// Worker handles queued jobs. A nil exporter disables export jobs without
// failing them into endless redelivery.
type Worker struct {
	store    Store
	engine   Categorizer
	applier  CategoryApplier
	exporter Exporter
	logger   *applog.Logger
}

func New(store Store, engine Categorizer, applier CategoryApplier, exporter Exporter) *Worker {
	return &Worker{
		store:    store,
		engine:   engine,
		applier:  applier,
		exporter: exporter,
		logger:   applog.New(applog.Config{Component: applog.ComponentWorker}),
	}
}

// HandleReanalyzeMonth re-runs the pipeline over every transaction in the
// month. Only high-confidence suggestions are applied automatically; the
// rest stay as they are for manual review. The month itself is excluded from
// the similarity search so current categorizations cannot echo back.
func (w *Worker) HandleReanalyzeMonth(ctx context.Context, msg amqp.ReanalyzeMonthMessage) error {
	if err := core.ValidateMonthKey(msg.Month); err != nil {
		return err
	}

	transactions, err := w.store.ListTransactionsByMonth(ctx, msg.Month)
	if err != nil {
		return fmt.Errorf("list transactions for reanalysis: %w", err)
	}
	if len(transactions) == 0 {
		w.logger.InfoContext(ctx, "No transactions to reanalyze", applog.FieldMonth, msg.Month)
		return nil
	}

	inputs := make([]categorize.Input, 0, len(transactions))
	for _, t := range transactions {
		in := categorize.Input{
			TransactionID: t.ID,
			Counterparty:  t.Counterparty,
			Amount:        t.Amount,
			Description:   t.Description,
			ExcludeMonth:  msg.Month,
		}
		if t.UserContext != nil {
			in.UserContext = *t.UserContext
		}
		inputs = append(inputs, in)
	}

	result := w.engine.SuggestBulk(ctx, inputs, msg.SkipCache)

	applied := 0
	skipped := 0
	for _, item := range result.Suggestions {
		if !item.Suggestion.AutoApplicable() {
			skipped++
			continue
		}
		if err := w.applier.UpdateCategory(ctx, item.TransactionID, item.Suggestion.CategoryKey, item.Suggestion.SubcategoryName); err != nil {
			w.logger.ErrorContext(ctx, "Failed to apply suggestion",
				applog.FieldTransactionID, item.TransactionID,
				applog.FieldCategory, item.Suggestion.CategoryKey,
				applog.FieldError, err)
			continue
		}
		applied++
	}

	w.logger.InfoContext(ctx, "Month reanalysis completed",
		applog.FieldMonth, msg.Month,
		"transactions", len(transactions),
		"applied", applied,
		"below_threshold", skipped,
		"failed", len(result.Errors))
	return nil
}

// HandleExportMonth pushes the month's transactions to the configured sheet.
func (w *Worker) HandleExportMonth(ctx context.Context, msg amqp.ExportMonthMessage) error {
	if err := core.ValidateMonthKey(msg.Month); err != nil {
		return err
	}
	if w.exporter == nil {
		w.logger.WarnContext(ctx, "No exporter configured, skipping export job", applog.FieldMonth, msg.Month)
		return nil
	}

	transactions, err := w.store.ListTransactionsByMonth(ctx, msg.Month)
	if err != nil {
		return fmt.Errorf("list transactions for export: %w", err)
	}
	return w.exporter.ExportMonth(ctx, msg.Month, transactions)
}

// RunPurgeLoop deletes stale cached suggestions on a fixed interval until the
// context is cancelled. It purges once immediately at startup.
func (w *Worker) RunPurgeLoop(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	if _, err := w.store.PurgeSuggestionCache(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup cache purge failed", applog.FieldError, err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.store.PurgeSuggestionCache(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Periodic cache purge failed", applog.FieldError, err)
			}
		}
	}
}
