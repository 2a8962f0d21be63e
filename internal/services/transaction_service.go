package services

import (
	"context"
	"errors"
	"fmt"

	"huishoudboekje/internal/categorize"
	"huishoudboekje/internal/core"
	applog "huishoudboekje/internal/log"
)

// ErrQueueUnavailable is returned when an operation needs the job queue and
// no AMQP client was configured.
var ErrQueueUnavailable = errors.New("job queue not available")

// Store is the persistence surface the service needs. Implemented by
// storage.SQLiteRepository.
type Store interface {
	ListAllTransactions(ctx context.Context) ([]core.Transaction, error)
	ListTransactionsByMonth(ctx context.Context, month string) ([]core.Transaction, error)
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	UpdateTransactionCategory(ctx context.Context, id int64, categoryID, subcategoryID *int64) error
	UpdateTransactionContext(ctx context.Context, id int64, userContext string) error
	LookupCategory(ctx context.Context, key string) (int64, string, error)
	LookupSubcategory(ctx context.Context, categoryID int64, name string) (int64, error)
}

// JobQueue publishes background jobs. Implemented by amqp.Client.
type JobQueue interface {
	PublishReanalyzeMonth(ctx context.Context, month string, skipCache bool) error
	PublishExportMonth(ctx context.Context, month string) error
}

// Suggester runs the categorization pipeline. Implemented by
// categorize.Engine.
type Suggester interface {
	Suggest(ctx context.Context, in categorize.Input, skipCache bool) (core.Suggestion, error)
	SuggestBulk(ctx context.Context, inputs []categorize.Input, skipCache bool) categorize.BulkResult
}

// TransactionService orchestrates transaction operations across storage, the
// categorization engine and the job queue.
type TransactionService struct {
	store    Store
	engine   Suggester
	queue    JobQueue
	insights InsightsOptions
	logger   *applog.Logger
}

// InsightsOptions carries the tunables for the monthly insight computation.
type InsightsOptions struct {
	TopCategories    int
	OutlierThreshold float64
}

func DefaultInsightsOptions() InsightsOptions {
	return InsightsOptions{TopCategories: 5, OutlierThreshold: 2.0}
}

func NewTransactionService(store Store, engine Suggester, queue JobQueue, insights InsightsOptions) *TransactionService {
	if insights.TopCategories <= 0 {
		insights.TopCategories = core.DefaultTopCategories
	}
	if insights.OutlierThreshold <= 0 {
		insights.OutlierThreshold = core.DefaultOutlierThreshold
	}
	return &TransactionService{
		store:    store,
		engine:   engine,
		queue:    queue,
		insights: insights,
		logger:   applog.New(applog.Config{Component: applog.ComponentApp}),
	}
}

// SuggestForTransaction loads a transaction and runs the pipeline on it.
func (s *TransactionService) SuggestForTransaction(ctx context.Context, id int64, skipCache bool) (core.Suggestion, error) {
	t, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return core.Suggestion{}, err
	}
	return s.engine.Suggest(ctx, suggestInput(t, ""), skipCache)
}

// SuggestForTransactions runs the pipeline over several transactions; one
// failure never suppresses the others.
func (s *TransactionService) SuggestForTransactions(ctx context.Context, ids []int64, skipCache bool) (categorize.BulkResult, error) {
	inputs := make([]categorize.Input, 0, len(ids))
	var result categorize.BulkResult
	for _, id := range ids {
		t, err := s.store.GetTransaction(ctx, id)
		if err != nil {
			result.Errors = append(result.Errors, categorize.BulkError{TransactionID: id, Err: err})
			continue
		}
		inputs = append(inputs, suggestInput(t, ""))
	}

	run := s.engine.SuggestBulk(ctx, inputs, skipCache)
	result.Suggestions = run.Suggestions
	result.Errors = append(result.Errors, run.Errors...)
	return result, nil
}

func suggestInput(t core.Transaction, excludeMonth string) categorize.Input {
	in := categorize.Input{
		TransactionID: t.ID,
		Counterparty:  t.Counterparty,
		Amount:        t.Amount,
		Description:   t.Description,
		ExcludeMonth:  excludeMonth,
	}
	if t.UserContext != nil {
		in.UserContext = *t.UserContext
	}
	return in
}

// UpdateCategory assigns a category and subcategory to a transaction,
// validating both against the stored taxonomy. Category and subcategory are
// always set together.
func (s *TransactionService) UpdateCategory(ctx context.Context, id int64, categoryKey, subcategoryName string) error {
	categoryID, _, err := s.store.LookupCategory(ctx, categoryKey)
	if err != nil {
		return fmt.Errorf("%w: %s", core.ErrUnknownCategory, categoryKey)
	}
	subcategoryID, err := s.store.LookupSubcategory(ctx, categoryID, subcategoryName)
	if err != nil {
		return fmt.Errorf("%w: %s", core.ErrUnknownSubcategory, subcategoryName)
	}

	if err := s.store.UpdateTransactionCategory(ctx, id, &categoryID, &subcategoryID); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Transaction categorized",
		applog.FieldTransactionID, id,
		applog.FieldCategory, categoryKey,
		applog.FieldSubcategory, subcategoryName)
	return nil
}

// CategoryAssignment names one transaction's target category.
type CategoryAssignment struct {
	TransactionID   int64  `json:"transaction_id"`
	CategoryKey     string `json:"category"`
	SubcategoryName string `json:"subcategory"`
}

// BulkAssignmentError records one failed assignment.
type BulkAssignmentError struct {
	TransactionID int64  `json:"transaction_id"`
	Error         string `json:"error"`
}

// BulkUpdateResult reports how a bulk assignment went, item by item.
type BulkUpdateResult struct {
	Updated int                   `json:"updated"`
	Errors  []BulkAssignmentError `json:"errors,omitempty"`
}

// BulkUpdateCategory applies each assignment independently; a failed item is
// reported and the rest still go through.
func (s *TransactionService) BulkUpdateCategory(ctx context.Context, assignments []CategoryAssignment) BulkUpdateResult {
	var result BulkUpdateResult
	for _, a := range assignments {
		if err := s.UpdateCategory(ctx, a.TransactionID, a.CategoryKey, a.SubcategoryName); err != nil {
			result.Errors = append(result.Errors, BulkAssignmentError{
				TransactionID: a.TransactionID,
				Error:         err.Error(),
			})
			continue
		}
		result.Updated++
	}
	return result
}

// SetUserContext stores a user note on a transaction for later AI prompts.
func (s *TransactionService) SetUserContext(ctx context.Context, id int64, userContext string) error {
	return s.store.UpdateTransactionContext(ctx, id, userContext)
}

// RequestReanalyze enqueues a month re-analysis job for the worker.
func (s *TransactionService) RequestReanalyze(ctx context.Context, month string, skipCache bool) error {
	if err := core.ValidateMonthKey(month); err != nil {
		return err
	}
	if s.queue == nil {
		return ErrQueueUnavailable
	}
	return s.queue.PublishReanalyzeMonth(ctx, month, skipCache)
}

// RequestExport enqueues a sheet export job for the worker.
func (s *TransactionService) RequestExport(ctx context.Context, month string) error {
	if err := core.ValidateMonthKey(month); err != nil {
		return err
	}
	if s.queue == nil {
		return ErrQueueUnavailable
	}
	return s.queue.PublishExportMonth(ctx, month)
}

// InsightsForMonth computes the monthly insight report over the full
// transaction history. Zero values in opts fall back to the configured
// defaults.
func (s *TransactionService) InsightsForMonth(ctx context.Context, month string, opts InsightsOptions) (core.Insights, error) {
	if err := core.ValidateMonthKey(month); err != nil {
		return core.Insights{}, err
	}
	if opts.TopCategories <= 0 {
		opts.TopCategories = s.insights.TopCategories
	}
	if opts.OutlierThreshold <= 0 {
		opts.OutlierThreshold = s.insights.OutlierThreshold
	}
	transactions, err := s.store.ListAllTransactions(ctx)
	if err != nil {
		return core.Insights{}, err
	}
	return core.ComputeInsights(transactions, month, opts.TopCategories, opts.OutlierThreshold), nil
}

// Overview computes the all-time aggregation across every category.
func (s *TransactionService) Overview(ctx context.Context) (core.Overview, error) {
	transactions, err := s.store.ListAllTransactions(ctx)
	if err != nil {
		return core.Overview{}, err
	}
	return core.ComputeOverview(transactions), nil
}

// TransactionsForMonth lists a month's transactions for the API and export.
func (s *TransactionService) TransactionsForMonth(ctx context.Context, month string) ([]core.Transaction, error) {
	if err := core.ValidateMonthKey(month); err != nil {
		return nil, err
	}
	return s.store.ListTransactionsByMonth(ctx, month)
}
