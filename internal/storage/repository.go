package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"huishoudboekje/internal/categorize"
	"huishoudboekje/internal/core"
	applog "huishoudboekje/internal/log"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup by id matches no row.
var ErrNotFound = errors.New("not found")

// SQLiteRepository is the single persistence layer: transactions, taxonomy
// and the AI suggestion cache all live in one SQLite file. It implements
// categorize.TransactionFinder and categorize.SuggestionCache.
type SQLiteRepository struct {
	db           *sql.DB
	cacheTTLDays int
	logger       *applog.Logger
}

func NewSQLiteRepository(dbPath string, cacheTTLDays int) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if cacheTTLDays <= 0 {
		cacheTTLDays = 30
	}

	return &SQLiteRepository{
		db:           db,
		cacheTTLDays: cacheTTLDays,
		logger:       applog.New(applog.Config{Component: applog.ComponentStorage}),
	}, nil
}

// Ping reports whether the database is reachable, for readiness checks.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SeedTaxonomy inserts the fixed categories and subcategories, skipping rows
// that already exist. Safe to run at every startup.
func (r *SQLiteRepository) SeedTaxonomy(ctx context.Context, taxonomy core.Taxonomy) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin taxonomy seed: %w", err)
	}
	defer tx.Rollback()

	for i, c := range taxonomy.Categories() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO categories (key, name, sort_order) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET name = excluded.name, sort_order = excluded.sort_order`,
			c.Key, c.Name, i); err != nil {
			return fmt.Errorf("seed category %s: %w", c.Key, err)
		}

		var categoryID int64
		if err := tx.QueryRowContext(ctx,
			`SELECT id FROM categories WHERE key = ?`, c.Key).Scan(&categoryID); err != nil {
			return fmt.Errorf("lookup seeded category %s: %w", c.Key, err)
		}

		for j, sub := range c.Subcategories {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO subcategories (category_id, name, sort_order) VALUES (?, ?, ?)
				 ON CONFLICT(category_id, name) DO UPDATE SET sort_order = excluded.sort_order`,
				categoryID, sub, j); err != nil {
				return fmt.Errorf("seed subcategory %s/%s: %w", c.Key, sub, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit taxonomy seed: %w", err)
	}
	return nil
}

const transactionColumns = `
	t.id, t.date, t.description, t.counterparty, t.counterparty_normalized,
	t.amount, t.account_id, t.category_id, t.subcategory_id,
	COALESCE(c.key, ''), COALESCE(c.name, ''), COALESCE(s.name, ''),
	t.user_context, t.created_at, t.updated_at`

const transactionJoins = `
	FROM transactions t
	LEFT JOIN categories c ON c.id = t.category_id
	LEFT JOIN subcategories s ON s.id = t.subcategory_id`

func scanTransaction(row interface{ Scan(...any) error }) (core.Transaction, error) {
	var t core.Transaction
	var accountID, categoryID, subcategoryID sql.NullInt64
	var userContext sql.NullString

	err := row.Scan(
		&t.ID, &t.Date, &t.Description, &t.Counterparty, &t.CounterpartyNormalized,
		&t.Amount, &accountID, &categoryID, &subcategoryID,
		&t.CategoryKey, &t.CategoryName, &t.SubcategoryName,
		&userContext, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return core.Transaction{}, err
	}

	if accountID.Valid {
		t.AccountID = &accountID.Int64
	}
	if categoryID.Valid {
		t.CategoryID = &categoryID.Int64
	}
	if subcategoryID.Valid {
		t.SubcategoryID = &subcategoryID.Int64
	}
	if userContext.Valid {
		t.UserContext = &userContext.String
	}
	return t, nil
}

func (r *SQLiteRepository) collectTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	defer rows.Close()
	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListAllTransactions returns every transaction, oldest first. The insight
// and overview computations want the full history.
func (r *SQLiteRepository) ListAllTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT`+transactionColumns+transactionJoins+` ORDER BY t.date, t.id`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return r.collectTransactions(rows)
}

// ListTransactionsByMonth returns the transactions whose date falls in the
// given YYYY-MM month, oldest first.
func (r *SQLiteRepository) ListTransactionsByMonth(ctx context.Context, month string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT`+transactionColumns+transactionJoins+` WHERE substr(t.date, 1, 7) = ? ORDER BY t.date, t.id`, month)
	if err != nil {
		return nil, fmt.Errorf("list transactions for month %s: %w", month, err)
	}
	return r.collectTransactions(rows)
}

// ListUncategorizedByMonth returns the month's transactions that still lack a
// category assignment.
func (r *SQLiteRepository) ListUncategorizedByMonth(ctx context.Context, month string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT`+transactionColumns+transactionJoins+`
		 WHERE substr(t.date, 1, 7) = ? AND t.category_id IS NULL
		 ORDER BY t.date, t.id`, month)
	if err != nil {
		return nil, fmt.Errorf("list uncategorized for month %s: %w", month, err)
	}
	return r.collectTransactions(rows)
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT`+transactionColumns+transactionJoins+` WHERE t.id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return t, nil
}

// CreateTransaction inserts a transaction and returns its id. The normalized
// counterparty is derived here so callers cannot store an inconsistent value.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	normalized := core.NormalizeCounterparty(t.Counterparty)

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions
		 (date, description, counterparty, counterparty_normalized, amount,
		  account_id, category_id, subcategory_id, user_context)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Date, t.Description, t.Counterparty, normalized, t.Amount,
		nullableInt64(t.AccountID), nullableInt64(t.CategoryID), nullableInt64(t.SubcategoryID),
		nullableString(t.UserContext))
	if err != nil {
		return 0, fmt.Errorf("create transaction: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("transaction insert id: %w", err)
	}
	return id, nil
}

// DeleteTransactionsByMonth removes every transaction in the month and
// returns the number of deleted rows. Used when re-importing a corrected
// export.
func (r *SQLiteRepository) DeleteTransactionsByMonth(ctx context.Context, month string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE substr(date, 1, 7) = ?`, month)
	if err != nil {
		return 0, fmt.Errorf("delete transactions for %s: %w", month, err)
	}
	return res.RowsAffected()
}

// UpdateTransactionCategory assigns both category and subcategory in one
// statement. Passing nil for both clears the assignment.
func (r *SQLiteRepository) UpdateTransactionCategory(ctx context.Context, id int64, categoryID, subcategoryID *int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions
		 SET category_id = ?, subcategory_id = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		nullableInt64(categoryID), nullableInt64(subcategoryID), id)
	if err != nil {
		return fmt.Errorf("update transaction %d category: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transaction %d category: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}
	return nil
}

// UpdateTransactionContext stores a free-form user note that the AI prompt
// includes on later suggestions.
func (r *SQLiteRepository) UpdateTransactionContext(ctx context.Context, id int64, userContext string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET user_context = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		userContext, id)
	if err != nil {
		return fmt.Errorf("update transaction %d context: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transaction %d context: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}
	return nil
}

// FindSimilarCategorized implements categorize.TransactionFinder. Matches are
// ordered best first: exact normalized match, then matches carrying user
// context, then most recently updated. excludeMonth keeps a month's own rows
// out of the result during re-analysis.
func (r *SQLiteRepository) FindSimilarCategorized(ctx context.Context, counterparty string, limit int, excludeMonth string) ([]core.Transaction, error) {
	normalized := core.NormalizeCounterparty(counterparty)
	if normalized == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 1
	}

	query := `SELECT` + transactionColumns + transactionJoins + `
		 WHERE t.category_id IS NOT NULL AND t.subcategory_id IS NOT NULL
		   AND (t.counterparty_normalized = ?
		        OR t.counterparty_normalized LIKE '%' || ? || '%')`
	args := []any{normalized, normalized}

	if excludeMonth != "" {
		query += ` AND substr(t.date, 1, 7) != ?`
		args = append(args, excludeMonth)
	}

	query += `
		 ORDER BY CASE WHEN t.counterparty_normalized = ? THEN 0 ELSE 1 END,
		          CASE WHEN t.user_context IS NOT NULL THEN 0 ELSE 1 END,
		          t.updated_at DESC
		 LIMIT ?`
	args = append(args, normalized, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find similar transactions: %w", err)
	}
	return r.collectTransactions(rows)
}

// Get implements categorize.SuggestionCache. Entries older than the TTL are
// treated as absent; the purge loop removes them later.
func (r *SQLiteRepository) Get(ctx context.Context, counterpartyNormalized string) (*categorize.CacheEntry, error) {
	cutoff := time.Now().AddDate(0, 0, -r.cacheTTLDays)

	var entry categorize.CacheEntry
	var source string
	err := r.db.QueryRowContext(ctx,
		`SELECT category_key, subcategory_name, confidence, reasoning, source
		 FROM ai_suggestions_cache
		 WHERE counterparty_normalized = ? AND updated_at >= ?`,
		counterpartyNormalized, cutoff).Scan(
		&entry.CategoryKey, &entry.SubcategoryName, &entry.Confidence, &entry.Reasoning, &source)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cached suggestion: %w", err)
	}

	entry.Source = core.Source(source)
	return &entry, nil
}

// Upsert implements categorize.SuggestionCache. A repeated counterparty
// replaces the prior entry and refreshes its timestamp.
func (r *SQLiteRepository) Upsert(ctx context.Context, counterpartyNormalized string, entry categorize.CacheEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO ai_suggestions_cache
		 (counterparty_normalized, category_key, subcategory_name, confidence, reasoning, source, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(counterparty_normalized) DO UPDATE SET
		   category_key = excluded.category_key,
		   subcategory_name = excluded.subcategory_name,
		   confidence = excluded.confidence,
		   reasoning = excluded.reasoning,
		   source = excluded.source,
		   updated_at = CURRENT_TIMESTAMP`,
		counterpartyNormalized, entry.CategoryKey, entry.SubcategoryName,
		entry.Confidence, entry.Reasoning, string(entry.Source))
	if err != nil {
		return fmt.Errorf("upsert cached suggestion: %w", err)
	}
	return nil
}

// PurgeSuggestionCache deletes entries older than the TTL and returns how
// many were removed.
func (r *SQLiteRepository) PurgeSuggestionCache(ctx context.Context) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -r.cacheTTLDays)

	res, err := r.db.ExecContext(ctx,
		`DELETE FROM ai_suggestions_cache WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge suggestion cache: %w", err)
	}

	purged, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge suggestion cache: %w", err)
	}
	if purged > 0 {
		r.logger.InfoContext(ctx, "Purged stale cached suggestions", applog.FieldCount, purged)
	}
	return purged, nil
}

// CacheStats reports cache size for the health endpoints.
type CacheStats struct {
	Entries int64      `json:"entries"`
	Oldest  *time.Time `json:"oldest,omitempty"`
}

func (r *SQLiteRepository) GetCacheStats(ctx context.Context) (CacheStats, error) {
	var stats CacheStats
	var oldest sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(updated_at) FROM ai_suggestions_cache`).Scan(&stats.Entries, &oldest)
	if err != nil {
		return CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	if oldest.Valid {
		stats.Oldest = &oldest.Time
	}
	return stats, nil
}

// LookupCategory resolves a category key to its row id and display name.
func (r *SQLiteRepository) LookupCategory(ctx context.Context, key string) (int64, string, error) {
	var id int64
	var name string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name FROM categories WHERE key = ?`, key).Scan(&id, &name)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", fmt.Errorf("category %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return 0, "", fmt.Errorf("lookup category %s: %w", key, err)
	}
	return id, name, nil
}

// LookupSubcategory resolves a subcategory by parent category id and name.
func (r *SQLiteRepository) LookupSubcategory(ctx context.Context, categoryID int64, name string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM subcategories WHERE category_id = ? AND name = ?`, categoryID, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("subcategory %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("lookup subcategory %q: %w", name, err)
	}
	return id, nil
}

// GetOrCreateAccount resolves an account by IBAN, creating it on first sight.
// The CSV importer calls this once per distinct account in the file.
func (r *SQLiteRepository) GetOrCreateAccount(ctx context.Context, name, iban string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `SELECT id FROM accounts WHERE iban = ?`, iban).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("lookup account %s: %w", iban, err)
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (name, iban) VALUES (?, ?)`, name, iban)
	if err != nil {
		return 0, fmt.Errorf("create account %s: %w", iban, err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("account insert id: %w", err)
	}
	return id, nil
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
