package core

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

var (
	ErrInvalidMonthKey   = errors.New("invalid month key, expected YYYY-MM")
	ErrEmptyCounterparty = errors.New("empty counterparty")
	ErrInvalidDate       = errors.New("invalid date, expected YYYY-MM-DD")
	ErrHalfCategorized   = errors.New("category and subcategory must be set together")
)

// Transaction is a single bank transaction as imported from a CSV export.
// Amount is signed: negative for expenses, positive for income and returns.
type Transaction struct {
	ID                     int64
	Date                   string // YYYY-MM-DD
	Description            string
	Counterparty           string
	CounterpartyNormalized string
	Amount                 float64
	AccountID              *int64
	CategoryID             *int64
	SubcategoryID          *int64
	CategoryKey            string // resolved from CategoryID, empty when uncategorized
	CategoryName           string
	SubcategoryName        string
	UserContext            *string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

func (t Transaction) IsIncome() bool  { return t.Amount > 0 }
func (t Transaction) IsExpense() bool { return t.Amount < 0 }

func (t Transaction) AbsAmount() float64 { return math.Abs(t.Amount) }

// IsCategorized reports whether both category and subcategory are assigned.
// A transaction with only one of the two set is a data error.
func (t Transaction) IsCategorized() bool {
	return t.CategoryID != nil && t.SubcategoryID != nil
}

func (t Transaction) HasUserContext() bool {
	return t.UserContext != nil && strings.TrimSpace(*t.UserContext) != ""
}

// MonthKey returns the YYYY-MM grouping key for this transaction.
// Lexicographic order of month keys equals chronological order.
func (t Transaction) MonthKey() string {
	if len(t.Date) < 7 {
		return ""
	}
	return t.Date[:7]
}

func (t Transaction) Validate() error {
	if _, err := time.Parse("2006-01-02", t.Date); err != nil {
		return ErrInvalidDate
	}
	if strings.TrimSpace(t.Counterparty) == "" {
		return ErrEmptyCounterparty
	}
	if (t.CategoryID == nil) != (t.SubcategoryID == nil) {
		return ErrHalfCategorized
	}
	return nil
}

var monthKeyRe = regexp.MustCompile(`^\d{4}-\d{2}$`)

// ValidateMonthKey checks the YYYY-MM format used everywhere as grouping key.
func ValidateMonthKey(month string) error {
	if !monthKeyRe.MatchString(month) {
		return fmt.Errorf("%w: %q", ErrInvalidMonthKey, month)
	}
	return nil
}

// NormalizeCounterparty lowercases, strips digits and everything that is not
// a letter or space, and collapses runs of whitespace. The result is the
// matching key for the prefilter and the suggestion cache.
func NormalizeCounterparty(counterparty string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(counterparty) {
		if (r >= 'a' && r <= 'z') || r == ' ' {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
