package core

import (
	"math"
	"testing"
)

func overviewTx(date, category, categoryName, subcategory string, amount float64) Transaction {
	return Transaction{
		Date:            date,
		Amount:          amount,
		CategoryID:      ptrInt64(1),
		SubcategoryID:   ptrInt64(1),
		CategoryKey:     category,
		CategoryName:    categoryName,
		SubcategoryName: subcategory,
	}
}

func TestOverviewCategoryAverages(t *testing.T) {
	// Vervoer appears in two of the three months; its average divides by its
	// own month count, not the global one.
	txs := []Transaction{
		overviewTx("2025-01-05", "vervoer", "Vervoer", "Brandstof", -60),
		overviewTx("2025-02-05", "vervoer", "Vervoer", "Brandstof", -40),
		overviewTx("2025-03-05", "woning", "Woning", "Huur / Hypotheeklasten", -1000),
	}
	ov := ComputeOverview(txs)

	if ov.MonthCount != 3 {
		t.Fatalf("MonthCount = %d, want 3", ov.MonthCount)
	}
	var vervoer *CategoryStats
	for i := range ov.Categories {
		if ov.Categories[i].Category == "vervoer" {
			vervoer = &ov.Categories[i]
		}
	}
	if vervoer == nil {
		t.Fatal("vervoer missing from overview")
	}
	if vervoer.MonthsPresent != 2 {
		t.Fatalf("MonthsPresent = %d, want 2", vervoer.MonthsPresent)
	}
	if vervoer.Average != -50 {
		t.Fatalf("Average = %v, want -50", vervoer.Average)
	}
}

func TestOverviewSubcategoryAveragesSumToCategoryAverage(t *testing.T) {
	// Brandstof appears in one month only, the category in two. Dividing the
	// subcategory by its own month count would break the invariant that
	// subcategory averages sum to the category average.
	txs := []Transaction{
		overviewTx("2025-01-05", "vervoer", "Vervoer", "Brandstof", -80),
		overviewTx("2025-01-20", "vervoer", "Vervoer", "Onderhoud", -200),
		overviewTx("2025-02-05", "vervoer", "Vervoer", "Onderhoud", -120),
	}
	ov := ComputeOverview(txs)

	cat := ov.Categories[0]
	var sum float64
	for _, sub := range cat.Subcategories {
		sum += sub.Average
	}
	if math.Abs(sum-cat.Average) > 1e-9 {
		t.Fatalf("subcategory averages sum %v != category average %v", sum, cat.Average)
	}
}

func TestOverviewBalanceAndBucketExclusion(t *testing.T) {
	txs := []Transaction{
		overviewTx("2025-01-25", CategoryIncome, "Inkomsten", "Salaris", 3000),
		overviewTx("2025-01-05", "woning", "Woning", "Huur / Hypotheeklasten", -1200),
		overviewTx("2025-01-06", "vervoer", "Vervoer", "Brandstof", -300),
		overviewTx("2025-01-07", CategoryInternalTransfers, "Interne transacties", "Tussen rekeningen", -500),
		overviewTx("2025-01-08", CategoryToReview, "Te beoordelen", "Onbekend", -50),
	}
	ov := ComputeOverview(txs)

	if ov.TotalIncome != 3000 {
		t.Fatalf("TotalIncome = %v, want 3000", ov.TotalIncome)
	}
	if ov.TotalExpense != -1500 {
		t.Fatalf("TotalExpense = %v, want -1500 (transfers and to-review excluded)", ov.TotalExpense)
	}
	if ov.Balance != 1500 {
		t.Fatalf("Balance = %v, want 1500", ov.Balance)
	}
	for _, c := range ov.Categories {
		if !IsSpendingBucket(c.Category) {
			t.Fatalf("bucket %s must not appear in the spending ranking", c.Category)
		}
	}
}

func TestOverviewRankingMostExpensiveFirst(t *testing.T) {
	txs := []Transaction{
		overviewTx("2025-01-05", "vervoer", "Vervoer", "Brandstof", -100),
		overviewTx("2025-01-06", "woning", "Woning", "Huur / Hypotheeklasten", -1200),
	}
	ov := ComputeOverview(txs)
	if ov.Categories[0].Category != "woning" {
		t.Fatalf("expected woning first, got %s", ov.Categories[0].Category)
	}
}

func TestOverviewReturnsOffsetExpenses(t *testing.T) {
	// A refund in the same category reduces the signed total.
	txs := []Transaction{
		overviewTx("2025-01-05", "kleding_schoenen", "Kleding & schoenen", "Kleding & schoenen", -90),
		overviewTx("2025-01-12", "kleding_schoenen", "Kleding & schoenen", "Kleding & schoenen", 30),
	}
	ov := ComputeOverview(txs)
	if ov.Categories[0].Total != -60 {
		t.Fatalf("Total = %v, want -60", ov.Categories[0].Total)
	}
}
