package core

import "sort"

// SubcategoryStats holds per-subcategory monthly totals for the overview page.
type SubcategoryStats struct {
	Name          string  `json:"name"`
	Total         float64 `json:"total"` // signed: returns offset expenses
	Average       float64 `json:"average"`
	Count         int     `json:"count"`
	MonthsPresent int     `json:"monthsPresent"`
}

// CategoryStats holds per-category monthly totals for the overview page.
type CategoryStats struct {
	Category      string             `json:"category"`
	CategoryName  string             `json:"categoryName"`
	Total         float64            `json:"total"`
	Average       float64            `json:"average"`
	Count         int                `json:"count"`
	MonthsPresent int                `json:"monthsPresent"`
	Subcategories []SubcategoryStats `json:"subcategories"`
}

// Overview is the averages report across all imported months.
type Overview struct {
	MonthCount     int             `json:"monthCount"`
	TotalIncome    float64         `json:"totalIncome"`
	TotalExpense   float64         `json:"totalExpense"` // negative
	Balance        float64         `json:"balance"`
	AverageIncome  float64         `json:"averageIncome"`
	AverageExpense float64         `json:"averageExpense"`
	AverageBalance float64         `json:"averageBalance"`
	Categories     []CategoryStats `json:"categories"` // spending only, highest expense first
}

// ComputeOverview aggregates signed amounts per category and subcategory.
//
// A category's average divides its total by the number of distinct months the
// category appears in. Subcategory averages divide by the PARENT category's
// month count, not the subcategory's own: that shared denominator makes the
// subcategory averages sum exactly to the category average.
func ComputeOverview(transactions []Transaction) Overview {
	type monthAcc struct {
		total float64
		count int
	}
	catMonths := make(map[string]map[string]*monthAcc)
	subMonths := make(map[string]map[string]map[string]*monthAcc)
	catNames := make(map[string]string)
	allMonths := make(map[string]struct{})

	for _, t := range transactions {
		category := t.CategoryKey
		if category == "" {
			category = CategoryToReview
		}
		subcategory := t.SubcategoryName
		if subcategory == "" {
			subcategory = "Onbekend"
		}
		month := t.MonthKey()
		allMonths[month] = struct{}{}
		if t.CategoryName != "" {
			catNames[category] = t.CategoryName
		}

		if catMonths[category] == nil {
			catMonths[category] = make(map[string]*monthAcc)
		}
		if catMonths[category][month] == nil {
			catMonths[category][month] = &monthAcc{}
		}
		catMonths[category][month].total += t.Amount
		catMonths[category][month].count++

		if subMonths[category] == nil {
			subMonths[category] = make(map[string]map[string]*monthAcc)
		}
		if subMonths[category][subcategory] == nil {
			subMonths[category][subcategory] = make(map[string]*monthAcc)
		}
		if subMonths[category][subcategory][month] == nil {
			subMonths[category][subcategory][month] = &monthAcc{}
		}
		subMonths[category][subcategory][month].total += t.Amount
		subMonths[category][subcategory][month].count++
	}

	byCategory := make(map[string]CategoryStats, len(catMonths))
	for category, months := range catMonths {
		cs := CategoryStats{
			Category:      category,
			CategoryName:  catNames[category],
			MonthsPresent: len(months),
		}
		for _, acc := range months {
			cs.Total += acc.total
			cs.Count += acc.count
		}
		cs.Average = cs.Total / float64(cs.MonthsPresent)

		for sub, sm := range subMonths[category] {
			ss := SubcategoryStats{Name: sub, MonthsPresent: len(sm)}
			for _, acc := range sm {
				ss.Total += acc.total
				ss.Count += acc.count
			}
			// Parent category's month count on purpose, see doc comment.
			ss.Average = ss.Total / float64(cs.MonthsPresent)
			cs.Subcategories = append(cs.Subcategories, ss)
		}
		sort.Slice(cs.Subcategories, func(i, j int) bool {
			return cs.Subcategories[i].Average < cs.Subcategories[j].Average
		})
		byCategory[category] = cs
	}

	ov := Overview{MonthCount: len(allMonths)}
	for key, cs := range byCategory {
		switch key {
		case CategoryIncome:
			ov.TotalIncome += cs.Total
		case CategoryInternalTransfers, CategoryToReview:
			// Neither spending nor income; excluded from the balance.
		default:
			ov.TotalExpense += cs.Total
			ov.Categories = append(ov.Categories, cs)
		}
	}
	// Expense totals are negative, so balance is a plain sum.
	ov.Balance = ov.TotalIncome + ov.TotalExpense
	if ov.MonthCount > 0 {
		ov.AverageIncome = ov.TotalIncome / float64(ov.MonthCount)
		ov.AverageExpense = ov.TotalExpense / float64(ov.MonthCount)
		ov.AverageBalance = ov.Balance / float64(ov.MonthCount)
	}

	// Most negative average first: the biggest spenders lead the ranking.
	sort.Slice(ov.Categories, func(i, j int) bool {
		return ov.Categories[i].Average < ov.Categories[j].Average
	})
	return ov
}
