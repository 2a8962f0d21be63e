package core

import (
	"fmt"
	"math"
	"sort"
)

const (
	DefaultTopCategories    = 5
	DefaultOutlierThreshold = 2.0
)

// MonthComparison compares one month's spending with the previous month and
// with the average of all other months. Pointer fields are nil when there is
// no previous month with data.
type MonthComparison struct {
	CurrentMonth          string   `json:"currentMonth"`
	CurrentTotal          float64  `json:"currentTotal"`
	PreviousMonth         *string  `json:"previousMonth"`
	PreviousTotal         *float64 `json:"previousTotal"`
	Difference            *float64 `json:"difference"`
	PercentageChange      *float64 `json:"percentageChange"`
	AverageTotal          float64  `json:"averageTotal"`
	DifferenceFromAverage float64  `json:"differenceFromAverage"`
	PercentageFromAverage float64  `json:"percentageFromAverage"`
}

// CategoryInsight is one row of the top-categories ranking for a month.
type CategoryInsight struct {
	Category     string  `json:"category"`
	CategoryName string  `json:"categoryName"`
	Total        float64 `json:"total"`
	Count        int     `json:"count"`
	Percentage   float64 `json:"percentage"`
}

// Outlier flags a transaction whose amount deviates unusually from its
// category's historical distribution.
type Outlier struct {
	Transaction         Transaction `json:"transaction"`
	CategoryAverage     float64     `json:"categoryAverage"`
	DeviationPercentage float64     `json:"deviationPercentage"`
	Reason              string      `json:"reason"`
}

// Insights bundles the monthly statistics for a target month.
type Insights struct {
	Comparison    MonthComparison   `json:"comparison"`
	TopCategories []CategoryInsight `json:"topCategories"`
	Outliers      []Outlier         `json:"outliers"`
}

// ComputeInsights builds the month comparison, top-category ranking and
// outlier list for the target month. Transactions in the to-review,
// internal-transfers and income buckets are excluded up front: they would
// distort spending statistics.
func ComputeInsights(transactions []Transaction, targetMonth string, topN int, outlierThreshold float64) Insights {
	if topN <= 0 {
		topN = DefaultTopCategories
	}
	if outlierThreshold <= 0 {
		outlierThreshold = DefaultOutlierThreshold
	}

	var spending []Transaction
	for _, t := range transactions {
		if t.CategoryKey == "" || !IsSpendingBucket(t.CategoryKey) {
			continue
		}
		spending = append(spending, t)
	}

	return Insights{
		Comparison:    compareMonths(spending, targetMonth),
		TopCategories: topCategories(spending, targetMonth, topN),
		Outliers:      detectOutliers(spending, targetMonth, outlierThreshold),
	}
}

func compareMonths(transactions []Transaction, targetMonth string) MonthComparison {
	byMonth := make(map[string]float64)
	for _, t := range transactions {
		byMonth[t.MonthKey()] += t.AbsAmount()
	}

	currentTotal := byMonth[targetMonth]

	months := make([]string, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Strings(months)

	// Previous month is the lexicographically preceding month that has data,
	// which is the chronologically preceding one given the fixed-width keys.
	var previousMonth *string
	for i, m := range months {
		if m == targetMonth && i > 0 {
			prev := months[i-1]
			previousMonth = &prev
		}
	}

	cmp := MonthComparison{
		CurrentMonth: targetMonth,
		CurrentTotal: currentTotal,
	}

	if previousMonth != nil {
		prevTotal := byMonth[*previousMonth]
		diff := currentTotal - prevTotal
		cmp.PreviousMonth = previousMonth
		cmp.PreviousTotal = &prevTotal
		cmp.Difference = &diff
		if prevTotal != 0 {
			pct := diff / prevTotal * 100
			cmp.PercentageChange = &pct
		}
	}

	// Average over all other months; 0 when the target month is the only one.
	var otherSum float64
	otherCount := 0
	for m, total := range byMonth {
		if m == targetMonth {
			continue
		}
		otherSum += total
		otherCount++
	}
	if otherCount > 0 {
		cmp.AverageTotal = otherSum / float64(otherCount)
	}

	cmp.DifferenceFromAverage = currentTotal - cmp.AverageTotal
	// A zero average yields percentage 0 here, unlike the previous-month case
	// where a missing denominator yields nil. Both behaviors are deliberate.
	if cmp.AverageTotal != 0 {
		cmp.PercentageFromAverage = cmp.DifferenceFromAverage / cmp.AverageTotal * 100
	}

	return cmp
}

func topCategories(transactions []Transaction, targetMonth string, limit int) []CategoryInsight {
	type acc struct {
		total float64
		count int
		name  string
	}
	byCategory := make(map[string]*acc)
	for _, t := range transactions {
		if t.MonthKey() != targetMonth {
			continue
		}
		a, ok := byCategory[t.CategoryKey]
		if !ok {
			a = &acc{name: t.CategoryName}
			byCategory[t.CategoryKey] = a
		}
		a.total += t.AbsAmount()
		a.count++
	}

	var monthTotal float64
	for _, a := range byCategory {
		monthTotal += a.total
	}

	insights := make([]CategoryInsight, 0, len(byCategory))
	for key, a := range byCategory {
		ci := CategoryInsight{
			Category:     key,
			CategoryName: a.name,
			Total:        a.total,
			Count:        a.count,
		}
		if monthTotal > 0 {
			ci.Percentage = a.total / monthTotal * 100
		}
		insights = append(insights, ci)
	}

	sort.Slice(insights, func(i, j int) bool {
		if insights[i].Total != insights[j].Total {
			return insights[i].Total > insights[j].Total
		}
		return insights[i].Category < insights[j].Category
	})

	if len(insights) > limit {
		insights = insights[:limit]
	}
	return insights
}

func detectOutliers(transactions []Transaction, targetMonth string, threshold float64) []Outlier {
	amounts := make(map[string][]float64)
	for _, t := range transactions {
		amounts[t.CategoryKey] = append(amounts[t.CategoryKey], t.AbsAmount())
	}

	type stats struct{ mean, stdDev float64 }
	categoryStats := make(map[string]stats, len(amounts))
	for key, vals := range amounts {
		var sum float64
		for _, v := range vals {
			sum += v
		}
		mean := sum / float64(len(vals))
		var variance float64
		for _, v := range vals {
			variance += (v - mean) * (v - mean)
		}
		variance /= float64(len(vals)) // population variance over all history
		categoryStats[key] = stats{mean: mean, stdDev: math.Sqrt(variance)}
	}

	outliers := []Outlier{}
	for _, t := range transactions {
		if t.MonthKey() != targetMonth {
			continue
		}
		st := categoryStats[t.CategoryKey]
		// Zero standard deviation means all historical amounts are identical;
		// the z-score is undefined there, so such categories never flag.
		if st.stdDev == 0 {
			continue
		}
		amount := t.AbsAmount()
		z := (amount - st.mean) / st.stdDev
		if math.Abs(z) < threshold {
			continue
		}
		direction := "hoger"
		if z < 0 {
			direction = "lager"
		}
		outliers = append(outliers, Outlier{
			Transaction:         t,
			CategoryAverage:     st.mean,
			DeviationPercentage: (amount - st.mean) / st.mean * 100,
			Reason: fmt.Sprintf("%dx %s dan gemiddeld voor %s",
				int(math.Round(math.Abs(z))), direction, t.CategoryName),
		})
	}

	sort.Slice(outliers, func(i, j int) bool {
		return math.Abs(outliers[i].DeviationPercentage) > math.Abs(outliers[j].DeviationPercentage)
	})
	return outliers
}
