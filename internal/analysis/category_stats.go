package analysis

import (
	"sort"

	"github.com/finsight/analytics/internal/model"
)

// CategoryStat summarizes one expense category's spending behavior.
type CategoryStat struct {
	Total      float64 `json:"total"`
	Mean       float64 `json:"mean"`
	Median     float64 `json:"median"`
	Std        float64 `json:"std"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Count      int     `json:"count"`
	MonthlyAvg float64 `json:"monthly_avg"`
	MonthlyStd float64 `json:"monthly_std"`
	Trend      string  `json:"trend"`
}

// Trend labels.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

// ComputeCategoryStats groups a sample's expense rows by category and derives
// per-category statistics including a monthly trend label. Income rows are
// excluded. The result is recomputed on every call.
func ComputeCategoryStats(txns []model.Transaction) map[string]CategoryStat {
	expenses := expensesOf(txns)
	if len(expenses) == 0 {
		return map[string]CategoryStat{}
	}

	byCategory := make(map[string][]model.Transaction)
	for _, t := range expenses {
		byCategory[t.Category] = append(byCategory[t.Category], t)
	}

	stats := make(map[string]CategoryStat, len(byCategory))
	for category, rows := range byCategory {
		amounts := make([]float64, len(rows))
		for i, t := range rows {
			amounts[i] = t.Amount
		}

		monthly := monthlyTotals(rows)
		lo, hi := minMax(amounts)

		monthlyStd := 0.0
		if len(monthly) > 1 {
			monthlyStd = sampleStd(monthly)
		}

		stats[category] = CategoryStat{
			Total:      sum(amounts),
			Mean:       mean(amounts),
			Median:     median(amounts),
			Std:        sampleStd(amounts),
			Min:        lo,
			Max:        hi,
			Count:      len(rows),
			MonthlyAvg: mean(monthly),
			MonthlyStd: monthlyStd,
			Trend:      calculateTrend(monthly),
		}
	}
	return stats
}

// monthlyTotals sums amounts per calendar month, ordered chronologically.
func monthlyTotals(txns []model.Transaction) []float64 {
	totals := make(map[string]float64)
	for _, t := range txns {
		totals[monthKey(t.Date)] += t.Amount
	}

	months := make([]string, 0, len(totals))
	for m := range totals {
		months = append(months, m)
	}
	sort.Strings(months)

	out := make([]float64, len(months))
	for i, m := range months {
		out[i] = totals[m]
	}
	return out
}

// calculateTrend compares the average of the first half of the monthly series
// against the second half: more than +15% is increasing, less than -15% is
// decreasing, anything in between is stable. Fewer than two months defaults
// to stable.
func calculateTrend(monthly []float64) string {
	if len(monthly) < 2 {
		return TrendStable
	}

	half := len(monthly) / 2
	firstHalfAvg := mean(monthly[:half])
	secondHalfAvg := mean(monthly[half:])

	if firstHalfAvg == 0 {
		if secondHalfAvg > 0 {
			return TrendIncreasing
		}
		return TrendStable
	}

	changePct := (secondHalfAvg - firstHalfAvg) / firstHalfAvg * 100
	switch {
	case changePct > 15:
		return TrendIncreasing
	case changePct < -15:
		return TrendDecreasing
	default:
		return TrendStable
	}
}
