package analysis

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"
)

// Budget approaches. Unknown values fall back to balanced.
const (
	ApproachConservative = "conservative"
	ApproachBalanced     = "balanced"
	ApproachFlexible     = "flexible"
)

// Budget priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// trendMultipliers maps a category's spending trend to the budget multiplier
// for each approach.
var trendMultipliers = map[string]map[string]float64{
	ApproachConservative: {
		TrendStable:     1.0,
		TrendIncreasing: 1.15,
		TrendDecreasing: 0.90,
	},
	ApproachBalanced: {
		TrendStable:     1.10,
		TrendIncreasing: 1.25,
		TrendDecreasing: 1.0,
	},
	ApproachFlexible: {
		TrendStable:     1.20,
		TrendIncreasing: 1.35,
		TrendDecreasing: 1.10,
	},
}

// BudgetRecommendation is one category's suggested monthly budget.
type BudgetRecommendation struct {
	Category          string  `json:"category"`
	RecommendedAmount float64 `json:"recommended_amount"`
	CurrentMonthlyAvg float64 `json:"current_monthly_avg"`
	Trend             string  `json:"trend"`
	TransactionCount  int     `json:"transaction_count"`
	Variability       string  `json:"variability"`
	Justification     string  `json:"justification"`
	Priority          string  `json:"priority"`
}

// BudgetChange compares one recommendation against the matching current
// budget.
type BudgetChange struct {
	Category         string  `json:"category"`
	Current          float64 `json:"current"`
	Recommended      float64 `json:"recommended"`
	Difference       float64 `json:"difference"`
	ChangePercentage float64 `json:"change_percentage"`
}

// BudgetComparison summarizes recommendations against the user's current
// budgets.
type BudgetComparison struct {
	TotalCurrentBudget     float64        `json:"total_current_budget"`
	TotalRecommendedBudget float64        `json:"total_recommended_budget"`
	OverallDifference      float64        `json:"overall_difference"`
	Changes                []BudgetChange `json:"changes"`
}

// BudgetRecommendationResult is the full recommendation output, highest
// recommended amount first.
type BudgetRecommendationResult struct {
	Approach               string                 `json:"approach"`
	Recommendations        []BudgetRecommendation `json:"recommendations"`
	TotalRecommendedBudget float64                `json:"total_recommended_budget"`
	Comparison             BudgetComparison       `json:"comparison"`
	AnalysisPeriodMonths   int                    `json:"analysis_period_months"`
}

// RecommendBudgets derives per-category monthly budgets from recent spending
// patterns. The sufficiency gate runs against the full history; the patterns
// themselves come from the configured analysis window.
func (a *Analyzer) RecommendBudgets(ctx context.Context, userID, approach string) (*BudgetRecommendationResult, error) {
	txns, err := a.fetchAll(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Budget recommendations need a long enough span that monthly averages
	// mean something, so the day threshold doubles as the row threshold.
	verdict := CheckDataSufficiency(txns, a.reqs.MinDays, a.reqs.MinDays, a.reqs.MinExpenses)
	if !verdict.Sufficient {
		return nil, &InsufficientDataError{Op: "budget recommendations", Verdict: verdict}
	}

	patterns, err := a.spendingPatterns(ctx, userID, a.reqs.SavingsAnalysisMonths)
	if err != nil {
		return nil, err
	}
	if len(patterns) == 0 {
		return nil, fmt.Errorf("insufficient spending data for budget recommendations")
	}

	multipliers, ok := trendMultipliers[approach]
	if !ok {
		approach = ApproachBalanced
		multipliers = trendMultipliers[ApproachBalanced]
	}

	recommendations := make([]BudgetRecommendation, 0, len(patterns))
	var totalBudget float64
	for category, stats := range patterns {
		recommended := stats.MonthlyAvg * multipliers[stats.Trend]
		if stats.MonthlyStd > 0 {
			recommended += stats.MonthlyStd * 0.5
		}
		recommended = round2(recommended)
		totalBudget += recommended

		variability := "low"
		if stats.MonthlyStd > stats.MonthlyAvg*0.3 {
			variability = "high"
		}

		recommendations = append(recommendations, BudgetRecommendation{
			Category:          category,
			RecommendedAmount: recommended,
			CurrentMonthlyAvg: round2(stats.MonthlyAvg),
			Trend:             stats.Trend,
			TransactionCount:  stats.Count,
			Variability:       variability,
			Justification:     budgetJustification(stats, recommended, approach),
			Priority:          budgetPriority(stats),
		})
	}

	sort.Slice(recommendations, func(i, j int) bool {
		return recommendations[i].RecommendedAmount > recommendations[j].RecommendedAmount
	})

	comparison, err := a.compareWithCurrent(ctx, userID, recommendations)
	if err != nil {
		a.log.WithError(err).Warn("budget comparison unavailable")
		comparison = BudgetComparison{Changes: []BudgetChange{}}
	}

	return &BudgetRecommendationResult{
		Approach:               approach,
		Recommendations:        recommendations,
		TotalRecommendedBudget: round2(totalBudget),
		Comparison:             comparison,
		AnalysisPeriodMonths:   a.reqs.SavingsAnalysisMonths,
	}, nil
}

// spendingPatterns computes category statistics over the last N months of
// history.
func (a *Analyzer) spendingPatterns(ctx context.Context, userID string, months int) (map[string]CategoryStat, error) {
	txns, err := a.fetchRecent(ctx, userID, months*30)
	if err != nil {
		return nil, err
	}
	return ComputeCategoryStats(txns), nil
}

// budgetJustification builds the human-readable reasoning for a
// recommendation. Clauses are joined with "; " and the sentence is
// capitalized.
func budgetJustification(stats CategoryStat, recommended float64, approach string) string {
	var clauses []string

	switch stats.Trend {
	case TrendIncreasing:
		clauses = append(clauses, "spending in this category is increasing")
	case TrendDecreasing:
		clauses = append(clauses, "spending in this category is decreasing")
	default:
		clauses = append(clauses, "spending in this category is stable")
	}

	if stats.MonthlyStd > stats.MonthlyAvg*0.3 {
		clauses = append(clauses, "includes buffer for high variability")
	}

	switch approach {
	case ApproachConservative:
		clauses = append(clauses, "conservative approach applied")
	case ApproachFlexible:
		clauses = append(clauses, "flexible approach for comfort")
	}

	if stats.MonthlyAvg > 0 {
		increasePct := (recommended - stats.MonthlyAvg) / stats.MonthlyAvg * 100
		if increasePct > 5 {
			clauses = append(clauses, fmt.Sprintf("%d%% above current average", int(math.Round(increasePct))))
		} else if increasePct < -5 {
			clauses = append(clauses, fmt.Sprintf("%d%% below current average", int(math.Round(-increasePct))))
		}
	}

	return capitalize(strings.Join(clauses, "; "))
}

// budgetPriority ranks a category: big or volatile spending ranks higher.
func budgetPriority(stats CategoryStat) string {
	variability := 0.0
	if stats.MonthlyAvg > 0 {
		variability = stats.MonthlyStd / stats.MonthlyAvg
	}

	switch {
	case stats.MonthlyAvg > 500 || variability > 0.5:
		return PriorityHigh
	case stats.MonthlyAvg > 200 || variability > 0.3:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// compareWithCurrent matches recommendations against the user's active
// budgets. Budgets are keyed by their display name, so only categories whose
// name matches a budget name produce a change entry.
func (a *Analyzer) compareWithCurrent(ctx context.Context, userID string, recommendations []BudgetRecommendation) (BudgetComparison, error) {
	budgets, err := a.store.ListBudgets(ctx, userID, true)
	if err != nil {
		return BudgetComparison{}, fmt.Errorf("fetch budgets: %w", err)
	}

	currentByName := make(map[string]float64)
	for _, b := range budgets {
		if b.Category == "" {
			continue
		}
		name := b.Name
		if name == "" {
			name = "Unknown"
		}
		currentByName[name] = b.Amount
	}

	var totalCurrent, totalRecommended float64
	for _, amount := range currentByName {
		totalCurrent += amount
	}

	changes := []BudgetChange{}
	for _, rec := range recommendations {
		totalRecommended += rec.RecommendedAmount

		current, ok := currentByName[rec.Category]
		if !ok {
			continue
		}
		difference := rec.RecommendedAmount - current
		changePct := 0.0
		if current > 0 {
			changePct = difference / current * 100
		}
		changes = append(changes, BudgetChange{
			Category:         rec.Category,
			Current:          current,
			Recommended:      rec.RecommendedAmount,
			Difference:       round2(difference),
			ChangePercentage: round2(changePct),
		})
	}

	return BudgetComparison{
		TotalCurrentBudget:     round2(totalCurrent),
		TotalRecommendedBudget: round2(totalRecommended),
		OverallDifference:      round2(totalRecommended - totalCurrent),
		Changes:                changes,
	}, nil
}

// BudgetAllocation is one category's share of a fixed total budget.
type BudgetAllocation struct {
	Category          string  `json:"category"`
	AllocatedAmount   float64 `json:"allocated_amount"`
	PercentageOfTotal float64 `json:"percentage_of_total"`
	Priority          string  `json:"priority"`
}

// BudgetOptimizationResult is the full allocation output, largest share first.
type BudgetOptimizationResult struct {
	TotalBudget       float64            `json:"total_budget"`
	Allocation        []BudgetAllocation `json:"allocation"`
	CategoriesCovered int                `json:"categories_covered"`
}

// OptimizeBudget splits a fixed total across the user's spending categories
// in proportion to recent spending, boosts high-priority categories by 10%
// and trims low-priority ones by the same, then renormalizes so the
// allocations sum back to the requested total. The reported percentage is the
// raw spending share before the priority adjustment.
func (a *Analyzer) OptimizeBudget(ctx context.Context, userID string, totalBudget float64) (*BudgetOptimizationResult, error) {
	patterns, err := a.spendingPatterns(ctx, userID, a.reqs.SavingsAnalysisMonths)
	if err != nil {
		return nil, err
	}
	if len(patterns) == 0 {
		return nil, fmt.Errorf("insufficient spending data")
	}

	var totalSpending float64
	for _, stats := range patterns {
		totalSpending += stats.MonthlyAvg
	}

	allocations := make([]BudgetAllocation, 0, len(patterns))
	for category, stats := range patterns {
		proportion := 0.0
		if totalSpending > 0 {
			proportion = stats.MonthlyAvg / totalSpending
		}
		allocated := totalBudget * proportion

		priority := budgetPriority(stats)
		switch priority {
		case PriorityHigh:
			allocated *= 1.1
		case PriorityLow:
			allocated *= 0.9
		}

		allocations = append(allocations, BudgetAllocation{
			Category:          category,
			AllocatedAmount:   round2(allocated),
			PercentageOfTotal: round2(proportion * 100),
			Priority:          priority,
		})
	}

	var currentTotal float64
	for _, alloc := range allocations {
		currentTotal += alloc.AllocatedAmount
	}
	if currentTotal > 0 {
		factor := totalBudget / currentTotal
		for i := range allocations {
			allocations[i].AllocatedAmount = round2(allocations[i].AllocatedAmount * factor)
		}
	}

	sort.Slice(allocations, func(i, j int) bool {
		return allocations[i].AllocatedAmount > allocations[j].AllocatedAmount
	})

	return &BudgetOptimizationResult{
		TotalBudget:       totalBudget,
		Allocation:        allocations,
		CategoriesCovered: len(allocations),
	}, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
