package analysis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/analytics/internal/model"
	"github.com/finsight/analytics/internal/store"
)

// seedMonthlySpending inserts six months of perfectly regular spending:
// Dining $150 x3 and Groceries $100 x3 per month, on the 5th, 10th and 15th.
func seedMonthlySpending(t *testing.T, st store.Store) {
	t.Helper()
	ctx := context.Background()

	id := 0
	for monthOffset := 5; monthOffset >= 0; monthOffset-- {
		monthStart := time.Date(testNow.Year(), testNow.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -monthOffset, 0)
		for _, day := range []int{5, 10, 15} {
			date := monthStart.AddDate(0, 0, day-1)
			dining := expense(date, 150, "Dining")
			dining.ID = fmt.Sprintf("dining-%d", id)
			require.NoError(t, st.CreateTransaction(ctx, &dining))

			groceries := expense(date, 100, "Groceries")
			groceries.ID = fmt.Sprintf("groceries-%d", id)
			require.NoError(t, st.CreateTransaction(ctx, &groceries))
			id++
		}
	}
}

func TestRecommendBudgetsInsufficientData(t *testing.T) {
	st := store.NewMemoryStore()
	a := newTestAnalyzer(t, st)

	_, err := a.RecommendBudgets(context.Background(), "user1", ApproachBalanced)

	var insufficient *InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "budget recommendations", insufficient.Op)
}

func TestRecommendBudgetsBalanced(t *testing.T) {
	st := store.NewMemoryStore()
	seedMonthlySpending(t, st)
	a := newTestAnalyzer(t, st)

	result, err := a.RecommendBudgets(context.Background(), "user1", ApproachBalanced)
	require.NoError(t, err)

	assert.Equal(t, ApproachBalanced, result.Approach)
	assert.Equal(t, 6, result.AnalysisPeriodMonths)
	require.Len(t, result.Recommendations, 2)

	// Sorted by recommended amount, highest first.
	dining := result.Recommendations[0]
	groceries := result.Recommendations[1]

	// Stable trend under the balanced approach is a 10% uplift; monthly
	// totals never vary so no variability buffer applies.
	assert.Equal(t, "Dining", dining.Category)
	assert.Equal(t, 495.0, dining.RecommendedAmount)
	assert.Equal(t, 450.0, dining.CurrentMonthlyAvg)
	assert.Equal(t, TrendStable, dining.Trend)
	assert.Equal(t, 18, dining.TransactionCount)
	assert.Equal(t, "low", dining.Variability)
	assert.Equal(t, PriorityMedium, dining.Priority)
	assert.Equal(t, "Spending in this category is stable; 10% above current average", dining.Justification)

	assert.Equal(t, "Groceries", groceries.Category)
	assert.Equal(t, 330.0, groceries.RecommendedAmount)
	assert.Equal(t, 300.0, groceries.CurrentMonthlyAvg)

	assert.Equal(t, 825.0, result.TotalRecommendedBudget)
}

func TestRecommendBudgetsApproaches(t *testing.T) {
	st := store.NewMemoryStore()
	seedMonthlySpending(t, st)
	a := newTestAnalyzer(t, st)
	ctx := context.Background()

	conservative, err := a.RecommendBudgets(ctx, "user1", ApproachConservative)
	require.NoError(t, err)
	// Stable trend at 1.0: the recommendation matches the monthly average.
	assert.Equal(t, 450.0, conservative.Recommendations[0].RecommendedAmount)
	assert.Contains(t, conservative.Recommendations[0].Justification, "conservative approach applied")

	flexible, err := a.RecommendBudgets(ctx, "user1", ApproachFlexible)
	require.NoError(t, err)
	assert.Equal(t, 540.0, flexible.Recommendations[0].RecommendedAmount)
	assert.Contains(t, flexible.Recommendations[0].Justification, "flexible approach for comfort")

	// Unknown approaches fall back to balanced.
	unknown, err := a.RecommendBudgets(ctx, "user1", "aggressive")
	require.NoError(t, err)
	assert.Equal(t, ApproachBalanced, unknown.Approach)
	assert.Equal(t, 495.0, unknown.Recommendations[0].RecommendedAmount)
}

func TestRecommendBudgetsComparison(t *testing.T) {
	st := store.NewMemoryStore()
	seedMonthlySpending(t, st)
	ctx := context.Background()

	// Budgets are matched to recommendations by display name.
	require.NoError(t, st.CreateBudget(ctx, &model.Budget{
		ID: "b1", UserID: "user1", Name: "Dining", Category: "cat-dining", Amount: 400, IsActive: true,
	}))
	// A budget with no category is ignored entirely.
	require.NoError(t, st.CreateBudget(ctx, &model.Budget{
		ID: "b2", UserID: "user1", Name: "Misc", Amount: 999, IsActive: true,
	}))

	a := newTestAnalyzer(t, st)
	result, err := a.RecommendBudgets(ctx, "user1", ApproachBalanced)
	require.NoError(t, err)

	comparison := result.Comparison
	assert.Equal(t, 400.0, comparison.TotalCurrentBudget)
	assert.Equal(t, 825.0, comparison.TotalRecommendedBudget)
	assert.Equal(t, 425.0, comparison.OverallDifference)

	require.Len(t, comparison.Changes, 1)
	change := comparison.Changes[0]
	assert.Equal(t, "Dining", change.Category)
	assert.Equal(t, 400.0, change.Current)
	assert.Equal(t, 495.0, change.Recommended)
	assert.Equal(t, 95.0, change.Difference)
	assert.InDelta(t, 23.75, change.ChangePercentage, 0.01)
}

func TestOptimizeBudgetProportionalAllocation(t *testing.T) {
	st := store.NewMemoryStore()
	seedMonthlySpending(t, st)
	a := newTestAnalyzer(t, st)

	result, err := a.OptimizeBudget(context.Background(), "user1", 1000)
	require.NoError(t, err)

	assert.Equal(t, 1000.0, result.TotalBudget)
	assert.Equal(t, 2, result.CategoriesCovered)
	require.Len(t, result.Allocation, 2)

	// Both categories are medium priority, so the split follows spending
	// share exactly: 450/750 vs 300/750.
	dining := result.Allocation[0]
	groceries := result.Allocation[1]
	assert.Equal(t, "Dining", dining.Category)
	assert.Equal(t, 600.0, dining.AllocatedAmount)
	assert.Equal(t, 60.0, dining.PercentageOfTotal)
	assert.Equal(t, PriorityMedium, dining.Priority)
	assert.Equal(t, 400.0, groceries.AllocatedAmount)
	assert.Equal(t, 40.0, groceries.PercentageOfTotal)

	var total float64
	for _, alloc := range result.Allocation {
		total += alloc.AllocatedAmount
	}
	assert.InDelta(t, 1000.0, total, 0.01)
}

func TestOptimizeBudgetRenormalizesPriorityAdjustments(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	// Big volatile category (high priority) next to a small steady one
	// (low priority): the ±10% adjustments must renormalize back to the
	// requested total.
	id := 0
	for monthOffset := 5; monthOffset >= 0; monthOffset-- {
		monthStart := time.Date(testNow.Year(), testNow.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -monthOffset, 0)
		rent := expense(monthStart.AddDate(0, 0, 2), 700+float64(monthOffset%2)*600, "Rent")
		rent.ID = fmt.Sprintf("rent-%d", id)
		require.NoError(t, st.CreateTransaction(ctx, &rent))

		coffee := expense(monthStart.AddDate(0, 0, 4), 50, "Coffee")
		coffee.ID = fmt.Sprintf("coffee-%d", id)
		require.NoError(t, st.CreateTransaction(ctx, &coffee))
		id++
	}

	a := newTestAnalyzer(t, st)
	result, err := a.OptimizeBudget(ctx, "user1", 2000)
	require.NoError(t, err)

	var total float64
	for _, alloc := range result.Allocation {
		total += alloc.AllocatedAmount
	}
	assert.InDelta(t, 2000.0, total, 0.01)
	assert.Equal(t, PriorityHigh, result.Allocation[0].Priority)
}

func TestOptimizeBudgetNoSpendingData(t *testing.T) {
	st := store.NewMemoryStore()
	a := newTestAnalyzer(t, st)

	_, err := a.OptimizeBudget(context.Background(), "user1", 1000)
	require.Error(t, err)
}

func TestBudgetPriority(t *testing.T) {
	assert.Equal(t, PriorityHigh, budgetPriority(CategoryStat{MonthlyAvg: 600}))
	assert.Equal(t, PriorityHigh, budgetPriority(CategoryStat{MonthlyAvg: 100, MonthlyStd: 60}))
	assert.Equal(t, PriorityMedium, budgetPriority(CategoryStat{MonthlyAvg: 250}))
	assert.Equal(t, PriorityMedium, budgetPriority(CategoryStat{MonthlyAvg: 100, MonthlyStd: 35}))
	assert.Equal(t, PriorityLow, budgetPriority(CategoryStat{MonthlyAvg: 100, MonthlyStd: 10}))
	assert.Equal(t, PriorityLow, budgetPriority(CategoryStat{}))
}
