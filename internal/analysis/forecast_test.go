package analysis

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/analytics/internal/store"
	"github.com/finsight/analytics/internal/timeseries"
)

// failingFitter simulates the primary model being unavailable.
type failingFitter struct{}

func (failingFitter) Fit(series []float64) (timeseries.Model, error) {
	return nil, errors.New("convergence failure")
}

func TestForecastInsufficientData(t *testing.T) {
	st := store.NewMemoryStore()
	a := newTestAnalyzer(t, st)

	_, err := a.Forecast(context.Background(), "user1", 30)

	var insufficient *InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "forecasting", insufficient.Op)
	assert.Equal(t, "No transaction data found", insufficient.Verdict.Reason)
}

func TestForecastConstantSpending(t *testing.T) {
	st := store.NewMemoryStore()
	seedDailyHistory(t, st, 40, 50)
	a := newTestAnalyzer(t, st)

	result, err := a.Forecast(context.Background(), "user1", 14)
	require.NoError(t, err)

	require.Len(t, result.Forecast, 14)
	for _, p := range result.Forecast {
		assert.InDelta(t, 50.0, p.PredictedSpending, 0.01)
		assert.LessOrEqual(t, p.LowerBound, p.PredictedSpending)
		assert.LessOrEqual(t, p.PredictedSpending, p.UpperBound)
		assert.GreaterOrEqual(t, p.LowerBound, 0.0)
	}

	stats := result.Statistics
	assert.InDelta(t, 50.0, stats.HistoricalAvgDaily, 0.01)
	assert.InDelta(t, 50.0, stats.ForecastAvgDaily, 0.01)
	assert.InDelta(t, 0.0, stats.TrendPercentage, 0.1)
	assert.Equal(t, 14, stats.ForecastPeriodDays)
	assert.Equal(t, 40, stats.DataPointsUsed)
}

func TestForecastDatesFollowLastTransaction(t *testing.T) {
	st := store.NewMemoryStore()
	seedDailyHistory(t, st, 35, 20)
	a := newTestAnalyzer(t, st)

	result, err := a.Forecast(context.Background(), "user1", 3)
	require.NoError(t, err)
	require.Len(t, result.Forecast, 3)

	assert.Equal(t, testNow.AddDate(0, 0, 1).Format("2006-01-02"), result.Forecast[0].Date)
	assert.Equal(t, testNow.AddDate(0, 0, 3).Format("2006-01-02"), result.Forecast[2].Date)
}

func TestForecastDefaultHorizon(t *testing.T) {
	st := store.NewMemoryStore()
	seedDailyHistory(t, st, 35, 20)
	a := newTestAnalyzer(t, st)

	result, err := a.Forecast(context.Background(), "user1", 0)
	require.NoError(t, err)
	assert.Len(t, result.Forecast, 30)
	assert.Equal(t, 30, result.Statistics.ForecastPeriodDays)
}

func TestForecastFallbackWhenFitFails(t *testing.T) {
	st := store.NewMemoryStore()
	seedDailyHistory(t, st, 40, 50)
	a := newTestAnalyzer(t, st)
	a.fitter = failingFitter{}

	result, err := a.Forecast(context.Background(), "user1", 10)
	require.NoError(t, err)

	// Constant history: fallback projects the historical average with no
	// trend adjustment.
	require.Len(t, result.Forecast, 10)
	for _, p := range result.Forecast {
		assert.InDelta(t, 50.0, p.PredictedSpending, 0.01)
		assert.GreaterOrEqual(t, p.LowerBound, 0.0)
		assert.LessOrEqual(t, p.LowerBound, p.PredictedSpending)
		assert.LessOrEqual(t, p.PredictedSpending, p.UpperBound)
	}
}

func TestFallbackForecastAppliesTrendGradually(t *testing.T) {
	// 23 flat days then a hot last week: recent average 100 vs overall ~61.67.
	daily := make([]float64, 30)
	for i := range daily {
		if i < 23 {
			daily[i] = 50
		} else {
			daily[i] = 100
		}
	}

	preds := fallbackForecast(daily, 30)
	require.Len(t, preds, 30)

	// Day 0 carries no trend effect; day 30 would carry the full effect.
	histAvg := mean(daily)
	assert.InDelta(t, histAvg, preds[0].point, 1e-9)
	assert.Greater(t, preds[29].point, preds[0].point)

	for _, p := range preds {
		assert.LessOrEqual(t, p.lower, p.point)
		assert.LessOrEqual(t, p.point, p.upper)
	}
}

func TestFallbackForecastShortSeriesNoTrend(t *testing.T) {
	daily := []float64{40, 60, 50, 45, 55}
	preds := fallbackForecast(daily, 5)

	histAvg := mean(daily)
	for _, p := range preds {
		assert.InDelta(t, histAvg, p.point, 1e-9)
	}
}

func TestForecastByCategorySparseCategoryUsesTransactionMean(t *testing.T) {
	st := store.NewMemoryStore()
	seedDailyHistory(t, st, 40, 50)

	// Three rows in one sparse category: under the seven observed-day
	// threshold, so the projection is mean transaction amount times horizon.
	ctx := context.Background()
	for i, amt := range []float64{90, 100, 110} {
		tx := expense(testNow.AddDate(0, 0, -i*3), amt, "Electronics")
		tx.ID = fmt.Sprintf("elec-%d", i)
		require.NoError(t, st.CreateTransaction(ctx, &tx))
	}

	a := newTestAnalyzer(t, st)
	result, err := a.ForecastByCategory(ctx, "user1", 30)
	require.NoError(t, err)

	elec, ok := result.Forecasts["Electronics"]
	require.True(t, ok)
	assert.Equal(t, 100.0, elec.AvgSpending)
	assert.Equal(t, 300.0, elec.TotalHistorical)
	assert.Equal(t, 3000.0, elec.PredictedTotal)

	groceries, ok := result.Forecasts["Groceries"]
	require.True(t, ok)
	assert.Equal(t, 2000.0, groceries.TotalHistorical)
	assert.Greater(t, groceries.PredictedTotal, 0.0)
}

func TestForecastByCategoryNoData(t *testing.T) {
	st := store.NewMemoryStore()
	a := newTestAnalyzer(t, st)

	_, err := a.ForecastByCategory(context.Background(), "user1", 30)

	var insufficient *InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
}
