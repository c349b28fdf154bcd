package analysis

import (
	"context"
	"time"

	"github.com/finsight/analytics/internal/model"
)

// ForecastPoint is one predicted day of spending. Bounds are clamped so that
// 0 <= lower <= predicted <= upper always holds.
type ForecastPoint struct {
	Date              string  `json:"date"`
	PredictedSpending float64 `json:"predicted_spending"`
	LowerBound        float64 `json:"lower_bound"`
	UpperBound        float64 `json:"upper_bound"`
}

// ForecastStatistics summarizes a forecast run.
type ForecastStatistics struct {
	HistoricalAvgDaily     float64 `json:"historical_avg_daily"`
	ForecastAvgDaily       float64 `json:"forecast_avg_daily"`
	TrendPercentage        float64 `json:"trend_percentage"`
	TotalPredictedSpending float64 `json:"total_predicted_spending"`
	ForecastPeriodDays     int     `json:"forecast_period_days"`
	DataPointsUsed         int     `json:"data_points_used"`
}

// ForecastResult is the full output of the spending forecast.
type ForecastResult struct {
	Forecast   []ForecastPoint    `json:"forecast"`
	Statistics ForecastStatistics `json:"statistics"`
}

// Forecast predicts daily spending for the next horizonDays. The time-series
// model is fit on the user's zero-filled daily expense series; if fitting
// fails the deterministic trend-adjusted average takes over.
func (a *Analyzer) Forecast(ctx context.Context, userID string, horizonDays int) (*ForecastResult, error) {
	if horizonDays <= 0 {
		horizonDays = a.reqs.ForecastPeriodDays
	}

	txns, err := a.fetchAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	expenses := expensesOf(txns)

	verdict := CheckDataSufficiency(expenses, a.reqs.MinDays, 1, 1)
	if !verdict.Sufficient {
		return nil, &InsufficientDataError{Op: "forecasting", Verdict: verdict}
	}

	daily, lastDate := dailyExpenseSeries(expenses)

	preds, usedFallback := a.fitAndPredict(daily, horizonDays)
	if usedFallback {
		a.log.WithField("user_id", userID).Warn("time-series fit failed, using trend-adjusted average forecast")
	}

	points := make([]ForecastPoint, 0, horizonDays)
	var predictedSum float64
	for i, p := range preds {
		predictedSum += p.point
		points = append(points, ForecastPoint{
			Date:              lastDate.AddDate(0, 0, i+1).Format("2006-01-02"),
			PredictedSpending: clampNonNegative(round2(p.point)),
			LowerBound:        clampNonNegative(round2(p.lower)),
			UpperBound:        clampNonNegative(round2(p.upper)),
		})
	}

	historicalAvg := mean(daily)
	forecastAvg := predictedSum / float64(len(preds))
	trendPct := 0.0
	if historicalAvg > 0 {
		trendPct = (forecastAvg - historicalAvg) / historicalAvg * 100
	}

	return &ForecastResult{
		Forecast: points,
		Statistics: ForecastStatistics{
			HistoricalAvgDaily:     round2(historicalAvg),
			ForecastAvgDaily:       clampNonNegative(round2(forecastAvg)),
			TrendPercentage:        round2(trendPct),
			TotalPredictedSpending: clampNonNegative(round2(predictedSum)),
			ForecastPeriodDays:     horizonDays,
			DataPointsUsed:         len(daily),
		},
	}, nil
}

type rawPrediction struct {
	point, lower, upper float64
}

// fitAndPredict runs the primary model and falls back to the deterministic
// average-plus-trend forecast when fitting fails for any reason.
func (a *Analyzer) fitAndPredict(daily []float64, horizonDays int) (preds []rawPrediction, usedFallback bool) {
	m, err := a.fitter.Fit(daily)
	if err == nil {
		modelPreds := m.Predict(horizonDays)
		preds = make([]rawPrediction, len(modelPreds))
		for i, p := range modelPreds {
			preds[i] = rawPrediction{point: p.Point, lower: p.Lower, upper: p.Upper}
		}
		return preds, false
	}

	ferr := &FitError{Err: err}
	a.log.WithError(ferr).Debug("primary forecast model unavailable")
	return fallbackForecast(daily, horizonDays), true
}

// fallbackForecast projects the historical daily average, adjusted by the
// trend of the last seven observed days applied fractionally over the
// horizon (full effect at day 30). The interval is one historical standard
// deviation either side.
func fallbackForecast(daily []float64, horizonDays int) []rawPrediction {
	historicalAvg := mean(daily)
	historicalStd := sampleStd(daily)

	trend := 0.0
	if len(daily) > 7 && historicalAvg > 0 {
		recentAvg := mean(daily[len(daily)-7:])
		trend = (recentAvg - historicalAvg) / historicalAvg
	}

	preds := make([]rawPrediction, 0, horizonDays)
	for i := 0; i < horizonDays; i++ {
		predicted := historicalAvg * (1 + trend*float64(i)/30)
		if predicted < 0 {
			predicted = 0
		}
		preds = append(preds, rawPrediction{
			point: predicted,
			lower: predicted - historicalStd,
			upper: predicted + historicalStd,
		})
	}
	return preds
}

// CategoryForecast is a per-category spending projection.
type CategoryForecast struct {
	AvgSpending     float64 `json:"avg_spending"`
	TotalHistorical float64 `json:"total_historical"`
	PredictedTotal  float64 `json:"predicted_total"`
}

// CategoryForecastResult holds per-category projections.
type CategoryForecastResult struct {
	Forecasts          map[string]CategoryForecast `json:"forecasts"`
	ForecastPeriodDays int                         `json:"forecast_period_days"`
}

// ForecastByCategory runs the forecast pipeline per category. Categories with
// fewer than seven observed spending days skip model fitting and project the
// mean transaction amount over the horizon.
func (a *Analyzer) ForecastByCategory(ctx context.Context, userID string, horizonDays int) (*CategoryForecastResult, error) {
	if horizonDays <= 0 {
		horizonDays = a.reqs.ForecastPeriodDays
	}

	txns, err := a.fetchAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(txns) == 0 {
		return nil, &InsufficientDataError{
			Op:      "category forecasting",
			Verdict: CheckDataSufficiency(nil, a.reqs.MinDays, 1, 1),
		}
	}

	byCategory := make(map[string][]model.Transaction)
	for _, t := range expensesOf(txns) {
		byCategory[t.Category] = append(byCategory[t.Category], t)
	}

	forecasts := make(map[string]CategoryForecast, len(byCategory))
	for category, rows := range byCategory {
		amounts := make([]float64, len(rows))
		for i, t := range rows {
			amounts[i] = t.Amount
		}

		daily, _ := dailyObservedSeries(rows)
		if len(daily) < 7 {
			txnMean := mean(amounts)
			forecasts[category] = CategoryForecast{
				AvgSpending:     round2(txnMean),
				TotalHistorical: round2(sum(amounts)),
				PredictedTotal:  round2(txnMean * float64(horizonDays)),
			}
			continue
		}

		dailyMean := mean(daily)
		predictedTotal := dailyMean * float64(horizonDays)
		if m, err := a.fitter.Fit(daily); err == nil {
			var total float64
			for _, p := range m.Predict(horizonDays) {
				total += p.Point
			}
			predictedTotal = total
		} else {
			a.log.WithField("category", category).WithError(&FitError{Err: err}).
				Debug("category forecast model unavailable, projecting daily mean")
		}

		forecasts[category] = CategoryForecast{
			AvgSpending:     round2(dailyMean),
			TotalHistorical: round2(sum(amounts)),
			PredictedTotal:  clampNonNegative(round2(predictedTotal)),
		}
	}

	return &CategoryForecastResult{
		Forecasts:          forecasts,
		ForecastPeriodDays: horizonDays,
	}, nil
}

// dailyExpenseSeries aggregates expenses into a contiguous daily series,
// filling missing calendar days with zero spend. The fitting step requires a
// gap-free series.
func dailyExpenseSeries(expenses []model.Transaction) (series []float64, lastDate time.Time) {
	totals, first, last := dayTotals(expenses)
	if totals == nil {
		return nil, time.Time{}
	}

	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		series = append(series, totals[d.Format("2006-01-02")])
	}
	return series, last
}

// dailyObservedSeries aggregates by day but keeps only days with spending.
func dailyObservedSeries(expenses []model.Transaction) (series []float64, lastDate time.Time) {
	totals, first, last := dayTotals(expenses)
	if totals == nil {
		return nil, time.Time{}
	}

	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		if v, ok := totals[d.Format("2006-01-02")]; ok {
			series = append(series, v)
		}
	}
	return series, last
}

// dayTotals sums amounts per calendar day and reports the date range.
func dayTotals(txns []model.Transaction) (totals map[string]float64, first, last time.Time) {
	if len(txns) == 0 {
		return nil, time.Time{}, time.Time{}
	}

	totals = make(map[string]float64)
	for i, t := range txns {
		day := time.Date(t.Date.Year(), t.Date.Month(), t.Date.Day(), 0, 0, 0, 0, time.UTC)
		totals[day.Format("2006-01-02")] += t.Amount
		if i == 0 || day.Before(first) {
			first = day
		}
		if i == 0 || day.After(last) {
			last = day
		}
	}
	return totals, first, last
}
