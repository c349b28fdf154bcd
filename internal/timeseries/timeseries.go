// Package timeseries provides the model-fitting capability used for spending
// forecasts. Callers treat it as a black box: fit a contiguous daily series,
// predict N days forward with point and interval estimates.
package timeseries

import (
	"fmt"
	"math"
)

// Prediction is a single forecast step.
type Prediction struct {
	Point float64
	Lower float64
	Upper float64
}

// Model produces predictions for the days following the fitted series.
type Model interface {
	Predict(horizon int) []Prediction
}

// Fitter fits a forecasting model to a contiguous daily series.
type Fitter interface {
	Fit(series []float64) (Model, error)
}

// minFitPoints is the fewest observations a model can be fit on.
const minFitPoints = 7

// seasonalPeriod is the weekly cycle length used for seasonal offsets.
const seasonalPeriod = 7

// SeasonalTrendFitter fits a linear trend with additive weekly seasonality.
// Interval width comes from the residual standard deviation at a 90%
// confidence level.
type SeasonalTrendFitter struct{}

// NewSeasonalTrendFitter creates the default fitter.
func NewSeasonalTrendFitter() *SeasonalTrendFitter {
	return &SeasonalTrendFitter{}
}

// Fit estimates trend and seasonal components from the series.
func (f *SeasonalTrendFitter) Fit(series []float64) (Model, error) {
	n := len(series)
	if n < minFitPoints {
		return nil, fmt.Errorf("series has %d points, need %d+", n, minFitPoints)
	}
	for i, v := range series {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("series contains non-finite value at index %d", i)
		}
	}

	slope, intercept := linearFit(series)

	// Weekly offsets are mean detrended residuals per position in the cycle.
	// Skip seasonality when there are fewer than two full cycles.
	seasonal := make([]float64, seasonalPeriod)
	if n >= 2*seasonalPeriod {
		counts := make([]int, seasonalPeriod)
		for i, v := range series {
			detrended := v - (intercept + slope*float64(i))
			seasonal[i%seasonalPeriod] += detrended
			counts[i%seasonalPeriod]++
		}
		for i := range seasonal {
			if counts[i] > 0 {
				seasonal[i] /= float64(counts[i])
			}
		}
	}

	// Residual spread for the interval estimate.
	var ssRes float64
	for i, v := range series {
		fitted := intercept + slope*float64(i) + seasonal[i%seasonalPeriod]
		ssRes += (v - fitted) * (v - fitted)
	}
	resStd := math.Sqrt(ssRes / float64(n))

	return &seasonalTrendModel{
		slope:     slope,
		intercept: intercept,
		seasonal:  seasonal,
		resStd:    resStd,
		n:         n,
	}, nil
}

type seasonalTrendModel struct {
	slope     float64
	intercept float64
	seasonal  []float64
	resStd    float64
	n         int
}

// Predict extrapolates the fitted components horizon days past the series end.
func (m *seasonalTrendModel) Predict(horizon int) []Prediction {
	const z90 = 1.645

	preds := make([]Prediction, 0, horizon)
	for i := 0; i < horizon; i++ {
		idx := m.n + i
		point := m.intercept + m.slope*float64(idx) + m.seasonal[idx%seasonalPeriod]
		preds = append(preds, Prediction{
			Point: point,
			Lower: point - z90*m.resStd,
			Upper: point + z90*m.resStd,
		})
	}
	return preds
}

// linearFit computes least-squares slope and intercept for y over x=0..n-1.
func linearFit(points []float64) (slope, intercept float64) {
	n := float64(len(points))
	var sumX, sumY, sumXY, sumX2 float64
	for i, y := range points {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}
	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}
