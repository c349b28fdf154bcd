package analysis

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/finsight/analytics/internal/model"
)

// Anomaly severity levels.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

// AnomalyRecord is one transaction flagged as unusual. Scores follow the
// scoring model's convention: lower means more anomalous.
type AnomalyRecord struct {
	ID           string  `json:"id"`
	Date         string  `json:"date"`
	Amount       float64 `json:"amount"`
	Category     string  `json:"category"`
	Description  string  `json:"description"`
	AnomalyScore float64 `json:"anomaly_score"`
	Severity     string  `json:"severity"`
	Reason       string  `json:"reason"`
}

// AnomalyStatistics summarizes a detection run.
type AnomalyStatistics struct {
	TotalTransactions      int     `json:"total_transactions"`
	AnomaliesDetected      int     `json:"anomalies_detected"`
	AnomalyPercentage      float64 `json:"anomaly_percentage"`
	TotalAnomalousSpending float64 `json:"total_anomalous_spending"`
	AvgTransactionAmount   float64 `json:"avg_transaction_amount"`
	AvgAnomalyAmount       float64 `json:"avg_anomaly_amount"`
	PeriodDays             int     `json:"period_days"`
}

// AnomalyResult is the full output of anomaly detection, most anomalous first.
type AnomalyResult struct {
	Anomalies  []AnomalyRecord   `json:"anomalies"`
	Statistics AnomalyStatistics `json:"statistics"`
}

// expenseFeatures are the engineered per-transaction features fed to the
// outlier model.
type expenseFeatures struct {
	amount        float64
	dayOfWeek     float64 // Monday=0 .. Sunday=6
	dayOfMonth    float64
	rollingMean7  float64
	amountVsMean  float64
}

// DetectAnomalies scores the user's expense transactions for outlier-ness.
// The learned model runs on standardized engineered features; if it fails the
// per-category quartile method takes over.
func (a *Analyzer) DetectAnomalies(ctx context.Context, userID string, contamination float64) (*AnomalyResult, error) {
	if contamination <= 0 {
		contamination = 0.1
	}

	txns, err := a.fetchAll(ctx, userID)
	if err != nil {
		return nil, err
	}

	verdict := CheckDataSufficiency(txns, a.reqs.MinDays, a.reqs.MinTransactions, a.reqs.MinExpenses)
	if !verdict.Sufficient {
		return nil, &InsufficientDataError{Op: "anomaly detection", Verdict: verdict}
	}

	expenses := expensesOf(txns)
	features := buildExpenseFeatures(expenses)

	amounts := make([]float64, len(expenses))
	for i, t := range expenses {
		amounts[i] = t.Amount
	}

	// Severity is judged against the rolling-mean baseline, not the model.
	var rollingMeans []float64
	for _, f := range features {
		rollingMeans = append(rollingMeans, f.rollingMean7)
	}
	baselineMean := mean(rollingMeans)
	amountStd := sampleStd(amounts)

	records := a.scoreExpenses(expenses, features, contamination, baselineMean, amountStd)

	// Most anomalous first.
	sort.Slice(records, func(i, j int) bool {
		return records[i].AnomalyScore < records[j].AnomalyScore
	})

	var anomalousTotal float64
	for _, r := range records {
		anomalousTotal += r.Amount
	}
	avgAnomaly := 0.0
	if len(records) > 0 {
		avgAnomaly = anomalousTotal / float64(len(records))
	}

	return &AnomalyResult{
		Anomalies: records,
		Statistics: AnomalyStatistics{
			TotalTransactions:      len(expenses),
			AnomaliesDetected:      len(records),
			AnomalyPercentage:      round2(float64(len(records)) / float64(len(expenses)) * 100),
			TotalAnomalousSpending: round2(anomalousTotal),
			AvgTransactionAmount:   round2(mean(amounts)),
			AvgAnomalyAmount:       round2(avgAnomaly),
			PeriodDays:             verdict.DaysOfData,
		},
	}, nil
}

// scoreExpenses runs the learned outlier model; on failure it substitutes the
// deterministic per-category quartile fallback.
func (a *Analyzer) scoreExpenses(expenses []model.Transaction, features []expenseFeatures, contamination, baselineMean, amountStd float64) []AnomalyRecord {
	matrix := make([][]float64, len(features))
	for i, f := range features {
		matrix[i] = []float64{f.amount, f.dayOfWeek, f.dayOfMonth, f.rollingMean7, f.amountVsMean}
	}
	standardize(matrix)

	flags, scores, err := a.scorer.FitScore(matrix, contamination)
	if err != nil {
		a.log.WithError(&FitError{Err: err}).Warn("outlier model failed, using quartile fallback")
		return quartileFallbackRecords(expenses, baselineMean, amountStd)
	}

	var records []AnomalyRecord
	for i, flagged := range flags {
		if !flagged {
			continue
		}
		t := expenses[i]
		z := zScore(t.Amount, baselineMean, amountStd)
		records = append(records, AnomalyRecord{
			ID:           uuid.New().String(),
			Date:         t.Date.Format("2006-01-02"),
			Amount:       round2(t.Amount),
			Category:     t.Category,
			Description:  t.Description,
			AnomalyScore: round4(scores[i]),
			Severity:     severityFromZ(z),
			Reason:       anomalyReason(t, features[i], baselineMean),
		})
	}
	return records
}

// quartileFallbackRecords flags per-category IQR outliers when the learned
// model is unavailable.
func quartileFallbackRecords(expenses []model.Transaction, baselineMean, amountStd float64) []AnomalyRecord {
	byCategory := make(map[string][]model.Transaction)
	for _, t := range expenses {
		byCategory[t.Category] = append(byCategory[t.Category], t)
	}

	var records []AnomalyRecord
	for category, rows := range byCategory {
		if len(rows) < 5 {
			continue
		}
		amounts := make([]float64, len(rows))
		for i, t := range rows {
			amounts[i] = t.Amount
		}
		lowFence, highFence := iqrFences(amounts)
		catStd := sampleStd(amounts)
		catMean := mean(amounts)

		for _, t := range rows {
			if t.Amount >= lowFence && t.Amount <= highFence {
				continue
			}
			score := 0.0
			if catStd > 0 {
				// Distance-based stand-in for the model score; still
				// lower = more anomalous.
				score = -math.Abs(t.Amount-catMean) / catStd
			}
			records = append(records, AnomalyRecord{
				ID:           uuid.New().String(),
				Date:         t.Date.Format("2006-01-02"),
				Amount:       round2(t.Amount),
				Category:     t.Category,
				Description:  t.Description,
				AnomalyScore: round4(score),
				Severity:     severityFromZ(zScore(t.Amount, baselineMean, amountStd)),
				Reason:       fmt.Sprintf("Amount outside the typical range for %s", category),
			})
		}
	}
	return records
}

// buildExpenseFeatures engineers the model features for each expense row in
// date order. With seven or fewer rows the rolling mean degenerates to the
// global mean and the ratio to 1.0.
func buildExpenseFeatures(expenses []model.Transaction) []expenseFeatures {
	features := make([]expenseFeatures, len(expenses))
	globalMean := 0.0
	if len(expenses) > 0 {
		var s float64
		for _, t := range expenses {
			s += t.Amount
		}
		globalMean = s / float64(len(expenses))
	}

	for i, t := range expenses {
		f := expenseFeatures{
			amount:     t.Amount,
			dayOfWeek:  float64((int(t.Date.Weekday()) + 6) % 7),
			dayOfMonth: float64(t.Date.Day()),
		}

		if len(expenses) > 7 {
			// 7-row trailing window including the current row, minimum one.
			start := i - 6
			if start < 0 {
				start = 0
			}
			var windowSum float64
			for _, w := range expenses[start : i+1] {
				windowSum += w.Amount
			}
			f.rollingMean7 = windowSum / float64(i+1-start)
			if f.rollingMean7 != 0 {
				f.amountVsMean = t.Amount / f.rollingMean7
			}
		} else {
			f.rollingMean7 = globalMean
			f.amountVsMean = 1.0
		}

		features[i] = f
	}
	return features
}

// standardize scales each column to zero mean and unit variance in place.
// Constant columns become all zeros.
func standardize(matrix [][]float64) {
	if len(matrix) == 0 {
		return
	}
	cols := len(matrix[0])
	for c := 0; c < cols; c++ {
		col := make([]float64, len(matrix))
		for r := range matrix {
			col[r] = matrix[r][c]
		}
		m := mean(col)
		sd := popStd(col)
		for r := range matrix {
			if sd == 0 {
				matrix[r][c] = 0
			} else {
				matrix[r][c] = (matrix[r][c] - m) / sd
			}
		}
	}
}

func zScore(amount, baselineMean, amountStd float64) float64 {
	if amountStd == 0 {
		return 0
	}
	return (amount - baselineMean) / amountStd
}

func severityFromZ(z float64) string {
	switch {
	case z > 3:
		return SeverityHigh
	case z > 2:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// anomalyReason builds the human-readable explanation from fixed rules, not
// from the model.
func anomalyReason(t model.Transaction, f expenseFeatures, baselineMean float64) string {
	var reasons []string

	if baselineMean > 0 && t.Amount > baselineMean*2 {
		reasons = append(reasons, fmt.Sprintf("Amount is %.1fx higher than average", t.Amount/baselineMean))
	}
	if f.amountVsMean > 3 {
		reasons = append(reasons, "Significant deviation from recent spending pattern")
	}
	if isWeekend(t.Date) && t.Amount > baselineMean {
		reasons = append(reasons, "Unusually high weekend spending")
	}

	if len(reasons) == 0 {
		return "Statistical anomaly detected in spending pattern"
	}
	return strings.Join(reasons, "; ")
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// CategoryAnomalyStats is the per-category quartile-method breakdown.
type CategoryAnomalyStats struct {
	TotalTransactions int     `json:"total_transactions"`
	OutliersDetected  int     `json:"outliers_detected"`
	AvgAmount         float64 `json:"avg_amount"`
	StdAmount         float64 `json:"std_amount"`
	MaxAmount         float64 `json:"max_amount"`
	MinAmount         float64 `json:"min_amount"`
}

// CategoryAnomalyResult maps category to its outlier breakdown.
type CategoryAnomalyResult struct {
	Categories map[string]CategoryAnomalyStats `json:"categories"`
	PeriodDays int                             `json:"period_days"`
}

// DetectCategoryAnomalies flags per-category outliers with the
// interquartile-range method. This deliberately bypasses the learned model:
// a deterministic univariate breakdown per category, not portfolio scoring.
// Categories with fewer than the configured minimum rows are skipped.
func (a *Analyzer) DetectCategoryAnomalies(ctx context.Context, userID string) (*CategoryAnomalyResult, error) {
	txns, err := a.fetchAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(txns) == 0 {
		return nil, &InsufficientDataError{
			Op:      "category anomaly detection",
			Verdict: CheckDataSufficiency(nil, a.reqs.MinDays, a.reqs.MinTransactions, a.reqs.MinExpenses),
		}
	}

	byCategory := make(map[string][]model.Transaction)
	for _, t := range expensesOf(txns) {
		byCategory[t.Category] = append(byCategory[t.Category], t)
	}

	first, last := txns[0].Date, txns[len(txns)-1].Date
	categories := make(map[string]CategoryAnomalyStats)
	for category, rows := range byCategory {
		if len(rows) < a.reqs.MinCategoryTransactions {
			continue
		}

		amounts := make([]float64, len(rows))
		for i, t := range rows {
			amounts[i] = t.Amount
		}
		lowFence, highFence := iqrFences(amounts)

		outliers := 0
		for _, v := range amounts {
			if v < lowFence || v > highFence {
				outliers++
			}
		}

		lo, hi := minMax(amounts)
		categories[category] = CategoryAnomalyStats{
			TotalTransactions: len(rows),
			OutliersDetected:  outliers,
			AvgAmount:         round2(mean(amounts)),
			StdAmount:         round2(sampleStd(amounts)),
			MaxAmount:         round2(hi),
			MinAmount:         round2(lo),
		}
	}

	return &CategoryAnomalyResult{
		Categories: categories,
		PeriodDays: daySpan(first, last),
	}, nil
}

// iqrFences returns the Tukey fences Q1-1.5*IQR and Q3+1.5*IQR.
func iqrFences(amounts []float64) (low, high float64) {
	q1 := quantile(amounts, 0.25)
	q3 := quantile(amounts, 0.75)
	iqr := q3 - q1
	return q1 - 1.5*iqr, q3 + 1.5*iqr
}

// round4 keeps model scores at four decimal places.
func round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}
