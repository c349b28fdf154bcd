// Package analysis implements the statistical core of the service: data
// sufficiency gating, category statistics, spending forecasts, anomaly
// detection, budget recommendations, goal predictions and the cross-model
// insight aggregation.
package analysis

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/finsight/analytics/internal/config"
	"github.com/finsight/analytics/internal/model"
	"github.com/finsight/analytics/internal/narrative"
	"github.com/finsight/analytics/internal/outlier"
	"github.com/finsight/analytics/internal/store"
	"github.com/finsight/analytics/internal/timeseries"
)

// Analyzer runs all analytical operations. It holds no per-request state;
// every operation derives its outputs afresh from the fetched sample.
type Analyzer struct {
	store  store.Store
	fitter timeseries.Fitter
	scorer outlier.Scorer
	gen    narrative.Generator
	reqs   config.Requirements
	log    *logrus.Entry

	now func() time.Time
}

// New creates an Analyzer with the given collaborators.
func New(st store.Store, fitter timeseries.Fitter, scorer outlier.Scorer, gen narrative.Generator, reqs config.Requirements, log *logrus.Entry) *Analyzer {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Analyzer{
		store:  st,
		fitter: fitter,
		scorer: scorer,
		gen:    gen,
		reqs:   reqs,
		log:    log,
		now:    time.Now,
	}
}

// fetchAll returns the user's full transaction history, ordered by date.
func (a *Analyzer) fetchAll(ctx context.Context, userID string) ([]model.Transaction, error) {
	txns, err := a.store.ListTransactions(ctx, userID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch transactions: %w", err)
	}
	return txns, nil
}

// fetchRecent returns the user's transactions from the last N days.
func (a *Analyzer) fetchRecent(ctx context.Context, userID string, days int) ([]model.Transaction, error) {
	end := a.now()
	start := end.AddDate(0, 0, -days)
	txns, err := a.store.ListTransactions(ctx, userID, &start, &end)
	if err != nil {
		return nil, fmt.Errorf("fetch transactions: %w", err)
	}
	return txns, nil
}

// expensesOf filters a sample down to its expense rows.
func expensesOf(txns []model.Transaction) []model.Transaction {
	var out []model.Transaction
	for _, t := range txns {
		if t.IsExpense() {
			out = append(out, t)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Shared numeric helpers
// ---------------------------------------------------------------------------

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sampleStd is the n-1 denominator standard deviation; 0 for fewer than two
// observations.
func sampleStd(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(n-1))
}

// popStd is the population standard deviation used for feature scaling.
func popStd(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(n))
}

func median(xs []float64) float64 {
	return quantile(xs, 0.5)
}

// quantile uses linear interpolation between closest ranks.
func quantile(xs []float64, q float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, xs)
	sort.Float64s(sorted)

	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

func minMax(xs []float64) (lo, hi float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	lo, hi = xs[0], xs[0]
	for _, x := range xs[1:] {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	return lo, hi
}

func sum(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s
}

// round2 rounds to two decimal places, matching the wire precision of every
// money figure the service reports.
func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func clampNonNegative(x float64) float64 {
	if x < 0 {
		return 0
	}
	return x
}

// monthKey buckets a timestamp into its calendar month.
func monthKey(t time.Time) string {
	return t.Format("2006-01")
}

// monthsBetween counts whole calendar months from a to b, ignoring days.
func monthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}
