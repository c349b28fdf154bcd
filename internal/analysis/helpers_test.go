package analysis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/finsight/analytics/internal/config"
	"github.com/finsight/analytics/internal/model"
	"github.com/finsight/analytics/internal/outlier"
	"github.com/finsight/analytics/internal/store"
	"github.com/finsight/analytics/internal/timeseries"
)

// testNow is the fixed clock every analyzer test runs against.
var testNow = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

// cannedGenerator returns a fixed narrative or a fixed error.
type cannedGenerator struct {
	text string
	err  error
}

func (g *cannedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.text, nil
}

// promptCapturingGenerator records the prompt it was handed.
type promptCapturingGenerator struct {
	prompt string
	text   string
}

func (g *promptCapturingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.prompt = prompt
	return g.text, nil
}

func newTestAnalyzer(t *testing.T, st store.Store) *Analyzer {
	t.Helper()
	a := New(
		st,
		timeseries.NewSeasonalTrendFitter(),
		outlier.NewIsolationForest(100, 42),
		&cannedGenerator{text: "generated insight"},
		config.DefaultRequirements(),
		logrus.NewEntry(logrus.New()),
	)
	a.now = func() time.Time { return testNow }
	return a
}

func expense(date time.Time, amount float64, category string) model.Transaction {
	return model.Transaction{
		UserID:   "user1",
		Date:     date,
		Amount:   amount,
		Kind:     model.KindExpense,
		Category: category,
	}
}

func income(date time.Time, amount float64) model.Transaction {
	return model.Transaction{
		UserID:   "user1",
		Date:     date,
		Amount:   amount,
		Kind:     model.KindIncome,
		Category: "Salary",
	}
}

// seedDailyHistory inserts one expense per day plus a salary on the first of
// each month, ending at the fixed clock. Enough to pass every sufficiency
// gate when days covers the thresholds.
func seedDailyHistory(t *testing.T, st store.Store, days int, dailyAmount float64) {
	t.Helper()
	ctx := context.Background()

	start := testNow.AddDate(0, 0, -days+1)
	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i)
		tx := expense(day, dailyAmount, "Groceries")
		tx.ID = fmt.Sprintf("txn-%d", i)
		if err := st.CreateTransaction(ctx, &tx); err != nil {
			t.Fatalf("seed transaction: %v", err)
		}
		if day.Day() == 1 {
			sal := income(day, 3000)
			sal.ID = fmt.Sprintf("salary-%d", i)
			if err := st.CreateTransaction(ctx, &sal); err != nil {
				t.Fatalf("seed salary: %v", err)
			}
		}
	}
}
