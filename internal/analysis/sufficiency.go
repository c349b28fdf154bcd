package analysis

import (
	"fmt"
	"strings"
	"time"

	"github.com/finsight/analytics/internal/model"
)

// SufficiencyVerdict reports whether a sample carries enough history for a
// statistical model, along with the measured quantities behind the decision.
// Derived per request, never persisted.
type SufficiencyVerdict struct {
	Sufficient          bool   `json:"sufficient"`
	Reason              string `json:"reason"`
	DaysOfData          int    `json:"days_of_data"`
	TotalTransactions   int    `json:"total_transactions"`
	ExpenseTransactions int    `json:"expense_transactions"`
	OldestTransaction   string `json:"oldest_transaction,omitempty"`
	NewestTransaction   string `json:"newest_transaction,omitempty"`
}

// CheckDataSufficiency decides whether the sample SPANS enough days and holds
// enough rows for analysis. The span is the distance between the oldest and
// newest transaction, not how recent the data is: a user with sparse old data
// still passes when the span is wide enough. The three thresholds are
// independent and every failing clause appears in the reason.
func CheckDataSufficiency(txns []model.Transaction, minDays, minTransactions, minExpenses int) SufficiencyVerdict {
	if len(txns) == 0 {
		return SufficiencyVerdict{
			Sufficient: false,
			Reason:     "No transaction data found",
		}
	}

	oldest, newest := txns[0].Date, txns[0].Date
	expenseCount := 0
	for _, t := range txns {
		if t.Date.Before(oldest) {
			oldest = t.Date
		}
		if t.Date.After(newest) {
			newest = t.Date
		}
		if t.IsExpense() {
			expenseCount++
		}
	}

	daysOfData := daySpan(oldest, newest)
	total := len(txns)

	var reasons []string
	if daysOfData < minDays {
		reasons = append(reasons, fmt.Sprintf("Data spans only %d days (need %d+)", daysOfData, minDays))
	}
	if total < minTransactions {
		reasons = append(reasons, fmt.Sprintf("Only %d transactions (need %d+)", total, minTransactions))
	}
	if expenseCount < minExpenses {
		reasons = append(reasons, fmt.Sprintf("Only %d expense transactions (need %d+)", expenseCount, minExpenses))
	}

	reason := "Data is sufficient"
	if len(reasons) > 0 {
		reason = strings.Join(reasons, "; ")
	}

	return SufficiencyVerdict{
		Sufficient:          len(reasons) == 0,
		Reason:              reason,
		DaysOfData:          daysOfData,
		TotalTransactions:   total,
		ExpenseTransactions: expenseCount,
		OldestTransaction:   oldest.Format("2006-01-02"),
		NewestTransaction:   newest.Format("2006-01-02"),
	}
}

// daySpan is the inclusive calendar-day distance between two timestamps.
func daySpan(oldest, newest time.Time) int {
	return int(newest.Sub(oldest).Hours()/24) + 1
}
