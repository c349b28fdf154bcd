//go:build ignore
// +build ignore

// seed-demo seeds 6 months of realistic financial data for a demo user so
// every analytics model has enough history to produce output.
//
// Usage:
//   export GCP_PROJECT=my-project
//   go run scripts/seed-demo.go
//
// The data is deterministic: re-running produces the same transactions.

package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/joho/godotenv"

	"github.com/finsight/analytics/internal/model"
	"github.com/finsight/analytics/internal/store"
)

const demoUserID = "demo-user"

type spendingProfile struct {
	category string
	// average amount and day-to-day jitter
	avg, jitter float64
	// probability a given day has a purchase in this category
	frequency float64
}

var profiles = []spendingProfile{
	{"Groceries", 65, 20, 0.55},
	{"Dining", 35, 15, 0.35},
	{"Transport", 18, 6, 0.45},
	{"Entertainment", 40, 25, 0.15},
	{"Utilities", 120, 10, 0.04},
	{"Shopping", 80, 50, 0.12},
}

func main() {
	_ = godotenv.Load()
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	project := os.Getenv("GCP_PROJECT")
	if project == "" {
		log.Fatal("GCP_PROJECT is required")
	}

	log.Printf("connecting to Firestore project %s...", project)
	client, err := firestore.NewClient(ctx, project)
	if err != nil {
		log.Fatalf("firestore: %v", err)
	}
	defer client.Close()
	st := store.NewFirestoreStore(client)

	end := time.Now().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(0, -6, 0)

	var count int
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		// Salary on the first of the month.
		if day.Day() == 1 {
			salary := model.Transaction{
				ID:          fmt.Sprintf("demo-salary-%s", day.Format("2006-01")),
				UserID:      demoUserID,
				Date:        day,
				Amount:      5200,
				Kind:        model.KindIncome,
				Category:    "Salary",
				Description: "Monthly salary",
			}
			if err := st.CreateTransaction(ctx, &salary); err != nil {
				log.Fatalf("create salary: %v", err)
			}
			count++
		}

		for _, p := range profiles {
			if rng.Float64() > p.frequency {
				continue
			}
			amount := p.avg + (rng.Float64()*2-1)*p.jitter
			if amount < 1 {
				amount = 1
			}
			txn := model.Transaction{
				ID:          fmt.Sprintf("demo-%s-%s-%d", p.category, day.Format("2006-01-02"), count),
				UserID:      demoUserID,
				Date:        day,
				Amount:      float64(int(amount*100)) / 100,
				Kind:        model.KindExpense,
				Category:    p.category,
				Description: fmt.Sprintf("%s purchase", p.category),
			}
			if err := st.CreateTransaction(ctx, &txn); err != nil {
				log.Fatalf("create transaction: %v", err)
			}
			count++
		}
	}
	log.Printf("seeded %d transactions", count)

	// A couple of anomalous purchases so anomaly detection has something to find.
	for i, spike := range []float64{1450, 980} {
		txn := model.Transaction{
			ID:          fmt.Sprintf("demo-spike-%d", i),
			UserID:      demoUserID,
			Date:        end.AddDate(0, 0, -7*(i+1)),
			Amount:      spike,
			Kind:        model.KindExpense,
			Category:    "Shopping",
			Description: "Large one-off purchase",
		}
		if err := st.CreateTransaction(ctx, &txn); err != nil {
			log.Fatalf("create spike: %v", err)
		}
	}
	log.Println("seeded anomalous purchases")

	budgets := []model.Budget{
		{ID: "demo-budget-groceries", UserID: demoUserID, Name: "Groceries", Category: "Groceries", Amount: 1100, IsActive: true, Created: end},
		{ID: "demo-budget-dining", UserID: demoUserID, Name: "Dining", Category: "Dining", Amount: 350, IsActive: true, Created: end},
	}
	for i := range budgets {
		if err := st.CreateBudget(ctx, &budgets[i]); err != nil {
			log.Fatalf("create budget: %v", err)
		}
	}
	log.Printf("seeded %d budgets", len(budgets))

	deadline := end.AddDate(1, 0, 0)
	goals := []model.Goal{
		{ID: "demo-goal-emergency", UserID: demoUserID, Title: "Emergency Fund", TargetAmount: 10000, CurrentAmount: 3500, Deadline: &deadline},
		{ID: "demo-goal-holiday", UserID: demoUserID, Title: "Holiday", TargetAmount: 3000, CurrentAmount: 800},
	}
	for i := range goals {
		if err := st.CreateGoal(ctx, &goals[i]); err != nil {
			log.Fatalf("create goal: %v", err)
		}
	}
	log.Printf("seeded %d goals", len(goals))

	log.Printf("done: user %s is ready for analytics", demoUserID)
}
