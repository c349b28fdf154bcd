package store

import (
	"context"
	"errors"
	"time"

	"github.com/finsight/analytics/internal/model"
)

//go:generate mockgen -source=store.go -destination=store_mock.go -package=store

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the database operations used by the analytics service.
// Transactions are always returned ordered by date ascending.
type Store interface {
	// Transaction operations
	CreateTransaction(ctx context.Context, txn *model.Transaction) error
	GetTransaction(ctx context.Context, txnID string) (*model.Transaction, error)
	ListTransactions(ctx context.Context, userID string, startDate, endDate *time.Time) ([]model.Transaction, error)

	// Budget operations
	CreateBudget(ctx context.Context, budget *model.Budget) error
	ListBudgets(ctx context.Context, userID string, activeOnly bool) ([]model.Budget, error)

	// Goal operations
	CreateGoal(ctx context.Context, goal *model.Goal) error
	ListGoals(ctx context.Context, userID string, includeCompleted bool) ([]model.Goal, error)
}
