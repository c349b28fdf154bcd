package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/finsight/analytics/internal/model"
)

// FirestoreStore implements the Store interface using Firestore
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore creates a new Firestore-backed store
func NewFirestoreStore(client *firestore.Client) Store {
	return &FirestoreStore{
		client: client,
	}
}

// CreateTransaction creates a new transaction in Firestore
func (s *FirestoreStore) CreateTransaction(ctx context.Context, txn *model.Transaction) error {
	_, err := s.client.Collection("transactions").Doc(txn.ID).Set(ctx, txn)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// GetTransaction retrieves a transaction by ID
func (s *FirestoreStore) GetTransaction(ctx context.Context, txnID string) (*model.Transaction, error) {
	doc, err := s.client.Collection("transactions").Doc(txnID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	var txn model.Transaction
	if err := doc.DataTo(&txn); err != nil {
		return nil, fmt.Errorf("failed to parse transaction: %w", err)
	}
	return &txn, nil
}

// ListTransactions lists a user's transactions ordered by date ascending.
// A nil startDate/endDate leaves that side of the range unbounded.
func (s *FirestoreStore) ListTransactions(ctx context.Context, userID string, startDate, endDate *time.Time) ([]model.Transaction, error) {
	query := s.client.Collection("transactions").Query.Where("userId", "==", userID)

	if startDate != nil {
		query = query.Where("date", ">=", *startDate)
	}
	if endDate != nil {
		query = query.Where("date", "<=", *endDate)
	}
	query = query.OrderBy("date", firestore.Asc)

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	txns := make([]model.Transaction, 0, len(docs))
	for _, doc := range docs {
		var txn model.Transaction
		if err := doc.DataTo(&txn); err != nil {
			return nil, fmt.Errorf("failed to parse transaction: %w", err)
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

// CreateBudget creates a new budget in Firestore
func (s *FirestoreStore) CreateBudget(ctx context.Context, budget *model.Budget) error {
	_, err := s.client.Collection("budgets").Doc(budget.ID).Set(ctx, budget)
	if err != nil {
		return fmt.Errorf("failed to create budget: %w", err)
	}
	return nil
}

// ListBudgets lists a user's budgets, optionally filtered to active ones
func (s *FirestoreStore) ListBudgets(ctx context.Context, userID string, activeOnly bool) ([]model.Budget, error) {
	query := s.client.Collection("budgets").Query.Where("userId", "==", userID)
	if activeOnly {
		query = query.Where("isActive", "==", true)
	}

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}

	budgets := make([]model.Budget, 0, len(docs))
	for _, doc := range docs {
		var budget model.Budget
		if err := doc.DataTo(&budget); err != nil {
			return nil, fmt.Errorf("failed to parse budget: %w", err)
		}
		budgets = append(budgets, budget)
	}
	return budgets, nil
}

// CreateGoal creates a new goal in Firestore
func (s *FirestoreStore) CreateGoal(ctx context.Context, goal *model.Goal) error {
	_, err := s.client.Collection("goals").Doc(goal.ID).Set(ctx, goal)
	if err != nil {
		return fmt.Errorf("failed to create goal: %w", err)
	}
	return nil
}

// ListGoals lists a user's goals, excluding completed ones unless requested
func (s *FirestoreStore) ListGoals(ctx context.Context, userID string, includeCompleted bool) ([]model.Goal, error) {
	query := s.client.Collection("goals").Query.Where("userId", "==", userID)
	if !includeCompleted {
		query = query.Where("isCompleted", "==", false)
	}

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}

	goals := make([]model.Goal, 0, len(docs))
	for _, doc := range docs {
		var goal model.Goal
		if err := doc.DataTo(&goal); err != nil {
			return nil, fmt.Errorf("failed to parse goal: %w", err)
		}
		goals = append(goals, goal)
	}
	return goals, nil
}
