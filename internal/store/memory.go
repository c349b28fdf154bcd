package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/finsight/analytics/internal/model"
)

// MemoryStore implements Store interface with in-memory storage
type MemoryStore struct {
	mu sync.RWMutex

	transactions map[string]*model.Transaction
	budgets      map[string]*model.Budget
	goals        map[string]*model.Goal
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transactions: make(map[string]*model.Transaction),
		budgets:      make(map[string]*model.Budget),
		goals:        make(map[string]*model.Goal),
	}
}

// CreateTransaction stores a transaction
func (s *MemoryStore) CreateTransaction(ctx context.Context, txn *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *txn
	s.transactions[txn.ID] = &cp
	return nil
}

// GetTransaction retrieves a transaction by ID
func (s *MemoryStore) GetTransaction(ctx context.Context, txnID string) (*model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	txn, ok := s.transactions[txnID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *txn
	return &cp, nil
}

// ListTransactions lists a user's transactions ordered by date ascending
func (s *MemoryStore) ListTransactions(ctx context.Context, userID string, startDate, endDate *time.Time) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var txns []model.Transaction
	for _, txn := range s.transactions {
		if txn.UserID != userID {
			continue
		}
		if startDate != nil && txn.Date.Before(*startDate) {
			continue
		}
		if endDate != nil && txn.Date.After(*endDate) {
			continue
		}
		txns = append(txns, *txn)
	}

	sort.Slice(txns, func(i, j int) bool {
		return txns[i].Date.Before(txns[j].Date)
	})
	return txns, nil
}

// CreateBudget stores a budget
func (s *MemoryStore) CreateBudget(ctx context.Context, budget *model.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *budget
	s.budgets[budget.ID] = &cp
	return nil
}

// ListBudgets lists a user's budgets, optionally active only
func (s *MemoryStore) ListBudgets(ctx context.Context, userID string, activeOnly bool) ([]model.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var budgets []model.Budget
	for _, budget := range s.budgets {
		if budget.UserID != userID {
			continue
		}
		if activeOnly && !budget.IsActive {
			continue
		}
		budgets = append(budgets, *budget)
	}

	sort.Slice(budgets, func(i, j int) bool {
		return budgets[i].ID < budgets[j].ID
	})
	return budgets, nil
}

// CreateGoal stores a goal
func (s *MemoryStore) CreateGoal(ctx context.Context, goal *model.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *goal
	s.goals[goal.ID] = &cp
	return nil
}

// ListGoals lists a user's goals, excluding completed ones unless requested
func (s *MemoryStore) ListGoals(ctx context.Context, userID string, includeCompleted bool) ([]model.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var goals []model.Goal
	for _, goal := range s.goals {
		if goal.UserID != userID {
			continue
		}
		if !includeCompleted && goal.IsCompleted {
			continue
		}
		goals = append(goals, *goal)
	}

	sort.Slice(goals, func(i, j int) bool {
		return goals[i].ID < goals[j].ID
	})
	return goals, nil
}
