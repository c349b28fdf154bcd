package model

import "time"

// TransactionKind distinguishes money coming in from money going out.
type TransactionKind string

const (
	KindIncome  TransactionKind = "income"
	KindExpense TransactionKind = "expense"
)

// Transaction is a single financial record fetched from the store. The
// analytics layer treats transactions as immutable read-only copies for the
// duration of one request.
type Transaction struct {
	ID          string          `firestore:"id" json:"id"`
	UserID      string          `firestore:"userId" json:"user_id"`
	Date        time.Time       `firestore:"date" json:"date"`
	Amount      float64         `firestore:"amount" json:"amount"`
	Kind        TransactionKind `firestore:"kind" json:"type"`
	Category    string          `firestore:"category" json:"category"`
	Description string          `firestore:"description" json:"description"`
}

// IsExpense reports whether the transaction is an expense row.
func (t Transaction) IsExpense() bool { return t.Kind == KindExpense }

// Budget is a user-defined spending limit. Category holds a category document
// reference while Name is free text; recommendation comparison matches by Name.
type Budget struct {
	ID       string    `firestore:"id" json:"id"`
	UserID   string    `firestore:"userId" json:"user_id"`
	Name     string    `firestore:"name" json:"name"`
	Category string    `firestore:"category" json:"category"`
	Amount   float64   `firestore:"amount" json:"amount"`
	IsActive bool      `firestore:"isActive" json:"is_active"`
	Created  time.Time `firestore:"createdAt" json:"created_at"`
}

// Goal is a savings target the user is working toward.
type Goal struct {
	ID            string     `firestore:"id" json:"id"`
	UserID        string     `firestore:"userId" json:"user_id"`
	Title         string     `firestore:"title" json:"title"`
	TargetAmount  float64    `firestore:"targetAmount" json:"target_amount"`
	CurrentAmount float64    `firestore:"currentAmount" json:"current_amount"`
	Deadline      *time.Time `firestore:"deadline" json:"deadline,omitempty"`
	IsCompleted   bool       `firestore:"isCompleted" json:"is_completed"`
}
