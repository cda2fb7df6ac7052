// internal/models/transaction.go
package models

import (
	"fmt"
	"time"
)

type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// TransactionStatus follows a strict two-phase lifecycle: every transaction
// is recorded pending and moves exactly once to approved or rejected. Only
// approved income feeds revenue distribution and token issuance.
type TransactionStatus string

const (
	TransactionPending  TransactionStatus = "pending"
	TransactionApproved TransactionStatus = "approved"
	TransactionRejected TransactionStatus = "rejected"
)

// FinancialTransaction is an income or expense event recorded against an
// operating franchise.
type FinancialTransaction struct {
	ID              string            `json:"id"`
	FranchiseID     string            `json:"franchiseId"`
	Type            TransactionType   `json:"type"`
	Category        string            `json:"category"`
	Amount          Money             `json:"amount"`
	Currency        string            `json:"currency"`
	TransactionDate time.Time         `json:"transactionDate"`
	Status          TransactionStatus `json:"status"`

	// AppliedAt is set when the downstream accounting for the settled
	// transaction committed: the revenue split for income, the token
	// repricing for expenses. Nil means a settled transaction still owes
	// that work.
	AppliedAt *time.Time `json:"appliedAt,omitempty"`

	// FRCTokensIssued records how many tokens this income event minted.
	// Nil until the performance issuance for the transaction commits, so
	// a replay can tell "minted zero" from "never ran".
	FRCTokensIssued *int64 `json:"frcTokensIssued,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

func NewFinancialTransaction(id, franchiseID string, txType TransactionType, category string, amount Money, currency string, date time.Time) (*FinancialTransaction, error) {
	if id == "" || franchiseID == "" {
		return nil, fmt.Errorf("transaction requires id and franchiseId")
	}
	if txType != TransactionIncome && txType != TransactionExpense {
		return nil, fmt.Errorf("invalid transaction type %q", txType)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("transaction amount must be positive, got %d", amount)
	}
	if currency == "" {
		currency = "INR"
	}
	return &FinancialTransaction{
		ID:              id,
		FranchiseID:     franchiseID,
		Type:            txType,
		Category:        category,
		Amount:          amount,
		Currency:        currency,
		TransactionDate: date,
		Status:          TransactionPending,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// Approve moves pending → approved. Approved and rejected are terminal.
func (t *FinancialTransaction) Approve() error {
	if t.Status != TransactionPending {
		return fmt.Errorf("cannot approve transaction in status %q", t.Status)
	}
	t.Status = TransactionApproved
	return nil
}

// Reject moves pending → rejected.
func (t *FinancialTransaction) Reject() error {
	if t.Status != TransactionPending {
		return fmt.Errorf("cannot reject transaction in status %q", t.Status)
	}
	t.Status = TransactionRejected
	return nil
}
