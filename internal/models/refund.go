// internal/models/refund.go
package models

import (
	"time"
)

// RefundStatus tracks a single investor refund through the payment rail.
type RefundStatus string

const (
	RefundPending RefundStatus = "pending"
	RefundSettled RefundStatus = "settled"
	RefundFailed  RefundStatus = "failed"
)

// Refund is the idempotency record for returning one investor's capital
// when a campaign fails. Refunds are keyed by (franchiseId, investorId) so
// a re-run of the sweep skips investors already settled.
type Refund struct {
	ID          string       `json:"id"`
	FranchiseID string       `json:"franchiseId"`
	InvestorID  string       `json:"investorId"`
	Amount      Money        `json:"amount"`
	Shares      int64        `json:"shares"`
	Status      RefundStatus `json:"status"`
	Receipt     string       `json:"receipt,omitempty"`
	FailReason  string       `json:"failReason,omitempty"`
	AttemptedAt time.Time    `json:"attemptedAt"`
	SettledAt   *time.Time   `json:"settledAt,omitempty"`
}

// DividendBalance is the per-investor dividend ledger. Claims are debits
// against this record, never recomputations.
type DividendBalance struct {
	FranchiseID string `json:"franchiseId"`
	InvestorID  string `json:"investorId"`
	Accrued     Money  `json:"accrued"`
	Claimed     Money  `json:"claimed"`
}

// Pending is the amount the investor can still withdraw.
func (d DividendBalance) Pending() Money {
	return d.Accrued - d.Claimed
}
