// internal/models/share.go
package models

import (
	"fmt"
	"time"
)

// Share is one investor's purchase in a funding campaign. The sum of
// NumberOfShares across a franchise's shares must always equal that
// franchise's SelectedShares.
type Share struct {
	ID             string    `json:"id"`
	FranchiseID    string    `json:"franchiseId"`
	InvestorID     string    `json:"investorId"`
	NumberOfShares int64     `json:"numberOfShares"`
	CostPerShare   Money     `json:"costPerShare"`
	PurchaseDate   time.Time `json:"purchaseDate"`
}

func NewShare(id, franchiseID, investorID string, numberOfShares int64, costPerShare Money) (*Share, error) {
	if id == "" || franchiseID == "" || investorID == "" {
		return nil, fmt.Errorf("share requires id, franchiseId and investorId")
	}
	if numberOfShares <= 0 {
		return nil, fmt.Errorf("numberOfShares must be positive, got %d", numberOfShares)
	}
	if costPerShare <= 0 {
		return nil, fmt.Errorf("costPerShare must be positive, got %d", costPerShare)
	}
	return &Share{
		ID:             id,
		FranchiseID:    franchiseID,
		InvestorID:     investorID,
		NumberOfShares: numberOfShares,
		CostPerShare:   costPerShare,
		PurchaseDate:   time.Now().UTC(),
	}, nil
}

// Amount is the capital this record represents, and therefore the exact
// amount a refund of it must return.
func (s *Share) Amount() Money {
	return s.CostPerShare.Mul(s.NumberOfShares)
}
