// internal/models/franchise.go
package models

import (
	"fmt"
	"time"
)

// FranchiseStatus is the campaign lifecycle state of a franchise location.
type FranchiseStatus string

const (
	StatusPendingApproval FranchiseStatus = "pending_approval"
	StatusFunding         FranchiseStatus = "funding"
	StatusLaunching       FranchiseStatus = "launching"
	StatusActive          FranchiseStatus = "active"
	StatusClosed          FranchiseStatus = "closed"
)

func (s FranchiseStatus) Valid() bool {
	switch s {
	case StatusPendingApproval, StatusFunding, StatusLaunching, StatusActive, StatusClosed:
		return true
	}
	return false
}

// DefaultFundingWindow is the campaign length applied when an approval does
// not set an explicit end date.
const DefaultFundingWindow = 90 * 24 * time.Hour

// Franchise is a single location's capital-raise campaign and, once active,
// its capital-recovery ledger.
type Franchise struct {
	ID         string `json:"id"`
	BusinessID string `json:"businessId"`
	Name       string `json:"name"`

	// Economic parameters. TotalInvestment is always derived from
	// CarpetArea × CostPerArea, never stored authoritatively.
	CarpetArea  int64 `json:"carpetArea"`
	CostPerArea Money `json:"costPerArea"`
	TotalShares int64 `json:"totalShares"`

	SelectedShares int64 `json:"selectedShares"`

	LaunchStartDate *time.Time `json:"launchStartDate,omitempty"`
	LaunchEndDate   *time.Time `json:"launchEndDate,omitempty"`

	Status FranchiseStatus `json:"status"`

	// Capital tracking, meaningful once the franchise is active.
	TotalRevenue     Money `json:"totalRevenue"`
	CapitalRecovered Money `json:"capitalRecovered"`
	PendingDividends Money `json:"pendingDividends"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewFranchise builds a pending-approval franchise, rejecting parameters
// that could never satisfy the ledger invariants.
func NewFranchise(id, businessID, name string, carpetArea int64, costPerArea Money, totalShares int64) (*Franchise, error) {
	if id == "" || businessID == "" {
		return nil, fmt.Errorf("franchise requires id and businessId")
	}
	if carpetArea <= 0 {
		return nil, fmt.Errorf("carpetArea must be positive, got %d", carpetArea)
	}
	if costPerArea <= 0 {
		return nil, fmt.Errorf("costPerArea must be positive, got %d", costPerArea)
	}
	if totalShares <= 0 {
		return nil, fmt.Errorf("totalShares must be positive, got %d", totalShares)
	}
	now := time.Now().UTC()
	return &Franchise{
		ID:          id,
		BusinessID:  businessID,
		Name:        name,
		CarpetArea:  carpetArea,
		CostPerArea: costPerArea,
		TotalShares: totalShares,
		Status:      StatusPendingApproval,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// TotalInvestment is the funding target: carpet area times build-out cost
// per unit area.
func (f *Franchise) TotalInvestment() Money {
	return f.CostPerArea.Mul(f.CarpetArea)
}

// CostPerShare is the price of one share at the current economic parameters.
func (f *Franchise) CostPerShare() Money {
	return MulDiv(f.TotalInvestment(), 1, f.TotalShares)
}

func (f *Franchise) RemainingShares() int64 {
	return f.TotalShares - f.SelectedShares
}

func (f *Franchise) FullyFunded() bool {
	return f.SelectedShares >= f.TotalShares
}

// RemainingCapital is how much investor principal is still outstanding.
func (f *Franchise) RemainingCapital() Money {
	remaining := f.TotalInvestment() - f.CapitalRecovered
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Expired reports whether the funding window has closed.
func (f *Franchise) Expired(now time.Time) bool {
	return f.LaunchEndDate != nil && !f.LaunchEndDate.After(now)
}

// Validate checks the structural invariants: share count bounds and the
// capital-recovery ceiling.
func (f *Franchise) Validate() error {
	if !f.Status.Valid() {
		return fmt.Errorf("invalid franchise status %q", f.Status)
	}
	if f.SelectedShares < 0 || f.SelectedShares > f.TotalShares {
		return fmt.Errorf("selectedShares %d out of range [0, %d]", f.SelectedShares, f.TotalShares)
	}
	if f.CapitalRecovered > f.TotalInvestment() {
		return fmt.Errorf("capitalRecovered %d exceeds totalInvestment %d", f.CapitalRecovered, f.TotalInvestment())
	}
	return nil
}
