// internal/workers/funding/investment-tracking/models.go
package investmenttracking

import "funding-engine/internal/accounting"

// Input selects one of two views: an investor's portfolio (investorId set)
// or one campaign's investor breakdown (franchiseId set).
type Input struct {
	InvestorID  string `json:"investorId,omitempty"`
	FranchiseID string `json:"franchiseId,omitempty"`
}

type Output struct {
	Summary  *accounting.InvestmentSummary  `json:"summary,omitempty"`
	Tracking *accounting.InvestmentTracking `json:"tracking,omitempty"`
}
