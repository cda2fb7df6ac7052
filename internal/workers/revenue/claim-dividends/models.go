// internal/workers/revenue/claim-dividends/models.go
package claimdividends

type Input struct {
	FranchiseID string `json:"franchiseId"`
	InvestorID  string `json:"investorId"`
	// Amount in minor units; zero claims the full pending balance.
	Amount int64 `json:"amount,omitempty"`
}

type Output struct {
	FranchiseID   string `json:"franchiseId"`
	InvestorID    string `json:"investorId"`
	ClaimedAmount int64  `json:"claimedAmount"` // minor units
}
