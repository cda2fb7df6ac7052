// internal/workers/funding/purchase-shares/models.go
package purchaseshares

type Input struct {
	FranchiseID    string `json:"franchiseId"`
	InvestorID     string `json:"investorId"`
	NumberOfShares int64  `json:"numberOfShares"`
}

type Output struct {
	ShareID         string `json:"shareId"`
	FranchiseID     string `json:"franchiseId"`
	InvestorID      string `json:"investorId"`
	NumberOfShares  int64  `json:"numberOfShares"`
	CostPerShare    int64  `json:"costPerShare"` // minor units
	TotalCost       int64  `json:"totalCost"`    // minor units
	FullyFunded     bool   `json:"fullyFunded"`
	FranchiseStatus string `json:"franchiseStatus"`
}
