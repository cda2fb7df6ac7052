// internal/workers/funding/activate-franchise/models.go
package activatefranchise

type Input struct {
	FranchiseID    string `json:"franchiseId"`
	TokenSupply    int64  `json:"tokenSupply,omitempty"`    // defaults from config
	BasePriceUnits int64  `json:"basePriceUnits,omitempty"` // whole currency units
}

type Output struct {
	FranchiseID     string `json:"franchiseId"`
	FranchiseStatus string `json:"franchiseStatus"`
	TotalSupply     int64  `json:"totalSupply"`
	TokensIssued    int64  `json:"tokensIssued"`
	ReserveSupply   int64  `json:"reserveSupply"`
}
