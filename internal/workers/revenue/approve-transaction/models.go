// internal/workers/revenue/approve-transaction/models.go
package approvetransaction

type Input struct {
	TransactionID string `json:"transactionId"`
	Decision      string `json:"decision"` // "approved" | "rejected"
}

type Output struct {
	TransactionID     string `json:"transactionId"`
	FranchiseID       string `json:"franchiseId"`
	TransactionStatus string `json:"transactionStatus"`

	// Distribution breakdown, set only for approved income.
	DistributedAmount int64 `json:"distributedAmount,omitempty"` // minor units
	CapitalRecovery   int64 `json:"capitalRecovery,omitempty"`
	DividendAmount    int64 `json:"dividendAmount,omitempty"`
	FullyRecovered    bool  `json:"fullyRecovered,omitempty"`
	FRCTokensIssued   int64 `json:"frcTokensIssued,omitempty"`
}
