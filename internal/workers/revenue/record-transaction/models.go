// internal/workers/revenue/record-transaction/models.go
package recordtransaction

type Input struct {
	FranchiseID     string `json:"franchiseId"`
	Type            string `json:"type"` // "income" | "expense"
	Category        string `json:"category,omitempty"`
	Amount          int64  `json:"amount"` // minor units
	Currency        string `json:"currency,omitempty"`
	TransactionDate string `json:"transactionDate,omitempty"` // ISO 8601
}

type Output struct {
	TransactionID     string `json:"transactionId"`
	FranchiseID       string `json:"franchiseId"`
	TransactionStatus string `json:"transactionStatus"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
}
