// internal/workers/revenue/approve-transaction/config.go
package approvetransaction

import "time"

// Approval fans out into distribution and token issuance, so the budget is
// wider than a single-statement worker's.
type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
