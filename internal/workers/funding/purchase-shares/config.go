// internal/workers/funding/purchase-shares/config.go
package purchaseshares

import "time"

type Config struct {
	Timeout time.Duration

	// MaxSharesPerPurchase bounds a single purchase; 0 disables the cap.
	MaxSharesPerPurchase int64
}

func LoadConfig() *Config {
	return &Config{
		Timeout:              10 * time.Second,
		MaxSharesPerPurchase: 0,
	}
}
