// internal/workers/revenue/claim-dividends/config.go
package claimdividends

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
