// internal/workers/funding/activate-franchise/config.go
package activatefranchise

import "time"

type Config struct {
	Timeout time.Duration

	// Token economy defaults applied when the job carries no overrides.
	DefaultTokenSupply    int64
	DefaultBasePriceUnits int64
}

func LoadConfig() *Config {
	return &Config{
		Timeout:               15 * time.Second,
		DefaultTokenSupply:    1_000_000,
		DefaultBasePriceUnits: 10,
	}
}
