// internal/workers/funding/approve-franchise/config.go
package approvefranchise

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
	}
}
