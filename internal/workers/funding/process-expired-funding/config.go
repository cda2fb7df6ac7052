// internal/workers/funding/process-expired-funding/config.go
package processexpiredfunding

import "time"

// The sweep can batch many franchises with many refunds each, so this
// worker carries a much longer budget than the others.
type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 5 * time.Minute,
	}
}
