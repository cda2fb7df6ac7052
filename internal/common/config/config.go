// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App          AppConfig               `mapstructure:"app"`
	Camunda      CamundaConfig           `mapstructure:"camunda"`
	Database     DatabaseConfig          `mapstructure:"database"`
	Sweep        SweepConfig             `mapstructure:"sweep"`
	Distribution DistributionConfig      `mapstructure:"distribution"`
	Tokens       TokenConfig             `mapstructure:"tokens"`
	PaymentRail  PaymentRailConfig       `mapstructure:"payment_rail"`
	Alerting     AlertingConfig          `mapstructure:"alerting"`
	Workers      map[string]WorkerConfig `mapstructure:"workers"`
	Logging      LoggingConfig           `mapstructure:"logging"`
	Metrics      MetricsConfig           `mapstructure:"metrics"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SweepConfig drives the escrow/refund processor.
type SweepConfig struct {
	Interval    time.Duration `mapstructure:"interval"`    // how often the timer fires
	Concurrency int           `mapstructure:"concurrency"` // franchises resolved in parallel
	EscrowVault string        `mapstructure:"escrow_vault"`
}

// DistributionConfig drives the revenue distribution engine.
type DistributionConfig struct {
	// CapitalRecoveryPercent of each income event goes to capital recovery
	// until the principal is repaid.
	CapitalRecoveryPercent int           `mapstructure:"capital_recovery_percent"`
	// FranchiseVault is the rail account dividend payouts are drawn from.
	FranchiseVault string        `mapstructure:"franchise_vault"`
	StatsCacheTTL  time.Duration `mapstructure:"stats_cache_ttl"`
}

// TokenConfig drives FRC issuance.
type TokenConfig struct {
	// RevenuePerToken is how many whole currency units of approved income
	// mint one performance token.
	RevenuePerToken int64 `mapstructure:"revenue_per_token"`
}

// PaymentRailConfig bounds calls to the external transfer collaborator.
type PaymentRailConfig struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`
}

// AlertingConfig routes refund failures and invariant violations to
// operators via SES/SNS.
type AlertingConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	AWSRegion string `mapstructure:"aws_region"`
	Email     struct {
		FromEmail string `mapstructure:"from_email"`
		ToEmail   string `mapstructure:"to_email"`
	} `mapstructure:"email"`
	SNSTopicARN string `mapstructure:"sns_topic_arn"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type MetricsConfig struct {
	Address string `mapstructure:"address"`
}
