package models

import "time"

// Storage backend selectors for DatabaseConfig.Driver.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig
	Accounts AccountsConfig
	Limits   LimitsConfig
	Audit    AuditConfig
	Sweeper  SweeperConfig
	Engine   EngineConfig
}

// DatabaseConfig holds ledger store connection settings
type DatabaseConfig struct {
	Driver          string
	Path            string // sqlite file path
	URL             string // postgres connection string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// AccountsConfig holds Account Service client settings
type AccountsConfig struct {
	BaseURL          string
	CallTimeout      time.Duration
	MaxRetries       uint64
	BreakerThreshold uint32
	BreakerCooldown  time.Duration
}

// LimitsConfig holds limit evaluation settings
type LimitsConfig struct {
	Timezone   string
	LimitsFile string
}

// AuditConfig holds audit sink settings
type AuditConfig struct {
	BufferSize int
}

// SweeperConfig holds stuck-transaction sweeper settings
type SweeperConfig struct {
	Interval      time.Duration
	PendingCutoff time.Duration
}

// EngineConfig holds transaction engine settings
type EngineConfig struct {
	ReversalWindow time.Duration
}
