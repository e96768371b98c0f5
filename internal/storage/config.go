package storage

import (
	"fmt"
	"time"

	"confd/internal/retry"
)

// Config represents storage configuration
type Config struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`

	// Migration settings
	AutoMigrate    bool   `mapstructure:"auto_migrate"`
	MigrationsPath string `mapstructure:"migrations_path"`

	// Audit retention settings
	EnablePruning  bool          `mapstructure:"enable_pruning"`
	AuditRetention time.Duration `mapstructure:"audit_retention"`
	PruneInterval  time.Duration `mapstructure:"prune_interval"`

	// Query performance settings
	MaxQueryRows  int           `mapstructure:"max_query_rows"`
	SlowQueryTime time.Duration `mapstructure:"slow_query_time"`

	// Initial connection retry, useful when the database starts
	// alongside the service
	ConnectRetry retry.Config `mapstructure:"connect_retry"`
}

// Validate validates storage configuration and fills defaults
func (c *Config) Validate() error {
	if c.Driver == "" {
		return fmt.Errorf("storage driver is required")
	}
	if c.DSN == "" {
		return fmt.Errorf("storage DSN is required")
	}

	if c.MaxConnections == 0 {
		c.MaxConnections = 25
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 5
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = time.Hour
	}
	if c.QueryTimeout == 0 {
		c.QueryTimeout = 30 * time.Second
	}
	if c.PruneInterval == 0 {
		c.PruneInterval = 24 * time.Hour
	}
	if c.AuditRetention == 0 {
		c.AuditRetention = 90 * 24 * time.Hour // 90 days
	}
	if c.MaxQueryRows == 0 {
		c.MaxQueryRows = 10000
	}
	if c.SlowQueryTime == 0 {
		c.SlowQueryTime = time.Second
	}

	switch c.Driver {
	case "sqlite", "mysql", "postgres":
		// Valid drivers
	default:
		return fmt.Errorf("unsupported storage driver: %s", c.Driver)
	}

	return nil
}
