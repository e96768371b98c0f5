package storage

import (
	"context"
	"fmt"
	"time"

	"confd/internal/retry"
	"confd/internal/types"

	"go.uber.org/zap"
)

// Interface defines the persistence surface for the live configuration,
// version history and audit log
type Interface interface {
	// Live configuration

	LoadConfig(ctx context.Context) (map[string]string, error)
	SaveConfigValue(ctx context.Context, key, value string) error
	DeleteConfigValue(ctx context.Context, key string) error
	ReplaceConfig(ctx context.Context, values map[string]string) error

	// Version history

	SaveSnapshot(ctx context.Context, snap *types.ConfigSnapshot) error
	GetSnapshot(ctx context.Context, id string) (*types.ConfigSnapshot, error)
	ListSnapshots(ctx context.Context) ([]*types.ConfigSnapshot, error)

	// Audit log

	SaveAuditEntry(ctx context.Context, entry *types.AuditEntry) error
	QueryAuditEntries(ctx context.Context, q *AuditQuery) ([]*types.AuditEntry, error)
	MaxAuditSequence(ctx context.Context) (int64, error)
	PruneAuditEntries(ctx context.Context, before time.Time) (int64, error)

	// Maintenance

	Ping(ctx context.Context) error
	Close() error
	Stats() Stats
	Driver() string
}

// Options defines storage options
type Options struct {
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    time.Duration
	ConnMaxIdleTime    time.Duration
	QueryTimeout       time.Duration
	MaxQueryRows       int
	SlowQueryThreshold time.Duration
}

// Stats returns database statistics
type Stats struct {
	OpenConnections   int
	InUse             int
	Idle              int
	WaitCount         int64
	WaitDuration      time.Duration
	MaxIdleClosed     int64
	MaxLifetimeClosed int64
}

// Metrics tracks query counters
type Metrics struct {
	QueryCount     int64
	QueryErrors    int64
	SlowQueryCount int64
	LastError      error
	LastErrorTime  time.Time
}

// New creates a storage instance based on configuration
func New(cfg *Config, logger *zap.Logger) (Interface, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid storage config: %w", err)
	}

	opts := Options{
		MaxOpenConns:       cfg.MaxConnections,
		MaxIdleConns:       cfg.MaxIdleConns,
		ConnMaxLifetime:    cfg.ConnMaxLifetime,
		ConnMaxIdleTime:    cfg.ConnMaxLifetime,
		QueryTimeout:       cfg.QueryTimeout,
		MaxQueryRows:       cfg.MaxQueryRows,
		SlowQueryThreshold: cfg.SlowQueryTime,
	}

	var (
		store Interface
		err   error
	)

	switch cfg.Driver {
	case "sqlite":
		store, err = NewSQLiteStorage(cfg.DSN, opts, logger)
	case "mysql":
		store, err = NewMySQLStorage(cfg.DSN, opts, logger)
	case "postgres":
		store, err = NewPostgresStorage(cfg.DSN, opts, logger)
	default:
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidDriver, cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	pingErr := retry.Execute(context.Background(), &cfg.ConnectRetry, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return store.Ping(ctx)
	})
	if pingErr != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to reach database: %w", pingErr)
	}

	if cfg.AutoMigrate && cfg.MigrationsPath != "" {
		if err := RunMigrations(cfg, logger); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return store, nil
}
