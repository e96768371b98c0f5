package storage

import (
	"context"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresStorage implements Interface for PostgreSQL
type PostgresStorage struct {
	*BaseStorage
}

// NewPostgresStorage creates a new PostgreSQL storage instance
func NewPostgresStorage(dsn string, opts Options, logger *zap.Logger) (*PostgresStorage, error) {
	base, err := NewBaseStorage("postgres", dsn, opts, logger)
	if err != nil {
		return nil, err
	}

	s := &PostgresStorage{BaseStorage: base}

	if err := s.init(); err != nil {
		_ = base.Close()
		return nil, fmt.Errorf("failed to init session: %w", err)
	}
	if err := s.initSchema(); err != nil {
		_ = base.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

// init sets session variables
func (s *PostgresStorage) init() error {
	vars := []struct {
		name  string
		value string
	}{
		{"timezone", "'UTC'"},
		{"statement_timeout", "'30s'"},
		{"lock_timeout", "'10s'"},
	}

	for _, v := range vars {
		query := fmt.Sprintf("SET %s = %s", v.name, v.value)
		if _, err := s.ExecContext(context.Background(), query); err != nil {
			return fmt.Errorf("failed to set %s: %w", v.name, err)
		}
	}

	return nil
}

// initSchema creates tables when they do not exist
func (s *PostgresStorage) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS config_values (
            config_key   TEXT PRIMARY KEY,
            config_value TEXT NOT NULL,
            updated_at   TIMESTAMPTZ NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS snapshots (
            id          TEXT PRIMARY KEY,
            created_at  TIMESTAMPTZ NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            author      TEXT NOT NULL DEFAULT '',
            tags        JSONB,
            config      JSONB NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS audit_entries (
            seq        BIGINT PRIMARY KEY,
            ts         TIMESTAMPTZ NOT NULL,
            action     TEXT NOT NULL,
            config_key TEXT NOT NULL,
            old_value  TEXT,
            new_value  TEXT,
            user_id    TEXT,
            source_ip  TEXT,
            user_agent TEXT
        )`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_created_at ON snapshots (created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_entries_ts ON audit_entries (ts)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_entries_key ON audit_entries (config_key)`,
	}

	for _, stmt := range statements {
		if _, err := s.ExecContext(context.Background(), stmt); err != nil {
			return err
		}
	}

	return nil
}
