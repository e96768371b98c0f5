package storage

import (
	"context"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

// MySQLStorage implements Interface for MySQL
type MySQLStorage struct {
	*BaseStorage
}

// NewMySQLStorage creates a new MySQL storage instance
func NewMySQLStorage(dsn string, opts Options, logger *zap.Logger) (*MySQLStorage, error) {
	base, err := NewBaseStorage("mysql", dsn, opts, logger)
	if err != nil {
		return nil, err
	}

	s := &MySQLStorage{BaseStorage: base}

	if err := s.initSchema(); err != nil {
		_ = base.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

// initSchema creates tables when they do not exist
func (s *MySQLStorage) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS config_values (
            config_key   VARCHAR(255) PRIMARY KEY,
            config_value TEXT NOT NULL,
            updated_at   DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS snapshots (
            id          VARCHAR(64) PRIMARY KEY,
            created_at  DATETIME NOT NULL,
            description TEXT NOT NULL,
            author      VARCHAR(255) NOT NULL DEFAULT '',
            tags        JSON,
            config      JSON NOT NULL,
            INDEX idx_snapshots_created_at (created_at)
        )`,
		`CREATE TABLE IF NOT EXISTS audit_entries (
            seq        BIGINT PRIMARY KEY,
            ts         DATETIME NOT NULL,
            action     VARCHAR(16) NOT NULL,
            config_key VARCHAR(255) NOT NULL,
            old_value  TEXT,
            new_value  TEXT,
            user_id    VARCHAR(255),
            source_ip  VARCHAR(64),
            user_agent TEXT,
            INDEX idx_audit_entries_ts (ts),
            INDEX idx_audit_entries_key (config_key)
        )`,
	}

	for _, stmt := range statements {
		if _, err := s.ExecContext(context.Background(), stmt); err != nil {
			return err
		}
	}

	return nil
}
