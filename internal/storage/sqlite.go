package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SQLiteStorage implements Interface for SQLite
type SQLiteStorage struct {
	*BaseStorage
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dsn string, opts Options, logger *zap.Logger) (*SQLiteStorage, error) {
	if err := ensureDBDir(dsn); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	base, err := NewBaseStorage("sqlite3", dsn, opts, logger)
	if err != nil {
		return nil, err
	}
	// rebinding is keyed on the logical driver name
	base.driver = "sqlite"

	s := &SQLiteStorage{BaseStorage: base}

	if err := s.init(); err != nil {
		_ = base.Close()
		return nil, fmt.Errorf("failed to initialize SQLite: %w", err)
	}
	if err := s.initSchema(); err != nil {
		_ = base.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

// init applies SQLite pragmas
func (s *SQLiteStorage) init() error {
	pragmas := []struct {
		name  string
		value string
	}{
		{"journal_mode", "WAL"},
		{"synchronous", "NORMAL"},
		{"foreign_keys", "ON"},
		{"temp_store", "MEMORY"},
		{"busy_timeout", "5000"},
	}

	for _, pragma := range pragmas {
		query := fmt.Sprintf("PRAGMA %s = %s", pragma.name, pragma.value)
		if _, err := s.ExecContext(context.Background(), query); err != nil {
			return fmt.Errorf("failed to set %s: %w", pragma.name, err)
		}
	}

	return nil
}

// initSchema creates tables when they do not exist
func (s *SQLiteStorage) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS config_values (
            config_key   TEXT PRIMARY KEY,
            config_value TEXT NOT NULL,
            updated_at   TIMESTAMP NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS snapshots (
            id          TEXT PRIMARY KEY,
            created_at  TIMESTAMP NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            author      TEXT NOT NULL DEFAULT '',
            tags        TEXT,
            config      TEXT NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS audit_entries (
            seq        INTEGER PRIMARY KEY,
            ts         TIMESTAMP NOT NULL,
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

// ensureDBDir creates the directory holding the database file
func ensureDBDir(dsn string) error {
	path := dsn
	if idx := strings.Index(path, "?"); idx != -1 {
		path = path[:idx]
	}
	path = strings.TrimPrefix(path, "file:")
	if path == "" || path == ":memory:" || strings.HasPrefix(path, ":") {
		return nil
	}
	return os.MkdirAll(filepath.Dir(path), 0755)
}
