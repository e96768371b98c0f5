package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"confd/internal/types"
	"confd/internal/utils"

	"go.uber.org/zap"
)

// BaseStorage is the shared implementation of the Interface over
// database/sql. Driver specific types embed it.
type BaseStorage struct {
	db      *sql.DB
	driver  string
	opts    Options
	logger  *zap.Logger
	metrics *Metrics
}

// NewBaseStorage creates new BaseStorage
func NewBaseStorage(driver, dsn string, opts Options, logger *zap.Logger) (*BaseStorage, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	db.SetConnMaxIdleTime(opts.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("failed to close database", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &BaseStorage{
		db:      db,
		driver:  driver,
		opts:    opts,
		logger:  logger,
		metrics: &Metrics{},
	}, nil
}

// rebind converts `?` placeholders to the driver's native format
func (s *BaseStorage) rebind(query string) string {
	if s.driver == "postgres" {
		return utils.ConvertPlaceholders(query)
	}
	return query
}

// LoadConfig loads the persisted live configuration
func (s *BaseStorage) LoadConfig(ctx context.Context) (map[string]string, error) {
	rows, err := s.QueryContext(ctx, `SELECT config_key, config_value FROM config_values`)
	if err != nil {
		return nil, fmt.Errorf("query config values: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan config value: %w", err)
		}
		values[key] = value
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return values, nil
}

// SaveConfigValue upserts a single configuration value
func (s *BaseStorage) SaveConfigValue(ctx context.Context, key, value string) error {
	query := `
        INSERT INTO config_values (config_key, config_value, updated_at)
        VALUES (?, ?, ?)
        ON CONFLICT (config_key) DO UPDATE SET
            config_value = EXCLUDED.config_value,
            updated_at = EXCLUDED.updated_at`

	if s.driver == "mysql" {
		query = `
            INSERT INTO config_values (config_key, config_value, updated_at)
            VALUES (?, ?, ?)
            ON DUPLICATE KEY UPDATE
                config_value = VALUES(config_value),
                updated_at = VALUES(updated_at)`
	}

	_, err := s.ExecContext(ctx, query, key, value, time.Now().UTC())
	return err
}

// DeleteConfigValue removes a configuration value
func (s *BaseStorage) DeleteConfigValue(ctx context.Context, key string) error {
	_, err := s.ExecContext(ctx, `DELETE FROM config_values WHERE config_key = ?`, key)
	return err
}

// ReplaceConfig swaps the persisted configuration for the given mapping
// in one transaction
func (s *BaseStorage) ReplaceConfig(ctx context.Context, values map[string]string) error {
	return s.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM config_values`); err != nil {
			return fmt.Errorf("clear config values: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, s.rebind(`
            INSERT INTO config_values (config_key, config_value, updated_at)
            VALUES (?, ?, ?)`))
		if err != nil {
			return fmt.Errorf("prepare statement: %w", err)
		}
		defer stmt.Close()

		now := time.Now().UTC()
		for key, value := range values {
			if _, err := stmt.ExecContext(ctx, key, value, now); err != nil {
				return fmt.Errorf("exec statement: %w", err)
			}
		}

		return nil
	})
}

// SaveSnapshot persists a configuration snapshot
func (s *BaseStorage) SaveSnapshot(ctx context.Context, snap *types.ConfigSnapshot) error {
	tags, err := json.Marshal(snap.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	config, err := json.Marshal(snap.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	query := `
        INSERT INTO snapshots (id, created_at, description, author, tags, config)
        VALUES (?, ?, ?, ?, ?, ?)`

	_, err = s.ExecContext(ctx, query,
		snap.ID,
		snap.CreatedAt,
		snap.Description,
		snap.Author,
		tags,
		config)

	return err
}

// GetSnapshot retrieves a snapshot by id
func (s *BaseStorage) GetSnapshot(ctx context.Context, id string) (*types.ConfigSnapshot, error) {
	query := `
        SELECT id, created_at, description, author, tags, config
        FROM snapshots WHERE id = ?`

	rows, err := s.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("rows iteration failed: %w", err)
		}
		return nil, types.ErrVersionNotFound
	}

	return scanSnapshot(rows, true)
}

// ListSnapshots retrieves snapshot metadata, newest first
func (s *BaseStorage) ListSnapshots(ctx context.Context) ([]*types.ConfigSnapshot, error) {
	query := `
        SELECT id, created_at, description, author, tags, config
        FROM snapshots
        ORDER BY created_at DESC, id DESC`

	rows, err := s.QueryContext(ctx, query)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []*types.ConfigSnapshot
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		snap, err := scanSnapshot(rows, false)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return snaps, nil
}

// scanSnapshot scans one snapshot row; withConfig controls whether the
// config payload is decoded
func scanSnapshot(rows *sql.Rows, withConfig bool) (*types.ConfigSnapshot, error) {
	var (
		snap       types.ConfigSnapshot
		tagsJSON   []byte
		configJSON []byte
	)

	if err := rows.Scan(&snap.ID, &snap.CreatedAt, &snap.Description,
		&snap.Author, &tagsJSON, &configJSON); err != nil {
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}

	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &snap.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	if withConfig && len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &snap.Config); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	return &snap, nil
}

// SaveAuditEntry persists one audit entry. The sequence number is assigned
// by the audit log, not the database.
func (s *BaseStorage) SaveAuditEntry(ctx context.Context, entry *types.AuditEntry) error {
	query := `
        INSERT INTO audit_entries
            (seq, ts, action, config_key, old_value, new_value, user_id, source_ip, user_agent)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.ExecContext(ctx, query,
		entry.Sequence,
		entry.Timestamp,
		string(entry.Action),
		entry.Key,
		entry.OldValue,
		entry.NewValue,
		entry.UserID,
		entry.SourceIP,
		entry.UserAgent)

	return err
}

// QueryAuditEntries retrieves audit entries matching the filter, ordered
// by sequence ascending
func (s *BaseStorage) QueryAuditEntries(ctx context.Context, q *AuditQuery) ([]*types.AuditEntry, error) {
	qb := &QueryBuilder{}
	qb.Select("seq", "ts", "action", "config_key", "old_value", "new_value",
		"user_id", "source_ip", "user_agent").
		From("audit_entries")

	if !q.StartDate.IsZero() {
		qb.Where("ts >= ?", q.StartDate)
	}
	if !q.EndDate.IsZero() {
		qb.Where("ts <= ?", q.EndDate)
	}
	if q.Action != "" {
		qb.Where("action = ?", string(q.Action))
	}
	if q.Key != "" {
		qb.Where("config_key = ?", q.Key)
	}
	if q.UserID != "" {
		qb.Where("user_id = ?", q.UserID)
	}

	qb.OrderBy("seq", "ASC")

	limit := q.Limit
	if limit <= 0 || limit > s.opts.MaxQueryRows {
		limit = s.opts.MaxQueryRows
	}
	qb.Limit(limit)
	if q.Offset > 0 {
		qb.Offset(q.Offset)
	}

	rows, err := s.QueryContext(ctx, qb.SQL(), qb.Args()...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*types.AuditEntry
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		var (
			entry  types.AuditEntry
			action string
		)
		if err := rows.Scan(&entry.Sequence, &entry.Timestamp, &action,
			&entry.Key, &entry.OldValue, &entry.NewValue,
			&entry.UserID, &entry.SourceIP, &entry.UserAgent); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.Action = types.AuditAction(action)
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return entries, nil
}

// MaxAuditSequence returns the highest persisted sequence number, 0 when
// the log is empty
func (s *BaseStorage) MaxAuditSequence(ctx context.Context) (int64, error) {
	rows, err := s.QueryContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM audit_entries`)
	if err != nil {
		return 0, fmt.Errorf("query max sequence: %w", err)
	}
	defer rows.Close()

	var max int64
	if rows.Next() {
		if err := rows.Scan(&max); err != nil {
			return 0, fmt.Errorf("scan max sequence: %w", err)
		}
	}

	return max, rows.Err()
}

// PruneAuditEntries removes entries older than the cutoff
func (s *BaseStorage) PruneAuditEntries(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.ExecContext(ctx, `DELETE FROM audit_entries WHERE ts < ?`, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// TxFn represents a transaction function
type TxFn func(*sql.Tx) error

// WithTransaction executes operations in a transaction
func (s *BaseStorage) WithTransaction(ctx context.Context, fn TxFn) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("rollback failed during panic",
					zap.Error(rbErr),
					zap.Any("panic", p))
			}
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("rollback failed",
				zap.Error(rbErr),
				zap.Error(err))
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	return tx.Commit()
}

// ExecContext executes a statement with timeout, metrics and slow-query
// logging
func (s *BaseStorage) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.QueryTimeout)
	defer cancel()

	query = s.rebind(query)

	start := time.Now()
	result, err := s.db.ExecContext(ctx, query, args...)
	duration := time.Since(start)

	atomic.AddInt64(&s.metrics.QueryCount, 1)
	if err != nil {
		atomic.AddInt64(&s.metrics.QueryErrors, 1)
		s.metrics.LastError = err
		s.metrics.LastErrorTime = time.Now()
	}

	if duration > s.opts.SlowQueryThreshold {
		atomic.AddInt64(&s.metrics.SlowQueryCount, 1)
		s.logger.Warn("slow query detected",
			zap.String("query", query),
			zap.Duration("duration", duration))
	}

	return result, err
}

// QueryContext executes a query with timeout, metrics and slow-query
// logging
func (s *BaseStorage) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.QueryTimeout)
	defer cancel()

	query = s.rebind(query)

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, args...)
	duration := time.Since(start)

	atomic.AddInt64(&s.metrics.QueryCount, 1)
	if err != nil {
		atomic.AddInt64(&s.metrics.QueryErrors, 1)
		s.metrics.LastError = err
		s.metrics.LastErrorTime = time.Now()
	}

	if duration > s.opts.SlowQueryThreshold {
		atomic.AddInt64(&s.metrics.SlowQueryCount, 1)
		s.logger.Warn("slow query detected",
			zap.String("query", query),
			zap.Duration("duration", duration))
	}

	return rows, err
}

// Close closes the database
func (s *BaseStorage) Close() error {
	return s.db.Close()
}

// Ping pings the database
func (s *BaseStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Driver returns the driver name
func (s *BaseStorage) Driver() string {
	return s.driver
}

// Stats returns database statistics
func (s *BaseStorage) Stats() Stats {
	dbStats := s.db.Stats()
	return Stats{
		OpenConnections:   dbStats.OpenConnections,
		InUse:             dbStats.InUse,
		Idle:              dbStats.Idle,
		WaitCount:         dbStats.WaitCount,
		WaitDuration:      dbStats.WaitDuration,
		MaxIdleClosed:     dbStats.MaxIdleClosed,
		MaxLifetimeClosed: dbStats.MaxLifetimeClosed,
	}
}
