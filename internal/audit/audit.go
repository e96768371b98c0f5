package audit

import (
	"context"
	"strings"
	"sync"
	"time"

	"confd/internal/sanitize"
	"confd/internal/storage"
	"confd/internal/types"

	"go.uber.org/zap"
)

// Default page bounds for queries
const (
	DefaultQueryLimit = 100
	MaxQueryLimit     = 1000
)

// Forwarder receives successfully appended entries for downstream delivery
// (message brokers, search indexes). Delivery is best-effort and never
// affects the append.
type Forwarder interface {
	Forward(ctx context.Context, entry *types.AuditEntry) error
	Name() string
	Close() error
}

// Log is the append-only audit record of every access, update, delete and
// rollback. Old and new values are masked before an entry is built; the
// true value never reaches persistence or any forwarder. Sequence numbers
// are allocated and persisted under one mutex, so they are dense and match
// commit order for callers that append in commit order.
type Log struct {
	storage    storage.Interface
	sanitizer  *sanitize.Sanitizer
	logger     *zap.Logger
	forwarders []Forwarder

	mu  sync.Mutex
	seq int64
}

// New creates an audit log, resuming sequence numbering from storage
func New(ctx context.Context, st storage.Interface, sanitizer *sanitize.Sanitizer, logger *zap.Logger) (*Log, error) {
	max, err := st.MaxAuditSequence(ctx)
	if err != nil {
		return nil, err
	}

	return &Log{
		storage:   st,
		sanitizer: sanitizer,
		logger:    logger,
		seq:       max,
	}, nil
}

// AddForwarder registers a downstream forwarder
func (l *Log) AddForwarder(f Forwarder) {
	l.forwarders = append(l.forwarders, f)
}

// LogAccess records a read of key
func (l *Log) LogAccess(ctx context.Context, key string, actor types.Actor) error {
	return l.append(ctx, &types.AuditEntry{
		Action: types.ActionAccess,
		Key:    key,
	}, actor)
}

// LogUpdate records a write of key; old and new values are masked
func (l *Log) LogUpdate(ctx context.Context, key, oldValue, newValue string, actor types.Actor) error {
	return l.append(ctx, &types.AuditEntry{
		Action:   types.ActionUpdate,
		Key:      key,
		OldValue: l.sanitizer.MaskValue(key, oldValue),
		NewValue: l.sanitizer.MaskValue(key, newValue),
	}, actor)
}

// LogDelete records a deletion of key; the removed value is masked
func (l *Log) LogDelete(ctx context.Context, key, oldValue string, actor types.Actor) error {
	return l.append(ctx, &types.AuditEntry{
		Action:   types.ActionDelete,
		Key:      key,
		OldValue: l.sanitizer.MaskValue(key, oldValue),
	}, actor)
}

// LogRollback records a rollback to versionID listing the changed keys
func (l *Log) LogRollback(ctx context.Context, versionID string, changedKeys []string, actor types.Actor) error {
	return l.append(ctx, &types.AuditEntry{
		Action:   types.ActionRollback,
		Key:      versionID,
		NewValue: strings.Join(changedKeys, ","),
	}, actor)
}

// append assigns the next sequence number and persists the entry. The
// number is only consumed when persistence succeeds, so the sequence stays
// dense. Failures come back as LoggingFailure so callers can surface them
// as warnings beside an already committed mutation.
func (l *Log) append(ctx context.Context, entry *types.AuditEntry, actor types.Actor) error {
	entry.Timestamp = time.Now().UTC()
	entry.UserID = actor.UserID
	entry.SourceIP = actor.SourceIP
	entry.UserAgent = actor.UserAgent

	l.mu.Lock()
	entry.Sequence = l.seq + 1
	err := l.storage.SaveAuditEntry(ctx, entry)
	if err == nil {
		l.seq++
	}
	l.mu.Unlock()

	if err != nil {
		l.logger.Error("audit append failed",
			zap.String("action", string(entry.Action)),
			zap.String("key", entry.Key),
			zap.Error(err))
		return &types.LoggingFailure{Action: entry.Action, Err: err}
	}

	l.forward(entry)
	return nil
}

// forward delivers the entry to every forwarder; a failing forwarder is
// logged and skipped
func (l *Log) forward(entry *types.AuditEntry) {
	for _, f := range l.forwarders {
		go func(f Forwarder) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := f.Forward(ctx, entry); err != nil {
				l.logger.Warn("audit forwarder failed",
					zap.String("forwarder", f.Name()),
					zap.Int64("sequence", entry.Sequence),
					zap.Error(err))
			}
		}(f)
	}
}

// Query returns entries matching the filter in ascending sequence order.
// An empty filter returns the head of the log bounded by the default
// limit.
func (l *Log) Query(ctx context.Context, q *storage.AuditQuery) ([]*types.AuditEntry, error) {
	bounded := *q
	if bounded.Limit <= 0 {
		bounded.Limit = DefaultQueryLimit
	}
	if bounded.Limit > MaxQueryLimit {
		bounded.Limit = MaxQueryLimit
	}

	return l.storage.QueryAuditEntries(ctx, &bounded)
}

// Sequence returns the last allocated sequence number
func (l *Log) Sequence() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq
}

// Close closes all forwarders
func (l *Log) Close() error {
	var firstErr error
	for _, f := range l.forwarders {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// iterate walks all entries matching the filter in pages, stopping at the
// sequence number captured when iteration began so concurrent appends are
// not observed
func (l *Log) iterate(ctx context.Context, q *storage.AuditQuery, fn func(*types.AuditEntry) error) error {
	maxSeq := l.Sequence()

	page := *q
	page.Limit = MaxQueryLimit
	page.Offset = 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		entries, err := l.storage.QueryAuditEntries(ctx, &page)
		if err != nil {
			return err
		}

		for _, entry := range entries {
			if entry.Sequence > maxSeq {
				return nil
			}
			if err := fn(entry); err != nil {
				return err
			}
		}

		if len(entries) < page.Limit {
			return nil
		}
		page.Offset += page.Limit
	}
}
