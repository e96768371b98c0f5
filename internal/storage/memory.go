package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"confd/internal/types"
)

// MemoryStorage is an in-memory implementation of the Interface, used in
// tests and for ephemeral deployments that do not need durability.
type MemoryStorage struct {
	mu        sync.RWMutex
	config    map[string]string
	snapshots []*types.ConfigSnapshot
	entries   []*types.AuditEntry
	closed    bool
}

// NewMemoryStorage creates an empty in-memory storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		config: make(map[string]string),
	}
}

// LoadConfig returns a copy of the persisted configuration
func (m *MemoryStorage) LoadConfig(_ context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string, len(m.config))
	for k, v := range m.config {
		out[k] = v
	}
	return out, nil
}

// SaveConfigValue upserts one configuration value
func (m *MemoryStorage) SaveConfigValue(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.config[key] = value
	return nil
}

// DeleteConfigValue removes one configuration value
func (m *MemoryStorage) DeleteConfigValue(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.config, key)
	return nil
}

// ReplaceConfig swaps the persisted configuration
func (m *MemoryStorage) ReplaceConfig(_ context.Context, values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.config = make(map[string]string, len(values))
	for k, v := range values {
		m.config[k] = v
	}
	return nil
}

// SaveSnapshot stores a snapshot
func (m *MemoryStorage) SaveSnapshot(_ context.Context, snap *types.ConfigSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshots = append(m.snapshots, snap)
	return nil
}

// GetSnapshot retrieves a snapshot by id
func (m *MemoryStorage) GetSnapshot(_ context.Context, id string) (*types.ConfigSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, snap := range m.snapshots {
		if snap.ID == id {
			return snap, nil
		}
	}
	return nil, types.ErrVersionNotFound
}

// ListSnapshots returns snapshot metadata, newest first
func (m *MemoryStorage) ListSnapshots(_ context.Context) ([]*types.ConfigSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// insertion order is chronological; newest first means reverse order
	out := make([]*types.ConfigSnapshot, 0, len(m.snapshots))
	for i := len(m.snapshots) - 1; i >= 0; i-- {
		out = append(out, m.snapshots[i].Meta())
	}
	return out, nil
}

// SaveAuditEntry appends one audit entry
func (m *MemoryStorage) SaveAuditEntry(_ context.Context, entry *types.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = append(m.entries, entry)
	return nil
}

// QueryAuditEntries returns entries matching the filter in sequence order
func (m *MemoryStorage) QueryAuditEntries(_ context.Context, q *AuditQuery) ([]*types.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]*types.AuditEntry, 0)
	for _, e := range m.entries {
		if !q.StartDate.IsZero() && e.Timestamp.Before(q.StartDate) {
			continue
		}
		if !q.EndDate.IsZero() && e.Timestamp.After(q.EndDate) {
			continue
		}
		if q.Action != "" && e.Action != q.Action {
			continue
		}
		if q.Key != "" && e.Key != q.Key {
			continue
		}
		if q.UserID != "" && e.UserID != q.UserID {
			continue
		}
		matched = append(matched, e)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Sequence < matched[j].Sequence
	})

	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}

	return matched, nil
}

// MaxAuditSequence returns the highest stored sequence number
func (m *MemoryStorage) MaxAuditSequence(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var max int64
	for _, e := range m.entries {
		if e.Sequence > max {
			max = e.Sequence
		}
	}
	return max, nil
}

// PruneAuditEntries removes entries older than the cutoff
func (m *MemoryStorage) PruneAuditEntries(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.entries[:0]
	var removed int64
	for _, e := range m.entries {
		if e.Timestamp.Before(before) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
	return removed, nil
}

// Ping reports storage health
func (m *MemoryStorage) Ping(_ context.Context) error {
	return nil
}

// Close marks the storage closed
func (m *MemoryStorage) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// Stats returns empty statistics
func (m *MemoryStorage) Stats() Stats {
	return Stats{}
}

// Driver returns the driver name
func (m *MemoryStorage) Driver() string {
	return "memory"
}
