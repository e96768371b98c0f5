package version

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"confd/internal/storage"
	"confd/internal/store"
	"confd/internal/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store manages the version history of the live configuration: it creates
// snapshots, diffs them and performs rollback. History is append-only and
// totally ordered by creation time; snapshots are never edited or removed.
//
// Mutating operations (Create as part of a mutation, Rollback) must run
// under the service mutation lock. The internal mutex only guards the
// in-memory history index, so reads never block on mutations.
type Store struct {
	live    *store.Store
	storage storage.Interface
	logger  *zap.Logger

	mu      sync.RWMutex
	history []*types.ConfigSnapshot // oldest first
	byID    map[string]*types.ConfigSnapshot
}

// New creates a version store and loads existing history from storage
func New(ctx context.Context, live *store.Store, st storage.Interface, logger *zap.Logger) (*Store, error) {
	s := &Store{
		live:    live,
		storage: st,
		logger:  logger,
		byID:    make(map[string]*types.ConfigSnapshot),
	}

	metas, err := st.ListSnapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load version history: %w", err)
	}

	// ListSnapshots returns newest first; history is kept oldest first
	for i := len(metas) - 1; i >= 0; i-- {
		s.history = append(s.history, metas[i])
		s.byID[metas[i].ID] = metas[i]
	}

	return s, nil
}

// Create captures the current live configuration as a new immutable
// snapshot and appends it to history
func (s *Store) Create(ctx context.Context, description, author string, tags []string) (*types.ConfigSnapshot, error) {
	snap := &types.ConfigSnapshot{
		ID:          uuid.New().String(),
		CreatedAt:   time.Now().UTC(),
		Description: description,
		Author:      author,
		Tags:        append([]string(nil), tags...),
		Config:      s.live.Snapshot(),
	}

	if err := s.storage.SaveSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("failed to persist snapshot: %w", err)
	}

	s.mu.Lock()
	s.history = append(s.history, snap)
	s.byID[snap.ID] = snap
	s.mu.Unlock()

	s.logger.Info("created config snapshot",
		zap.String("id", snap.ID),
		zap.String("author", author),
		zap.Int("keys", len(snap.Config)))

	return snap, nil
}

// List returns snapshot metadata, newest first
func (s *Store) List(_ context.Context) []*types.ConfigSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.ConfigSnapshot, 0, len(s.history))
	for i := len(s.history) - 1; i >= 0; i-- {
		out = append(out, s.history[i].Meta())
	}
	return out
}

// Get returns a snapshot by id, loading the config payload from storage
// when only metadata is resident
func (s *Store) Get(ctx context.Context, id string) (*types.ConfigSnapshot, error) {
	s.mu.RLock()
	snap, ok := s.byID[id]
	s.mu.RUnlock()
	if !ok {
		return nil, types.ErrVersionNotFound
	}
	if snap.Config != nil {
		return snap, nil
	}

	full, err := s.storage.GetSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.byID[id] = full
	for i, h := range s.history {
		if h.ID == id {
			s.history[i] = full
		}
	}
	s.mu.Unlock()

	return full, nil
}

// Compare diffs two snapshots over the union of their keys, ordered by key
func (s *Store) Compare(ctx context.Context, id1, id2 string) ([]*types.DiffEntry, error) {
	snap1, err := s.Get(ctx, id1)
	if err != nil {
		return nil, err
	}
	snap2, err := s.Get(ctx, id2)
	if err != nil {
		return nil, err
	}

	return Diff(snap1.Config, snap2.Config), nil
}

// Diff computes per-key differences between two configurations
func Diff(config1, config2 map[string]string) []*types.DiffEntry {
	keys := make(map[string]bool, len(config1)+len(config2))
	for k := range config1 {
		keys[k] = true
	}
	for k := range config2 {
		keys[k] = true
	}

	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	diffs := make([]*types.DiffEntry, 0, len(sorted))
	for _, k := range sorted {
		v1, in1 := config1[k]
		v2, in2 := config2[k]

		entry := &types.DiffEntry{Key: k, Value1: v1, Value2: v2}
		switch {
		case !in1 && in2:
			entry.ChangeType = types.ChangeAdded
		case in1 && !in2:
			entry.ChangeType = types.ChangeRemoved
		case v1 != v2:
			entry.ChangeType = types.ChangeChanged
		default:
			entry.ChangeType = types.ChangeUnchanged
		}
		diffs = append(diffs, entry)
	}

	return diffs
}

// Rollback replaces the entire live configuration with the contents of the
// target snapshot, creates a new snapshot documenting the rollback and
// returns the keys whose live value changed. Keys absent from the target
// are removed. The live store is left untouched when the target id is
// unknown; it is restored when persistence fails.
func (s *Store) Rollback(ctx context.Context, id, author string) (*types.RollbackResult, error) {
	target, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	prev := s.live.Snapshot()
	changed := s.live.Replace(target.Config)

	if err := s.storage.ReplaceConfig(ctx, target.Config); err != nil {
		s.live.Replace(prev)
		return nil, fmt.Errorf("failed to persist rollback: %w", err)
	}

	snap, err := s.Create(ctx,
		fmt.Sprintf("Rollback to version %s", id),
		author,
		[]string{"rollback"})
	if err != nil {
		// undo the rollback so the caller never sees a failed
		// operation with mutated state
		s.live.Replace(prev)
		if rerr := s.storage.ReplaceConfig(ctx, prev); rerr != nil {
			s.logger.Error("failed to restore configuration after snapshot failure",
				zap.String("target", id),
				zap.Error(rerr))
		}
		return nil, err
	}

	s.logger.Info("rolled back configuration",
		zap.String("target", id),
		zap.String("snapshot", snap.ID),
		zap.Strings("changed_keys", changed))

	return &types.RollbackResult{
		SnapshotID:  snap.ID,
		RestoredID:  id,
		ChangedKeys: changed,
	}, nil
}

// Count returns the number of snapshots in history
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}
