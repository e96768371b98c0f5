package service

import (
	"context"

	"confd/internal/types"

	"go.uber.org/zap"
)

// CreateVersion snapshots the live configuration under the mutation lock
// so the captured state always matches a state that actually existed
func (s *Service) CreateVersion(ctx context.Context, description string, tags []string, actor types.Actor) (*types.ConfigSnapshot, error) {
	s.mutationMu.Lock()
	defer s.mutationMu.Unlock()

	snap, err := s.versions.Create(ctx, description, actor.UserID, tags)
	if err != nil {
		return nil, err
	}

	s.logger.Info("version created",
		zap.String("id", snap.ID),
		zap.String("user", actor.UserID))
	return snap, nil
}

// ListVersions returns version metadata, newest first, without payloads
func (s *Service) ListVersions(ctx context.Context) []*types.ConfigSnapshot {
	return s.versions.List(ctx)
}

// GetVersion returns one version with its configuration masked
func (s *Service) GetVersion(ctx context.Context, id string) (*types.ConfigSnapshot, error) {
	snap, err := s.versions.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	masked := *snap
	masked.Config = s.sanitizer.MaskSensitiveValues(snap.Config)
	return &masked, nil
}

// CompareVersions diffs two versions. Values in the diff are masked so a
// comparison never leaks a secret that the config endpoints would hide.
func (s *Service) CompareVersions(ctx context.Context, id1, id2 string) ([]*types.DiffEntry, error) {
	entries, err := s.versions.Compare(ctx, id1, id2)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		e.Value1 = s.sanitizer.MaskValue(e.Key, e.Value1)
		e.Value2 = s.sanitizer.MaskValue(e.Key, e.Value2)
	}
	return entries, nil
}

// RollbackVersion restores a previous version as the live configuration.
// A new snapshot documenting the post-rollback state is appended to
// history, and the operation is audited with the set of keys it changed.
func (s *Service) RollbackVersion(ctx context.Context, id string, actor types.Actor) (*types.RollbackResult, *types.LoggingFailure, error) {
	s.mutationMu.Lock()
	defer s.mutationMu.Unlock()

	result, err := s.versions.Rollback(ctx, id, actor.UserID)
	if err != nil {
		return nil, nil, err
	}

	auditErr := s.auditLog.LogRollback(ctx, id, result.ChangedKeys, actor)
	if auditErr != nil {
		s.logger.Warn("failed to audit rollback",
			zap.String("version", id), zap.Error(auditErr))
	}

	s.logger.Info("configuration rolled back",
		zap.String("version", id),
		zap.Int("changed_keys", len(result.ChangedKeys)),
		zap.String("user", actor.UserID))

	s.notifyChange()
	return result, auditWarning(auditErr), nil
}
