package service

import (
	"context"
	"errors"
	"fmt"

	"confd/internal/types"

	"go.uber.org/zap"
)

// auditWarning converts a failed audit append into the warning surfaced
// next to an otherwise successful result
func auditWarning(err error) *types.LoggingFailure {
	if err == nil {
		return nil
	}
	var lf *types.LoggingFailure
	if errors.As(err, &lf) {
		return lf
	}
	return &types.LoggingFailure{Err: err}
}

// GetAllConfig returns the live configuration with sensitive values
// masked. The access is audited; a failed audit append is returned as a
// warning next to the result, never instead of it.
func (s *Service) GetAllConfig(ctx context.Context, actor types.Actor) (map[string]string, *types.LoggingFailure) {
	values := s.live.GetAll()
	masked := s.sanitizer.MaskSensitiveValues(values)

	err := s.auditLog.LogAccess(ctx, types.AuditKeyAllConfig, actor)
	if err != nil {
		s.logger.Warn("failed to audit config access", zap.Error(err))
	}
	return masked, auditWarning(err)
}

// GetConfig returns a single masked value
func (s *Service) GetConfig(ctx context.Context, key string, actor types.Actor) (string, *types.LoggingFailure, error) {
	value, err := s.live.Get(key)
	if err != nil {
		return "", nil, err
	}

	auditErr := s.auditLog.LogAccess(ctx, key, actor)
	if auditErr != nil {
		s.logger.Warn("failed to audit config access",
			zap.String("key", key), zap.Error(auditErr))
	}
	return s.sanitizer.MaskValue(key, value), auditWarning(auditErr), nil
}

// UpdateResult describes a committed configuration change
type UpdateResult struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Existed  bool   `json:"existed"`
	Snapshot string `json:"snapshot,omitempty"`
}

// UpdateConfig sanitizes and validates the value, snapshots the current
// state when the policy asks for it, applies the change to the live store
// and storage, and audits the update. If storage rejects the write the
// live store is restored to its previous state before the error returns.
func (s *Service) UpdateConfig(ctx context.Context, key, value string, actor types.Actor) (*UpdateResult, *types.LoggingFailure, error) {
	s.mutationMu.Lock()
	defer s.mutationMu.Unlock()

	clean, err := s.sanitizer.Sanitize(map[string]string{key: value})
	if err != nil {
		return nil, nil, err
	}
	cleanValue := clean[key]

	if err := s.rules.ValidateConfigValue(key, cleanValue); err != nil {
		return nil, nil, err
	}

	var snapshotID string
	if s.config.Runtime.SnapshotOnChange {
		snap, err := s.versions.Create(ctx,
			fmt.Sprintf("Before update of %s", key), actor.UserID, []string{"auto"})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to snapshot configuration: %w", err)
		}
		snapshotID = snap.ID
	}

	old, existed := s.live.Set(key, cleanValue)
	if err := s.storage.SaveConfigValue(ctx, key, cleanValue); err != nil {
		// storage stays authoritative, undo the in-memory write
		if existed {
			s.live.Set(key, old)
		} else {
			_, _ = s.live.Delete(key)
		}
		return nil, nil, fmt.Errorf("failed to persist config value: %w", err)
	}

	auditErr := s.auditLog.LogUpdate(ctx, key, old, cleanValue, actor)
	if auditErr != nil {
		s.logger.Warn("failed to audit config update",
			zap.String("key", key), zap.Error(auditErr))
	}

	s.logger.Info("config value updated",
		zap.String("key", key),
		zap.Bool("existed", existed),
		zap.String("user", actor.UserID))

	s.notifyChange()

	return &UpdateResult{
		Key:      key,
		Value:    s.sanitizer.MaskValue(key, cleanValue),
		Existed:  existed,
		Snapshot: snapshotID,
	}, auditWarning(auditErr), nil
}

// DeleteConfig removes a key. Required keys are refused before any state
// changes, including when the key does not exist.
func (s *Service) DeleteConfig(ctx context.Context, key string, actor types.Actor) (*types.LoggingFailure, error) {
	s.mutationMu.Lock()
	defer s.mutationMu.Unlock()

	if s.live.IsRequiredKey(key) {
		return nil, &types.RequiredKeyError{Key: key}
	}

	if s.config.Runtime.SnapshotOnChange && s.live.Has(key) {
		if _, err := s.versions.Create(ctx,
			fmt.Sprintf("Before deletion of %s", key), actor.UserID, []string{"auto"}); err != nil {
			return nil, fmt.Errorf("failed to snapshot configuration: %w", err)
		}
	}

	old, err := s.live.Delete(key)
	if err != nil {
		return nil, err
	}
	if err := s.storage.DeleteConfigValue(ctx, key); err != nil {
		s.live.Set(key, old)
		return nil, fmt.Errorf("failed to delete config value: %w", err)
	}

	auditErr := s.auditLog.LogDelete(ctx, key, old, actor)
	if auditErr != nil {
		s.logger.Warn("failed to audit config deletion",
			zap.String("key", key), zap.Error(auditErr))
	}

	s.logger.Info("config value deleted",
		zap.String("key", key),
		zap.String("user", actor.UserID))

	s.notifyChange()
	return auditWarning(auditErr), nil
}

// IsNotFound reports whether err represents a missing key or version
func IsNotFound(err error) bool {
	return errors.Is(err, types.ErrKeyNotFound) || errors.Is(err, types.ErrVersionNotFound)
}
