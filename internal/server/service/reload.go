package service

import (
	"context"

	"confd/internal/reload"
	"confd/internal/types"

	"go.uber.org/zap"
)

// ForceReload notifies every registered listener that the configuration
// should be re-read. The trigger is recorded in the audit trail.
func (s *Service) ForceReload(ctx context.Context, actor types.Actor) (*reload.Result, *types.LoggingFailure) {
	result := s.coordinator.ForceReload(ctx)

	auditErr := s.auditLog.LogAccess(ctx, types.AuditKeyForceReload, actor)
	if auditErr != nil {
		s.logger.Warn("failed to audit reload trigger", zap.Error(auditErr))
	}

	s.logger.Info("reload triggered",
		zap.Int("notified", result.Notified),
		zap.Int("failed", result.Failed),
		zap.String("user", actor.UserID))
	return result, auditWarning(auditErr)
}
