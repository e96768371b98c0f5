package service

import (
	"context"
	"fmt"
	"time"

	"confd/internal/buildinfo"
	"confd/internal/types"
)

// HealthCheck reports the health of storage and the sizes of the live
// store, version history and audit trail
func (s *Service) HealthCheck(ctx context.Context) *types.HealthStatus {
	status := &types.HealthStatus{
		Healthy:   true,
		Timestamp: time.Now(),
		Version:   buildinfo.GetInfo().Version,
		StartTime: s.startTime,
		Uptime:    time.Since(s.startTime),
	}

	if err := s.checkStorageHealth(ctx); err != nil {
		status.Healthy = false
		status.Details = append(status.Details, types.ComponentStatus{
			Name:      "storage",
			Status:    "unhealthy",
			Error:     err.Error(),
			LastCheck: time.Now(),
		})
	} else {
		status.Details = append(status.Details, types.ComponentStatus{
			Name:      "storage",
			Status:    "healthy",
			LastCheck: time.Now(),
		})
	}

	status.Details = append(status.Details, types.ComponentStatus{
		Name:      "config_store",
		Status:    "healthy",
		Message:   fmt.Sprintf("Keys: %d", s.live.Len()),
		LastCheck: time.Now(),
	})

	status.Details = append(status.Details, types.ComponentStatus{
		Name:      "versioning",
		Status:    "healthy",
		Message:   fmt.Sprintf("Versions: %d", s.versions.Count()),
		LastCheck: time.Now(),
	})

	status.Details = append(status.Details, types.ComponentStatus{
		Name:      "audit",
		Status:    "healthy",
		Message:   fmt.Sprintf("Last sequence: %d", s.auditLog.Sequence()),
		LastCheck: time.Now(),
	})

	return status
}

func (s *Service) checkStorageHealth(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.storage.Ping(ctx)
}
