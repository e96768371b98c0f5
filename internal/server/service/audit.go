package service

import (
	"context"
	"io"

	"confd/internal/audit"
	"confd/internal/storage"
	"confd/internal/types"
)

// QueryAuditLogs runs a filtered, paginated query over the audit trail.
// Reads never take the mutation lock.
func (s *Service) QueryAuditLogs(ctx context.Context, q *storage.AuditQuery) ([]*types.AuditEntry, error) {
	return s.auditLog.Query(ctx, q)
}

// AuditStatistics aggregates the audit trail into per-action, per-key,
// per-user and per-day counts
func (s *Service) AuditStatistics(ctx context.Context) (*audit.Statistics, error) {
	return s.auditLog.GetStatistics(ctx)
}

// ExportAuditLogs streams the audit trail to w in the requested format
func (s *Service) ExportAuditLogs(ctx context.Context, w io.Writer, opts audit.ExportOptions) error {
	return s.auditLog.Export(ctx, w, opts)
}

// AuditSequence returns the sequence number of the latest audit entry
func (s *Service) AuditSequence() int64 {
	return s.auditLog.Sequence()
}
