package audit

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"confd/internal/storage"
	"confd/internal/types"
)

// ExportFormat selects the export serialization
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
	FormatCSV  ExportFormat = "csv"
)

// ExportOptions controls what Export writes
type ExportOptions struct {
	Format    ExportFormat
	StartDate time.Time
	EndDate   time.Time
}

var csvHeader = []string{
	"sequence", "timestamp", "action", "key",
	"old_value", "new_value", "user_id", "source_ip", "user_agent",
}

// Export streams the filtered log to w in the requested format. Entries
// were masked before persistence, so nothing written here can leak a
// secret. The view is consistent as of the call; concurrent appends are
// not included. The writer is flushed before returning on both success and
// failure paths; closing it stays with the caller.
func (l *Log) Export(ctx context.Context, w io.Writer, opts ExportOptions) error {
	filter := &storage.AuditQuery{
		StartDate: opts.StartDate,
		EndDate:   opts.EndDate,
	}

	switch opts.Format {
	case FormatJSON:
		return l.exportJSON(ctx, w, filter)
	case FormatCSV:
		return l.exportCSV(ctx, w, filter)
	default:
		return &types.ExportError{
			Format: string(opts.Format),
			Err:    fmt.Errorf("unsupported export format"),
		}
	}
}

func (l *Log) exportJSON(ctx context.Context, w io.Writer, filter *storage.AuditQuery) error {
	if _, err := io.WriteString(w, "[\n"); err != nil {
		return &types.ExportError{Format: "json", Err: err}
	}

	enc := json.NewEncoder(w)
	first := true

	err := l.iterate(ctx, filter, func(entry *types.AuditEntry) error {
		if !first {
			if _, err := io.WriteString(w, ",\n"); err != nil {
				return err
			}
		}
		first = false
		return enc.Encode(entry)
	})
	if err != nil {
		return &types.ExportError{Format: "json", Err: err}
	}

	if _, err := io.WriteString(w, "]\n"); err != nil {
		return &types.ExportError{Format: "json", Err: err}
	}

	return nil
}

func (l *Log) exportCSV(ctx context.Context, w io.Writer, filter *storage.AuditQuery) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(csvHeader); err != nil {
		return &types.ExportError{Format: "csv", Err: err}
	}

	err := l.iterate(ctx, filter, func(entry *types.AuditEntry) error {
		return cw.Write([]string{
			strconv.FormatInt(entry.Sequence, 10),
			entry.Timestamp.Format(time.RFC3339),
			string(entry.Action),
			entry.Key,
			entry.OldValue,
			entry.NewValue,
			entry.UserID,
			entry.SourceIP,
			entry.UserAgent,
		})
	})
	if err != nil {
		return &types.ExportError{Format: "csv", Err: err}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return &types.ExportError{Format: "csv", Err: err}
	}

	return nil
}
