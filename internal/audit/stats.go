package audit

import (
	"context"

	"confd/internal/storage"
	"confd/internal/types"
)

// Statistics aggregates the audit log: counts per action, key and user
// plus a per-day histogram
type Statistics struct {
	TotalEntries  int64            `json:"total_entries"`
	ByAction      map[string]int64 `json:"by_action"`
	ByKey         map[string]int64 `json:"by_key"`
	ByUser        map[string]int64 `json:"by_user"`
	ByDay         map[string]int64 `json:"by_day"` // YYYY-MM-DD buckets
	FirstSequence int64            `json:"first_sequence,omitempty"`
	LastSequence  int64            `json:"last_sequence,omitempty"`
}

// GetStatistics computes aggregates over the whole log. It iterates a
// consistent view taken at call time and honors context cancellation.
func (l *Log) GetStatistics(ctx context.Context) (*Statistics, error) {
	stats := &Statistics{
		ByAction: make(map[string]int64),
		ByKey:    make(map[string]int64),
		ByUser:   make(map[string]int64),
		ByDay:    make(map[string]int64),
	}

	err := l.iterate(ctx, &storage.AuditQuery{}, func(entry *types.AuditEntry) error {
		stats.TotalEntries++
		stats.ByAction[string(entry.Action)]++
		stats.ByKey[entry.Key]++
		if entry.UserID != "" {
			stats.ByUser[entry.UserID]++
		}
		stats.ByDay[entry.Timestamp.Format("2006-01-02")]++

		if stats.FirstSequence == 0 {
			stats.FirstSequence = entry.Sequence
		}
		stats.LastSequence = entry.Sequence
		return nil
	})
	if err != nil {
		return nil, err
	}

	return stats, nil
}
