package types

import "time"

// ConfigSnapshot represents an immutable copy of the live configuration
// plus its metadata. Once created it is never edited or removed.
type ConfigSnapshot struct {
	ID          string            `json:"id"`
	CreatedAt   time.Time         `json:"created_at"`
	Description string            `json:"description"`
	Author      string            `json:"author"`
	Tags        []string          `json:"tags,omitempty"`
	Config      map[string]string `json:"config"`
}

// Meta returns a copy of the snapshot without its config payload,
// suitable for listing.
func (s *ConfigSnapshot) Meta() *ConfigSnapshot {
	return &ConfigSnapshot{
		ID:          s.ID,
		CreatedAt:   s.CreatedAt,
		Description: s.Description,
		Author:      s.Author,
		Tags:        append([]string(nil), s.Tags...),
	}
}

// ChangeType classifies a per-key difference between two snapshots
type ChangeType string

const (
	ChangeAdded     ChangeType = "added"
	ChangeRemoved   ChangeType = "removed"
	ChangeChanged   ChangeType = "changed"
	ChangeUnchanged ChangeType = "unchanged"
)

// DiffEntry represents the difference of a single key between two snapshots
type DiffEntry struct {
	Key        string     `json:"key"`
	Value1     string     `json:"value1,omitempty"`
	Value2     string     `json:"value2,omitempty"`
	ChangeType ChangeType `json:"change_type"`
}

// RollbackResult represents the outcome of a rollback operation
type RollbackResult struct {
	SnapshotID  string   `json:"snapshot_id"`  // snapshot created to document the rollback
	RestoredID  string   `json:"restored_id"`  // snapshot the live store was restored to
	ChangedKeys []string `json:"changed_keys"` // keys whose live value changed
}

// AuditAction represents the kind of event recorded in the audit log
type AuditAction string

const (
	ActionAccess   AuditAction = "access"
	ActionUpdate   AuditAction = "update"
	ActionDelete   AuditAction = "delete"
	ActionRollback AuditAction = "rollback"
)

// Synthetic audit keys used for operations that do not target a single key
const (
	AuditKeyAllConfig   = "all_config"
	AuditKeyForceReload = "force_reload"
)

// AuditEntry represents one immutable record of an access, update, delete
// or rollback event. Old and new values are masked before the entry is
// constructed; the true value never reaches persistence.
type AuditEntry struct {
	Sequence  int64       `json:"sequence"`
	Timestamp time.Time   `json:"timestamp"`
	Action    AuditAction `json:"action"`
	Key       string      `json:"key"`
	OldValue  string      `json:"old_value,omitempty"`
	NewValue  string      `json:"new_value,omitempty"`
	UserID    string      `json:"user_id"`
	SourceIP  string      `json:"source_ip"`
	UserAgent string      `json:"user_agent"`
}

// Actor identifies who performed an operation and from where
type Actor struct {
	UserID    string `json:"user_id"`
	SourceIP  string `json:"source_ip"`
	UserAgent string `json:"user_agent"`
}
