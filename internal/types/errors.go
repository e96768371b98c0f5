package types

import (
	"errors"
	"fmt"
)

var (
	ErrKeyNotFound     = errors.New("config key not found")
	ErrVersionNotFound = errors.New("version not found")
	ErrInvalidDriver   = errors.New("invalid database driver")
)

// ValidationError indicates a value failed a validation rule for its key
type ValidationError struct {
	Key    string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Key, e.Reason)
}

// SanitizationError indicates a value could not be sanitized, e.g. a
// malformed URL or a database URL with a disallowed scheme. Value carries
// the offending input so callers can report it.
type SanitizationError struct {
	Key    string
	Value  string
	Reason string
}

func (e *SanitizationError) Error() string {
	return fmt.Sprintf("sanitization failed for %s: %s", e.Key, e.Reason)
}

// RequiredKeyError indicates an attempt to delete a protected key
type RequiredKeyError struct {
	Key string
}

func (e *RequiredKeyError) Error() string {
	return fmt.Sprintf("key %s is required and cannot be deleted", e.Key)
}

// ExportError indicates a failure writing to an export sink
type ExportError struct {
	Format string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export to %s failed: %v", e.Format, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// LoggingFailure indicates the audit append failed after a mutation already
// committed. It is surfaced as a warning alongside the successful result;
// the mutation is never rolled back because of it.
type LoggingFailure struct {
	Action AuditAction
	Err    error
}

func (e *LoggingFailure) Error() string {
	return fmt.Sprintf("audit logging failed for %s: %v", e.Action, e.Err)
}

func (e *LoggingFailure) Unwrap() error {
	return e.Err
}
