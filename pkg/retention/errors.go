package retention

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPolicyNotFound is returned when a policy id is unknown.
	ErrPolicyNotFound = errors.New("retention policy not found")

	// ErrPolicyConflict is returned when an organization already has a
	// policy for the entity type.
	ErrPolicyConflict = errors.New("retention policy already exists for organization and entity type")

	// ErrHoldNotFound is returned when a record hold id is unknown.
	ErrHoldNotFound = errors.New("record hold not found")
)

// FieldError is a validation failure on a single policy field.
type FieldError struct {
	// Field is the dotted path, e.g. "executionSchedule.hour".
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every problem found in a malformed policy.
type ValidationError struct {
	Errors []FieldError
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "policy validation failed"
	case 1:
		return fmt.Sprintf("policy validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "policy validation failed with %d errors:", len(e.Errors))
	for _, fe := range e.Errors {
		sb.WriteString("\n  - ")
		sb.WriteString(fe.Error())
	}
	return sb.String()
}

// StorageError represents a failure in a policy store, record store or
// archive sink.
type StorageError struct {
	Backend   string // "sqlite", "postgres", "memory", "file"
	Operation string // "find", "delete", "record_success", "archive", ...
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{
		Backend:   backend,
		Operation: operation,
		Cause:     cause,
	}
}

// ConfigurationError is a policy that is well-formed but cannot be executed
// as configured, such as archiving with nowhere to archive to.
type ConfigurationError struct {
	PolicyID string
	Field    string
	Message  string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error [policy_id=%s, field=%s]: %s", e.PolicyID, e.Field, e.Message)
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(policyID, field, message string) *ConfigurationError {
	return &ConfigurationError{
		PolicyID: policyID,
		Field:    field,
		Message:  message,
	}
}

// ArchiveError represents a failure serializing records for archival.
type ArchiveError struct {
	Format      ArchiveFormat
	RecordCount int
	Cause       error
}

// Error implements the error interface.
func (e *ArchiveError) Error() string {
	return fmt.Sprintf("archive error [format=%s, record_count=%d]: %v", e.Format, e.RecordCount, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *ArchiveError) Unwrap() error {
	return e.Cause
}

// NewArchiveError creates a new ArchiveError.
func NewArchiveError(format ArchiveFormat, recordCount int, cause error) *ArchiveError {
	return &ArchiveError{
		Format:      format,
		RecordCount: recordCount,
		Cause:       cause,
	}
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
