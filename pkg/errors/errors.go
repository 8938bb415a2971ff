// Package errors provides custom error types for the ocsge-pv system.
// These errors enable programmatic error checking with errors.Is/As and
// keep per-record faults distinguishable from run-fatal ones.
package errors

import (
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Common sentinel errors for the ocsge-pv system
var (
	// ErrNotFound indicates that a requested record was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnresolved indicates that a declaration's parcel references
	// resolved to no cadastral geometry
	ErrUnresolved = errors.New("unresolved parcel references")

	// ErrGeometry indicates an invalid, empty, or unreadable geometry
	ErrGeometry = errors.New("invalid geometry")

	// ErrTransient indicates a retryable storage or network failure
	ErrTransient = errors.New("transient failure")

	// ErrScopeLocked indicates that another run holds the scope lock
	ErrScopeLocked = errors.New("scope lock unavailable")

	// ErrMaterialization indicates that link materialization failed
	ErrMaterialization = errors.New("materialization failed")

	// ErrTokenRequired indicates that an API token is required but not provided
	ErrTokenRequired = errors.New("API token required")

	// ErrRateLimited indicates that the remote API rate limit has been exceeded
	ErrRateLimited = errors.New("rate limited")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrCanceled indicates that an operation was canceled
	ErrCanceled = errors.New("operation canceled")
)

// NotFoundError represents an error when a record is not found
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// UnresolvedReferenceError represents a declaration whose parcel references
// matched no cadastral parcel. It is a per-record fault: the declaration is
// marked unresolved and the run continues.
type UnresolvedReferenceError struct {
	Declaration int64
	References  []string
	Missing     int
}

// Error implements the error interface
func (e *UnresolvedReferenceError) Error() string {
	if len(e.References) > 0 {
		return fmt.Sprintf("declaration %d: no resolvable parcel among %d references (%d missing)",
			e.Declaration, len(e.References), e.Missing)
	}
	return fmt.Sprintf("declaration %d: no parcel references", e.Declaration)
}

// Is implements errors.Is support
func (e *UnresolvedReferenceError) Is(target error) bool {
	return target == ErrUnresolved
}

// NewUnresolvedReferenceError creates a new UnresolvedReferenceError
func NewUnresolvedReferenceError(declaration int64, references []string, missing int) *UnresolvedReferenceError {
	return &UnresolvedReferenceError{Declaration: declaration, References: references, Missing: missing}
}

// GeometryError represents a geometry computation fault: an unreadable
// encoding, an invalid shape, or an empty result where one is required.
// Per-record: the record is skipped and counted.
type GeometryError struct {
	Stage   string // "decode", "union", "intersection", "repair"
	Subject string // e.g. "declaration 42", "detection 7"
	Message string
	Err     error
}

// Error implements the error interface
func (e *GeometryError) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("geometry error during %s of %s: %s", e.Stage, e.Subject, e.Message)
	}
	return fmt.Sprintf("geometry error during %s: %s", e.Stage, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *GeometryError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *GeometryError) Is(target error) bool {
	return target == ErrGeometry
}

// NewGeometryError creates a new GeometryError
func NewGeometryError(stage, subject, message string) *GeometryError {
	return &GeometryError{Stage: stage, Subject: subject, Message: message}
}

// TransientError represents a retryable storage failure that exhausted its
// retry budget. The run fails with prior committed state intact.
type TransientError struct {
	Operation string
	Attempts  int
	Err       error
}

// Error implements the error interface
func (e *TransientError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("transient failure during %s after %d attempts: %v", e.Operation, e.Attempts, e.Err)
	}
	return fmt.Sprintf("transient failure during %s: %v", e.Operation, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *TransientError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *TransientError) Is(target error) bool {
	return target == ErrTransient
}

// NewTransientError creates a new TransientError
func NewTransientError(operation string, attempts int, err error) *TransientError {
	return &TransientError{Operation: operation, Attempts: attempts, Err: err}
}

// MaterializationError represents a failure while replacing the link table.
// The transaction guarantees rollback to the pre-run table.
type MaterializationError struct {
	Scope   string
	Message string
	Err     error
}

// Error implements the error interface
func (e *MaterializationError) Error() string {
	if e.Scope != "" {
		return fmt.Sprintf("materialization failed for scope %s: %s", e.Scope, e.Message)
	}
	return fmt.Sprintf("materialization failed: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *MaterializationError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *MaterializationError) Is(target error) bool {
	return target == ErrMaterialization
}

// NewMaterializationError creates a new MaterializationError
func NewMaterializationError(scope, message string, err error) *MaterializationError {
	return &MaterializationError{Scope: scope, Message: message, Err: err}
}

// NewScopeLockedError creates a MaterializationError reporting that another
// run holds the scope's advisory lock. errors.Is(err, ErrScopeLocked) holds.
func NewScopeLockedError(scope string) *MaterializationError {
	return &MaterializationError{
		Scope:   scope,
		Message: "another run holds the scope lock",
		Err:     ErrScopeLocked,
	}
}

// ConfigError represents a configuration error. It fails a run before any
// mutation is attempted.
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{
		Component: component,
		Message:   message,
		Err:       err,
	}
}

// ParseError represents an error when parsing data formats
type ParseError struct {
	Format  string // "yaml", "json", "ewkb", etc.
	File    string
	Line    int
	Column  int
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.File != "" && e.Line > 0 {
		return fmt.Sprintf("parse error in %s at %s:%d:%d: %s", e.Format, e.File, e.Line, e.Column, e.Message)
	}
	if e.File != "" {
		return fmt.Sprintf("parse error in %s file %s: %s", e.Format, e.File, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError
func NewParseError(format, file string, message string, err error) *ParseError {
	return &ParseError{
		Format:  format,
		File:    file,
		Message: message,
		Err:     err,
	}
}

// StoreError represents an error during store operations
type StoreError struct {
	Operation string // "fetch", "update", "insert", "delete", "connect"
	Table     string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *StoreError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("failed to %s %s: %s", e.Operation, e.Table, e.Message)
	}
	return fmt.Sprintf("store error during %s: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError
func NewStoreError(operation, table string, err error) *StoreError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &StoreError{
		Operation: operation,
		Table:     table,
		Message:   message,
		Err:       err,
	}
}

// APIError represents an error from the remote declarations API
type APIError struct {
	Endpoint   string
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("API error from %s (status %d): %s", e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error from %s: %s", e.Endpoint, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *APIError) Is(target error) bool {
	if e.StatusCode == 429 {
		return target == ErrRateLimited
	}
	if e.StatusCode >= 500 {
		return target == ErrTransient
	}
	return false
}

// NewAPIError creates a new APIError
func NewAPIError(endpoint string, statusCode int, message string) *APIError {
	return &APIError{
		Endpoint:   endpoint,
		StatusCode: statusCode,
		Message:    message,
	}
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsUnresolved checks if an error marks a declaration with no resolvable parcels
func IsUnresolved(err error) bool {
	return errors.Is(err, ErrUnresolved)
}

// IsGeometry checks if an error is a geometry computation fault
func IsGeometry(err error) bool {
	return errors.Is(err, ErrGeometry)
}

// IsTransient checks if an error is a retryable storage failure
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsScopeLocked checks if an error reports a held scope lock
func IsScopeLocked(err error) bool {
	return errors.Is(err, ErrScopeLocked)
}

// IsMaterialization checks if an error is a materialization failure
func IsMaterialization(err error) bool {
	return errors.Is(err, ErrMaterialization)
}

// IsRateLimited checks if an error is a rate limit error
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsCanceled checks if an error is a cancellation error
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// Helper wrapping functions for common patterns

// WrapValidation wraps an error as a ValidationError
func WrapValidation(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Field: field, Message: err.Error()}
}

// WrapGeometry wraps an error as a GeometryError
func WrapGeometry(stage, subject string, err error) error {
	if err == nil {
		return nil
	}
	return &GeometryError{Stage: stage, Subject: subject, Message: err.Error(), Err: err}
}

// WrapStore wraps an error as a StoreError
func WrapStore(operation, table string, err error) error {
	if err == nil {
		return nil
	}
	return NewStoreError(operation, table, err)
}

// WrapParse wraps an error as a ParseError
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return NewParseError(format, file, err.Error(), err)
}

// WrapAPI wraps an error as an APIError
func WrapAPI(endpoint string, statusCode int, err error) error {
	if err == nil {
		return nil
	}
	return &APIError{
		Endpoint:   endpoint,
		StatusCode: statusCode,
		Message:    err.Error(),
		Err:        err,
	}
}
