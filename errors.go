package actum

import (
	"errors"
	"fmt"
	"strings"

	"github.com/syssam/actum/dialect/sql"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("actum: entity not found")

	// ErrNoTransaction is returned when Commit or Rollback is called
	// with no active transaction.
	ErrNoTransaction = errors.New("actum: no active transaction")

	// ErrNotConfigured is returned when an operation requires a
	// connection and none is bound to the session.
	ErrNotConfigured = errors.New("actum: connection not configured")
)

// NotFoundError represents an error when an entity is not found.
type NotFoundError struct {
	label string
	id    any // Optional: the ID that was searched for
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if e.id != nil {
		return fmt.Sprintf("actum: %s not found (id=%v)", e.label, e.id)
	}
	return fmt.Sprintf("actum: %s not found", e.label)
}

// Is reports whether the target error matches NotFoundError.
// This allows errors.Is(notFoundErr, ErrNotFound) to return true.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Label returns the entity label.
func (e *NotFoundError) Label() string {
	return e.label
}

// ID returns the ID that was searched for, if available.
func (e *NotFoundError) ID() any {
	return e.id
}

// NewNotFoundError returns a new NotFoundError for the given entity type.
func NewNotFoundError(label string) *NotFoundError {
	return &NotFoundError{label: label}
}

// NewNotFoundErrorWithID returns a new NotFoundError with the ID that was searched for.
func NewNotFoundErrorWithID(label string, id any) *NotFoundError {
	return &NotFoundError{label: label, id: id}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// ExecError wraps a driver execution failure with the failing statement
// context. The statement is always logged before the error propagates.
type ExecError struct {
	Op    string // Operation (e.g., "insert", "update", "select")
	Query string // The failing SQL text
	Err   error  // Underlying driver error
}

// Error returns the error string.
func (e *ExecError) Error() string {
	op := e.Op
	if op != "" {
		op = strings.ToUpper(op[:1]) + op[1:]
	}
	return fmt.Sprintf("actum: %s failed: %v", op, e.Err)
}

// Unwrap returns the underlying error.
func (e *ExecError) Unwrap() error {
	return e.Err
}

// NewExecError returns a new ExecError.
func NewExecError(op, query string, err error) *ExecError {
	return &ExecError{Op: op, Query: query, Err: err}
}

// IsExecError returns true if the error is an ExecError.
func IsExecError(err error) bool {
	if err == nil {
		return false
	}
	var e *ExecError
	return errors.As(err, &e)
}

// ConstraintError represents a database constraint violation error.
type ConstraintError struct {
	msg  string
	wrap error
}

// Error returns the error string.
func (e ConstraintError) Error() string {
	return fmt.Sprintf("actum: constraint failed: %s", e.msg)
}

// Unwrap returns the underlying error.
func (e ConstraintError) Unwrap() error {
	return e.wrap
}

// NewConstraintError returns a new ConstraintError with the given message.
func NewConstraintError(msg string, wrap error) error {
	return ConstraintError{msg: msg, wrap: wrap}
}

// IsConstraintError returns true if the error is a ConstraintError.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var e ConstraintError
	return errors.As(err, &e)
}

// CastError represents a failed or unsupported attribute cast.
type CastError struct {
	Field string   // Field name
	Cast  CastType // Declared cast
	Value any      // The value that could not be cast
}

// Error returns the error string.
func (e *CastError) Error() string {
	return fmt.Sprintf("actum: cannot cast field %q (%T) to %s", e.Field, e.Value, e.Cast)
}

// NewCastError returns a new CastError.
func NewCastError(field string, cast CastType, value any) *CastError {
	return &CastError{Field: field, Cast: cast, Value: value}
}

// IsCastError returns true if the error is a CastError.
func IsCastError(err error) bool {
	if err == nil {
		return false
	}
	var e *CastError
	return errors.As(err, &e)
}

// UnknownScopeError is returned when Scope is called with a name that
// has no registered scope.
type UnknownScopeError struct {
	Entity string
	Name   string
}

// Error returns the error string.
func (e *UnknownScopeError) Error() string {
	return fmt.Sprintf("actum: unknown scope %q on %s", e.Name, e.Entity)
}

// IsUnknownScope returns true if the error is an UnknownScopeError.
func IsUnknownScope(err error) bool {
	if err == nil {
		return false
	}
	var e *UnknownScopeError
	return errors.As(err, &e)
}

// UnknownRelationError is returned when a relation name has no
// registered definition.
type UnknownRelationError struct {
	Entity string
	Name   string
}

// Error returns the error string.
func (e *UnknownRelationError) Error() string {
	return fmt.Sprintf("actum: unknown relation %q on %s", e.Name, e.Entity)
}

// IsUnknownRelation returns true if the error is an UnknownRelationError.
func IsUnknownRelation(err error) bool {
	if err == nil {
		return false
	}
	var e *UnknownRelationError
	return errors.As(err, &e)
}

// MassAssignmentError is returned by Fill in strict mode when the
// attribute set contains non-fillable fields. In the default mode those
// fields are silently dropped instead.
type MassAssignmentError struct {
	Entity string
	Fields []string
}

// Error returns the error string.
func (e *MassAssignmentError) Error() string {
	return fmt.Sprintf("actum: mass assignment of guarded fields [%s] on %s", strings.Join(e.Fields, ", "), e.Entity)
}

// IsMassAssignment returns true if the error is a MassAssignmentError.
func IsMassAssignment(err error) bool {
	if err == nil {
		return false
	}
	var e *MassAssignmentError
	return errors.As(err, &e)
}

// RollbackError wraps an error that occurred during a transaction rollback.
type RollbackError struct {
	Err error // Original error that triggered rollback
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("actum: rollback failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *RollbackError) Unwrap() error {
	return e.Err
}

// IsInvalidColumn returns true if the error is a column whitelist
// violation reported by the SQL compiler.
func IsInvalidColumn(err error) bool {
	return sql.IsInvalidColumn(err)
}
