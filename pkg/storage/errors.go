package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound is returned when a parent entity does not exist
	ErrNotFound = errors.New("entity not found")
	// ErrUnknownStore is returned by NewStore for an unregistered backend
	ErrUnknownStore = errors.New("unknown store type")
)

// ValidationError reports a structural precondition that failed before any
// write was attempted
type ValidationError struct {
	Entity   string
	Problems []string
}

// NewValidationError creates a validation error with one problem
func NewValidationError(entity, format string, args ...any) *ValidationError {
	return &ValidationError{Entity: entity, Problems: []string{fmt.Sprintf(format, args...)}}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Entity, strings.Join(e.Problems, "; "))
}

// PersistenceError reports a write that affected fewer rows than required
type PersistenceError struct {
	Op       string
	Expected int
	Actual   int
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: expected %d affected rows, got %d", e.Op, e.Expected, e.Actual)
}

// ExpectRows returns a PersistenceError when actual < expected
func ExpectRows(op string, expected, actual int) error {
	if actual < expected {
		return &PersistenceError{Op: op, Expected: expected, Actual: actual}
	}
	return nil
}

// ConstraintViolation wraps an integrity-constraint failure raised by the store
type ConstraintViolation struct {
	Op  string
	Err error
}

func (e *ConstraintViolation) Error() string {
	return fmt.Sprintf("%s: constraint violation: %v", e.Op, e.Err)
}

func (e *ConstraintViolation) Unwrap() error { return e.Err }

// ClassifyError wraps store errors for op. Constraint failures become
// ConstraintViolation; anything else is wrapped with the operation name.
func ClassifyError(op string, err error) error {
	if err == nil {
		return nil
	}
	var cv *ConstraintViolation
	if errors.As(err, &cv) {
		return err
	}
	if isConstraintError(err) {
		return &ConstraintViolation{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// class 23: integrity constraint violation
		return strings.HasPrefix(pgErr.Code, "23")
	}
	return false
}
