package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an operation targets a row that does not exist.
var ErrNotFound = errors.New("not found")

// Error reports a failure of the durable store. It is never retried by the
// submitter or the sync engine: a store that cannot persist is fatal for the
// operation in progress.
type Error struct {
	// Op names the queue operation that failed (append, list, remove, ...).
	Op  string
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying database error.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsStoreError returns true if err is or wraps a store Error.
// Uses errors.As to handle wrapped errors.
func IsStoreError(err error) bool {
	var se *Error
	return errors.As(err, &se)
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}
