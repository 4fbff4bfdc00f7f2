package engine

import (
	"errors"
	"fmt"
)

// DrainError explains why a drain pass stopped early.
//
// A remote failure is reported in Report.Err and the pass simply aborts.
// A store failure is also returned as the Drain error because the queue
// can no longer be trusted for this pass.
type DrainError struct {
	// Code identifies the error category.
	Code DrainErrorCode

	// Pass is the number of the drain pass.
	Pass int64

	// LocalID identifies the record being replayed, zero if none.
	LocalID int64

	// Err is the underlying remote, store or context error.
	Err error
}

// DrainErrorCode categorizes drain errors.
type DrainErrorCode string

const (
	// ErrCodeRemoteFailure indicates the endpoint did not confirm a record.
	ErrCodeRemoteFailure DrainErrorCode = "REMOTE_FAILURE"

	// ErrCodeStoreFailure indicates a queue operation failed.
	ErrCodeStoreFailure DrainErrorCode = "STORE_FAILURE"

	// ErrCodeCancelled indicates the caller's context ended the pass.
	ErrCodeCancelled DrainErrorCode = "CANCELLED"
)

// Error implements the error interface.
func (e *DrainError) Error() string {
	if e.LocalID != 0 {
		return fmt.Sprintf("%s: pass %d, local_id %d: %v", e.Code, e.Pass, e.LocalID, e.Err)
	}
	return fmt.Sprintf("%s: pass %d: %v", e.Code, e.Pass, e.Err)
}

// Unwrap returns the underlying error.
func (e *DrainError) Unwrap() error {
	return e.Err
}

// IsRemoteFailure returns true if the drain stopped on a remote failure.
// Uses errors.As to handle wrapped errors.
func IsRemoteFailure(err error) bool {
	var de *DrainError
	return errors.As(err, &de) && de.Code == ErrCodeRemoteFailure
}

// IsStoreFailure returns true if the drain stopped on a queue failure.
func IsStoreFailure(err error) bool {
	var de *DrainError
	return errors.As(err, &de) && de.Code == ErrCodeStoreFailure
}
