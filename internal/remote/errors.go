package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrNetworkUnavailable is matched by every transport-level failure.
var ErrNetworkUnavailable = errors.New("network unavailable")

// TransientError is a failure to get any answer from the remote endpoint:
// connection refused, DNS failure, reset, or the request timeout elapsed.
type TransientError struct {
	Err     error
	Timeout bool
}

// Error implements the error interface.
func (e *TransientError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: timed out: %v", ErrNetworkUnavailable, e.Err)
	}
	return fmt.Sprintf("%s: %v", ErrNetworkUnavailable, e.Err)
}

// Unwrap exposes both the sentinel and the cause.
func (e *TransientError) Unwrap() []error {
	return []error{ErrNetworkUnavailable, e.Err}
}

// RejectionError is a non-2xx answer from the remote endpoint.
type RejectionError struct {
	StatusCode int
	Message    string

	// Permanent is true for client errors that will not succeed on retry
	// (4xx other than 408 and 429).
	Permanent bool
}

// Error implements the error interface.
func (e *RejectionError) Error() string {
	return fmt.Sprintf("remote rejected movement: %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
}

// IsTransient returns true if a retry of the same request may succeed.
func IsTransient(err error) bool {
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var re *RejectionError
	if errors.As(err, &re) {
		return !re.Permanent
	}
	return false
}

// IsPermanentRejection returns true if the endpoint refused the request in
// a way a retry cannot fix.
func IsPermanentRejection(err error) bool {
	var re *RejectionError
	return errors.As(err, &re) && re.Permanent
}

// IsRemoteError returns true if err came from talking to the endpoint.
func IsRemoteError(err error) bool {
	var te *TransientError
	var re *RejectionError
	return errors.As(err, &te) || errors.As(err, &re)
}

func permanentStatus(code int) bool {
	if code < 400 || code >= 500 {
		return false
	}
	return code != http.StatusRequestTimeout && code != http.StatusTooManyRequests
}

func transportError(err error) *TransientError {
	return &TransientError{
		Err:     err,
		Timeout: errors.Is(err, context.DeadlineExceeded) || isNetTimeout(err),
	}
}

type timeout interface{ Timeout() bool }

func isNetTimeout(err error) bool {
	var t timeout
	return errors.As(err, &t) && t.Timeout()
}
