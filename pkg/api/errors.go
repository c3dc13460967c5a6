package api

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrInvalidConfig is returned when client configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNoRequest is returned when a fetch is attempted with a nil request
	ErrNoRequest = errors.New("nil request descriptor")

	// ErrBadResponse is returned when the backend envelope cannot be decoded
	ErrBadResponse = errors.New("malformed response")
)

// QueryError wraps errors with operation context
type QueryError struct {
	Op  string // Operation name
	Err error  // Underlying error
}

// Error implements the error interface
func (e *QueryError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("pointquery: %v", e.Err)
	}
	return fmt.Sprintf("pointquery: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *QueryError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target
func (e *QueryError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// wrapError wraps an error with operation context
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &QueryError{Op: op, Err: err}
}

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	RequestID  string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("pointquery: backend returned status %d [request_id=%s]: %s",
		e.StatusCode, e.RequestID, e.Body)
}

// IsNotFound reports whether the backend answered 404.
func (e *StatusError) IsNotFound() bool { return e.StatusCode == 404 }

// IsServerError reports whether the backend answered 5xx.
func (e *StatusError) IsServerError() bool { return e.StatusCode >= 500 && e.StatusCode < 600 }
