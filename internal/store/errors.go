package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a board does not exist.
	ErrNotFound = errors.New("board not found")

	// ErrUnavailable is returned when the backend cannot be reached.
	ErrUnavailable = errors.New("store unavailable")
)

// RetryableError marks a failure that may succeed if the same write is
// attempted again, such as a dropped connection or a timeout.
type RetryableError struct{ Err error }

// Retryable wraps err as a RetryableError.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

func (e *RetryableError) Error() string { return e.Err.Error() }

func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable reports whether err was wrapped with Retryable.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// unavailable wraps a transport failure so it matches both ErrUnavailable
// and IsRetryable.
func unavailable(op string, err error) error {
	return Retryable(fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err))
}
