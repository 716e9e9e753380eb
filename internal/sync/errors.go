package sync

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by task services when the task no longer exists.
var ErrNotFound = errors.New("not found")

// SourceError means the event feed could not be fetched or parsed.
// It aborts a single run.
type SourceError struct {
	URL string
	Err error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.URL, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// AuthError means the task service credentials are unusable: malformed,
// rejected, or the refresh failed. It aborts a single run.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth %s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// AdapterError is a single failed create, update or delete call.
type AdapterError struct {
	Op       string
	EventUID string
	Err      error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s task for event %s: %v", e.Op, e.EventUID, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// StoreError is a failed read or write of persisted state.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsAuthError reports whether err is or wraps an *AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
