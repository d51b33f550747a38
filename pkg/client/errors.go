package client

import (
	"errors"
	"fmt"
)

var (
	// ErrTransportFailure is matched by every TransportError.
	ErrTransportFailure = errors.New("transport failure")

	// ErrRevalidationFailed is matched by TransportErrors raised while
	// revalidating a stale entry. The entry is left in the store.
	ErrRevalidationFailed = errors.New("revalidation failed")

	// ErrNoBody is returned by Decode for responses without a body.
	ErrNoBody = errors.New("response has no body")
)

// TransportError wraps a failure of the transport collaborator.
type TransportError struct {
	Method       string
	Target       string
	Revalidation bool
	Err          error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Revalidation {
		return fmt.Sprintf("revalidate %s %s: %v", e.Method, e.Target, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.Target, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is matches ErrTransportFailure, and ErrRevalidationFailed for
// revalidation failures.
func (e *TransportError) Is(target error) bool {
	switch target {
	case ErrTransportFailure:
		return true
	case ErrRevalidationFailed:
		return e.Revalidation
	default:
		return false
	}
}
