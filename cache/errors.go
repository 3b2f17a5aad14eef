package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrMiss indicates the key is absent or expired. A miss is a normal
	// outcome, not a failure; callers typically recompute and repopulate.
	ErrMiss = errors.New("cache: miss")

	// ErrSerialization indicates a value could not be encoded or decoded.
	// It is always distinct from ErrMiss so callers can tell "not cached"
	// apart from "cached but corrupt".
	ErrSerialization = errors.New("cache: serialization failed")

	// ErrInternal indicates a programming defect (e.g. an impossible state).
	ErrInternal = errors.New("cache: internal error")

	// ErrTierUnavailable is returned by a breaker-guarded backend while its
	// circuit is open. It is always wrapped in a *BackendError.
	ErrTierUnavailable = errors.New("cache: tier unavailable")
)

// BackendError wraps an I/O or connectivity failure from a backend.
type BackendError struct {
	Backend string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("cache backend %q: %v", e.Backend, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// IsMiss reports whether err represents an absent or expired key.
func IsMiss(err error) bool {
	return errors.Is(err, ErrMiss)
}

// IsSerialization reports whether err represents an encode/decode failure.
func IsSerialization(err error) bool {
	return errors.Is(err, ErrSerialization)
}

// IsBackend reports whether err originated from a backend I/O failure.
func IsBackend(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}

func backendErr(name string, err error) error {
	return &BackendError{Backend: name, Err: err}
}
