// Package backend defines the contract with the remote booking service. The
// state manager and the offline queue only ever see this interface; concrete
// transports live in the httpapi and postgres subpackages.
package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/charter-desk/internal/domain/booking"
)

// Kind classifies a backend failure.
type Kind string

const (
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindNetwork    Kind = "network"
	KindPermission Kind = "permission"
)

// Error is a typed backend failure, surfaced verbatim to callers.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("backend: %s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("backend: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Errf builds a typed backend error.
func Errf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf extracts the failure kind, defaulting unknown errors to network
// since retrying is the safe response to an unclassified failure.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindNetwork
}

// IsRetryable reports whether the failure may succeed on replay. Validation
// and permission failures never will.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindPermission:
		return false
	}
	return true
}

// API is the asynchronous mutation surface of the booking backend. Every call
// suspends until the backend answers; this is the only suspension point in
// the core.
type API interface {
	Create(ctx context.Context, r booking.Reservation) (booking.Reservation, error)
	Update(ctx context.Context, id string, patch booking.Patch) (booking.Reservation, error)
	Delete(ctx context.Context, id string) error
}
