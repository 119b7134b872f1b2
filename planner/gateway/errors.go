package gateway

import (
	"errors"
	"fmt"
)

// ErrorKind classifies gateway failures for the caller's retry decision.
type ErrorKind string

const (
	// KindTransient covers timeouts, connection failures and 5xx/429
	// responses. Safe to retry.
	KindTransient ErrorKind = "transient"
	// KindPermanent covers 4xx responses other than 401. Retrying will
	// not help.
	KindPermanent ErrorKind = "permanent"
	// KindAuthExpired marks a 401: the bearer token needs a refresh.
	KindAuthExpired ErrorKind = "auth_expired"
)

// Error is the typed failure every gateway operation surfaces.
type Error struct {
	Kind   ErrorKind
	Op     string // e.g. "create_production_order"
	Status int    // HTTP status, 0 for transport failures
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("gateway %s: %s (HTTP %d): %v", e.Op, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("gateway %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retryable gateway failure.
func IsTransient(err error) bool {
	var gerr *Error
	return errors.As(err, &gerr) && gerr.Kind == KindTransient
}

// IsPermanent reports whether err is a non-retryable gateway failure.
func IsPermanent(err error) bool {
	var gerr *Error
	return errors.As(err, &gerr) && gerr.Kind == KindPermanent
}

func classify(op string, status int, err error) *Error {
	switch {
	case status == 0:
		return &Error{Kind: KindTransient, Op: op, Err: err}
	case status == 401:
		return &Error{Kind: KindAuthExpired, Op: op, Status: status, Err: err}
	case status == 429 || status >= 500:
		return &Error{Kind: KindTransient, Op: op, Status: status, Err: err}
	default:
		return &Error{Kind: KindPermanent, Op: op, Status: status, Err: err}
	}
}
