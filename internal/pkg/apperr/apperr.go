// Package apperr implements the error taxonomy of spec.md §7: Client,
// NotFound, Forbidden, System and Transient. Grounded on the teacher's
// sentinel-error-per-package convention (internal/service/campaign/errors.go)
// generalized into one typed error so callers can classify with errors.As
// instead of comparing against package-specific sentinels.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error for the HTTP/CLI boundary (out of scope here,
// but the mapping is: Client/NotFound/Forbidden -> 4xx, System -> 5xx
// opaque, Transient -> retried locally and never surfaced).
type Kind int

const (
	KindSystem Kind = iota
	KindClient
	KindNotFound
	KindForbidden
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindClient:
		return "client"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindTransient:
		return "transient"
	default:
		return "system"
	}
}

// Error is the single error type propagated across subsystem boundaries.
type Error struct {
	Kind    Kind
	Message string
	// Subject is the offending identifier for Client errors (e.g. a
	// conflicting tracker name), included so it can be surfaced to the
	// user (spec.md §4.1).
	Subject string
	Err     error
}

func (e *Error) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Subject)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, apperr.NotFound("")) match any NotFound of the
// same kind regardless of message, matching the granularity callers need.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

func newErr(k Kind, msg string) *Error { return &Error{Kind: k, Message: msg} }

// NotFound builds a NotFound error for the given resource description.
func NotFound(msg string) *Error { return newErr(KindNotFound, msg) }

// Forbidden builds a Forbidden error.
func Forbidden(msg string) *Error { return newErr(KindForbidden, msg) }

// Client builds a Client error carrying the offending subject (e.g. a
// duplicate tracker/CSP/private-key name).
func Client(msg, subject string) *Error {
	return &Error{Kind: KindClient, Message: msg, Subject: subject}
}

// Transient builds a Transient error (lock-busy, transport timeout, 429).
func Transient(msg string, cause error) *Error {
	return &Error{Kind: KindTransient, Message: msg, Err: cause}
}

// System wraps an opaque I/O/serialization/invariant failure. The original
// error is preserved for logging but never shown to the user.
func System(msg string, cause error) *Error {
	return &Error{Kind: KindSystem, Message: msg, Err: cause}
}

// IsConflict reports whether err is a Client error (used by Store callers
// to detect unique-constraint-style conflicts).
func IsConflict(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindClient
}

// IsNotFound reports whether err is a NotFound error.
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindNotFound
}

// IsTransient reports whether err is Transient (safe to retry locally).
func IsTransient(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindTransient
}
