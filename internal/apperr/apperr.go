// Package apperr defines the error taxonomy shared by all engine operations.
// Errors carry a kind plus structured detail (conflicting reservation,
// check-in window bounds, suggested alternatives) so callers can drive a
// retry or an alternate choice without parsing messages.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers and for HTTP status mapping.
type Kind string

const (
	// KindValidation marks malformed input.
	KindValidation Kind = "validation"
	// KindNotFound marks a missing room or reservation.
	KindNotFound Kind = "not_found"
	// KindPolicy marks a booking-rule violation: outside operating hours,
	// duration or advance-day limits exceeded, room inactive or unavailable.
	KindPolicy Kind = "policy"
	// KindConflict marks an overlapping interval, including lost creation races.
	KindConflict Kind = "conflict"
	// KindState marks a check-in attempted against the wrong status or
	// outside the check-in window.
	KindState Kind = "state"
	// KindAuthorization marks a privileged operation without privilege.
	KindAuthorization Kind = "authorization"
	// KindService marks a persistence or infrastructure failure. It is the
	// only kind eligible for automatic retry by a caller.
	KindService Kind = "service"
)

// Error is a kinded error with optional structured detail.
type Error struct {
	Kind   Kind
	Msg    string
	Detail map[string]any
	err    error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Unwrap exposes the wrapped cause.
func (e *Error) Unwrap() error { return e.err }

// New creates an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, err: err}
}

// With attaches a structured detail field and returns the error.
func (e *Error) With(key string, value any) *Error {
	if e.Detail == nil {
		e.Detail = make(map[string]any)
	}
	e.Detail[key] = value
	return e
}

// KindOf returns the kind of err, or KindService for unclassified errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindService
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}

// DetailOf returns the structured detail of err, or nil.
func DetailOf(err error) map[string]any {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Detail
	}
	return nil
}
