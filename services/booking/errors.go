package booking

import (
	"errors"
	"fmt"
)

// Kind classifies a booking failure for the transport layer.
type Kind string

const (
	KindNotFound        Kind = "not_found"
	KindForbidden       Kind = "forbidden"
	KindConflict        Kind = "conflict"
	KindExternalService Kind = "external_service"
	KindValidation      Kind = "validation"
	KindInternal        Kind = "internal"
)

// BookingError carries a human-readable reason alongside its Kind.
type BookingError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *BookingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *BookingError) Unwrap() error {
	return e.Err
}

// Is matches any BookingError of the same Kind against the bare sentinels below.
func (e *BookingError) Is(target error) bool {
	t, ok := target.(*BookingError)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrNotFound        = &BookingError{Kind: KindNotFound}
	ErrForbidden       = &BookingError{Kind: KindForbidden}
	ErrConflict        = &BookingError{Kind: KindConflict}
	ErrExternalService = &BookingError{Kind: KindExternalService}
	ErrValidation      = &BookingError{Kind: KindValidation}
)

func newError(kind Kind, msg string, err error) *BookingError {
	return &BookingError{Kind: kind, Message: msg, Err: err}
}

func notFound(msg string) error { return newError(KindNotFound, msg, nil) }
func forbidden(msg string) error { return newError(KindForbidden, msg, nil) }
func conflict(msg string) error { return newError(KindConflict, msg, nil) }
func invalid(msg string, err error) error { return newError(KindValidation, msg, err) }
func external(msg string, err error) error { return newError(KindExternalService, msg, err) }
func internalError(msg string, err error) error { return newError(KindInternal, msg, err) }

// KindOf reports the Kind of err, or KindInternal for anything unclassified.
func KindOf(err error) Kind {
	var be *BookingError
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindInternal
}

// MessageOf returns the caller-facing reason carried by err.
func MessageOf(err error) string {
	var be *BookingError
	if errors.As(err, &be) && be.Message != "" {
		return be.Message
	}
	return "Internal server error"
}
