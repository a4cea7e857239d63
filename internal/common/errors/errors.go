// Package errors provides the typed error taxonomy shared by the lifecycle,
// selection and intake engines.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a domain error. Handlers map kinds to transport codes;
// the engines only ever reason about kinds.
type Kind string

const (
	KindNotFound     Kind = "NOT_FOUND"
	KindForbidden    Kind = "FORBIDDEN"
	KindInvalidState Kind = "INVALID_STATE"
	KindConflict     Kind = "CONFLICT"
	KindValidation   Kind = "VALIDATION"
	KindInternal     Kind = "INTERNAL"
)

// Error is a structured domain error. Message is safe to show to callers;
// Details carries internal context for logs only.
type Error struct {
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is makes two domain errors match on Kind, so callers can use
// errors.Is(err, apperrors.NotFound("")) style checks via sentinel values.
func (e *Error) Is(target error) bool {
	var de *Error
	if !errors.As(target, &de) {
		return false
	}
	return e.Kind == de.Kind
}

func newError(kind Kind, message, details string) *Error {
	return &Error{
		Kind:      kind,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

// NotFound reports a missing job, application or user.
func NotFound(message string) *Error {
	return newError(KindNotFound, message, "")
}

// Forbidden reports a caller lacking the role or binding an operation requires.
func Forbidden(message string) *Error {
	return newError(KindForbidden, message, "")
}

// InvalidState reports an operation whose state precondition does not hold,
// including a lost compare-and-set race.
func InvalidState(message string) *Error {
	return newError(KindInvalidState, message, "")
}

// Conflict reports a uniqueness violation, e.g. a duplicate application.
func Conflict(message string) *Error {
	return newError(KindConflict, message, "")
}

// Validation reports malformed input on a create/apply request.
func Validation(message string) *Error {
	return newError(KindValidation, message, "")
}

// Internal wraps an unexpected infrastructure failure.
func Internal(message string, err error) *Error {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return newError(KindInternal, message, details)
}

// KindOf extracts the Kind from any error, defaulting to KindInternal for
// errors that did not originate in this package.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
