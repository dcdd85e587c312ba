// Package apperr defines the error taxonomy shared by the listing core and
// the HTTP surface. Services return *Error values; handlers turn them into
// responses with HTTPStatus and PublicMessage.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure.
type Kind int

const (
	// Internal is a persistence or unexpected failure. Never surfaced in detail.
	Internal Kind = iota
	// Unauthenticated means no credential or an invalid one.
	Unauthenticated
	// Forbidden means the actor lacks the role or ownership required.
	Forbidden
	// ValidationFailed means the payload broke a schema constraint.
	ValidationFailed
	// NotFound means the referenced record does not exist.
	NotFound
	// ConflictingState means the request is well-formed but the current
	// status does not allow it.
	ConflictingState
	// InvalidAction means the action keyword is not a known transition.
	InvalidAction
)

func (k Kind) String() string {
	switch k {
	case Unauthenticated:
		return "unauthenticated"
	case Forbidden:
		return "forbidden"
	case ValidationFailed:
		return "validation_failed"
	case NotFound:
		return "not_found"
	case ConflictingState:
		return "conflicting_state"
	case InvalidAction:
		return "invalid_action"
	default:
		return "internal"
	}
}

// HTTPStatus maps a kind onto its response code.
func (k Kind) HTTPStatus() int {
	switch k {
	case Unauthenticated:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case ValidationFailed, InvalidAction:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case ConflictingState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure.
type Error struct {
	Kind    Kind
	Message string
	// Fields holds per-field detail for ValidationFailed, keyed by wire name.
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// PublicMessage is the text safe to show a caller.
func (e *Error) PublicMessage() string {
	switch e.Kind {
	case Internal:
		return "Internal server error"
	case Unauthenticated:
		return "Unauthorized"
	case Forbidden:
		return "Forbidden"
	}
	return e.Message
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func NewUnauthenticated(message string) *Error { return New(Unauthenticated, message) }

func NewForbidden(message string) *Error { return New(Forbidden, message) }

func NewNotFound(message string) *Error { return New(NotFound, message) }

func NewConflict(message string) *Error { return New(ConflictingState, message) }

func NewInvalidAction(message string) *Error { return New(InvalidAction, message) }

// NewValidation builds a ValidationFailed error with per-field detail.
func NewValidation(fields map[string]string) *Error {
	return &Error{Kind: ValidationFailed, Message: "Validation failed", Fields: fields}
}

// NewInternal wraps an unexpected failure.
func NewInternal(message string, err error) *Error {
	return Wrap(Internal, message, err)
}

// KindOf reports the kind of err, defaulting to Internal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// From returns err as an *Error, classifying unknown errors as Internal.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewInternal("unexpected failure", err)
}
