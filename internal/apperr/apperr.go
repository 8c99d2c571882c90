// Package apperr defines the machine-readable error kinds shared by the domain
// services and the HTTP layer.
package apperr

import "github.com/go-faster/errors"

// Kind classifies an error for callers.
type Kind string

const (
	KindNotFound        Kind = "not_found"
	KindInvalidInput    Kind = "invalid_input"
	KindConflict        Kind = "conflict"
	KindExternalFailure Kind = "external_failure"
	KindInternal        Kind = "internal"
)

// Error is a domain error with a kind and a message that is safe to show to
// clients.
type Error struct {
	kind    Kind
	message string
}

// New returns an error of the given kind. Errors created by New compare by
// identity, so package-level values work as sentinels with errors.Is.
func New(kind Kind, message string) *Error {
	return &Error{kind: kind, message: message}
}

// NotFound returns a KindNotFound error.
func NotFound(message string) *Error { return New(KindNotFound, message) }

// Invalid returns a KindInvalidInput error.
func Invalid(message string) *Error { return New(KindInvalidInput, message) }

// Conflict returns a KindConflict error.
func Conflict(message string) *Error { return New(KindConflict, message) }

func (e *Error) Error() string { return e.message }

// Kind reports the error kind.
func (e *Error) Kind() Kind { return e.kind }

// Message returns the client-safe message.
func (e *Error) Message() string { return e.message }

// kinded is implemented by every error that carries a Kind, including the
// typed errors declared in domain packages.
type kinded interface {
	error
	Kind() Kind
}

// KindOf returns the kind of the first error in err's chain that carries one,
// or KindInternal.
func KindOf(err error) Kind {
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindInternal
}

// MessageOf returns the client-safe message for err. Errors without a kind
// are internal and their text is not exposed.
func MessageOf(err error) string {
	var k kinded
	if errors.As(err, &k) {
		return k.Error()
	}
	return "internal error"
}
