// Package errors defines the tagged error-kind union shared by every
// component in authcore. Callers never construct a bare error for a
// public operation; they wrap it in one of the Kinds below so the
// boundary layer can map it to an HTTP status without inspecting
// message text.
package errors

import (
	"errors"
	"fmt"
)

// Kind tags the category of failure a public operation returns.
type Kind string

const (
	NotFound      Kind = "not_found"
	Validation    Kind = "validation"
	Authentication Kind = "authentication"
	Authorization Kind = "authorization"
	Conflict      Kind = "conflict"
	Encryption    Kind = "encryption"
	Storage       Kind = "storage"
	Database      Kind = "database"
	Internal      Kind = "internal"
)

// Error is the concrete error type carrying a Kind and a short,
// user-safe message. The underlying cause, if any, is kept for
// logging via Unwrap but is never serialized to callers.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the Kind of err if it is (or wraps) an *Error,
// otherwise Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func NotFoundf(format string, args ...any) *Error {
	return New(NotFound, fmt.Sprintf(format, args...))
}

func Validationf(format string, args ...any) *Error {
	return New(Validation, fmt.Sprintf(format, args...))
}

func Authenticationf(format string, args ...any) *Error {
	return New(Authentication, fmt.Sprintf(format, args...))
}

func Authorizationf(format string, args ...any) *Error {
	return New(Authorization, fmt.Sprintf(format, args...))
}

func Conflictf(format string, args ...any) *Error {
	return New(Conflict, fmt.Sprintf(format, args...))
}

func Encryptionf(format string, args ...any) *Error {
	return New(Encryption, fmt.Sprintf(format, args...))
}

func Databasef(format string, args ...any) *Error {
	return New(Database, fmt.Sprintf(format, args...))
}
