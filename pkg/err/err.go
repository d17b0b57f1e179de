package errdef

import (
	"errors"
	"fmt"

	"realtime_chat_service/pkg/logger"
)

// Kind is the machine-readable failure class. Repositories return raw store
// errors, usecases map them to a Kind, and the transport layer maps Kinds to
// status codes without leaking internals.
type Kind string

const (
	// KindValidation malformed / missing / oversized input
	KindValidation Kind = "validation_error"
	// KindAccessDenied caller is not allowed to see the entity
	KindAccessDenied Kind = "access_denied"
	// KindPermissionDenied caller may see the entity but not mutate it
	KindPermissionDenied Kind = "permission_denied"
	// KindNotFound entity absent or inactive
	KindNotFound Kind = "not_found"
	// KindInvalidOperation valid request violating a domain invariant
	KindInvalidOperation Kind = "invalid_operation"
	// KindConflict concurrent-mutation race, retry once with backoff
	KindConflict Kind = "conflict"
	// KindInternal store unavailable or unexpected failure
	KindInternal Kind = "internal"
)

// Error carries a Kind, a human-readable message and an optional cause.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Unwrap expose the cause for errors.Is / errors.As
func (e *Error) Unwrap() error { return e.Cause }

// New create a kinded error
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap create a kinded error keeping the cause
func Wrap(kind Kind, msg string, cause error) error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// KindOf classify err. Unknown errors are Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is check err carries kind
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Message returns the client-safe message. Internal detail never leaks.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Msg
	}
	return "internal server error"
}

// Set set err info
func Set(errMsg string) error {
	logger.Log.Error(errMsg)
	return errors.New(errMsg)
}
