// Package errclass defines the stable error classes surfaced to callers.
package errclass

import "fmt"

// Error is a machine-readable error class with an optional detail message.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches on Code only, so errors.Is(err, ErrNotFound) holds for any detail message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

// WithMessage returns a new Error with the same Code and the given message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Code: e.Code, Message: msg}
}

// WithMessagef returns a new Error with a formatted message.
func (e *Error) WithMessagef(format string, args ...any) *Error {
	return &Error{Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrNotFound      = &Error{Code: "E_NOT_FOUND"}
	ErrAlreadyExists = &Error{Code: "E_ALREADY_EXISTS"}
	ErrInvalidRange  = &Error{Code: "E_INVALID_RANGE"}
	ErrInvalidDate   = &Error{Code: "E_INVALID_DATE"}
	ErrUnauthorized  = &Error{Code: "E_UNAUTHORIZED"}
	ErrPersistence   = &Error{Code: "E_PERSISTENCE"}
	ErrInvalidInput  = &Error{Code: "E_INVALID_INPUT"}
)

// Persistence wraps a backing-store failure so that both the class and the cause are matchable.
func Persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
