package apperror

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindAuthentication Kind = "AUTHENTICATION"
	KindValidation     Kind = "VALIDATION"
	KindNotFound       Kind = "NOT_FOUND"
	KindConflict       Kind = "CONFLICT"
	KindRateLimited    Kind = "RATE_LIMITED"
)

// Error is a boundary failure that never reaches the event or session registries.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Sentinels for errors.Is; any *Error of the same Kind matches.
var (
	ErrAuthentication = &Error{Kind: KindAuthentication, Message: "authentication failed"}
	ErrValidation     = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrNotFound       = &Error{Kind: KindNotFound, Message: "not found"}
	ErrConflict       = &Error{Kind: KindConflict, Message: "conflict"}
	ErrRateLimited    = &Error{Kind: KindRateLimited, Message: "rate limit exceeded"}
)

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func NewAuthentication(message string, err error) *Error {
	return &Error{Kind: KindAuthentication, Message: message, Err: err}
}

func NewValidation(message string, err error) *Error {
	return &Error{Kind: KindValidation, Message: message, Err: err}
}

func NewNotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func NewConflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

func NewRateLimited(message string) *Error {
	return &Error{Kind: KindRateLimited, Message: message}
}

// KindOf returns the Kind carried by err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}
