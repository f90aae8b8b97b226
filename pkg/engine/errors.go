package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"
)

type ErrorKind string

const (
	KindUnreachable   ErrorKind = "ENGINE_UNREACHABLE"
	KindTimeout       ErrorKind = "ENGINE_TIMEOUT"
	KindRemote        ErrorKind = "ENGINE_REMOTE"
	KindCommunication ErrorKind = "ENGINE_COMMUNICATION"
)

// ErrProcessingFailed matches every *Error through errors.Is.
var ErrProcessingFailed = errors.New("event processing failed")

// Error is a classified failure of a single call to the inference engine.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == ErrProcessingFailed
}

// KindOf returns the failure kind of err, or "" when err is not an engine error.
func KindOf(err error) ErrorKind {
	var engineErr *Error
	if errors.As(err, &engineErr) {
		return engineErr.Kind
	}
	return ""
}

func newRemoteError(status int, message string) *Error {
	return &Error{
		Kind:       KindRemote,
		StatusCode: status,
		Message:    fmt.Sprintf("inference engine returned error %d: %s", status, message),
	}
}

// classify maps a transport error onto one of the engine failure kinds.
func classify(err error, endpoint string, timeout time.Duration) *Error {
	var engineErr *Error
	if errors.As(err, &engineErr) {
		return engineErr
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return &Error{
			Kind:    KindUnreachable,
			Message: fmt.Sprintf("inference engine unreachable at %s", endpoint),
			Err:     err,
		}
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return &Error{
			Kind:    KindTimeout,
			Message: fmt.Sprintf("inference engine timed out after %s", timeout),
			Err:     err,
		}
	}

	return &Error{
		Kind:    KindCommunication,
		Message: fmt.Sprintf("failed to communicate with inference engine: %v", err),
		Err:     err,
	}
}
