package services

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindNotFound
	KindConflict
	KindBadRequest
	KindForbidden
	KindGone
	KindLimitReached
	KindNotEmpty
	KindUnauthorized
	KindTooLarge
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindBadRequest:
		return "bad_request"
	case KindForbidden:
		return "forbidden"
	case KindGone:
		return "gone"
	case KindLimitReached:
		return "limit_reached"
	case KindNotEmpty:
		return "not_empty"
	case KindUnauthorized:
		return "unauthorized"
	case KindTooLarge:
		return "too_large"
	default:
		return "internal"
	}
}

// Error is the failure type every service returns. Message is safe to show
// to clients; Err carries the cause for logs.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error

	// Remaining is set on quota rejections.
	Remaining *int64
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func NotFound(message string) *Error {
	return newError(KindNotFound, message, nil)
}

func Conflict(message string) *Error {
	return newError(KindConflict, message, nil)
}

func BadRequest(message string) *Error {
	return newError(KindBadRequest, message, nil)
}

func Forbidden(message string) *Error {
	return newError(KindForbidden, message, nil)
}

func Gone(message string) *Error {
	return newError(KindGone, message, nil)
}

func LimitReached(message string) *Error {
	return newError(KindLimitReached, message, nil)
}

func NotEmpty(message string) *Error {
	return newError(KindNotEmpty, message, nil)
}

func Unauthorized(message string) *Error {
	return newError(KindUnauthorized, message, nil)
}

func TooLarge(message string) *Error {
	return newError(KindTooLarge, message, nil)
}

func Internal(message string, err error) *Error {
	return newError(KindInternal, message, err)
}

// KindOf reports the kind of err, KindInternal for anything that is not an
// *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
