// Package apperr defines the coded error taxonomy shared by the
// service and handler layers.  Every failure a caller can act on is
// surfaced as an *Error with a machine-readable code and a
// human-readable message; handlers translate codes into HTTP status
// codes.  Internal failures carry CodeInternal and are reported to
// clients as an opaque "server error" so nothing about storage or
// collaborators leaks out.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

type Code string

const (
	CodeValidation   Code = "VALIDATION"
	CodePermission   Code = "PERMISSION"
	CodeInvalidState Code = "INVALID_STATE"
	CodeRateLimited  Code = "RATE_LIMITED"
	CodeNotFound     Code = "NOT_FOUND"
	CodeInternal     Code = "INTERNAL"
)

// Error is the error type returned by every service operation.
// RetryAfter is only set for CodeRateLimited and tells the caller how
// long until the cooldown elapses.
type Error struct {
	Code       Code          `json:"code"`
	Message    string        `json:"message"`
	RetryAfter time.Duration `json:"-"`
	Cause      error         `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a cause to a coded error.  The cause is kept for
// logging but never serialized to clients.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func Validation(msg string) *Error   { return New(CodeValidation, msg) }
func Permission(msg string) *Error   { return New(CodePermission, msg) }
func InvalidState(msg string) *Error { return New(CodeInvalidState, msg) }
func NotFound(msg string) *Error     { return New(CodeNotFound, msg) }

// RateLimited builds a cooldown error carrying the remaining wait.
func RateLimited(msg string, retryAfter time.Duration) *Error {
	return &Error{Code: CodeRateLimited, Message: msg, RetryAfter: retryAfter}
}

// Internal wraps an unexpected failure.  The message shown to clients
// is always the generic one; msg is for operators reading logs.
func Internal(msg string, cause error) *Error {
	return &Error{Code: CodeInternal, Message: msg, Cause: cause}
}

// From extracts the coded error from err, or wraps it as internal if
// it is not one.  Handlers call this at the boundary so unexpected
// errors still produce a well-formed response.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal("unexpected error", err)
}

// IsCode reports whether err is a coded error with the given code.
func IsCode(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
