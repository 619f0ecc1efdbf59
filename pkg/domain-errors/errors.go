// Package domainerrors provides coded errors for domain and service layers.
//
// Stores return sentinel errors (pkg/platform/sentinel) for infrastructure
// facts; services translate those into coded errors here so transports can
// map them to wire responses without inspecting error strings.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for callers and transports.
type Code string

const (
	// CodeValidation marks input that is syntactically well-formed but
	// violates a domain rule.
	CodeValidation Code = "validation_error"
	// CodeInvalidInput marks malformed input rejected before any lookup.
	CodeInvalidInput Code = "invalid_input"
	// CodeBadRequest marks requests the transport could not interpret.
	CodeBadRequest Code = "bad_request"
	// CodeNotFound marks lookups for entities that do not exist.
	CodeNotFound Code = "not_found"
	// CodeConflict marks operations that lost to concurrent state.
	CodeConflict Code = "conflict"
	// CodeUnauthorized marks missing or invalid credentials.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden marks authenticated callers lacking permission.
	CodeForbidden Code = "forbidden"
	// CodeInvariantViolation marks attempts to construct domain objects in
	// an illegal state. Services usually convert these to CodeValidation at
	// the API boundary.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeTimeout marks operations aborted by deadline or cancellation.
	CodeTimeout Code = "timeout"
	// CodeUnavailable marks a dependency that is temporarily unreachable.
	CodeUnavailable Code = "unavailable"
	// CodeInternal marks unexpected infrastructure failures. Details are
	// never exposed to clients.
	CodeInternal Code = "internal_error"
)

// Error is a coded error with an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

// New constructs a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap constructs a coded error around a cause. The cause remains reachable
// via errors.Unwrap / errors.Is.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause.
func (e *Error) Unwrap() error { return e.cause }

// HasCode reports whether err or anything it wraps carries the given code.
func HasCode(err error, code Code) bool {
	var coded *Error
	for errors.As(err, &coded) {
		if coded.Code == code {
			return true
		}
		err = coded.cause
		coded = nil
	}
	return false
}

// CodeOf returns the outermost code carried by err, or CodeInternal when err
// carries none.
func CodeOf(err error) Code {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeInternal
}
