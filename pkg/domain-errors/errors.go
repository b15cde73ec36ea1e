// Package domainerrors defines the coded error type shared by all warden
// services. Stores return sentinel errors (pkg/platform/sentinel); services
// translate those into coded errors; the HTTP boundary maps codes to statuses
// 1:1 and never invents its own.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a business-rule failure.
type Code string

const (
	// CodeValidation: malformed or missing input.
	CodeValidation Code = "validation_error"
	// CodeNotFound: user, content, or appeal does not exist.
	CodeNotFound Code = "not_found"
	// CodeConflict: already banned, duplicate pending appeal, content not in
	// the expected state.
	CodeConflict Code = "conflict"
	// CodeUnauthorized: caller is not authenticated.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden: caller lacks the admin capability.
	CodeForbidden Code = "forbidden"
	// CodeRateLimited: excess admin actions within the window.
	CodeRateLimited Code = "rate_limited"
	// CodeExternal: profile-store or identity-provider call failed.
	CodeExternal Code = "external_system_error"
	// CodeInternal: anything we cannot attribute to the caller.
	CodeInternal Code = "internal_error"
)

// Error carries a code, a caller-safe message, and an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error with no underlying cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error. The cause stays
// reachable through errors.Is / errors.As.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the code of err, or CodeInternal when err is not coded.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf returns the caller-safe message of err, or a generic one.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// ToHTTPStatus maps a code to its HTTP status. The mapping is 1:1 with the
// error taxonomy so clients can rely on it.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
