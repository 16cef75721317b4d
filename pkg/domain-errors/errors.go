// Package domainerrors provides coded errors shared by all domain services.
//
// Services attach a Code when they classify a failure; transports map the
// code to a wire status with ToHTTPStatus. Codes survive wrapping, so a
// handler can branch on HasCode without knowing which layer produced the
// error.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error for callers and transports.
type Code string

const (
	// CodeValidation marks malformed input or a violated domain invariant
	// (wrong current status for a transition, bad coordinates, future
	// timestamps).
	CodeValidation Code = "validation"

	// CodeInvalidInput marks an identifier or primitive that failed to parse.
	CodeInvalidInput Code = "invalid_input"

	// CodeBadRequest marks a request body that could not be decoded.
	CodeBadRequest Code = "bad_request"

	// CodeNotFound marks a missing report, case, incentive, or user.
	CodeNotFound Code = "not_found"

	// CodeConflict marks a uniqueness violation such as a duplicate
	// report-to-case mapping.
	CodeConflict Code = "conflict"

	// CodeUnauthorized marks a missing or invalid credential.
	CodeUnauthorized Code = "unauthorized"

	// CodeForbidden marks an actor that is authenticated but not permitted:
	// wrong role, or an officer not assigned to the case.
	CodeForbidden Code = "forbidden"

	// CodeInvariantViolation marks a model-level invariant failure. Services
	// convert these to CodeValidation at the API boundary.
	CodeInvariantViolation Code = "invariant_violation"

	// CodeTimeout marks a cancelled or deadline-exceeded operation.
	CodeTimeout Code = "timeout"

	// CodeInternal marks everything unclassified.
	CodeInternal Code = "internal"
)

// Error is a coded domain error. Construct with New or Wrap.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error with no underlying cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an existing error, preserving the
// cause for errors.Is/As chains. Wrapping nil returns nil.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if errors.As(err, &de) {
			if de.Code == code {
				return true
			}
			err = de.cause
			continue
		}
		return false
	}
	return false
}

// Is is shorthand for HasCode; it reads better in handler branches.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost code in the chain, or CodeInternal when the
// error carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to an HTTP status for transport layers.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeInvalidInput, CodeInvariantViolation:
		return http.StatusBadRequest
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
