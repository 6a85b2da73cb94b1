// Package errors provides coded domain errors for the moments pipeline.
//
// Usage:
//
//	// In input adapters - return typed errors
//	if os.IsNotExist(err) {
//	    return errors.NotFoundf("interpretations file %s", path)
//	}
//
//	// In the orchestrator - classify with errors.Is
//	if errors.Is(err, errors.ErrValidation) {
//	    skip(record, err)
//	    continue
//	}
//
//	// Or switch on the Code directly
//	switch errors.CodeOf(err) {
//	case errors.CodeNotFound, errors.CodeMalformed:
//	    return err // input-fatal
//	case errors.CodeUnavailable:
//	    logger.Warn("feature degraded", "error", err)
//	}
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the pipeline.
const (
	// CodeNotFound marks a missing input source. Always fatal for a run.
	CodeNotFound Code = "NOT_FOUND"
	// CodeMalformed marks an input source that exists but cannot be decoded.
	CodeMalformed Code = "MALFORMED"
	// CodeValidation marks a single record that cannot be processed.
	CodeValidation Code = "VALIDATION"
	// CodeUnavailable marks an optional collaborator that failed; callers fall back.
	CodeUnavailable Code = "UNAVAILABLE"
	// CodeOutput marks a sink that could not persist results.
	CodeOutput   Code = "OUTPUT"
	CodeInternal Code = "INTERNAL"
)

// Fatal reports whether an error with this code must abort a pipeline run.
func (c Code) Fatal() bool {
	switch c {
	case CodeValidation, CodeUnavailable:
		return false
	default:
		return true
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// WithDetails returns a new error with additional details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		cause:   e.cause,
	}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		cause:   err,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound    = &Error{Code: CodeNotFound, Message: "not found"}
	ErrMalformed   = &Error{Code: CodeMalformed, Message: "malformed input"}
	ErrValidation  = &Error{Code: CodeValidation, Message: "validation error"}
	ErrUnavailable = &Error{Code: CodeUnavailable, Message: "unavailable"}
	ErrOutput      = &Error{Code: CodeOutput, Message: "output error"}
	ErrInternal    = &Error{Code: CodeInternal, Message: "internal error"}
)

// CodeOf returns the code of the first *Error in err's chain.
// Errors that carry no code are reported as CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Malformedf creates a malformed-input error with formatted message.
func Malformedf(format string, args ...any) *Error {
	return &Error{Code: CodeMalformed, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Unavailablef creates an unavailable error with formatted message.
func Unavailablef(format string, args ...any) *Error {
	return &Error{Code: CodeUnavailable, Message: fmt.Sprintf(format, args...)}
}

// Outputf creates an output error with formatted message.
func Outputf(format string, args ...any) *Error {
	return &Error{Code: CodeOutput, Message: fmt.Sprintf(format, args...)}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// Internalf creates an internal error with formatted message.
func Internalf(format string, args ...any) *Error {
	return &Error{Code: CodeInternal, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}
