// Package errors provides structured error types for cratepack.
//
// Errors carry a machine-readable code alongside the human-readable
// message, so callers can branch on failure categories (bad range,
// feature cycle, lockfile parse failure) without matching message text.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeBadRange, "bad version range: >= %s, << %s", lo, hi)
//	if errors.Is(err, errors.ErrCodeBadRange) {
//	    // Handle range conflict
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeNetwork, origErr, "failed to fetch %s", url)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different failure categories.
const (
	// Input validation errors
	ErrCodeInvalidVersion     Code = "INVALID_VERSION"
	ErrCodeInvalidRequirement Code = "INVALID_REQUIREMENT"
	ErrCodeInvalidLockfile    Code = "INVALID_LOCKFILE"
	ErrCodeInvalidDatabase    Code = "INVALID_DATABASE"
	ErrCodeInvalidConfig      Code = "INVALID_CONFIG"
	ErrCodeUnknownFeature     Code = "UNKNOWN_FEATURE"

	// Translation errors
	ErrCodeBadRange        Code = "BAD_RANGE"
	ErrCodeUnrepresentable Code = "UNREPRESENTABLE"
	ErrCodeFeatureCycle    Code = "FEATURE_CYCLE"

	// Packaging errors
	ErrCodePackageFailed Code = "PACKAGE_FAILED"

	// Resource errors
	ErrCodeNotFound Code = "NOT_FOUND"
	ErrCodeNetwork  Code = "NETWORK_ERROR"
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
