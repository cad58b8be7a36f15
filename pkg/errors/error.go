// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into categories:
//   - General errors (1-99)
//   - Validation errors (100-199): bad parameters, configuration and versions
//   - Data/Resource errors (200-299)
//   - Strategy errors (400-499)
//   - Trading errors (500-599): order placement and account state
//   - Exchange errors (600-699): gateway transport and response decoding
//   - Market data errors (700-799): price history fetching and persistence
//   - Ledger errors (800-899): reconciliation and the trade journal
//
// Usage:
//
//	err := errors.Newf(errors.ErrCodeInvalidPair, "invalid pair %q", pair)
//
//	err := errors.Wrap(errors.ErrCodeExchangeRequestFailed, "ticker request failed", cause)
//
//	if errors.HasCode(err, errors.ErrCodeOrderFailed) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error represents a structured error with an error code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   nil,
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   nil,
	}
}

// Wrap wraps an existing error with a new Error containing the given code and message.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an existing error with a new Error containing the given code and formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around the standard errors.Is function.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around the standard errors.As function.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode extracts the ErrorCode from an error if it's an *Error type.
// Returns ErrCodeUnknown if the error is not an *Error type.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ErrCodeUnknown
}

// HasCode checks if an error has a specific ErrorCode.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// balanceMarkers are the fragments exchanges use when an order fails for lack of funds.
var balanceMarkers = []string{"insufficient", "balance"}

// IsBalanceError reports whether the error text points at a balance or funds problem.
// Exchanges do not agree on codes for this, so the classification is textual.
func IsBalanceError(err error) bool {
	if err == nil {
		return false
	}

	if HasCode(err, ErrCodeInsufficientBalance) {
		return true
	}

	return IsBalanceMessage(err.Error())
}

// IsBalanceMessage reports whether an exchange error message is balance related.
func IsBalanceMessage(message string) bool {
	lower := strings.ToLower(message)
	for _, marker := range balanceMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}

	return false
}
