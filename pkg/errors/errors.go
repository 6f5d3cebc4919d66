package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies the failures the agent can hit
type ErrorType string

const (
	// ErrorTypeSourceUnavailable means the image source could not be
	// reached at all. Fatal for a run.
	ErrorTypeSourceUnavailable ErrorType = "source_unavailable"
	// ErrorTypeCandidateRejected covers a single candidate failing
	// classification, dedup, or validation. Recovered locally.
	ErrorTypeCandidateRejected ErrorType = "candidate_rejected"
	// ErrorTypeStateConflict means the on-disk state changed between
	// load and write and the retry budget ran out.
	ErrorTypeStateConflict ErrorType = "state_conflict"
	// ErrorTypeNotFound is returned for dequeues of unknown item ids.
	ErrorTypeNotFound ErrorType = "not_found"

	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error carries a type alongside the message so callers can branch on
// the class of failure without string matching.
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error.
func New(t ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a typed error wrapping a cause.
func Wrap(t ErrorType, err error, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...), Err: err}
}

// WithCode attaches an HTTP-ish status code.
func (e *Error) WithCode(code int) *Error {
	e.Code = code
	return e
}

// IsType reports whether err (or anything it wraps) is a typed error of
// the given type.
func IsType(err error, t ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}

// TypeOf returns the error's type, or ErrorTypeUnknown for untyped errors.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsRetryable checks if an error type should be retried
func IsRetryable(t ErrorType) bool {
	switch t {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeStateConflict:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429: // Too Many Requests
		return true
	case 500, 502, 503, 504:
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}
