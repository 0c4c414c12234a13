package types

import (
	"errors"
	"fmt"
)

// ErrorCode names one failure class. Codes are stable strings: they appear
// in logs and in serialized errors, and callers branch on them with IsCode.
type ErrorCode string

// Setup-time error codes. These abort a run before any backend traffic.
const (
	ErrActorCountMismatch ErrorCode = "ACTOR_COUNT_MISMATCH"
	ErrBackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"
	ErrInvalidConfig      ErrorCode = "INVALID_CONFIG"
	ErrTemplateNotFound   ErrorCode = "TEMPLATE_NOT_FOUND"
	ErrTemplateInvalid    ErrorCode = "TEMPLATE_INVALID"
)

// Run-time error codes. These terminate the active run only; any turns
// produced so far are flushed before the error propagates.
const (
	ErrBackendCallFailed ErrorCode = "BACKEND_CALL_FAILED"
	ErrTimeoutExceeded   ErrorCode = "TIMEOUT_EXCEEDED"
)

// Parse-time error codes.
const (
	ErrUnrecognizedHeader ErrorCode = "UNRECOGNIZED_HEADER_FORMAT"
)

// Error carries a code, a human-readable message and backend call metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Backend    string    `json:"backend,omitempty"`
	Cause      error     `json:"-"`
}

// Error renders as "[CODE] message", with the cause appended when present.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError builds an Error carrying code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf builds an Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause attaches the underlying error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus records the response status that produced the error.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable. The module itself never
// retries; the flag is advisory metadata for callers.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithBackend sets the backend family or adapter name.
func (e *Error) WithBackend(backend string) *Error {
	e.Backend = backend
	return e
}

// IsRetryable reports the retryable flag of the first Error in err's chain.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error, unwrapping as needed.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}
