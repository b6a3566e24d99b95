package types

import "fmt"

// ErrorCode classifies every failure the planning subsystem can surface.
// The same taxonomy covers transport failures, validation failures and
// domain-coded failures from the planning collaborator.
type ErrorCode string

const (
	ErrConnectivityUnavailable ErrorCode = "CONNECTIVITY_UNAVAILABLE"
	ErrInputValidationFailed   ErrorCode = "INPUT_VALIDATION_FAILED"
	ErrNotFound                ErrorCode = "NOT_FOUND"
	ErrConflict                ErrorCode = "CONFLICT"
	ErrPermissionDenied        ErrorCode = "PERMISSION_DENIED"
	ErrRequestMalformed        ErrorCode = "REQUEST_MALFORMED"
	ErrUpstreamRateLimited     ErrorCode = "UPSTREAM_RATE_LIMITED"
	ErrUpstreamMalformed       ErrorCode = "UPSTREAM_RESPONSE_MALFORMED"
	ErrUpstreamUnavailable     ErrorCode = "UPSTREAM_UNAVAILABLE"
	ErrUnknown                 ErrorCode = "UNKNOWN"
)

// AppError provides structured error information for planning operations.
type AppError struct {
	Code          ErrorCode      `json:"code"`
	Message       string         `json:"message"`
	Details       map[string]any `json:"details,omitempty"`
	CorrelationID string         `json:"correlationId,omitempty"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAppError creates a new structured application error. An empty message
// falls back to the per-code default.
func NewAppError(code ErrorCode, message string, details map[string]any) *AppError {
	if message == "" {
		message = DefaultMessage(code)
	}
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// defaultMessages maps each code to a human-readable fallback used when a
// failure source provides no message of its own.
var defaultMessages = map[ErrorCode]string{
	ErrConnectivityUnavailable: "the planning service is not reachable",
	ErrInputValidationFailed:   "the request did not pass input validation",
	ErrNotFound:                "the requested session or option was not found",
	ErrConflict:                "the operation conflicts with newer state",
	ErrPermissionDenied:        "the operation is not permitted",
	ErrRequestMalformed:        "the request payload is malformed",
	ErrUpstreamRateLimited:     "the planning service is rate limiting requests",
	ErrUpstreamMalformed:       "the planning service returned a malformed response",
	ErrUpstreamUnavailable:     "the planning service is temporarily unavailable",
	ErrUnknown:                 "an unexpected error occurred",
}

// DefaultMessage returns the fallback message for a code. Unrecognized codes
// get the unknown-error message.
func DefaultMessage(code ErrorCode) string {
	if msg, ok := defaultMessages[code]; ok {
		return msg
	}
	return defaultMessages[ErrUnknown]
}
