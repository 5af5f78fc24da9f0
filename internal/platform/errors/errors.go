// Package errors provides structured error handling with context propagation and HTTP status code mapping.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType categorizes an error for metrics and response formatting.
type ErrorType string

const (
	TypeValidation  ErrorType = "validation"
	TypeNotFound    ErrorType = "not_found"
	TypeConflict    ErrorType = "conflict"
	TypeUnavailable ErrorType = "unavailable"
	TypeInternal    ErrorType = "internal"
	TypeExternal    ErrorType = "external"
)

// httpStatus maps error types to response codes. Types missing here render
// as 500 rather than leaking a zero status.
var httpStatus = map[ErrorType]int{
	TypeValidation:  http.StatusBadRequest,
	TypeNotFound:    http.StatusNotFound,
	TypeConflict:    http.StatusConflict,
	TypeUnavailable: http.StatusServiceUnavailable,
	TypeInternal:    http.StatusInternalServerError,
	TypeExternal:    http.StatusBadGateway,
}

// Error is a categorized error with an optional cause and loggable context.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any
}

func newError(t ErrorType, message string, cause error) *Error {
	return &Error{Type: t, Message: message, Cause: cause, Context: make(map[string]any)}
}

// ValidationError builds an invalid-input error (HTTP 400).
func ValidationError(message string) *Error { return newError(TypeValidation, message, nil) }

// NotFoundError builds a missing-resource error (HTTP 404).
func NotFoundError(message string) *Error { return newError(TypeNotFound, message, nil) }

// ConflictError builds a resource-conflict error (HTTP 409).
func ConflictError(message string) *Error { return newError(TypeConflict, message, nil) }

// UnavailableError signals the server cannot take more work right now (HTTP 503).
func UnavailableError(message string) *Error { return newError(TypeUnavailable, message, nil) }

// InternalError wraps a server-side failure (HTTP 500).
func InternalError(message string, cause error) *Error {
	return newError(TypeInternal, message, cause)
}

// ExternalError wraps a downstream service failure (HTTP 502).
func ExternalError(message string, cause error) *Error {
	return newError(TypeExternal, message, cause)
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *Error) Unwrap() error { return e.Cause }

// HTTPStatus returns the response code for the error's type.
func (e *Error) HTTPStatus() int {
	if code, ok := httpStatus[e.Type]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// WithContext attaches a loggable field to the error (chainable).
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// ErrorResponse is the JSON document sent to clients.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Type    ErrorType      `json:"type"`
	Context map[string]any `json:"context,omitempty"`
}

// ToResponse renders the error for the HTTP layer.
func (e *Error) ToResponse() ErrorResponse {
	return ErrorResponse{Error: e.Message, Type: e.Type, Context: e.Context}
}

// AsStructuredError coerces any error into an *Error. Foreign errors wrap
// as internal so no raw failure detail leaks into a client response.
func AsStructuredError(err error) *Error {
	if err == nil {
		return nil
	}

	var structured *Error
	if errors.As(err, &structured) {
		return structured
	}
	return InternalError("internal server error", err)
}
