// Package apperror provides structured error handling following RFC 7807 Problem Details.
// Every error that reaches the transport boundary should be an AppError so that
// the HTTP layer can map it to a status code without guessing.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	// Infrastructure errors (5xx)
	CodeInternal             = "INTERNAL_ERROR"
	CodeUnknownOperationKind = "UNKNOWN_OPERATION_KIND"

	// Input errors (400)
	CodeValidation     = "VALIDATION_ERROR"
	CodeInvalidInput   = "INVALID_INPUT"
	CodeFilterCoercion = "FILTER_COERCION_ERROR"

	// Entity validation before persist (422)
	CodeValidationFailed = "VALIDATION_FAILED"

	// Authorization errors (401, 403)
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"

	// Routing errors (404, 405)
	CodeNotFound         = "NOT_FOUND"
	CodeRouteNotFound    = "ROUTE_NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"

	// Conflict (409)
	CodeConflict = "CONFLICT"
)

// AppError is the standard error type of the service.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (property, operation, reason...)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions ---

// NewValidation creates a request validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewInvalidInput is returned when a request body cannot be mapped onto an entity (400).
func NewInvalidInput(message string) *AppError {
	return &AppError{
		Code:       CodeInvalidInput,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewFilterCoercion is returned when a filter parameter is present but unusable (400).
func NewFilterCoercion(parameter, message string) *AppError {
	return &AppError{
		Code:       CodeFilterCoercion,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"parameter": parameter},
	}
}

// NewValidationFailed creates an entity validation error (422)
func NewValidationFailed(entity, message string) *AppError {
	return &AppError{
		Code:       CodeValidationFailed,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"entity": entity},
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewRouteNotFound is returned when no registered resource matches the request (404).
func NewRouteNotFound(method, path string) *AppError {
	return &AppError{
		Code:       CodeRouteNotFound,
		Message:    "Resource not found for current route",
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"method": method, "path": path},
	}
}

// NewMethodNotAllowed creates an error for methods not wired for an operation kind (405).
func NewMethodNotAllowed(method, kind string) *AppError {
	return &AppError{
		Code:       CodeMethodNotAllowed,
		Message:    fmt.Sprintf("Method %s is not supported for %s operation", method, kind),
		HTTPStatus: http.StatusMethodNotAllowed,
		Details:    map[string]any{"method": method, "kind": kind},
	}
}

// NewUnknownOperationKind signals a configuration defect (500).
func NewUnknownOperationKind(operation string) *AppError {
	return &AppError{
		Code:       CodeUnknownOperationKind,
		Message:    "Unknown operation",
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"operation": operation},
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewUnauthorized creates an authentication error (401)
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewForbidden creates an authorization error (403)
func NewForbidden(message string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// HasCode reports whether err carries the given AppError code.
func HasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}
