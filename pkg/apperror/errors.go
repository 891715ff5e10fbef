// Package apperror provides a structured way to handle application errors
// with specific codes, severity levels, and additional details. It also
// includes utilities for mapping errors onto HTTP status codes.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a specific application error code.
type ErrorCode string

const (
	// Validation
	CodeInvalidArgument   ErrorCode = "INVALID_ARGUMENT"
	CodeInvalidAddress    ErrorCode = "INVALID_ADDRESS"
	CodeInvalidChannel    ErrorCode = "INVALID_CHANNEL"
	CodeInvalidThreshold  ErrorCode = "INVALID_THRESHOLD"
	CodeInvalidInterval   ErrorCode = "INVALID_INTERVAL"
	CodeNilInput          ErrorCode = "NIL_INPUT"
	CodeInvalidPagination ErrorCode = "INVALID_PAGINATION"

	// Not found
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeDeliveryNotFound  ErrorCode = "DELIVERY_NOT_FOUND"
	CodeRouteNotFound     ErrorCode = "ROUTE_NOT_FOUND"
	CodeCustomerNotFound  ErrorCode = "CUSTOMER_NOT_FOUND"
	CodeWorkflowNotFound  ErrorCode = "WORKFLOW_NOT_FOUND"
	CodeThresholdNotFound ErrorCode = "THRESHOLD_NOT_FOUND"

	// Authorization
	CodeUnauthenticated  ErrorCode = "UNAUTHENTICATED"
	CodePermissionDenied ErrorCode = "PERMISSION_DENIED"

	// Domain conflicts
	CodeInvalidTransition   ErrorCode = "INVALID_STATUS_TRANSITION"
	CodeDefaultThreshold    ErrorCode = "DEFAULT_THRESHOLD_PROTECTED"
	CodeSystemThreshold     ErrorCode = "SYSTEM_THRESHOLD_PROTECTED"
	CodeWorkflowRunning     ErrorCode = "WORKFLOW_ALREADY_RUNNING"
	CodeWorkflowNotRunning  ErrorCode = "WORKFLOW_NOT_RUNNING"
	CodeRecipientBlocked    ErrorCode = "RECIPIENT_BLACKLISTED"
	CodeNotificationSkipped ErrorCode = "NOTIFICATION_SKIPPED"

	// Infrastructure
	CodeInternal            ErrorCode = "INTERNAL_ERROR"
	CodeRepository          ErrorCode = "REPOSITORY_ERROR"
	CodeProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
	CodeProviderFailed      ErrorCode = "PROVIDER_FAILED"
	CodeEngineFailed        ErrorCode = "ENGINE_FAILED"
	CodeTimeout             ErrorCode = "TIMEOUT"
	CodeRateLimited         ErrorCode = "RATE_LIMITED"
	CodeUnimplemented       ErrorCode = "UNIMPLEMENTED"
)

// Severity defines the criticality level of an error.
type Severity int

const (
	// SeverityWarning indicates a non-critical issue that can be ignored or automatically resolved.
	SeverityWarning Severity = iota
	// SeverityError indicates a standard error that requires attention.
	SeverityError
	// SeverityCritical indicates a severe error that might require immediate human intervention.
	SeverityCritical
)

// String returns the string representation of the Severity.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Error is a custom error type that includes an ErrorCode, message,
// an optional field, additional details, an underlying cause, and a severity level.
type Error struct {
	Code     ErrorCode      // Code is a unique identifier for the type of error.
	Message  string         // Message is a human-readable description of the error.
	Field    string         // Field indicates which input field caused the error, if applicable.
	Details  map[string]any // Details provides additional structured information about the error.
	Cause    error          // Cause is the underlying error that triggered this application error.
	Severity Severity       // Severity indicates the criticality level of the error.
}

// Error implements the error interface, returning a string representation of the error.
func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error, allowing for error chain introspection.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus maps an ErrorCode to an appropriate HTTP status code.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeInvalidArgument, CodeInvalidAddress, CodeInvalidChannel,
		CodeInvalidThreshold, CodeInvalidInterval, CodeNilInput,
		CodeInvalidPagination:
		return http.StatusBadRequest

	case CodeNotFound, CodeDeliveryNotFound, CodeRouteNotFound,
		CodeCustomerNotFound, CodeWorkflowNotFound, CodeThresholdNotFound:
		return http.StatusNotFound

	case CodeUnauthenticated:
		return http.StatusUnauthorized

	case CodePermissionDenied:
		return http.StatusForbidden

	case CodeInvalidTransition, CodeDefaultThreshold, CodeSystemThreshold,
		CodeWorkflowRunning, CodeWorkflowNotRunning, CodeRecipientBlocked,
		CodeNotificationSkipped:
		return http.StatusConflict

	case CodeRateLimited:
		return http.StatusTooManyRequests

	case CodeTimeout:
		return http.StatusGatewayTimeout

	case CodeProviderUnavailable, CodeProviderFailed:
		return http.StatusBadGateway

	case CodeUnimplemented:
		return http.StatusNotImplemented

	default:
		return http.StatusInternalServerError
	}
}

// New creates a new application error with the given code and message.
// The default severity is SeverityError.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Details:  make(map[string]any),
		Severity: SeverityError,
	}
}

// Newf creates a new application error with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// NewWithField creates a new application error with the given code, message, and field.
// The default severity is SeverityError.
func NewWithField(code ErrorCode, message, field string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Field:    field,
		Details:  make(map[string]any),
		Severity: SeverityError,
	}
}

// NewWarning creates a new application error with SeverityWarning.
func NewWarning(code ErrorCode, message string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Details:  make(map[string]any),
		Severity: SeverityWarning,
	}
}

// NewCritical creates a new application error with SeverityCritical.
func NewCritical(code ErrorCode, message string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Details:  make(map[string]any),
		Severity: SeverityCritical,
	}
}

// Wrap creates a new application error that wraps an existing error,
// providing additional context with a code and message.
// The default severity is SeverityError.
func Wrap(cause error, code ErrorCode, message string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Cause:    cause,
		Details:  make(map[string]any),
		Severity: SeverityError,
	}
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(cause error, code ErrorCode, format string, args ...any) *Error {
	return Wrap(cause, code, fmt.Sprintf(format, args...))
}

// WithDetails adds a key-value pair to the error's details map and returns the modified error.
func (e *Error) WithDetails(key string, value any) *Error {
	e.Details[key] = value
	return e
}

// WithField sets the field associated with the error and returns the modified error.
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

// WithSeverity sets the severity level of the error and returns the modified error.
func (e *Error) WithSeverity(s Severity) *Error {
	e.Severity = s
	return e
}

// Is checks if the given error is an application error with a matching ErrorCode.
// It uses errors.As to unwrap the error chain.
func Is(err error, code ErrorCode) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Code extracts the ErrorCode from an error. If the error is not an *Error,
// it returns CodeInternal.
func Code(err error) ErrorCode {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// HTTPStatus extracts the HTTP status for any error. Non-application
// errors map to 500.
func HTTPStatus(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// From converts any error into an *Error. Application errors are returned
// as is; anything else is wrapped as CodeInternal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, CodeInternal, err.Error())
}

// IsWarning checks if the given error is an application error with SeverityWarning.
func IsWarning(err error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Severity == SeverityWarning
	}
	return false
}

// IsCritical checks if the given error is an application error with SeverityCritical.
func IsCritical(err error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Severity == SeverityCritical
	}
	return false
}

// Predefined errors for common scenarios.
var (
	ErrDeliveryNotFound  = New(CodeDeliveryNotFound, "delivery not found")
	ErrRouteNotFound     = New(CodeRouteNotFound, "route not found")
	ErrCustomerNotFound  = New(CodeCustomerNotFound, "customer not found")
	ErrWorkflowNotFound  = New(CodeWorkflowNotFound, "workflow not found")
	ErrThresholdNotFound = New(CodeThresholdNotFound, "threshold not found")
	ErrUnauthenticated   = New(CodeUnauthenticated, "missing or invalid credentials")
	ErrTimeout           = New(CodeTimeout, "operation timed out")
)

// AggregateError collects failures from a chain of provider attempts so
// callers can see every adapter that was tried.
type AggregateError struct {
	Operation string   // Operation names the failed capability, e.g. "traffic lookup".
	Attempts  []string // Attempts lists "provider: reason" entries in try order.
}

// Error implements the error interface.
func (e *AggregateError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("%s failed: no providers available", e.Operation)
	}
	msg := fmt.Sprintf("%s failed after %d attempts:", e.Operation, len(e.Attempts))
	for _, a := range e.Attempts {
		msg += " [" + a + "]"
	}
	return msg
}

// Add appends an attempt record for the given provider.
func (e *AggregateError) Add(provider string, err error) {
	e.Attempts = append(e.Attempts, fmt.Sprintf("%s: %v", provider, err))
}

// AsAppError converts the aggregate into a provider-failure application error.
func (e *AggregateError) AsAppError() *Error {
	return Wrap(e, CodeProviderFailed, e.Error()).
		WithDetails("attempts", e.Attempts)
}
