package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
)

// ErrorType classifies a failure so callers can branch on it.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "VALIDATION"
	ErrorTypeConflict   ErrorType = "CONFLICT"
	ErrorTypeNotFound   ErrorType = "NOT_FOUND"
	ErrorTypeAuth       ErrorType = "AUTH"
	ErrorTypeTransient  ErrorType = "TRANSIENT"
	ErrorTypeCancelled  ErrorType = "CANCELLED"

	// Anything the store drivers could not classify.
	ErrorTypeInternal ErrorType = "INTERNAL"
)

// Error codes used alongside the type.
const (
	CodeInvalidKey         = "INVALID_KEY"
	CodeInvalidTTL         = "INVALID_TTL"
	CodeMissingVersion     = "MISSING_VERSION_TOKEN"
	CodeDocumentExists     = "DOCUMENT_EXISTS"
	CodeVersionMismatch    = "VERSION_MISMATCH"
	CodeDocumentNotFound   = "DOCUMENT_NOT_FOUND"
	CodeCollectionNotFound = "COLLECTION_NOT_FOUND"
	CodeBadCredentials     = "BAD_CREDENTIALS"
	CodePermissionDenied   = "PERMISSION_DENIED"
	CodeThrottled          = "THROTTLED"
	CodeUnavailable        = "SERVICE_UNAVAILABLE"
	CodeCircuitOpen        = "CIRCUIT_OPEN"
	CodeRequestCancelled   = "REQUEST_CANCELLED"
	CodeDeadlineExceeded   = "DEADLINE_EXCEEDED"
	CodeServiceRejected    = "SERVICE_REJECTED"
	CodeRateLimited        = "RATE_LIMITED"
)

// AppError is the single error type returned across the document store boundary.
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Operation  string                 `json:"operation,omitempty"`
	Resource   string                 `json:"resource,omitempty"`
	Retryable  bool                   `json:"retryable"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	StackTrace string                 `json:"-"`
	HTTPStatus int                    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Operation != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Operation)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s (caused by: %v)", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches another AppError by type and, when set on the target, by code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	if t.Type != e.Type {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithOperation records the operation that failed
func (e *AppError) WithOperation(op string) *AppError {
	e.Operation = op
	return e
}

// WithResource records the resource the operation addressed
func (e *AppError) WithResource(resource string) *AppError {
	e.Resource = resource
	return e
}

// WithDetails adds error details
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{}, len(details))
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithCause wraps an underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// captureStackTrace captures the current stack trace
func captureStackTrace() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	stack := ""
	for {
		frame, more := frames.Next()
		stack += fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function)
		if !more {
			break
		}
	}
	return stack
}

func newError(t ErrorType, message string, status int) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		Retryable:  t == ErrorTypeTransient,
		HTTPStatus: status,
		StackTrace: captureStackTrace(),
	}
}

// Constructor functions for each error type

// NewValidationError reports input rejected before any network call.
func NewValidationError(message string) *AppError {
	return newError(ErrorTypeValidation, message, http.StatusBadRequest)
}

// NewConflictError reports a write whose precondition failed.
func NewConflictError(message string) *AppError {
	return newError(ErrorTypeConflict, message, http.StatusConflict).WithCode(CodeDocumentExists)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return newError(ErrorTypeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound).
		WithCode(CodeDocumentNotFound).
		WithResource(resource)
}

// NewAuthError reports rejected credentials or missing permissions.
func NewAuthError(message string) *AppError {
	if message == "" {
		message = "unauthorized"
	}
	return newError(ErrorTypeAuth, message, http.StatusUnauthorized).WithCode(CodeBadCredentials)
}

// NewTransientError reports a failure that may succeed on retry.
func NewTransientError(message string, cause error) *AppError {
	return newError(ErrorTypeTransient, message, http.StatusServiceUnavailable).
		WithCode(CodeUnavailable).
		WithCause(cause)
}

// NewRateLimitError reports a caller that exceeded its request budget.
func NewRateLimitError(message string) *AppError {
	return newError(ErrorTypeTransient, message, http.StatusTooManyRequests).WithCode(CodeRateLimited)
}

// NewCancelledError reports an operation aborted by its caller's context.
func NewCancelledError(operation string, cause error) *AppError {
	code := CodeRequestCancelled
	if errors.Is(cause, context.DeadlineExceeded) {
		code = CodeDeadlineExceeded
	}
	return newError(ErrorTypeCancelled, fmt.Sprintf("operation '%s' cancelled", operation), http.StatusRequestTimeout).
		WithCode(code).
		WithOperation(operation).
		WithCause(cause)
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return newError(ErrorTypeInternal, message, http.StatusInternalServerError)
}

// Helper functions

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts AppError from an error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// TypeOf returns the error type, or "" for nil and INTERNAL for foreign errors.
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	if appErr := GetAppError(err); appErr != nil {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == errType
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return IsType(err, ErrorTypeValidation)
}

// IsConflict checks if an error is a conflict error
func IsConflict(err error) bool {
	return IsType(err, ErrorTypeConflict)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return IsType(err, ErrorTypeNotFound)
}

// IsAuth checks if an error is an auth error
func IsAuth(err error) bool {
	return IsType(err, ErrorTypeAuth)
}

// IsTransient checks if an error is a transient service error
func IsTransient(err error) bool {
	return IsType(err, ErrorTypeTransient)
}

// IsCancelled checks if an error is a cancellation
func IsCancelled(err error) bool {
	return IsType(err, ErrorTypeCancelled)
}

// IsInternal checks if an error is an internal error
func IsInternal(err error) bool {
	return IsType(err, ErrorTypeInternal)
}

// IsRetryable reports whether the caller may retry the same request.
func IsRetryable(err error) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Retryable
}

// FromContext converts a context error into a cancellation, or returns nil.
func FromContext(ctx context.Context, operation string) error {
	if err := ctx.Err(); err != nil {
		return NewCancelledError(operation, err)
	}
	return nil
}

// IsContextError reports whether err stems from context cancellation or deadline.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	if appErr := GetAppError(err); appErr != nil {
		wrapped := *appErr
		wrapped.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
		return &wrapped
	}

	return NewInternalError(message).WithCause(err)
}

// Wrapf wraps an error with formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}
