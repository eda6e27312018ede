package errors

import (
	"fmt"
	"net/http"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// HasCode reports whether err is an *AppError carrying the given code.
func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if !As(err, &appErr) {
		return false
	}
	return appErr.Code == code
}

// --- Common Error Constructors ---

// NotFound creates a new AppError for a session resource that was not found.
func NotFound(resource, sessionID string) *AppError {
	details := map[string]any{"resource": resource}
	if sessionID != "" {
		details["session_id"] = sessionID
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("No %s found for this session.", resource),
		HTTPStatus: http.StatusNotFound, Retryable: false, Details: details,
	}
}

// AlreadyExists creates a new AppError for a session resource that is already active.
func AlreadyExists(resource, sessionID string) *AppError {
	return &AppError{
		Code: ErrCodeAlreadyExists, Message: fmt.Sprintf("A %s is already active for this session.", resource),
		HTTPStatus: http.StatusConflict, Retryable: false,
		Details: map[string]any{"resource": resource, "session_id": sessionID},
	}
}

// InvalidInput creates a new AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		HTTPStatus: http.StatusBadRequest, Retryable: false, Details: details,
	}
}

// InvalidTransition creates a new AppError for a stage state-machine violation.
func InvalidTransition(stage, from, attempted string) *AppError {
	return &AppError{
		Code:       ErrCodeInvalidTransition,
		Message:    fmt.Sprintf("Stage %q cannot move from %s to %s.", stage, from, attempted),
		HTTPStatus: http.StatusConflict, Retryable: false,
		Details: map[string]any{"stage": stage, "from": from, "attempted": attempted},
	}
}

// CapacityExceeded creates a new AppError for a full subscriber list.
func CapacityExceeded(limit int) *AppError {
	return &AppError{
		Code:       ErrCodeCapacityExceeded,
		Message:    fmt.Sprintf("Subscriber limit of %d reached.", limit),
		HTTPStatus: http.StatusConflict, Retryable: false,
		Details: map[string]any{"limit": limit},
	}
}

// StreamClosed creates a new AppError for emissions on a completed stream.
func StreamClosed(sessionID string) *AppError {
	return &AppError{
		Code: ErrCodeStreamClosed, Message: "The stream has completed and no longer accepts events.",
		HTTPStatus: http.StatusConflict, Retryable: false,
		Details: map[string]any{"session_id": sessionID},
	}
}

// Timeout creates a new AppError for an operation that timed out.
func Timeout(operation string) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: "The operation took too long.",
		HTTPStatus: http.StatusGatewayTimeout, Retryable: true,
		Details: map[string]any{"operation": operation},
	}
}

// ExternalServiceError creates a new AppError for an error from an external
// processing service.
func ExternalServiceError(service string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeExternalService, Message: fmt.Sprintf("The %s service encountered an error.", service),
		HTTPStatus: http.StatusBadGateway, Retryable: true,
		Details: map[string]any{"service": service}, Cause: cause,
	}
}

// Internal creates a new AppError for an internal error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred.",
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}
