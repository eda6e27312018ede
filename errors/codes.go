package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Session/registry errors
const (
	// ErrCodeNotFound indicates the requested session was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeAlreadyExists indicates a stream or tracker is already active
	// for the session.
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
)

// Protocol errors (API misuse, surfaced to the direct caller)
const (
	// ErrCodeInvalidInput indicates invalid input such as a non-positive
	// batch size or a nil processing function.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeInvalidTransition indicates a stage state-machine violation.
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	// ErrCodeCapacityExceeded indicates the subscriber limit was reached.
	ErrCodeCapacityExceeded ErrorCode = "CAPACITY_EXCEEDED"
	// ErrCodeStreamClosed indicates an emission after the stream completed.
	ErrCodeStreamClosed ErrorCode = "STREAM_CLOSED"
)

// Operational errors (retryable)
const (
	// ErrCodeTimeout indicates an operation timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeExternalService indicates an error from an external processing
	// service such as an embedding provider.
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

// Internal errors
const (
	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeTimeout:         true,
	ErrCodeExternalService: true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
