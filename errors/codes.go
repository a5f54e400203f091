package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Resource errors
const (
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeAlreadyExists indicates the resource already exists.
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
	// ErrCodeServiceUnavailable indicates the service is temporarily unavailable.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// Validation errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// Filter lifecycle errors
const (
	// ErrCodeLifecycleFailed indicates a filter hook (init, destroy or one of
	// the add/remove notifications) returned an error.
	ErrCodeLifecycleFailed ErrorCode = "FILTER_LIFECYCLE_FAILED"
	// ErrCodeIllegalState indicates a lifecycle call that violates the
	// attach/detach protocol, e.g. an add notification for a filter that
	// was never initialized.
	ErrCodeIllegalState ErrorCode = "ILLEGAL_STATE"
)

// Internal errors
const (
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Lifecycle failures are never retried by the registry, and an illegal
// state is a caller bug, so neither code is retryable.
var retryableCodes = map[ErrorCode]bool{
	ErrCodeServiceUnavailable: true,
	ErrCodeLifecycleFailed:    false,
	ErrCodeIllegalState:       false,
	ErrCodeInternal:           false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
