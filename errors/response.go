package errors

import (
	stderrors "errors"
)

// ErrorResponse is the JSON envelope returned by the admin API.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody is the client-facing part of an AppError. Lifecycle failures
// expose the failing operation and the hook's own message.
type ErrorBody struct {
	Code      ErrorCode      `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Operation string         `json:"operation,omitempty"`
	Cause     string         `json:"cause,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// ToResponse renders e for JSON serialization. Internal causes are never
// exposed.
func (e *AppError) ToResponse() ErrorResponse {
	body := ErrorBody{
		Code:      e.Code,
		Message:   e.Message,
		Retryable: e.Retryable,
		Details:   e.Details,
	}
	if op, ok := e.Details["operation"].(string); ok {
		body.Operation = op
	}
	if e.Cause != nil && e.Code == ErrCodeLifecycleFailed {
		body.Cause = e.Cause.Error()
	}
	return ErrorResponse{Error: body}
}

// AsAppError returns the outermost AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsAppError reports whether err's chain contains an AppError.
func IsAppError(err error) bool {
	_, ok := AsAppError(err)
	return ok
}
