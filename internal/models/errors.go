package models

import "fmt"

type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeExternal   ErrorType = "external"
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypeTimeout    ErrorType = "timeout"
)

// AppError is the structured error carried across service boundaries.
type AppError struct {
	Type     ErrorType      `json:"type"`
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Cause    error          `json:"-"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithCause(cause error) *AppError {
	clone := *e
	clone.Cause = cause
	return &clone
}

func (e *AppError) WithMetadata(key string, value any) *AppError {
	clone := *e
	clone.Metadata = make(map[string]any, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		clone.Metadata[k] = v
	}
	clone.Metadata[key] = value
	return &clone
}

func newAppError(errType ErrorType, code, message string) *AppError {
	return &AppError{Type: errType, Code: code, Message: message}
}

func NewValidationError(code, message string) *AppError {
	return newAppError(ErrorTypeValidation, code, message)
}

func NewExternalError(code, message string) *AppError {
	return newAppError(ErrorTypeExternal, code, message)
}

func NewInternalError(code, message string) *AppError {
	return newAppError(ErrorTypeInternal, code, message)
}

func NewTimeoutError(code, message string) *AppError {
	return newAppError(ErrorTypeTimeout, code, message)
}

var ErrResultNotFound = NewInternalError("RESULT_NOT_FOUND", "Processing result not found")
