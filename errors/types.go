package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Configuration errors
	ErrCodeConfigNotFound   ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    ErrorCode = "CONFIG_INVALID"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Shared file errors
	ErrCodeLockBusy        ErrorCode = "LOCK_BUSY"
	ErrCodeLockFailed      ErrorCode = "LOCK_FAILED"
	ErrCodeStateCorrupt    ErrorCode = "STATE_CORRUPT"
	ErrCodeSettingsInvalid ErrorCode = "SETTINGS_INVALID"
	ErrCodeWriteFailed     ErrorCode = "WRITE_FAILED"

	// Daemon errors
	ErrCodeAlreadyRunning ErrorCode = "ALREADY_RUNNING"

	// General errors
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrCodePermissionDenied ErrorCode = "PERMISSION_DENIED"
)

// AgentwatchError represents a structured error with context
type AgentwatchError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *AgentwatchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *AgentwatchError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *AgentwatchError) WithDetail(key string, value interface{}) *AgentwatchError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *AgentwatchError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new AgentwatchError
func New(code ErrorCode, message string) *AgentwatchError {
	return &AgentwatchError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AgentwatchError
func Wrap(err error, code ErrorCode, message string) *AgentwatchError {
	return &AgentwatchError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if any error in the chain carries the given code
func Is(err error, code ErrorCode) bool {
	for err != nil {
		var awErr *AgentwatchError
		if !stderrors.As(err, &awErr) {
			return false
		}
		if awErr.Code == code {
			return true
		}
		err = awErr.Cause
	}
	return false
}

// GetCode extracts the outermost error code from an error
func GetCode(err error) ErrorCode {
	var awErr *AgentwatchError
	if stderrors.As(err, &awErr) {
		return awErr.Code
	}
	return ""
}
