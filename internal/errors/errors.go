package errors

import (
	"fmt"
)

// RigError is the structured error type for rigqa.
// It provides context for error handling, logging, and user presentation.
type RigError struct {
	// Code is the unique error code (e.g., "ERR_103_DIMENSION_MISMATCH").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Document, Storage, ...).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *RigError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *RigError) Unwrap() error {
	return e.Cause
}

// Is matches RigErrors by code, enabling errors.Is().
func (e *RigError) Is(target error) bool {
	if t, ok := target.(*RigError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *RigError) WithDetail(key, value string) *RigError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *RigError) WithSuggestion(suggestion string) *RigError {
	e.Suggestion = suggestion
	return e
}

// New creates a RigError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *RigError {
	return &RigError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a RigError from an existing error.
// The error's message becomes the RigError message.
func Wrap(code string, err error) *RigError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *RigError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// DocumentError creates a per-document parsing/ingestion error.
func DocumentError(message string, cause error) *RigError {
	return New(ErrCodeExtractFailed, message, cause)
}

// StorageError creates an index/storage error.
func StorageError(message string, cause error) *RigError {
	return New(ErrCodeIndexFailed, message, cause)
}

// BackendError creates a backend-service error. Backend errors are
// typically retryable and degrade rather than abort.
func BackendError(message string, cause error) *RigError {
	return New(ErrCodeBackendUnavailable, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *RigError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if re, ok := err.(*RigError); ok {
		return re.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if re, ok := err.(*RigError); ok {
		return re.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a RigError.
// Returns empty string if not a RigError.
func GetCode(err error) string {
	if re, ok := err.(*RigError); ok {
		return re.Code
	}
	return ""
}

// GetCategory extracts the category from a RigError.
func GetCategory(err error) Category {
	if re, ok := err.(*RigError); ok {
		return re.Category
	}
	return ""
}
