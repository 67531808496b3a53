// Package errors provides structured error handling for rigqa.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors (fatal: abort with a clear cause)
//   - 2XX: Document errors (per-file: recorded, batch continues)
//   - 3XX: Index and storage errors
//   - 4XX: Backend errors (embedding/generation services; degrade locally)
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryDocument indicates document parsing and ingestion errors.
	CategoryDocument Category = "DOCUMENT"
	// CategoryStorage indicates index and storage errors.
	CategoryStorage Category = "STORAGE"
	// CategoryBackend indicates embedding/generation service errors.
	CategoryBackend Category = "BACKEND"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound    = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid     = "ERR_102_CONFIG_INVALID"
	ErrCodeDimensionMismatch = "ERR_103_DIMENSION_MISMATCH"
	ErrCodeBackendMissing    = "ERR_104_BACKEND_MISSING"

	// Document errors (200-299)
	ErrCodeFileNotFound      = "ERR_201_FILE_NOT_FOUND"
	ErrCodeUnsupportedFormat = "ERR_202_UNSUPPORTED_FORMAT"
	ErrCodeExtractFailed     = "ERR_203_EXTRACT_FAILED"
	ErrCodeFileCorrupt       = "ERR_204_FILE_CORRUPT"

	// Index and storage errors (300-399)
	ErrCodeCorruptIndex  = "ERR_301_CORRUPT_INDEX"
	ErrCodeStoreClosed   = "ERR_302_STORE_CLOSED"
	ErrCodeStoreLocked   = "ERR_303_STORE_LOCKED"
	ErrCodeIndexFailed   = "ERR_304_INDEX_FAILED"
	ErrCodePersistFailed = "ERR_305_PERSIST_FAILED"

	// Backend errors (400-499)
	ErrCodeBackendTimeout     = "ERR_401_BACKEND_TIMEOUT"
	ErrCodeBackendUnavailable = "ERR_402_BACKEND_UNAVAILABLE"
	ErrCodeEmbeddingFailed    = "ERR_403_EMBEDDING_FAILED"
	ErrCodeGenerationFailed   = "ERR_404_GENERATION_FAILED"

	// Internal errors (500-599)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeSearchFailed = "ERR_502_SEARCH_FAILED"
	ErrCodeInvalidQuery = "ERR_503_INVALID_QUERY"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Numeric portion, e.g. "103" from "ERR_103_DIMENSION_MISMATCH"
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryDocument
	case '3':
		return CategoryStorage
	case '4':
		return CategoryBackend
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
// Dimension mismatches and a missing embedding backend abort the
// operation; backend outages degrade to error-string answers.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeDimensionMismatch, ErrCodeBackendMissing, ErrCodeCorruptIndex:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeBackendTimeout, ErrCodeBackendUnavailable:
		return true
	default:
		return false
	}
}
