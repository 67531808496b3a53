// Package mcp implements the Model Context Protocol (MCP) server for rigqa.
package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/rigdocs/rigqa/internal/async"
	rqerrors "github.com/rigdocs/rigqa/internal/errors"
)

// Custom MCP error codes for rigqa.
const (
	// ErrCodeIndexNotFound indicates no index exists yet.
	ErrCodeIndexNotFound = -32001

	// ErrCodeEmbeddingFailed indicates embedding generation failed.
	ErrCodeEmbeddingFailed = -32002

	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout = -32003

	// ErrCodeDocumentNotFound indicates a document is not in the index.
	ErrCodeDocumentNotFound = -32004

	// ErrCodeBackendUnavailable indicates a model backend is unreachable.
	ErrCodeBackendUnavailable = -32005

	// ErrCodeIndexingInProgress indicates the index is still being built.
	ErrCodeIndexingInProgress = -32006

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Sentinel errors for internal use.
var (
	// ErrIndexNotFound indicates no index exists yet.
	ErrIndexNotFound = errors.New("index not found")

	// ErrToolNotFound indicates the requested tool does not exist.
	ErrToolNotFound = errors.New("tool not found")

	// ErrInvalidParams indicates invalid parameters were provided.
	ErrInvalidParams = errors.New("invalid parameters")

	// ErrResourceNotFound indicates the requested resource does not exist.
	ErrResourceNotFound = errors.New("resource not found")
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
// It maps known error types to appropriate MCP error codes and messages.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	// A structured error carries the most specific mapping.
	var rigErr *rqerrors.RigError
	if errors.As(err, &rigErr) {
		return mapRigError(rigErr)
	}

	switch {
	case errors.Is(err, ErrIndexNotFound):
		return &MCPError{
			Code:    ErrCodeIndexNotFound,
			Message: "Index not found. Run 'rigqa index' first.",
		}
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{
			Code:    ErrCodeTimeout,
			Message: "Request timed out.",
		}
	case errors.Is(err, context.Canceled):
		return &MCPError{
			Code:    ErrCodeTimeout,
			Message: "Request was canceled.",
		}
	case errors.Is(err, ErrToolNotFound):
		return &MCPError{
			Code:    ErrCodeMethodNotFound,
			Message: "Tool not found.",
		}
	case errors.Is(err, ErrInvalidParams):
		return &MCPError{
			Code:    ErrCodeInvalidParams,
			Message: "Invalid parameters.",
		}
	case errors.Is(err, ErrResourceNotFound):
		return &MCPError{
			Code:    ErrCodeMethodNotFound,
			Message: "Resource not found.",
		}
	default:
		return &MCPError{
			Code:    ErrCodeInternalError,
			Message: "Internal server error.",
		}
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{
		Code:    ErrCodeInvalidParams,
		Message: msg,
	}
}

// NewMethodNotFoundError creates an error for unknown methods/tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found.", name),
	}
}

// NewResourceNotFoundError creates an error for unknown resources.
func NewResourceNotFoundError(uri string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Resource '%s' not found.", uri),
	}
}

// NewIndexingInProgressError creates an error for queries that arrive
// while the index is still being built. Results against a half-written
// index would be incomplete, so queries are refused rather than served.
func NewIndexingInProgressError(snap async.IndexProgressSnapshot) *MCPError {
	return &MCPError{
		Code: ErrCodeIndexingInProgress,
		Message: fmt.Sprintf("Indexing in progress: %.1f%% complete (stage: %s). Try again in a moment.",
			snap.ProgressPct, snap.Stage),
	}
}

// mapRigError converts a RigError to an MCPError.
func mapRigError(re *rqerrors.RigError) *MCPError {
	// Surface the suggestion alongside the message so AI clients can
	// relay the remedy.
	message := re.Message
	if re.Suggestion != "" {
		message = fmt.Sprintf("%s %s", re.Message, re.Suggestion)
	}

	switch re.Category {
	case rqerrors.CategoryDocument:
		switch re.Code {
		case rqerrors.ErrCodeFileNotFound:
			return &MCPError{
				Code:    ErrCodeDocumentNotFound,
				Message: message,
			}
		default:
			return &MCPError{
				Code:    ErrCodeInternalError,
				Message: message,
			}
		}
	case rqerrors.CategoryStorage:
		switch re.Code {
		case rqerrors.ErrCodeCorruptIndex:
			return &MCPError{
				Code:    ErrCodeIndexNotFound,
				Message: message,
			}
		default:
			return &MCPError{
				Code:    ErrCodeInternalError,
				Message: message,
			}
		}
	case rqerrors.CategoryBackend:
		switch re.Code {
		case rqerrors.ErrCodeBackendTimeout:
			return &MCPError{
				Code:    ErrCodeTimeout,
				Message: message,
			}
		case rqerrors.ErrCodeEmbeddingFailed:
			return &MCPError{
				Code:    ErrCodeEmbeddingFailed,
				Message: message,
			}
		default:
			return &MCPError{
				Code:    ErrCodeBackendUnavailable,
				Message: message,
			}
		}
	case rqerrors.CategoryInternal:
		switch re.Code {
		case rqerrors.ErrCodeInvalidQuery:
			return &MCPError{
				Code:    ErrCodeInvalidParams,
				Message: message,
			}
		default:
			return &MCPError{
				Code:    ErrCodeInternalError,
				Message: message,
			}
		}
	default:
		// Config and anything unclassified surface as internal errors.
		return &MCPError{
			Code:    ErrCodeInternalError,
			Message: message,
		}
	}
}
