package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rigdocs/rigqa/internal/async"
	rqerrors "github.com/rigdocs/rigqa/internal/errors"
)

func TestMCPError_Error(t *testing.T) {
	err := &MCPError{Code: ErrCodeInvalidParams, Message: "question is required"}
	assert.Equal(t, "MCP error -32602: question is required", err.Error())
}

func TestMapError_Nil(t *testing.T) {
	assert.Nil(t, MapError(nil))
}

func TestMapError_Sentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"index not found", ErrIndexNotFound, ErrCodeIndexNotFound},
		{"deadline exceeded", context.DeadlineExceeded, ErrCodeTimeout},
		{"canceled", context.Canceled, ErrCodeTimeout},
		{"tool not found", ErrToolNotFound, ErrCodeMethodNotFound},
		{"invalid params", ErrInvalidParams, ErrCodeInvalidParams},
		{"resource not found", ErrResourceNotFound, ErrCodeMethodNotFound},
		{"unknown", errors.New("boom"), ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := MapError(tt.err)
			require.NotNil(t, mapped)
			assert.Equal(t, tt.wantCode, mapped.Code)
			assert.NotEmpty(t, mapped.Message)
		})
	}
}

func TestMapError_WrappedSentinel(t *testing.T) {
	err := fmt.Errorf("retrieve: %w", context.DeadlineExceeded)
	mapped := MapError(err)
	assert.Equal(t, ErrCodeTimeout, mapped.Code)
}

func TestMapError_RigErrorCodes(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		wantCode int
	}{
		{"file not found", rqerrors.ErrCodeFileNotFound, ErrCodeDocumentNotFound},
		{"extract failed", rqerrors.ErrCodeExtractFailed, ErrCodeInternalError},
		{"corrupt index", rqerrors.ErrCodeCorruptIndex, ErrCodeIndexNotFound},
		{"store closed", rqerrors.ErrCodeStoreClosed, ErrCodeInternalError},
		{"backend timeout", rqerrors.ErrCodeBackendTimeout, ErrCodeTimeout},
		{"embedding failed", rqerrors.ErrCodeEmbeddingFailed, ErrCodeEmbeddingFailed},
		{"backend unavailable", rqerrors.ErrCodeBackendUnavailable, ErrCodeBackendUnavailable},
		{"generation failed", rqerrors.ErrCodeGenerationFailed, ErrCodeBackendUnavailable},
		{"invalid query", rqerrors.ErrCodeInvalidQuery, ErrCodeInvalidParams},
		{"search failed", rqerrors.ErrCodeSearchFailed, ErrCodeInternalError},
		{"config invalid", rqerrors.ErrCodeConfigInvalid, ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := rqerrors.New(tt.code, "it broke", nil)
			mapped := MapError(err)
			require.NotNil(t, mapped)
			assert.Equal(t, tt.wantCode, mapped.Code)
			assert.Equal(t, "it broke", mapped.Message)
		})
	}
}

func TestMapError_RigErrorCarriesSuggestion(t *testing.T) {
	err := rqerrors.New(rqerrors.ErrCodeCorruptIndex, "index metadata unreadable", nil).
		WithSuggestion("remove the data directory and reindex")

	mapped := MapError(err)
	assert.Equal(t, ErrCodeIndexNotFound, mapped.Code)
	assert.Equal(t, "index metadata unreadable remove the data directory and reindex", mapped.Message)
}

func TestMapError_WrappedRigError(t *testing.T) {
	inner := rqerrors.New(rqerrors.ErrCodeBackendTimeout, "ollama timed out", nil)
	err := fmt.Errorf("ask: %w", inner)

	mapped := MapError(err)
	assert.Equal(t, ErrCodeTimeout, mapped.Code)
	assert.Equal(t, "ollama timed out", mapped.Message)
}

func TestNewInvalidParamsError(t *testing.T) {
	err := NewInvalidParamsError("top_k must be positive")
	assert.Equal(t, ErrCodeInvalidParams, err.Code)
	assert.Equal(t, "top_k must be positive", err.Message)
}

func TestNewMethodNotFoundError(t *testing.T) {
	err := NewMethodNotFoundError("summarize")
	assert.Equal(t, ErrCodeMethodNotFound, err.Code)
	assert.Contains(t, err.Message, "summarize")
}

func TestNewResourceNotFoundError(t *testing.T) {
	err := NewResourceNotFoundError("rigqa://document/ghost.txt")
	assert.Equal(t, ErrCodeMethodNotFound, err.Code)
	assert.Contains(t, err.Message, "rigqa://document/ghost.txt")
}

func TestNewIndexingInProgressError(t *testing.T) {
	err := NewIndexingInProgressError(async.IndexProgressSnapshot{
		Status:      string(async.StatusIndexing),
		Stage:       string(async.StageEmbedding),
		ProgressPct: 42.5,
	})
	assert.Equal(t, ErrCodeIndexingInProgress, err.Code)
	assert.Contains(t, err.Message, "42.5%")
	assert.Contains(t, err.Message, "embedding")
}
