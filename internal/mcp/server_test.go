package mcp

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rigdocs/rigqa/internal/async"
	"github.com/rigdocs/rigqa/internal/embed"
	"github.com/rigdocs/rigqa/internal/llm"
	"github.com/rigdocs/rigqa/internal/qa"
	"github.com/rigdocs/rigqa/internal/search"
	"github.com/rigdocs/rigqa/internal/store"
)

// mcpHarness wires a server over real stores in a temp directory, with
// static embeddings and the extractive generator. This mirrors the
// fully offline deployment, so every tool call works without backends.
type mcpHarness struct {
	server   *Server
	manager  *store.Manager
	embedder embed.Embedder
}

func newMCPHarness(t *testing.T) *mcpHarness {
	t.Helper()

	manager, err := store.Open(t.TempDir(), store.ManagerConfig{Dimensions: embed.StaticDimensions})
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	embedder := embed.NewStaticEmbedder()
	t.Cleanup(func() { _ = embedder.Close() })

	engine, err := search.NewEngine(manager.Chunks, manager.Vectors, manager.Keywords, embedder, search.DefaultConfig())
	require.NoError(t, err)

	generator := llm.NewExtractiveGenerator()
	svc, err := qa.NewService(engine, generator, manager.Chunks, qa.DefaultConfig())
	require.NoError(t, err)

	srv, err := NewServer(svc, engine, manager, embedder, generator)
	require.NoError(t, err)

	return &mcpHarness{server: srv, manager: manager, embedder: embedder}
}

// ingest stores, embeds, and indexes one document's passages.
func (h *mcpHarness) ingest(t *testing.T, document string, passages ...string) {
	t.Helper()
	ctx := context.Background()

	chunks := make([]*store.Chunk, len(passages))
	for i, p := range passages {
		chunks[i] = &store.Chunk{Ordinal: i, Content: p}
	}
	require.NoError(t, h.manager.Chunks.SaveChunks(ctx, document, chunks))

	ids := make([]string, len(chunks))
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
		texts[i] = c.Content
	}
	vectors, err := h.embedder.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.NoError(t, h.manager.Vectors.Add(ctx, ids, vectors))
	require.NoError(t, h.manager.Keywords.Index(ctx, chunks))
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	h := newMCPHarness(t)

	_, err := NewServer(nil, h.server.engine, h.manager, nil, nil)
	assert.ErrorContains(t, err, "qa service is required")

	_, err = NewServer(h.server.qa, nil, h.manager, nil, nil)
	assert.ErrorContains(t, err, "search engine is required")

	_, err = NewServer(h.server.qa, h.server.engine, nil, nil, nil)
	assert.ErrorContains(t, err, "store manager is required")
}

func TestNewServer_BackendsAreOptional(t *testing.T) {
	h := newMCPHarness(t)

	srv, err := NewServer(h.server.qa, h.server.engine, h.manager, nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, srv.MCPServer())
}

func TestServer_Info(t *testing.T) {
	h := newMCPHarness(t)

	name, ver := h.server.Info()
	assert.Equal(t, "rigqa", name)
	assert.NotEmpty(t, ver)
}

func TestServer_Capabilities(t *testing.T) {
	h := newMCPHarness(t)

	hasTools, hasResources := h.server.Capabilities()
	assert.True(t, hasTools)
	assert.True(t, hasResources)
}

func TestServer_ListTools(t *testing.T) {
	h := newMCPHarness(t)

	tools := h.server.ListTools()
	require.Len(t, tools, 3)

	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name
		assert.NotEmpty(t, tool.Description)
	}
	assert.Equal(t, []string{"ask_documents", "search_documents", "index_status"}, names)
}

func TestServer_CallTool_UnknownTool(t *testing.T) {
	h := newMCPHarness(t)

	_, err := h.server.CallTool(context.Background(), "grep", nil)
	require.Error(t, err)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeMethodNotFound, mcpErr.Code)
	assert.Contains(t, mcpErr.Message, "grep")
}

func TestServer_CallTool_Ask_RequiresQuestion(t *testing.T) {
	h := newMCPHarness(t)

	for _, args := range []map[string]any{
		nil,
		{"question": ""},
		{"question": "   "},
		{"question": 42},
	} {
		_, err := h.server.CallTool(context.Background(), "ask_documents", args)
		var mcpErr *MCPError
		require.ErrorAs(t, err, &mcpErr)
		assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
	}
}

func TestServer_CallTool_Ask_RejectsInvalidMode(t *testing.T) {
	h := newMCPHarness(t)

	_, err := h.server.CallTool(context.Background(), "ask_documents", map[string]any{
		"question": "What happened?",
		"mode":     "telepathic",
	})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
	assert.Contains(t, mcpErr.Message, "telepathic")
}

func TestServer_CallTool_Ask_ReturnsMarkdownAnswer(t *testing.T) {
	h := newMCPHarness(t)
	h.ingest(t, "daily_report.txt",
		"Raised mud weight to 10.4 ppg and circulated bottoms up.",
		"Ran 9 5/8in casing to the shoe and cemented in place.",
	)

	result, err := h.server.CallTool(context.Background(), "ask_documents", map[string]any{
		"question": "What was the mud weight?",
	})
	require.NoError(t, err)

	text, ok := result.(string)
	require.True(t, ok)
	assert.Contains(t, text, "mud weight")
	assert.Contains(t, text, "daily_report.txt")
	assert.Contains(t, text, "extractive")
}

func TestServer_CallTool_Ask_DocumentScope(t *testing.T) {
	h := newMCPHarness(t)
	h.ingest(t, "well_a.txt", "Drilled 12 1/4in hole to 5200 ft.")
	h.ingest(t, "well_b.txt", "Drilled 8 1/2in hole to 9300 ft.")

	result, err := h.server.CallTool(context.Background(), "ask_documents", map[string]any{
		"question": "What hole size was drilled?",
		"document": "well_b.txt",
	})
	require.NoError(t, err)

	text, ok := result.(string)
	require.True(t, ok)
	assert.Contains(t, text, "well_b.txt")
	assert.NotContains(t, text, "well_a.txt")
}

func TestServer_CallTool_Search_RequiresQuery(t *testing.T) {
	h := newMCPHarness(t)

	_, err := h.server.CallTool(context.Background(), "search_documents", map[string]any{
		"query": "  ",
	})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestServer_CallTool_Search_EmptyIndex(t *testing.T) {
	h := newMCPHarness(t)

	result, err := h.server.CallTool(context.Background(), "search_documents", map[string]any{
		"query": "casing",
	})
	require.NoError(t, err)

	text, ok := result.(string)
	require.True(t, ok)
	assert.Equal(t, `No results found for "casing"`, text)
}

func TestServer_CallTool_Search_ReturnsResults(t *testing.T) {
	h := newMCPHarness(t)
	h.ingest(t, "daily_report.txt",
		"Raised mud weight to 10.4 ppg and circulated bottoms up.",
		"Ran 9 5/8in casing to the shoe and cemented in place.",
	)

	result, err := h.server.CallTool(context.Background(), "search_documents", map[string]any{
		"query": "casing cemented",
		"top_k": float64(2),
	})
	require.NoError(t, err)

	text, ok := result.(string)
	require.True(t, ok)
	assert.Contains(t, text, "Search Results")
	assert.Contains(t, text, "daily_report.txt")
}

func TestServer_CallTool_Search_TopKLimitsResults(t *testing.T) {
	h := newMCPHarness(t)
	h.ingest(t, "daily_report.txt",
		"Raised mud weight to 10.4 ppg and circulated bottoms up.",
		"Ran 9 5/8in casing to the shoe and cemented in place.",
		"Performed BOP function test, all rams closed within limits.",
	)

	result, err := h.server.CallTool(context.Background(), "search_documents", map[string]any{
		"query": "mud weight",
		"top_k": float64(1),
	})
	require.NoError(t, err)

	text, ok := result.(string)
	require.True(t, ok)
	assert.Equal(t, 1, strings.Count(text, "### "))
}

func TestServer_CallTool_IndexStatus_EmptyIndex(t *testing.T) {
	h := newMCPHarness(t)

	result, err := h.server.CallTool(context.Background(), "index_status", nil)
	require.NoError(t, err)

	status, ok := result.(*IndexStatusOutput)
	require.True(t, ok)
	assert.Equal(t, "empty", status.Status)
	assert.Zero(t, status.Index.Documents)
	assert.Zero(t, status.Index.Chunks)
}

func TestServer_CallTool_IndexStatus_ReportsBackends(t *testing.T) {
	h := newMCPHarness(t)
	h.ingest(t, "daily_report.txt", "Raised mud weight to 10.4 ppg.")

	result, err := h.server.CallTool(context.Background(), "index_status", nil)
	require.NoError(t, err)

	status, ok := result.(*IndexStatusOutput)
	require.True(t, ok)
	assert.Equal(t, "ready", status.Status)
	assert.Equal(t, 1, status.Index.Documents)
	assert.Equal(t, 1, status.Index.Chunks)
	assert.Equal(t, 1, status.Index.Vectors)
	assert.Equal(t, embed.StaticDimensions, status.Index.Dimensions)

	assert.Equal(t, "static", status.Embeddings.Provider)
	assert.Equal(t, "ready", status.Embeddings.Status)
	assert.True(t, status.Embeddings.IsFallbackActive)
	assert.Equal(t, "low", status.Embeddings.SemanticQuality)

	assert.Equal(t, "extractive", status.Generation.Model)
	assert.Equal(t, "ready", status.Generation.Status)
}

func TestServer_CallTool_IndexStatus_NoBackendsConfigured(t *testing.T) {
	h := newMCPHarness(t)

	srv, err := NewServer(h.server.qa, h.server.engine, h.manager, nil, nil)
	require.NoError(t, err)

	result, err := srv.CallTool(context.Background(), "index_status", nil)
	require.NoError(t, err)

	status, ok := result.(*IndexStatusOutput)
	require.True(t, ok)
	assert.Equal(t, "none", status.Embeddings.Provider)
	assert.Equal(t, "unavailable", status.Embeddings.Status)
	assert.Equal(t, "none", status.Embeddings.SemanticQuality)
	assert.Equal(t, "unavailable", status.Generation.Status)
}

func TestServer_QueriesRefusedDuringIndexBuild(t *testing.T) {
	h := newMCPHarness(t)
	h.ingest(t, "daily_report.txt", "Raised mud weight to 10.4 ppg.")

	progress := async.NewIndexProgress()
	h.server.SetIndexProgress(progress)

	_, err := h.server.CallTool(context.Background(), "ask_documents", map[string]any{
		"question": "What was the mud weight?",
	})
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeIndexingInProgress, mcpErr.Code)
	assert.Contains(t, mcpErr.Message, "Indexing in progress")

	_, err = h.server.CallTool(context.Background(), "search_documents", map[string]any{
		"query": "mud weight",
	})
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeIndexingInProgress, mcpErr.Code)

	// Once the build finishes, queries flow again.
	progress.SetReady()
	_, err = h.server.CallTool(context.Background(), "ask_documents", map[string]any{
		"question": "What was the mud weight?",
	})
	assert.NoError(t, err)
}

func TestServer_CallTool_IndexStatus_DuringBuild(t *testing.T) {
	h := newMCPHarness(t)

	progress := async.NewIndexProgress()
	progress.SetStage(async.StageEmbedding)
	progress.SetDocumentsTotal(8)
	progress.UpdateDocuments(8)
	progress.SetChunksTotal(320)
	progress.UpdateChunks(80)
	h.server.SetIndexProgress(progress)

	result, err := h.server.CallTool(context.Background(), "index_status", nil)
	require.NoError(t, err)

	status, ok := result.(*IndexStatusOutput)
	require.True(t, ok)
	assert.Equal(t, "indexing", status.Status)

	require.NotNil(t, status.Indexing)
	assert.Equal(t, "indexing", status.Indexing.Status)
	assert.Equal(t, "embedding", status.Indexing.Stage)
	assert.Equal(t, 8, status.Indexing.DocumentsTotal)
	assert.Equal(t, 8, status.Indexing.DocumentsProcessed)
	assert.Equal(t, 80, status.Indexing.ChunksIndexed)
	assert.InDelta(t, 25.0, status.Indexing.ProgressPct, 0.01)
}

func TestServer_CallTool_IndexStatus_AfterFailedBuild(t *testing.T) {
	h := newMCPHarness(t)
	h.ingest(t, "daily_report.txt", "Raised mud weight to 10.4 ppg.")

	progress := async.NewIndexProgress()
	progress.SetError("embedding backend unreachable")
	h.server.SetIndexProgress(progress)

	result, err := h.server.CallTool(context.Background(), "index_status", nil)
	require.NoError(t, err)

	status, ok := result.(*IndexStatusOutput)
	require.True(t, ok)
	// The failure is reported but the overall status reflects what the
	// index actually holds.
	assert.Equal(t, "ready", status.Status)
	require.NotNil(t, status.Indexing)
	assert.Equal(t, "error", status.Indexing.Status)
	assert.Contains(t, status.Indexing.ErrorMessage, "unreachable")

	// Queries are not refused after a failed build.
	_, err = h.server.CallTool(context.Background(), "search_documents", map[string]any{
		"query": "mud weight",
	})
	assert.NoError(t, err)
}

func TestServer_CallTool_IndexStatus_AfterFinishedBuild(t *testing.T) {
	h := newMCPHarness(t)
	h.ingest(t, "daily_report.txt", "Raised mud weight to 10.4 ppg.")

	progress := async.NewIndexProgress()
	progress.SetReady()
	h.server.SetIndexProgress(progress)

	result, err := h.server.CallTool(context.Background(), "index_status", nil)
	require.NoError(t, err)

	status, ok := result.(*IndexStatusOutput)
	require.True(t, ok)
	assert.Equal(t, "ready", status.Status)
	assert.Nil(t, status.Indexing)
}

func TestServer_Serve_UnknownTransport(t *testing.T) {
	h := newMCPHarness(t)

	err := h.server.Serve(context.Background(), "sse")
	assert.ErrorContains(t, err, "unknown transport")
}

func TestServer_Close(t *testing.T) {
	h := newMCPHarness(t)
	assert.NoError(t, h.server.Close())
}

func TestGenerateRequestID(t *testing.T) {
	a := generateRequestID()
	b := generateRequestID()

	assert.Len(t, a, 8)
	assert.NotEqual(t, a, b)
}
