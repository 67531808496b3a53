package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rigdocs/rigqa/internal/async"
	"github.com/rigdocs/rigqa/internal/embed"
	"github.com/rigdocs/rigqa/internal/llm"
	"github.com/rigdocs/rigqa/internal/qa"
	"github.com/rigdocs/rigqa/internal/search"
	"github.com/rigdocs/rigqa/internal/store"
	"github.com/rigdocs/rigqa/pkg/version"
)

// Server is the MCP server for rigqa.
// It bridges AI clients (Claude Code, Cursor) with the document QA service.
type Server struct {
	mcp    *mcp.Server
	qa     *qa.Service
	engine *search.Engine
	store  *store.Manager

	// Backends for capability signaling. Either may be nil, in which
	// case index_status reports the backend as unavailable.
	embedder  embed.Embedder
	generator llm.Generator

	// indexProgress tracks a background index build behind this server.
	// Atomic because the SDK handlers run outside the dispatch lock.
	indexProgress atomic.Pointer[async.IndexProgress]

	logger *slog.Logger

	mu sync.RWMutex
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// ResourceInfo contains information about a resource.
type ResourceInfo struct {
	URI      string
	Name     string
	MIMEType string
}

// ResourceContent contains the content of a resource.
type ResourceContent struct {
	URI      string
	Content  string
	MIMEType string
}

// NewServer creates a new MCP server over an opened store.
// The embedder and generator are used for capability signaling; AI
// clients query the actual backend state to adjust their strategies.
func NewServer(svc *qa.Service, engine *search.Engine, manager *store.Manager, embedder embed.Embedder, generator llm.Generator) (*Server, error) {
	if svc == nil {
		return nil, errors.New("qa service is required")
	}
	if engine == nil {
		return nil, errors.New("search engine is required")
	}
	if manager == nil {
		return nil, errors.New("store manager is required")
	}

	s := &Server{
		qa:        svc,
		engine:    engine,
		store:     manager,
		embedder:  embedder,
		generator: generator,
		logger:    slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "rigqa",
			Version: version.Version,
		},
		nil, // ServerOptions - capabilities are inferred from registered tools/resources
	)

	s.registerTools()

	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// SetIndexProgress attaches the progress tracker of a background index
// build. While the build runs, ask_documents and search_documents are
// refused with an indexing-in-progress error and index_status reports
// the build state.
func (s *Server) SetIndexProgress(progress *async.IndexProgress) {
	s.indexProgress.Store(progress)
}

// refuseIfIndexing returns an error while a background build is still
// writing the index. Once the build finishes, or after it fails,
// queries run against whatever the index holds.
func (s *Server) refuseIfIndexing() *MCPError {
	progress := s.indexProgress.Load()
	if progress == nil || !progress.IsIndexing() {
		return nil
	}
	return NewIndexingInProgressError(progress.Snapshot())
}

// buildStatus returns the tracker snapshot while a build runs or after
// one has failed. A finished build reports through the index stats.
func (s *Server) buildStatus() (async.IndexProgressSnapshot, bool) {
	progress := s.indexProgress.Load()
	if progress == nil {
		return async.IndexProgressSnapshot{}, false
	}
	snap := progress.Snapshot()
	if snap.Status == string(async.StatusReady) {
		return async.IndexProgressSnapshot{}, false
	}
	return snap, true
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return "rigqa", version.Version
}

// Capabilities returns whether tools and resources are enabled.
func (s *Server) Capabilities() (hasTools, hasResources bool) {
	return true, true
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{
			Name:        "ask_documents",
			Description: "Answer a question from the indexed documents. Retrieves the most relevant passages, generates a grounded answer, and cites the source chunks. Date-anchored questions ('What was done on Sept 6?') route through the date index for exact matches.",
		},
		{
			Name:        "search_documents",
			Description: "Retrieve matching passages without generating an answer. Use when you want the raw source text. Supports auto, semantic, and hybrid retrieval modes plus per-document scoping.",
		},
		{
			Name:        "index_status",
			Description: "Check what is indexed and which backends are active. Use before asking to verify documents are present and whether semantic quality is degraded to static embeddings.",
		},
	}
}

// CallTool invokes a tool by name with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch name {
	case "ask_documents":
		return s.handleAskTool(ctx, args)
	case "search_documents":
		return s.handleSearchTool(ctx, args)
	case "index_status":
		return s.handleIndexStatusTool(ctx)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

// handleAskTool handles the ask_documents tool invocation.
// Returns a markdown-formatted answer with sources.
func (s *Server) handleAskTool(ctx context.Context, args map[string]any) (string, error) {
	question, ok := args["question"].(string)
	if !ok || strings.TrimSpace(question) == "" {
		return "", NewInvalidParamsError("question parameter is required and must be a non-empty string")
	}

	opts := qa.AskOptions{}
	if k, ok := args["top_k"].(float64); ok {
		opts.TopK = int(k)
	}
	if tokens, ok := args["max_tokens"].(float64); ok {
		opts.MaxTokens = int(tokens)
	}
	if doc, ok := args["document"].(string); ok {
		opts.Document = doc
	}
	if m, ok := args["mode"].(string); ok {
		mode, err := search.ParseMode(m)
		if err != nil {
			return "", NewInvalidParamsError(err.Error())
		}
		opts.Mode = mode
	}

	resp, err := s.ask(ctx, question, opts)
	if err != nil {
		return "", err
	}

	return FormatAskResponse(resp), nil
}

// handleSearchTool handles the search_documents tool invocation.
// Returns markdown-formatted results.
func (s *Server) handleSearchTool(ctx context.Context, args map[string]any) (string, error) {
	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return "", NewInvalidParamsError("query parameter is required and must be a non-empty string")
	}

	opts := search.Options{}
	if k, ok := args["top_k"].(float64); ok {
		opts.TopK = int(k)
	}
	if doc, ok := args["document"].(string); ok {
		opts.Document = doc
	}
	if m, ok := args["mode"].(string); ok {
		mode, err := search.ParseMode(m)
		if err != nil {
			return "", NewInvalidParamsError(err.Error())
		}
		opts.Mode = mode
	}

	ret, err := s.search(ctx, query, opts)
	if err != nil {
		return "", err
	}

	return FormatSearchResults(query, ret), nil
}

// handleIndexStatusTool handles the index_status tool invocation.
func (s *Server) handleIndexStatusTool(ctx context.Context) (*IndexStatusOutput, error) {
	start := time.Now()
	requestID := generateRequestID()

	s.logger.Info("index_status started",
		slog.String("request_id", requestID))

	snap, building := s.buildStatus()

	stats, err := s.store.Stats(ctx)
	if err != nil {
		if !building {
			s.logger.Error("index_status failed",
				slog.String("request_id", requestID),
				slog.String("error", err.Error()))
			return nil, MapError(err)
		}
		// Mid-build the store can be briefly unreadable; the progress
		// block below still carries the build state.
		stats = &store.ManagerStats{}
	}

	output := &IndexStatusOutput{
		Status: "empty",
		Index: IndexStats{
			Documents:  stats.Documents,
			Chunks:     stats.Chunks,
			Vectors:    stats.Vectors,
			Dimensions: stats.Dimensions,
			Backend:    stats.Backend,
		},
		Embeddings: s.embeddingInfo(ctx),
		Generation: s.generationInfo(ctx),
	}
	if stats.Chunks > 0 {
		output.Status = "ready"
	}
	if building {
		if snap.Status == string(async.StatusIndexing) {
			output.Status = "indexing"
		}
		output.Indexing = &IndexingProgress{
			Status:             snap.Status,
			Stage:              snap.Stage,
			DocumentsTotal:     snap.DocumentsTotal,
			DocumentsProcessed: snap.DocumentsProcessed,
			ChunksIndexed:      snap.ChunksIndexed,
			ProgressPct:        snap.ProgressPct,
			ElapsedSeconds:     snap.ElapsedSeconds,
			ErrorMessage:       snap.ErrorMessage,
		}
	}

	s.logger.Info("index_status completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.Int("documents", stats.Documents),
		slog.String("status", output.Status))

	return output, nil
}

// embeddingInfo probes the embedder and classifies its quality.
func (s *Server) embeddingInfo(ctx context.Context) EmbeddingInfo {
	if s.embedder == nil {
		return EmbeddingInfo{
			Provider:         "none",
			Model:            "none",
			Status:           "unavailable",
			IsFallbackActive: true,
			SemanticQuality:  "none",
		}
	}

	info := embed.GetInfo(ctx, s.embedder)
	out := EmbeddingInfo{
		Provider:         string(info.Provider),
		Model:            info.Model,
		Dimensions:       info.Dimensions,
		Status:           "unavailable",
		IsFallbackActive: info.Provider == embed.ProviderStatic,
		SemanticQuality:  "high",
	}
	if info.Available {
		out.Status = "ready"
	}
	if out.IsFallbackActive {
		out.SemanticQuality = "low"
	}
	return out
}

// generationInfo probes the answer generator.
func (s *Server) generationInfo(ctx context.Context) GenerationInfo {
	if s.generator == nil {
		return GenerationInfo{
			Model:  "none",
			Status: "unavailable",
		}
	}

	out := GenerationInfo{
		Model:  s.generator.Name(),
		Status: "unavailable",
	}
	if s.generator.Available(ctx) {
		out.Status = "ready"
	}
	return out
}

// ask runs one QA request with request-scoped logging. Both the typed
// SDK handlers and the manual dispatcher funnel through here so the two
// surfaces log and map errors identically.
func (s *Server) ask(ctx context.Context, question string, opts qa.AskOptions) (*qa.Response, error) {
	start := time.Now()
	requestID := generateRequestID()

	s.logger.Info("ask_documents started",
		slog.String("request_id", requestID),
		slog.String("question", question),
		slog.Int("top_k", opts.TopK))

	if mcpErr := s.refuseIfIndexing(); mcpErr != nil {
		s.logger.Warn("ask_documents refused, index build in progress",
			slog.String("request_id", requestID))
		return nil, mcpErr
	}

	resp, err := s.qa.Ask(ctx, question, opts)
	duration := time.Since(start)

	if err != nil {
		s.logger.Error("ask_documents failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	s.logger.Info("ask_documents completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Int("source_count", len(resp.Sources)),
		slog.String("method", resp.SearchMethod))

	return resp, nil
}

// search runs one retrieval with request-scoped logging.
func (s *Server) search(ctx context.Context, query string, opts search.Options) (*search.Retrieval, error) {
	start := time.Now()
	requestID := generateRequestID()

	s.logger.Info("search_documents started",
		slog.String("request_id", requestID),
		slog.String("query", query),
		slog.Int("top_k", opts.TopK))

	if mcpErr := s.refuseIfIndexing(); mcpErr != nil {
		s.logger.Warn("search_documents refused, index build in progress",
			slog.String("request_id", requestID))
		return nil, mcpErr
	}

	ret, err := s.engine.Retrieve(ctx, query, opts)
	duration := time.Since(start)

	if err != nil {
		s.logger.Error("search_documents failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	s.logger.Info("search_documents completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Int("result_count", len(ret.Results)),
		slog.String("method", string(ret.Method)))

	return ret, nil
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	s.logger.Debug("Registering MCP tools")

	for _, t := range s.ListTools() {
		tool := &mcp.Tool{Name: t.Name, Description: t.Description}
		switch t.Name {
		case "ask_documents":
			mcp.AddTool(s.mcp, tool, s.mcpAskHandler)
		case "search_documents":
			mcp.AddTool(s.mcp, tool, s.mcpSearchHandler)
		case "index_status":
			mcp.AddTool(s.mcp, tool, s.mcpIndexStatusHandler)
		}
		s.logger.Debug("Registered tool", slog.String("name", t.Name))
	}

	s.logger.Info("MCP tools registered", slog.Int("count", len(s.ListTools())))
}

// mcpAskHandler is the MCP SDK handler for the ask_documents tool.
func (s *Server) mcpAskHandler(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (
	*mcp.CallToolResult,
	AskOutput,
	error,
) {
	if strings.TrimSpace(input.Question) == "" {
		return nil, AskOutput{}, NewInvalidParamsError("question parameter is required")
	}

	mode, err := search.ParseMode(input.Mode)
	if err != nil {
		return nil, AskOutput{}, NewInvalidParamsError(err.Error())
	}

	resp, err := s.ask(ctx, input.Question, qa.AskOptions{
		TopK:      input.TopK,
		Mode:      mode,
		Document:  input.Document,
		MaxTokens: input.MaxTokens,
	})
	if err != nil {
		return nil, AskOutput{}, err
	}

	return nil, toAskOutput(resp), nil
}

// mcpSearchHandler is the MCP SDK handler for the search_documents tool.
func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query parameter is required")
	}

	mode, err := search.ParseMode(input.Mode)
	if err != nil {
		return nil, SearchOutput{}, NewInvalidParamsError(err.Error())
	}

	ret, err := s.search(ctx, input.Query, search.Options{
		TopK:     input.TopK,
		Mode:     mode,
		Document: input.Document,
	})
	if err != nil {
		return nil, SearchOutput{}, err
	}

	return nil, toSearchOutput(ret), nil
}

// mcpIndexStatusHandler is the MCP SDK handler for the index_status tool.
func (s *Server) mcpIndexStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	*IndexStatusOutput,
	error,
) {
	output, err := s.handleIndexStatusTool(ctx)
	if err != nil {
		return nil, nil, err
	}
	return nil, output, nil
}

// Serve starts the server with the specified transport.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("Starting MCP server",
		slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error",
				slog.String("error", err.Error()))
		} else {
			s.logger.Info("MCP server stopped gracefully")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// Close releases server resources.
func (s *Server) Close() error {
	// The MCP server has no Close method; it stops when the context is
	// canceled. The store is owned and closed by the caller.
	return nil
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
