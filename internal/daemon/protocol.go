package daemon

import (
	"fmt"
	"strings"

	"github.com/rigdocs/rigqa/internal/search"
	"github.com/rigdocs/rigqa/internal/store"
)

// JSON-RPC 2.0 method names.
const (
	MethodAsk    = "ask"
	MethodSearch = "search"
	MethodStatus = "status"
	MethodPing   = "ping"
)

// Standard JSON-RPC 2.0 error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Daemon-specific error codes.
const (
	// ErrCodeNoIndex means the data directory has no index yet.
	ErrCodeNoIndex = -32001

	// ErrCodeQueryFailed covers ask and search execution failures.
	ErrCodeQueryFailed = -32002
)

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      string `json:"id"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
	ID      string `json:"id"`
}

// Error represents a JSON-RPC 2.0 error.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// NewSuccessResponse creates a successful response.
func NewSuccessResponse(id string, result any) Response {
	return Response{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id string, code int, message string) Response {
	return Response{
		JSONRPC: "2.0",
		Error: &Error{
			Code:    code,
			Message: message,
		},
		ID: id,
	}
}

// AskParams are the parameters for the ask method.
type AskParams struct {
	// Question is the natural-language question (required).
	Question string `json:"question"`

	// TopK caps the number of context passages. Zero takes the server's
	// configured default.
	TopK int `json:"top_k,omitempty"`

	// Mode selects retrieval routing: "auto", "semantic", "hybrid"
	// (default: "auto").
	Mode string `json:"mode,omitempty"`

	// Document restricts retrieval to one document by name.
	Document string `json:"document,omitempty"`

	// MaxTokens bounds the generated answer. Zero takes the server's
	// configured default.
	MaxTokens int `json:"max_tokens,omitempty"`
}

// Validate checks required fields and corrects out-of-range values.
func (p *AskParams) Validate() error {
	if strings.TrimSpace(p.Question) == "" {
		return fmt.Errorf("question is required")
	}
	if p.TopK < 0 {
		p.TopK = 0
	}
	if p.MaxTokens < 0 {
		p.MaxTokens = 0
	}
	return nil
}

// SearchParams are the parameters for the search method.
type SearchParams struct {
	// Query is the retrieval query (required).
	Query string `json:"query"`

	// TopK caps the number of results. Zero takes the server's
	// configured default.
	TopK int `json:"top_k,omitempty"`

	// Mode selects retrieval routing: "auto", "semantic", "hybrid"
	// (default: "auto").
	Mode string `json:"mode,omitempty"`

	// Document restricts retrieval to one document by name.
	Document string `json:"document,omitempty"`
}

// Validate checks required fields and corrects out-of-range values.
func (p *SearchParams) Validate() error {
	if strings.TrimSpace(p.Query) == "" {
		return fmt.Errorf("query is required")
	}
	if p.TopK < 0 {
		p.TopK = 0
	}
	return nil
}

// SearchResult is one retrieved passage in wire form.
type SearchResult struct {
	DocumentID  string  `json:"document_id"`
	Ordinal     int     `json:"ordinal"`
	Score       float64 `json:"score"`
	Content     string  `json:"content"`
	DateContext string  `json:"date_context,omitempty"`
}

// SearchOutput carries one retrieval and the strategy that produced it.
type SearchOutput struct {
	Method  string         `json:"method"`
	Results []SearchResult `json:"results"`
}

// NewSearchOutput converts an engine retrieval to wire form.
func NewSearchOutput(ret *search.Retrieval) *SearchOutput {
	out := &SearchOutput{
		Method:  string(ret.Method),
		Results: make([]SearchResult, 0, len(ret.Results)),
	}
	for _, r := range ret.Results {
		if r.Chunk == nil {
			continue
		}
		out.Results = append(out.Results, SearchResult{
			DocumentID:  r.Chunk.DocumentID,
			Ordinal:     r.Chunk.Ordinal,
			Score:       r.Score,
			Content:     r.Chunk.Content,
			DateContext: r.Chunk.DateContext,
		})
	}
	return out
}

// Retrieval converts wire results back to engine form so clients can
// share formatting with the in-process path. Chunk fields that do not
// cross the wire (Seq, Embedding) are zero.
func (o *SearchOutput) Retrieval() *search.Retrieval {
	ret := &search.Retrieval{Method: search.Method(o.Method)}
	for _, r := range o.Results {
		ret.Results = append(ret.Results, search.Result{
			Chunk: &store.Chunk{
				ID:          store.ChunkID(r.DocumentID, r.Ordinal),
				DocumentID:  r.DocumentID,
				Ordinal:     r.Ordinal,
				Content:     r.Content,
				DateContext: r.DateContext,
			},
			Score: r.Score,
		})
	}
	return ret
}

// StatusResult contains daemon status information.
type StatusResult struct {
	Running bool   `json:"running"`
	PID     int    `json:"pid"`
	Uptime  string `json:"uptime"`

	// IndexLoaded reports whether the store is open. The daemon opens
	// it on the first query, not at startup.
	IndexLoaded bool `json:"index_loaded"`
	Documents   int  `json:"documents"`
	Chunks      int  `json:"chunks"`

	Embedder        string `json:"embedder"`
	EmbedderStatus  string `json:"embedder_status"` // "ready", "unavailable"
	Generator       string `json:"generator"`
	GeneratorStatus string `json:"generator_status"` // "ready", "unavailable"
}

// PingResult is the response to a ping request.
type PingResult struct {
	Pong bool `json:"pong"`
}
