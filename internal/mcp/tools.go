package mcp

import (
	"github.com/rigdocs/rigqa/internal/qa"
	"github.com/rigdocs/rigqa/internal/search"
)

// AskInput defines the input schema for the ask_documents tool.
type AskInput struct {
	Question  string `json:"question" jsonschema:"the question to answer from the indexed documents"`
	TopK      int    `json:"top_k,omitempty" jsonschema:"number of context chunks to retrieve, default 5"`
	Mode      string `json:"mode,omitempty" jsonschema:"retrieval mode: auto (default), semantic, or hybrid"`
	Document  string `json:"document,omitempty" jsonschema:"restrict retrieval to one document by name"`
	MaxTokens int    `json:"max_tokens,omitempty" jsonschema:"maximum answer length in tokens, default 500"`
}

// AskOutput defines the output schema for the ask_documents tool.
type AskOutput struct {
	Question     string         `json:"question" jsonschema:"the question as answered, after trimming"`
	Answer       string         `json:"answer" jsonschema:"the generated answer"`
	Sources      []SourceOutput `json:"sources" jsonschema:"the context chunks the answer was grounded on"`
	SearchMethod string         `json:"search_method" jsonschema:"retrieval strategy used: semantic, hybrid, semantic_fallback, or filename_filter"`
	LLMUsed      string         `json:"llm_used" jsonschema:"name of the generation model, or extractive when no LLM was reachable"`
	FilteredBy   string         `json:"filtered_by,omitempty" jsonschema:"document name when retrieval was scoped to one document"`
}

// SourceOutput identifies one context chunk behind an answer.
type SourceOutput struct {
	Document       string  `json:"document" jsonschema:"source document name"`
	ChunkOrdinal   int     `json:"chunk_ordinal" jsonschema:"chunk position within the document"`
	RelevanceScore float64 `json:"relevance_score" jsonschema:"retrieval score between 0 and 1"`
}

// SearchInput defines the input schema for the search_documents tool.
type SearchInput struct {
	Query    string `json:"query" jsonschema:"the search query to execute"`
	TopK     int    `json:"top_k,omitempty" jsonschema:"maximum number of results, default 5"`
	Mode     string `json:"mode,omitempty" jsonschema:"retrieval mode: auto (default), semantic, or hybrid"`
	Document string `json:"document,omitempty" jsonschema:"restrict retrieval to one document by name"`
}

// SearchOutput defines the output schema for the search_documents tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results" jsonschema:"list of matching chunks ranked by score"`
	Method  string               `json:"method" jsonschema:"retrieval strategy that produced the results"`
}

// SearchResultOutput defines a single search result.
type SearchResultOutput struct {
	Document     string  `json:"document" jsonschema:"source document name"`
	ChunkOrdinal int     `json:"chunk_ordinal" jsonschema:"chunk position within the document"`
	Content      string  `json:"content" jsonschema:"the matched passage text"`
	Score        float64 `json:"score" jsonschema:"relevance score between 0 and 1"`
}

// IndexStatusInput defines the (empty) input schema for index_status.
type IndexStatusInput struct{}

// IndexStatusOutput defines the output schema for the index_status tool.
// AI clients use the embeddings state to adjust their query strategy:
// static embeddings rank keyword-heavy queries better than paraphrases.
type IndexStatusOutput struct {
	Status     string            `json:"status" jsonschema:"ready when documents are indexed, indexing while a build runs, empty otherwise"`
	Index      IndexStats        `json:"index" jsonschema:"indexed corpus counts"`
	Embeddings EmbeddingInfo     `json:"embeddings" jsonschema:"embedding backend state"`
	Generation GenerationInfo    `json:"generation" jsonschema:"answer generation backend state"`
	Indexing   *IndexingProgress `json:"indexing,omitempty" jsonschema:"background index build state, present while a build runs or after one fails"`
}

// IndexingProgress reports a background index build.
type IndexingProgress struct {
	Status             string  `json:"status" jsonschema:"indexing or error"`
	Stage              string  `json:"stage" jsonschema:"scanning, parsing, chunking, embedding, or indexing"`
	DocumentsTotal     int     `json:"documents_total"`
	DocumentsProcessed int     `json:"documents_processed"`
	ChunksIndexed      int     `json:"chunks_indexed"`
	ProgressPct        float64 `json:"progress_pct"`
	ElapsedSeconds     int     `json:"elapsed_seconds"`
	ErrorMessage       string  `json:"error_message,omitempty"`
}

// IndexStats reports indexed corpus counts.
type IndexStats struct {
	Documents  int    `json:"documents"`
	Chunks     int    `json:"chunks"`
	Vectors    int    `json:"vectors"`
	Dimensions int    `json:"dimensions"`
	Backend    string `json:"backend" jsonschema:"vector index backend: flat or hnsw"`
}

// EmbeddingInfo reports the runtime state of the embedding backend.
type EmbeddingInfo struct {
	Provider         string `json:"provider" jsonschema:"active provider: ollama, static, or none"`
	Model            string `json:"model"`
	Dimensions       int    `json:"dimensions"`
	Status           string `json:"status" jsonschema:"ready or unavailable"`
	IsFallbackActive bool   `json:"is_fallback_active" jsonschema:"true when hash-based static embeddings are in use"`
	SemanticQuality  string `json:"semantic_quality" jsonschema:"high for model embeddings, low for static, none without an embedder"`
}

// GenerationInfo reports the runtime state of the answer generator.
type GenerationInfo struct {
	Model  string `json:"model"`
	Status string `json:"status" jsonschema:"ready or unavailable"`
}

// toAskOutput converts a QA response to the tool output schema.
// Context passages are intentionally not echoed back; sources identify
// the chunks and clients can read full documents as resources.
func toAskOutput(resp *qa.Response) AskOutput {
	out := AskOutput{
		Question:     resp.Question,
		Answer:       resp.Answer,
		Sources:      make([]SourceOutput, 0, len(resp.Sources)),
		SearchMethod: resp.SearchMethod,
		LLMUsed:      resp.LLMUsed,
		FilteredBy:   resp.FilteredBy,
	}
	for _, src := range resp.Sources {
		out.Sources = append(out.Sources, SourceOutput{
			Document:       src.DocumentID,
			ChunkOrdinal:   src.ChunkOrdinal,
			RelevanceScore: src.RelevanceScore,
		})
	}
	return out
}

// toSearchOutput converts a retrieval to the tool output schema.
func toSearchOutput(ret *search.Retrieval) SearchOutput {
	out := SearchOutput{
		Results: make([]SearchResultOutput, 0, len(ret.Results)),
		Method:  string(ret.Method),
	}
	for _, r := range ret.Results {
		if r.Chunk == nil {
			continue
		}
		out.Results = append(out.Results, SearchResultOutput{
			Document:     r.Chunk.DocumentID,
			ChunkOrdinal: r.Chunk.Ordinal,
			Content:      r.Chunk.Content,
			Score:        r.Score,
		})
	}
	return out
}
