// Package qa answers questions over the indexed corpus. A Service runs
// one question through retrieval, prompt composition, generation, and
// an optional continuation pass for answers that look cut off.
package qa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rigdocs/rigqa/internal/llm"
	"github.com/rigdocs/rigqa/internal/search"
	"github.com/rigdocs/rigqa/internal/store"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// Config bounds answer generation.
type Config struct {
	// MaxTokens bounds the initial answer. Non-positive selects
	// llm.DefaultMaxTokens.
	MaxTokens int

	// ContinuationTokens bounds each continuation pass. Non-positive
	// selects llm.ContinuationMaxTokens.
	ContinuationTokens int

	// MaxContinuations is the number of continuation passes a truncated
	// answer may get. Zero disables continuation.
	MaxContinuations int
}

// DefaultConfig returns the generation defaults: full token budget,
// one continuation pass.
func DefaultConfig() Config {
	return Config{
		MaxTokens:          llm.DefaultMaxTokens,
		ContinuationTokens: llm.ContinuationMaxTokens,
		MaxContinuations:   1,
	}
}

// AskOptions tunes a single question.
type AskOptions struct {
	// TopK is the number of context chunks to retrieve. Non-positive
	// selects the engine default.
	TopK int

	// Mode selects the retrieval mode. Empty means auto.
	Mode search.Mode

	// Document scopes retrieval to one document by name.
	Document string

	// MaxTokens overrides the configured answer budget for this
	// question. Non-positive keeps the configured value.
	MaxTokens int
}

// Source identifies one retrieved chunk backing an answer.
type Source struct {
	DocumentID     string  `json:"document_id"`
	ChunkOrdinal   int     `json:"chunk_ordinal"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Response is one answered question. ContextUsed is parallel to
// Sources: entry i is the text of the chunk Sources[i] points at.
type Response struct {
	Question     string   `json:"question"`
	Answer       string   `json:"answer"`
	Sources      []Source `json:"sources"`
	ContextUsed  []string `json:"context_used"`
	SearchMethod string   `json:"search_method"`
	LLMUsed      string   `json:"llm_used"`
	FilteredBy   string   `json:"filtered_by,omitempty"`
}

// Summary describes the indexed corpus.
type Summary struct {
	TotalDocuments           int      `json:"total_documents"`
	TotalChunks              int      `json:"total_chunks"`
	DocumentNames            []string `json:"document_names"`
	AverageChunksPerDocument float64  `json:"average_chunks_per_document"`
}

// Service answers questions: retrieve context, compose a prompt,
// generate, continue a truncated answer.
type Service struct {
	engine    *search.Engine
	generator llm.Generator
	chunks    store.ChunkStore
	policy    CompletionPolicy
	config    Config
}

// Option configures the service.
type Option func(*Service)

// WithCompletionPolicy replaces the default truncation heuristic.
func WithCompletionPolicy(p CompletionPolicy) Option {
	return func(s *Service) {
		if p != nil {
			s.policy = p
		}
	}
}

// NewService creates a question answering service. Returns an error if
// any required dependency is nil.
func NewService(
	engine *search.Engine,
	generator llm.Generator,
	chunks store.ChunkStore,
	config Config,
	opts ...Option,
) (*Service, error) {
	if engine == nil {
		return nil, fmt.Errorf("%w: search engine is required", ErrNilDependency)
	}
	if generator == nil {
		return nil, fmt.Errorf("%w: generator is required", ErrNilDependency)
	}
	if chunks == nil {
		return nil, fmt.Errorf("%w: chunk store is required", ErrNilDependency)
	}

	if config.MaxTokens <= 0 {
		config.MaxTokens = DefaultConfig().MaxTokens
	}
	if config.ContinuationTokens <= 0 {
		config.ContinuationTokens = DefaultConfig().ContinuationTokens
	}
	if config.MaxContinuations < 0 {
		config.MaxContinuations = 0
	}

	s := &Service{
		engine:    engine,
		generator: generator,
		chunks:    chunks,
		policy:    HeuristicCompletion{},
		config:    config,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Ask answers one question. An unreachable embedding backend degrades
// to an error-description answer rather than failing the call; date
// retrieval is unaffected by it. Storage failures propagate.
func (s *Service) Ask(ctx context.Context, question string, opts AskOptions) (*Response, error) {
	question = strings.TrimSpace(question)

	// The date template applies only where date routing can: never for
	// document-scoped or semantic-only questions.
	isDate := opts.Document == "" && opts.Mode != search.ModeSemantic &&
		s.engine.Classifier().IsDateQuery(question)

	retrieval, err := s.engine.Retrieve(ctx, question, search.Options{
		TopK:     opts.TopK,
		Mode:     opts.Mode,
		Document: opts.Document,
	})
	if err != nil {
		if errors.Is(err, search.ErrEmbedUnavailable) {
			slog.Warn("embed_unavailable",
				slog.String("question", question),
				slog.String("error", err.Error()))
			return &Response{
				Question:     question,
				Answer:       fmt.Sprintf("Error searching documents: %v", err),
				Sources:      []Source{},
				ContextUsed:  []string{},
				SearchMethod: string(degradedMethod(opts, isDate)),
				LLMUsed:      s.generator.Name(),
			}, nil
		}
		return nil, err
	}

	if opts.Document != "" && len(retrieval.Results) == 0 {
		return &Response{
			Question:     question,
			Answer:       fmt.Sprintf("No document found with filename: %s", opts.Document),
			Sources:      []Source{},
			ContextUsed:  []string{},
			SearchMethod: string(search.MethodFilenameFilter),
			LLMUsed:      s.generator.Name(),
		}, nil
	}

	sources := make([]Source, len(retrieval.Results))
	contexts := make([]string, len(retrieval.Results))
	for i, result := range retrieval.Results {
		sources[i] = Source{
			DocumentID:     result.Chunk.DocumentID,
			ChunkOrdinal:   result.Chunk.Ordinal,
			RelevanceScore: result.Score,
		}
		contexts[i] = result.Chunk.Content
	}

	contextBlock := ComposeContext(contexts)
	var prompt string
	switch {
	case opts.Document != "":
		prompt = DocumentPrompt(opts.Document, contextBlock, question)
	case isDate:
		prompt = DatePrompt(contextBlock, question)
	default:
		prompt = GenericPrompt(contextBlock, question)
	}

	maxTokens := s.config.MaxTokens
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}

	answer, err := s.generator.Complete(ctx, prompt, maxTokens)
	if err != nil {
		slog.Warn("generation_failed",
			slog.String("generator", s.generator.Name()),
			slog.String("error", err.Error()))
		answer = fmt.Sprintf("Error generating response: %v", err)
	} else {
		answer = s.continueIfTruncated(ctx, answer)
	}

	resp := &Response{
		Question:     question,
		Answer:       answer,
		Sources:      sources,
		ContextUsed:  contexts,
		SearchMethod: string(retrieval.Method),
		LLMUsed:      s.generator.Name(),
	}
	if opts.Document != "" {
		resp.FilteredBy = opts.Document
	}
	return resp, nil
}

// Summary reports the indexed corpus: document names, chunk counts,
// average chunks per document.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	docs, err := s.chunks.Documents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	stats, err := s.chunks.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read store stats: %w", err)
	}

	names := make([]string, len(docs))
	for i, doc := range docs {
		names[i] = doc.Name
	}

	summary := &Summary{
		TotalDocuments: len(docs),
		TotalChunks:    stats.Chunks,
		DocumentNames:  names,
	}
	if len(docs) > 0 {
		summary.AverageChunksPerDocument = float64(stats.Chunks) / float64(len(docs))
	}
	return summary, nil
}

// continueIfTruncated asks the generator to finish an answer the
// completion policy flags as cut off, up to the configured number of
// passes. A failed continuation keeps the answer as generated.
func (s *Service) continueIfTruncated(ctx context.Context, answer string) string {
	for pass := 1; pass <= s.config.MaxContinuations; pass++ {
		if s.policy.IsComplete(answer) {
			return answer
		}
		slog.Debug("answer_truncated",
			slog.Int("pass", pass),
			slog.Int("answer_words", len(strings.Fields(answer))))

		continuation, err := s.generator.Complete(ctx, ContinuationPrompt(answer), s.config.ContinuationTokens)
		if err != nil {
			slog.Warn("continuation_failed", slog.String("error", err.Error()))
			return answer
		}
		answer = answer + " " + continuation
	}
	return answer
}

// degradedMethod names the retrieval strategy that was underway when
// the embedding backend failed. Auto-mode date questions only surface
// an embed failure after a date-index miss, and hybrid mode only
// embeds at its final fallback stage, so both report semantic_fallback.
func degradedMethod(opts AskOptions, isDate bool) search.Method {
	switch {
	case opts.Document != "":
		return search.MethodFilenameFilter
	case opts.Mode == search.ModeSemantic:
		return search.MethodSemantic
	case isDate || opts.Mode == search.ModeHybrid:
		return search.MethodSemanticFallback
	default:
		return search.MethodSemantic
	}
}
