package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rigdocs/rigqa/internal/embed"
	"github.com/rigdocs/rigqa/internal/store"
	"github.com/rigdocs/rigqa/internal/telemetry"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// ErrEmbedUnavailable wraps embedder failures. Callers degrade the
// answer on this error instead of aborting; storage errors propagate
// unwrapped.
var ErrEmbedUnavailable = errors.New("embedding unavailable")

// Engine routes questions across the dense vector index and the
// keyword/date inverted index. Retrieval is read-only: ingestion writes
// the indices, the engine only queries them.
type Engine struct {
	chunks     store.ChunkStore
	vectors    store.VectorIndex
	keywords   store.KeywordIndex
	embedder   embed.Embedder
	classifier *Classifier
	config     EngineConfig
	metrics    *telemetry.QueryMetrics
}

// EngineOption configures the retrieval engine.
type EngineOption func(*Engine)

// WithClassifier replaces the default date-query classifier.
func WithClassifier(c *Classifier) EngineOption {
	return func(e *Engine) {
		if c != nil {
			e.classifier = c
		}
	}
}

// WithMetrics attaches a query telemetry collector. When set, every
// retrieval records its method, result count, and latency.
func WithMetrics(m *telemetry.QueryMetrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine creates a retrieval engine over the given stores. Returns an
// error if any required dependency is nil.
func NewEngine(
	chunks store.ChunkStore,
	vectors store.VectorIndex,
	keywords store.KeywordIndex,
	embedder embed.Embedder,
	config EngineConfig,
	opts ...EngineOption,
) (*Engine, error) {
	if chunks == nil {
		return nil, fmt.Errorf("%w: chunk store is required", ErrNilDependency)
	}
	if vectors == nil {
		return nil, fmt.Errorf("%w: vector index is required", ErrNilDependency)
	}
	if keywords == nil {
		return nil, fmt.Errorf("%w: keyword index is required", ErrNilDependency)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrNilDependency)
	}

	if config.DefaultTopK <= 0 {
		config.DefaultTopK = DefaultConfig().DefaultTopK
	}
	if config.MaxTopK <= 0 {
		config.MaxTopK = DefaultConfig().MaxTopK
	}

	e := &Engine{
		chunks:     chunks,
		vectors:    vectors,
		keywords:   keywords,
		embedder:   embedder,
		classifier: NewClassifier(nil),
		config:     config,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Classifier returns the engine's date-query classifier.
func (e *Engine) Classifier() *Classifier {
	return e.classifier
}

// Retrieve answers one retrieval request according to the mode:
//
//   - auto: date questions probe the date index first (exact hits, score
//     1.0, method hybrid) and fall back to dense retrieval on a miss
//     (semantic_fallback); other questions go straight to dense
//     retrieval (semantic).
//   - semantic: dense retrieval always.
//   - hybrid: date path, then vocabulary keywords, then dense fallback.
//
// A Document option overrides the mode: dense retrieval constrained to
// that document's chunks (filename_filter); an unknown document yields
// empty results, not an error. Zero hits anywhere is a valid outcome.
func (e *Engine) Retrieve(ctx context.Context, question string, opts Options) (*Retrieval, error) {
	start := time.Now()

	question = strings.TrimSpace(question)
	if question == "" {
		return &Retrieval{Method: MethodSemantic}, nil
	}

	k := e.clampTopK(opts.TopK)

	var (
		retrieval *Retrieval
		err       error
	)
	switch {
	case opts.Document != "":
		retrieval, err = e.retrieveByDocument(ctx, question, opts.Document, k)
	case opts.Mode == ModeSemantic:
		retrieval, err = e.retrieveSemantic(ctx, question, k)
	case opts.Mode == ModeHybrid:
		retrieval, err = e.retrieveHybrid(ctx, question, k)
	default: // ModeAuto
		retrieval, err = e.retrieveAuto(ctx, question, k)
	}
	if err != nil {
		return nil, err
	}

	e.recordMetrics(question, retrieval, time.Since(start))
	return retrieval, nil
}

// retrieveAuto classifies the question and routes it. For a date
// question both arms run concurrently; the dense arm is speculative and
// its result (or failure) only matters when the date index comes up
// empty, so observable behavior matches sequential fallback.
func (e *Engine) retrieveAuto(ctx context.Context, question string, k int) (*Retrieval, error) {
	if !e.classifier.IsDateQuery(question) {
		return e.retrieveSemantic(ctx, question, k)
	}

	var (
		dateResults  []Result
		denseResults []Result
		denseErr     error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		dateResults, err = e.dateResults(gctx, question, k)
		return err
	})
	g.Go(func() error {
		denseResults, denseErr = e.denseResults(gctx, question, k)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(dateResults) > 0 {
		return &Retrieval{Results: dateResults, Method: MethodHybrid}, nil
	}

	slog.Debug("date_index_miss",
		slog.String("question", question),
		slog.String("fallback", string(MethodSemanticFallback)))

	if denseErr != nil {
		return nil, denseErr
	}
	return &Retrieval{Results: denseResults, Method: MethodSemanticFallback}, nil
}

// retrieveSemantic is the dense-only path.
func (e *Engine) retrieveSemantic(ctx context.Context, question string, k int) (*Retrieval, error) {
	results, err := e.denseResults(ctx, question, k)
	if err != nil {
		return nil, err
	}
	return &Retrieval{Results: results, Method: MethodSemantic}, nil
}

// retrieveHybrid prefers exact index hits: the date path first, then the
// vocabulary keyword path, then dense retrieval as the last resort.
func (e *Engine) retrieveHybrid(ctx context.Context, question string, k int) (*Retrieval, error) {
	dateResults, err := e.dateResults(ctx, question, k)
	if err != nil {
		return nil, err
	}
	if len(dateResults) > 0 {
		return &Retrieval{Results: dateResults, Method: MethodHybrid}, nil
	}

	keywordResults, err := e.keywordResults(ctx, question, k)
	if err != nil {
		return nil, err
	}
	if len(keywordResults) > 0 {
		return &Retrieval{Results: keywordResults, Method: MethodHybrid}, nil
	}

	results, err := e.denseResults(ctx, question, k)
	if err != nil {
		return nil, err
	}
	return &Retrieval{Results: results, Method: MethodSemanticFallback}, nil
}

// retrieveByDocument runs dense retrieval over one document's chunks.
// The whole index is scanned and filtered; corpora here are small enough
// that exactness beats a second per-document index.
func (e *Engine) retrieveByDocument(ctx context.Context, question, document string, k int) (*Retrieval, error) {
	docChunks, err := e.chunks.ChunksByDocument(ctx, document)
	if err != nil {
		return nil, fmt.Errorf("failed to load document %s: %w", document, err)
	}
	if len(docChunks) == 0 {
		return &Retrieval{Method: MethodFilenameFilter}, nil
	}

	byID := make(map[string]*store.Chunk, len(docChunks))
	for _, c := range docChunks {
		byID[c.ID] = c
	}

	embedding, err := e.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w: %w", ErrEmbedUnavailable, err)
	}

	hits, err := e.vectors.Search(ctx, embedding, e.vectors.Count())
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	results := make([]Result, 0, k)
	for _, hit := range hits {
		chunk, ok := byID[hit.ID]
		if !ok {
			continue
		}
		results = append(results, Result{Chunk: chunk, Score: hit.Score})
		if len(results) == k {
			break
		}
	}
	return &Retrieval{Results: results, Method: MethodFilenameFilter}, nil
}

// denseResults embeds the question and returns the top-k chunks by
// cosine similarity, ties broken by insertion order.
func (e *Engine) denseResults(ctx context.Context, question string, k int) ([]Result, error) {
	embedding, err := e.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w: %w", ErrEmbedUnavailable, err)
	}

	hits, err := e.vectors.Search(ctx, embedding, k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(hits))
	scores := make(map[string]float64, len(hits))
	for _, hit := range hits {
		// A re-added vector can surface the same ID twice; the first
		// (best-scoring) hit wins.
		if _, ok := scores[hit.ID]; ok {
			continue
		}
		ids = append(ids, hit.ID)
		scores[hit.ID] = hit.Score
	}

	// Stale IDs (re-ingested documents) drop out here.
	chunks, err := e.chunks.GetChunks(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chunks: %w", err)
	}

	results := make([]Result, 0, len(chunks))
	for _, chunk := range chunks {
		results = append(results, Result{Chunk: chunk, Score: scores[chunk.ID]})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.Seq < results[j].Chunk.Seq
	})
	return results, nil
}

// dateResults resolves the question through the date index. Exact hits
// carry a constant score of 1.0 and surface in insertion order. An empty
// slice means the date index had nothing; the caller decides whether
// that triggers fallback.
func (e *Engine) dateResults(ctx context.Context, question string, k int) ([]Result, error) {
	ids, err := e.keywords.SearchByDate(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("date search failed: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	chunks, err := e.chunks.GetChunks(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chunks: %w", err)
	}
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Seq < chunks[j].Seq
	})
	if len(chunks) > k {
		chunks = chunks[:k]
	}

	results := make([]Result, len(chunks))
	for i, chunk := range chunks {
		results[i] = Result{Chunk: chunk, Score: 1.0}
	}
	return results, nil
}

// keywordResults resolves the question through the vocabulary keyword
// index, preserving the index's hit-count ranking.
func (e *Engine) keywordResults(ctx context.Context, question string, k int) ([]Result, error) {
	ids, err := e.keywords.SearchKeywords(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > k {
		ids = ids[:k]
	}

	chunks, err := e.chunks.GetChunks(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chunks: %w", err)
	}

	results := make([]Result, len(chunks))
	for i, chunk := range chunks {
		results[i] = Result{Chunk: chunk, Score: 1.0}
	}
	return results, nil
}

// clampTopK applies the default and maximum to a caller-supplied k.
func (e *Engine) clampTopK(k int) int {
	if k <= 0 {
		return e.config.DefaultTopK
	}
	if k > e.config.MaxTopK {
		return e.config.MaxTopK
	}
	return k
}

// recordMetrics reports one retrieval to the telemetry collector.
func (e *Engine) recordMetrics(question string, retrieval *Retrieval, latency time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.Record(telemetry.QueryEvent{
		Query:       question,
		Method:      telemetry.Method(retrieval.Method),
		ResultCount: len(retrieval.Results),
		Latency:     latency,
		Timestamp:   time.Now(),
	})
}
