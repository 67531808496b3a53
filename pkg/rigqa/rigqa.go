package rigqa

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rigdocs/rigqa/internal/chunk"
	"github.com/rigdocs/rigqa/internal/config"
	"github.com/rigdocs/rigqa/internal/dates"
	"github.com/rigdocs/rigqa/internal/embed"
	"github.com/rigdocs/rigqa/internal/ingest"
	"github.com/rigdocs/rigqa/internal/llm"
	"github.com/rigdocs/rigqa/internal/parse"
	"github.com/rigdocs/rigqa/internal/qa"
	"github.com/rigdocs/rigqa/internal/search"
	"github.com/rigdocs/rigqa/internal/store"
	"github.com/rigdocs/rigqa/internal/ui"
)

// Retrieval modes accepted by WithMode.
const (
	ModeAuto     = "auto"
	ModeSemantic = "semantic"
	ModeHybrid   = "hybrid"
)

// Option configures Open.
type Option func(*settings)

type settings struct {
	offline bool
}

// WithOffline selects the fully local stack: static embeddings and
// extractive answers. No network backends are probed.
func WithOffline() Option {
	return func(s *settings) { s.offline = true }
}

// QueryOption tunes a single Ask or Search call.
type QueryOption func(*queryOptions)

type queryOptions struct {
	topK      int
	mode      string
	document  string
	maxTokens int
}

// WithTopK sets the number of passages to retrieve.
func WithTopK(k int) QueryOption {
	return func(q *queryOptions) { q.topK = k }
}

// WithMode selects the retrieval mode: ModeAuto, ModeSemantic, or
// ModeHybrid. Empty means auto.
func WithMode(mode string) QueryOption {
	return func(q *queryOptions) { q.mode = mode }
}

// WithDocument scopes retrieval to one document by name.
func WithDocument(name string) QueryOption {
	return func(q *queryOptions) { q.document = name }
}

// WithMaxTokens bounds the generated answer. Search ignores it.
func WithMaxTokens(n int) QueryOption {
	return func(q *queryOptions) { q.maxTokens = n }
}

// Source identifies one retrieved passage backing an answer.
type Source struct {
	Document     string  `json:"document"`
	ChunkOrdinal int     `json:"chunk_ordinal"`
	Relevance    float64 `json:"relevance"`
}

// Answer is one answered question with its provenance.
type Answer struct {
	Question string   `json:"question"`
	Text     string   `json:"text"`
	Sources  []Source `json:"sources"`
	Method   string   `json:"method"`
	Model    string   `json:"model"`
}

// Result is one retrieved passage.
type Result struct {
	Document     string  `json:"document"`
	ChunkOrdinal int     `json:"chunk_ordinal"`
	Content      string  `json:"content"`
	Score        float64 `json:"score"`
}

// Summary describes the indexed corpus.
type Summary struct {
	Documents         int      `json:"documents"`
	Chunks            int      `json:"chunks"`
	DocumentNames     []string `json:"document_names"`
	ChunksPerDocument float64  `json:"chunks_per_document"`
}

// Stats reports index storage counts.
type Stats struct {
	Documents  int    `json:"documents"`
	Chunks     int    `json:"chunks"`
	Vectors    int    `json:"vectors"`
	Dimensions int    `json:"dimensions"`
	Backend    string `json:"backend"`
}

// IndexReport summarizes one IndexDir run.
type IndexReport struct {
	Documents int           `json:"documents"`
	Chunks    int           `json:"chunks"`
	Duration  time.Duration `json:"duration"`
	Skipped   []SkippedFile `json:"skipped,omitempty"`
}

// SkippedFile is a file the pipeline could not parse. The run
// continues past it.
type SkippedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Corpus is an opened document index and its query services.
type Corpus struct {
	cfg       *config.Config
	manager   *store.Manager
	embedder  embed.Embedder
	generator llm.Generator
	engine    *search.Engine
	service   *qa.Service
}

// Open opens the index in dataDir, creating the directory on first
// use. A fresh corpus answers nothing until IndexDir runs.
func Open(ctx context.Context, dataDir string, opts ...Option) (*Corpus, error) {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	cfg := config.NewConfig()
	cfg.Storage.DataDir = dataDir

	c := &Corpus{cfg: cfg}
	fail := func(err error) (*Corpus, error) {
		_ = c.Close()
		return nil, err
	}

	manager, err := store.Open(dataDir, store.ManagerConfig{
		Dimensions:    cfg.Embeddings.Dimensions,
		VectorBackend: cfg.Storage.VectorBackend,
		Vocabulary:    cfg.Search.Keywords,
		Months:        dates.MonthTable(cfg.Search.Months),
	})
	if err != nil {
		return nil, err
	}
	c.manager = manager

	embedProvider := cfg.Embeddings.Provider
	llmProvider := cfg.LLM.Provider
	if s.offline {
		embedProvider = string(embed.ProviderStatic)
		llmProvider = string(llm.ProviderExtractive)
	}

	embedder, err := embed.New(ctx, embed.Options{
		Provider:   embedProvider,
		Model:      cfg.Embeddings.Model,
		Host:       cfg.Embeddings.OllamaHost,
		Dimensions: cfg.Embeddings.Dimensions,
		BatchSize:  cfg.Embeddings.BatchSize,
		CacheSize:  cfg.Embeddings.CacheSize,
	})
	if err != nil {
		return fail(err)
	}
	c.embedder = embedder

	generator, err := llm.New(ctx, llm.Options{
		Provider: llmProvider,
		Model:    cfg.LLM.Model,
		Host:     cfg.LLM.OllamaHost,
		Timeout:  time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return fail(err)
	}
	c.generator = generator

	engine, err := search.NewEngine(manager.Chunks, manager.Vectors, manager.Keywords, embedder, search.EngineConfig{
		DefaultTopK: cfg.Search.TopK,
		MaxTopK:     cfg.Search.MaxTopK,
	})
	if err != nil {
		return fail(err)
	}
	c.engine = engine

	service, err := qa.NewService(engine, generator, manager.Chunks, qa.Config{
		MaxTokens:          cfg.LLM.MaxTokens,
		ContinuationTokens: cfg.LLM.ContinuationTokens,
		MaxContinuations:   cfg.LLM.MaxContinuations,
	})
	if err != nil {
		return fail(err)
	}
	c.service = service

	return c, nil
}

// IndexDir parses, chunks, embeds, and indexes every supported
// document under dir. Re-indexing a document replaces its passages.
func (c *Corpus) IndexDir(ctx context.Context, dir string) (*IndexReport, error) {
	renderer := ui.NewRenderer(ui.NewConfig(io.Discard, ui.WithForcePlain(true)))
	if err := renderer.Start(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = renderer.Stop() }()

	expander := dates.NewExpander(dates.MonthTable(c.cfg.Search.Months))
	pipeline, err := ingest.New(ingest.Dependencies{
		Renderer: renderer,
		Parser:   parse.New(),
		Chunker:  chunk.NewReportChunker(c.cfg.Chunking.Size, c.cfg.Chunking.Overlap, expander),
		Embedder: c.embedder,
		Store:    c.manager,
	}, ingest.Options{
		BatchSize: c.cfg.Embeddings.BatchSize,
	})
	if err != nil {
		return nil, err
	}

	report, err := pipeline.IngestDir(ctx, dir)
	if err != nil {
		return nil, err
	}

	out := &IndexReport{
		Documents: report.Documents,
		Chunks:    report.Chunks,
		Duration:  report.Duration,
	}
	for _, fe := range report.Errors {
		out.Skipped = append(out.Skipped, SkippedFile{Path: fe.Path, Reason: fe.Err.Error()})
	}
	return out, nil
}

// Ask answers a question from the indexed documents.
func (c *Corpus) Ask(ctx context.Context, question string, opts ...QueryOption) (*Answer, error) {
	var q queryOptions
	for _, opt := range opts {
		opt(&q)
	}
	mode, err := search.ParseMode(q.mode)
	if err != nil {
		return nil, err
	}

	resp, err := c.service.Ask(ctx, question, qa.AskOptions{
		TopK:      q.topK,
		Mode:      mode,
		Document:  q.document,
		MaxTokens: q.maxTokens,
	})
	if err != nil {
		return nil, err
	}

	out := &Answer{
		Question: resp.Question,
		Text:     resp.Answer,
		Sources:  make([]Source, 0, len(resp.Sources)),
		Method:   resp.SearchMethod,
		Model:    resp.LLMUsed,
	}
	for _, src := range resp.Sources {
		out.Sources = append(out.Sources, Source{
			Document:     src.DocumentID,
			ChunkOrdinal: src.ChunkOrdinal,
			Relevance:    src.RelevanceScore,
		})
	}
	return out, nil
}

// Search retrieves matching passages without generating an answer.
func (c *Corpus) Search(ctx context.Context, query string, opts ...QueryOption) ([]Result, error) {
	var q queryOptions
	for _, opt := range opts {
		opt(&q)
	}
	mode, err := search.ParseMode(q.mode)
	if err != nil {
		return nil, err
	}

	ret, err := c.engine.Retrieve(ctx, query, search.Options{
		TopK:     q.topK,
		Mode:     mode,
		Document: q.document,
	})
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(ret.Results))
	for _, r := range ret.Results {
		if r.Chunk == nil {
			continue
		}
		results = append(results, Result{
			Document:     r.Chunk.DocumentID,
			ChunkOrdinal: r.Chunk.Ordinal,
			Content:      r.Chunk.Content,
			Score:        r.Score,
		})
	}
	return results, nil
}

// Summary describes what the index holds.
func (c *Corpus) Summary(ctx context.Context) (*Summary, error) {
	sum, err := c.service.Summary(ctx)
	if err != nil {
		return nil, err
	}
	return &Summary{
		Documents:         sum.TotalDocuments,
		Chunks:            sum.TotalChunks,
		DocumentNames:     sum.DocumentNames,
		ChunksPerDocument: sum.AverageChunksPerDocument,
	}, nil
}

// Stats reports index storage counts.
func (c *Corpus) Stats(ctx context.Context) (*Stats, error) {
	ms, err := c.manager.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Documents:  ms.Documents,
		Chunks:     ms.Chunks,
		Vectors:    ms.Vectors,
		Dimensions: ms.Dimensions,
		Backend:    ms.Backend,
	}, nil
}

// Close releases the backends and the data directory lock.
func (c *Corpus) Close() error {
	var errs []error
	if c.generator != nil {
		errs = append(errs, c.generator.Close())
		c.generator = nil
	}
	if c.embedder != nil {
		errs = append(errs, c.embedder.Close())
		c.embedder = nil
	}
	if c.manager != nil {
		errs = append(errs, c.manager.Close())
		c.manager = nil
	}
	return errors.Join(errs...)
}
