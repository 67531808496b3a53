package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/rigdocs/rigqa/internal/config"
	"github.com/rigdocs/rigqa/internal/dates"
	"github.com/rigdocs/rigqa/internal/embed"
	"github.com/rigdocs/rigqa/internal/llm"
	"github.com/rigdocs/rigqa/internal/qa"
	"github.com/rigdocs/rigqa/internal/search"
	"github.com/rigdocs/rigqa/internal/store"
	"github.com/rigdocs/rigqa/internal/telemetry"
)

// chunkDBFile mirrors the chunk store filename under the data
// directory. Its presence is how commands tell an index exists.
const chunkDBFile = "chunks.db"

// indexExists reports whether the data directory holds an index.
func indexExists(dataDir string) bool {
	return fileExists(filepath.Join(dataDir, chunkDBFile))
}

// errNoIndex tells the user to index before querying.
func errNoIndex(dataDir string) error {
	return fmt.Errorf("no index found in %s. Run 'rigqa index <docs-dir>' first", dataDir)
}

// openStore opens the storage manager for the configured data directory.
func openStore(cfg *config.Config) (*store.Manager, error) {
	return store.Open(cfg.Storage.DataDir, store.ManagerConfig{
		Dimensions:    cfg.Embeddings.Dimensions,
		VectorBackend: cfg.Storage.VectorBackend,
		Vocabulary:    cfg.Search.Keywords,
		Months:        dates.MonthTable(cfg.Search.Months),
	})
}

// newEmbedder builds the configured embedder. offline forces static
// embeddings regardless of configuration.
func newEmbedder(ctx context.Context, cfg *config.Config, offline bool) (embed.Embedder, error) {
	provider := cfg.Embeddings.Provider
	if offline {
		provider = string(embed.ProviderStatic)
	}
	return embed.New(ctx, embed.Options{
		Provider:   provider,
		Model:      cfg.Embeddings.Model,
		Host:       cfg.Embeddings.OllamaHost,
		Dimensions: cfg.Embeddings.Dimensions,
		BatchSize:  cfg.Embeddings.BatchSize,
		CacheSize:  cfg.Embeddings.CacheSize,
	})
}

// newGenerator builds the configured answer generator.
func newGenerator(ctx context.Context, cfg *config.Config) (llm.Generator, error) {
	return llm.New(ctx, llm.Options{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		Host:     cfg.LLM.OllamaHost,
		Timeout:  time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	})
}

// queryServices is the read-path stack shared by ask, search, chat,
// summary, and serve.
type queryServices struct {
	cfg          *config.Config
	store        *store.Manager
	embedder     embed.Embedder
	generator    llm.Generator
	engine       *search.Engine
	qa           *qa.Service
	metrics      *telemetry.QueryMetrics
	metricsStore *telemetry.SQLiteMetricsStore
	logCleanup   func()
}

// openQueryServices assembles the read-path stack against an existing
// index with file logging installed. The caller owns the result and
// must Close it.
func openQueryServices(ctx context.Context, cfg *config.Config) (*queryServices, error) {
	if !indexExists(cfg.Storage.DataDir) {
		return nil, errNoIndex(cfg.Storage.DataDir)
	}
	return buildQueryServices(ctx, cfg, setupFileLogging(cfg))
}

// buildQueryServices wires the stores, model backends, retrieval
// engine, and answer service. logCleanup runs last on Close; callers
// that installed their own logging pass the matching cleanup.
func buildQueryServices(ctx context.Context, cfg *config.Config, logCleanup func()) (*queryServices, error) {
	s := &queryServices{cfg: cfg, logCleanup: logCleanup}
	fail := func(err error) (*queryServices, error) {
		s.Close()
		return nil, err
	}

	manager, err := openStore(cfg)
	if err != nil {
		return fail(err)
	}
	s.store = manager

	embedder, err := newEmbedder(ctx, cfg, false)
	if err != nil {
		return fail(fmt.Errorf("embedder initialization failed: %w", err))
	}
	s.embedder = embedder

	generator, err := newGenerator(ctx, cfg)
	if err != nil {
		return fail(fmt.Errorf("generator initialization failed: %w", err))
	}
	s.generator = generator

	// Telemetry shares the chunk database over its own connection.
	// Losing it costs statistics, not answers.
	if ms, err := telemetry.OpenSQLiteMetricsStore(manager.ChunkDBPath()); err == nil {
		s.metricsStore = ms
		s.metrics = telemetry.NewQueryMetrics(ms)
	} else {
		slog.Warn("query telemetry unavailable", slog.String("error", err.Error()))
	}

	engineCfg := search.EngineConfig{
		DefaultTopK: cfg.Search.TopK,
		MaxTopK:     cfg.Search.MaxTopK,
	}
	var engineOpts []search.EngineOption
	if s.metrics != nil {
		engineOpts = append(engineOpts, search.WithMetrics(s.metrics))
	}
	engine, err := search.NewEngine(manager.Chunks, manager.Vectors, manager.Keywords, embedder, engineCfg, engineOpts...)
	if err != nil {
		return fail(err)
	}
	s.engine = engine

	service, err := qa.NewService(engine, generator, manager.Chunks, qa.Config{
		MaxTokens:          cfg.LLM.MaxTokens,
		ContinuationTokens: cfg.LLM.ContinuationTokens,
		MaxContinuations:   cfg.LLM.MaxContinuations,
	})
	if err != nil {
		return fail(err)
	}
	s.qa = service

	return s, nil
}

// Close releases every component in reverse assembly order. Errors are
// joined; a failed metrics flush does not block releasing the store lock.
func (s *queryServices) Close() {
	var errs []error
	if s.metrics != nil {
		errs = append(errs, s.metrics.Close())
	}
	if s.metricsStore != nil {
		errs = append(errs, s.metricsStore.Close())
	}
	if s.generator != nil {
		errs = append(errs, s.generator.Close())
	}
	if s.embedder != nil {
		errs = append(errs, s.embedder.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if err := errors.Join(errs...); err != nil {
		slog.Warn("service shutdown incomplete", slog.String("error", err.Error()))
	}
	if s.logCleanup != nil {
		s.logCleanup()
	}
}
