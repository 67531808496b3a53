package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rigdocs/rigqa/internal/config"
	"github.com/rigdocs/rigqa/internal/dates"
	"github.com/rigdocs/rigqa/internal/embed"
	"github.com/rigdocs/rigqa/internal/llm"
	"github.com/rigdocs/rigqa/internal/qa"
	"github.com/rigdocs/rigqa/internal/search"
	"github.com/rigdocs/rigqa/internal/store"
)

// ErrNoIndex is returned when the served data directory has no index.
var ErrNoIndex = errors.New("no index found")

// chunkDBFile is the chunk store filename; its presence marks an index.
const chunkDBFile = "chunks.db"

// Daemon owns the warm query stack: store, embedder, generator,
// retrieval engine, and QA service, shared across client requests. The
// stack is opened on the first query, not at startup, so the data
// directory stays unlocked (and reindexable) until someone actually
// asks.
type Daemon struct {
	cfg    Config
	appCfg *config.Config

	server  *Server
	pidFile *PIDFile
	idle    *idleMonitor
	started time.Time

	mu        sync.RWMutex
	manager   *store.Manager
	embedder  embed.Embedder
	generator llm.Generator
	engine    *search.Engine
	qa        *qa.Service

	idleFired atomic.Bool
}

// Option configures the daemon.
type Option func(*Daemon)

// WithEmbedder supplies a pre-built embedder instead of constructing
// one from configuration on first use.
func WithEmbedder(e embed.Embedder) Option {
	return func(d *Daemon) { d.embedder = e }
}

// WithGenerator supplies a pre-built answer generator instead of
// constructing one from configuration on first use.
func WithGenerator(g llm.Generator) Option {
	return func(d *Daemon) { d.generator = g }
}

// WithAppConfig supplies the application configuration used to build
// the query stack (models, retrieval limits, token budgets).
func WithAppConfig(cfg *config.Config) Option {
	return func(d *Daemon) { d.appCfg = cfg }
}

// NewDaemon creates a daemon serving the index in cfg.DataDir.
func NewDaemon(cfg Config, opts ...Option) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	d := &Daemon{cfg: cfg}
	for _, opt := range opts {
		opt(d)
	}

	if d.appCfg == nil {
		appCfg := config.NewConfig()
		appCfg.Storage.DataDir = cfg.DataDir
		d.appCfg = appCfg
	}

	server, err := NewServer(cfg.SocketPath)
	if err != nil {
		return nil, err
	}
	server.SetHandler(d)
	d.server = server
	d.pidFile = NewPIDFile(cfg.PIDPath)

	return d, nil
}

// Start runs the daemon until the context is cancelled or the idle
// timeout fires. Idle shutdown returns nil; cancellation returns the
// context error.
func (d *Daemon) Start(ctx context.Context) error {
	if err := d.cfg.EnsureDir(); err != nil {
		return err
	}

	// A live daemon keeps its PID file; anything else is stale and
	// gets overwritten.
	if d.pidFile.IsRunning() {
		pid, _ := d.pidFile.Read()
		if pid != os.Getpid() {
			return fmt.Errorf("daemon already running (pid %d)", pid)
		}
	}
	if err := d.pidFile.Write(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	d.started = time.Now()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if d.cfg.IdleTimeout > 0 {
		d.idle = newIdleMonitor(d.cfg.IdleTimeout, func() {
			slog.Info("Idle timeout reached, shutting down",
				slog.Duration("idle_timeout", d.cfg.IdleTimeout))
			d.idleFired.Store(true)
			cancel()
		})
		d.idle.Start()
	}

	slog.Info("Daemon started",
		slog.Int("pid", os.Getpid()),
		slog.String("socket", d.cfg.SocketPath),
		slog.String("data_dir", d.cfg.DataDir))

	err := d.server.ListenAndServe(runCtx)

	if d.idle != nil {
		d.idle.Stop()
	}
	d.cleanup()

	if d.idleFired.Load() {
		return nil
	}
	return err
}

// HandleAsk answers one question through the warm QA service.
func (d *Daemon) HandleAsk(ctx context.Context, params AskParams) (*qa.Response, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	mode, err := search.ParseMode(params.Mode)
	if err != nil {
		return nil, err
	}

	svc, _, err := d.services(ctx)
	if err != nil {
		return nil, err
	}
	d.touch()

	return svc.Ask(ctx, params.Question, qa.AskOptions{
		TopK:      params.TopK,
		Mode:      mode,
		Document:  params.Document,
		MaxTokens: params.MaxTokens,
	})
}

// HandleSearch runs one retrieval through the warm engine.
func (d *Daemon) HandleSearch(ctx context.Context, params SearchParams) (*SearchOutput, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	mode, err := search.ParseMode(params.Mode)
	if err != nil {
		return nil, err
	}

	_, engine, err := d.services(ctx)
	if err != nil {
		return nil, err
	}
	d.touch()

	ret, err := engine.Retrieve(ctx, params.Query, search.Options{
		TopK:     params.TopK,
		Mode:     mode,
		Document: params.Document,
	})
	if err != nil {
		return nil, err
	}

	return NewSearchOutput(ret), nil
}

// GetStatus reports liveness and which parts of the stack are loaded.
func (d *Daemon) GetStatus() StatusResult {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := StatusResult{
		Running:         true,
		PID:             os.Getpid(),
		Uptime:          time.Since(d.started).Round(time.Second).String(),
		Embedder:        "unavailable",
		EmbedderStatus:  "unavailable",
		Generator:       "unavailable",
		GeneratorStatus: "unavailable",
	}

	if d.embedder != nil {
		status.Embedder = d.embedder.ModelName()
		status.EmbedderStatus = "ready"
	}
	if d.generator != nil {
		status.Generator = d.generator.Name()
		status.GeneratorStatus = "ready"
	}

	if d.manager != nil {
		status.IndexLoaded = true
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if stats, err := d.manager.Stats(ctx); err == nil {
			status.Documents = stats.Documents
			status.Chunks = stats.Chunks
		}
	}

	return status
}

// services returns the QA service and engine, building them on first
// use.
func (d *Daemon) services(ctx context.Context) (*qa.Service, *search.Engine, error) {
	d.mu.RLock()
	svc, engine := d.qa, d.engine
	d.mu.RUnlock()
	if svc != nil {
		return svc, engine, nil
	}

	if err := d.ensureServices(ctx); err != nil {
		return nil, nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.qa, d.engine, nil
}

// ensureServices opens the store and wires the query stack. Mirrors
// the CLI's service assembly, minus telemetry: the daemon serves many
// queries per open and keeps its own log.
func (d *Daemon) ensureServices(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.qa != nil {
		return nil
	}

	if _, err := os.Stat(filepath.Join(d.cfg.DataDir, chunkDBFile)); err != nil {
		return fmt.Errorf("%w in %s (run 'rigqa index <docs-dir>' first)", ErrNoIndex, d.cfg.DataDir)
	}

	cfg := d.appCfg
	manager, err := store.Open(d.cfg.DataDir, store.ManagerConfig{
		Dimensions:    cfg.Embeddings.Dimensions,
		VectorBackend: cfg.Storage.VectorBackend,
		Vocabulary:    cfg.Search.Keywords,
		Months:        dates.MonthTable(cfg.Search.Months),
	})
	if err != nil {
		return err
	}
	fail := func(err error) error {
		_ = manager.Close()
		return err
	}

	if d.embedder == nil {
		embedder, err := embed.New(ctx, embed.Options{
			Provider:   cfg.Embeddings.Provider,
			Model:      cfg.Embeddings.Model,
			Host:       cfg.Embeddings.OllamaHost,
			Dimensions: cfg.Embeddings.Dimensions,
			BatchSize:  cfg.Embeddings.BatchSize,
			CacheSize:  cfg.Embeddings.CacheSize,
		})
		if err != nil {
			return fail(fmt.Errorf("embedder initialization failed: %w", err))
		}
		d.embedder = embedder
	}

	if d.generator == nil {
		generator, err := llm.New(ctx, llm.Options{
			Provider: cfg.LLM.Provider,
			Model:    cfg.LLM.Model,
			Host:     cfg.LLM.OllamaHost,
			Timeout:  time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return fail(fmt.Errorf("generator initialization failed: %w", err))
		}
		d.generator = generator
	}

	engine, err := search.NewEngine(manager.Chunks, manager.Vectors, manager.Keywords, d.embedder, search.EngineConfig{
		DefaultTopK: cfg.Search.TopK,
		MaxTopK:     cfg.Search.MaxTopK,
	})
	if err != nil {
		return fail(err)
	}

	svc, err := qa.NewService(engine, d.generator, manager.Chunks, qa.Config{
		MaxTokens:          cfg.LLM.MaxTokens,
		ContinuationTokens: cfg.LLM.ContinuationTokens,
		MaxContinuations:   cfg.LLM.MaxContinuations,
	})
	if err != nil {
		return fail(err)
	}

	d.manager = manager
	d.engine = engine
	d.qa = svc

	slog.Info("Query stack loaded",
		slog.String("data_dir", d.cfg.DataDir),
		slog.String("embedder", d.embedder.ModelName()),
		slog.String("generator", d.generator.Name()))

	return nil
}

// touch resets the idle clock.
func (d *Daemon) touch() {
	if d.idle != nil {
		d.idle.Touch()
	}
}

// cleanup releases the query stack and removes the PID file. Safe to
// call more than once.
func (d *Daemon) cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.generator != nil {
		_ = d.generator.Close()
		d.generator = nil
	}
	if d.embedder != nil {
		_ = d.embedder.Close()
		d.embedder = nil
	}
	if d.manager != nil {
		_ = d.manager.Close()
		d.manager = nil
	}
	d.engine = nil
	d.qa = nil

	_ = d.pidFile.Remove()
}
