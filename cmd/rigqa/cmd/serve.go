package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/rigdocs/rigqa/internal/async"
	"github.com/rigdocs/rigqa/internal/chunk"
	"github.com/rigdocs/rigqa/internal/dates"
	"github.com/rigdocs/rigqa/internal/ingest"
	"github.com/rigdocs/rigqa/internal/logging"
	"github.com/rigdocs/rigqa/internal/mcp"
	"github.com/rigdocs/rigqa/internal/parse"
)

func newServeCmd() *cobra.Command {
	var (
		transport string
		debug     bool
		docsDir   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the index over the Model Context Protocol",
		Long: `Expose the indexed documents to MCP clients.

Tools: ask, search, index_status. Each indexed document is also
published as a readable resource.

With --docs the server builds the index in the background on first
launch: it starts answering index_status immediately and reports
build progress there, refusing ask and search until the build lands.

The server speaks JSON-RPC over stdio, so it is meant to be launched
by an MCP client, not by hand. All logging goes to a file; stdout
carries protocol frames only.`,
		Example: `  # Typical client configuration
  {"command": "rigqa", "args": ["serve"]}

  # Build the index on first launch
  {"command": "rigqa", "args": ["serve", "--docs", "./reports"]}

  # Verbose protocol logging
  rigqa serve --debug`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, transport, debug, docsDir)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "MCP transport (stdio)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&docsDir, "docs", "", "Document directory to index in the background when the index is empty")

	return cmd
}

func runServe(ctx context.Context, transport string, debug bool, docsDir string) error {
	if transport == "stdio" {
		if err := verifyStdinForMCP(); err != nil {
			return err
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// File-only logging before anything else can write. Stdout belongs
	// to the protocol from here on.
	level := cfg.Server.LogLevel
	if debug {
		level = "debug"
	}
	logCleanup, err := logging.SetupMCPModeWithLevel(level)
	if err != nil {
		// Continue even if logging setup fails
		logCleanup = func() {}
	}

	var docsPath string
	if docsDir != "" {
		docsPath, err = resolveDocsDir(docsDir)
		if err != nil {
			logCleanup()
			return err
		}
	}

	if docsPath == "" && !indexExists(cfg.Storage.DataDir) {
		logCleanup()
		return errNoIndex(cfg.Storage.DataDir)
	}

	services, err := buildQueryServices(ctx, cfg, logCleanup)
	if err != nil {
		return err
	}
	defer services.Close()

	server, err := mcp.NewServer(services.qa, services.engine, services.store, services.embedder, services.generator)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer func() { _ = server.Close() }()

	var ingestor *async.BackgroundIngestor
	if docsPath != "" {
		ingestor, err = maybeStartBackgroundIngest(ctx, services, server, docsPath)
		if err != nil {
			return err
		}
		if ingestor != nil {
			defer ingestor.Stop()
		}
	}

	if err := server.RegisterResources(ctx); err != nil {
		slog.Warn("failed to register document resources", slog.String("error", err.Error()))
	}

	slog.Info("mcp_serve_started", slog.String("transport", transport))
	if err := server.Serve(ctx, transport); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// resolveDocsDir validates the --docs argument.
func resolveDocsDir(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve docs path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("failed to access docs path: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("docs path is not a directory: %s", abs)
	}
	return abs, nil
}

// maybeStartBackgroundIngest indexes docsDir behind the running server
// when the store is empty or a previous build died partway through.
// A populated index is left alone; 'rigqa index' owns rebuilds.
func maybeStartBackgroundIngest(ctx context.Context, services *queryServices, server *mcp.Server, docsDir string) (*async.BackgroundIngestor, error) {
	cfg := services.cfg
	dataDir := cfg.Storage.DataDir

	stats, err := services.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	resume := async.HasIncompleteIngest(dataDir)
	if stats.Chunks > 0 && !resume {
		slog.Info("docs_dir_already_indexed",
			slog.String("docs", docsDir),
			slog.Int("chunks", stats.Chunks))
		return nil, nil
	}
	if resume {
		slog.Warn("previous ingest incomplete, rebuilding",
			slog.String("data_dir", dataDir))
	}

	ingestor := async.NewBackgroundIngestor(async.IngestorConfig{DataDir: dataDir})
	ingestor.Run = func(ctx context.Context, progress *async.IndexProgress) error {
		expander := dates.NewExpander(dates.MonthTable(cfg.Search.Months))
		pipeline, err := ingest.New(ingest.Dependencies{
			Renderer: async.NewProgressRenderer(progress),
			Parser:   parse.New(),
			Chunker:  chunk.NewReportChunker(cfg.Chunking.Size, cfg.Chunking.Overlap, expander),
			Embedder: services.embedder,
			Store:    services.store,
		}, ingest.Options{
			BatchSize: cfg.Embeddings.BatchSize,
		})
		if err != nil {
			return err
		}

		report, err := pipeline.IngestDir(ctx, docsDir)
		if err != nil {
			return err
		}
		slog.Info("background_ingest_complete",
			slog.Int("documents", report.Documents),
			slog.Int("chunks", report.Chunks),
			slog.Duration("duration", report.Duration))
		return nil
	}

	server.SetIndexProgress(ingestor.Progress())
	slog.Info("background_ingest_started", slog.String("docs", docsDir))
	ingestor.Start(ctx)

	// Documents become resources once the build lands.
	go func() {
		if ingestor.Wait() != nil {
			return
		}
		if err := server.RegisterResources(ctx); err != nil {
			slog.Warn("failed to register document resources", slog.String("error", err.Error()))
		}
	}()

	return ingestor, nil
}

// verifyStdinForMCP rejects the stdio transport on a terminal. MCP
// clients speak JSON-RPC over a pipe; a terminal on stdin means the
// command was started by hand.
func verifyStdinForMCP() error {
	fd := os.Stdin.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return fmt.Errorf("stdin is a terminal, not a pipe. 'rigqa serve' is meant to be launched by an MCP client; add it to your client configuration instead of running it interactively")
	}
	return nil
}
