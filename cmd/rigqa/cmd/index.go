package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rigdocs/rigqa/internal/chunk"
	"github.com/rigdocs/rigqa/internal/config"
	"github.com/rigdocs/rigqa/internal/dates"
	"github.com/rigdocs/rigqa/internal/ingest"
	"github.com/rigdocs/rigqa/internal/output"
	"github.com/rigdocs/rigqa/internal/parse"
	"github.com/rigdocs/rigqa/internal/preflight"
	"github.com/rigdocs/rigqa/internal/ui"
	"github.com/rigdocs/rigqa/internal/watcher"
)

func newIndexCmd() *cobra.Command {
	var (
		noTUI       bool
		force       bool
		watchChange bool
		backend     string
	)

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index a document directory for question answering",
		Long: `Index a directory of operational documents (.md, .txt, .pdf, .docx).

Files are parsed, split into date-aware passages, embedded, and
written to three stores: the chunk database, the vector index, and
the keyword index that answers date questions.

With --watch the command keeps running and re-ingests files as they
change on disk.`,
		Example: `  # Index the reports directory
  rigqa index ./reports

  # Rebuild from scratch
  rigqa index ./reports --force

  # Keep the index in sync with the directory
  rigqa index ./reports --watch

  # Index without Ollama
  rigqa index ./reports --embedder=static`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Signal handling so Ctrl+C cancels embedding batches cleanly
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			path := "."
			if len(args) > 0 {
				path = args[0]
			}

			// Route the flag through the environment so the embedder
			// factory honors it everywhere
			if backend != "" {
				os.Setenv("RIGQA_EMBEDDER", backend)
			}

			return runIndex(ctx, cmd, path, force, watchChange, noTUI)
		},
	}

	cmd.Flags().BoolVar(&watchChange, "watch", false, "Keep running and re-ingest files as they change")
	cmd.Flags().BoolVar(&force, "force", false, "Clear existing index data and rebuild from scratch")
	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "Disable TUI mode, use plain text output")
	cmd.Flags().StringVar(&backend, "embedder", "", "Embedding backend: auto (default), ollama, or static")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, path string, force, watchChange, noTUI bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cleanup := setupFileLogging(cfg)
	defer cleanup()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("failed to access path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", absPath)
	}

	out := output.NewQuiet(cmd.OutOrStdout(), flagQuiet)
	dataDir := cfg.Storage.DataDir

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	// The first run against a data directory checks the environment once
	if preflight.NeedsCheck(dataDir) {
		checker := preflight.New(preflight.WithOutput(io.Discard))
		results := checker.RunAll(ctx, dataDir)
		if checker.HasCriticalFailures(results) {
			preflight.New(preflight.WithOutput(cmd.ErrOrStderr())).PrintResults(results)
			return fmt.Errorf("system check failed")
		}
		if err := preflight.MarkPassed(dataDir); err != nil {
			slog.Debug("failed to write preflight marker", slog.String("error", err.Error()))
		}
	}

	manager, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = manager.Close() }()

	if force {
		if err := manager.Reset(ctx); err != nil {
			return fmt.Errorf("failed to clear index data: %w", err)
		}
		out.Status("🧹", "Cleared existing index data, starting fresh...")
		slog.Info("index_force_clear", slog.String("data_dir", dataDir))
	}

	// Check context before potentially blocking embedder init
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	embedder, err := newEmbedder(ctx, cfg, false)
	if err != nil {
		return fmt.Errorf("embedder initialization failed: %w", err)
	}
	defer func() { _ = embedder.Close() }()

	// Progress goes through the renderer; --quiet drops it entirely
	var rendererOut io.Writer = cmd.OutOrStdout()
	if flagQuiet {
		rendererOut = io.Discard
	}
	uiCfg := ui.NewConfig(rendererOut, ui.WithForcePlain(noTUI), ui.WithDocsDir(absPath))
	renderer := ui.NewRenderer(uiCfg)
	if err := renderer.Start(ctx); err != nil {
		slog.Warn("failed to start progress renderer", slog.String("error", err.Error()))
	}
	defer func() { _ = renderer.Stop() }()

	expander := dates.NewExpander(dates.MonthTable(cfg.Search.Months))
	ingestor, err := ingest.New(ingest.Dependencies{
		Renderer: renderer,
		Parser:   parse.New(),
		Chunker:  chunk.NewReportChunker(cfg.Chunking.Size, cfg.Chunking.Overlap, expander),
		Embedder: embedder,
		Store:    manager,
	}, ingest.Options{
		BatchSize: cfg.Embeddings.BatchSize,
	})
	if err != nil {
		return err
	}

	report, err := ingestor.IngestDir(ctx, absPath)
	if err != nil {
		return err
	}
	reportSkippedFiles(out, report)

	if !watchChange {
		return nil
	}

	return runWatch(ctx, out, ingestor, absPath, cfg)
}

// reportSkippedFiles lists files the pipeline could not parse.
func reportSkippedFiles(out *output.Writer, report *ingest.Report) {
	for _, fe := range report.Errors {
		out.Warningf("skipped %s: %v", fe.Path, fe.Err)
	}
}

// runWatch re-ingests documents as they change until interrupted.
func runWatch(ctx context.Context, out *output.Writer, ingestor *ingest.Ingestor, root string, cfg *config.Config) error {
	opts := watcher.DefaultOptions()
	if cfg.Watch.Debounce != "" {
		window, err := time.ParseDuration(cfg.Watch.Debounce)
		if err != nil {
			return fmt.Errorf("invalid watch.debounce %q: %w", cfg.Watch.Debounce, err)
		}
		opts.DebounceWindow = window
	}

	w, err := watcher.NewDocumentWatcher(opts)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = w.Stop() }()

	watchDone := make(chan error, 1)
	go func() {
		watchDone <- w.Start(ctx, root)
	}()

	out.Newline()
	out.Statusf("👀", "Watching %s for changes (Ctrl+C to stop)", root)

	events := w.Events()
	errs := w.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-watchDone:
			if err != nil && ctx.Err() == nil {
				return fmt.Errorf("watcher stopped: %w", err)
			}
			return nil

		case werr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			slog.Warn("watch error", slog.String("error", werr.Error()))

		case batch, ok := <-events:
			if !ok {
				return nil
			}
			paths := changedDocuments(root, batch)
			if len(paths) == 0 {
				continue
			}

			report, err := ingestor.IngestFiles(ctx, paths)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				out.Errorf("re-ingest failed: %v", err)
				continue
			}
			reportSkippedFiles(out, report)
			out.Statusf("🔄", "Re-indexed %d document(s) at %s", report.Documents, time.Now().Format("15:04:05"))
		}
	}
}

// changedDocuments resolves a debounced event batch to the supported
// document files that still exist. Deleted files keep their passages
// until the next full index run.
func changedDocuments(root string, batch []watcher.FileEvent) []string {
	var paths []string
	for _, ev := range batch {
		if ev.IsDir || ev.Operation == watcher.OpDelete {
			continue
		}
		abs := filepath.Join(root, ev.Path)
		if !parse.Supported(abs) {
			continue
		}
		if _, err := os.Stat(abs); err != nil {
			continue
		}
		paths = append(paths, abs)
	}
	return paths
}
