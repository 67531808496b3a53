package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rigdocs/rigqa/internal/llm"
	"github.com/rigdocs/rigqa/internal/output"
	"github.com/rigdocs/rigqa/internal/qa"
	"github.com/rigdocs/rigqa/internal/search"
)

func newSummaryCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Describe the indexed corpus",
		Long: `Show what the index holds: document names, chunk counts, and the
average passage count per document.

Runs entirely against local storage; no model backends are contacted.`,
		Example: `  rigqa summary
  rigqa summary --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runSummary(ctx, cmd, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the summary as JSON")

	return cmd
}

func runSummary(ctx context.Context, cmd *cobra.Command, asJSON bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !indexExists(cfg.Storage.DataDir) {
		return errNoIndex(cfg.Storage.DataDir)
	}

	cleanup := setupFileLogging(cfg)
	defer cleanup()

	manager, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = manager.Close() }()

	// Summary reads the chunk store only, so the offline stack is
	// enough and no Ollama round trips happen.
	embedder, err := newEmbedder(ctx, cfg, true)
	if err != nil {
		return fmt.Errorf("embedder initialization failed: %w", err)
	}
	defer func() { _ = embedder.Close() }()

	engine, err := search.NewEngine(manager.Chunks, manager.Vectors, manager.Keywords, embedder, search.EngineConfig{})
	if err != nil {
		return err
	}
	service, err := qa.NewService(engine, llm.NewExtractiveGenerator(), manager.Chunks, qa.Config{})
	if err != nil {
		return err
	}

	summary, err := service.Summary(ctx)
	if err != nil {
		return fmt.Errorf("summary failed: %w", err)
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	out := output.NewQuiet(cmd.OutOrStdout(), flagQuiet)
	out.Printf("%d document(s), %d chunk(s)", summary.TotalDocuments, summary.TotalChunks)
	if summary.TotalDocuments > 0 {
		out.Statusf("", "average %.1f chunks per document", summary.AverageChunksPerDocument)
		out.Newline()
		out.Status("📄", "Documents:")
		for _, name := range summary.DocumentNames {
			out.Status("", "- "+name)
		}
	}
	return nil
}
