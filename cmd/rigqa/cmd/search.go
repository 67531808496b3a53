package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rigdocs/rigqa/internal/config"
	"github.com/rigdocs/rigqa/internal/daemon"
	"github.com/rigdocs/rigqa/internal/output"
	"github.com/rigdocs/rigqa/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	topK     int
	mode     string // "auto", "semantic", "hybrid"
	document string
	asJSON   bool
	local    bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Retrieve passages without generating an answer",
		Long: `Retrieve the passages a question would be answered from, without
running the generator.

Useful for checking what the index holds and how a query routes:
date queries hit the exact date index, everything else goes through
semantic retrieval.`,
		Example: `  rigqa search "mud pump pressure"
  rigqa search "6 September" --mode hybrid
  rigqa search "casing run" --top-k 10
  rigqa search "perforation" --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			query := strings.Join(args, " ")
			return runSearch(ctx, cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.topK, "top-k", "k", 0, "Maximum number of results (default from config)")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "auto", "Retrieval mode: auto, semantic, hybrid")
	cmd.Flags().StringVarP(&opts.document, "document", "d", "", "Restrict retrieval to one document by name")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print results as JSON")
	cmd.Flags().BoolVar(&opts.local, "local", false, "Search in-process (bypass the daemon)")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	mode, err := search.ParseMode(opts.mode)
	if err != nil {
		return err
	}

	slog.Info("search_started", slog.String("query", query), slog.Int("top_k", opts.topK))

	// Route through a running daemon unless --local forces in-process.
	if !opts.local {
		if retrieval, ok := searchViaDaemon(ctx, cfg, query, opts, mode); ok {
			slog.Info("search_complete",
				slog.String("method", string(retrieval.Method)),
				slog.Int("results", len(retrieval.Results)),
				slog.String("via", "daemon"))
			return writeSearchResults(cmd, query, retrieval, opts.asJSON)
		}
	}

	services, err := openQueryServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer services.Close()

	retrieval, err := services.engine.Retrieve(ctx, query, search.Options{
		TopK:     opts.topK,
		Mode:     mode,
		Document: opts.document,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	slog.Info("search_complete",
		slog.String("method", string(retrieval.Method)),
		slog.Int("results", len(retrieval.Results)))

	return writeSearchResults(cmd, query, retrieval, opts.asJSON)
}

// searchViaDaemon runs the query against a daemon serving this data
// directory, rebuilding the retrieval so both paths share formatters.
func searchViaDaemon(ctx context.Context, cfg *config.Config, query string, opts searchOptions, mode search.Mode) (*search.Retrieval, bool) {
	client := daemon.NewClient(daemon.ConfigForDataDir(cfg.Storage.DataDir))
	if !client.IsRunning() {
		return nil, false
	}

	slog.Info("search_using_daemon")
	out, err := client.Search(ctx, daemon.SearchParams{
		Query:    query,
		TopK:     opts.topK,
		Mode:     string(mode),
		Document: opts.document,
	})
	if err != nil {
		slog.Warn("Daemon search failed, falling back to local",
			slog.String("error", err.Error()))
		return nil, false
	}
	return out.Retrieval(), true
}

func writeSearchResults(cmd *cobra.Command, query string, retrieval *search.Retrieval, asJSON bool) error {
	if asJSON {
		return formatResultsJSON(cmd, retrieval)
	}
	formatResultsText(output.NewQuiet(cmd.OutOrStdout(), flagQuiet), query, retrieval)
	return nil
}

// formatResultsText outputs results in human-readable form.
func formatResultsText(out *output.Writer, query string, retrieval *search.Retrieval) {
	if len(retrieval.Results) == 0 {
		out.Statusf("", "No results found for %q", query)
		return
	}

	out.Statusf("🔍", "Found %d results for %q (%s):", len(retrieval.Results), query, retrieval.Method)
	out.Newline()

	for i, r := range retrieval.Results {
		if r.Chunk == nil {
			continue
		}

		out.Printf("%d. %s (chunk %d, score: %.2f)", i+1, r.Chunk.DocumentID, r.Chunk.Ordinal, r.Score)
		for _, line := range getSnippet(r.Chunk.Content, 3) {
			out.Print("   " + line)
		}
		out.Newline()
	}
}

// formatResultsJSON outputs results in JSON form.
func formatResultsJSON(cmd *cobra.Command, retrieval *search.Retrieval) error {
	type jsonResult struct {
		DocumentID  string  `json:"document_id"`
		Ordinal     int     `json:"ordinal"`
		Score       float64 `json:"score"`
		Content     string  `json:"content"`
		DateContext string  `json:"date_context,omitempty"`
	}

	payload := struct {
		Method  string       `json:"method"`
		Results []jsonResult `json:"results"`
	}{Method: string(retrieval.Method), Results: []jsonResult{}}

	for _, r := range retrieval.Results {
		if r.Chunk == nil {
			continue
		}
		payload.Results = append(payload.Results, jsonResult{
			DocumentID:  r.Chunk.DocumentID,
			Ordinal:     r.Chunk.Ordinal,
			Score:       r.Score,
			Content:     r.Chunk.Content,
			DateContext: r.Chunk.DateContext,
		})
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

// getSnippet returns the first n lines of content.
func getSnippet(content string, n int) []string {
	lines := strings.Split(content, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	// Trim trailing empty lines
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
