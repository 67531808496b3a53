package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rigdocs/rigqa/internal/config"
	"github.com/rigdocs/rigqa/internal/embed"
	"github.com/rigdocs/rigqa/internal/store"
	"github.com/rigdocs/rigqa/internal/telemetry"
	"github.com/rigdocs/rigqa/internal/ui"
)

func newStatsCmd() *cobra.Command {
	var (
		asJSON bool
		days   int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index health and query statistics",
		Long: `Display the state of the index and the recorded query telemetry:
document and passage counts, on-disk sizes, backend availability,
retrieval method distribution, top query terms, zero-result queries,
and latency buckets.`,
		Example: `  rigqa stats
  rigqa stats --json
  rigqa stats --days 30`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runStats(ctx, cmd, asJSON, days)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print statistics as JSON")
	cmd.Flags().IntVar(&days, "days", 7, "Days of query history to include")

	return cmd
}

// statsOutput is the JSON payload for stats.
type statsOutput struct {
	Index     ui.StatusInfo            `json:"index"`
	Integrity *store.ConsistencyReport `json:"integrity,omitempty"`
	Queries   *queryStats              `json:"queries,omitempty"`
}

// queryStats aggregates recorded retrieval telemetry.
type queryStats struct {
	MethodCounts        map[string]int64      `json:"method_counts"`
	TopTerms            []telemetry.TermCount `json:"top_terms"`
	ZeroResultQueries   []string              `json:"zero_result_queries"`
	LatencyDistribution map[string]int64      `json:"latency_distribution"`
}

func runStats(ctx context.Context, cmd *cobra.Command, asJSON bool, days int) error {
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

	info, err := collectIndexStatus(ctx, cfg, manager)
	if err != nil {
		return err
	}
	integrity := collectIntegrity(ctx, manager)
	queries := collectQueryStats(manager.ChunkDBPath(), days)

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(statsOutput{Index: info, Integrity: integrity, Queries: queries})
	}

	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), ui.DetectNoColor())
	if err := renderer.Render(info); err != nil {
		return err
	}
	printIntegrity(cmd, integrity)
	printQueryStats(cmd, queries)
	return nil
}

// collectIndexStatus assembles the index half of the stats output.
func collectIndexStatus(ctx context.Context, cfg *config.Config, manager *store.Manager) (ui.StatusInfo, error) {
	stats, err := manager.Stats(ctx)
	if err != nil {
		return ui.StatusInfo{}, fmt.Errorf("failed to read index stats: %w", err)
	}

	info := ui.StatusInfo{
		DataDir:        manager.DataDir(),
		TotalDocuments: stats.Documents,
		TotalChunks:    stats.Chunks,
		TotalVectors:   stats.Vectors,
		ChunkDBSize:    fileSize(manager.ChunkDBPath()),
		KeywordSize:    dirSize(manager.KeywordIndexPath()),
		VectorSize:     fileSize(manager.VectorIndexPath()),
		WatcherStatus:  "n/a",
	}
	info.TotalSize = info.ChunkDBSize + info.KeywordSize + info.VectorSize
	if fi, err := os.Stat(manager.ChunkDBPath()); err == nil {
		info.LastIndexed = fi.ModTime()
	}

	// An unreachable backend is a reportable state here, not an error
	embedder, err := newEmbedder(ctx, cfg, false)
	if err != nil {
		info.EmbedderType = cfg.Embeddings.Provider
		info.EmbedderModel = cfg.Embeddings.Model
		info.EmbedderStatus = "offline"
	} else {
		defer func() { _ = embedder.Close() }()
		ei := embed.GetInfo(ctx, embedder)
		info.EmbedderType = ei.Provider.String()
		info.EmbedderModel = ei.Model
		info.EmbedderStatus = "offline"
		if ei.Available {
			info.EmbedderStatus = "ready"
		}
	}
	info.GeneratorType = cfg.LLM.Provider

	return info, nil
}

// collectIntegrity runs the cross-store consistency check. Returns nil
// when the check fails; stats still renders without it.
func collectIntegrity(ctx context.Context, manager *store.Manager) *store.ConsistencyReport {
	report, err := manager.CheckConsistency(ctx)
	if err != nil {
		slog.Warn("consistency check unavailable", slog.String("error", err.Error()))
		return nil
	}
	return report
}

// printIntegrity renders the consistency section of the stats output.
func printIntegrity(cmd *cobra.Command, report *store.ConsistencyReport) {
	if report == nil {
		return
	}
	w := cmd.OutOrStdout()

	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Integrity:")
	if report.Consistent() {
		fmt.Fprintf(w, "    %d chunk(s) checked, all stores consistent\n", report.ChunksChecked)
		return
	}

	fmt.Fprintf(w, "    %d chunk(s) checked, %d issue(s) found\n",
		report.ChunksChecked, report.IssueCount())
	for _, section := range []struct {
		label string
		ids   []string
	}{
		{"stale vector entries", report.StaleVectors},
		{"duplicate vector entries", report.DuplicateVectors},
		{"missing vector entries", report.MissingVectors},
		{"stale keyword entries", report.StaleKeywords},
		{"missing keyword entries", report.MissingKeywords},
	} {
		if len(section.ids) > 0 {
			fmt.Fprintf(w, "      %s: %d\n", section.label, len(section.ids))
		}
	}
	fmt.Fprintln(w, "    run 'rigqa index --force <path>' to rebuild")
}

// collectQueryStats reads recorded telemetry for the trailing window.
// Returns nil when the telemetry tables cannot be opened.
func collectQueryStats(chunkDBPath string, days int) *queryStats {
	ms, err := telemetry.OpenSQLiteMetricsStore(chunkDBPath)
	if err != nil {
		slog.Warn("query telemetry unavailable", slog.String("error", err.Error()))
		return nil
	}
	defer func() { _ = ms.Close() }()

	to := time.Now().Format("2006-01-02")
	from := time.Now().AddDate(0, 0, -days).Format("2006-01-02")

	qs := &queryStats{
		MethodCounts:        map[string]int64{},
		TopTerms:            []telemetry.TermCount{},
		ZeroResultQueries:   []string{},
		LatencyDistribution: map[string]int64{},
	}
	if counts, err := ms.GetMethodCounts(from, to); err == nil {
		for m, n := range counts {
			qs.MethodCounts[string(m)] = n
		}
	}
	if terms, err := ms.GetTopTerms(10); err == nil {
		qs.TopTerms = terms
	}
	if zero, err := ms.GetZeroResultQueries(10); err == nil {
		qs.ZeroResultQueries = zero
	}
	if lat, err := ms.GetLatencyCounts(from, to); err == nil {
		for b, n := range lat {
			qs.LatencyDistribution[string(b)] = n
		}
	}
	return qs
}

// printQueryStats renders the telemetry half of the stats output.
func printQueryStats(cmd *cobra.Command, qs *queryStats) {
	if qs == nil {
		return
	}
	w := cmd.OutOrStdout()

	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Queries:")

	if len(qs.MethodCounts) > 0 {
		fmt.Fprintln(w, "    Method distribution:")
		for _, m := range []string{"semantic", "hybrid", "semantic_fallback", "filename_filter"} {
			if count, ok := qs.MethodCounts[m]; ok {
				fmt.Fprintf(w, "      %s: %d\n", m, count)
			}
		}
	} else {
		fmt.Fprintln(w, "    Method distribution: (none recorded yet)")
	}

	if len(qs.TopTerms) > 0 {
		fmt.Fprintln(w, "    Top terms:")
		for i, tc := range qs.TopTerms {
			fmt.Fprintf(w, "      %d. %s (%d)\n", i+1, tc.Term, tc.Count)
		}
	}

	if len(qs.ZeroResultQueries) > 0 {
		fmt.Fprintln(w, "    Recent zero-result queries:")
		for _, q := range qs.ZeroResultQueries {
			fmt.Fprintf(w, "      - %q\n", q)
		}
	}

	if len(qs.LatencyDistribution) > 0 {
		fmt.Fprintln(w, "    Latency:")
		buckets := []string{"p10", "p50", "p100", "p500", "p1000"}
		labels := map[string]string{
			"p10":   "<10ms",
			"p50":   "10-50ms",
			"p100":  "50-100ms",
			"p500":  "100-500ms",
			"p1000": ">=500ms",
		}
		for _, b := range buckets {
			if count, ok := qs.LatencyDistribution[b]; ok {
				fmt.Fprintf(w, "      %s: %d\n", labels[b], count)
			}
		}
	}
}

// fileSize returns a file's size, zero when it cannot be read.
func fileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

// dirSize sums the regular files under a directory.
func dirSize(dir string) int64 {
	var total int64
	_ = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if fi, err := d.Info(); err == nil {
			total += fi.Size()
		}
		return nil
	})
	return total
}
