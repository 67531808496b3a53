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
	"github.com/rigdocs/rigqa/internal/qa"
	"github.com/rigdocs/rigqa/internal/search"
	"github.com/rigdocs/rigqa/internal/ui"
)

// askOptions holds CLI flags for ask.
type askOptions struct {
	topK     int
	mode     string // "auto", "semantic", "hybrid"
	length   string // "short", "medium", "long"
	document string
	asJSON   bool
	local    bool
}

func newAskCmd() *cobra.Command {
	var opts askOptions

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the indexed documents",
		Long: `Ask a question and get an answer grounded in the indexed documents.

Date questions ("What was done on Sept 6?") route to the exact date
index; everything else uses semantic retrieval. The answer cites the
passages it was built from.`,
		Example: `  rigqa ask "What was done on Sept 6?"
  rigqa ask "What equipment problems occurred?" --top-k 5
  rigqa ask "What happened on 6-Sept?" --length long
  rigqa ask "Summarize the shift" --document "report_sept_06.pdf"
  rigqa ask "List the NPT events" --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			question := strings.Join(args, " ")
			return runAsk(ctx, cmd, question, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.topK, "top-k", "k", 0, "Number of context passages to retrieve (default from config)")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "auto", "Retrieval mode: auto, semantic, hybrid")
	cmd.Flags().StringVarP(&opts.length, "length", "l", "medium", "Answer length: short, medium, long")
	cmd.Flags().StringVarP(&opts.document, "document", "d", "", "Restrict retrieval to one document by name")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the full response as JSON")
	cmd.Flags().BoolVar(&opts.local, "local", false, "Answer in-process (bypass the daemon)")

	return cmd
}

func runAsk(ctx context.Context, cmd *cobra.Command, question string, opts askOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	mode, err := search.ParseMode(opts.mode)
	if err != nil {
		return err
	}
	maxTokens, err := answerTokens(opts.length)
	if err != nil {
		return err
	}

	slog.Info("ask_started",
		slog.String("question", question),
		slog.Int("top_k", opts.topK),
		slog.String("mode", string(mode)))

	// A running daemon already has the index and models warm; route
	// through it unless --local forces the in-process path.
	if !opts.local {
		if resp, ok := askViaDaemon(ctx, cfg, question, opts, mode, maxTokens); ok {
			slog.Info("ask_complete",
				slog.String("method", resp.SearchMethod),
				slog.Int("sources", len(resp.Sources)),
				slog.String("via", "daemon"))
			return writeAskResponse(cmd, resp, opts.asJSON)
		}
	}

	services, err := openQueryServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer services.Close()

	resp, err := services.qa.Ask(ctx, question, qa.AskOptions{
		TopK:      opts.topK,
		Mode:      mode,
		Document:  opts.document,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}
	slog.Info("ask_complete",
		slog.String("method", resp.SearchMethod),
		slog.Int("sources", len(resp.Sources)))

	return writeAskResponse(cmd, resp, opts.asJSON)
}

// askViaDaemon sends the question to a daemon serving this data
// directory. The bool reports whether the daemon produced a response;
// on a daemon-side failure the caller falls back to the local path.
func askViaDaemon(ctx context.Context, cfg *config.Config, question string, opts askOptions, mode search.Mode, maxTokens int) (*qa.Response, bool) {
	client := daemon.NewClient(daemon.ConfigForDataDir(cfg.Storage.DataDir))
	if !client.IsRunning() {
		return nil, false
	}

	slog.Info("ask_using_daemon")
	resp, err := client.Ask(ctx, daemon.AskParams{
		Question:  question,
		TopK:      opts.topK,
		Mode:      string(mode),
		Document:  opts.document,
		MaxTokens: maxTokens,
	})
	if err != nil {
		slog.Warn("Daemon ask failed, falling back to local",
			slog.String("error", err.Error()))
		return nil, false
	}
	return resp, true
}

func writeAskResponse(cmd *cobra.Command, resp *qa.Response, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	formatAnswer(output.NewQuiet(cmd.OutOrStdout(), flagQuiet), resp)
	return nil
}

// answerTokens maps a --length preset to its token budget.
func answerTokens(length string) (int, error) {
	for _, l := range ui.AnswerLengths {
		if l.Name == length {
			return l.MaxTokens, nil
		}
	}
	return 0, fmt.Errorf("invalid length %q (valid: short, medium, long)", length)
}

// formatAnswer prints the answer, its supporting passages, and how the
// answer was produced. The answer itself survives --quiet.
func formatAnswer(out *output.Writer, resp *qa.Response) {
	out.Print(resp.Answer)
	out.Newline()

	if len(resp.Sources) > 0 {
		out.Status("📚", "Sources:")
		for i, src := range resp.Sources {
			out.Statusf("", "%d. %s (chunk %d, score: %.2f)",
				i+1, src.DocumentID, src.ChunkOrdinal, src.RelevanceScore)
		}
		out.Newline()
	}

	footer := fmt.Sprintf("method: %s · generator: %s", resp.SearchMethod, resp.LLMUsed)
	if resp.FilteredBy != "" {
		footer += " · document: " + resp.FilteredBy
	}
	out.Status("", footer)
}
