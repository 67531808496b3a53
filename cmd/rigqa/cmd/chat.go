package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rigdocs/rigqa/internal/config"
	"github.com/rigdocs/rigqa/internal/session"
	"github.com/rigdocs/rigqa/internal/ui"
)

// chatOptions holds CLI flags for chat.
type chatOptions struct {
	resume string
	list   bool
	topK   int
}

func newChatCmd() *cobra.Command {
	var opts chatOptions

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive question answering session",
		Long: `Start an interactive session against the indexed documents.

On a terminal this runs a full-screen TUI with mode and answer-length
toggles. On a pipe it falls back to a line-based REPL with /mode,
/length, /help, and /quit commands.

Transcripts are saved between runs and can be resumed by ID; a unique
ID prefix is enough.`,
		Example: `  rigqa chat
  rigqa chat --list
  rigqa chat --resume 5f2a
  rigqa chat --top-k 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runChat(ctx, cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.resume, "resume", "r", "", "Resume a saved transcript by ID or ID prefix")
	cmd.Flags().BoolVar(&opts.list, "list", false, "List saved transcripts and exit")
	cmd.Flags().IntVarP(&opts.topK, "top-k", "k", 0, "Number of context passages per question (default from config)")

	return cmd
}

func runChat(ctx context.Context, cmd *cobra.Command, opts chatOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sessions, err := newSessionManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to open session storage: %w", err)
	}

	if opts.list {
		return listTranscripts(cmd, sessions)
	}

	var sess *session.Session
	if opts.resume != "" {
		sess, err = sessions.Get(opts.resume)
		if err != nil {
			return err
		}
	}

	services, err := openQueryServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer services.Close()

	// Auto-save off means transcripts live only for the process
	persist := sessions
	if !cfg.Sessions.AutoSave {
		persist = nil
	}

	slog.Info("chat_started",
		slog.Bool("resumed", sess != nil),
		slog.Bool("autosave", cfg.Sessions.AutoSave))

	if out, ok := cmd.OutOrStdout().(*os.File); ok && ui.IsTTY(out) {
		return ui.RunChat(ctx, ui.ChatConfig{
			Asker:    services.qa,
			Session:  sess,
			Sessions: persist,
			Output:   out,
			TopK:     opts.topK,
			NoColor:  ui.DetectNoColor(),
		})
	}

	return ui.RunChatREPL(ctx, ui.REPLConfig{
		Asker:    services.qa,
		Session:  sess,
		Sessions: persist,
		Input:    cmd.InOrStdin(),
		Output:   cmd.OutOrStdout(),
		TopK:     opts.topK,
	})
}

// newSessionManager opens transcript storage under the data directory.
func newSessionManager(cfg *config.Config) (*session.Manager, error) {
	return session.NewManager(session.ManagerConfig{
		StoragePath: cfg.SessionsDir(),
		MaxSessions: cfg.Sessions.MaxSessions,
	})
}

// listTranscripts prints saved transcripts, most recent first.
func listTranscripts(cmd *cobra.Command, sessions *session.Manager) error {
	infos, err := sessions.List()
	if err != nil {
		return fmt.Errorf("failed to list transcripts: %w", err)
	}

	if len(infos) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No saved transcripts.")
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "")
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Start one with: rigqa chat")
		return nil
	}

	// Print table
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTITLE\tTURNS\tUPDATED\tSIZE")
	_, _ = fmt.Fprintln(w, "--\t-----\t-----\t-------\t----")

	for _, info := range infos {
		title := info.Title
		if len(title) > 40 {
			title = title[:37] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			info.ID, title, info.Turns, formatTimeAgo(info.UpdatedAt), ui.FormatBytes(info.Size))
	}
	return w.Flush()
}

// formatTimeAgo formats a time as a human-readable "time ago" string.
func formatTimeAgo(t time.Time) string {
	d := time.Since(t)

	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		mins := int(d.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case d < 24*time.Hour:
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case d < 7*24*time.Hour:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("Jan 2, 2006")
	}
}
