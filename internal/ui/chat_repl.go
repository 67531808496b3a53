package ui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rigdocs/rigqa/internal/qa"
	"github.com/rigdocs/rigqa/internal/search"
	"github.com/rigdocs/rigqa/internal/session"
)

// REPLConfig configures the plain chat fallback used when stdout is
// not a terminal.
type REPLConfig struct {
	// Asker answers questions. Required.
	Asker Asker

	// Session is the transcript being extended. Nil starts a fresh one.
	Session *session.Session

	// Sessions persists the transcript after every answer. Nil
	// disables persistence.
	Sessions *session.Manager

	// Input supplies questions, one per line.
	Input io.Reader

	// Output receives prompts and answers.
	Output io.Writer

	// TopK caps retrieval per question. Non-positive keeps the engine
	// default.
	TopK int
}

// RunChatREPL runs a line-oriented chat loop until EOF, /quit, or
// context cancellation. Retrieval mode and answer length are adjusted
// with slash commands instead of key bindings.
func RunChatREPL(ctx context.Context, cfg REPLConfig) error {
	if cfg.Asker == nil {
		return errors.New("asker is required")
	}
	if cfg.Session == nil {
		cfg.Session = session.New()
	}

	out := cfg.Output
	mode := search.ModeAuto
	lenIdx := defaultLengthIndex

	fmt.Fprintln(out, "rigqa chat (plain mode). /help lists commands, /quit exits.")
	if n := len(cfg.Session.Turns); n > 0 {
		fmt.Fprintf(out, "Resumed %q (%d turns).\n", cfg.Session.Title, n)
	}

	scanner := bufio.NewScanner(cfg.Input)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			var quit bool
			mode, lenIdx, quit = handleREPLCommand(out, line, mode, lenIdx)
			if quit {
				return nil
			}
			continue
		}

		resp, err := cfg.Asker.Ask(ctx, line, qa.AskOptions{
			TopK:      cfg.TopK,
			Mode:      mode,
			MaxTokens: AnswerLengths[lenIdx].MaxTokens,
		})
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}

		fmt.Fprintln(out)
		fmt.Fprintln(out, resp.Answer)
		if docs := sourceDocuments(resp.Sources); len(docs) > 0 {
			fmt.Fprintf(out, "sources: %s\n", strings.Join(docs, ", "))
		}
		fmt.Fprintln(out)

		if err := persistTurn(cfg.Session, cfg.Sessions, resp); err != nil {
			fmt.Fprintf(out, "warning: session not saved: %v\n", err)
		}
	}

	return scanner.Err()
}

// handleREPLCommand processes one slash command and returns the
// updated settings.
func handleREPLCommand(out io.Writer, line string, mode search.Mode, lenIdx int) (search.Mode, int, bool) {
	fields := strings.Fields(line)
	cmd := fields[0]
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch cmd {
	case "/quit", "/exit":
		return mode, lenIdx, true

	case "/mode":
		if arg == "" {
			fmt.Fprintf(out, "mode: %s (auto, semantic, hybrid)\n", mode)
			return mode, lenIdx, false
		}
		parsed, err := search.ParseMode(arg)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			return mode, lenIdx, false
		}
		fmt.Fprintf(out, "mode: %s\n", parsed)
		return parsed, lenIdx, false

	case "/length":
		if arg == "" {
			fmt.Fprintf(out, "length: %s (short, medium, long)\n", AnswerLengths[lenIdx].Name)
			return mode, lenIdx, false
		}
		for i, l := range AnswerLengths {
			if l.Name == arg {
				fmt.Fprintf(out, "length: %s (%d tokens)\n", l.Name, l.MaxTokens)
				return mode, i, false
			}
		}
		fmt.Fprintf(out, "error: invalid length %q (valid: short, medium, long)\n", arg)
		return mode, lenIdx, false

	case "/help":
		fmt.Fprintln(out, "Commands:")
		fmt.Fprintln(out, "  /mode [auto|semantic|hybrid]   show or set the retrieval mode")
		fmt.Fprintln(out, "  /length [short|medium|long]    show or set the answer length")
		fmt.Fprintln(out, "  /quit                          exit")
		return mode, lenIdx, false

	default:
		fmt.Fprintf(out, "unknown command %q (/help lists commands)\n", cmd)
		return mode, lenIdx, false
	}
}
