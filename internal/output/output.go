// Package output provides consistent CLI status formatting for rigqa commands.
package output

import (
	"fmt"
	"io"
	"strings"
)

// Writer prints the status lines rigqa commands emit around their
// primary output. In quiet mode status chatter is dropped while
// warnings, errors, and Print output still go through, so scripts
// get answers without progress noise.
type Writer struct {
	out   io.Writer
	quiet bool
}

// New creates a Writer that prints everything.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// NewQuiet creates a Writer honoring the quiet flag. With quiet false
// it behaves exactly like New.
func NewQuiet(out io.Writer, quiet bool) *Writer {
	return &Writer{out: out, quiet: quiet}
}

// Print writes primary command output. Never suppressed.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Print(msg string) {
	_, _ = fmt.Fprintln(w.out, msg)
}

// Printf writes formatted primary command output. Never suppressed.
func (w *Writer) Printf(format string, args ...any) {
	w.Print(fmt.Sprintf(format, args...))
}

// Status prints a status message with an icon.
func (w *Writer) Status(icon, msg string) {
	if w.quiet {
		return
	}
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message. Not suppressed in quiet mode.
func (w *Writer) Warning(msg string) {
	_, _ = fmt.Fprintf(w.out, "⚠️  %s\n", msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message. Not suppressed in quiet mode.
func (w *Writer) Error(msg string) {
	_, _ = fmt.Fprintf(w.out, "❌ %s\n", msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Code prints an indented block, used for config snippets and
// suggested commands.
func (w *Writer) Code(content string) {
	if w.quiet {
		return
	}
	_, _ = fmt.Fprintln(w.out)
	for _, line := range strings.Split(content, "\n") {
		_, _ = fmt.Fprintf(w.out, "  %s\n", line)
	}
	_, _ = fmt.Fprintln(w.out)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	if w.quiet {
		return
	}
	_, _ = fmt.Fprintln(w.out)
}
