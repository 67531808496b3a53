package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// StatusInfo contains index health information.
type StatusInfo struct {
	// Index stats
	DataDir        string    `json:"data_dir"`
	TotalDocuments int       `json:"total_documents"`
	TotalChunks    int       `json:"total_chunks"`
	TotalVectors   int       `json:"total_vectors"`
	LastIndexed    time.Time `json:"last_indexed"`

	// Storage sizes (in bytes)
	ChunkDBSize int64 `json:"chunk_db_size"`
	KeywordSize int64 `json:"keyword_size"`
	VectorSize  int64 `json:"vector_size"`
	TotalSize   int64 `json:"total_size"`

	// Component status
	EmbedderType   string `json:"embedder_type"`
	EmbedderStatus string `json:"embedder_status"` // "ready", "offline", "error"
	EmbedderModel  string `json:"embedder_model,omitempty"`
	GeneratorType  string `json:"generator_type,omitempty"`
	WatcherStatus  string `json:"watcher_status"` // "running", "stopped", "n/a"
}

// StatusRenderer displays index status.
type StatusRenderer struct {
	out     io.Writer
	styles  Styles
	noColor bool
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:     out,
		styles:  GetStyles(noColor),
		noColor: noColor,
	}
}

func (r *StatusRenderer) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}

// Render displays status info to terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	r.printf("%s\n\n", r.styles.Header.Render("Index Status: "+info.DataDir))

	r.printf("  Documents:    %d\n", info.TotalDocuments)
	r.printf("  Chunks:       %d\n", info.TotalChunks)
	if info.TotalVectors > 0 {
		r.printf("  Vectors:      %d\n", info.TotalVectors)
	}
	if !info.LastIndexed.IsZero() {
		r.printf("  Last indexed: %s\n", formatTime(info.LastIndexed))
	}
	r.printf("\n")

	r.printf("  Storage:\n")
	r.printf("    Chunks:   %s\n", FormatBytes(info.ChunkDBSize))
	r.printf("    Keywords: %s\n", FormatBytes(info.KeywordSize))
	r.printf("    Vectors:  %s\n", FormatBytes(info.VectorSize))
	r.printf("    Total:    %s\n", FormatBytes(info.TotalSize))
	r.printf("\n")

	r.printf("  Embedder:\n")
	r.printf("    Type:   %s\n", info.EmbedderType)
	r.printf("    Status: %s\n", r.renderStatus(info.EmbedderStatus))
	if info.EmbedderModel != "" {
		r.printf("    Model:  %s\n", info.EmbedderModel)
	}

	if info.GeneratorType != "" {
		r.printf("\n  Generator: %s\n", info.GeneratorType)
	}

	if info.WatcherStatus != "" && info.WatcherStatus != "n/a" {
		r.printf("\n  Watcher: %s\n", r.renderStatus(info.WatcherStatus))
	}

	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

// renderStatus formats a status string with color.
func (r *StatusRenderer) renderStatus(status string) string {
	switch status {
	case "ready", "running":
		return r.styles.Success.Render(status)
	case "offline", "stopped":
		return r.styles.Warning.Render(status)
	case "error":
		return r.styles.Error.Render(status)
	}
	return status
}

// ago renders a count of time units in the "N units ago" form.
func ago(n int, unit string) string {
	if n == 1 {
		return "1 " + unit + " ago"
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// formatTime formats a time for display. Recent times render as a
// relative age, older ones as a date.
func formatTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return ago(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return ago(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return ago(int(diff.Hours()/24), "day")
	}
	return t.Format("2006-01-02 15:04")
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit && exp < 2; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMG"[exp])
}
