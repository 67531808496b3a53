// Package ui provides terminal UI components for ingestion progress and
// index status display.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage represents an ingestion stage.
type Stage int

const (
	// StageScanning is the document discovery stage.
	StageScanning Stage = iota
	// StageParsing is the file parsing stage.
	StageParsing
	// StageChunking is the passage chunking stage.
	StageChunking
	// StageEmbedding is the embedding generation stage.
	StageEmbedding
	// StageIndexing is the index persistence stage.
	StageIndexing
	// StageComplete indicates ingestion is complete.
	StageComplete
)

// stageNames maps each stage to its display name and the short icon
// used in plain text output.
var stageNames = [...]struct{ name, icon string }{
	StageScanning:  {"Scanning", "SCAN"},
	StageParsing:   {"Parsing", "PARSE"},
	StageChunking:  {"Chunking", "CHUNK"},
	StageEmbedding: {"Embedding", "EMBED"},
	StageIndexing:  {"Indexing", "INDEX"},
	StageComplete:  {"Complete", "DONE"},
}

// String returns the human-readable stage name.
func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "Unknown"
	}
	return stageNames[s].name
}

// Icon returns the short stage icon for plain text output.
func (s Stage) Icon() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "???"
	}
	return stageNames[s].icon
}

// ProgressEvent represents a progress update.
type ProgressEvent struct {
	Stage       Stage
	Current     int
	Total       int
	CurrentFile string
	Message     string
}

// ErrorEvent represents an error during processing.
type ErrorEvent struct {
	File   string
	Err    error
	IsWarn bool
}

// StageTimings tracks duration for each ingestion stage.
type StageTimings struct {
	Scan  time.Duration // Document discovery
	Parse time.Duration // File parsing
	Chunk time.Duration // Passage chunking
	Embed time.Duration // Embedding generation
	Index time.Duration // Keyword + vector index persistence
}

// EmbedderInfo contains embedder backend details.
type EmbedderInfo struct {
	Backend    string // "ollama" or "static"
	Model      string // Model name (e.g., "all-minilm")
	Dimensions int    // Embedding dimensions
}

// CompletionStats contains final ingestion statistics.
type CompletionStats struct {
	Documents int
	Chunks    int
	Duration  time.Duration
	Errors    int
	Warnings  int
	Stages    StageTimings // Per-stage timing breakdown
	Embedder  EmbedderInfo // Embedder backend info
}

// Renderer defines the interface for progress display.
type Renderer interface {
	// Start initializes the renderer.
	Start(ctx context.Context) error

	// UpdateProgress updates progress display.
	UpdateProgress(event ProgressEvent)

	// AddError adds an error to display.
	AddError(event ErrorEvent)

	// Complete marks rendering as complete with summary.
	Complete(stats CompletionStats)

	// Stop stops the renderer and cleans up.
	Stop() error
}

// Config configures the UI renderer.
type Config struct {
	Output       io.Writer
	ForcePlain   bool
	NoColor      bool
	SpinnerStyle string
	DocsDir      string // Document directory path to display in header
}

// ConfigOption is a function that modifies Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain text output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) { c.ForcePlain = force }
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) { c.NoColor = noColor }
}

// WithSpinnerStyle sets the spinner style.
func WithSpinnerStyle(style string) ConfigOption {
	return func(c *Config) { c.SpinnerStyle = style }
}

// WithDocsDir sets the document directory path to display in the header.
func WithDocsDir(dir string) ConfigOption {
	return func(c *Config) { c.DocsDir = dir }
}

// NewConfig creates a new Config with the given output and options.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output, SpinnerStyle: "dots"}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer creates an appropriate renderer based on config and environment.
// Interactive terminals get the TUI; pipes, CI environments, and --no-tui
// get plain text.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}

	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// DetectNoColor checks if the NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS", "BUILDKITE"} {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
