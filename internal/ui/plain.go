package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer outputs plain text progress (for CI/pipes).
type PlainRenderer struct {
	mu      sync.Mutex
	out     io.Writer
	noColor bool
	stage   Stage
	errors  []ErrorEvent
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{
		out:     cfg.Output,
		noColor: cfg.NoColor,
	}
}

// printf writes a formatted line fragment, ignoring write errors. A
// broken pipe here should not abort indexing.
func (r *PlainRenderer) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}

// Start implements Renderer.
func (r *PlainRenderer) Start(ctx context.Context) error {
	return nil
}

// UpdateProgress implements Renderer.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stage = event.Stage

	// One line per event: [STAGE] current/total - message or file
	msg := event.Message
	if msg == "" {
		msg = event.CurrentFile
	}

	switch {
	case event.Total > 0:
		r.printf("[%s] %d/%d - %s\n", event.Stage.Icon(), event.Current, event.Total, msg)
	case msg != "":
		r.printf("[%s] %s\n", event.Stage.Icon(), msg)
	}
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors = append(r.errors, event)

	prefix := "ERROR"
	if event.IsWarn {
		prefix = "WARN"
	}

	if event.File != "" {
		r.printf("%s: %s: %v\n", prefix, event.File, event.Err)
	} else {
		r.printf("%s: %v\n", prefix, event.Err)
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.printf("Complete: %d documents, %d chunks indexed in %s",
		stats.Documents, stats.Chunks, roundTenth(stats.Duration))
	if stats.Errors > 0 || stats.Warnings > 0 {
		r.printf(" (%d errors, %d warnings)", stats.Errors, stats.Warnings)
	}
	r.printf("\n")

	if stats.Stages.Scan > 0 || stats.Stages.Embed > 0 {
		r.printf("\nStage Breakdown:\n")
		r.printf("  Scan:    %s (files discovered)\n", roundTenth(stats.Stages.Scan))
		r.printf("  Parse:   %s (documents read)\n", roundTenth(stats.Stages.Parse))
		r.printf("  Chunk:   %s (passages split)\n", roundTenth(stats.Stages.Chunk))
		if stats.Stages.Embed > 0 && stats.Chunks > 0 {
			perSec := float64(stats.Chunks) / stats.Stages.Embed.Seconds()
			r.printf("  Embed:   %s (%d chunks @ %.1f/sec)\n",
				roundTenth(stats.Stages.Embed), stats.Chunks, perSec)
		}
		r.printf("  Index:   %s (keyword + vector)\n", roundTenth(stats.Stages.Index))
	}

	if stats.Embedder.Backend != "" {
		r.printf("\nBackend: %s (%s, %d dims)\n",
			stats.Embedder.Backend, stats.Embedder.Model, stats.Embedder.Dimensions)
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}

// roundTenth rounds a duration to a tenth of a second for display.
func roundTenth(d time.Duration) time.Duration {
	return d.Round(100 * time.Millisecond)
}
