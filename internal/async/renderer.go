package async

import (
	"context"
	"sync"

	"github.com/rigdocs/rigqa/internal/ui"
)

// ProgressRenderer forwards ingest pipeline events into an
// IndexProgress. It satisfies ui.Renderer and renders nothing, so the
// same pipeline that drives a terminal UI can drive status reporting
// when it runs headless behind a server.
type ProgressRenderer struct {
	progress *IndexProgress

	mu    sync.Mutex
	stage IndexingStage
}

// NewProgressRenderer creates a renderer feeding the given tracker.
func NewProgressRenderer(progress *IndexProgress) *ProgressRenderer {
	return &ProgressRenderer{progress: progress}
}

// Start implements ui.Renderer.
func (r *ProgressRenderer) Start(ctx context.Context) error { return nil }

// UpdateProgress translates a pipeline event into tracker updates.
// Parsing and chunking count documents; embedding counts chunks.
func (r *ProgressRenderer) UpdateProgress(ev ui.ProgressEvent) {
	stage, ok := mapStage(ev.Stage)
	if !ok {
		return
	}

	r.mu.Lock()
	if stage != r.stage {
		r.stage = stage
		r.progress.SetStage(stage)
	}
	r.mu.Unlock()

	switch stage {
	case StageParsing, StageChunking:
		if ev.Total > 0 {
			r.progress.SetDocumentsTotal(ev.Total)
		}
		if ev.Current > 0 {
			r.progress.UpdateDocuments(ev.Current)
		}
	case StageEmbedding:
		if ev.Total > 0 {
			r.progress.SetChunksTotal(ev.Total)
		}
		if ev.Current > 0 {
			r.progress.UpdateChunks(ev.Current)
		}
	}
}

// AddError implements ui.Renderer. Per-file warnings stay in the
// pipeline report; a fatal error reaches the tracker through the
// ingest's error return instead.
func (r *ProgressRenderer) AddError(ev ui.ErrorEvent) {}

// Complete marks the tracker ready.
func (r *ProgressRenderer) Complete(stats ui.CompletionStats) {
	r.progress.SetReady()
}

// Stop implements ui.Renderer.
func (r *ProgressRenderer) Stop() error { return nil }

// mapStage converts a ui pipeline stage to its tracker stage. The
// completion stage has no tracker counterpart; SetReady covers it.
func mapStage(s ui.Stage) (IndexingStage, bool) {
	switch s {
	case ui.StageScanning:
		return StageScanning, true
	case ui.StageParsing:
		return StageParsing, true
	case ui.StageChunking:
		return StageChunking, true
	case ui.StageEmbedding:
		return StageEmbedding, true
	case ui.StageIndexing:
		return StageIndexing, true
	default:
		return "", false
	}
}
