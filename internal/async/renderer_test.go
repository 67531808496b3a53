package async

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rigdocs/rigqa/internal/ui"
)

func TestProgressRenderer_ImplementsRenderer(t *testing.T) {
	var _ ui.Renderer = NewProgressRenderer(NewIndexProgress())
}

func TestProgressRenderer_StartAndStop(t *testing.T) {
	r := NewProgressRenderer(NewIndexProgress())

	require.NoError(t, r.Start(context.Background()))
	require.NoError(t, r.Stop())
}

func TestProgressRenderer_StageTransitions(t *testing.T) {
	tests := []struct {
		name string
		in   ui.Stage
		want string
	}{
		{"scanning", ui.StageScanning, "scanning"},
		{"parsing", ui.StageParsing, "parsing"},
		{"chunking", ui.StageChunking, "chunking"},
		{"embedding", ui.StageEmbedding, "embedding"},
		{"indexing", ui.StageIndexing, "indexing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			progress := NewIndexProgress()
			r := NewProgressRenderer(progress)

			r.UpdateProgress(ui.ProgressEvent{Stage: tt.in})

			assert.Equal(t, tt.want, progress.Snapshot().Stage)
		})
	}
}

func TestProgressRenderer_CompletionStageIgnored(t *testing.T) {
	progress := NewIndexProgress()
	r := NewProgressRenderer(progress)

	r.UpdateProgress(ui.ProgressEvent{Stage: ui.StageParsing})
	r.UpdateProgress(ui.ProgressEvent{Stage: ui.StageComplete, Message: "done"})

	// The tracker keeps its last real stage; SetReady handles completion.
	assert.Equal(t, string(StageParsing), progress.Snapshot().Stage)
}

func TestProgressRenderer_ParsingCountsDocuments(t *testing.T) {
	progress := NewIndexProgress()
	r := NewProgressRenderer(progress)

	r.UpdateProgress(ui.ProgressEvent{Stage: ui.StageParsing, Current: 1, Total: 8, CurrentFile: "report-06.md"})
	r.UpdateProgress(ui.ProgressEvent{Stage: ui.StageParsing, Current: 5, Total: 8, CurrentFile: "report-10.md"})

	snap := progress.Snapshot()
	assert.Equal(t, 8, snap.DocumentsTotal)
	assert.Equal(t, 5, snap.DocumentsProcessed)
	assert.Equal(t, 0, snap.ChunksTotal)
}

func TestProgressRenderer_ChunkingCountsDocuments(t *testing.T) {
	progress := NewIndexProgress()
	r := NewProgressRenderer(progress)

	r.UpdateProgress(ui.ProgressEvent{Stage: ui.StageChunking, Current: 3, Total: 8})

	snap := progress.Snapshot()
	assert.Equal(t, 8, snap.DocumentsTotal)
	assert.Equal(t, 3, snap.DocumentsProcessed)
}

func TestProgressRenderer_EmbeddingCountsChunks(t *testing.T) {
	progress := NewIndexProgress()
	r := NewProgressRenderer(progress)

	r.UpdateProgress(ui.ProgressEvent{Stage: ui.StageParsing, Current: 8, Total: 8})
	r.UpdateProgress(ui.ProgressEvent{Stage: ui.StageEmbedding, Current: 0, Total: 320})
	r.UpdateProgress(ui.ProgressEvent{Stage: ui.StageEmbedding, Current: 64, Total: 320})

	snap := progress.Snapshot()
	assert.Equal(t, 320, snap.ChunksTotal)
	assert.Equal(t, 64, snap.ChunksIndexed)
	// Document counts are untouched by embedding events.
	assert.Equal(t, 8, snap.DocumentsProcessed)
	assert.InDelta(t, 20.0, snap.ProgressPct, 0.01)
}

func TestProgressRenderer_MessageOnlyEventKeepsCounts(t *testing.T) {
	progress := NewIndexProgress()
	r := NewProgressRenderer(progress)

	r.UpdateProgress(ui.ProgressEvent{Stage: ui.StageParsing, Current: 8, Total: 8})
	r.UpdateProgress(ui.ProgressEvent{Stage: ui.StageIndexing, Message: "Writing search indices..."})

	snap := progress.Snapshot()
	assert.Equal(t, string(StageIndexing), snap.Stage)
	assert.Equal(t, 8, snap.DocumentsTotal)
	assert.Equal(t, 8, snap.DocumentsProcessed)
}

func TestProgressRenderer_AddErrorDoesNotFailTracker(t *testing.T) {
	progress := NewIndexProgress()
	r := NewProgressRenderer(progress)

	r.AddError(ui.ErrorEvent{File: "broken.md", Err: assert.AnError, IsWarn: true})

	assert.True(t, progress.IsIndexing())
	assert.False(t, progress.Failed())
}

func TestProgressRenderer_CompleteMarksReady(t *testing.T) {
	progress := NewIndexProgress()
	r := NewProgressRenderer(progress)

	r.UpdateProgress(ui.ProgressEvent{Stage: ui.StageEmbedding, Current: 320, Total: 320})
	r.Complete(ui.CompletionStats{Documents: 8, Chunks: 320, Duration: 2 * time.Second})

	snap := progress.Snapshot()
	assert.Equal(t, string(StatusReady), snap.Status)
	assert.False(t, progress.IsIndexing())
}

func TestMapStage(t *testing.T) {
	known := map[ui.Stage]IndexingStage{
		ui.StageScanning:  StageScanning,
		ui.StageParsing:   StageParsing,
		ui.StageChunking:  StageChunking,
		ui.StageEmbedding: StageEmbedding,
		ui.StageIndexing:  StageIndexing,
	}
	for in, want := range known {
		got, ok := mapStage(in)
		assert.True(t, ok, "stage %v", in)
		assert.Equal(t, want, got)
	}

	_, ok := mapStage(ui.StageComplete)
	assert.False(t, ok)
}
