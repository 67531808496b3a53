// Package async runs document ingestion in the background so serving
// surfaces can keep answering status queries while an index builds.
package async

import (
	"sync"
	"time"
)

// IndexingStatus is the overall state of a background ingest.
type IndexingStatus string

const (
	// StatusIndexing indicates ingestion is in progress.
	StatusIndexing IndexingStatus = "indexing"
	// StatusReady indicates ingestion finished and queries see the full corpus.
	StatusReady IndexingStatus = "ready"
	// StatusError indicates ingestion failed.
	StatusError IndexingStatus = "error"
)

// IndexingStage names the pipeline stage a background ingest is in.
type IndexingStage string

const (
	// StageScanning is document discovery.
	StageScanning IndexingStage = "scanning"
	// StageParsing is file parsing.
	StageParsing IndexingStage = "parsing"
	// StageChunking is passage chunking.
	StageChunking IndexingStage = "chunking"
	// StageEmbedding is embedding generation.
	StageEmbedding IndexingStage = "embedding"
	// StageIndexing is index persistence.
	StageIndexing IndexingStage = "indexing"
)

// IndexProgressSnapshot is an immutable view of ingest progress.
type IndexProgressSnapshot struct {
	Status             string  `json:"status"`
	Stage              string  `json:"stage"`
	DocumentsTotal     int     `json:"documents_total"`
	DocumentsProcessed int     `json:"documents_processed"`
	ChunksTotal        int     `json:"chunks_total"`
	ChunksIndexed      int     `json:"chunks_indexed"`
	ProgressPct        float64 `json:"progress_pct"`
	ElapsedSeconds     int     `json:"elapsed_seconds"`
	ErrorMessage       string  `json:"error_message,omitempty"`
}

// IndexProgress tracks one background ingest for concurrent readers.
// The ingest goroutine writes, status handlers snapshot.
type IndexProgress struct {
	mu sync.RWMutex

	status             IndexingStatus
	stage              IndexingStage
	documentsTotal     int
	documentsProcessed int
	chunksTotal        int
	chunksIndexed      int
	startTime          time.Time
	errorMessage       string
}

// NewIndexProgress creates a progress tracker in the indexing state.
func NewIndexProgress() *IndexProgress {
	return &IndexProgress{
		status:    StatusIndexing,
		stage:     StageScanning,
		startTime: time.Now(),
	}
}

// SetStage moves to a new pipeline stage.
func (p *IndexProgress) SetStage(stage IndexingStage) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stage = stage
}

// SetDocumentsTotal sets how many documents the ingest covers.
func (p *IndexProgress) SetDocumentsTotal(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.documentsTotal = total
}

// UpdateDocuments records how many documents the current stage has handled.
func (p *IndexProgress) UpdateDocuments(processed int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.documentsProcessed = processed
}

// SetChunksTotal sets the total number of chunks to embed.
func (p *IndexProgress) SetChunksTotal(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.chunksTotal = total
}

// UpdateChunks records how many chunks have been embedded and committed.
func (p *IndexProgress) UpdateChunks(indexed int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.chunksIndexed = indexed
}

// SetError marks the ingest as failed.
func (p *IndexProgress) SetError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = StatusError
	p.errorMessage = message
}

// SetReady marks the ingest as complete.
func (p *IndexProgress) SetReady() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = StatusReady
}

// IsIndexing reports whether the ingest is still running.
func (p *IndexProgress) IsIndexing() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.status == StatusIndexing
}

// Failed reports whether the ingest ended in an error.
func (p *IndexProgress) Failed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.status == StatusError
}

// Snapshot returns an immutable copy of the current state. Progress
// percentage follows the active stage: chunk counts during embedding
// (the long stage), document counts otherwise.
func (p *IndexProgress) Snapshot() IndexProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var pct float64
	switch {
	case p.stage == StageEmbedding && p.chunksTotal > 0:
		pct = float64(p.chunksIndexed) / float64(p.chunksTotal) * 100.0
	case p.documentsTotal > 0:
		pct = float64(p.documentsProcessed) / float64(p.documentsTotal) * 100.0
	}

	return IndexProgressSnapshot{
		Status:             string(p.status),
		Stage:              string(p.stage),
		DocumentsTotal:     p.documentsTotal,
		DocumentsProcessed: p.documentsProcessed,
		ChunksTotal:        p.chunksTotal,
		ChunksIndexed:      p.chunksIndexed,
		ProgressPct:        pct,
		ElapsedSeconds:     int(time.Since(p.startTime).Seconds()),
		ErrorMessage:       p.errorMessage,
	}
}
