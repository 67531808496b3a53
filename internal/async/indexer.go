package async

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// markerFile is written to the data directory while an ingest runs and
// removed when it finishes, on success and on error alike. A leftover
// marker means the process died mid-ingest.
const markerFile = ".ingest-incomplete"

// IngestFunc is the ingest to run, reporting through the progress tracker.
type IngestFunc func(ctx context.Context, progress *IndexProgress) error

// IngestorConfig configures the BackgroundIngestor.
type IngestorConfig struct {
	DataDir string
}

// BackgroundIngestor runs one ingest in a goroutine with progress
// tracking, so a server can accept connections while the index builds.
type BackgroundIngestor struct {
	config   IngestorConfig
	progress *IndexProgress

	// Run is the ingest to execute. Injectable for testing.
	Run IngestFunc

	stopCh   chan struct{}
	stopOnce sync.Once
	doneCh   chan struct{}

	mu      sync.Mutex
	started bool
	running bool
	err     error
}

// NewBackgroundIngestor creates a background ingestor.
func NewBackgroundIngestor(cfg IngestorConfig) *BackgroundIngestor {
	return &BackgroundIngestor{
		config:   cfg,
		progress: NewIndexProgress(),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Progress returns the progress tracker for this ingest.
func (b *BackgroundIngestor) Progress() *IndexProgress {
	return b.progress
}

// IsRunning reports whether the ingest goroutine is active.
func (b *BackgroundIngestor) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// Start begins the ingest in a background goroutine and returns
// immediately. Use Wait to block until completion. An ingestor runs
// exactly once; further Start calls are no-ops.
func (b *BackgroundIngestor) Start(ctx context.Context) {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return
	}
	b.started = true
	b.running = true
	b.mu.Unlock()

	go b.run(ctx)
}

func (b *BackgroundIngestor) run(ctx context.Context) {
	defer close(b.doneCh)
	defer func() {
		b.mu.Lock()
		b.running = false
		b.mu.Unlock()
	}()

	// Honor both the parent context and Stop
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-b.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	markerPath := filepath.Join(b.config.DataDir, markerFile)
	if err := os.MkdirAll(b.config.DataDir, 0755); err != nil {
		b.fail(err)
		return
	}
	if err := os.WriteFile(markerPath, []byte(time.Now().Format(time.RFC3339)), 0644); err != nil {
		b.fail(err)
		return
	}
	// The marker only survives a crash
	defer func() { _ = os.Remove(markerPath) }()

	if b.Run != nil {
		if err := b.Run(ctx, b.progress); err != nil {
			b.fail(err)
			return
		}
	}

	b.progress.SetReady()
}

// fail records the error on both the ingestor and its progress tracker.
func (b *BackgroundIngestor) fail(err error) {
	b.progress.SetError(err.Error())
	b.mu.Lock()
	b.err = err
	b.mu.Unlock()
}

// Stop cancels the ingest and waits for the goroutine to finish.
func (b *BackgroundIngestor) Stop() {
	b.mu.Lock()
	running := b.running
	b.mu.Unlock()
	if !running {
		return
	}

	b.stopOnce.Do(func() { close(b.stopCh) })
	<-b.doneCh
}

// Wait blocks until the ingest completes and returns its error, if any.
func (b *BackgroundIngestor) Wait() error {
	<-b.doneCh
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// HasIncompleteIngest reports whether a previous ingest died before
// finishing, leaving its marker in the data directory.
func HasIncompleteIngest(dataDir string) bool {
	_, err := os.Stat(filepath.Join(dataDir, markerFile))
	return err == nil
}
