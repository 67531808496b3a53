package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/rigdocs/rigqa/internal/dates"
	rqerrors "github.com/rigdocs/rigqa/internal/errors"
)

// Data directory layout.
const (
	chunkDBFile     = "chunks.db"
	keywordIndexDir = "keywords.bleve"
	lockFile        = "rigqa.lock"
)

// ManagerConfig configures the storage manager.
type ManagerConfig struct {
	// Dimensions is the embedding dimensionality the vector index
	// carries. A mismatch with an existing on-disk index is fatal.
	Dimensions int

	// VectorBackend selects the dense index implementation
	// ("flat" or "hnsw"). An existing index of the other backend wins
	// over this setting until the next reset.
	VectorBackend string

	// Vocabulary and Months configure the keyword index. Empty values
	// take the built-in defaults.
	Vocabulary []string
	Months     dates.MonthTable
}

// Manager owns every store under one data directory: the chunk store,
// the vector index, and the keyword index. A file lock on the directory
// keeps two processes from mutating the same corpus.
type Manager struct {
	dataDir  string
	cfg      ManagerConfig
	backend  string
	fileLock *flock.Flock

	Chunks   ChunkStore
	Vectors  VectorIndex
	Keywords KeywordIndex
}

// ManagerStats merges chunk store counts with vector index state.
type ManagerStats struct {
	Documents  int    `json:"documents"`
	Chunks     int    `json:"chunks"`
	Vectors    int    `json:"vectors"`
	Dimensions int    `json:"dimensions"`
	Backend    string `json:"backend"`
}

// Open acquires the data directory lock and opens all three stores,
// loading an existing vector index when present.
func Open(dataDir string, cfg ManagerConfig) (*Manager, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dataDir, err)
	}

	fileLock := flock.New(filepath.Join(dataDir, lockFile))
	locked, err := fileLock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire data directory lock: %w", err)
	}
	if !locked {
		return nil, rqerrors.New(rqerrors.ErrCodeStoreLocked,
			fmt.Sprintf("data directory %s is in use", dataDir), nil).
			WithSuggestion("another rigqa process holds this data directory; try 'rigqa daemon stop', close it, or point --data-dir elsewhere")
	}

	m := &Manager{dataDir: dataDir, cfg: cfg, fileLock: fileLock}
	if err := m.openStores(); err != nil {
		_ = fileLock.Unlock()
		return nil, err
	}
	return m, nil
}

// openStores opens the chunk store, vector index, and keyword index,
// closing whatever opened on failure.
func (m *Manager) openStores() error {
	backend := m.cfg.VectorBackend
	if backend == "" {
		backend = string(VectorBackendFlat)
	}
	if detected := DetectVectorBackend(m.dataDir); detected != "" && string(detected) != backend {
		slog.Warn("vector_backend_mismatch",
			slog.String("configured", backend),
			slog.String("existing", string(detected)),
			slog.String("action", "using existing index; reset to switch backends"))
		backend = string(detected)
	}
	m.backend = backend

	stored, err := ReadVectorIndexDimensions(m.dataDir, backend)
	if err != nil {
		return rqerrors.New(rqerrors.ErrCodeCorruptIndex,
			"cannot read vector index metadata", err).
			WithSuggestion("remove the data directory and reindex")
	}
	if stored > 0 && m.cfg.Dimensions > 0 && stored != m.cfg.Dimensions {
		return rqerrors.New(rqerrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("existing index has %d dimensions, embedder produces %d", stored, m.cfg.Dimensions),
			ErrDimensionMismatch{Expected: m.cfg.Dimensions, Got: stored}).
			WithSuggestion("reindex with `rigqa index`, or set embeddings.dimensions to match the existing index")
	}

	chunks, err := NewSQLiteStore(filepath.Join(m.dataDir, chunkDBFile))
	if err != nil {
		return fmt.Errorf("failed to open chunk store: %w", err)
	}

	vectors, err := NewVectorIndexWithBackend(backend, VectorConfig{Dimensions: m.cfg.Dimensions})
	if err != nil {
		_ = chunks.Close()
		return fmt.Errorf("failed to create vector index: %w", err)
	}
	vectorPath := GetVectorIndexPath(m.dataDir, backend)
	if fileExists(vectorPath) {
		if err := vectors.Load(vectorPath); err != nil {
			_ = chunks.Close()
			_ = vectors.Close()
			return fmt.Errorf("failed to load vector index: %w", err)
		}
	}

	keywords, err := NewBleveKeywordIndex(filepath.Join(m.dataDir, keywordIndexDir), KeywordConfig{
		Vocabulary: m.cfg.Vocabulary,
		Months:     m.cfg.Months,
	})
	if err != nil {
		_ = chunks.Close()
		_ = vectors.Close()
		return fmt.Errorf("failed to open keyword index: %w", err)
	}

	m.Chunks = chunks
	m.Vectors = vectors
	m.Keywords = keywords
	return nil
}

// DataDir returns the managed data directory.
func (m *Manager) DataDir() string {
	return m.dataDir
}

// Backend returns the active vector backend.
func (m *Manager) Backend() string {
	return m.backend
}

// ChunkDBPath returns the chunk store database file. Telemetry shares
// this database through its own connection.
func (m *Manager) ChunkDBPath() string {
	return filepath.Join(m.dataDir, chunkDBFile)
}

// VectorIndexPath returns where the vector index persists.
func (m *Manager) VectorIndexPath() string {
	return GetVectorIndexPath(m.dataDir, m.backend)
}

// KeywordIndexPath returns the keyword index directory.
func (m *Manager) KeywordIndexPath() string {
	return filepath.Join(m.dataDir, keywordIndexDir)
}

// SaveVectors persists the in-memory vector index to disk.
func (m *Manager) SaveVectors() error {
	if err := m.Vectors.Save(m.VectorIndexPath()); err != nil {
		return rqerrors.New(rqerrors.ErrCodePersistFailed, "failed to save vector index", err)
	}
	return nil
}

// Stats merges chunk store counts with vector index state.
func (m *Manager) Stats(ctx context.Context) (*ManagerStats, error) {
	storeStats, err := m.Chunks.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &ManagerStats{
		Documents:  storeStats.Documents,
		Chunks:     storeStats.Chunks,
		Vectors:    m.Vectors.Count(),
		Dimensions: m.Vectors.Dimensions(),
		Backend:    m.backend,
	}, nil
}

// Reset clears every store and starts fresh with the configured
// backend. Vector files of both backends are removed so stale indices
// cannot shadow the reset.
func (m *Manager) Reset(ctx context.Context) error {
	if err := m.Chunks.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset chunk store: %w", err)
	}

	if err := m.Vectors.Close(); err != nil {
		return fmt.Errorf("failed to close vector index: %w", err)
	}
	for _, name := range []string{"vectors.flat", "vectors.hnsw", "vectors.hnsw.meta"} {
		if err := os.Remove(filepath.Join(m.dataDir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", name, err)
		}
	}

	backend := m.cfg.VectorBackend
	if backend == "" {
		backend = string(VectorBackendFlat)
	}
	m.backend = backend

	vectors, err := NewVectorIndexWithBackend(backend, VectorConfig{Dimensions: m.cfg.Dimensions})
	if err != nil {
		return fmt.Errorf("failed to recreate vector index: %w", err)
	}
	m.Vectors = vectors

	if err := m.Keywords.Close(); err != nil {
		return fmt.Errorf("failed to close keyword index: %w", err)
	}
	keywordPath := filepath.Join(m.dataDir, keywordIndexDir)
	if err := os.RemoveAll(keywordPath); err != nil {
		return fmt.Errorf("failed to remove keyword index: %w", err)
	}
	keywords, err := NewBleveKeywordIndex(keywordPath, KeywordConfig{
		Vocabulary: m.cfg.Vocabulary,
		Months:     m.cfg.Months,
	})
	if err != nil {
		return fmt.Errorf("failed to recreate keyword index: %w", err)
	}
	m.Keywords = keywords

	return nil
}

// Close closes all stores and releases the directory lock. Safe to call
// once per Open.
func (m *Manager) Close() error {
	var errs []error
	if m.Chunks != nil {
		errs = append(errs, m.Chunks.Close())
	}
	if m.Vectors != nil {
		errs = append(errs, m.Vectors.Close())
	}
	if m.Keywords != nil {
		errs = append(errs, m.Keywords.Close())
	}
	if m.fileLock != nil {
		errs = append(errs, m.fileLock.Unlock())
	}
	return errors.Join(errs...)
}
