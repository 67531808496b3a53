package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rqerrors "github.com/rigdocs/rigqa/internal/errors"
)

func newTestManager(t *testing.T, cfg ManagerConfig) (*Manager, string) {
	t.Helper()
	dataDir := t.TempDir()
	m, err := Open(dataDir, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m, dataDir
}

// ingestReport saves chunks and mirrors them into both indexes the way
// the ingest pipeline does.
func ingestReport(t *testing.T, m *Manager, document string, texts ...string) []*Chunk {
	t.Helper()
	ctx := context.Background()

	chunks := reportChunks(document, texts...)
	require.NoError(t, m.Chunks.SaveChunks(ctx, document, chunks))

	ids := make([]string, len(chunks))
	vectors := make([][]float32, len(chunks))
	for i, chunk := range chunks {
		ids[i] = chunk.ID
		vec := make([]float32, 4)
		vec[i%4] = 1
		vectors[i] = vec
	}
	require.NoError(t, m.Vectors.Add(ctx, ids, vectors))
	require.NoError(t, m.Keywords.Index(ctx, chunks))
	return chunks
}

func TestManager_OpenCreatesLayout(t *testing.T) {
	m, dataDir := newTestManager(t, ManagerConfig{Dimensions: 4})

	assert.Equal(t, dataDir, m.DataDir())
	assert.Equal(t, "flat", m.Backend())
	assert.Equal(t, filepath.Join(dataDir, "chunks.db"), m.ChunkDBPath())
	assert.Equal(t, filepath.Join(dataDir, "vectors.flat"), m.VectorIndexPath())

	// Chunk DB and keyword index exist on disk immediately
	assert.FileExists(t, m.ChunkDBPath())
	assert.DirExists(t, filepath.Join(dataDir, "keywords.bleve"))
}

// TS01: Single-process guard
func TestManager_SecondOpenLocked(t *testing.T) {
	_, dataDir := newTestManager(t, ManagerConfig{Dimensions: 4})

	// A second manager on the same directory is refused
	_, err := Open(dataDir, ManagerConfig{Dimensions: 4})
	require.Error(t, err)
	assert.Equal(t, rqerrors.ErrCodeStoreLocked, rqerrors.GetCode(err))
}

func TestManager_ReleaseLockOnClose(t *testing.T) {
	dataDir := t.TempDir()

	m, err := Open(dataDir, ManagerConfig{Dimensions: 4})
	require.NoError(t, err)
	require.NoError(t, m.Close())

	// After closing, the directory can be opened again
	m2, err := Open(dataDir, ManagerConfig{Dimensions: 4})
	require.NoError(t, err)
	assert.NoError(t, m2.Close())
}

// TS02: Full persistence cycle
func TestManager_SaveAndReload(t *testing.T) {
	dataDir := t.TempDir()
	ctx := context.Background()

	m, err := Open(dataDir, ManagerConfig{Dimensions: 4})
	require.NoError(t, err)

	ingestReport(t, m, "day1.txt", "6-Sept: Circulated WBM.", "7-Sept: Tripped out.")
	require.NoError(t, m.SaveVectors())
	require.NoError(t, m.Close())

	// When: reopening the directory
	reopened, err := Open(dataDir, ManagerConfig{Dimensions: 4})
	require.NoError(t, err)
	defer reopened.Close()

	// Then: all three stores come back populated
	stats, err := reopened.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Documents)
	assert.Equal(t, 2, stats.Chunks)
	assert.Equal(t, 2, stats.Vectors)
	assert.Equal(t, 4, stats.Dimensions)
	assert.Equal(t, "flat", stats.Backend)

	hits, err := reopened.Vectors.Search(ctx, []float32{1, 0, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "day1.txt_0", hits[0].ID)

	ids, err := reopened.Keywords.SearchByDate(ctx, "what happened on Sept 7")
	require.NoError(t, err)
	assert.Equal(t, []string{"day1.txt_1"}, ids)
}

func TestManager_DimensionMismatchOnReopen(t *testing.T) {
	dataDir := t.TempDir()

	m, err := Open(dataDir, ManagerConfig{Dimensions: 4})
	require.NoError(t, err)
	ingestReport(t, m, "day1.txt", "chunk one")
	require.NoError(t, m.SaveVectors())
	require.NoError(t, m.Close())

	// When: reopening with a different embedding width
	_, err = Open(dataDir, ManagerConfig{Dimensions: 8})

	// Then: the open fails fast with the dimension mismatch code
	require.Error(t, err)
	assert.Equal(t, rqerrors.ErrCodeDimensionMismatch, rqerrors.GetCode(err))

	var dimErr ErrDimensionMismatch
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 8, dimErr.Expected)
	assert.Equal(t, 4, dimErr.Got)
}

func TestManager_BackendMismatchUsesExisting(t *testing.T) {
	dataDir := t.TempDir()

	// Given: a corpus indexed with the flat backend
	m, err := Open(dataDir, ManagerConfig{Dimensions: 4, VectorBackend: "flat"})
	require.NoError(t, err)
	ingestReport(t, m, "day1.txt", "chunk one")
	require.NoError(t, m.SaveVectors())
	require.NoError(t, m.Close())

	// When: reopening configured for hnsw
	reopened, err := Open(dataDir, ManagerConfig{Dimensions: 4, VectorBackend: "hnsw"})
	require.NoError(t, err)
	defer reopened.Close()

	// Then: the on-disk backend wins until a reset
	assert.Equal(t, "flat", reopened.Backend())
	assert.Equal(t, 1, reopened.Vectors.Count())
}

func TestManager_UnknownBackend(t *testing.T) {
	_, err := Open(t.TempDir(), ManagerConfig{Dimensions: 4, VectorBackend: "faiss"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "valid options")
}

func TestManager_HNSWBackend(t *testing.T) {
	m, dataDir := newTestManager(t, ManagerConfig{Dimensions: 4, VectorBackend: "hnsw"})

	assert.Equal(t, "hnsw", m.Backend())
	assert.Equal(t, filepath.Join(dataDir, "vectors.hnsw"), m.VectorIndexPath())

	ingestReport(t, m, "day1.txt", "chunk one", "chunk two")
	require.NoError(t, m.SaveVectors())
	assert.FileExists(t, m.VectorIndexPath())
	assert.FileExists(t, m.VectorIndexPath()+".meta")
}

// TS03: Reset clears every store
func TestManager_Reset(t *testing.T) {
	m, dataDir := newTestManager(t, ManagerConfig{Dimensions: 4})
	ctx := context.Background()

	ingestReport(t, m, "day1.txt", "6-Sept: Circulated WBM.", "7-Sept: Tripped out.")
	require.NoError(t, m.SaveVectors())

	// When: resetting
	require.NoError(t, m.Reset(ctx))

	// Then: stats are zeroed
	stats, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Documents)
	assert.Equal(t, 0, stats.Chunks)
	assert.Equal(t, 0, stats.Vectors)

	// And: persisted vector files are gone
	assert.NoFileExists(t, filepath.Join(dataDir, "vectors.flat"))
	assert.NoFileExists(t, filepath.Join(dataDir, "vectors.hnsw"))

	// And: searches come back empty
	ids, err := m.Keywords.SearchByDate(ctx, "what happened on Sept 6")
	require.NoError(t, err)
	assert.Empty(t, ids)

	// And: the stores accept new data afterwards
	ingestReport(t, m, "day2.txt", "8-Sept: Ran casing.")
	stats, err = m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Documents)
}

func TestManager_ResetSwitchesToConfiguredBackend(t *testing.T) {
	dataDir := t.TempDir()
	ctx := context.Background()

	// Given: an existing flat corpus opened under an hnsw config
	m, err := Open(dataDir, ManagerConfig{Dimensions: 4, VectorBackend: "flat"})
	require.NoError(t, err)
	ingestReport(t, m, "day1.txt", "chunk one")
	require.NoError(t, m.SaveVectors())
	require.NoError(t, m.Close())

	reopened, err := Open(dataDir, ManagerConfig{Dimensions: 4, VectorBackend: "hnsw"})
	require.NoError(t, err)
	defer reopened.Close()
	require.Equal(t, "flat", reopened.Backend())

	// When: resetting
	require.NoError(t, reopened.Reset(ctx))

	// Then: the configured backend takes over
	assert.Equal(t, "hnsw", reopened.Backend())
	assert.Equal(t, filepath.Join(dataDir, "vectors.hnsw"), reopened.VectorIndexPath())
}

func TestManager_StaleVectorHitsSkippedAtFetch(t *testing.T) {
	m, _ := newTestManager(t, ManagerConfig{Dimensions: 4})
	ctx := context.Background()

	// Given: a document ingested, then re-ingested smaller
	ingestReport(t, m, "day1.txt", "first version chunk 0", "first version chunk 1")
	chunks := reportChunks("day1.txt", "second version chunk 0")
	require.NoError(t, m.Chunks.SaveChunks(ctx, "day1.txt", chunks))
	require.NoError(t, m.Vectors.Add(ctx,
		[]string{chunks[0].ID}, [][]float32{{0, 0, 1, 0}}))

	// When: a dense hit references the dropped second chunk
	got, err := m.Chunks.GetChunks(ctx, []string{"day1.txt_1", "day1.txt_0"})
	require.NoError(t, err)

	// Then: only the surviving chunk resolves, with the new content
	require.Len(t, got, 1)
	assert.Equal(t, "day1.txt_0", got[0].ID)
	assert.Equal(t, "second version chunk 0", got[0].Content)
}

func TestManager_CorruptVectorIndex(t *testing.T) {
	dataDir := t.TempDir()

	// Given: a vectors.flat file that is not a gob snapshot
	require.NoError(t, os.WriteFile(
		filepath.Join(dataDir, "vectors.flat"), []byte("garbage"), 0644))

	// When: opening the directory
	_, err := Open(dataDir, ManagerConfig{Dimensions: 4})

	// Then: the corruption is reported with its code
	require.Error(t, err)
	assert.Equal(t, rqerrors.ErrCodeCorruptIndex, rqerrors.GetCode(err))
}

func TestManager_CloseIdempotent(t *testing.T) {
	dataDir := t.TempDir()

	m, err := Open(dataDir, ManagerConfig{Dimensions: 4})
	require.NoError(t, err)
	require.NoError(t, m.Close())
	assert.NoError(t, m.Close())
}
