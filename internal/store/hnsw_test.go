package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHNSWIndex(t *testing.T, dims int) *HNSWIndex {
	t.Helper()
	idx, err := NewHNSWIndex(VectorConfig{Dimensions: dims})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

// Small, well-separated vectors. With EfSearch above the graph size
// the approximate search is exact, so assertions can be strict.
func rigVectors() ([]string, [][]float32) {
	ids := []string{
		"day1.txt_0", "day1.txt_1", "day1.txt_2",
		"day2.txt_0", "day2.txt_1", "day2.txt_2",
	}
	vectors := [][]float32{
		{1, 0, 0, 0, 0, 0, 0, 0},
		{0, 1, 0, 0, 0, 0, 0, 0},
		{0, 0, 1, 0, 0, 0, 0, 0},
		{0, 0, 0, 1, 0, 0, 0, 0},
		{0.9, 0.1, 0, 0, 0, 0, 0, 0},
		{0, 0, 0, 0, 1, 0, 0, 0},
	}
	return ids, vectors
}

func TestHNSWIndex_New(t *testing.T) {
	idx := newTestHNSWIndex(t, 8)
	assert.Equal(t, 8, idx.Dimensions())
	assert.Equal(t, 0, idx.Count())

	_, err := NewHNSWIndex(VectorConfig{})
	assert.Error(t, err)
}

func TestHNSWIndex_AddAndSearch(t *testing.T) {
	idx := newTestHNSWIndex(t, 8)
	ctx := context.Background()

	ids, vectors := rigVectors()
	require.NoError(t, idx.Add(ctx, ids, vectors))
	assert.Equal(t, 6, idx.Count())

	// The identical vector is the top hit with cosine similarity 1
	hits, err := idx.Search(ctx, []float32{1, 0, 0, 0, 0, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "day1.txt_0", hits[0].ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-4)

	// The near-parallel vector comes second
	assert.Equal(t, "day2.txt_1", hits[1].ID)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestHNSWIndex_ScoreMatchesFlat(t *testing.T) {
	ctx := context.Background()
	ids, vectors := rigVectors()
	query := []float32{0.9, 0.1, 0, 0, 0, 0, 0, 0}

	flat := newTestFlatIndex(t, 8)
	require.NoError(t, flat.Add(ctx, ids, vectors))
	flatHits, err := flat.Search(ctx, query, 3)
	require.NoError(t, err)

	graph := newTestHNSWIndex(t, 8)
	require.NoError(t, graph.Add(ctx, ids, vectors))
	graphHits, err := graph.Search(ctx, query, 3)
	require.NoError(t, err)

	// Both backends report plain cosine similarity, so scores agree
	require.Len(t, graphHits, len(flatHits))
	for i := range flatHits {
		assert.Equal(t, flatHits[i].ID, graphHits[i].ID)
		assert.InDelta(t, flatHits[i].Score, graphHits[i].Score, 1e-4)
	}
}

func TestHNSWIndex_KCappedAtCount(t *testing.T) {
	idx := newTestHNSWIndex(t, 8)
	ctx := context.Background()

	ids, vectors := rigVectors()
	require.NoError(t, idx.Add(ctx, ids[:2], vectors[:2]))

	hits, err := idx.Search(ctx, vectors[0], 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestHNSWIndex_SearchEmpty(t *testing.T) {
	idx := newTestHNSWIndex(t, 8)

	hits, err := idx.Search(context.Background(), make([]float32, 8), 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestHNSWIndex_DimensionMismatch(t *testing.T) {
	idx := newTestHNSWIndex(t, 8)
	ctx := context.Background()

	err := idx.Add(ctx, []string{"a"}, [][]float32{{1, 0}})
	require.Error(t, err)
	var dimErr ErrDimensionMismatch
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 8, dimErr.Expected)
	assert.Equal(t, 2, dimErr.Got)

	_, err = idx.Search(ctx, []float32{1, 0}, 1)
	require.ErrorAs(t, err, &dimErr)
}

func TestHNSWIndex_LengthMismatch(t *testing.T) {
	idx := newTestHNSWIndex(t, 8)

	err := idx.Add(context.Background(), []string{"a", "b"},
		[][]float32{{1, 0, 0, 0, 0, 0, 0, 0}})
	assert.Error(t, err)
}

// TS01: Graph and sidecar persistence
func TestHNSWIndex_SaveLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "vectors.hnsw")
	ctx := context.Background()

	idx := newTestHNSWIndex(t, 8)
	ids, vectors := rigVectors()
	require.NoError(t, idx.Add(ctx, ids, vectors))
	require.NoError(t, idx.Save(path))

	// Both the graph file and the ID sidecar exist
	assert.True(t, fileExists(path))
	assert.True(t, fileExists(path+".meta"))

	loaded := newTestHNSWIndex(t, 8)
	require.NoError(t, loaded.Load(path))
	assert.Equal(t, 6, loaded.Count())

	hits, err := loaded.Search(ctx, vectors[3], 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "day2.txt_0", hits[0].ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-4)
}

func TestHNSWIndex_LoadDimensionMismatch(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "vectors.hnsw")
	ctx := context.Background()

	idx := newTestHNSWIndex(t, 8)
	ids, vectors := rigVectors()
	require.NoError(t, idx.Add(ctx, ids, vectors))
	require.NoError(t, idx.Save(path))

	// The sidecar carries the width, so the mismatch is caught before
	// the graph file is touched.
	other := newTestHNSWIndex(t, 4)
	err := other.Load(path)
	require.Error(t, err)

	var dimErr ErrDimensionMismatch
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 4, dimErr.Expected)
	assert.Equal(t, 8, dimErr.Got)
}

func TestReadHNSWIndexDimensions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "vectors.hnsw")

	// Missing sidecar probes as zero without error
	dims, err := ReadHNSWIndexDimensions(path)
	require.NoError(t, err)
	assert.Equal(t, 0, dims)

	idx := newTestHNSWIndex(t, 8)
	require.NoError(t, idx.Add(context.Background(),
		[]string{"a"}, [][]float32{{1, 0, 0, 0, 0, 0, 0, 0}}))
	require.NoError(t, idx.Save(path))

	dims, err = ReadHNSWIndexDimensions(path)
	require.NoError(t, err)
	assert.Equal(t, 8, dims)
}

func TestHNSWIndex_Closed(t *testing.T) {
	idx := newTestHNSWIndex(t, 8)
	require.NoError(t, idx.Close())

	err := idx.Add(context.Background(), []string{"a"},
		[][]float32{{1, 0, 0, 0, 0, 0, 0, 0}})
	assert.Error(t, err)

	_, err = idx.Search(context.Background(), make([]float32, 8), 1)
	assert.Error(t, err)

	assert.NoError(t, idx.Close())
}
