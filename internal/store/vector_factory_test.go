package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVectorIndexWithBackend(t *testing.T) {
	tests := []struct {
		name     string
		backend  string
		wantType any
		wantErr  bool
	}{
		{name: "flat", backend: "flat", wantType: &FlatIndex{}},
		{name: "empty defaults to flat", backend: "", wantType: &FlatIndex{}},
		{name: "hnsw", backend: "hnsw", wantType: &HNSWIndex{}},
		{name: "unknown", backend: "faiss", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, err := NewVectorIndexWithBackend(tt.backend, VectorConfig{Dimensions: 4})
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "valid options")
				return
			}
			require.NoError(t, err)
			defer idx.Close()
			assert.IsType(t, tt.wantType, idx)
			assert.Equal(t, 4, idx.Dimensions())
		})
	}
}

func TestGetVectorIndexPath(t *testing.T) {
	assert.Equal(t, filepath.Join("data", "vectors.flat"),
		GetVectorIndexPath("data", "flat"))
	assert.Equal(t, filepath.Join("data", "vectors.hnsw"),
		GetVectorIndexPath("data", "hnsw"))
	assert.Equal(t, filepath.Join("data", "vectors.flat"),
		GetVectorIndexPath("data", ""))
}

func TestDetectVectorBackend(t *testing.T) {
	tmpDir := t.TempDir()

	// No index files yet
	assert.Equal(t, VectorBackend(""), DetectVectorBackend(tmpDir))

	// A saved flat index is detected
	flat := newTestFlatIndex(t, 4)
	require.NoError(t, flat.Add(context.Background(),
		[]string{"a"}, [][]float32{{1, 0, 0, 0}}))
	require.NoError(t, flat.Save(GetVectorIndexPath(tmpDir, "flat")))
	assert.Equal(t, VectorBackendFlat, DetectVectorBackend(tmpDir))

	// A saved graph index in its own directory is detected
	hnswDir := t.TempDir()
	graph := newTestHNSWIndex(t, 4)
	require.NoError(t, graph.Add(context.Background(),
		[]string{"a"}, [][]float32{{1, 0, 0, 0}}))
	require.NoError(t, graph.Save(GetVectorIndexPath(hnswDir, "hnsw")))
	assert.Equal(t, VectorBackendHNSW, DetectVectorBackend(hnswDir))
}

func TestReadVectorIndexDimensions(t *testing.T) {
	tmpDir := t.TempDir()

	// Nothing on disk probes as zero for either backend
	dims, err := ReadVectorIndexDimensions(tmpDir, "flat")
	require.NoError(t, err)
	assert.Equal(t, 0, dims)

	dims, err = ReadVectorIndexDimensions(tmpDir, "hnsw")
	require.NoError(t, err)
	assert.Equal(t, 0, dims)

	flat := newTestFlatIndex(t, 6)
	require.NoError(t, flat.Save(GetVectorIndexPath(tmpDir, "flat")))

	dims, err = ReadVectorIndexDimensions(tmpDir, "flat")
	require.NoError(t, err)
	assert.Equal(t, 6, dims)
}
