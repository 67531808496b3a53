package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// VectorBackend represents the dense index backend type.
type VectorBackend string

const (
	// VectorBackendFlat uses exact exhaustive cosine search (default).
	VectorBackendFlat VectorBackend = "flat"

	// VectorBackendHNSW uses a coder/hnsw graph. Approximate, for
	// corpora too large for exhaustive search.
	VectorBackendHNSW VectorBackend = "hnsw"
)

// NewVectorIndexWithBackend creates a VectorIndex using the specified
// backend.
//
// backend options:
//   - "flat" (default): exact cosine over the full corpus
//   - "hnsw": approximate nearest-neighbor graph
func NewVectorIndexWithBackend(backend string, cfg VectorConfig) (VectorIndex, error) {
	switch backend {
	case string(VectorBackendFlat), "":
		return NewFlatIndex(cfg)

	case string(VectorBackendHNSW):
		return NewHNSWIndex(cfg)

	default:
		return nil, fmt.Errorf("unknown vector backend: %s (valid options: flat, hnsw)", backend)
	}
}

// GetVectorIndexPath returns the full path to the vector index file
// based on the backend type.
func GetVectorIndexPath(dataDir string, backend string) string {
	basePath := filepath.Join(dataDir, "vectors")
	switch backend {
	case string(VectorBackendHNSW):
		return basePath + ".hnsw"
	default:
		return basePath + ".flat"
	}
}

// DetectVectorBackend detects which backend an existing index uses
// based on file existence. Returns an empty string if no index exists.
// Useful for opening a corpus indexed under a different configuration.
func DetectVectorBackend(dataDir string) VectorBackend {
	if fileExists(filepath.Join(dataDir, "vectors.flat")) {
		return VectorBackendFlat
	}
	if fileExists(filepath.Join(dataDir, "vectors.hnsw")) {
		return VectorBackendHNSW
	}
	return ""
}

// ReadVectorIndexDimensions reads the stored dimensionality of an
// existing index for the given backend, or 0 when none exists. Run
// before loading so an embedder dimension change fails fast.
func ReadVectorIndexDimensions(dataDir string, backend string) (int, error) {
	path := GetVectorIndexPath(dataDir, backend)
	switch backend {
	case string(VectorBackendHNSW):
		return ReadHNSWIndexDimensions(path)
	default:
		return ReadFlatIndexDimensions(path)
	}
}

// fileExists checks if a file exists at the given path.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
