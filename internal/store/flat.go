package store

import (
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FlatIndex implements VectorIndex with exact exhaustive cosine search.
// Vectors are stored L2-normalized, so cosine similarity is a plain
// inner product. The default backend: no build step, exact results,
// fast enough for corpora of a few thousand chunks.
type FlatIndex struct {
	mu      sync.RWMutex
	dims    int
	ids     []string
	vectors [][]float32
	closed  bool
}

// flatSnapshot is the gob persistence format. Structure, ID join, and
// dimension serialize as one unit so a partial write can never produce
// a half-consistent index.
type flatSnapshot struct {
	Dimensions int
	IDs        []string
	Vectors    [][]float32
}

// Verify interface implementation
var _ VectorIndex = (*FlatIndex)(nil)

// NewFlatIndex creates an empty flat index for vectors of the given
// dimensionality.
func NewFlatIndex(cfg VectorConfig) (*FlatIndex, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", cfg.Dimensions)
	}
	return &FlatIndex{dims: cfg.Dimensions}, nil
}

// Add appends vectors under their chunk IDs. Append-only: a repeated
// ID is stored again, not updated.
func (f *FlatIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return fmt.Errorf("index is closed")
	}

	for _, v := range vectors {
		if len(v) != f.dims {
			return ErrDimensionMismatch{Expected: f.dims, Got: len(v)}
		}
	}

	for i, id := range ids {
		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalizeVectorInPlace(vec)

		f.ids = append(f.ids, id)
		f.vectors = append(f.vectors, vec)
	}
	return nil
}

// Search returns the k nearest chunks by cosine similarity. Ties keep
// insertion order; k larger than the corpus returns everything.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if len(query) != f.dims {
		return nil, ErrDimensionMismatch{Expected: f.dims, Got: len(query)}
	}
	if k <= 0 || len(f.ids) == 0 {
		return []Hit{}, nil
	}
	if k > len(f.ids) {
		k = len(f.ids)
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeVectorInPlace(normalized)

	scores := make([]float64, len(f.vectors))
	order := make([]int, len(f.vectors))
	for i, vec := range f.vectors {
		scores[i] = dotProduct(normalized, vec)
		order[i] = i
	}

	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	hits := make([]Hit, 0, k)
	for _, idx := range order[:k] {
		hits = append(hits, Hit{ID: f.ids[idx], Score: scores[idx]})
	}
	return hits, nil
}

// Dimensions returns the configured vector dimensionality.
func (f *FlatIndex) Dimensions() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dims
}

// Count returns the number of stored vectors.
func (f *FlatIndex) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return 0
	}
	return len(f.ids)
}

// IDs returns the chunk IDs of all stored vectors in insertion order.
// Repeated Adds of the same ID appear once per insertion.
func (f *FlatIndex) IDs() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil
	}
	ids := make([]string, len(f.ids))
	copy(ids, f.ids)
	return ids
}

// Save persists the index to disk via temp file + rename.
func (f *FlatIndex) Save(path string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return fmt.Errorf("index is closed")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}

	snapshot := flatSnapshot{Dimensions: f.dims, IDs: f.ids, Vectors: f.vectors}
	if err := gob.NewEncoder(file).Encode(snapshot); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to encode index: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close index file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename index file: %w", err)
	}
	return nil
}

// Load restores a saved index, replacing current contents. A stored
// dimension that does not match the configured one is fatal.
func (f *FlatIndex) Load(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return fmt.Errorf("index is closed")
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open index file: %w", err)
	}
	defer file.Close()

	var snapshot flatSnapshot
	if err := gob.NewDecoder(file).Decode(&snapshot); err != nil {
		return fmt.Errorf("failed to decode index: %w", err)
	}
	if len(snapshot.IDs) != len(snapshot.Vectors) {
		return fmt.Errorf("corrupt index: %d ids for %d vectors",
			len(snapshot.IDs), len(snapshot.Vectors))
	}
	if snapshot.Dimensions != f.dims {
		return ErrDimensionMismatch{Expected: f.dims, Got: snapshot.Dimensions}
	}

	f.ids = snapshot.IDs
	f.vectors = snapshot.Vectors
	return nil
}

// Close releases resources.
func (f *FlatIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}

	f.closed = true
	f.ids = nil
	f.vectors = nil
	return nil
}

// ReadFlatIndexDimensions reads the dimensionality of a saved flat
// index. Returns 0 when the file does not exist (fresh start). The
// probe decodes the whole snapshot; flat corpora are small enough that
// a dedicated header is not worth the format complexity.
func ReadFlatIndexDimensions(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to open index file: %w", err)
	}
	defer file.Close()

	var snapshot flatSnapshot
	if err := gob.NewDecoder(file).Decode(&snapshot); err != nil {
		return 0, fmt.Errorf("failed to decode index: %w", err)
	}
	return snapshot.Dimensions, nil
}

// normalizeVectorInPlace normalizes a vector to unit length in place.
// Zero vectors stay zero.
func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	invMagnitude := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= invMagnitude
	}
}

// dotProduct computes the inner product of two equal-length vectors.
// Over unit vectors this is the cosine similarity.
func dotProduct(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
