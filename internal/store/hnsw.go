package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// Default HNSW graph parameters (coder/hnsw recommendations).
const (
	DefaultHNSWM        = 16
	DefaultHNSWEfSearch = 20
)

// HNSWIndex implements VectorIndex on a coder/hnsw graph with cosine
// distance. Approximate; the flat backend stays the default and this
// one serves corpora too large for exhaustive search.
//
// Chunk IDs map to graph keys by insertion position: key i holds
// ids[i]. The index is append-only, so the mapping never has holes and
// needs no reverse map.
type HNSWIndex struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	dims   int
	ids    []string
	closed bool
}

// hnswSidecar persists the ID join and dimension next to the graph
// file. The graph format itself carries neither.
type hnswSidecar struct {
	Dimensions int
	IDs        []string
}

// Verify interface implementation
var _ VectorIndex = (*HNSWIndex)(nil)

// NewHNSWIndex creates an empty HNSW index for vectors of the given
// dimensionality.
func NewHNSWIndex(cfg VectorConfig) (*HNSWIndex, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.M == 0 {
		cfg.M = DefaultHNSWM
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = DefaultHNSWEfSearch
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &HNSWIndex{graph: graph, dims: cfg.Dimensions}, nil
}

// Add appends vectors under their chunk IDs. Append-only: a repeated
// ID gets a new graph node, not an update.
func (h *HNSWIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return fmt.Errorf("index is closed")
	}

	for _, v := range vectors {
		if len(v) != h.dims {
			return ErrDimensionMismatch{Expected: h.dims, Got: len(v)}
		}
	}

	for i, id := range ids {
		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalizeVectorInPlace(vec)

		key := uint64(len(h.ids))
		h.graph.Add(hnsw.MakeNode(key, vec))
		h.ids = append(h.ids, id)
	}
	return nil
}

// Search returns the approximate k nearest chunks by cosine similarity.
func (h *HNSWIndex) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if len(query) != h.dims {
		return nil, ErrDimensionMismatch{Expected: h.dims, Got: len(query)}
	}
	if k <= 0 || len(h.ids) == 0 {
		return []Hit{}, nil
	}
	if k > len(h.ids) {
		k = len(h.ids)
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeVectorInPlace(normalized)

	nodes := h.graph.Search(normalized, k)

	hits := make([]Hit, 0, len(nodes))
	for _, node := range nodes {
		if node.Key >= uint64(len(h.ids)) {
			continue
		}
		// CosineDistance is 1 - similarity over unit vectors.
		distance := h.graph.Distance(normalized, node.Value)
		hits = append(hits, Hit{
			ID:    h.ids[node.Key],
			Score: 1 - float64(distance),
		})
	}
	return hits, nil
}

// Dimensions returns the configured vector dimensionality.
func (h *HNSWIndex) Dimensions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dims
}

// Count returns the number of stored vectors.
func (h *HNSWIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return 0
	}
	return len(h.ids)
}

// IDs returns the chunk IDs of all stored vectors in insertion order.
// Repeated Adds of the same ID appear once per insertion.
func (h *HNSWIndex) IDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return nil
	}
	ids := make([]string, len(h.ids))
	copy(ids, h.ids)
	return ids
}

// Save persists the graph and its ID sidecar, each via temp file +
// rename.
func (h *HNSWIndex) Save(path string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
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
	if err := h.graph.Export(file); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close index file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename index file: %w", err)
	}

	if err := h.saveSidecar(path + ".meta"); err != nil {
		return fmt.Errorf("failed to save sidecar: %w", err)
	}
	return nil
}

// saveSidecar writes the ID join and dimension to a gob file.
func (h *HNSWIndex) saveSidecar(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create sidecar file: %w", err)
	}

	sidecar := hnswSidecar{Dimensions: h.dims, IDs: h.ids}
	if err := gob.NewEncoder(file).Encode(sidecar); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to encode sidecar: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close sidecar file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Load restores a saved index. The sidecar loads first so the
// dimension check runs before any graph data is touched.
func (h *HNSWIndex) Load(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return fmt.Errorf("index is closed")
	}

	sidecar, err := readHNSWSidecar(path + ".meta")
	if err != nil {
		return fmt.Errorf("failed to load sidecar: %w", err)
	}
	if sidecar.Dimensions != h.dims {
		return ErrDimensionMismatch{Expected: h.dims, Got: sidecar.Dimensions}
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open index file: %w", err)
	}
	defer file.Close()

	// coder/hnsw Import requires an io.ByteReader
	reader := bufio.NewReader(file)
	if err := h.graph.Import(reader); err != nil {
		return fmt.Errorf("failed to import graph: %w", err)
	}

	h.ids = sidecar.IDs
	return nil
}

// Close releases resources.
func (h *HNSWIndex) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}

	h.closed = true
	h.graph = nil
	h.ids = nil
	return nil
}

// ReadHNSWIndexDimensions reads the dimensionality of a saved HNSW
// index from its sidecar. Returns 0 when no sidecar exists (fresh
// start). The path is the graph path ("vectors.hnsw"), not the sidecar
// path.
func ReadHNSWIndexDimensions(path string) (int, error) {
	sidecar, err := readHNSWSidecar(path + ".meta")
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return sidecar.Dimensions, nil
}

// readHNSWSidecar decodes a sidecar file. A missing file surfaces as an
// os.IsNotExist error so callers can treat absence as a fresh start.
func readHNSWSidecar(path string) (*hnswSidecar, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var sidecar hnswSidecar
	if err := gob.NewDecoder(file).Decode(&sidecar); err != nil {
		return nil, fmt.Errorf("failed to decode sidecar: %w", err)
	}
	return &sidecar, nil
}
