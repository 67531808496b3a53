// Package store is the persistence layer for the document corpus: the
// SQLite chunk store, the dense vector index, and the keyword/date
// inverted index.
package store

import (
	"context"
	"fmt"
	"time"
)

// CurrentSchemaVersion is the chunk store schema version. Opening a
// store with a newer on-disk version fails rather than guessing.
const CurrentSchemaVersion = 1

// Chunk is one retrievable passage of an ingested document.
type Chunk struct {
	// ID is the globally unique chunk identifier, stable for the life
	// of the index: document name plus ordinal.
	ID string `json:"id"`

	// DocumentID is the source document name.
	DocumentID string `json:"document_id"`

	// Ordinal is the chunk position within its source document. Not
	// globally meaningful.
	Ordinal int `json:"ordinal"`

	// Content is the passage text as emitted by the chunker,
	// date-annotated and possibly carrying an injected date-context
	// line.
	Content string `json:"content"`

	// DateContext is the most recent date-bearing sentence at emission
	// time; empty when the document carries no dates.
	DateContext string `json:"date_context,omitempty"`

	// Embedding is the dense vector, present once embedded. Never
	// persisted in the chunk store; the vector index owns it.
	Embedding []float32 `json:"-"`

	// Seq is the global insertion sequence assigned by SaveChunks.
	// Hybrid retrieval orders hits by Seq.
	Seq int64 `json:"seq"`
}

// ChunkID builds the canonical chunk identifier for a document passage.
func ChunkID(document string, ordinal int) string {
	return fmt.Sprintf("%s_%d", document, ordinal)
}

// DocumentInfo describes one ingested document.
type DocumentInfo struct {
	Name       string    `json:"name"`
	ChunkCount int       `json:"chunk_count"`
	IndexedAt  time.Time `json:"indexed_at"`
}

// StoreStats summarizes chunk store contents.
type StoreStats struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
}

// ChunkStore persists chunks and document records.
type ChunkStore interface {
	// SaveChunks replaces the chunks of one document in a single
	// transaction and assigns each chunk its global Seq. Chunk rows
	// commit before any index references their IDs.
	SaveChunks(ctx context.Context, document string, chunks []*Chunk) error

	// GetChunk retrieves a chunk by ID. Returns nil without error when
	// the chunk does not exist.
	GetChunk(ctx context.Context, id string) (*Chunk, error)

	// GetChunks retrieves chunks by ID, preserving the requested order
	// and skipping IDs that no longer resolve.
	GetChunks(ctx context.Context, ids []string) ([]*Chunk, error)

	// ChunksByDocument returns a document's chunks ordered by ordinal.
	ChunksByDocument(ctx context.Context, document string) ([]*Chunk, error)

	// Documents lists ingested documents ordered by name.
	Documents(ctx context.Context) ([]*DocumentInfo, error)

	// AllIDs returns every chunk ID in insertion order. The chunk store
	// is the source of truth for which IDs are live.
	AllIDs(ctx context.Context) ([]string, error)

	// Stats returns document and chunk counts.
	Stats(ctx context.Context) (*StoreStats, error)

	// Reset removes every document and chunk.
	Reset(ctx context.Context) error

	Close() error
}

// Hit is one dense search result.
type Hit struct {
	// ID is the matched chunk ID.
	ID string
	// Score is the cosine similarity of the matched vector to the
	// query, computed over L2-normalized vectors.
	Score float64
}

// VectorIndex is the dense retrieval index over chunk embeddings.
// Vectors are L2-normalized at insertion. Add is append-only: no
// dedup, no update; stale entries are dropped at chunk fetch time.
type VectorIndex interface {
	// Add appends vectors under their chunk IDs.
	Add(ctx context.Context, ids []string, vectors [][]float32) error

	// Search returns the k nearest chunks by cosine similarity. k is
	// capped at the corpus size; fewer than k results is not an error.
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)

	Dimensions() int
	Count() int

	// IDs returns the chunk IDs of all stored vectors in insertion
	// order, repeats included.
	IDs() []string

	// Save persists the index structure, the ID join, and the
	// dimension as one atomic unit (temp file + rename).
	Save(path string) error

	// Load restores a saved index. A stored dimension that does not
	// match the configured one fails with ErrDimensionMismatch.
	Load(path string) error

	Close() error
}

// VectorConfig configures a vector index backend.
type VectorConfig struct {
	// Dimensions is the embedding dimensionality. Must match the
	// embedder; a mismatch anywhere is a fatal configuration error.
	Dimensions int

	// HNSW graph parameters. Zero values take the backend defaults;
	// the flat backend ignores them.
	M        int
	EfSearch int
}

// KeywordIndex is the keyword/date inverted index over chunks.
type KeywordIndex interface {
	// Index adds chunks: every date match in the original-case content
	// expands to its full lowercase variant set, and vocabulary terms
	// contained in the lowercased content are recorded as keywords.
	Index(ctx context.Context, chunks []*Chunk) error

	// SearchByDate returns IDs of chunks whose date entries match any
	// variant of a date term extracted from the query. Empty means no
	// match and triggers semantic fallback, never an error.
	SearchByDate(ctx context.Context, query string) ([]string, error)

	// SearchKeywords returns IDs of chunks matching vocabulary terms
	// present in the query, ranked by per-chunk hit count.
	SearchKeywords(ctx context.Context, query string) ([]string, error)

	// DocCount returns the number of indexed chunks.
	DocCount() (uint64, error)

	// AllIDs returns every indexed chunk ID. Indexing replaces by ID,
	// so the result has no repeats.
	AllIDs() ([]string, error)

	Close() error
}

// ErrDimensionMismatch indicates vector dimension incompatibility
// between the configured embedder and the index.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf(
		"vector dimension mismatch: expected %d, got %d (embedding model changed? reindex required)",
		e.Expected, e.Got)
}
