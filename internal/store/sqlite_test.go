package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper to create a test store with cleanup
func newTestStore(t *testing.T) (*SQLiteStore, string) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "chunks.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store, dbPath
}

func reportChunks(document string, texts ...string) []*Chunk {
	chunks := make([]*Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = &Chunk{
			DocumentID: document,
			Ordinal:    i,
			Content:    text,
		}
	}
	return chunks
}

// TS01: Chunk round trip
func TestSQLiteStore_SaveAndGetChunk(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	// Given: a document's chunks
	chunks := []*Chunk{
		{
			DocumentID:  "rig_report.txt",
			Ordinal:     0,
			Content:     "6-Sept: Circulated WBM and swept the hole.",
			DateContext: "6-Sept: Circulated WBM and swept the hole.",
		},
		{
			DocumentID: "rig_report.txt",
			Ordinal:    1,
			Content:    "Pulled out of hole to casing shoe.",
		},
	}

	// When: I save them
	require.NoError(t, store.SaveChunks(ctx, "rig_report.txt", chunks))

	// Then: IDs and sequence numbers were assigned
	assert.Equal(t, ChunkID("rig_report.txt", 0), chunks[0].ID)
	assert.Equal(t, ChunkID("rig_report.txt", 1), chunks[1].ID)
	assert.Equal(t, int64(1), chunks[0].Seq)
	assert.Equal(t, int64(2), chunks[1].Seq)

	// And: every field round-trips
	got, err := store.GetChunk(ctx, chunks[0].ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, chunks[0].ID, got.ID)
	assert.Equal(t, "rig_report.txt", got.DocumentID)
	assert.Equal(t, 0, got.Ordinal)
	assert.Equal(t, chunks[0].Content, got.Content)
	assert.Equal(t, chunks[0].DateContext, got.DateContext)
	assert.Equal(t, int64(1), got.Seq)
}

func TestSQLiteStore_GetChunk_NotFound(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	// When: getting a non-existent chunk
	chunk, err := store.GetChunk(ctx, "no-such-chunk")

	// Then: nil is returned without error
	assert.NoError(t, err)
	assert.Nil(t, chunk)
}

func TestSQLiteStore_GetChunks_PreservesRequestOrder(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	chunks := reportChunks("report.txt", "alpha", "bravo", "charlie")
	require.NoError(t, store.SaveChunks(ctx, "report.txt", chunks))

	// When: requesting out of storage order with a stale ID mixed in
	got, err := store.GetChunks(ctx, []string{
		chunks[2].ID, chunks[0].ID, "report.txt_99", chunks[1].ID,
	})
	require.NoError(t, err)

	// Then: results follow the request order and the stale ID is skipped
	require.Len(t, got, 3)
	assert.Equal(t, "charlie", got[0].Content)
	assert.Equal(t, "alpha", got[1].Content)
	assert.Equal(t, "bravo", got[2].Content)
}

func TestSQLiteStore_GetChunks_Empty(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	got, err := store.GetChunks(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

// TS02: Per-document replacement
func TestSQLiteStore_SaveChunks_ReplacesDocument(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	// Given: a document indexed with three chunks
	first := reportChunks("day1.txt", "one", "two", "three")
	require.NoError(t, store.SaveChunks(ctx, "day1.txt", first))

	// When: the document is re-ingested with two chunks
	second := reportChunks("day1.txt", "revised one", "revised two")
	require.NoError(t, store.SaveChunks(ctx, "day1.txt", second))

	// Then: only the new chunks remain
	got, err := store.ChunksByDocument(ctx, "day1.txt")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "revised one", got[0].Content)
	assert.Equal(t, "revised two", got[1].Content)

	// And: the sequence keeps advancing instead of reusing old values
	assert.Equal(t, int64(4), second[0].Seq)
	assert.Equal(t, int64(5), second[1].Seq)

	// And: the old rows are gone
	stale, err := store.GetChunk(ctx, first[2].ID)
	require.NoError(t, err)
	assert.Nil(t, stale)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Documents)
	assert.Equal(t, 2, stats.Chunks)
}

func TestSQLiteStore_SeqSpansDocuments(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	// Given: two documents saved in order
	a := reportChunks("a.txt", "a0", "a1")
	b := reportChunks("b.txt", "b0", "b1")
	require.NoError(t, store.SaveChunks(ctx, "a.txt", a))
	require.NoError(t, store.SaveChunks(ctx, "b.txt", b))

	// Then: Seq is a single global ordering across documents
	assert.Equal(t, []int64{1, 2}, []int64{a[0].Seq, a[1].Seq})
	assert.Equal(t, []int64{3, 4}, []int64{b[0].Seq, b[1].Seq})
}

func TestSQLiteStore_ChunksByDocument_OrdinalOrder(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	// Given: chunks saved in shuffled ordinal order
	chunks := []*Chunk{
		{DocumentID: "r.txt", Ordinal: 2, Content: "third"},
		{DocumentID: "r.txt", Ordinal: 0, Content: "first"},
		{DocumentID: "r.txt", Ordinal: 1, Content: "second"},
	}
	require.NoError(t, store.SaveChunks(ctx, "r.txt", chunks))

	got, err := store.ChunksByDocument(ctx, "r.txt")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "first", got[0].Content)
	assert.Equal(t, "second", got[1].Content)
	assert.Equal(t, "third", got[2].Content)
}

func TestSQLiteStore_Documents(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveChunks(ctx, "beta.txt", reportChunks("beta.txt", "x")))
	require.NoError(t, store.SaveChunks(ctx, "alpha.txt", reportChunks("alpha.txt", "y", "z")))

	docs, err := store.Documents(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	// Sorted by name, with counts and timestamps
	assert.Equal(t, "alpha.txt", docs[0].Name)
	assert.Equal(t, 2, docs[0].ChunkCount)
	assert.False(t, docs[0].IndexedAt.IsZero())
	assert.Equal(t, "beta.txt", docs[1].Name)
	assert.Equal(t, 1, docs[1].ChunkCount)
}

func TestSQLiteStore_Reset(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveChunks(ctx, "r.txt", reportChunks("r.txt", "a", "b")))

	// When: resetting
	require.NoError(t, store.Reset(ctx))

	// Then: everything is gone
	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Documents)
	assert.Equal(t, 0, stats.Chunks)

	// And: the next save starts the sequence over
	fresh := reportChunks("r.txt", "c")
	require.NoError(t, store.SaveChunks(ctx, "r.txt", fresh))
	assert.Equal(t, int64(1), fresh[0].Seq)
}

// TS03: Persistence across reopen
func TestSQLiteStore_Persistence(t *testing.T) {
	store, dbPath := newTestStore(t)
	ctx := context.Background()

	chunks := reportChunks("r.txt", "survives", "reopen")
	require.NoError(t, store.SaveChunks(ctx, "r.txt", chunks))
	require.NoError(t, store.Close())

	// When: reopening the same file
	reopened, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	// Then: data is intact
	got, err := reopened.GetChunk(ctx, chunks[0].ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "survives", got.Content)

	// And: the sequence continues from where it left off
	more := reportChunks("s.txt", "later")
	require.NoError(t, reopened.SaveChunks(ctx, "s.txt", more))
	assert.Equal(t, int64(3), more[0].Seq)
}

func TestSQLiteStore_ClosedOperationsFail(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Close())

	_, err := store.GetChunk(ctx, "x")
	assert.Error(t, err)

	err = store.SaveChunks(ctx, "r.txt", reportChunks("r.txt", "a"))
	assert.Error(t, err)

	// Close is idempotent
	assert.NoError(t, store.Close())
}

func TestSQLiteStore_EmptyDocumentName(t *testing.T) {
	store, _ := newTestStore(t)

	err := store.SaveChunks(context.Background(), "", reportChunks("", "a"))
	assert.Error(t, err)
}

func TestSQLiteStore_SaveChunks_EmptyDocumentAllowed(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	// A parseable but empty document records zero chunks.
	require.NoError(t, store.SaveChunks(ctx, "empty.txt", nil))

	docs, err := store.Documents(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, 0, docs[0].ChunkCount)
}

func TestSQLiteStore_ConcurrentReads(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	chunks := make([]*Chunk, 50)
	for i := range chunks {
		chunks[i] = &Chunk{DocumentID: "r.txt", Ordinal: i, Content: fmt.Sprintf("chunk %d", i)}
	}
	require.NoError(t, store.SaveChunks(ctx, "r.txt", chunks))

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				id := ChunkID("r.txt", (g*7+i)%50)
				got, err := store.GetChunk(ctx, id)
				assert.NoError(t, err)
				assert.NotNil(t, got)
			}
		}(g)
	}
	wg.Wait()
}

func TestSQLiteStore_InMemory(t *testing.T) {
	store, err := NewSQLiteStore("")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.SaveChunks(ctx, "m.txt", reportChunks("m.txt", "in memory")))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Chunks)
	assert.Empty(t, store.Path())
}
