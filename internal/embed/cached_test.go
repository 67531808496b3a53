package embed

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockEmbedder is a test double that counts calls
type mockEmbedder struct {
	embedCalls atomic.Int64
	batchCalls atomic.Int64
	dimensions int
	modelName  string
	vector     []float32
}

func newMockEmbedder(dims int) *mockEmbedder {
	vec := make([]float32, dims)
	for i := range vec {
		vec[i] = float32(i) * 0.001
	}
	return &mockEmbedder{dimensions: dims, modelName: "mock-model", vector: vec}
}

func (m *mockEmbedder) Embed(context.Context, string) ([]float32, error) {
	m.embedCalls.Add(1)
	return m.vector, nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.batchCalls.Add(1)
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = m.vector
	}
	return result, nil
}

func (m *mockEmbedder) Dimensions() int                { return m.dimensions }
func (m *mockEmbedder) ModelName() string              { return m.modelName }
func (m *mockEmbedder) Available(context.Context) bool { return true }
func (m *mockEmbedder) Close() error                   { return nil }

// newCachedPair wires a mock behind a cache and closes both at cleanup.
func newCachedPair(t *testing.T, cacheSize int) (*mockEmbedder, *CachedEmbedder) {
	t.Helper()
	inner := newMockEmbedder(StaticDimensions)
	cached := NewCachedEmbedder(inner, cacheSize)
	t.Cleanup(func() { _ = cached.Close() })
	return inner, cached
}

// ============================================================================
// TS01: Cache Hit on Same Text
// ============================================================================

func TestCachedEmbedder_CacheHit_ReturnsWithoutCallingInner(t *testing.T) {
	inner, cached := newCachedPair(t, 100)
	ctx := context.Background()
	text := "What was done on Sept 6?"

	result1, err1 := cached.Embed(ctx, text)
	result2, err2 := cached.Embed(ctx, text)

	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, int64(1), inner.embedCalls.Load(), "inner should be called once")
	assert.Equal(t, result1, result2, "cached results should match")
}

// ============================================================================
// TS02: Cache Miss on Different Text
// ============================================================================

func TestCachedEmbedder_CacheMiss_CallsInnerForNewText(t *testing.T) {
	inner, cached := newCachedPair(t, 100)
	ctx := context.Background()

	for _, text := range []string{"Circulated WBM", "Tripped out of hole", "Ran gyro survey"} {
		_, err := cached.Embed(ctx, text)
		require.NoError(t, err)
	}

	assert.Equal(t, int64(3), inner.embedCalls.Load(), "each unique text embeds once")
}

// ============================================================================
// TS03: Cache Key Includes Model Name
// ============================================================================

func TestCachedEmbedder_CacheKey_DistinctPerModel(t *testing.T) {
	a, cachedA := newCachedPair(t, 100)
	a.modelName = "all-minilm"
	b, cachedB := newCachedPair(t, 100)
	b.modelName = "static"

	// Same text, different backends
	keyA := cachedA.cacheKey("same text")
	keyB := cachedB.cacheKey("same text")

	assert.NotEqual(t, keyA, keyB, "keys must not collide across models")
}

// ============================================================================
// TS04: Passthrough Methods
// ============================================================================

func TestCachedEmbedder_Passthroughs(t *testing.T) {
	inner := newMockEmbedder(384)
	inner.modelName = "all-minilm"
	cached := NewCachedEmbedder(inner, 100)
	defer func() { _ = cached.Close() }()

	assert.Equal(t, 384, cached.Dimensions())
	assert.Equal(t, "all-minilm", cached.ModelName())
	assert.True(t, cached.Available(context.Background()))
}

// ============================================================================
// TS05: EmbedBatch Caching
// ============================================================================

func TestCachedEmbedder_EmbedBatch_CachesIndividualResults(t *testing.T) {
	inner, cached := newCachedPair(t, 100)
	ctx := context.Background()

	_, err := cached.EmbedBatch(ctx, []string{"chunk one", "chunk two", "chunk three"})
	require.NoError(t, err)

	// A later single Embed of a batched text is a hit
	_, err = cached.Embed(ctx, "chunk one")
	require.NoError(t, err)
	assert.Equal(t, int64(0), inner.embedCalls.Load(), "individual Embed should hit batch cache")
}

func TestCachedEmbedder_EmbedBatch_OnlyUncachedForwarded(t *testing.T) {
	inner, cached := newCachedPair(t, 100)
	ctx := context.Background()

	_, err := cached.Embed(ctx, "already cached")
	require.NoError(t, err)
	inner.batchCalls.Store(0)

	results, err := cached.EmbedBatch(ctx, []string{"already cached", "fresh"})

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.NotNil(t, results[0])
	assert.NotNil(t, results[1])
	assert.Equal(t, int64(1), inner.batchCalls.Load())
}

// ============================================================================
// TS06: Cache Eviction (LRU)
// ============================================================================

func TestCachedEmbedder_CacheEviction_OldestEvictedFirst(t *testing.T) {
	inner, cached := newCachedPair(t, 3)
	ctx := context.Background()

	// Four texts through a three-slot cache pushes out the first
	for _, text := range []string{"text1", "text2", "text3", "text4"} {
		_, _ = cached.Embed(ctx, text)
	}

	inner.embedCalls.Store(0)
	_, err := cached.Embed(ctx, "text1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), inner.embedCalls.Load(), "evicted text should require new embedding")

	inner.embedCalls.Store(0)
	_, _ = cached.Embed(ctx, "text3")
	_, _ = cached.Embed(ctx, "text4")
	assert.Equal(t, int64(0), inner.embedCalls.Load(), "recent texts should be cached")
}

// ============================================================================
// TS07: Inner() Method
// ============================================================================

func TestCachedEmbedder_Inner_ReturnsUnderlyingEmbedder(t *testing.T) {
	inner, cached := newCachedPair(t, 100)
	inner.modelName = "wrapped"

	got := cached.Inner()

	assert.Equal(t, inner, got, "Inner() should return the wrapped embedder")
	assert.Equal(t, "wrapped", got.ModelName())
}

// ============================================================================
// TS08: Thread Safety
// ============================================================================

func TestCachedEmbedder_ConcurrentAccess_NoRace(t *testing.T) {
	_, cached := newCachedPair(t, 100)
	ctx := context.Background()
	texts := []string{"a", "b", "c", "d", "e"}

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				_, _ = cached.Embed(ctx, texts[j%len(texts)])
			}
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}
