package store

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

// =============================================================================
// Performance Benchmarks - Chunk Store and Vector Indexes
// =============================================================================
// Targets:
// - GetChunk: < 1ms per call
// - GetChunks (batch): < 10ms for 100 chunks
// - SaveChunks: > 1000 chunks/sec
// - Flat search over 1k vectors: < 5ms
// =============================================================================

// BenchmarkSQLiteStore_GetChunk benchmarks single chunk retrieval.
func BenchmarkSQLiteStore_GetChunk(b *testing.B) {
	store, cleanup := setupBenchmarkStore(b, 1000)
	defer cleanup()

	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		id := ChunkID("report-0.txt", i%100)
		_, err := store.GetChunk(ctx, id)
		if err != nil {
			b.Fatalf("GetChunk failed: %v", err)
		}
	}
}

// BenchmarkSQLiteStore_GetChunks_Batch benchmarks batch chunk retrieval,
// the path dense search hits on every query.
func BenchmarkSQLiteStore_GetChunks_Batch(b *testing.B) {
	counts := []int{10, 20, 50, 100}

	for _, count := range counts {
		b.Run(fmt.Sprintf("count_%d", count), func(b *testing.B) {
			store, cleanup := setupBenchmarkStore(b, 1000)
			defer cleanup()

			ctx := context.Background()
			ids := make([]string, count)
			for i := 0; i < count; i++ {
				ids[i] = ChunkID(fmt.Sprintf("report-%d.txt", i%10), i%100)
			}

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				_, err := store.GetChunks(ctx, ids)
				if err != nil {
					b.Fatalf("GetChunks failed: %v", err)
				}
			}

			b.ReportMetric(float64(count*b.N)/b.Elapsed().Seconds(), "chunks/sec")
		})
	}
}

// BenchmarkSQLiteStore_SaveChunks benchmarks document ingestion.
func BenchmarkSQLiteStore_SaveChunks(b *testing.B) {
	batchSizes := []int{10, 50, 100, 500}

	for _, batchSize := range batchSizes {
		b.Run(fmt.Sprintf("batch_%d", batchSize), func(b *testing.B) {
			store, cleanup := setupBenchmarkStore(b, 0)
			defer cleanup()

			ctx := context.Background()

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				document := fmt.Sprintf("report-%d.txt", i)
				chunks := generateBenchmarkChunks(document, batchSize)
				if err := store.SaveChunks(ctx, document, chunks); err != nil {
					b.Fatalf("SaveChunks failed: %v", err)
				}
			}

			b.ReportMetric(float64(batchSize*b.N)/b.Elapsed().Seconds(), "chunks/sec")
		})
	}
}

// BenchmarkFlatIndex_Search benchmarks exhaustive cosine search.
func BenchmarkFlatIndex_Search(b *testing.B) {
	sizes := []int{100, 1000, 5000}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("vectors_%d", size), func(b *testing.B) {
			idx, query := setupBenchmarkVectors(b, size, func() (VectorIndex, error) {
				return NewFlatIndex(VectorConfig{Dimensions: 384})
			})
			ctx := context.Background()

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				if _, err := idx.Search(ctx, query, 10); err != nil {
					b.Fatalf("Search failed: %v", err)
				}
			}
		})
	}
}

// BenchmarkHNSWIndex_Search benchmarks approximate graph search.
func BenchmarkHNSWIndex_Search(b *testing.B) {
	sizes := []int{100, 1000, 5000}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("vectors_%d", size), func(b *testing.B) {
			idx, query := setupBenchmarkVectors(b, size, func() (VectorIndex, error) {
				return NewHNSWIndex(VectorConfig{Dimensions: 384})
			})
			ctx := context.Background()

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				if _, err := idx.Search(ctx, query, 10); err != nil {
					b.Fatalf("Search failed: %v", err)
				}
			}
		})
	}
}

// =============================================================================
// Benchmark Helpers
// =============================================================================

// setupBenchmarkStore creates a SQLite store pre-populated with chunks
// spread across ten documents.
func setupBenchmarkStore(b *testing.B, numChunks int) (*SQLiteStore, func()) {
	b.Helper()

	tmpDir, err := os.MkdirTemp("", "bench-chunks-*")
	if err != nil {
		b.Fatalf("failed to create temp dir: %v", err)
	}

	store, err := NewSQLiteStore(filepath.Join(tmpDir, "chunks.db"))
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		b.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if numChunks > 0 {
		perDoc := numChunks / 10
		for d := 0; d < 10; d++ {
			document := fmt.Sprintf("report-%d.txt", d)
			chunks := generateBenchmarkChunks(document, perDoc)
			if err := store.SaveChunks(ctx, document, chunks); err != nil {
				_ = store.Close()
				_ = os.RemoveAll(tmpDir)
				b.Fatalf("failed to save chunks: %v", err)
			}
		}
	}

	return store, func() {
		_ = store.Close()
		_ = os.RemoveAll(tmpDir)
	}
}

// generateBenchmarkChunks creates report-shaped chunks for one document.
func generateBenchmarkChunks(document string, n int) []*Chunk {
	activities := []string{
		"Circulated WBM and swept the hole with 50 bbls hi-vis pill.",
		"Tripped out of hole to casing shoe, no overpull.",
		"Drilled ahead 12-1/4in section from 2450m to 2510m.",
		"Tested blind rams and pipe rams to 250/5000 psi.",
		"Ran gyro survey, pulled back to bottom.",
	}

	chunks := make([]*Chunk, n)
	for i := 0; i < n; i++ {
		day := i%28 + 1
		chunks[i] = &Chunk{
			DocumentID:  document,
			Ordinal:     i,
			Content:     fmt.Sprintf("%d-Sept: %s", day, activities[i%len(activities)]),
			DateContext: fmt.Sprintf("%d-Sept", day),
		}
	}
	return chunks
}

// setupBenchmarkVectors fills an index with deterministic pseudo-random
// embeddings and returns a query near one of them.
func setupBenchmarkVectors(b *testing.B, size int, create func() (VectorIndex, error)) (VectorIndex, []float32) {
	b.Helper()

	idx, err := create()
	if err != nil {
		b.Fatalf("failed to create index: %v", err)
	}
	b.Cleanup(func() { _ = idx.Close() })

	rng := rand.New(rand.NewSource(42))
	ids := make([]string, size)
	vectors := make([][]float32, size)
	for i := 0; i < size; i++ {
		ids[i] = ChunkID(fmt.Sprintf("report-%d.txt", i%10), i)
		vec := make([]float32, 384)
		for j := range vec {
			vec[j] = rng.Float32()*2 - 1
		}
		vectors[i] = vec
	}
	if err := idx.Add(context.Background(), ids, vectors); err != nil {
		b.Fatalf("failed to add vectors: %v", err)
	}

	return idx, vectors[size/2]
}
