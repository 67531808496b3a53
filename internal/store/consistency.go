package store

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// ConsistencyReport is the outcome of a cross-store consistency check.
// The chunk store is the source of truth: an ID present there is live,
// anything else is stale.
//
// Stale and duplicate vector entries are an expected state after a
// document shrinks or is re-ingested; retrieval drops them at chunk
// fetch time. Missing entries point at an interrupted ingest, since
// chunk rows commit before the indexes reference their IDs. Either way
// the repair path is the same: rebuild with a forced reindex.
type ConsistencyReport struct {
	// ChunksChecked is the number of live chunk IDs verified.
	ChunksChecked int `json:"chunks_checked"`

	// StaleVectors are vector index IDs with no chunk row.
	StaleVectors []string `json:"stale_vectors,omitempty"`

	// DuplicateVectors are live IDs stored more than once in the
	// vector index.
	DuplicateVectors []string `json:"duplicate_vectors,omitempty"`

	// MissingVectors are live chunk IDs absent from the vector index.
	MissingVectors []string `json:"missing_vectors,omitempty"`

	// StaleKeywords are keyword index IDs with no chunk row.
	StaleKeywords []string `json:"stale_keywords,omitempty"`

	// MissingKeywords are live chunk IDs absent from the keyword index.
	MissingKeywords []string `json:"missing_keywords,omitempty"`

	// Duration is how long the check took.
	Duration time.Duration `json:"-"`
}

// Consistent reports whether every store agrees on the live ID set.
func (r *ConsistencyReport) Consistent() bool {
	return r.IssueCount() == 0
}

// IssueCount returns the total number of detected issues.
func (r *ConsistencyReport) IssueCount() int {
	return len(r.StaleVectors) + len(r.DuplicateVectors) +
		len(r.MissingVectors) + len(r.StaleKeywords) + len(r.MissingKeywords)
}

// CheckConsistency compares the chunk store's ID set against the vector
// and keyword indexes. O(n) over the total entry count; issue slices
// come back sorted.
func CheckConsistency(ctx context.Context, chunks ChunkStore, vectors VectorIndex, keywords KeywordIndex) (*ConsistencyReport, error) {
	start := time.Now()

	liveIDs, err := chunks.AllIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunk ids: %w", err)
	}
	live := make(map[string]struct{}, len(liveIDs))
	for _, id := range liveIDs {
		live[id] = struct{}{}
	}

	report := &ConsistencyReport{ChunksChecked: len(live)}

	// The vector index is append-only, so the same ID can appear more
	// than once. A stale ID reports as stale whatever its count.
	vectorCounts := make(map[string]int)
	for _, id := range vectors.IDs() {
		vectorCounts[id]++
	}
	for id, n := range vectorCounts {
		if _, ok := live[id]; !ok {
			report.StaleVectors = append(report.StaleVectors, id)
		} else if n > 1 {
			report.DuplicateVectors = append(report.DuplicateVectors, id)
		}
	}

	keywordIDs, err := keywords.AllIDs()
	if err != nil {
		return nil, fmt.Errorf("failed to list keyword ids: %w", err)
	}
	keywordSet := make(map[string]struct{}, len(keywordIDs))
	for _, id := range keywordIDs {
		keywordSet[id] = struct{}{}
		if _, ok := live[id]; !ok {
			report.StaleKeywords = append(report.StaleKeywords, id)
		}
	}

	for id := range live {
		if _, ok := vectorCounts[id]; !ok {
			report.MissingVectors = append(report.MissingVectors, id)
		}
		if _, ok := keywordSet[id]; !ok {
			report.MissingKeywords = append(report.MissingKeywords, id)
		}
	}

	for _, issues := range [][]string{
		report.StaleVectors, report.DuplicateVectors, report.MissingVectors,
		report.StaleKeywords, report.MissingKeywords,
	} {
		sort.Strings(issues)
	}

	report.Duration = time.Since(start)
	return report, nil
}

// CheckConsistency verifies the manager's three stores agree on the
// live chunk ID set.
func (m *Manager) CheckConsistency(ctx context.Context) (*ConsistencyReport, error) {
	return CheckConsistency(ctx, m.Chunks, m.Vectors, m.Keywords)
}
