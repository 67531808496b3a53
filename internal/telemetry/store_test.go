package telemetry

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteMetricsStore {
	t.Helper()
	store, err := OpenSQLiteMetricsStore(filepath.Join(t.TempDir(), "telemetry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteMetricsStore_MethodCounts(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SaveMethodCounts("2025-09-06", map[Method]int64{
		MethodHybrid:   3,
		MethodSemantic: 5,
	}))
	// Same day again accumulates.
	require.NoError(t, store.SaveMethodCounts("2025-09-06", map[Method]int64{
		MethodHybrid: 2,
	}))

	counts, err := store.GetMethodCounts("2025-09-06", "2025-09-06")
	require.NoError(t, err)
	assert.Equal(t, int64(5), counts[MethodHybrid])
	assert.Equal(t, int64(5), counts[MethodSemantic])
}

func TestSQLiteMetricsStore_MethodCounts_DateRange(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SaveMethodCounts("2025-09-05", map[Method]int64{MethodSemantic: 1}))
	require.NoError(t, store.SaveMethodCounts("2025-09-06", map[Method]int64{MethodSemantic: 2}))
	require.NoError(t, store.SaveMethodCounts("2025-09-07", map[Method]int64{MethodSemantic: 4}))

	counts, err := store.GetMethodCounts("2025-09-05", "2025-09-06")
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts[MethodSemantic])
}

func TestSQLiteMetricsStore_TermCounts(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.UpsertTermCounts(map[string]int64{
		"circulation": 3,
		"cementing":   1,
	}))
	require.NoError(t, store.UpsertTermCounts(map[string]int64{
		"circulation": 2,
	}))

	terms, err := store.GetTopTerms(10)
	require.NoError(t, err)
	require.Len(t, terms, 2)
	assert.Equal(t, "circulation", terms[0].Term)
	assert.Equal(t, int64(5), terms[0].Count)
}

func TestSQLiteMetricsStore_TermCounts_Empty(t *testing.T) {
	store := newTestStore(t)

	assert.NoError(t, store.UpsertTermCounts(nil))
}

func TestSQLiteMetricsStore_ZeroResultQueries(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.AddZeroResultQuery("events on 31-Feb", time.Now()))
	require.NoError(t, store.AddZeroResultQuery("missing well name", time.Now()))

	queries, err := store.GetZeroResultQueries(10)
	require.NoError(t, err)
	// Newest first.
	assert.Equal(t, []string{"missing well name", "events on 31-Feb"}, queries)
}

func TestSQLiteMetricsStore_ZeroResultQueries_Retention(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < zeroResultRetention+20; i++ {
		require.NoError(t, store.AddZeroResultQuery("q", time.Now()))
	}

	queries, err := store.GetZeroResultQueries(zeroResultRetention + 50)
	require.NoError(t, err)
	assert.Len(t, queries, zeroResultRetention)
}

func TestSQLiteMetricsStore_LatencyCounts(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SaveLatencyCounts("2025-09-06", map[LatencyBucket]int64{
		BucketP10: 7,
		BucketP50: 2,
	}))
	require.NoError(t, store.SaveLatencyCounts("2025-09-06", map[LatencyBucket]int64{
		BucketP10: 3,
	}))

	counts, err := store.GetLatencyCounts("2025-09-06", "2025-09-06")
	require.NoError(t, err)
	assert.Equal(t, int64(10), counts[BucketP10])
	assert.Equal(t, int64(2), counts[BucketP50])
}

func TestSQLiteMetricsStore_InMemory(t *testing.T) {
	store, err := OpenSQLiteMetricsStore("")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.SaveMethodCounts("2025-09-06", map[Method]int64{MethodHybrid: 1}))

	counts, err := store.GetMethodCounts("2025-09-06", "2025-09-06")
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[MethodHybrid])
}

func TestNewSQLiteMetricsStore_NilDB(t *testing.T) {
	_, err := NewSQLiteMetricsStore(nil)
	assert.Error(t, err)
}

// End-to-end: collector flushes into the SQLite store and the data
// reads back.
func TestQueryMetrics_FlushToSQLite(t *testing.T) {
	store := newTestStore(t)
	m := NewQueryMetricsWithConfig(store, Config{FlushInterval: 0})
	defer m.Close()

	m.Record(QueryEvent{
		Query:       "what was done on 6-Sept?",
		Method:      MethodHybrid,
		ResultCount: 2,
		Latency:     4 * time.Millisecond,
		Timestamp:   time.Now(),
	})
	m.Record(QueryEvent{
		Query:       "unknown rig",
		Method:      MethodSemanticFallback,
		ResultCount: 0,
		Latency:     12 * time.Millisecond,
		Timestamp:   time.Now(),
	})
	require.NoError(t, m.Flush())

	today := time.Now().Format("2006-01-02")
	counts, err := store.GetMethodCounts(today, today)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[MethodHybrid])
	assert.Equal(t, int64(1), counts[MethodSemanticFallback])

	zero, err := store.GetZeroResultQueries(10)
	require.NoError(t, err)
	assert.Equal(t, []string{"unknown rig"}, zero)

	latencies, err := store.GetLatencyCounts(today, today)
	require.NoError(t, err)
	assert.Equal(t, int64(1), latencies[BucketP10])
	assert.Equal(t, int64(1), latencies[BucketP50])
}
