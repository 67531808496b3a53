// Package telemetry collects local query statistics for the retrieval
// pipeline. All data stays on the local machine; nothing is reported
// externally.
package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Method mirrors the retrieval method reported with each answer. Kept
// as its own type so this package does not import the search package.
type Method string

const (
	MethodSemantic         Method = "semantic"
	MethodHybrid           Method = "hybrid"
	MethodSemanticFallback Method = "semantic_fallback"
	MethodFilenameFilter   Method = "filename_filter"
)

// LatencyBucket is a histogram bucket for retrieval latency.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	switch {
	case d < 10*time.Millisecond:
		return BucketP10
	case d < 50*time.Millisecond:
		return BucketP50
	case d < 100*time.Millisecond:
		return BucketP100
	case d < 500*time.Millisecond:
		return BucketP500
	default:
		return BucketP1000
	}
}

// QueryEvent is one retrieval observation.
type QueryEvent struct {
	Query       string
	Method      Method
	ResultCount int
	Latency     time.Duration
	Timestamp   time.Time
}

// IsZeroResult reports whether the retrieval returned nothing.
func (e QueryEvent) IsZeroResult() bool {
	return e.ResultCount == 0
}

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	mu       sync.RWMutex
	items    []T
	head     int // next write position
	size     int
	capacity int
}

// NewCircularBuffer creates a buffer with the given capacity. A
// non-positive capacity falls back to 100.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{items: make([]T, capacity), capacity: capacity}
}

// Add appends an item, evicting the oldest when full.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Items returns the buffer contents oldest first.
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	// Until the first wrap the oldest item sits at index 0, after
	// that it sits at the write head.
	start := 0
	if b.size == b.capacity {
		start = b.head
	}

	result := make([]T, 0, b.size)
	for i := 0; i < b.size; i++ {
		result = append(result, b.items[(start+i)%b.capacity])
	}
	return result
}

// Size returns the current number of items.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Clear empties the buffer.
func (b *CircularBuffer[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head = 0
	b.size = 0
}

// ExtractTerms splits a question into trackable terms, lowercased and
// filtered to minimum length 3.
func ExtractTerms(query string) []string {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	var terms []string
	for _, w := range strings.Fields(query) {
		if len(w) >= 3 {
			terms = append(terms, w)
		}
	}
	return terms
}

// TermCount is a term and its frequency.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Snapshot is an immutable view of collected metrics.
type Snapshot struct {
	MethodCounts        map[Method]int64        `json:"method_counts"`
	TopTerms            []TermCount             `json:"top_terms"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	TotalQueries        int64                   `json:"total_queries"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	RepeatCount         int64                   `json:"repeat_count"`
	UniqueQueries       int64                   `json:"unique_queries"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage returns the share of queries with no results.
func (s *Snapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries) * 100
}

// RepeatRate returns the share of queries seen before.
func (s *Snapshot) RepeatRate() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.RepeatCount) / float64(s.TotalQueries)
}

// MetricsStore persists aggregated query metrics.
type MetricsStore interface {
	// SaveMethodCounts upserts daily retrieval method counts.
	SaveMethodCounts(date string, counts map[Method]int64) error

	// GetMethodCounts sums method counts over an inclusive date range.
	GetMethodCounts(from, to string) (map[Method]int64, error)

	// UpsertTermCounts adds to term frequency counts.
	UpsertTermCounts(terms map[string]int64) error

	// GetTopTerms returns the top N terms by frequency.
	GetTopTerms(limit int) ([]TermCount, error)

	// AddZeroResultQuery records a query that returned nothing.
	AddZeroResultQuery(query string, timestamp time.Time) error

	// GetZeroResultQueries returns recent zero-result queries, newest
	// first.
	GetZeroResultQueries(limit int) ([]string, error)

	// SaveLatencyCounts upserts daily latency histogram counts.
	SaveLatencyCounts(date string, counts map[LatencyBucket]int64) error

	// GetLatencyCounts sums latency counts over an inclusive date range.
	GetLatencyCounts(from, to string) (map[LatencyBucket]int64, error)

	// Close releases store resources.
	Close() error
}

// Config configures the metrics collector.
type Config struct {
	TopTermsCapacity      int           // max terms tracked in memory (default 100)
	ZeroResultsCapacity   int           // max zero-result queries kept (default 100)
	RecentQueriesCapacity int           // max query hashes for repeat detection (default 500)
	FlushInterval         time.Duration // 0 disables auto-flush (default 60s)
}

// DefaultConfig returns the collector defaults.
func DefaultConfig() Config {
	return Config{
		TopTermsCapacity:      100,
		ZeroResultsCapacity:   100,
		RecentQueriesCapacity: 500,
		FlushInterval:         60 * time.Second,
	}
}

// withDefaults replaces non-positive capacities. FlushInterval is left
// alone, zero means no auto-flush.
func (c Config) withDefaults() Config {
	if c.TopTermsCapacity <= 0 {
		c.TopTermsCapacity = 100
	}
	if c.ZeroResultsCapacity <= 0 {
		c.ZeroResultsCapacity = 100
	}
	if c.RecentQueriesCapacity <= 0 {
		c.RecentQueriesCapacity = 500
	}
	return c
}

type zeroResult struct {
	query     string
	timestamp time.Time
}

// QueryMetrics collects retrieval telemetry. Safe for concurrent use.
//
// Counters split in two: lifetime totals feed Snapshot, per-window
// deltas feed Flush. Flushing persists and clears only the deltas, so
// repeated flushes never double-count.
type QueryMetrics struct {
	mu sync.RWMutex

	methods         map[Method]int64
	topTerms        *lru.Cache[string, int64]
	zeroResults     *CircularBuffer[string]
	latencies       map[LatencyBucket]int64
	totalQueries    int64
	zeroResultCount int64
	startTime       time.Time

	// LRU of query hashes for repeat detection.
	recentQueries *lru.Cache[string, struct{}]
	repeatCount   int64

	// Unflushed deltas.
	methodDelta  map[Method]int64
	termDelta    map[string]int64
	latencyDelta map[LatencyBucket]int64
	pendingZero  []zeroResult

	store       MetricsStore
	config      Config
	flushTicker *time.Ticker
	stopCh      chan struct{}
	closed      bool
}

// NewQueryMetrics creates a collector with default configuration. A nil
// store keeps metrics in memory only.
func NewQueryMetrics(store MetricsStore) *QueryMetrics {
	return NewQueryMetricsWithConfig(store, DefaultConfig())
}

// NewQueryMetricsWithConfig creates a collector with custom configuration.
func NewQueryMetricsWithConfig(store MetricsStore, cfg Config) *QueryMetrics {
	cfg = cfg.withDefaults()

	topTerms, _ := lru.New[string, int64](cfg.TopTermsCapacity)
	recentQueries, _ := lru.New[string, struct{}](cfg.RecentQueriesCapacity)

	m := &QueryMetrics{
		methods:       make(map[Method]int64),
		topTerms:      topTerms,
		zeroResults:   NewCircularBuffer[string](cfg.ZeroResultsCapacity),
		latencies:     make(map[LatencyBucket]int64),
		startTime:     time.Now(),
		recentQueries: recentQueries,
		methodDelta:   make(map[Method]int64),
		termDelta:     make(map[string]int64),
		latencyDelta:  make(map[LatencyBucket]int64),
		store:         store,
		config:        cfg,
		stopCh:        make(chan struct{}),
	}

	if cfg.FlushInterval > 0 && store != nil {
		m.flushTicker = time.NewTicker(cfg.FlushInterval)
		go m.flushLoop()
	}

	return m
}

func (m *QueryMetrics) flushLoop() {
	for {
		select {
		case <-m.stopCh:
			return
		case <-m.flushTicker.C:
			_ = m.Flush()
		}
	}
}

// Record captures one retrieval. Non-blocking; persistence happens on
// the flush cycle.
func (m *QueryMetrics) Record(event QueryEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	m.methods[event.Method]++
	m.methodDelta[event.Method]++
	m.totalQueries++

	for _, term := range ExtractTerms(event.Query) {
		count, _ := m.topTerms.Get(term)
		m.topTerms.Add(term, count+1)
		m.termDelta[term]++
	}

	if event.IsZeroResult() {
		m.zeroResults.Add(event.Query)
		m.zeroResultCount++
		ts := event.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		m.pendingZero = append(m.pendingZero, zeroResult{query: event.Query, timestamp: ts})
	}

	bucket := LatencyToBucket(event.Latency)
	m.latencies[bucket]++
	m.latencyDelta[bucket]++

	hash := hashQuery(event.Query)
	if _, seen := m.recentQueries.Get(hash); seen {
		m.repeatCount++
	}
	m.recentQueries.Add(hash, struct{}{})
}

// hashQuery normalizes and hashes a query for repeat detection.
func hashQuery(query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:16])
}

// Snapshot returns the lifetime metrics collected so far.
func (m *QueryMetrics) Snapshot() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	methodCounts := make(map[Method]int64, len(m.methods))
	for k, v := range m.methods {
		methodCounts[k] = v
	}

	var topTerms []TermCount
	for _, key := range m.topTerms.Keys() {
		if count, ok := m.topTerms.Peek(key); ok {
			topTerms = append(topTerms, TermCount{Term: key, Count: count})
		}
	}
	sort.SliceStable(topTerms, func(i, j int) bool {
		return topTerms[i].Count > topTerms[j].Count
	})

	latencies := make(map[LatencyBucket]int64, len(m.latencies))
	for k, v := range m.latencies {
		latencies[k] = v
	}

	return &Snapshot{
		MethodCounts:        methodCounts,
		TopTerms:            topTerms,
		ZeroResultQueries:   m.zeroResults.Items(),
		LatencyDistribution: latencies,
		TotalQueries:        m.totalQueries,
		ZeroResultCount:     m.zeroResultCount,
		RepeatCount:         m.repeatCount,
		UniqueQueries:       int64(m.recentQueries.Len()),
		Since:               m.startTime,
	}
}

// Flush persists the unflushed window to the store and clears it. A
// failed flush drops that window; local telemetry tolerates the loss.
// Safe to call with no store configured.
func (m *QueryMetrics) Flush() error {
	if m.store == nil {
		return nil
	}

	m.mu.Lock()
	methodDelta := m.methodDelta
	termDelta := m.termDelta
	latencyDelta := m.latencyDelta
	pendingZero := m.pendingZero
	m.methodDelta = make(map[Method]int64)
	m.termDelta = make(map[string]int64)
	m.latencyDelta = make(map[LatencyBucket]int64)
	m.pendingZero = nil
	m.mu.Unlock()

	today := time.Now().Format("2006-01-02")

	if len(methodDelta) > 0 {
		if err := m.store.SaveMethodCounts(today, methodDelta); err != nil {
			return err
		}
	}
	if err := m.store.UpsertTermCounts(termDelta); err != nil {
		return err
	}
	if len(latencyDelta) > 0 {
		if err := m.store.SaveLatencyCounts(today, latencyDelta); err != nil {
			return err
		}
	}
	for _, zr := range pendingZero {
		if err := m.store.AddZeroResultQuery(zr.query, zr.timestamp); err != nil {
			return err
		}
	}
	return nil
}

// Close stops the flush loop, performs a final flush, and marks the
// collector closed. Subsequent Records are dropped.
func (m *QueryMetrics) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	if m.flushTicker != nil {
		m.flushTicker.Stop()
		close(m.stopCh)
	}

	return m.Flush()
}
