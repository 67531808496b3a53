package telemetry

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

const zeroResultRetention = 100

// telemetrySchema holds one DDL statement per table. All tables are
// append-mostly aggregates, small enough to share the chunk store's
// database file.
var telemetrySchema = []string{
	`CREATE TABLE IF NOT EXISTS query_method_stats (
		date   TEXT NOT NULL,
		method TEXT NOT NULL,
		count  INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, method)
	)`,
	`CREATE TABLE IF NOT EXISTS query_terms (
		term      TEXT PRIMARY KEY,
		count     INTEGER NOT NULL DEFAULT 1,
		last_seen TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_query_terms_count ON query_terms(count DESC)`,
	`CREATE TABLE IF NOT EXISTS zero_result_queries (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		query     TEXT NOT NULL,
		timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS query_latency_stats (
		date   TEXT NOT NULL,
		bucket TEXT NOT NULL,
		count  INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, bucket)
	)`,
}

// SQLiteMetricsStore implements MetricsStore on SQLite. It shares the
// chunk store's database file; WAL mode permits the second connection.
type SQLiteMetricsStore struct {
	db     *sql.DB
	ownsDB bool
}

// Verify interface implementation at compile time
var _ MetricsStore = (*SQLiteMetricsStore)(nil)

// NewSQLiteMetricsStore wraps an existing connection. The caller keeps
// ownership; Close leaves the connection open.
func NewSQLiteMetricsStore(db *sql.DB) (*SQLiteMetricsStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if err := InitTelemetrySchema(db); err != nil {
		return nil, err
	}
	return &SQLiteMetricsStore{db: db}, nil
}

// OpenSQLiteMetricsStore opens its own connection to the database at
// path and creates the telemetry tables if needed. Close closes the
// connection.
func OpenSQLiteMetricsStore(path string) (*SQLiteMetricsStore, error) {
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open telemetry database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if err := InitTelemetrySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteMetricsStore{db: db, ownsDB: true}, nil
}

// InitTelemetrySchema creates the telemetry tables if they don't exist.
func InitTelemetrySchema(db *sql.DB) error {
	for _, ddl := range telemetrySchema {
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("create telemetry schema: %w", err)
		}
	}
	return nil
}

// upsertCounts runs the given upsert once per map entry, all inside a
// single transaction. lead holds arguments bound before the key (the
// date column for the daily tables).
func upsertCounts[K ~string](db *sql.DB, query string, counts map[K]int64, lead ...any) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for key, count := range counts {
		args := append(append([]any{}, lead...), string(key), count)
		if _, err := stmt.Exec(args...); err != nil {
			return fmt.Errorf("upsert count: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// sumByKey collects a two-column (key, total) result set into a map.
func sumByKey[K ~string](db *sql.DB, query string, args ...any) (map[K]int64, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[K]int64)
	for rows.Next() {
		var key string
		var total int64
		if err := rows.Scan(&key, &total); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		counts[K(key)] = total
	}
	return counts, rows.Err()
}

// SaveMethodCounts upserts daily retrieval method counts.
func (s *SQLiteMetricsStore) SaveMethodCounts(date string, counts map[Method]int64) error {
	return upsertCounts(s.db, `
		INSERT INTO query_method_stats (date, method, count)
		VALUES (?, ?, ?)
		ON CONFLICT(date, method) DO UPDATE SET count = count + excluded.count
	`, counts, date)
}

// GetMethodCounts sums method counts over an inclusive date range.
func (s *SQLiteMetricsStore) GetMethodCounts(from, to string) (map[Method]int64, error) {
	counts, err := sumByKey[Method](s.db, `
		SELECT method, SUM(count) AS total
		FROM query_method_stats
		WHERE date >= ? AND date <= ?
		GROUP BY method
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query method counts: %w", err)
	}
	return counts, nil
}

// UpsertTermCounts adds to term frequency counts.
func (s *SQLiteMetricsStore) UpsertTermCounts(terms map[string]int64) error {
	if len(terms) == 0 {
		return nil
	}
	return upsertCounts(s.db, `
		INSERT INTO query_terms (term, count, last_seen)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(term) DO UPDATE SET
			count = count + excluded.count,
			last_seen = CURRENT_TIMESTAMP
	`, terms)
}

// GetTopTerms returns the top N terms by frequency.
func (s *SQLiteMetricsStore) GetTopTerms(limit int) ([]TermCount, error) {
	rows, err := s.db.Query(`
		SELECT term, count
		FROM query_terms
		ORDER BY count DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query top terms: %w", err)
	}
	defer rows.Close()

	var terms []TermCount
	for rows.Next() {
		var tc TermCount
		if err := rows.Scan(&tc.Term, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		terms = append(terms, tc)
	}
	return terms, rows.Err()
}

// AddZeroResultQuery records a query that returned nothing, keeping at
// most the retention limit of recent entries.
func (s *SQLiteMetricsStore) AddZeroResultQuery(query string, timestamp time.Time) error {
	if _, err := s.db.Exec(`
		INSERT INTO zero_result_queries (query, timestamp)
		VALUES (?, ?)
	`, query, timestamp); err != nil {
		return fmt.Errorf("insert zero-result query: %w", err)
	}

	if _, err := s.db.Exec(`
		DELETE FROM zero_result_queries
		WHERE id NOT IN (
			SELECT id FROM zero_result_queries
			ORDER BY id DESC
			LIMIT ?
		)
	`, zeroResultRetention); err != nil {
		return fmt.Errorf("trim zero-result queries: %w", err)
	}
	return nil
}

// GetZeroResultQueries returns recent zero-result queries, newest first.
func (s *SQLiteMetricsStore) GetZeroResultQueries(limit int) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT query
		FROM zero_result_queries
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query zero-result queries: %w", err)
	}
	defer rows.Close()

	var queries []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

// SaveLatencyCounts upserts daily latency histogram counts.
func (s *SQLiteMetricsStore) SaveLatencyCounts(date string, counts map[LatencyBucket]int64) error {
	return upsertCounts(s.db, `
		INSERT INTO query_latency_stats (date, bucket, count)
		VALUES (?, ?, ?)
		ON CONFLICT(date, bucket) DO UPDATE SET count = count + excluded.count
	`, counts, date)
}

// GetLatencyCounts sums latency counts over an inclusive date range.
func (s *SQLiteMetricsStore) GetLatencyCounts(from, to string) (map[LatencyBucket]int64, error) {
	counts, err := sumByKey[LatencyBucket](s.db, `
		SELECT bucket, SUM(count) AS total
		FROM query_latency_stats
		WHERE date >= ? AND date <= ?
		GROUP BY bucket
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query latency counts: %w", err)
	}
	return counts, nil
}

// Close releases the connection when this store owns it.
func (s *SQLiteMetricsStore) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}
