// Package validation is the retrieval quality harness. Queries are
// data-driven, loaded from testdata/queries.yaml, and run against a
// fixed report corpus under testdata/corpus, so expectations can be
// tuned without rebuilding the application.
package validation

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rigdocs/rigqa/internal/chunk"
	"github.com/rigdocs/rigqa/internal/dates"
	"github.com/rigdocs/rigqa/internal/embed"
	"github.com/rigdocs/rigqa/internal/ingest"
	"github.com/rigdocs/rigqa/internal/parse"
	"github.com/rigdocs/rigqa/internal/search"
	"github.com/rigdocs/rigqa/internal/store"
	"github.com/rigdocs/rigqa/internal/ui"
)

// validationTopK is the result cap for every validation query.
const validationTopK = 10

// QuerySpec defines one validation query with its expectations.
type QuerySpec struct {
	ID       string   `yaml:"id"`       // e.g. "T1-Q3"
	Name     string   `yaml:"name"`     // short human-readable name
	Query    string   `yaml:"query"`    // the question to retrieve for
	Mode     string   `yaml:"mode"`     // retrieval mode; empty means auto
	Document string   `yaml:"document"` // optional document filter
	Method   string   `yaml:"method"`   // required retrieval method, if set
	Expected []string `yaml:"expected"` // document names that must appear
	Absent   []string `yaml:"absent"`   // document names that must not appear
	Notes    string   `yaml:"notes"`    // optional explanation for maintainers
	Tier     int      `yaml:"-"`        // set programmatically from the section
}

// QueryConfig holds all validation queries loaded from YAML.
type QueryConfig struct {
	Tier1    []QuerySpec `yaml:"tier1"`
	Tier2    []QuerySpec `yaml:"tier2"`
	Negative []QuerySpec `yaml:"negative"`
}

var (
	queriesOnce sync.Once
	queriesData *QueryConfig
	queriesErr  error
)

// LoadQueries loads validation queries from testdata/queries.yaml.
// Results are cached after the first load.
func LoadQueries() (*QueryConfig, error) {
	queriesOnce.Do(func() {
		path, err := testdataPath("queries.yaml")
		if err != nil {
			queriesErr = err
			return
		}

		data, err := os.ReadFile(path)
		if err != nil {
			queriesErr = fmt.Errorf("failed to read queries file %s: %w", path, err)
			return
		}

		var cfg QueryConfig
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			queriesErr = fmt.Errorf("failed to parse queries YAML: %w", err)
			return
		}

		for i := range cfg.Tier1 {
			cfg.Tier1[i].Tier = 1
		}
		for i := range cfg.Tier2 {
			cfg.Tier2[i].Tier = 2
		}
		for i := range cfg.Negative {
			cfg.Negative[i].Tier = 0
		}

		queriesData = &cfg
	})

	return queriesData, queriesErr
}

// ResetQueries clears the cached queries (for testing).
func ResetQueries() {
	queriesOnce = sync.Once{}
	queriesData = nil
	queriesErr = nil
}

// Tier1Queries returns the date-anchored queries that must route
// through the exact date index.
func Tier1Queries() []QuerySpec {
	cfg, err := LoadQueries()
	if err != nil {
		return nil
	}
	return cfg.Tier1
}

// Tier2Queries returns the semantic paraphrase queries answered by
// dense retrieval.
func Tier2Queries() []QuerySpec {
	cfg, err := LoadQueries()
	if err != nil {
		return nil
	}
	return cfg.Tier2
}

// NegativeQueries returns queries that must not crash or must not
// surface the named documents.
func NegativeQueries() []QuerySpec {
	cfg, err := LoadQueries()
	if err != nil {
		return nil
	}
	return cfg.Negative
}

// TestResult captures the outcome of a single validation query.
type TestResult struct {
	Spec       QuerySpec     `json:"spec"`
	Passed     bool          `json:"passed"`
	Duration   time.Duration `json:"duration_ms"`
	Method     string        `json:"method"`
	TopResults []string      `json:"top_results"` // distinct document names, ranked
	MatchedAt  int           `json:"matched_at"`  // position of first expected match, -1 if none
	Error      string        `json:"error,omitempty"`
}

// ValidationResult captures results of a full validation run.
type ValidationResult struct {
	Timestamp   time.Time    `json:"timestamp"`
	Tier1       []TestResult `json:"tier1"`
	Tier2       []TestResult `json:"tier2"`
	Negative    []TestResult `json:"negative"`
	Tier1Pass   int          `json:"tier1_pass"`
	Tier1Total  int          `json:"tier1_total"`
	Tier2Pass   int          `json:"tier2_pass"`
	Tier2Total  int          `json:"tier2_total"`
	NegPass     int          `json:"negative_pass"`
	NegTotal    int          `json:"negative_total"`
	Embedder    string       `json:"embedder"`
	IndexChunks int          `json:"index_chunks"`
}

// Validator runs validation queries against a corpus ingested from
// testdata/corpus.
type Validator struct {
	manager  *store.Manager
	engine   *search.Engine
	embedder embed.Embedder
	chunks   int
}

// NewValidator ingests the validation corpus into dataDir and builds a
// retrieval engine over it. The static embedder keeps runs offline and
// deterministic.
func NewValidator(ctx context.Context, dataDir string) (*Validator, error) {
	corpusDir, err := testdataPath("corpus")
	if err != nil {
		return nil, err
	}

	manager, err := store.Open(dataDir, store.ManagerConfig{
		Dimensions: embed.StaticDimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open stores: %w", err)
	}

	embedder := embed.NewStaticEmbedder()
	renderer := ui.NewRenderer(ui.NewConfig(io.Discard, ui.WithForcePlain(true)))

	ingestor, err := ingest.New(ingest.Dependencies{
		Renderer: renderer,
		Parser:   parse.New(),
		Chunker:  chunk.NewReportChunker(500, 100, dates.NewExpander(nil)),
		Embedder: embedder,
		Store:    manager,
	}, ingest.Options{Workers: 2})
	if err != nil {
		_ = manager.Close()
		return nil, err
	}

	report, err := ingestor.IngestDir(ctx, corpusDir)
	if err != nil {
		_ = manager.Close()
		return nil, fmt.Errorf("failed to ingest validation corpus: %w", err)
	}
	if len(report.Errors) > 0 {
		_ = manager.Close()
		return nil, fmt.Errorf("validation corpus ingest skipped %d file(s)", len(report.Errors))
	}

	engine, err := search.NewEngine(
		manager.Chunks, manager.Vectors, manager.Keywords,
		embedder, search.EngineConfig{})
	if err != nil {
		_ = manager.Close()
		return nil, err
	}

	stats, err := manager.Stats(ctx)
	if err != nil {
		_ = manager.Close()
		return nil, err
	}

	return &Validator{
		manager:  manager,
		engine:   engine,
		embedder: embedder,
		chunks:   stats.Chunks,
	}, nil
}

// Close releases the validator's stores.
func (v *Validator) Close() error {
	if v.embedder != nil {
		_ = v.embedder.Close()
	}
	if v.manager != nil {
		return v.manager.Close()
	}
	return nil
}

// RunQuery executes a single validation query and evaluates its
// expectations.
func (v *Validator) RunQuery(ctx context.Context, spec QuerySpec) TestResult {
	start := time.Now()
	result := TestResult{Spec: spec, MatchedAt: -1}

	mode, err := search.ParseMode(spec.Mode)
	if err != nil {
		result.Error = err.Error()
		result.Duration = time.Since(start)
		return result
	}

	retrieval, err := v.engine.Retrieve(ctx, spec.Query, search.Options{
		TopK:     validationTopK,
		Mode:     mode,
		Document: spec.Document,
	})
	result.Duration = time.Since(start)

	if err != nil {
		// Negative specs tolerate retrieval errors.
		if spec.Tier == 0 {
			result.Passed = true
		} else {
			result.Error = err.Error()
		}
		return result
	}

	result.Method = string(retrieval.Method)
	result.TopResults = documentNames(retrieval)
	result.Passed, result.MatchedAt = evaluate(spec, result.Method, result.TopResults)
	return result
}

// RunAll executes every validation query and tallies the tiers.
func (v *Validator) RunAll(ctx context.Context) *ValidationResult {
	result := &ValidationResult{
		Timestamp:   time.Now(),
		Embedder:    v.embedder.ModelName(),
		IndexChunks: v.chunks,
	}

	for _, spec := range Tier1Queries() {
		tr := v.RunQuery(ctx, spec)
		result.Tier1 = append(result.Tier1, tr)
		result.Tier1Total++
		if tr.Passed {
			result.Tier1Pass++
		}
	}

	for _, spec := range Tier2Queries() {
		tr := v.RunQuery(ctx, spec)
		result.Tier2 = append(result.Tier2, tr)
		result.Tier2Total++
		if tr.Passed {
			result.Tier2Pass++
		}
	}

	for _, spec := range NegativeQueries() {
		tr := v.RunQuery(ctx, spec)
		result.Negative = append(result.Negative, tr)
		result.NegTotal++
		if tr.Passed {
			result.NegPass++
		}
	}

	return result
}

// evaluate applies a spec's expectations to retrieval output: the
// method must match when required, absent documents must stay absent,
// and at least one expected document must appear.
func evaluate(spec QuerySpec, method string, topResults []string) (bool, int) {
	matchedAt := -1
	for i, doc := range topResults {
		if matchesAny(doc, spec.Expected) {
			matchedAt = i
			break
		}
	}

	if spec.Method != "" && method != spec.Method {
		return false, matchedAt
	}
	for _, doc := range topResults {
		if matchesAny(doc, spec.Absent) {
			return false, matchedAt
		}
	}
	if len(spec.Expected) == 0 {
		return true, matchedAt
	}
	return matchedAt >= 0, matchedAt
}

// matchesAny reports whether a document name contains any of the listed
// names, so specs can omit extensions.
func matchesAny(doc string, names []string) bool {
	for _, name := range names {
		if strings.Contains(doc, name) {
			return true
		}
	}
	return false
}

// documentNames returns the ordered distinct source documents of a
// retrieval.
func documentNames(retrieval *search.Retrieval) []string {
	seen := make(map[string]struct{}, len(retrieval.Results))
	var names []string
	for _, r := range retrieval.Results {
		if r.Chunk == nil {
			continue
		}
		if _, ok := seen[r.Chunk.DocumentID]; ok {
			continue
		}
		seen[r.Chunk.DocumentID] = struct{}{}
		names = append(names, r.Chunk.DocumentID)
	}
	return names
}

// testdataPath resolves a path under this package's testdata directory.
func testdataPath(elem string) (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve package path")
	}
	return filepath.Join(filepath.Dir(filename), "testdata", elem), nil
}
