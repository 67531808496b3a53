// Package search routes questions to the right retrieval strategy. A
// deterministic classifier decides whether a question is date-oriented;
// the engine then retrieves through the keyword/date inverted index, the
// dense vector index, or both, with exact date hits preferred and dense
// similarity as the fallback.
package search

import (
	"fmt"
	"strings"

	"github.com/rigdocs/rigqa/internal/store"
)

// Method identifies which retrieval strategy produced a result set. It is
// reported verbatim in the answer contract.
type Method string

const (
	// MethodSemantic is dense vector retrieval for non-date questions.
	MethodSemantic Method = "semantic"

	// MethodHybrid is exact keyword/date index retrieval.
	MethodHybrid Method = "hybrid"

	// MethodSemanticFallback is dense retrieval after a date query found
	// nothing in the date index.
	MethodSemanticFallback Method = "semantic_fallback"

	// MethodFilenameFilter is dense retrieval constrained to one document.
	MethodFilenameFilter Method = "filename_filter"
)

// Mode selects the routing policy for a query.
type Mode string

const (
	// ModeAuto classifies the question and picks the strategy.
	ModeAuto Mode = "auto"

	// ModeSemantic always uses dense retrieval.
	ModeSemantic Mode = "semantic"

	// ModeHybrid prefers exact index hits: date path, then vocabulary
	// keywords, then dense fallback.
	ModeHybrid Mode = "hybrid"
)

// ParseMode converts a string to a Mode. Empty input selects ModeAuto.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ModeAuto, nil
	case "semantic", "semantic-only":
		return ModeSemantic, nil
	case "hybrid", "hybrid-only":
		return ModeHybrid, nil
	default:
		return ModeAuto, fmt.Errorf("invalid search mode %q (valid: auto, semantic, hybrid)", s)
	}
}

// Result is one retrieved chunk with its relevance score. Dense hits
// carry cosine similarity in [0,1]; exact keyword/date hits carry a
// constant 1.0. Scores are not comparable across methods.
type Result struct {
	Chunk *store.Chunk
	Score float64
}

// Retrieval is the outcome of routing one question.
type Retrieval struct {
	// Results are ranked descending by score; ties keep global
	// insertion order (Seq ascending).
	Results []Result

	// Method records which strategy produced the results.
	Method Method
}

// Options configures one retrieval.
type Options struct {
	// TopK caps the number of results. Non-positive selects the engine
	// default; values above the engine maximum are clamped.
	TopK int

	// Mode selects the routing policy. Empty means ModeAuto.
	Mode Mode

	// Document restricts dense retrieval to one document's chunks. When
	// set, the mode is ignored and the method is filename_filter.
	Document string
}

// EngineConfig configures the retrieval engine.
type EngineConfig struct {
	// DefaultTopK is the result count when the caller supplies none
	// (default: 3).
	DefaultTopK int

	// MaxTopK caps caller-supplied top-k values (default: 10).
	MaxTopK int
}

// DefaultConfig returns the standard engine configuration.
func DefaultConfig() EngineConfig {
	return EngineConfig{
		DefaultTopK: 3,
		MaxTopK:     10,
	}
}
