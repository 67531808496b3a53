package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	keywordanalyzer "github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/rigdocs/rigqa/internal/dates"
)

// defaultVocabulary is the built-in technical term list scanned against
// chunk content. Fixed once the index is built: changing the vocabulary
// requires a reindex, so it is not a per-query parameter.
var defaultVocabulary = []string{
	"drilling", "hole", "section", "wbm", "bbls", "sweep", "circulate",
	"weight", "trip", "shoe", "rams", "bottom", "pill", "gyro", "pull",
}

// DefaultVocabulary returns a copy of the built-in vocabulary.
func DefaultVocabulary() []string {
	out := make([]string, len(defaultVocabulary))
	copy(out, defaultVocabulary)
	return out
}

// KeywordConfig configures the keyword/date inverted index.
type KeywordConfig struct {
	// Vocabulary is the fixed technical term list. Empty uses the
	// built-in drilling-report vocabulary.
	Vocabulary []string

	// Months overrides the month table driving date variant expansion.
	// Nil uses the standard English table.
	Months dates.MonthTable
}

// BleveKeywordIndex implements KeywordIndex on a Bleve scorch index.
// Every field uses the keyword analyzer: variant expansion, lowercasing
// and vocabulary containment all happen before terms reach Bleve, so
// indexed terms and query terms are compared byte for byte.
type BleveKeywordIndex struct {
	mu         sync.RWMutex
	index      bleve.Index
	path       string
	vocabulary []string
	expander   *dates.Expander
	closed     bool
}

// keywordDoc is the document structure for Bleve indexing. One doc per
// chunk, keyed by chunk ID.
type keywordDoc struct {
	Dates      []string `json:"dates"`
	Keywords   []string `json:"keywords"`
	DocumentID string   `json:"document_id"`
	Ordinal    int      `json:"ordinal"`
}

// Verify interface implementation
var _ KeywordIndex = (*BleveKeywordIndex)(nil)

// validateIndexIntegrity checks if a Bleve index is valid before
// opening. Returns nil if valid, an error describing the corruption if
// not. Lets the caller clear and rebuild instead of failing every run.
func validateIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Index doesn't exist, will be created
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}

	return nil
}

// isCorruptionError checks if an error indicates Bleve index corruption.
func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "unexpected end of JSON") ||
		strings.Contains(errStr, "error parsing mapping JSON") ||
		strings.Contains(errStr, "failed to load segment") ||
		strings.Contains(errStr, "error opening bolt") ||
		strings.Contains(errStr, "no such file or directory") ||
		err == bleve.ErrorIndexMetaCorrupt
}

// NewBleveKeywordIndex creates or opens the keyword/date index at path.
// If path is empty, creates an in-memory index for testing. A corrupted
// on-disk index is cleared and recreated; the chunks must then be
// reindexed.
func NewBleveKeywordIndex(path string, cfg KeywordConfig) (*BleveKeywordIndex, error) {
	vocabulary := cfg.Vocabulary
	if len(vocabulary) == 0 {
		vocabulary = DefaultVocabulary()
	}
	lowered := make([]string, len(vocabulary))
	for i, term := range vocabulary {
		lowered[i] = strings.ToLower(term)
	}

	indexMapping := keywordIndexMapping()

	var idx bleve.Index
	var err error
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}

		if validErr := validateIndexIntegrity(path); validErr != nil {
			slog.Warn("keyword_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))

			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("keyword index corrupted at %s and cannot remove: %w (original error: %v)",
					path, removeErr, validErr)
			}
			slog.Info("keyword_index_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, please reindex"))
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		} else if err != nil && isCorruptionError(err) {
			slog.Warn("keyword_index_open_failed",
				slog.String("path", path),
				slog.String("error", err.Error()))

			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("keyword index corrupted, cannot clear: %w (original: %v)", removeErr, err)
			}
			slog.Info("keyword_index_cleared",
				slog.String("path", path),
				slog.String("reason", "open failed with corruption, please reindex"))

			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open index: %w", err)
	}

	return &BleveKeywordIndex{
		index:      idx,
		path:       path,
		vocabulary: lowered,
		expander:   dates.NewExpander(cfg.Months),
	}, nil
}

// keywordIndexMapping builds the Bleve mapping. Dates and keywords
// arrive pre-normalized, so no tokenization happens inside Bleve.
func keywordIndexMapping() *mapping.IndexMappingImpl {
	datesField := bleve.NewTextFieldMapping()
	datesField.Analyzer = keywordanalyzer.Name
	datesField.Store = false
	datesField.IncludeInAll = false

	keywordsField := bleve.NewTextFieldMapping()
	keywordsField.Analyzer = keywordanalyzer.Name
	keywordsField.Store = false
	keywordsField.IncludeInAll = false

	documentField := bleve.NewTextFieldMapping()
	documentField.Analyzer = keywordanalyzer.Name
	documentField.Store = true
	documentField.IncludeInAll = false

	ordinalField := bleve.NewNumericFieldMapping()
	ordinalField.Store = true
	ordinalField.IncludeInAll = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("dates", datesField)
	doc.AddFieldMappingsAt("keywords", keywordsField)
	doc.AddFieldMappingsAt("document_id", documentField)
	doc.AddFieldMappingsAt("ordinal", ordinalField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = doc
	indexMapping.DefaultAnalyzer = keywordanalyzer.Name
	return indexMapping
}

// Index adds chunks to the inverted index in one batch.
func (b *BleveKeywordIndex) Index(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("index is closed")
	}

	batch := b.index.NewBatch()
	for _, chunk := range chunks {
		doc := keywordDoc{
			Dates:      b.dateTerms(chunk.Content),
			Keywords:   b.keywordTerms(chunk.Content),
			DocumentID: chunk.DocumentID,
			Ordinal:    chunk.Ordinal,
		}
		if err := batch.Index(chunk.ID, doc); err != nil {
			return fmt.Errorf("failed to index chunk %s: %w", chunk.ID, err)
		}
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

// dateTerms expands every date match in the original-case content into
// its full lowercase variant set. Extraction runs on the original case:
// lowercasing first would blind the capitalized month patterns.
func (b *BleveKeywordIndex) dateTerms(content string) []string {
	set := make(map[string]struct{})
	for _, variant := range b.expander.ExtractDates(content) {
		set[strings.ToLower(variant)] = struct{}{}
	}
	return sortedTerms(set)
}

// keywordTerms returns vocabulary terms contained in the lowercased
// content. Substring containment, so "drilling" also hits "predrilling"
// the way a report reader would expect.
func (b *BleveKeywordIndex) keywordTerms(content string) []string {
	lowered := strings.ToLower(content)
	var terms []string
	for _, term := range b.vocabulary {
		if strings.Contains(lowered, term) {
			terms = append(terms, term)
		}
	}
	return terms
}

// SearchByDate returns IDs of chunks whose date entries match any
// variant of a date term extracted from the query. An empty result
// triggers semantic fallback in the caller, never an error.
func (b *BleveKeywordIndex) SearchByDate(ctx context.Context, queryStr string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("index is closed")
	}

	terms := b.expander.QueryDateTerms(queryStr)
	if len(terms) == 0 {
		return nil, nil
	}

	// Expand query terms through the same variant closure used at
	// index time so any rendering matches any other.
	set := make(map[string]struct{})
	for _, term := range terms {
		for _, variant := range b.expander.Variants(term) {
			set[strings.ToLower(variant)] = struct{}{}
		}
	}

	queries := make([]query.Query, 0, len(set))
	for _, variant := range sortedTerms(set) {
		tq := bleve.NewTermQuery(variant)
		tq.SetField("dates")
		queries = append(queries, tq)
	}

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(queries...))
	req.Size = b.searchSize()

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("date search failed: %w", err)
	}

	ids := make([]string, 0, len(result.Hits))
	for _, hit := range result.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// SearchKeywords returns IDs of chunks matching vocabulary terms
// present in the query, ranked by how many of the query's terms each
// chunk matched. One term query per vocabulary hit; a single
// disjunction would rank by score, not hit count.
func (b *BleveKeywordIndex) SearchKeywords(ctx context.Context, queryStr string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("index is closed")
	}

	lowered := strings.ToLower(queryStr)
	var terms []string
	for _, term := range b.vocabulary {
		if strings.Contains(lowered, term) {
			terms = append(terms, term)
		}
	}
	if len(terms) == 0 {
		return nil, nil
	}

	counts := make(map[string]int)
	size := b.searchSize()
	for _, term := range terms {
		tq := bleve.NewTermQuery(term)
		tq.SetField("keywords")

		req := bleve.NewSearchRequest(tq)
		req.Size = size

		result, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("keyword search failed: %w", err)
		}
		for _, hit := range result.Hits {
			counts[hit.ID]++
		}
	}

	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if counts[ids[i]] != counts[ids[j]] {
			return counts[ids[i]] > counts[ids[j]]
		}
		return ids[i] < ids[j]
	})
	return ids, nil
}

// DocCount returns the number of indexed chunks.
func (b *BleveKeywordIndex) DocCount() (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, fmt.Errorf("index is closed")
	}
	return b.index.DocCount()
}

// AllIDs returns every indexed chunk ID via a match-all query.
func (b *BleveKeywordIndex) AllIDs() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("index is closed")
	}

	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = b.searchSize()

	result, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexed ids: %w", err)
	}

	ids := make([]string, 0, len(result.Hits))
	for _, hit := range result.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// searchSize returns the request size covering every indexed chunk.
// Caller holds at least a read lock.
func (b *BleveKeywordIndex) searchSize() int {
	docCount, _ := b.index.DocCount()
	return int(docCount)
}

// Close closes the index. Idempotent.
func (b *BleveKeywordIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}

func sortedTerms(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for term := range set {
		out = append(out, term)
	}
	sort.Strings(out)
	return out
}
