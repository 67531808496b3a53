// Package chunk splits report text into overlapping passages sized for
// retrieval. The chunker is date-aware: daily reports interleave date
// headers with activity lines, and a naive splitter routinely separates an
// activity from the only sentence that says when it happened. Tracking the
// most recent date-bearing sentence and carrying it across chunk
// boundaries keeps every passage anchored to its date.
package chunk

import (
	"strings"
	"unicode/utf8"

	"github.com/rigdocs/rigqa/internal/dates"
)

// Passage length defaults, in characters.
const (
	DefaultPassageSize = 500
	DefaultOverlap     = 100
)

// Passage is one retrievable slice of a document.
type Passage struct {
	// Text is the passage content, date-annotated, possibly prefixed
	// with an injected date-context line.
	Text string

	// DateContext is the most recent date-bearing sentence at the time
	// the passage was emitted; empty when the document carries no dates.
	DateContext string
}

// Chunker splits raw document text into ordered passages.
type Chunker interface {
	Chunk(text string) []Passage
}

// ReportChunker implements date-aware chunking with fixed size and overlap.
type ReportChunker struct {
	size     int
	overlap  int
	expander *dates.Expander
}

// NewReportChunker creates a chunker emitting passages of about size
// characters with the given overlap. Non-positive values fall back to the
// defaults. The expander annotates dates and detects date-bearing
// sentences; a nil expander gets the default month table.
func NewReportChunker(size, overlap int, expander *dates.Expander) *ReportChunker {
	if size <= 0 {
		size = DefaultPassageSize
	}
	if overlap <= 0 {
		overlap = DefaultOverlap
	}
	if expander == nil {
		expander = dates.NewExpander(nil)
	}
	return &ReportChunker{size: size, overlap: overlap, expander: expander}
}

// Chunk splits text into passages:
//
//  1. Dates are annotated inline with their variant renderings so the
//     synonyms travel with the surrounding snippet.
//  2. The text is split into sentences on terminal punctuation.
//  3. Sentences accumulate into a buffer; a sentence containing a date
//     becomes the current date context.
//  4. When the buffer would overflow, it is emitted - prefixed with a
//     "Date context:" line if its date anchor is not already inside it -
//     and the next buffer is re-seeded with the date context plus the
//     tail of the previous buffer.
//
// Empty input yields nil. Documents without dates chunk by length alone
// and never gain context lines.
func (c *ReportChunker) Chunk(text string) []Passage {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	annotated := c.expander.Annotate(text)
	sentences := splitSentences(annotated)

	var passages []Passage
	var current string
	var dateContext string

	for _, sentence := range sentences {
		if c.expander.HasDate(sentence) {
			dateContext = sentence
		}

		if current != "" && runeLen(current)+runeLen(sentence) > c.size {
			passages = append(passages, emit(current, dateContext))
			current = dateContext + " " + tail(current, c.overlap) + " " + sentence
		} else {
			current += " " + sentence
		}
	}

	if strings.TrimSpace(current) != "" {
		passages = append(passages, Passage{
			Text:        strings.TrimSpace(current),
			DateContext: dateContext,
		})
	}

	return passages
}

// emit finalizes an overflowing buffer. The date context is injected as an
// explicit line only when the buffer lost its anchor sentence.
func emit(buffer, dateContext string) Passage {
	text := buffer
	if dateContext != "" && !strings.Contains(buffer, dateContext) {
		text = "Date context: " + dateContext + "\n" + buffer
	}
	return Passage{
		Text:        strings.TrimSpace(text),
		DateContext: dateContext,
	}
}

// tail returns the last n runes of s.
func tail(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// splitSentences splits after terminal punctuation followed by whitespace,
// consuming the whitespace. Decimal points ("weight 10.2") don't split
// because no whitespace follows them.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			j := i + 1
			if j >= len(text) || !isSpace(text[j]) {
				continue
			}
			out = append(out, text[start:i+1])
			for j < len(text) && isSpace(text[j]) {
				j++
			}
			start = j
			i = j - 1
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

var _ Chunker = (*ReportChunker)(nil)
