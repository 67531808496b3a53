package search

import (
	"regexp"
	"strings"
)

// Date-shape patterns for query classification. A question matching any
// of these goes to the date index regardless of phrasing.
// Compiled at package init.
var (
	// 6-Sept, 15-December
	classifierDayMonthPattern = regexp.MustCompile(`(?i)\b\d{1,2}-[A-Za-z]{3,9}\b`)

	// Sept 6, December 15
	classifierMonthDayPattern = regexp.MustCompile(`(?i)\b[A-Za-z]{3,9}\s+\d{1,2}\b`)

	// 6/9/2024
	classifierSlashPattern = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`)
)

// defaultDateIndicators are the phrases that mark a question as
// date-oriented. Matched by substring containment against the
// lowercased question; "on " and "date" are broad on purpose, a false
// positive only adds a date-index probe before dense fallback.
var defaultDateIndicators = []string{
	"what was done on",
	"activities on",
	"happened on",
	"occurred on",
	"on ",
	"date",
	"what took place on",
	"events on",
	"work on",
}

// DefaultDateIndicators returns a copy of the built-in indicator phrases.
func DefaultDateIndicators() []string {
	out := make([]string, len(defaultDateIndicators))
	copy(out, defaultDateIndicators)
	return out
}

// Classifier decides whether a question is date-oriented. The decision is
// a deterministic boolean OR over phrasal indicators and date-shape
// patterns: no model, no ordering effects, no state.
type Classifier struct {
	indicators []string
}

// NewClassifier creates a classifier over the given indicator phrases.
// The list is copied and lowercased; nil or empty uses the built-ins.
func NewClassifier(indicators []string) *Classifier {
	if len(indicators) == 0 {
		indicators = defaultDateIndicators
	}
	lowered := make([]string, len(indicators))
	for i, phrase := range indicators {
		lowered[i] = strings.ToLower(phrase)
	}
	return &Classifier{indicators: lowered}
}

// IsDateQuery reports whether the question asks about a date: its
// lowercased text contains any indicator phrase, or any date shape
// appears directly in the text.
func (c *Classifier) IsDateQuery(question string) bool {
	lower := strings.ToLower(question)
	for _, indicator := range c.indicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}

	return classifierDayMonthPattern.MatchString(question) ||
		classifierMonthDayPattern.MatchString(question) ||
		classifierSlashPattern.MatchString(question)
}
