// Package dates implements date recognition and variant expansion for
// report text. Free-text reports render the same calendar date many ways
// ("6-Sept", "Sept 6", "6 September"); the Expander maps any recognized
// rendering to the full set of equivalent strings so the date index and
// date queries meet on common ground. The same expansion runs at index
// time and query time - asymmetry here silently breaks every date lookup.
package dates

import (
	"regexp"
	"sort"
	"strings"
)

// Date shape patterns. These are fixed by the retrieval contract; only the
// month table is configurable.
var (
	// 6-Sept, 15-December
	dayMonthHyphenPattern = regexp.MustCompile(`\b\d{1,2}-[A-Za-z]{3,9}\b`)

	// Sept 6, December 15
	monthDayPattern = regexp.MustCompile(`\b[A-Za-z]{3,9}\s+\d{1,2}\b`)

	// 6/9/2024
	slashPattern = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`)

	// September 6, 2024
	monthDayYearPattern = regexp.MustCompile(`\b[A-Za-z]{3,9}\s+\d{1,2},?\s+\d{4}\b`)

	// 6 September (query side only; documents write day-first with a hyphen)
	dayMonthSpacePattern = regexp.MustCompile(`\b\d{1,2}\s+[A-Za-z]{3,9}\b`)

	// "on 6-Sept" / "on Sept 6" phrasal forms
	onDayMonthPattern = regexp.MustCompile(`(?i)\bon\s+(\d{1,2}-[A-Za-z]{3,9})\b`)
	onMonthDayPattern = regexp.MustCompile(`(?i)\bon\s+([A-Za-z]{3,9}\s+\d{1,2})\b`)
)

// textPatterns are the shapes recognized in document text, in match
// precedence order (longer year-bearing shape first so annotation prefers
// the fuller match).
var textPatterns = []*regexp.Regexp{
	monthDayYearPattern,
	dayMonthHyphenPattern,
	monthDayPattern,
	slashPattern,
}

// MonthTable maps a three-letter month key to the written forms it expands
// to, full name first. Lookups truncate the candidate month to three
// letters, so "Sept" and "September" both resolve through the "sep" entry.
type MonthTable map[string][]string

// DefaultMonthTable returns the standard English month table.
func DefaultMonthTable() MonthTable {
	return MonthTable{
		"jan": {"january", "jan"},
		"feb": {"february", "feb"},
		"mar": {"march", "mar"},
		"apr": {"april", "apr"},
		"may": {"may"},
		"jun": {"june", "jun"},
		"jul": {"july", "jul"},
		"aug": {"august", "aug"},
		"sep": {"september", "sept", "sep"},
		"oct": {"october", "oct"},
		"nov": {"november", "nov"},
		"dec": {"december", "dec"},
	}
}

// Expander generates date variants from an immutable month table.
// All methods are pure; Expander is safe for concurrent use.
type Expander struct {
	months MonthTable

	// Co-occurrence patterns built from the month table, used as a
	// second-chance extractor on queries with no explicit date shape.
	monthThenDay *regexp.Regexp
	dayThenMonth *regexp.Regexp
}

// NewExpander creates an Expander over the given month table. The table is
// copied; later mutation of the argument does not affect the Expander.
func NewExpander(months MonthTable) *Expander {
	if months == nil {
		months = DefaultMonthTable()
	}
	copied := make(MonthTable, len(months))
	forms := make([]string, 0, len(months)*2)
	for key, variants := range months {
		copied[key] = append([]string(nil), variants...)
		forms = append(forms, variants...)
	}

	// Longest form first so "september" is not half-consumed by "sep".
	sort.Slice(forms, func(i, j int) bool {
		if len(forms[i]) != len(forms[j]) {
			return len(forms[i]) > len(forms[j])
		}
		return forms[i] < forms[j]
	})
	alt := strings.Join(forms, "|")

	return &Expander{
		months:       copied,
		monthThenDay: regexp.MustCompile(`\b(` + alt + `)\s*(\d{1,2})\b`),
		dayThenMonth: regexp.MustCompile(`\b(\d{1,2})\s*(` + alt + `)\b`),
	}
}

// Matches returns every date-shaped substring of text, leftmost-longest,
// without overlap.
func (e *Expander) Matches(text string) []string {
	spans := e.matchSpans(text)
	out := make([]string, 0, len(spans))
	for _, s := range spans {
		out = append(out, text[s[0]:s[1]])
	}
	return out
}

// HasDate reports whether text contains any recognized date shape.
func (e *Expander) HasDate(text string) bool {
	for _, p := range textPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// ExtractDates returns the deduplicated union of the variant sets of every
// date match in text, sorted. This is the index-time closure: a chunk
// mentioning "6-Sept" is findable under "september 6" and every other
// equivalent rendering.
func (e *Expander) ExtractDates(text string) []string {
	set := make(map[string]struct{})
	for _, m := range e.Matches(text) {
		for _, v := range e.Variants(m) {
			set[v] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// QueryDateTerms extracts date-like terms from a question. It applies the
// document shapes plus the day-first space shape and the "on <date>"
// phrasal forms; when none match, it falls back to a month-name/day-number
// co-occurrence scan in either order. The returned terms are raw (not
// expanded); callers expand each through Variants before lookup.
func (e *Expander) QueryDateTerms(query string) []string {
	set := make(map[string]struct{})

	for _, p := range textPatterns {
		for _, m := range p.FindAllString(query, -1) {
			set[m] = struct{}{}
		}
	}
	for _, m := range dayMonthSpacePattern.FindAllString(query, -1) {
		set[m] = struct{}{}
	}
	for _, p := range []*regexp.Regexp{onDayMonthPattern, onMonthDayPattern} {
		for _, groups := range p.FindAllStringSubmatch(query, -1) {
			set[groups[1]] = struct{}{}
		}
	}

	if len(set) == 0 {
		lower := strings.ToLower(query)
		for _, groups := range e.monthThenDay.FindAllStringSubmatch(lower, -1) {
			set[groups[1]+" "+groups[2]] = struct{}{}
		}
		for _, groups := range e.dayThenMonth.FindAllStringSubmatch(lower, -1) {
			set[groups[1]+" "+groups[2]] = struct{}{}
		}
	}

	return sortedKeys(set)
}

// Annotate rewrites text so that every date match is followed by its other
// variant renderings in parentheses, e.g. "6-Sept" becomes
// "6-Sept (6 September | Sept 6 | ...)". Chunking the annotated text keeps
// the synonyms physically next to the activity they describe. Matches with
// no extra variants (slash dates, unrecognized months) are left untouched.
func (e *Expander) Annotate(text string) string {
	spans := e.matchSpans(text)
	if len(spans) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text) + len(text)/2)
	prev := 0
	for _, s := range spans {
		match := text[s[0]:s[1]]
		others := e.otherVariants(match)
		b.WriteString(text[prev:s[1]])
		if len(others) > 0 {
			b.WriteString(" (")
			b.WriteString(strings.Join(others, " | "))
			b.WriteString(")")
		}
		prev = s[1]
	}
	b.WriteString(text[prev:])
	return b.String()
}

// matchSpans collects non-overlapping [start,end) spans across all text
// patterns, preferring leftmost then longest matches.
func (e *Expander) matchSpans(text string) [][2]int {
	var all [][2]int
	for _, p := range textPatterns {
		for _, loc := range p.FindAllStringIndex(text, -1) {
			all = append(all, [2]int{loc[0], loc[1]})
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i][0] != all[j][0] {
			return all[i][0] < all[j][0]
		}
		return all[i][1] > all[j][1]
	})

	var out [][2]int
	lastEnd := -1
	for _, s := range all {
		if s[0] < lastEnd {
			continue
		}
		out = append(out, s)
		lastEnd = s[1]
	}
	return out
}

// otherVariants returns the variants of match excluding match itself.
func (e *Expander) otherVariants(match string) []string {
	variants := e.Variants(match)
	out := variants[:0:0]
	for _, v := range variants {
		if v != match {
			out = append(out, v)
		}
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
