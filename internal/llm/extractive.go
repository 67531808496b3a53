package llm

import (
	"context"
	"regexp"
	"sort"
	"strings"
)

// contextMarker and questionMarker delimit the retrieved-context block
// inside the composed prompts.
const (
	contextMarker  = "Context:"
	questionMarker = "\nQuestion:"
)

// summaryStopWords are excluded from frequency scoring.
var summaryStopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"of": true, "to": true, "in": true, "on": true, "at": true,
	"for": true, "with": true, "was": true, "were": true, "is": true,
	"are": true, "be": true, "been": true, "it": true, "as": true,
	"by": true, "from": true, "that": true, "this": true, "then": true,
	"please": true, "answer": true, "question": true, "context": true,
	"following": true, "based": true, "documents": true,
}

// wordRegex matches scoring tokens
var wordRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

// ExtractiveGenerator answers by extracting the highest-signal sentences
// from the retrieved context. It needs no model and no network, so it is
// always available; answers are quotes from the reports rather than prose.
type ExtractiveGenerator struct{}

// Verify interface implementation at compile time
var _ Generator = (*ExtractiveGenerator)(nil)

// NewExtractiveGenerator creates an extractive generator.
func NewExtractiveGenerator() *ExtractiveGenerator {
	return &ExtractiveGenerator{}
}

// Complete extracts the top frequency-ranked sentences from the prompt's
// context block, within the token budget, in their original order.
func (g *ExtractiveGenerator) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	block := contextBlock(prompt)
	sentences := splitSentences(block)
	if len(sentences) == 0 {
		return "I cannot find this information in the provided documents.", nil
	}

	freq := wordFrequencies(sentences)

	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, len(sentences))
	for i, s := range sentences {
		var score float64
		for _, token := range scoringTokens(s) {
			score += float64(freq[token])
		}
		ranked[i] = scored{idx: i, score: score}
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].score > ranked[b].score
	})

	// Rough words-per-token conversion; always keep at least one sentence.
	budget := maxTokens * 3 / 4
	selected := map[int]bool{}
	used := 0
	for _, r := range ranked {
		words := len(strings.Fields(sentences[r.idx]))
		if len(selected) > 0 && used+words > budget {
			continue
		}
		selected[r.idx] = true
		used += words
		if used >= budget {
			break
		}
	}

	var out []string
	for i, s := range sentences {
		if selected[i] {
			out = append(out, s)
		}
	}
	return strings.Join(out, " "), nil
}

// contextBlock returns the text between the Context: and Question: markers,
// or the whole prompt when the markers are absent.
func contextBlock(prompt string) string {
	start := strings.Index(prompt, contextMarker)
	if start < 0 {
		return strings.TrimSpace(prompt)
	}
	rest := prompt[start+len(contextMarker):]

	if end := strings.Index(rest, questionMarker); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// splitSentences breaks text into sentences on terminal punctuation.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			atEnd := i == len(runes)-1
			nextIsSpace := !atEnd && (runes[i+1] == ' ' || runes[i+1] == '\n' || runes[i+1] == '\t')
			if atEnd || nextIsSpace {
				if s := strings.TrimSpace(current.String()); s != "" {
					sentences = append(sentences, s)
				}
				current.Reset()
			}
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// wordFrequencies counts stopword-filtered tokens across all sentences.
func wordFrequencies(sentences []string) map[string]int {
	freq := make(map[string]int)
	for _, s := range sentences {
		for _, token := range scoringTokens(s) {
			freq[token]++
		}
	}
	return freq
}

// scoringTokens extracts the lowercased non-stopword tokens of a sentence.
func scoringTokens(s string) []string {
	words := wordRegex.FindAllString(strings.ToLower(s), -1)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if !summaryStopWords[w] {
			tokens = append(tokens, w)
		}
	}
	return tokens
}

// Name returns the provider identifier
func (g *ExtractiveGenerator) Name() string {
	return "extractive"
}

// Available always reports true
func (g *ExtractiveGenerator) Available(_ context.Context) bool {
	return true
}

// Close releases resources
func (g *ExtractiveGenerator) Close() error {
	return nil
}
