package qa

import "strings"

// CompletionPolicy decides whether a generated answer is complete or
// was cut off mid-thought and needs a continuation pass.
type CompletionPolicy interface {
	// IsComplete reports whether the answer needs no continuation.
	IsComplete(answer string) bool
}

// CompletionPolicyFunc adapts a function to a CompletionPolicy.
type CompletionPolicyFunc func(answer string) bool

// IsComplete calls f.
func (f CompletionPolicyFunc) IsComplete(answer string) bool { return f(answer) }

// truncationWordThreshold is the length above which an answer with no
// concluding word is treated as cut off.
const truncationWordThreshold = 100

var (
	// terminalPunctuation ends a complete sentence.
	terminalPunctuation = []string{".", "!", "?", ":"}

	// concludingWords signal a wrapped-up long answer.
	concludingWords = []string{"conclusion", "summary", "finally"}

	// danglingSuffixes end an answer mid-thought. Checked against the
	// raw answer, not the trimmed one, so trailing whitespace masks
	// them; only "..." can fire once the trimmed answer already ends in
	// terminal punctuation.
	danglingSuffixes = []string{"...", "and", "or", "but", "however"}
)

// HeuristicCompletion flags an answer as truncated when it does not
// end in terminal punctuation, when it runs past the word threshold
// without a concluding word, or when it trails off in an ellipsis or
// dangling conjunction.
type HeuristicCompletion struct{}

var _ CompletionPolicy = HeuristicCompletion{}

// IsComplete reports whether the answer shows no sign of truncation.
func (HeuristicCompletion) IsComplete(answer string) bool {
	if !hasAnySuffix(strings.TrimSpace(answer), terminalPunctuation) {
		return false
	}

	if len(strings.Fields(answer)) > truncationWordThreshold &&
		!containsAny(strings.ToLower(answer), concludingWords) {
		return false
	}

	return !hasAnySuffix(answer, danglingSuffixes)
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
