package qa

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeuristicCompletion_IsComplete(t *testing.T) {
	// 9 words per repeat, 108 words total.
	long := strings.Repeat("circulated the hole with weighted mud while monitoring returns ", 12)

	tests := []struct {
		name     string
		answer   string
		complete bool
	}{
		{"terminal period", "Circulated WBM at 10.2 ppg.", true},
		{"terminal question mark", "Was the casing shoe tested?", true},
		{"terminal exclamation", "Well control drill passed!", true},
		{"terminal colon", "The crew performed the following:", true},
		{"no terminal punctuation", "Drilled ahead to 2500 ft", false},
		{"empty", "", false},
		{"whitespace only", "   \n", false},
		{"ellipsis", "The operation continued...", false},
		{"ellipsis then whitespace", "The operation continued... ", true},
		{"dangling conjunction", "Pulled out of hole and", false},
		{"long without conclusion", long + "drilling continued.", false},
		{"long with conclusion word", long + "In summary, operations went to plan.", true},
		{"short without conclusion word", "Drilled and cased the section.", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.complete, HeuristicCompletion{}.IsComplete(tt.answer))
		})
	}
}

func TestCompletionPolicyFunc(t *testing.T) {
	var got string
	policy := CompletionPolicyFunc(func(answer string) bool {
		got = answer
		return true
	})

	assert.True(t, policy.IsComplete("Circulated WBM."))
	assert.Equal(t, "Circulated WBM.", got)
}
