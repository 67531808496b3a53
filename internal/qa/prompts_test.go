package qa

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComposeContext(t *testing.T) {
	assert.Equal(t, "", ComposeContext(nil))
	assert.Equal(t, "Drilled to 2500m.", ComposeContext([]string{"Drilled to 2500m."}))
	assert.Equal(t,
		"Drilled to 2500m.\n\nRan 9 5/8in casing.",
		ComposeContext([]string{"Drilled to 2500m.", "Ran 9 5/8in casing."}))
}

func TestGenericPrompt(t *testing.T) {
	p := GenericPrompt("6-Sept: Circulated WBM.", "What was done on 6-Sept?")

	assert.True(t, strings.HasPrefix(p, "Based on the following context from documents"))
	assert.Contains(t, p, "Context:\n6-Sept: Circulated WBM.\n\nQuestion: What was done on 6-Sept?\n\nAnswer:")
	assert.NotContains(t, p, "Instructions:")
}

func TestDatePrompt(t *testing.T) {
	p := DatePrompt("6-Sept: Circulated WBM.", "What was done on 6-Sept?")

	assert.Contains(t, p, `"6-Sept", "Sept 6"`)
	assert.Contains(t, p, "Context:\n6-Sept: Circulated WBM.")
	assert.Contains(t, p, "Question: What was done on 6-Sept?")
	assert.Contains(t, p, "Instructions:")
	assert.Contains(t, p, "no information is available for that specific date")
	assert.True(t, strings.HasSuffix(p, "Answer:"))
}

func TestDocumentPrompt(t *testing.T) {
	p := DocumentPrompt("daily_report.txt", "Ran casing to the shoe.", "What casing was run?")

	assert.Contains(t, p, `from the document "daily_report.txt"`)
	assert.Contains(t, p, "Context:\nRan casing to the shoe.")
	assert.Contains(t, p, "Question: What casing was run?")
}

func TestContinuationPrompt(t *testing.T) {
	p := ContinuationPrompt("The crew circulated the well and")

	assert.True(t, strings.HasPrefix(p, "Continue the following response naturally"))
	assert.Contains(t, p, "\n\nThe crew circulated the well and\n\n")
	assert.True(t, strings.HasSuffix(p, "with a clear conclusion."))
}
