package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rigdocs/rigqa/internal/dates"
)

func newTestChunker(size, overlap int) *ReportChunker {
	return NewReportChunker(size, overlap, dates.NewExpander(nil))
}

func TestChunk_EmptyInput(t *testing.T) {
	c := newTestChunker(500, 100)

	assert.Nil(t, c.Chunk(""))
	assert.Nil(t, c.Chunk("   \n\t  "))
}

func TestChunk_ShortTextSingleTrimmedPassage(t *testing.T) {
	// Given: text shorter than the passage size
	c := newTestChunker(500, 100)

	// When: chunking
	passages := c.Chunk("Tripped pipe to shoe and tested rams.")

	// Then: exactly one passage containing the whole text
	require.Len(t, passages, 1)
	assert.Equal(t, "Tripped pipe to shoe and tested rams.", passages[0].Text)
	assert.Empty(t, passages[0].DateContext)
}

func TestChunk_NoDatesNeverInjectsContext(t *testing.T) {
	// Given: a dateless document long enough to split
	c := newTestChunker(60, 20)
	text := "Circulated bottoms up twice before the connection. " +
		"Pumped a thirty barrel hi-vis sweep to clean the hole. " +
		"Weight transferred smoothly while reaming the tight spot."

	passages := c.Chunk(text)

	// Then: multiple passages, none carrying a date context line
	require.Greater(t, len(passages), 1)
	for _, p := range passages {
		assert.NotContains(t, p.Text, "Date context:")
		assert.Empty(t, p.DateContext)
	}
}

func TestChunk_DateAnchorTravelsAcrossBoundaries(t *testing.T) {
	// Given: one leading date sentence followed by a long run of activity
	c := newTestChunker(160, 40)
	text := "6-Sept: day shift handover. " +
		"Circulated bottoms up twice before the connection was made. " +
		"Pumped a thirty barrel hi-vis sweep to clean the hole section. " +
		"Weight transferred smoothly while reaming through the tight spot. " +
		"Tripped three stands and spotted a pill around the shoe. " +
		"Closed the rams for the scheduled pressure test at midnight."

	passages := c.Chunk(text)

	// Then: every passage still mentions the date
	require.Greater(t, len(passages), 1)
	for i, p := range passages {
		assert.Contains(t, p.Text, "6-Sept", "passage %d lost its date anchor", i)
		assert.Contains(t, p.DateContext, "6-Sept")
	}
}

func TestChunk_InjectsContextLineWhenDateSentenceSplitsOff(t *testing.T) {
	// Given: activity text whose buffer overflows exactly when the date
	// sentence arrives, so the emitted passage predates its own anchor
	c := newTestChunker(100, 20)
	text := "Crew mobilized to location and rigged up equipment overnight without incident. " +
		"6-Sept: Circulated WBM and monitored returns."

	passages := c.Chunk(text)

	// Then: the first passage gains an explicit date context line
	require.GreaterOrEqual(t, len(passages), 2)
	assert.True(t, strings.HasPrefix(passages[0].Text, "Date context: "), "got %q", passages[0].Text)
	assert.Contains(t, passages[0].Text, "6-Sept")
	assert.Contains(t, passages[0].Text, "Crew mobilized")
}

func TestChunk_AnnotatesDatesInline(t *testing.T) {
	c := newTestChunker(500, 100)

	passages := c.Chunk("6-Sept: Circulated WBM, weight 10.2.")

	require.Len(t, passages, 1)
	// Variant renderings are annotated next to the mention
	assert.Contains(t, passages[0].Text, "6-Sept (")
	assert.Contains(t, passages[0].Text, "September 6")
}

func TestChunk_OverlapCarriesTailForward(t *testing.T) {
	// Given: a dateless document split into several passages
	c := newTestChunker(80, 30)
	text := "Circulated bottoms up twice before the connection was made downhole. " +
		"Pumped a thirty barrel hi-vis sweep to clean out the hole section fully. " +
		"Weight transferred smoothly while reaming back through the tight spot."

	passages := c.Chunk(text)
	require.Greater(t, len(passages), 1)

	// Then: each later passage starts with text from its predecessor's tail
	for i := 1; i < len(passages); i++ {
		overlapStart := strings.Fields(passages[i].Text)[0]
		assert.Contains(t, passages[i-1].Text, overlapStart,
			"passage %d does not continue from passage %d", i, i-1)
	}
}

func TestChunk_DefaultsApplied(t *testing.T) {
	c := NewReportChunker(0, 0, nil)

	assert.Equal(t, DefaultPassageSize, c.size)
	assert.Equal(t, DefaultOverlap, c.overlap)
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "terminal punctuation",
			in:   "First call. Second call! Third call?",
			want: []string{"First call.", "Second call!", "Third call?"},
		},
		{
			name: "decimals do not split",
			in:   "Mud weight 10.2 held. Losses stable.",
			want: []string{"Mud weight 10.2 held.", "Losses stable."},
		},
		{
			name: "trailing text without terminal",
			in:   "Done. still going",
			want: []string{"Done.", "still going"},
		},
		{
			name: "single sentence",
			in:   "Only one.",
			want: []string{"Only one."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitSentences(tt.in))
		})
	}
}
