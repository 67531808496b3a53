package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rigdocs/rigqa/internal/output"
	"github.com/rigdocs/rigqa/internal/search"
	"github.com/rigdocs/rigqa/internal/store"
)

func TestSearchCmd_Flags(t *testing.T) {
	// Given: the search command
	cmd := newSearchCmd()

	tests := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{"top-k", "k", "0"},
		{"mode", "m", "auto"},
		{"document", "d", ""},
		{"json", "", "false"},
	}
	for _, tt := range tests {
		flag := cmd.Flags().Lookup(tt.name)
		require.NotNil(t, flag, "Should have --%s flag", tt.name)
		assert.Equal(t, tt.defValue, flag.DefValue)
		assert.Equal(t, tt.shorthand, flag.Shorthand)
	}
}

func TestSearchCmd_RequiresIndex(t *testing.T) {
	// Given: an empty data dir
	tmpDir := resetEnv(t)

	// When: searching
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"search", "mud weight", "--data-dir", filepath.Join(tmpDir, "data")})

	err := cmd.Execute()

	// Then: it should point at the index command
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no index found")
}

func TestGetSnippet(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "short content unchanged",
			content: "one line",
			want:    []string{"one line"},
		},
		{
			name:    "caps at three lines",
			content: "a\nb\nc\nd\ne",
			want:    []string{"a", "b", "c"},
		},
		{
			name:    "trims trailing empties",
			content: "a\n\n\n\nz",
			want:    []string{"a"},
		},
		{
			name:    "all blank",
			content: "\n\n",
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := getSnippet(tt.content, 3)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatResultsText(t *testing.T) {
	// Given: a retrieval with two hits
	buf := new(bytes.Buffer)
	out := output.New(buf)
	retrieval := &search.Retrieval{
		Method: search.MethodHybrid,
		Results: []search.Result{
			{
				Chunk: &store.Chunk{
					DocumentID: "report_sept_06",
					Ordinal:    1,
					Content:    "6-Sept: Circulated WBM and conditioned hole.\nRig moved to pad 7.",
				},
				Score: 0.92,
			},
			{
				Chunk: &store.Chunk{
					DocumentID: "report_sept_07",
					Ordinal:    0,
					Content:    "7-Sept: Ran 9 5/8\" casing to 2,450 m.",
				},
				Score: 0.41,
			},
		},
	}

	// When: formatting for the terminal
	formatResultsText(out, "WBM", retrieval)

	// Then: header, numbered hits, and snippets should render
	text := buf.String()
	assert.Contains(t, text, `Found 2 results for "WBM"`)
	assert.Contains(t, text, "hybrid")
	assert.Contains(t, text, "1. report_sept_06 (chunk 1, score: 0.92)")
	assert.Contains(t, text, "Circulated WBM")
	assert.Contains(t, text, "2. report_sept_07 (chunk 0, score: 0.41)")
}

func TestFormatResultsText_NoResults(t *testing.T) {
	buf := new(bytes.Buffer)
	out := output.New(buf)

	formatResultsText(out, "unobtainium", &search.Retrieval{Method: search.MethodSemantic})

	assert.Contains(t, buf.String(), `No results found for "unobtainium"`)
}

func TestFormatResultsText_SkipsNilChunks(t *testing.T) {
	buf := new(bytes.Buffer)
	out := output.New(buf)
	retrieval := &search.Retrieval{
		Method:  search.MethodSemantic,
		Results: []search.Result{{Chunk: nil, Score: 0.5}},
	}

	formatResultsText(out, "q", retrieval)

	text := buf.String()
	assert.Contains(t, text, "Found 1 results")
	assert.NotContains(t, text, "score: 0.50")
}
