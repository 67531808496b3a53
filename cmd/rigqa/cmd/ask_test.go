package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rigdocs/rigqa/internal/output"
	"github.com/rigdocs/rigqa/internal/qa"
)

func TestAskCmd_Flags(t *testing.T) {
	// Given: the ask command
	cmd := newAskCmd()

	tests := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{"top-k", "k", "0"},
		{"mode", "m", "auto"},
		{"length", "l", "medium"},
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

func TestAskCmd_RequiresIndex(t *testing.T) {
	// Given: an empty data dir
	tmpDir := resetEnv(t)

	// When: asking a question
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"ask", "What was done on Sept 6?", "--data-dir", filepath.Join(tmpDir, "data")})

	err := cmd.Execute()

	// Then: it should point at the index command
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no index found")
	assert.Contains(t, err.Error(), "rigqa index")
}

func TestAskCmd_RejectsInvalidMode(t *testing.T) {
	tmpDir := resetEnv(t)

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"ask", "anything", "--mode", "psychic", "--data-dir", filepath.Join(tmpDir, "data")})

	err := cmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid search mode")
}

func TestAnswerTokens(t *testing.T) {
	tests := []struct {
		length  string
		tokens  int
		wantErr bool
	}{
		{"short", 200, false},
		{"medium", 400, false},
		{"long", 800, false},
		{"epic", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.length, func(t *testing.T) {
			tokens, err := answerTokens(tt.length)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid length")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.tokens, tokens)
		})
	}
}

func TestFormatAnswer(t *testing.T) {
	// Given: a response with sources and a document filter
	buf := new(bytes.Buffer)
	out := output.New(buf)
	resp := &qa.Response{
		Question: "What was done on Sept 6?",
		Answer:   "The WBM was circulated and the rig moved to pad 7.",
		Sources: []qa.Source{
			{DocumentID: "report_sept_06", ChunkOrdinal: 2, RelevanceScore: 0.91},
			{DocumentID: "report_sept_07", ChunkOrdinal: 0, RelevanceScore: 0.55},
		},
		SearchMethod: "hybrid",
		LLMUsed:      "extractive",
		FilteredBy:   "report_sept_06",
	}

	// When: formatting for the terminal
	formatAnswer(out, resp)

	// Then: answer, sources, and provenance footer should render
	text := buf.String()
	assert.Contains(t, text, "The WBM was circulated")
	assert.Contains(t, text, "Sources:")
	assert.Contains(t, text, "1. report_sept_06 (chunk 2, score: 0.91)")
	assert.Contains(t, text, "2. report_sept_07 (chunk 0, score: 0.55)")
	assert.Contains(t, text, "method: hybrid")
	assert.Contains(t, text, "generator: extractive")
	assert.Contains(t, text, "document: report_sept_06")
}

func TestFormatAnswer_QuietKeepsAnswer(t *testing.T) {
	// Given: quiet output
	buf := new(bytes.Buffer)
	out := output.NewQuiet(buf, true)
	resp := &qa.Response{
		Answer:       "Cement bond logged across the 9 5/8\" shoe.",
		Sources:      []qa.Source{{DocumentID: "report_a", ChunkOrdinal: 1, RelevanceScore: 0.8}},
		SearchMethod: "semantic",
		LLMUsed:      "extractive",
	}

	// When: formatting
	formatAnswer(out, resp)

	// Then: the answer survives, the chrome does not
	text := buf.String()
	assert.Contains(t, text, "Cement bond logged")
	assert.NotContains(t, text, "Sources:")
	assert.NotContains(t, text, "method:")
}

func TestFormatAnswer_NoSources(t *testing.T) {
	buf := new(bytes.Buffer)
	out := output.New(buf)

	formatAnswer(out, &qa.Response{
		Answer:       "No relevant passages found.",
		SearchMethod: "semantic",
		LLMUsed:      "extractive",
	})

	text := buf.String()
	assert.Contains(t, text, "No relevant passages found.")
	assert.NotContains(t, text, "Sources:")
	assert.Contains(t, text, "method: semantic")
}
