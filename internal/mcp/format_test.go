package mcp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rigdocs/rigqa/internal/qa"
	"github.com/rigdocs/rigqa/internal/search"
	"github.com/rigdocs/rigqa/internal/store"
)

func TestFormatAskResponse_FullResponse(t *testing.T) {
	resp := &qa.Response{
		Question: "What was the mud weight?",
		Answer:   "The mud weight was raised to 10.4 ppg.",
		Sources: []qa.Source{
			{DocumentID: "daily_report.txt", ChunkOrdinal: 0, RelevanceScore: 0.91},
			{DocumentID: "daily_report.txt", ChunkOrdinal: 3, RelevanceScore: 0.42},
		},
		SearchMethod: "hybrid",
		LLMUsed:      "qwen2.5:3b",
	}

	out := FormatAskResponse(resp)

	assert.Contains(t, out, "The mud weight was raised to 10.4 ppg.")
	assert.Contains(t, out, "**Sources:**")
	assert.Contains(t, out, "1. daily_report.txt (chunk 0, score 0.91)")
	assert.Contains(t, out, "2. daily_report.txt (chunk 3, score 0.42)")
	assert.Contains(t, out, "_Retrieved via hybrid, answered by qwen2.5:3b._")
}

func TestFormatAskResponse_NoSources(t *testing.T) {
	resp := &qa.Response{
		Answer:       "No relevant information found.",
		SearchMethod: "semantic",
	}

	out := FormatAskResponse(resp)

	assert.NotContains(t, out, "Sources")
	assert.Contains(t, out, "_Retrieved via semantic._")
}

func TestFormatSearchResults_Empty(t *testing.T) {
	out := FormatSearchResults("casing", &search.Retrieval{Method: search.MethodSemantic})
	assert.Equal(t, `No results found for "casing"`, out)
}

func TestFormatSearchResults_SingularPlural(t *testing.T) {
	one := &search.Retrieval{
		Results: []search.Result{
			{Chunk: &store.Chunk{DocumentID: "a.txt", Content: "casing run"}, Score: 0.8},
		},
		Method: search.MethodHybrid,
	}
	out := FormatSearchResults("casing", one)
	assert.Contains(t, out, "Found 1 result via hybrid")

	two := &search.Retrieval{
		Results: []search.Result{
			{Chunk: &store.Chunk{DocumentID: "a.txt", Content: "casing run"}, Score: 0.8},
			{Chunk: &store.Chunk{DocumentID: "b.txt", Content: "casing cemented"}, Score: 0.6},
		},
		Method: search.MethodHybrid,
	}
	out = FormatSearchResults("casing", two)
	assert.Contains(t, out, "Found 2 results via hybrid")
}

func TestFormatSearchResults_SkipsNilChunks(t *testing.T) {
	ret := &search.Retrieval{
		Results: []search.Result{
			{Chunk: nil, Score: 0.9},
			{Chunk: &store.Chunk{DocumentID: "a.txt", Ordinal: 2, Content: "BOP test passed"}, Score: 0.7},
		},
		Method: search.MethodSemantic,
	}

	out := FormatSearchResults("BOP", ret)

	assert.Contains(t, out, "Found 1 result")
	assert.Contains(t, out, "### 1. a.txt (chunk 2, score: 0.70)")
	assert.Contains(t, out, "BOP test passed")
}

func TestFormatSearchResults_FencesContent(t *testing.T) {
	ret := &search.Retrieval{
		Results: []search.Result{
			{Chunk: &store.Chunk{DocumentID: "notes.md", Content: "## heading inside chunk"}, Score: 0.5},
		},
		Method: search.MethodSemantic,
	}

	out := FormatSearchResults("heading", ret)
	assert.Contains(t, out, "```\n## heading inside chunk\n```")
}

func TestSnippet_ShortContentUnchanged(t *testing.T) {
	assert.Equal(t, "short passage", snippet("short passage", 50))
}

func TestSnippet_TruncatesOnWordBoundary(t *testing.T) {
	long := strings.Repeat("circulated bottoms up ", 50)
	out := snippet(long, 100)

	assert.Less(t, len(out), 110)
	assert.True(t, strings.HasSuffix(out, " ..."))
	assert.NotContains(t, out, "circulated bottoms u ...")
}

func TestSnippet_ExactLengthUnchanged(t *testing.T) {
	s := strings.Repeat("x", 600)
	assert.Equal(t, s, snippet(s, 600))
}
