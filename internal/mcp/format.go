package mcp

import (
	"fmt"
	"strings"

	"github.com/rigdocs/rigqa/internal/qa"
	"github.com/rigdocs/rigqa/internal/search"
)

// FormatAskResponse formats an answered question as markdown.
func FormatAskResponse(resp *qa.Response) string {
	var sb strings.Builder
	sb.WriteString(resp.Answer)

	if len(resp.Sources) > 0 {
		sb.WriteString("\n\n**Sources:**\n")
		for i, src := range resp.Sources {
			fmt.Fprintf(&sb, "%d. %s (chunk %d, score %.2f)\n",
				i+1, src.DocumentID, src.ChunkOrdinal, src.RelevanceScore)
		}
	}

	fmt.Fprintf(&sb, "\n_Retrieved via %s", resp.SearchMethod)
	if resp.LLMUsed != "" {
		fmt.Fprintf(&sb, ", answered by %s", resp.LLMUsed)
	}
	sb.WriteString("._")

	return sb.String()
}

// FormatSearchResults formats a retrieval as markdown.
func FormatSearchResults(query string, ret *search.Retrieval) string {
	validResults := filterValidResults(ret.Results)

	if len(validResults) == 0 {
		return fmt.Sprintf("No results found for \"%s\"", query)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Search Results for \"%s\"\n\n", query))
	sb.WriteString(fmt.Sprintf("Found %d result", len(validResults)))
	if len(validResults) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString(fmt.Sprintf(" via %s", ret.Method))
	sb.WriteString("\n\n")

	for i, r := range validResults {
		formatResult(&sb, i+1, r)
	}

	return sb.String()
}

// filterValidResults removes results with nil chunks.
func filterValidResults(results []search.Result) []search.Result {
	valid := make([]search.Result, 0, len(results))
	for _, r := range results {
		if r.Chunk != nil {
			valid = append(valid, r)
		}
	}
	return valid
}

// formatResult formats a single result. Passage text goes in a fenced
// block so markdown inside a chunk cannot break the surrounding layout.
func formatResult(sb *strings.Builder, num int, r search.Result) {
	fmt.Fprintf(sb, "### %d. %s (chunk %d, score: %.2f)\n",
		num,
		r.Chunk.DocumentID,
		r.Chunk.Ordinal,
		r.Score,
	)
	fmt.Fprintf(sb, "```\n%s\n```\n\n", snippet(r.Chunk.Content, maxSnippetLen))
}

// maxSnippetLen caps passage text in markdown output. Full chunk text
// stays available through the structured tool output and resources.
const maxSnippetLen = 600

// snippet truncates s to at most n runes, cutting back to the last
// space so words stay whole.
func snippet(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}

	cut := string(runes[:n])
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return cut + " ..."
}
