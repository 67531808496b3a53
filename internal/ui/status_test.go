package ui

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statusRenderer(t *testing.T, noColor bool) (*StatusRenderer, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	return NewStatusRenderer(buf, noColor), buf
}

func TestStatusInfo_JSONSerialization(t *testing.T) {
	info := StatusInfo{
		DataDir:        "/home/rig/.rigqa",
		TotalDocuments: 12,
		TotalChunks:    540,
		TotalVectors:   540,
		LastIndexed:    time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC),
		ChunkDBSize:    1024 * 1024,
		KeywordSize:    2 * 1024 * 1024,
		VectorSize:     10 * 1024 * 1024,
		TotalSize:      13 * 1024 * 1024,
		EmbedderType:   "ollama",
		EmbedderStatus: "ready",
		EmbedderModel:  "all-minilm",
		GeneratorType:  "ollama",
		WatcherStatus:  "running",
	}

	data, err := json.Marshal(info)
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(data, &parsed))

	assert.Equal(t, "/home/rig/.rigqa", parsed["data_dir"])
	assert.Equal(t, float64(12), parsed["total_documents"])
	assert.Equal(t, float64(540), parsed["total_chunks"])
	assert.Equal(t, "ollama", parsed["embedder_type"])
	assert.Equal(t, "running", parsed["watcher_status"])
}

func TestStatusRenderer_Render_Basic(t *testing.T) {
	r, buf := statusRenderer(t, false)

	err := r.Render(StatusInfo{
		DataDir:        "/home/rig/.rigqa",
		TotalDocuments: 12,
		TotalChunks:    540,
		LastIndexed:    time.Now(),
		ChunkDBSize:    512 * 1024,
		KeywordSize:    1024 * 1024,
		VectorSize:     5 * 1024 * 1024,
		TotalSize:      6*1024*1024 + 512*1024,
		EmbedderType:   "ollama",
		EmbedderStatus: "ready",
		EmbedderModel:  "all-minilm",
		WatcherStatus:  "stopped",
	})
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "/home/rig/.rigqa")
	assert.Contains(t, output, "12")
	assert.Contains(t, output, "540")
	assert.Contains(t, output, "ollama")
	assert.Contains(t, output, "ready")
}

func TestStatusRenderer_RenderJSON(t *testing.T) {
	r, buf := statusRenderer(t, false)

	err := r.RenderJSON(StatusInfo{
		DataDir:        "/tmp/corpus",
		TotalDocuments: 3,
		TotalChunks:    100,
	})
	require.NoError(t, err)

	// Output must round-trip as JSON
	var parsed StatusInfo
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	assert.Equal(t, "/tmp/corpus", parsed.DataDir)
	assert.Equal(t, 3, parsed.TotalDocuments)
}

func TestStatusRenderer_NoColor(t *testing.T) {
	r, buf := statusRenderer(t, true)

	err := r.Render(StatusInfo{
		DataDir:        "/tmp/corpus",
		EmbedderStatus: "ready",
	})
	require.NoError(t, err)

	output := buf.String()
	assert.NotContains(t, output, "\x1b[")
	assert.NotContains(t, output, "\033[")
}

func TestStatusRenderer_EmbedderOffline(t *testing.T) {
	r, buf := statusRenderer(t, false)

	err := r.Render(StatusInfo{
		DataDir:        "/tmp/corpus",
		EmbedderType:   "static",
		EmbedderStatus: "offline",
	})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "offline")
}

func TestStatusRenderer_GeneratorShownWhenSet(t *testing.T) {
	r, buf := statusRenderer(t, true)

	err := r.Render(StatusInfo{
		DataDir:       "/tmp/corpus",
		GeneratorType: "extractive",
	})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "Generator: extractive")
}

func TestStatusRenderer_StorageSizes(t *testing.T) {
	r, buf := statusRenderer(t, true)

	err := r.Render(StatusInfo{
		DataDir:     "/tmp/corpus",
		ChunkDBSize: 512 * 1024,
		KeywordSize: 2 * 1024 * 1024,
		VectorSize:  10 * 1024 * 1024,
		TotalSize:   12*1024*1024 + 512*1024,
	})
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "KB")
	assert.Contains(t, output, "MB")
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0 B"},
		{100, "100 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1024 * 1024, "1.0 MB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{1024 * 1024 * 1024, "1.0 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatBytes(tt.bytes))
		})
	}
}

func TestFormatTime_RelativeAges(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"seconds ago", now.Add(-30 * time.Second), "just now"},
		{"one minute", now.Add(-90 * time.Second), "1 minute ago"},
		{"minutes", now.Add(-10 * time.Minute), "10 minutes ago"},
		{"one hour", now.Add(-90 * time.Minute), "1 hour ago"},
		{"hours", now.Add(-5 * time.Hour), "5 hours ago"},
		{"days", now.Add(-3 * 24 * time.Hour), "3 days ago"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatTime(tt.t))
		})
	}
}

func TestFormatTime_OldTimesUseDate(t *testing.T) {
	old := time.Date(2024, 3, 1, 9, 0, 0, 0, time.Local)
	assert.Equal(t, "2024-03-01 09:00", formatTime(old))
}
