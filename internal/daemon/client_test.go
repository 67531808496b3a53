package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rigdocs/rigqa/internal/qa"
)

// testSocketPath creates a unique socket path short enough for Unix
// sockets.
func testSocketPath(t *testing.T) string {
	t.Helper()
	socketPath := filepath.Join("/tmp", fmt.Sprintf("rigqa-client-test-%d.sock", time.Now().UnixNano()))
	t.Cleanup(func() { os.Remove(socketPath) })
	return socketPath
}

// serveOnce accepts one connection and answers it with the given
// result builder.
func serveOnce(t *testing.T, socketPath string, respond func(req Request) Response) {
	t.Helper()
	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		var req Request
		if err := json.NewDecoder(conn).Decode(&req); err != nil {
			return
		}
		_ = json.NewEncoder(conn).Encode(respond(req))
	}()
}

func clientConfig(socketPath string) Config {
	return Config{
		SocketPath: socketPath,
		Timeout:    5 * time.Second,
	}
}

func TestNewClient(t *testing.T) {
	cfg := DefaultConfig()
	client := NewClient(cfg)

	assert.NotNil(t, client)
	assert.Equal(t, cfg.SocketPath, client.socketPath)
	assert.Equal(t, cfg.Timeout, client.timeout)
}

func TestClient_IsRunning_NoSocket(t *testing.T) {
	tmpDir := t.TempDir()
	client := NewClient(clientConfig(filepath.Join(tmpDir, "nonexistent.sock")))

	assert.False(t, client.IsRunning(), "should be false when socket doesn't exist")
}

func TestClient_IsRunning_WithSocket(t *testing.T) {
	socketPath := testSocketPath(t)

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	defer listener.Close()

	client := NewClient(clientConfig(socketPath))
	assert.True(t, client.IsRunning(), "should be true when socket is listening")
}

func TestClient_Ping_Success(t *testing.T) {
	socketPath := testSocketPath(t)
	serveOnce(t, socketPath, func(req Request) Response {
		return NewSuccessResponse(req.ID, PingResult{Pong: true})
	})

	client := NewClient(clientConfig(socketPath))
	err := client.Ping(context.Background())
	require.NoError(t, err)
}

func TestClient_Ask_Success(t *testing.T) {
	socketPath := testSocketPath(t)
	expected := &qa.Response{
		Question: "What happened on Sept 6?",
		Answer:   "Casing was run to 2,400 m.",
		Sources: []qa.Source{
			{DocumentID: "report_sept_06.pdf", ChunkOrdinal: 1, RelevanceScore: 1.0},
		},
		SearchMethod: "hybrid",
		LLMUsed:      "ollama:llama3.2",
	}
	serveOnce(t, socketPath, func(req Request) Response {
		return NewSuccessResponse(req.ID, expected)
	})

	client := NewClient(clientConfig(socketPath))
	resp, err := client.Ask(context.Background(), AskParams{Question: "What happened on Sept 6?"})
	require.NoError(t, err)

	assert.Equal(t, expected.Answer, resp.Answer)
	assert.Equal(t, "hybrid", resp.SearchMethod)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "report_sept_06.pdf", resp.Sources[0].DocumentID)
}

func TestClient_Ask_InvalidParams(t *testing.T) {
	client := NewClient(clientConfig("/tmp/unused.sock"))

	_, err := client.Ask(context.Background(), AskParams{Question: ""})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "question is required")
}

func TestClient_Search_Success(t *testing.T) {
	socketPath := testSocketPath(t)
	expected := &SearchOutput{
		Method: "semantic",
		Results: []SearchResult{
			{DocumentID: "report_sept_06.pdf", Ordinal: 3, Score: 0.87, Content: "BOP test completed."},
		},
	}
	serveOnce(t, socketPath, func(req Request) Response {
		return NewSuccessResponse(req.ID, expected)
	})

	client := NewClient(clientConfig(socketPath))
	out, err := client.Search(context.Background(), SearchParams{Query: "BOP test"})
	require.NoError(t, err)

	assert.Equal(t, "semantic", out.Method)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "report_sept_06.pdf", out.Results[0].DocumentID)
	assert.Equal(t, 3, out.Results[0].Ordinal)
	assert.InDelta(t, 0.87, out.Results[0].Score, 0.001)
}

func TestClient_Search_Error(t *testing.T) {
	socketPath := testSocketPath(t)
	serveOnce(t, socketPath, func(req Request) Response {
		return NewErrorResponse(req.ID, ErrCodeNoIndex, "no index found in /tmp/nowhere")
	})

	client := NewClient(clientConfig(socketPath))
	_, err := client.Search(context.Background(), SearchParams{Query: "anything"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no index found")
}

func TestClient_Status_Success(t *testing.T) {
	socketPath := testSocketPath(t)
	expected := StatusResult{
		Running:         true,
		PID:             12345,
		Uptime:          "5m0s",
		IndexLoaded:     true,
		Documents:       4,
		Chunks:          120,
		Embedder:        "nomic-embed-text",
		EmbedderStatus:  "ready",
		Generator:       "ollama:llama3.2",
		GeneratorStatus: "ready",
	}
	serveOnce(t, socketPath, func(req Request) Response {
		return NewSuccessResponse(req.ID, expected)
	})

	client := NewClient(clientConfig(socketPath))
	status, err := client.Status(context.Background())
	require.NoError(t, err)

	assert.True(t, status.Running)
	assert.Equal(t, 12345, status.PID)
	assert.Equal(t, 4, status.Documents)
	assert.Equal(t, "nomic-embed-text", status.Embedder)
}

func TestClient_Connect_Timeout(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := Config{
		SocketPath: filepath.Join(tmpDir, "nonexistent.sock"),
		Timeout:    100 * time.Millisecond,
	}

	client := NewClient(cfg)

	_, err := client.Connect()
	require.Error(t, err)
}
