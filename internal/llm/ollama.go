package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Ollama API constants
const (
	// DefaultOllamaHost is the default Ollama API endpoint
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultOllamaModel is the default generation model
	DefaultOllamaModel = "llama3.1:8b"
)

// OllamaConfig configures the Ollama generator
type OllamaConfig struct {
	// Host is the Ollama API endpoint (default: http://localhost:11434)
	Host string

	// Model is the generation model to use (default: llama3.1:8b)
	Model string

	// Timeout for generation requests (default: 60s)
	Timeout time.Duration

	// ProbeTimeout for the availability probe (default: 5s)
	ProbeTimeout time.Duration

	// SkipHealthCheck skips the construction-time probe (for testing)
	SkipHealthCheck bool
}

// DefaultOllamaConfig returns sensible defaults
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		Host:         DefaultOllamaHost,
		Model:        DefaultOllamaModel,
		Timeout:      DefaultTimeout,
		ProbeTimeout: ProbeTimeout,
	}
}

// ollamaGenerateRequest is the Ollama /api/generate request
type ollamaGenerateRequest struct {
	Model   string                `json:"model"`
	Prompt  string                `json:"prompt"`
	Stream  bool                  `json:"stream"`
	Options ollamaGenerateOptions `json:"options"`
}

// ollamaGenerateOptions mirrors the sampling options Ollama accepts
type ollamaGenerateOptions struct {
	NumPredict  int     `json:"num_predict"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

// ollamaGenerateResponse is the Ollama /api/generate response
type ollamaGenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// ollamaTagsResponse is the Ollama /api/tags response
type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// OllamaGenerator generates answers through Ollama's HTTP API
type OllamaGenerator struct {
	client *http.Client
	config OllamaConfig

	mu     sync.RWMutex
	closed bool
}

// Verify interface implementation at compile time
var _ Generator = (*OllamaGenerator)(nil)

// NewOllamaGenerator creates an Ollama generator and probes the backend.
// Construction fails when Ollama is unreachable or the model is missing;
// the factory decides whether that failure degrades to extractive mode.
func NewOllamaGenerator(ctx context.Context, cfg OllamaConfig) (*OllamaGenerator, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = ProbeTimeout
	}

	g := &OllamaGenerator{
		client: &http.Client{},
		config: cfg,
	}

	if !cfg.SkipHealthCheck {
		probeCtx, cancel := context.WithTimeout(ctx, cfg.ProbeTimeout)
		defer cancel()

		ok, err := g.modelInstalled(probeCtx)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Ollama: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("model %s is not installed", cfg.Model)
		}
	}

	return g, nil
}

// modelInstalled lists installed models and matches the configured one.
// Tag-less names match any tag of the same base model.
func (g *OllamaGenerator) modelInstalled(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.config.Host+"/api/tags", nil)
	if err != nil {
		return false, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}

	want := strings.ToLower(g.config.Model)
	wantBase := strings.Split(want, ":")[0]
	for _, m := range tags.Models {
		name := strings.ToLower(m.Name)
		if name == want || strings.Split(name, ":")[0] == wantBase {
			return true, nil
		}
	}
	return false, nil
}

// Complete generates an answer for the prompt
func (g *OllamaGenerator) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	g.mu.RLock()
	if g.closed {
		g.mu.RUnlock()
		return "", fmt.Errorf("generator is closed")
	}
	g.mu.RUnlock()

	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	reqBody := ollamaGenerateRequest{
		Model:  g.config.Model,
		Prompt: prompt,
		Stream: false,
		Options: ollamaGenerateOptions{
			NumPredict:  maxTokens,
			Temperature: DefaultTemperature,
			TopP:        DefaultTopP,
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodPost, g.config.Host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("generation request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("generation failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return result.Response, nil
}

// Name returns the provider identifier
func (g *OllamaGenerator) Name() string {
	return "ollama:" + g.config.Model
}

// Available checks if Ollama is running and the model is installed
func (g *OllamaGenerator) Available(ctx context.Context) bool {
	g.mu.RLock()
	if g.closed {
		g.mu.RUnlock()
		return false
	}
	g.mu.RUnlock()

	probeCtx, cancel := context.WithTimeout(ctx, g.config.ProbeTimeout)
	defer cancel()

	ok, err := g.modelInstalled(probeCtx)
	return err == nil && ok
}

// Close releases resources
func (g *OllamaGenerator) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}
	g.closed = true
	g.client.CloseIdleConnections()
	return nil
}
