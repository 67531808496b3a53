package embed

import (
	"context"
	"fmt"
	"os"
	"strings"

	rqerrors "github.com/rigdocs/rigqa/internal/errors"
)

// ProviderType represents an embedding provider
type ProviderType string

const (
	// ProviderAuto selects Ollama when reachable and reports a
	// configuration error otherwise.
	ProviderAuto ProviderType = "auto"

	// ProviderOllama uses the Ollama API for embeddings
	ProviderOllama ProviderType = "ollama"

	// ProviderStatic uses hash-based embeddings (offline, reduced quality)
	ProviderStatic ProviderType = "static"
)

// Options configures embedder construction.
type Options struct {
	// Provider selects the backend: auto, ollama, or static.
	Provider string

	// Model is the embedding model name (Ollama providers only).
	Model string

	// Host is the Ollama endpoint (empty = default).
	Host string

	// Dimensions overrides auto-detection when non-zero.
	Dimensions int

	// BatchSize for batch embedding requests (0 = default).
	BatchSize int

	// CacheSize is the number of embeddings kept in the LRU cache
	// (0 = default).
	CacheSize int
}

// New creates an embedder based on the configured provider.
// The RIGQA_EMBEDDER environment variable overrides the provider:
//   - "ollama": use OllamaEmbedder
//   - "static": use StaticEmbedder (hash-based, offline)
//   - "auto":   Ollama when reachable, otherwise a configuration error
//
// A missing backend is a configuration error, never a silent downgrade:
// an index built with static vectors and queried with Ollama vectors (or
// the reverse) returns garbage similarity scores.
//
// All embedders are wrapped with an LRU cache unless RIGQA_EMBED_CACHE
// disables it.
func New(ctx context.Context, opts Options) (Embedder, error) {
	provider := ParseProvider(opts.Provider)

	if env := os.Getenv("RIGQA_EMBEDDER"); env != "" {
		provider = ParseProvider(env)
	}

	var embedder Embedder
	var err error

	switch provider {
	case ProviderStatic:
		embedder = NewStaticEmbedder()

	case ProviderOllama, ProviderAuto:
		embedder, err = newOllama(ctx, opts)
	}

	if err != nil {
		return nil, err
	}

	if !isCacheDisabled() {
		embedder = NewCachedEmbedder(embedder, opts.CacheSize)
	}

	return embedder, nil
}

// isCacheDisabled checks if embedding cache is disabled via environment.
func isCacheDisabled() bool {
	v := strings.ToLower(os.Getenv("RIGQA_EMBED_CACHE"))
	return v == "false" || v == "0" || v == "off" || v == "disabled"
}

// newOllama creates an Ollama embedder from the options, reporting a coded
// configuration error when the backend is unreachable.
func newOllama(ctx context.Context, opts Options) (Embedder, error) {
	cfg := DefaultOllamaConfig()
	if opts.Model != "" {
		cfg.Model = opts.Model
	}
	if opts.Host != "" {
		cfg.Host = opts.Host
	}
	if opts.Dimensions > 0 {
		cfg.Dimensions = opts.Dimensions
	}
	if opts.BatchSize > 0 {
		cfg.BatchSize = opts.BatchSize
	}

	embedder, err := NewOllamaEmbedder(ctx, cfg)
	if err != nil {
		return nil, rqerrors.New(rqerrors.ErrCodeBackendMissing,
			fmt.Sprintf("embedding backend unavailable at %s", cfg.Host), err).
			WithDetail("model", cfg.Model).
			WithSuggestion("start Ollama (ollama serve) and pull the model (ollama pull " + cfg.Model + "), or set embeddings.provider: static for offline use")
	}
	return embedder, nil
}

// ParseProvider converts a string to ProviderType
func ParseProvider(s string) ProviderType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ollama":
		return ProviderOllama
	case "static":
		return ProviderStatic
	default:
		return ProviderAuto
	}
}

// String returns the string representation of ProviderType
func (p ProviderType) String() string {
	return string(p)
}

// ValidProviders returns all valid provider names
func ValidProviders() []string {
	return []string{
		string(ProviderAuto),
		string(ProviderOllama),
		string(ProviderStatic),
	}
}

// IsValidProvider checks if a provider name is valid
func IsValidProvider(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range ValidProviders() {
		if lower == p {
			return true
		}
	}
	return false
}

// EmbedderInfo contains information about an embedder
type EmbedderInfo struct {
	Provider   ProviderType
	Model      string
	Dimensions int
	Available  bool
}

// GetInfo returns information about an embedder
func GetInfo(ctx context.Context, embedder Embedder) EmbedderInfo {
	info := EmbedderInfo{
		Model:      embedder.ModelName(),
		Dimensions: embedder.Dimensions(),
		Available:  embedder.Available(ctx),
	}

	// Unwrap cached embedder to get underlying type
	inner := embedder
	if cached, ok := embedder.(*CachedEmbedder); ok {
		inner = cached.inner
	}

	switch inner.(type) {
	case *OllamaEmbedder:
		info.Provider = ProviderOllama
	default:
		info.Provider = ProviderStatic
	}

	return info
}
