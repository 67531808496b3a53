// Package config loads and validates rigqa configuration.
//
// Configuration is applied in order of increasing precedence:
//  1. Hardcoded defaults (NewConfig)
//  2. User config (~/.config/rigqa/config.yaml, XDG aware)
//  3. Corpus config (.rigqa.yaml in the working directory, or the file
//     named by $RIGQA_CONFIG)
//  4. Environment variables (RIGQA_*)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete rigqa configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Storage    StorageConfig    `yaml:"storage" json:"storage"`
	Chunking   ChunkingConfig   `yaml:"chunking" json:"chunking"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	LLM        LLMConfig        `yaml:"llm" json:"llm"`
	Sessions   SessionsConfig   `yaml:"sessions" json:"sessions"`
	Watch      WatchConfig      `yaml:"watch" json:"watch"`
	Server     ServerConfig     `yaml:"server" json:"server"`
}

// StorageConfig configures where indices live and which vector backend
// serves dense search.
type StorageConfig struct {
	// DataDir holds the chunk store, vector index, keyword index, and
	// sessions. Defaults to ~/.rigqa.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// VectorBackend selects the dense index implementation.
	// Options: "flat" (default, exact cosine) or "hnsw" (approximate,
	// for larger corpora).
	VectorBackend string `yaml:"vector_backend" json:"vector_backend"`
}

// ChunkingConfig configures the date-aware chunker.
type ChunkingConfig struct {
	// Size is the target passage length in characters.
	Size int `yaml:"size" json:"size"`
	// Overlap is how many trailing characters carry into the next passage.
	Overlap int `yaml:"overlap" json:"overlap"`
}

// SearchConfig configures retrieval behavior.
type SearchConfig struct {
	// TopK is the default number of passages retrieved per question.
	TopK int `yaml:"top_k" json:"top_k"`
	// MaxTopK caps caller-supplied top_k values.
	MaxTopK int `yaml:"max_top_k" json:"max_top_k"`
	// Mode is the default routing mode: auto, semantic, or hybrid.
	Mode string `yaml:"mode" json:"mode"`
	// Keywords is the technical vocabulary scanned into the keyword
	// index. Empty keeps the built-in drilling-report vocabulary.
	Keywords []string `yaml:"keywords" json:"keywords"`
	// Months overrides the month abbreviation table used for date
	// variant expansion: 3-letter key -> accepted spellings, full name
	// first. Empty keeps the built-in table.
	Months map[string][]string `yaml:"months" json:"months"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the embedder: "ollama", "static", or empty/"auto".
	Provider string `yaml:"provider" json:"provider"`
	// Model is the Ollama embedding model (default: all-minilm, 384 dims).
	Model string `yaml:"model" json:"model"`
	// Dimensions is the expected embedding dimensionality.
	Dimensions int `yaml:"dimensions" json:"dimensions"`
	// BatchSize is how many texts are embedded per request.
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// OllamaHost is the Ollama endpoint (empty: http://localhost:11434).
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	// CacheSize is the embedding LRU cache capacity (entries).
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// LLMConfig configures the answer generation provider.
type LLMConfig struct {
	// Provider selects the generator: "ollama", "extractive", or
	// empty/"auto" (Ollama with extractive fallback).
	Provider string `yaml:"provider" json:"provider"`
	// Model is the Ollama generation model.
	Model string `yaml:"model" json:"model"`
	// OllamaHost is the Ollama endpoint (empty: http://localhost:11434).
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	// MaxTokens is the default answer budget.
	MaxTokens int `yaml:"max_tokens" json:"max_tokens"`
	// ContinuationTokens is the budget for one continuation round.
	ContinuationTokens int `yaml:"continuation_tokens" json:"continuation_tokens"`
	// MaxContinuations bounds truncation-recovery retries.
	MaxContinuations int `yaml:"max_continuations" json:"max_continuations"`
	// TimeoutSeconds is the per-generation timeout.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// SessionsConfig configures chat session persistence.
type SessionsConfig struct {
	// StoragePath is the directory where sessions are stored.
	// Defaults to <data_dir>/sessions.
	StoragePath string `yaml:"storage_path" json:"storage_path"`
	// AutoSave enables automatic session save on exit. Defaults to true.
	AutoSave bool `yaml:"auto_save" json:"auto_save"`
	// MaxSessions is the maximum number of sessions kept. Defaults to 20.
	MaxSessions int `yaml:"max_sessions" json:"max_sessions"`
}

// WatchConfig configures `rigqa index --watch`.
type WatchConfig struct {
	// Debounce is how long to wait after the last file event before
	// re-ingesting (duration string, default "500ms").
	Debounce string `yaml:"debounce" json:"debounce"`
}

// ServerConfig configures logging and the MCP serving surface.
type ServerConfig struct {
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// defaultKeywords is the built-in technical vocabulary for drilling
// reports, scanned into the keyword index at ingestion time.
var defaultKeywords = []string{
	"drilling", "hole", "section", "wbm", "bbls", "sweep", "circulate",
	"weight", "trip", "shoe", "rams", "bottom", "pill", "gyro", "pull",
}

// DefaultKeywords returns a copy of the built-in keyword vocabulary.
func DefaultKeywords() []string {
	out := make([]string, len(defaultKeywords))
	copy(out, defaultKeywords)
	return out
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Storage: StorageConfig{
			DataDir:       DefaultDataDir(),
			VectorBackend: "flat",
		},
		Chunking: ChunkingConfig{
			Size:    500,
			Overlap: 100,
		},
		Search: SearchConfig{
			TopK:     3,
			MaxTopK:  10,
			Mode:     "auto",
			Keywords: DefaultKeywords(),
			Months:   nil, // nil keeps the built-in month table
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "", // empty triggers auto-detection: Ollama -> error with static hint
			Model:      "all-minilm",
			Dimensions: 384,
			BatchSize:  32,
			OllamaHost: "", // empty uses http://localhost:11434
			CacheSize:  1024,
		},
		LLM: LLMConfig{
			Provider:           "", // empty triggers auto: Ollama -> extractive fallback
			Model:              "llama3.1:8b",
			OllamaHost:         "",
			MaxTokens:          500,
			ContinuationTokens: 300,
			MaxContinuations:   1,
			TimeoutSeconds:     60,
		},
		Sessions: SessionsConfig{
			StoragePath: "", // empty resolves to <data_dir>/sessions
			AutoSave:    true,
			MaxSessions: 20,
		},
		Watch: WatchConfig{
			Debounce: "500ms",
		},
		Server: ServerConfig{
			LogLevel: "info",
		},
	}
}

// DefaultDataDir returns the default data directory (~/.rigqa).
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".rigqa")
	}
	return filepath.Join(home, ".rigqa")
}

// SessionsDir resolves the sessions storage path.
func (c *Config) SessionsDir() string {
	if c.Sessions.StoragePath != "" {
		return c.Sessions.StoragePath
	}
	return filepath.Join(c.Storage.DataDir, "sessions")
}

// GetUserConfigPath returns the path to the user configuration file,
// following the XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/rigqa/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/rigqa/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "rigqa", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "rigqa", "config.yaml")
	}
	return filepath.Join(home, ".config", "rigqa", "config.yaml")
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user configuration file if it exists.
// A missing file is not an error.
func loadUserConfig() (*Config, error) {
	path := GetUserConfigPath()
	if !fileExists(path) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, fmt.Errorf("loading user config from %s: %w", path, err)
	}
	return cfg, nil
}

// Load loads configuration for the given working directory, applying
// defaults, user config, corpus config, and environment overrides in
// that order, then validates the result.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, err
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile loads the corpus config: $RIGQA_CONFIG when set,
// otherwise .rigqa.yaml (or .rigqa.yml) in dir. Absence is fine.
func (c *Config) loadFromFile(dir string) error {
	if explicit := os.Getenv("RIGQA_CONFIG"); explicit != "" {
		if !fileExists(explicit) {
			return fmt.Errorf("config file from RIGQA_CONFIG not found: %s", explicit)
		}
		return c.loadYAML(explicit)
	}

	yamlPath := filepath.Join(dir, ".rigqa.yaml")
	if fileExists(yamlPath) {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".rigqa.yml")
	if fileExists(ymlPath) {
		return c.loadYAML(ymlPath)
	}

	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	// Storage
	if other.Storage.DataDir != "" {
		c.Storage.DataDir = other.Storage.DataDir
	}
	if other.Storage.VectorBackend != "" {
		c.Storage.VectorBackend = other.Storage.VectorBackend
	}

	// Chunking
	if other.Chunking.Size != 0 {
		c.Chunking.Size = other.Chunking.Size
	}
	if other.Chunking.Overlap != 0 {
		c.Chunking.Overlap = other.Chunking.Overlap
	}

	// Search
	if other.Search.TopK != 0 {
		c.Search.TopK = other.Search.TopK
	}
	if other.Search.MaxTopK != 0 {
		c.Search.MaxTopK = other.Search.MaxTopK
	}
	if other.Search.Mode != "" {
		c.Search.Mode = other.Search.Mode
	}
	if len(other.Search.Keywords) > 0 {
		c.Search.Keywords = other.Search.Keywords
	}
	if len(other.Search.Months) > 0 {
		c.Search.Months = other.Search.Months
	}

	// Embeddings
	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}

	// LLM
	if other.LLM.Provider != "" {
		c.LLM.Provider = other.LLM.Provider
	}
	if other.LLM.Model != "" {
		c.LLM.Model = other.LLM.Model
	}
	if other.LLM.OllamaHost != "" {
		c.LLM.OllamaHost = other.LLM.OllamaHost
	}
	if other.LLM.MaxTokens != 0 {
		c.LLM.MaxTokens = other.LLM.MaxTokens
	}
	if other.LLM.ContinuationTokens != 0 {
		c.LLM.ContinuationTokens = other.LLM.ContinuationTokens
	}
	if other.LLM.MaxContinuations != 0 {
		c.LLM.MaxContinuations = other.LLM.MaxContinuations
	}
	if other.LLM.TimeoutSeconds != 0 {
		c.LLM.TimeoutSeconds = other.LLM.TimeoutSeconds
	}

	// Sessions
	if other.Sessions.StoragePath != "" {
		c.Sessions.StoragePath = other.Sessions.StoragePath
		// AutoSave rides along only when the section is present, since
		// yaml gives false for both "absent" and "explicitly false".
		c.Sessions.AutoSave = other.Sessions.AutoSave
	}
	if other.Sessions.MaxSessions > 0 {
		c.Sessions.MaxSessions = other.Sessions.MaxSessions
	}

	// Watch
	if other.Watch.Debounce != "" {
		c.Watch.Debounce = other.Watch.Debounce
	}

	// Server
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies RIGQA_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RIGQA_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("RIGQA_EMBEDDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("RIGQA_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("RIGQA_LLM"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("RIGQA_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("RIGQA_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
		c.LLM.OllamaHost = v
	}
	if v := os.Getenv("RIGQA_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("RIGQA_TOP_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.TopK = k
		}
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunking.size must be positive, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 {
		return fmt.Errorf("chunking.overlap must be non-negative, got %d", c.Chunking.Overlap)
	}
	if c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap (%d) must be smaller than chunking.size (%d)",
			c.Chunking.Overlap, c.Chunking.Size)
	}

	if c.Search.TopK < 1 {
		return fmt.Errorf("search.top_k must be at least 1, got %d", c.Search.TopK)
	}
	if c.Search.MaxTopK < c.Search.TopK {
		return fmt.Errorf("search.max_top_k (%d) must be >= search.top_k (%d)",
			c.Search.MaxTopK, c.Search.TopK)
	}

	validModes := map[string]bool{"auto": true, "semantic": true, "hybrid": true}
	if !validModes[strings.ToLower(c.Search.Mode)] {
		return fmt.Errorf("search.mode must be 'auto', 'semantic', or 'hybrid', got %s", c.Search.Mode)
	}

	for abbrev, forms := range c.Search.Months {
		if len(forms) == 0 {
			return fmt.Errorf("search.months.%s must list at least one spelling", abbrev)
		}
	}

	if c.Embeddings.Dimensions <= 0 {
		return fmt.Errorf("embeddings.dimensions must be positive, got %d", c.Embeddings.Dimensions)
	}
	if c.Embeddings.Provider != "" {
		validProviders := map[string]bool{"auto": true, "ollama": true, "static": true}
		if !validProviders[strings.ToLower(c.Embeddings.Provider)] {
			return fmt.Errorf("embeddings.provider must be 'ollama', 'static', or empty (auto), got %s",
				c.Embeddings.Provider)
		}
	}

	if c.LLM.Provider != "" {
		validProviders := map[string]bool{"auto": true, "ollama": true, "extractive": true}
		if !validProviders[strings.ToLower(c.LLM.Provider)] {
			return fmt.Errorf("llm.provider must be 'ollama', 'extractive', or empty (auto), got %s",
				c.LLM.Provider)
		}
	}
	if c.LLM.MaxContinuations < 0 {
		return fmt.Errorf("llm.max_continuations must be non-negative, got %d", c.LLM.MaxContinuations)
	}
	if c.LLM.TimeoutSeconds <= 0 {
		return fmt.Errorf("llm.timeout_seconds must be positive, got %d", c.LLM.TimeoutSeconds)
	}

	validBackends := map[string]bool{"flat": true, "hnsw": true}
	if !validBackends[strings.ToLower(c.Storage.VectorBackend)] {
		return fmt.Errorf("storage.vector_backend must be 'flat' or 'hnsw', got %s",
			c.Storage.VectorBackend)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s",
			c.Server.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
