// Package llm provides answer generation for the QA pipeline. Two providers
// implement the Generator interface: an Ollama-backed generator for local
// model inference and an extractive generator that summarizes retrieved
// context without any model at all.
package llm

import (
	"context"
	"time"
)

// Generation constants
const (
	// DefaultMaxTokens bounds a full answer
	DefaultMaxTokens = 500

	// ContinuationMaxTokens bounds a single continuation pass
	ContinuationMaxTokens = 300

	// DefaultTimeout is the timeout for a generation request
	DefaultTimeout = 60 * time.Second

	// ProbeTimeout is the timeout for the availability probe
	ProbeTimeout = 5 * time.Second

	// DefaultTemperature keeps answers close to the retrieved context
	DefaultTemperature = 0.1

	// DefaultTopP is the nucleus sampling bound
	DefaultTopP = 0.9
)

// Generator produces an answer for a fully composed prompt
type Generator interface {
	// Complete generates at most maxTokens of text for the prompt.
	// maxTokens <= 0 selects DefaultMaxTokens.
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)

	// Name returns the provider identifier reported in answers
	Name() string

	// Available checks if the generator is ready
	Available(ctx context.Context) bool

	// Close releases resources
	Close() error
}
