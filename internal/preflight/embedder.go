package preflight

import (
	"context"
	"fmt"

	"github.com/rigdocs/rigqa/internal/embed"
)

// CheckEmbedder probes the configured embedding backend. Not required:
// the static embedder always works offline.
func (c *Checker) CheckEmbedder(ctx context.Context) CheckResult {
	result := CheckResult{
		Name:     "embedding_backend",
		Required: false,
	}

	if c.embedder == nil {
		result.Status = StatusWarn
		result.Message = "no embedder configured"
		return result
	}

	if c.offline {
		result.Status = StatusPass
		result.Message = "probe skipped (offline mode)"
		return result
	}

	info := embed.GetInfo(ctx, c.embedder)
	if !info.Available {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%s backend unreachable (falls back to static embeddings)", info.Provider)
		result.Details = "Start Ollama or set embedding.provider: static to silence this warning"
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%s (%s, %d dimensions)", info.Provider, info.Model, info.Dimensions)
	return result
}
