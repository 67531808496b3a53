package preflight

import (
	"context"
	"fmt"
)

// CheckGenerator probes the configured generation backend. Not
// required: answers degrade to extractive summaries without one.
func (c *Checker) CheckGenerator(ctx context.Context) CheckResult {
	result := CheckResult{
		Name:     "generation_backend",
		Required: false,
	}

	if c.generator == nil {
		result.Status = StatusWarn
		result.Message = "no generator configured"
		return result
	}

	if c.offline {
		result.Status = StatusPass
		result.Message = "probe skipped (offline mode)"
		return result
	}

	if !c.generator.Available(ctx) {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%s unavailable (answers fall back to extractive summaries)", c.generator.Name())
		return result
	}

	result.Status = StatusPass
	result.Message = c.generator.Name()
	return result
}
