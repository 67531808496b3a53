package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rigdocs/rigqa/internal/embed"
	"github.com/rigdocs/rigqa/internal/llm"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed successfully.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical warning.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

var statusNames = [...]string{
	StatusPass: "PASS",
	StatusWarn: "WARN",
	StatusFail: "FAIL",
}

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "UNKNOWN"
	}
	return statusNames[s]
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Checker performs preflight validation checks.
type Checker struct {
	offline   bool
	verbose   bool
	output    io.Writer
	embedder  embed.Embedder
	generator llm.Generator
}

// Option configures a Checker.
type Option func(*Checker)

// WithOffline skips network probes; backend checks report as skipped.
func WithOffline(offline bool) Option {
	return func(c *Checker) { c.offline = offline }
}

// WithVerbose enables verbose output.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) { c.verbose = verbose }
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) { c.output = w }
}

// WithEmbedder adds an embedding backend probe to the check run.
func WithEmbedder(e embed.Embedder) Option {
	return func(c *Checker) { c.embedder = e }
}

// WithGenerator adds a generation backend probe to the check run.
func WithGenerator(g llm.Generator) Option {
	return func(c *Checker) { c.generator = g }
}

// New creates a new Checker with the given options.
func New(opts ...Option) *Checker {
	c := &Checker{output: os.Stdout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs all preflight checks against the data directory and
// returns the results.
func (c *Checker) RunAll(ctx context.Context, dataDir string) []CheckResult {
	results := []CheckResult{
		c.CheckDiskSpace(dataDir),
		c.CheckMemory(),
		c.CheckWritePermissions(dataDir),
		c.CheckFileDescriptors(),
	}

	if c.embedder != nil {
		results = append(results, c.CheckEmbedder(ctx))
	}
	if c.generator != nil {
		results = append(results, c.CheckGenerator(ctx))
	}

	return results
}

// HasCriticalFailures returns true if any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns a summary status string for the results.
func (c *Checker) SummaryStatus(results []CheckResult) string {
	warnings := false
	for _, r := range results {
		if r.IsCritical() {
			return "failed"
		}
		if r.Status == StatusWarn || r.Status == StatusFail {
			warnings = true
		}
	}

	if warnings {
		return "ready_with_warnings"
	}
	return "ready"
}

func (c *Checker) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.output, format, args...)
}

// printList prints a counted, bulleted list of check messages.
func (c *Checker) printList(label string, items []string) {
	if len(items) == 0 {
		return
	}
	c.printf("\n%d %s(s):\n", len(items), label)
	for _, item := range items {
		c.printf("  - %s\n", item)
	}
}

// PrintResults prints check results to the configured output.
func (c *Checker) PrintResults(results []CheckResult) {
	c.printf("rigqa System Check\n")
	c.printf("==================\n\n")

	var warnings, errors []string
	for _, r := range results {
		c.printf("[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if c.verbose && r.Details != "" {
			c.printf("      %s\n", r.Details)
		}

		if r.IsCritical() {
			errors = append(errors, r.Name+": "+r.Message)
		} else if r.Status == StatusWarn {
			warnings = append(warnings, r.Name+": "+r.Message)
		}
	}

	c.printf("\nStatus: %s\n", strings.ToUpper(c.SummaryStatus(results)))
	c.printList("error", errors)
	c.printList("warning", warnings)
}

// CheckWritePermissions checks if we can write to the data directory.
func (c *Checker) CheckWritePermissions(path string) CheckResult {
	result := CheckResult{
		Name:     "write_permissions",
		Required: true,
	}

	testFile := filepath.Join(path, ".rigqa-preflight-test")
	f, err := os.Create(testFile)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(testFile)

	result.Status = StatusPass
	result.Message = "OK"
	return result
}
