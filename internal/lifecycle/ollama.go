// Package lifecycle manages the local Ollama runtime that serves both of
// rigqa's models: the embedding model for semantic search and the
// generation model for answer synthesis. It handles detection, startup,
// model pulling, and health checking so 'rigqa init' can bring the
// backends up without manual steps.
package lifecycle

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const (
	// DefaultHost is the default Ollama API endpoint
	DefaultHost = "http://localhost:11434"

	// StartupTimeout is how long to wait for Ollama to start
	StartupTimeout = 30 * time.Second

	// ReadyPollInterval is the initial polling interval for WaitForReady
	ReadyPollInterval = 100 * time.Millisecond

	// MaxReadyPollInterval caps exponential backoff
	MaxReadyPollInterval = 2 * time.Second

	// PullTimeout bounds a model pull. Generation models run to
	// several gigabytes, so this is generous.
	PullTimeout = 15 * time.Minute
)

// OllamaManager handles Ollama lifecycle operations
type OllamaManager struct {
	host    string
	timeout time.Duration
	client  *http.Client

	// Seams for tests, overridden to fake the host system
	execCommand func(name string, args ...string) *exec.Cmd
	lookPath    func(file string) (string, error)
	fileExists  func(path string) bool
}

// OllamaStatus is a point-in-time view of the runtime and the models
// rigqa needs from it.
type OllamaStatus struct {
	Installed     bool
	InstalledPath string // Path to ollama binary or app
	Running       bool
	Models        []string // Models the runtime has
	Missing       []string // Requested models the runtime lacks
}

// Ready reports whether the runtime is up with every requested model.
func (s *OllamaStatus) Ready() bool {
	return s.Installed && s.Running && len(s.Missing) == 0
}

// PullProgress represents model pull progress
type PullProgress struct {
	Status    string
	Digest    string
	Total     int64
	Completed int64
	Percent   float64
}

// NewOllamaManager creates a manager for the default host, honoring
// the RIGQA_OLLAMA_HOST override.
func NewOllamaManager() *OllamaManager {
	return NewOllamaManagerWithHost(DefaultHost)
}

// NewOllamaManagerWithHost creates a manager with a custom host.
func NewOllamaManagerWithHost(host string) *OllamaManager {
	return &OllamaManager{
		host:    resolveHost(host),
		timeout: StartupTimeout,
		// Short timeout, health checks should answer fast
		client:      &http.Client{Timeout: 5 * time.Second},
		execCommand: exec.Command,
		lookPath:    exec.LookPath,
		fileExists:  fileExists,
	}
}

// resolveHost picks the endpoint: env override, then the given host,
// then the default.
func resolveHost(host string) string {
	if envHost := os.Getenv("RIGQA_OLLAMA_HOST"); envHost != "" {
		return envHost
	}
	if host != "" {
		return host
	}
	return DefaultHost
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Host returns the configured Ollama host
func (m *OllamaManager) Host() string {
	return m.host
}

// IsRemoteHost checks if the configured host is not localhost. Remote
// runtimes are never started or pulled to from here.
func (m *OllamaManager) IsRemoteHost() bool {
	return !strings.Contains(m.host, "localhost") && !strings.Contains(m.host, "127.0.0.1")
}

// installPaths lists where the ollama binary or app lands outside PATH
// on the current platform.
func installPaths() []string {
	home := os.Getenv("HOME")
	switch runtime.GOOS {
	case "darwin":
		return []string{
			"/Applications/Ollama.app",
			filepath.Join(home, "Applications", "Ollama.app"),
		}
	case "linux":
		return []string{
			"/usr/local/bin/ollama",
			"/usr/bin/ollama",
			filepath.Join(home, ".local", "bin", "ollama"),
		}
	default:
		return nil
	}
}

// IsInstalled checks if Ollama is installed on the system
func (m *OllamaManager) IsInstalled() (bool, string, error) {
	if path, err := m.lookPath("ollama"); err == nil {
		return true, path, nil
	}
	for _, p := range installPaths() {
		if m.fileExists(p) {
			return true, p, nil
		}
	}
	return false, "", nil
}

// getJSON issues a GET against the API and decodes the response into v.
func (m *OllamaManager) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.host+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to Ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// IsRunning checks if the Ollama API is responding
func (m *OllamaManager) IsRunning() (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.host+"/api/tags", nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		// Unreachable counts as stopped, not as a check failure
		return false, nil
	}
	resp.Body.Close()

	return resp.StatusCode == http.StatusOK, nil
}

// ListModels returns the models the runtime has
func (m *OllamaManager) ListModels(ctx context.Context) ([]string, error) {
	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := m.getJSON(ctx, "/api/tags", &result); err != nil {
		return nil, err
	}

	models := make([]string, len(result.Models))
	for i, entry := range result.Models {
		models[i] = entry.Name
	}
	return models, nil
}

// HasModel checks if a specific model is available. A bare name
// matches any tag of the same model.
func (m *OllamaManager) HasModel(ctx context.Context, model string) (bool, error) {
	models, err := m.ListModels(ctx)
	if err != nil {
		return false, err
	}
	return modelListed(models, model), nil
}

func modelListed(models []string, model string) bool {
	modelLower := strings.ToLower(model)
	modelBase := strings.Split(modelLower, ":")[0]

	for _, available := range models {
		availableLower := strings.ToLower(available)
		availableBase := strings.Split(availableLower, ":")[0]

		if availableLower == modelLower || availableBase == modelBase {
			return true
		}
	}
	return false
}

// Status checks installation, liveness, and which of the requested
// models are present. rigqa asks for two: the embedding model and the
// generation model.
func (m *OllamaManager) Status(ctx context.Context, models ...string) (*OllamaStatus, error) {
	status := &OllamaStatus{}

	installed, path, err := m.IsInstalled()
	if err != nil {
		return nil, fmt.Errorf("failed to check installation: %w", err)
	}
	status.Installed = installed
	status.InstalledPath = path

	running, err := m.IsRunning()
	if err != nil {
		return nil, fmt.Errorf("failed to check if running: %w", err)
	}
	status.Running = running

	if !running {
		// Cannot list models, so everything requested counts missing.
		status.Missing = append(status.Missing, models...)
		return status, nil
	}

	available, err := m.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	status.Models = available

	for _, model := range models {
		if model != "" && !modelListed(available, model) {
			status.Missing = append(status.Missing, model)
		}
	}
	return status, nil
}

// Start attempts to start Ollama
func (m *OllamaManager) Start() error {
	installed, path, err := m.IsInstalled()
	if err != nil {
		return fmt.Errorf("failed to check installation: %w", err)
	}
	if !installed {
		return &NotInstalledError{}
	}

	if running, _ := m.IsRunning(); running {
		return nil
	}

	switch runtime.GOOS {
	case "darwin":
		return m.startMacOS(path)
	case "linux":
		return m.startLinux(path)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// startMacOS starts Ollama on macOS, preferring the app bundle over
// a bare serve process so the menu bar icon shows up.
func (m *OllamaManager) startMacOS(path string) error {
	if strings.HasSuffix(path, ".app") || m.fileExists("/Applications/Ollama.app") {
		cmd := m.execCommand("open", "-a", "Ollama")
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("failed to open Ollama.app: %w", err)
		}
		return nil
	}
	return m.startOllamaServe(path)
}

// startLinux starts Ollama on Linux, going through systemd when a unit
// exists and falling back to a direct serve process.
func (m *OllamaManager) startLinux(path string) error {
	probe := m.execCommand("systemctl", "is-active", "--quiet", "ollama")
	if err := probe.Run(); err == nil {
		if err := m.execCommand("systemctl", "start", "ollama").Run(); err == nil {
			return nil
		}
		if err := m.execCommand("systemctl", "--user", "start", "ollama").Run(); err == nil {
			return nil
		}
	}
	return m.startOllamaServe(path)
}

// startOllamaServe launches a detached ollama serve process.
func (m *OllamaManager) startOllamaServe(path string) error {
	cmd := m.execCommand(path, "serve")
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ollama serve: %w", err)
	}

	// Reap the process when it exits so it cannot linger as a zombie
	go func() { _ = cmd.Wait() }()

	return nil
}

// WaitForReady polls until Ollama is responding or the timeout expires
func (m *OllamaManager) WaitForReady(ctx context.Context, timeout time.Duration) error {
	if timeout == 0 {
		timeout = StartupTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Back off between probes so a slow cold start is not hammered
	for interval := ReadyPollInterval; ; {
		if running, _ := m.IsRunning(); running {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for Ollama to start: %w", ctx.Err())
		case <-time.After(interval):
		}

		if interval *= 2; interval > MaxReadyPollInterval {
			interval = MaxReadyPollInterval
		}
	}
}

// PullModel pulls a model with progress reporting. Already-present
// models return immediately.
func (m *OllamaManager) PullModel(ctx context.Context, model string, progressFunc func(PullProgress)) error {
	hasModel, err := m.HasModel(ctx, model)
	if err != nil {
		return fmt.Errorf("failed to check model: %w", err)
	}
	if hasModel {
		return nil
	}

	body, err := json.Marshal(struct {
		Name   string `json:"name"`
		Stream bool   `json:"stream"`
	}{Name: model, Stream: true})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, PullTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.host+"/api/pull", strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// Zero client timeout, the response body streams until the pull ends
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return fmt.Errorf("failed to start pull: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("pull failed with status %d: %s", resp.StatusCode, string(msg))
	}

	return streamPullProgress(ctx, resp.Body, progressFunc)
}

// streamPullProgress reads the pull's newline-delimited JSON progress
// stream, forwarding parsed updates and skipping malformed lines.
func streamPullProgress(ctx context.Context, r io.Reader, progressFunc func(PullProgress)) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Text()
		if line == "" {
			continue
		}

		var update struct {
			Status    string `json:"status"`
			Digest    string `json:"digest"`
			Total     int64  `json:"total"`
			Completed int64  `json:"completed"`
		}
		if err := json.Unmarshal([]byte(line), &update); err != nil {
			continue
		}

		if progressFunc != nil {
			percent := 0.0
			if update.Total > 0 {
				percent = float64(update.Completed) / float64(update.Total) * 100
			}
			progressFunc(PullProgress{
				Status:    update.Status,
				Digest:    update.Digest,
				Total:     update.Total,
				Completed: update.Completed,
				Percent:   percent,
			})
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading pull response: %w", err)
	}
	return nil
}

// Sentinel error types, matched by callers to pick the right prompt

// NotInstalledError indicates Ollama is not installed
type NotInstalledError struct{}

func (e *NotInstalledError) Error() string { return "ollama is not installed" }

// NotRunningError indicates Ollama is installed but not running
type NotRunningError struct{}

func (e *NotRunningError) Error() string { return "ollama is not running" }

// ModelNotFoundError indicates a required model is not available
type ModelNotFoundError struct {
	Model string
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model %s not found", e.Model)
}

// InstallInstructions returns platform-specific install instructions
func InstallInstructions() string {
	switch runtime.GOOS {
	case "darwin":
		return `Ollama is required for semantic search and generated answers.

Install options:
  1. Download from: https://ollama.com/download
  2. Or via Homebrew: brew install ollama

After installation, run: rigqa init`
	case "linux":
		return `Ollama is required for semantic search and generated answers.

Install:
  curl -fsSL https://ollama.com/install.sh | sh

After installation, run: rigqa init`
	default:
		return `Ollama is required for semantic search and generated answers.

Download from: https://ollama.com/download

After installation, run: rigqa init`
	}
}
