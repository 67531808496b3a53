// Package daemon keeps the query stack warm between CLI invocations.
// Opening the chunk store, loading the vector index, and probing the
// model backends cost more than most queries; the daemon pays those
// once and answers ask and search requests over a Unix socket. While it
// runs it holds the data directory lock, so CLI queries route through
// it instead of opening the store themselves.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rigdocs/rigqa/internal/config"
)

// Config holds daemon service settings. One daemon serves one index.
type Config struct {
	// DataDir is the index the daemon serves.
	DataDir string

	// SocketPath is the Unix domain socket clients connect to.
	// Default: <data-dir>/daemon.sock
	SocketPath string

	// PIDPath stores the daemon's process ID.
	// Default: <data-dir>/daemon.pid
	PIDPath string

	// Timeout bounds one client request round trip. Answer generation
	// with continuations can run for minutes on a slow model.
	// Default: 2m
	Timeout time.Duration

	// ShutdownGracePeriod is the time to wait for in-flight requests
	// during shutdown.
	// Default: 10s
	ShutdownGracePeriod time.Duration

	// IdleTimeout shuts the daemon down after this long without an ask
	// or search, releasing the data directory lock for reindexing.
	// Zero disables idle shutdown.
	// Default: 30m
	IdleTimeout time.Duration
}

// ConfigForDataDir returns the daemon configuration for an index data
// directory. Socket and PID files live inside it. Unix socket paths are
// length-limited (about 100 bytes); very deep data directories can
// exceed that.
func ConfigForDataDir(dataDir string) Config {
	return Config{
		DataDir:             dataDir,
		SocketPath:          filepath.Join(dataDir, "daemon.sock"),
		PIDPath:             filepath.Join(dataDir, "daemon.pid"),
		Timeout:             2 * time.Minute,
		ShutdownGracePeriod: 10 * time.Second,
		IdleTimeout:         30 * time.Minute,
	}
}

// DefaultConfig returns the configuration for the default data
// directory (~/.rigqa).
func DefaultConfig() Config {
	return ConfigForDataDir(config.DefaultDataDir())
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}
	if c.SocketPath == "" {
		return fmt.Errorf("socket path cannot be empty")
	}
	if c.PIDPath == "" {
		return fmt.Errorf("PID path cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.ShutdownGracePeriod <= 0 {
		return fmt.Errorf("shutdown grace period must be positive")
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("idle timeout cannot be negative")
	}
	return nil
}

// EnsureDir creates the directories for the socket and PID files.
func (c Config) EnsureDir() error {
	socketDir := filepath.Dir(c.SocketPath)
	if err := os.MkdirAll(socketDir, 0755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	if pidDir := filepath.Dir(c.PIDPath); pidDir != socketDir {
		if err := os.MkdirAll(pidDir, 0755); err != nil {
			return fmt.Errorf("failed to create PID directory: %w", err)
		}
	}

	return nil
}
