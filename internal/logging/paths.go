package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns the default log directory (~/.rigqa/logs/).
// Falls back to the temp directory if the home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".rigqa", "logs")
	}
	return filepath.Join(home, ".rigqa", "logs")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "rigqa.log")
}

// PathInDir returns the log file path inside a custom data directory,
// for runs with --data-dir set.
func PathInDir(dataDir string) string {
	return filepath.Join(dataDir, "logs", "rigqa.log")
}
