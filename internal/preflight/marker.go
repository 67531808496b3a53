package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// MarkerFile records a passing preflight run in the data directory.
const MarkerFile = ".preflight-passed"

func markerPath(dataDir string) string {
	return filepath.Join(dataDir, MarkerFile)
}

// NeedsCheck returns true if preflight checks should be run, which is
// whenever the marker file is absent.
func NeedsCheck(dataDir string) bool {
	_, err := os.Stat(markerPath(dataDir))
	return os.IsNotExist(err)
}

// MarkPassed writes the marker file with the current timestamp.
func MarkPassed(dataDir string) error {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("create marker directory: %w", err)
	}

	stamp := []byte(time.Now().Format(time.RFC3339))
	return os.WriteFile(markerPath(dataDir), stamp, 0644)
}

// ClearMarker removes the marker file, forcing a re-check on next run.
func ClearMarker(dataDir string) error {
	if err := os.Remove(markerPath(dataDir)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove marker file: %w", err)
	}
	return nil
}

// MarkerAge returns how long ago the preflight check passed, or zero
// if the marker is missing or unreadable.
func MarkerAge(dataDir string) time.Duration {
	content, err := os.ReadFile(markerPath(dataDir))
	if err != nil {
		return 0
	}

	t, err := time.Parse(time.RFC3339, string(content))
	if err != nil {
		return 0
	}
	return time.Since(t)
}
