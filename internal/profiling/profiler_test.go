package profiling

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertNonEmptyFile(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestSession_WritesAllProfiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "profiles")

	s, err := Start(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, s.Dir())

	// Generate some CPU samples.
	sum := 0
	for i := 0; i < 1000000; i++ {
		sum += i
	}
	_ = sum

	require.NoError(t, s.Stop())

	assertNonEmptyFile(t, filepath.Join(dir, "cpu.prof"))
	assertNonEmptyFile(t, filepath.Join(dir, "heap.prof"))
	assertNonEmptyFile(t, filepath.Join(dir, "goroutine.prof"))
}

func TestStart_BadDirectory(t *testing.T) {
	// A file in place of the directory makes MkdirAll fail.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err := Start(filepath.Join(blocker, "profiles"))
	require.Error(t, err)
}

func TestWriteHeap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heap.prof")

	require.NoError(t, WriteHeap(path))
	assertNonEmptyFile(t, path)
}

func TestWriteGoroutine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "goroutine.prof")

	require.NoError(t, WriteGoroutine(path))
	assertNonEmptyFile(t, path)
}
