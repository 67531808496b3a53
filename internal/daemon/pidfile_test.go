package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stalePID is above the default Linux PID ceiling, so no live process
// can hold it.
const stalePID = 4194304

func pidPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "daemon.pid")
}

func TestPIDFile_WriteReadRoundTrip(t *testing.T) {
	pf := NewPIDFile(pidPath(t))

	require.NoError(t, pf.Write())

	pid, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestPIDFile_Write_CreatesDirectory(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "nested", "deep", "daemon.pid")

	pf := NewPIDFile(nested)
	require.NoError(t, pf.Write())

	_, err := os.Stat(nested)
	require.NoError(t, err)
}

func TestPIDFile_Read_NotExists(t *testing.T) {
	pf := NewPIDFile(filepath.Join(t.TempDir(), "nonexistent.pid"))

	_, err := pf.Read()
	require.ErrorIs(t, err, ErrPIDFileNotFound)
}

func TestPIDFile_Read_InvalidContent(t *testing.T) {
	path := pidPath(t)
	require.NoError(t, os.WriteFile(path, []byte("not-a-number"), 0644))

	_, err := NewPIDFile(path).Read()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid PID")
}

func TestPIDFile_Read_TrailingNewline(t *testing.T) {
	path := pidPath(t)
	require.NoError(t, os.WriteFile(path, []byte("12345\n"), 0644))

	pid, err := NewPIDFile(path).Read()
	require.NoError(t, err)
	assert.Equal(t, 12345, pid)
}

func TestPIDFile_Remove(t *testing.T) {
	path := pidPath(t)
	require.NoError(t, os.WriteFile(path, []byte("12345"), 0644))

	pf := NewPIDFile(path)
	require.NoError(t, pf.Remove())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Removing again is not an error
	require.NoError(t, pf.Remove())
}

func TestPIDFile_IsRunning(t *testing.T) {
	t.Run("current process", func(t *testing.T) {
		path := pidPath(t)
		require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644))

		assert.True(t, NewPIDFile(path).IsRunning())
	})

	t.Run("no file", func(t *testing.T) {
		assert.False(t, NewPIDFile(filepath.Join(t.TempDir(), "nonexistent.pid")).IsRunning())
	})

	t.Run("stale PID", func(t *testing.T) {
		path := pidPath(t)
		require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(stalePID)), 0644))

		assert.False(t, NewPIDFile(path).IsRunning())
	})
}

func TestPIDFile_Signal(t *testing.T) {
	path := pidPath(t)
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644))

	// Signal 0 probes without delivering anything.
	err := NewPIDFile(path).Signal(syscall.Signal(0))
	require.NoError(t, err)
}

func TestPIDFile_Signal_NoProcess(t *testing.T) {
	path := pidPath(t)
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(stalePID)), 0644))

	err := NewPIDFile(path).Signal(syscall.Signal(0))
	require.Error(t, err)
}
