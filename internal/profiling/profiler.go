// Package profiling captures pprof data for a single command run.
package profiling

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
)

// Session profiles one command invocation. Start begins CPU profiling
// immediately; Stop finishes it and writes heap and goroutine
// snapshots alongside.
type Session struct {
	dir     string
	cpuFile *os.File
}

// Start creates the profile directory and begins CPU profiling.
func Start(dir string) (*Session, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create profile directory: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, "cpu.prof"))
	if err != nil {
		return nil, fmt.Errorf("create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("start CPU profile: %w", err)
	}

	return &Session{dir: dir, cpuFile: f}, nil
}

// Stop ends CPU profiling and writes the point-in-time snapshots.
func (s *Session) Stop() error {
	pprof.StopCPUProfile()
	err := s.cpuFile.Close()

	if herr := WriteHeap(filepath.Join(s.dir, "heap.prof")); herr != nil {
		err = errors.Join(err, herr)
	}
	if gerr := WriteGoroutine(filepath.Join(s.dir, "goroutine.prof")); gerr != nil {
		err = errors.Join(err, gerr)
	}
	return err
}

// Dir returns the directory profiles are written to.
func (s *Session) Dir() string {
	return s.dir
}

// WriteHeap writes a heap profile to the specified file. The garbage
// collector runs first so the snapshot reflects live objects.
func WriteHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create heap profile: %w", err)
	}
	defer func() { _ = f.Close() }()

	runtime.GC()

	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("write heap profile: %w", err)
	}
	return nil
}

// WriteGoroutine writes stack traces of all current goroutines to the
// specified file.
func WriteGoroutine(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create goroutine profile: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := pprof.Lookup("goroutine").WriteTo(f, 1); err != nil {
		return fmt.Errorf("write goroutine profile: %w", err)
	}
	return nil
}
