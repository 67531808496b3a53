package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	// sessionExt is the transcript file extension.
	sessionExt = ".json"

	// maxIDLength is the maximum allowed session ID length.
	maxIDLength = 64
)

// validIDPattern matches the characters a transcript file may be named
// with: UUIDs plus letters, numbers, hyphens, and underscores.
var validIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateID rejects IDs that cannot safely name a transcript file.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	if len(id) > maxIDLength {
		return fmt.Errorf("session id too long (max %d chars)", maxIDLength)
	}
	if !validIDPattern.MatchString(id) {
		return fmt.Errorf("session id can only contain letters, numbers, hyphens, and underscores")
	}
	return nil
}

// Save persists a session under dir as <id>.json.
// Creates the directory if it doesn't exist.
// Uses atomic write (temp file + rename) for safety.
func Save(sess *Session, dir string) error {
	if err := ValidateID(sess.ID); err != nil {
		return fmt.Errorf("invalid session id: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create session storage: %w", err)
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	path := filepath.Join(dir, sess.ID+sessionExt)
	tmpPath := path + ".tmp"

	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to save session file: %w", err)
	}
	return nil
}

// Load reads one transcript file.
// Returns an error if the file doesn't exist or is corrupted.
func Load(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("session file not found: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}

	// A transcript missing its ID recovers it from the filename.
	if sess.ID == "" {
		sess.ID = strings.TrimSuffix(filepath.Base(path), sessionExt)
	}

	return &sess, nil
}
