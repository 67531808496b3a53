package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DefaultMaxSessions is the default number of transcripts kept.
const DefaultMaxSessions = 20

// ManagerConfig configures the session manager.
type ManagerConfig struct {
	// StoragePath is the directory where transcripts are stored.
	StoragePath string

	// MaxSessions is the number of transcripts kept. When a save pushes
	// the count over the limit, the oldest transcripts are deleted.
	// Defaults to DefaultMaxSessions (20).
	MaxSessions int
}

// Manager handles transcript lifecycle operations.
type Manager struct {
	storagePath string
	maxSessions int
}

// NewManager creates a session manager.
// Creates the storage directory if it doesn't exist.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.StoragePath == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if err := os.MkdirAll(cfg.StoragePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session storage: %w", err)
	}

	maxSessions := cfg.MaxSessions
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}

	return &Manager{
		storagePath: cfg.StoragePath,
		maxSessions: maxSessions,
	}, nil
}

// New starts an empty session. Nothing is written until Save.
func (m *Manager) New() *Session {
	return New()
}

// Save persists a session, then prunes the oldest transcripts past the
// session limit. Updates the UpdatedAt timestamp.
func (m *Manager) Save(sess *Session) error {
	sess.UpdatedAt = time.Now()
	if err := Save(sess, m.storagePath); err != nil {
		return err
	}
	return m.pruneOverflow()
}

// List returns all transcripts, most recently updated first.
func (m *Manager) List() ([]*Info, error) {
	entries, err := os.ReadDir(m.storagePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []*Info{}, nil
		}
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var infos []*Info
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), sessionExt) {
			continue
		}

		sess, err := Load(filepath.Join(m.storagePath, entry.Name()))
		if err != nil {
			// Skip unreadable transcripts
			continue
		}

		var size int64
		if fi, err := entry.Info(); err == nil {
			size = fi.Size()
		}
		infos = append(infos, sess.ToInfo(size))
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].UpdatedAt.After(infos[j].UpdatedAt)
	})
	return infos, nil
}

// Get loads a transcript by ID. A unique ID prefix also resolves, so
// resuming does not require the full UUID.
func (m *Manager) Get(id string) (*Session, error) {
	if err := ValidateID(id); err != nil {
		return nil, fmt.Errorf("invalid session id: %w", err)
	}

	path := filepath.Join(m.storagePath, id+sessionExt)
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	matches, err := m.matchPrefix(id)
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("session '%s' not found", id)
	case 1:
		return Load(filepath.Join(m.storagePath, matches[0]+sessionExt))
	default:
		return nil, fmt.Errorf("session id '%s' is ambiguous (%d matches)", id, len(matches))
	}
}

// matchPrefix returns the IDs of transcripts whose ID starts with prefix.
func (m *Manager) matchPrefix(prefix string) ([]string, error) {
	entries, err := os.ReadDir(m.storagePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var matches []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), sessionExt) {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), sessionExt)
		if strings.HasPrefix(id, prefix) {
			matches = append(matches, id)
		}
	}
	return matches, nil
}

// Delete removes one transcript.
func (m *Manager) Delete(id string) error {
	if err := ValidateID(id); err != nil {
		return fmt.Errorf("invalid session id: %w", err)
	}

	path := filepath.Join(m.storagePath, id+sessionExt)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("session '%s' not found", id)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Prune removes transcripts not updated within the given duration.
// Returns the count of deleted transcripts.
func (m *Manager) Prune(olderThan time.Duration) (int, error) {
	infos, err := m.List()
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, info := range infos {
		if time.Since(info.UpdatedAt) > olderThan {
			if err := m.Delete(info.ID); err != nil {
				continue
			}
			deleted++
		}
	}
	return deleted, nil
}

// Exists checks if a transcript exists by exact ID.
func (m *Manager) Exists(id string) bool {
	_, err := os.Stat(filepath.Join(m.storagePath, id+sessionExt))
	return err == nil
}

// StoragePath returns the transcript directory.
func (m *Manager) StoragePath() string {
	return m.storagePath
}

// pruneOverflow deletes the oldest transcripts past the session limit.
func (m *Manager) pruneOverflow() error {
	infos, err := m.List()
	if err != nil {
		return err
	}
	if len(infos) <= m.maxSessions {
		return nil
	}
	for _, info := range infos[m.maxSessions:] {
		if err := m.Delete(info.ID); err != nil {
			continue
		}
	}
	return nil
}
