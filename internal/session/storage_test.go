package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"uuid", "3f2a8c1e-9b4d-4e7f-a1c2-5d6e7f8a9b0c", false},
		{"simple name", "morning-review", false},
		{"underscores", "rig_14_notes", false},
		{"empty", "", true},
		{"too long", strings.Repeat("a", maxIDLength+1), true},
		{"path traversal", "../../etc/passwd", true},
		{"spaces", "my session", true},
		{"dots", "sess.ion", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID(tt.id)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	sess := New()
	sess.Append(Turn{
		Question:     "What was done on Sept 6?",
		Answer:       "Circulated WBM.",
		Sources:      []string{"report_sep06.txt"},
		SearchMethod: "hybrid",
	})

	require.NoError(t, Save(sess, dir))

	loaded, err := Load(filepath.Join(dir, sess.ID+sessionExt))
	require.NoError(t, err)

	assert.Equal(t, sess.ID, loaded.ID)
	assert.Equal(t, sess.Title, loaded.Title)
	require.Len(t, loaded.Turns, 1)
	assert.Equal(t, "What was done on Sept 6?", loaded.Turns[0].Question)
	assert.Equal(t, []string{"report_sep06.txt"}, loaded.Turns[0].Sources)
	assert.Equal(t, "hybrid", loaded.Turns[0].SearchMethod)
}

func TestSave_RejectsInvalidID(t *testing.T) {
	sess := New()
	sess.ID = "../escape"

	err := Save(sess, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid session id")
}

func TestSave_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sessions")
	sess := New()

	require.NoError(t, Save(sess, dir))

	_, err := os.Stat(filepath.Join(dir, sess.ID+sessionExt))
	assert.NoError(t, err)
}

func TestSave_LeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	sess := New()

	require.NoError(t, Save(sess, dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, strings.HasSuffix(entry.Name(), ".tmp"), "temp file left behind: %s", entry.Name())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestLoad_CorruptJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

func TestLoad_RecoversIDFromFilename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orphan.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"turns": []}`), 0o644))

	sess, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "orphan", sess.ID)
}
