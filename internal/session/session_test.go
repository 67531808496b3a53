package session

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_GeneratesUniqueIDs(t *testing.T) {
	a := New()
	b := New()

	assert.NotEqual(t, a.ID, b.ID)
	_, err := uuid.Parse(a.ID)
	assert.NoError(t, err)

	assert.False(t, a.CreatedAt.IsZero())
	assert.False(t, a.UpdatedAt.IsZero())
	assert.NotEmpty(t, a.Version)
	assert.Empty(t, a.Turns)
}

func TestAppend_SetsTitleFromFirstQuestion(t *testing.T) {
	sess := New()

	sess.Append(Turn{
		Question:     "What was done on Sept 6?",
		Answer:       "Circulated WBM and conditioned the hole.",
		Sources:      []string{"report_sep06.txt"},
		SearchMethod: "hybrid",
	})
	sess.Append(Turn{
		Question: "And the day after?",
		Answer:   "Tripped out of hole to the shoe.",
	})

	assert.Equal(t, "What was done on Sept 6?", sess.Title)
	require.Len(t, sess.Turns, 2)
	assert.False(t, sess.Turns[0].AskedAt.IsZero())
	assert.False(t, sess.Turns[1].AskedAt.IsZero())
}

func TestAppend_BumpsUpdatedAt(t *testing.T) {
	sess := New()
	sess.UpdatedAt = time.Now().Add(-time.Hour)

	sess.Append(Turn{Question: "q", Answer: "a"})

	assert.WithinDuration(t, time.Now(), sess.UpdatedAt, time.Minute)
}

func TestDeriveTitle_CapsLongQuestions(t *testing.T) {
	long := strings.Repeat("what about the gyro survey ", 5)

	title := deriveTitle(long)

	assert.LessOrEqual(t, len([]rune(title)), titleLimit)
	assert.True(t, strings.HasSuffix(title, "..."))
}

func TestDeriveTitle_CollapsesWhitespace(t *testing.T) {
	title := deriveTitle("  What was\n\tdone   on Sept 6?  ")
	assert.Equal(t, "What was done on Sept 6?", title)
}

func TestToInfo(t *testing.T) {
	sess := New()
	sess.Append(Turn{Question: "How many bbls in the sweep?", Answer: "30 bbls."})

	info := sess.ToInfo(512)

	assert.Equal(t, sess.ID, info.ID)
	assert.Equal(t, "How many bbls in the sweep?", info.Title)
	assert.Equal(t, 1, info.Turns)
	assert.Equal(t, int64(512), info.Size)
	assert.Equal(t, sess.UpdatedAt, info.UpdatedAt)
}
