// Package session persists chat transcripts under the data directory
// so conversations can be listed and resumed across runs.
package session

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rigdocs/rigqa/pkg/version"
)

// titleLimit caps the derived session title length in runes.
const titleLimit = 60

// Turn is one question/answer exchange in a session.
type Turn struct {
	// Question as the user asked it.
	Question string `json:"question"`

	// Answer as generated, including degraded-path answers.
	Answer string `json:"answer"`

	// Sources lists the documents the answer drew on.
	Sources []string `json:"sources,omitempty"`

	// SearchMethod is the retrieval method reported for the answer.
	SearchMethod string `json:"search_method,omitempty"`

	// AskedAt is when the question was asked.
	AskedAt time.Time `json:"asked_at"`
}

// Session is one chat transcript.
type Session struct {
	// ID is the generated session identifier.
	ID string `json:"id"`

	// Title summarizes the session, derived from the first question.
	Title string `json:"title,omitempty"`

	// CreatedAt is when the session was started.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the session last changed.
	UpdatedAt time.Time `json:"updated_at"`

	// Version is the rigqa version that created the session.
	Version string `json:"version"`

	// Turns is the transcript in ask order.
	Turns []Turn `json:"turns"`
}

// New creates an empty session with a fresh ID.
func New() *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		Version:   version.Version,
	}
}

// Append adds one exchange to the transcript. The first question also
// becomes the session title.
func (s *Session) Append(turn Turn) {
	if turn.AskedAt.IsZero() {
		turn.AskedAt = time.Now()
	}
	if s.Title == "" {
		s.Title = deriveTitle(turn.Question)
	}
	s.Turns = append(s.Turns, turn)
	s.UpdatedAt = time.Now()
}

// deriveTitle collapses whitespace and caps a question for listing.
func deriveTitle(question string) string {
	title := strings.Join(strings.Fields(question), " ")
	runes := []rune(title)
	if len(runes) <= titleLimit {
		return title
	}
	return string(runes[:titleLimit-3]) + "..."
}

// Info summarizes a session for listing.
type Info struct {
	// ID is the session identifier.
	ID string `json:"id"`

	// Title is the derived session title.
	Title string `json:"title"`

	// Turns is the number of exchanges.
	Turns int `json:"turns"`

	// UpdatedAt is when the session last changed.
	UpdatedAt time.Time `json:"updated_at"`

	// Size is the transcript file size in bytes.
	Size int64 `json:"size"`
}

// ToInfo converts a Session to its listing summary.
func (s *Session) ToInfo(size int64) *Info {
	return &Info{
		ID:        s.ID,
		Title:     s.Title,
		Turns:     len(s.Turns),
		UpdatedAt: s.UpdatedAt,
		Size:      size,
	}
}
