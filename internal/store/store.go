// Package store defines the SessionStore interface for archiving sessions
// and their responses.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/nvandessel/triad-choice/internal/models"
)

// ErrSessionNotFound is returned when a session ID is not in the archive.
var ErrSessionNotFound = errors.New("session not found")

// Session status values as stored in the archive.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusAborted   = "aborted"
)

// SessionMeta describes one archived session.
type SessionMeta struct {
	ID          string     `json:"id"`
	Task        string     `json:"task"`
	Seed        uint64     `json:"seed"`
	TotalTrials int        `json:"total_trials"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	Answered    int        `json:"answered"` // filled by GetSession and ListSessions
}

// SessionStore archives sessions as they run.
type SessionStore interface {
	// CreateSession registers a new session. The ID must be unique.
	CreateSession(ctx context.Context, meta SessionMeta) error

	// AppendResponse archives one answered trial. A trial can be stored only once.
	AppendResponse(ctx context.Context, sessionID string, rec models.ResponseRecord) error

	// FinishSession sets the final status and end time.
	FinishSession(ctx context.Context, sessionID, status string, endedAt time.Time) error

	// GetSession returns ErrSessionNotFound for unknown IDs.
	GetSession(ctx context.Context, sessionID string) (*SessionMeta, error)

	// ListSessions returns all sessions, most recent first.
	ListSessions(ctx context.Context) ([]SessionMeta, error)

	// Responses returns a session's answers in trial order.
	Responses(ctx context.Context, sessionID string) ([]models.ResponseRecord, error)

	Close() error
}
