package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/nvandessel/triad-choice/internal/models"
)

// InMemorySessionStore implements SessionStore without persistence. It backs
// runs started with archiving disabled.
type InMemorySessionStore struct {
	mu        sync.RWMutex
	sessions  map[string]*SessionMeta
	responses map[string][]models.ResponseRecord
}

// NewInMemorySessionStore creates a new in-memory store.
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{
		sessions:  make(map[string]*SessionMeta),
		responses: make(map[string][]models.ResponseRecord),
	}
}

// CreateSession registers a new session.
func (s *InMemorySessionStore) CreateSession(ctx context.Context, meta SessionMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if meta.ID == "" {
		return fmt.Errorf("session ID is required")
	}
	if _, exists := s.sessions[meta.ID]; exists {
		return fmt.Errorf("session %s already exists", meta.ID)
	}
	if meta.Status == "" {
		meta.Status = StatusRunning
	}
	s.sessions[meta.ID] = &meta
	return nil
}

// AppendResponse archives one answered trial.
func (s *InMemorySessionStore) AppendResponse(ctx context.Context, sessionID string, rec models.ResponseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sessionID]; !exists {
		return fmt.Errorf("append response: %w: %s", ErrSessionNotFound, sessionID)
	}
	for _, r := range s.responses[sessionID] {
		if r.TrialIndex == rec.TrialIndex {
			return fmt.Errorf("trial %d of session %s already recorded", rec.TrialIndex, sessionID)
		}
	}
	s.responses[sessionID] = append(s.responses[sessionID], rec.Clone())
	return nil
}

// FinishSession sets the final status and end time.
func (s *InMemorySessionStore) FinishSession(ctx context.Context, sessionID, status string, endedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, exists := s.sessions[sessionID]
	if !exists {
		return fmt.Errorf("finish session: %w: %s", ErrSessionNotFound, sessionID)
	}
	meta.Status = status
	meta.EndedAt = &endedAt
	return nil
}

// GetSession returns a copy of the session's metadata.
func (s *InMemorySessionStore) GetSession(ctx context.Context, sessionID string) (*SessionMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, exists := s.sessions[sessionID]
	if !exists {
		return nil, fmt.Errorf("get session: %w: %s", ErrSessionNotFound, sessionID)
	}
	cp := *meta
	cp.Answered = len(s.responses[sessionID])
	return &cp, nil
}

// ListSessions returns all sessions, most recent first.
func (s *InMemorySessionStore) ListSessions(ctx context.Context) ([]SessionMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]SessionMeta, 0, len(s.sessions))
	for id, meta := range s.sessions {
		cp := *meta
		cp.Answered = len(s.responses[id])
		out = append(out, cp)
	}
	slices.SortFunc(out, func(a, b SessionMeta) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	return out, nil
}

// Responses returns a session's answers in trial order.
func (s *InMemorySessionStore) Responses(ctx context.Context, sessionID string) ([]models.ResponseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.sessions[sessionID]; !exists {
		return nil, fmt.Errorf("responses: %w: %s", ErrSessionNotFound, sessionID)
	}
	out := make([]models.ResponseRecord, 0, len(s.responses[sessionID]))
	for _, r := range s.responses[sessionID] {
		out = append(out, r.Clone())
	}
	slices.SortFunc(out, func(a, b models.ResponseRecord) int {
		return a.TrialIndex - b.TrialIndex
	})
	return out, nil
}

// Close is a no-op.
func (s *InMemorySessionStore) Close() error {
	return nil
}
