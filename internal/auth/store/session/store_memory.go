package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"talentgate/internal/auth/models"
	"talentgate/internal/sentinel"
	id "talentgate/pkg/domain"
)

// InMemorySessionStore stores sessions in memory for tests/dev.
// Sessions are copied on the way in and out so callers never share state.
type InMemorySessionStore struct {
	mu        sync.RWMutex
	sessions  map[id.SessionID]*models.Session
	byRefresh map[string]id.SessionID
}

// New constructs an empty in-memory session store.
func New() *InMemorySessionStore {
	return &InMemorySessionStore{
		sessions:  make(map[id.SessionID]*models.Session),
		byRefresh: make(map[string]id.SessionID),
	}
}

func (s *InMemorySessionStore) Create(_ context.Context, session *models.Session) error {
	if session == nil {
		return fmt.Errorf("session is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID]; exists {
		return fmt.Errorf("session already exists: %w", sentinel.ErrConflict)
	}
	if jti := session.RefreshTokenJTI; jti != "" {
		if _, exists := s.byRefresh[jti]; exists {
			return fmt.Errorf("refresh token already bound: %w", sentinel.ErrConflict)
		}
		s.byRefresh[jti] = session.ID
	}
	s.sessions[session.ID] = clone(session)
	return nil
}

func (s *InMemorySessionStore) FindByID(_ context.Context, sessionID id.SessionID) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if session, ok := s.sessions[sessionID]; ok {
		return clone(session), nil
	}
	return nil, fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
}

func (s *InMemorySessionStore) FindByRefreshJTI(_ context.Context, jti string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sessionID, ok := s.byRefresh[jti]; ok {
		if session, ok := s.sessions[sessionID]; ok {
			return clone(session), nil
		}
	}
	return nil, fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
}

func (s *InMemorySessionStore) ListByUser(_ context.Context, userID id.UserID) ([]*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]*models.Session, 0)
	for _, session := range s.sessions {
		if session.UserID == userID {
			sessions = append(sessions, clone(session))
		}
	}
	return sessions, nil
}

// RevokeSessionIfActive stamps revoked_at under the write lock.
func (s *InMemorySessionStore) RevokeSessionIfActive(_ context.Context, sessionID id.SessionID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
	}
	if !session.Revoke(now) {
		return ErrSessionRevoked
	}
	return nil
}

// DeleteExpiredSessions removes all sessions that have expired as of now.
func (s *InMemorySessionStore) DeleteExpiredSessions(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for sessionID, session := range s.sessions {
		if !now.Before(session.ExpiresAt) {
			delete(s.byRefresh, session.RefreshTokenJTI)
			delete(s.sessions, sessionID)
			deleted++
		}
	}
	return deleted, nil
}

func clone(session *models.Session) *models.Session {
	c := *session
	if session.RevokedAt != nil {
		revokedAt := *session.RevokedAt
		c.RevokedAt = &revokedAt
	}
	return &c
}
