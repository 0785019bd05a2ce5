// Package session owns the lifecycle of server-side sessions: creation,
// lookup, revocation and liveness checks. Stores only persist; every
// translation from store errors into the auth error taxonomy happens here.
package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"talentgate/internal/auth/device"
	"talentgate/internal/auth/models"
	sessionstore "talentgate/internal/auth/store/session"
	"talentgate/internal/sentinel"
	id "talentgate/pkg/domain"
	dErrors "talentgate/pkg/domain-errors"
)

// Store persists sessions.
// Error Contract: see talentgate/internal/auth/store/session.
type Store interface {
	Create(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	FindByRefreshJTI(ctx context.Context, jti string) (*models.Session, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]*models.Session, error)
	RevokeSessionIfActive(ctx context.Context, sessionID id.SessionID, now time.Time) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error)
}

// CreateParams describes a session to open. When ExpiresAt is set it wins
// over TTL, which lets a rotated session inherit its predecessor's deadline.
type CreateParams struct {
	ID              id.SessionID
	UserID          id.UserID
	RefreshTokenJTI string
	IPAddress       string
	UserAgent       string
	TTL             time.Duration
	ExpiresAt       time.Time
}

type Manager struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides the time source used for expiry and revocation stamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Now returns the manager's clock reading.
func (m *Manager) Now() time.Time {
	return m.now()
}

// Create opens a new session for the user.
func (m *Manager) Create(ctx context.Context, params CreateParams) (*models.Session, error) {
	if params.UserID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}
	if params.RefreshTokenJTI == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "refresh token jti is required")
	}
	now := m.now()
	expiresAt := params.ExpiresAt
	if expiresAt.IsZero() {
		if params.TTL <= 0 {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "session ttl must be positive")
		}
		expiresAt = now.Add(params.TTL)
	}
	if !now.Before(expiresAt) {
		return nil, dErrors.New(dErrors.CodeSessionExpired, "session would already be expired")
	}
	sessionID := params.ID
	if sessionID.IsNil() {
		sessionID = id.NewSessionID()
	}

	session := &models.Session{
		ID:                sessionID,
		UserID:            params.UserID,
		RefreshTokenJTI:   params.RefreshTokenJTI,
		IPAddress:         params.IPAddress,
		UserAgent:         params.UserAgent,
		DeviceDisplayName: device.DisplayName(params.UserAgent),
		CreatedAt:         now,
		ExpiresAt:         expiresAt,
	}
	if err := m.store.Create(ctx, session); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "session already exists")
		}
		return nil, m.infrastructure(ctx, err, "failed to create session")
	}
	return session, nil
}

// Find returns the session or session_not_found. Any other store failure is
// reported as an infrastructure error.
func (m *Manager) Find(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	session, err := m.store.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeSessionNotFound, "session not found")
		}
		return nil, m.infrastructure(ctx, err, "failed to load session")
	}
	return session, nil
}

// FindByRefreshJTI resolves the session anchored to a refresh token.
func (m *Manager) FindByRefreshJTI(ctx context.Context, jti string) (*models.Session, error) {
	if jti == "" {
		return nil, dErrors.New(dErrors.CodeSessionNotFound, "session not found")
	}
	session, err := m.store.FindByRefreshJTI(ctx, jti)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeSessionNotFound, "session not found")
		}
		return nil, m.infrastructure(ctx, err, "failed to load session")
	}
	return session, nil
}

// CheckLive returns nil when the session is usable at the manager's clock.
// Revocation takes precedence over expiry.
func (m *Manager) CheckLive(session *models.Session) error {
	if session.IsRevoked() {
		return dErrors.New(dErrors.CodeSessionRevoked, "session has been revoked")
	}
	if !m.now().Before(session.ExpiresAt) {
		return dErrors.New(dErrors.CodeSessionExpired, "session has expired")
	}
	return nil
}

// IsLive reports whether the session exists, is unrevoked and unexpired.
// A missing session is not live; other lookup failures are returned.
func (m *Manager) IsLive(ctx context.Context, sessionID id.SessionID) (bool, error) {
	session, err := m.Find(ctx, sessionID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeSessionNotFound) {
			return false, nil
		}
		return false, err
	}
	return session.IsLive(m.now()), nil
}

// RevokeIfActive revokes the session exactly once. A second caller observes
// session_revoked, which is what makes refresh rotation single-use.
func (m *Manager) RevokeIfActive(ctx context.Context, sessionID id.SessionID) error {
	err := m.store.RevokeSessionIfActive(ctx, sessionID, m.now())
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sessionstore.ErrSessionRevoked):
		return dErrors.Wrap(err, dErrors.CodeSessionRevoked, "session has been revoked")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeSessionNotFound, "session not found")
	default:
		return m.infrastructure(ctx, err, "failed to revoke session")
	}
}

// Revoke is the idempotent form of RevokeIfActive.
func (m *Manager) Revoke(ctx context.Context, sessionID id.SessionID) error {
	err := m.RevokeIfActive(ctx, sessionID)
	if dErrors.HasCode(err, dErrors.CodeSessionRevoked) {
		return nil
	}
	return err
}

// ListLive returns the user's unrevoked, unexpired sessions.
func (m *Manager) ListLive(ctx context.Context, userID id.UserID) ([]*models.Session, error) {
	sessions, err := m.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, m.infrastructure(ctx, err, "failed to list sessions")
	}
	now := m.now()
	live := make([]*models.Session, 0, len(sessions))
	for _, s := range sessions {
		if s.IsLive(now) {
			live = append(live, s)
		}
	}
	return live, nil
}

// RevokeAllForUser revokes every live session of the user, optionally
// sparing one (the caller's current session). Returns how many were revoked.
func (m *Manager) RevokeAllForUser(ctx context.Context, userID id.UserID, except *id.SessionID) (int, error) {
	sessions, err := m.ListLive(ctx, userID)
	if err != nil {
		return 0, err
	}
	revoked := 0
	for _, s := range sessions {
		if except != nil && s.ID == *except {
			continue
		}
		err := m.RevokeIfActive(ctx, s.ID)
		switch {
		case err == nil:
			revoked++
		case dErrors.HasCode(err, dErrors.CodeSessionRevoked), dErrors.HasCode(err, dErrors.CodeSessionNotFound):
			// lost a race with another revoker or the cleanup worker
		default:
			return revoked, err
		}
	}
	return revoked, nil
}

// DeleteExpired purges sessions past their deadline.
func (m *Manager) DeleteExpired(ctx context.Context) (int, error) {
	n, err := m.store.DeleteExpiredSessions(ctx, m.now())
	if err != nil {
		return 0, m.infrastructure(ctx, err, "failed to delete expired sessions")
	}
	return n, nil
}

func (m *Manager) infrastructure(ctx context.Context, err error, msg string) error {
	m.logger.ErrorContext(ctx, msg, "error", err)
	return dErrors.Wrap(err, dErrors.CodeAuthInfrastructure, msg)
}
