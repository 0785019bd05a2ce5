package service

import (
	"context"
	"sort"

	"talentgate/internal/auth/models"
	id "talentgate/pkg/domain"
	dErrors "talentgate/pkg/domain-errors"
)

// Logout revokes the session the principal authenticated with.
func (s *Service) Logout(ctx context.Context, principal *models.Principal) error {
	if principal == nil {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if !principal.HasSession() {
		return dErrors.New(dErrors.CodeSessionNotFound, "token is not bound to a session")
	}
	return s.RevokeSession(ctx, principal.SessionID)
}

// RevokeSession revokes one session. Revoking an already revoked session succeeds.
func (s *Service) RevokeSession(ctx context.Context, sessionID id.SessionID) error {
	if err := s.sessions.Revoke(ctx, sessionID); err != nil {
		return s.authFailure(ctx, "logout", err, "session_id", sessionID.String())
	}
	s.metrics.AddSessionsRevoked(1)
	s.logEvent(ctx, "session_revoked", "session_id", sessionID.String())
	return nil
}

// RevokeOwnSession revokes a session on behalf of its owner. A session that
// belongs to someone else is reported as not found.
func (s *Service) RevokeOwnSession(ctx context.Context, userID id.UserID, sessionID id.SessionID) error {
	sess, err := s.sessions.Find(ctx, sessionID)
	if err != nil {
		return s.authFailure(ctx, "logout", err, "user_id", userID.String(), "session_id", sessionID.String())
	}
	if sess.UserID != userID {
		return s.authFailure(ctx, "logout", dErrors.New(dErrors.CodeSessionNotFound, "session not found"),
			"user_id", userID.String(), "session_id", sessionID.String())
	}
	return s.RevokeSession(ctx, sessionID)
}

// LogoutAll revokes every live session of the user. When keep is set that
// session survives.
func (s *Service) LogoutAll(ctx context.Context, userID id.UserID, keep *id.SessionID) (*models.LogoutAllResult, error) {
	revoked, err := s.sessions.RevokeAllForUser(ctx, userID, keep)
	if err != nil {
		return nil, s.authFailure(ctx, "logout_all", err, "user_id", userID.String())
	}
	s.metrics.AddSessionsRevoked(revoked)
	s.metrics.ObserveLogoutAll(revoked)
	s.logEvent(ctx, "sessions_revoked_all", "user_id", userID.String(), "revoked_count", revoked)
	return &models.LogoutAllResult{RevokedCount: revoked}, nil
}

// ListSessions returns the user's live sessions, newest first, marking current.
func (s *Service) ListSessions(ctx context.Context, userID id.UserID, current id.SessionID) (*models.SessionsResult, error) {
	sessions, err := s.sessions.ListLive(ctx, userID)
	if err != nil {
		return nil, err
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	out := make([]models.SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, models.SessionSummary{
			SessionID: sess.ID.String(),
			Device:    sess.DeviceDisplayName,
			CreatedAt: sess.CreatedAt,
			ExpiresAt: sess.ExpiresAt,
			IsCurrent: sess.ID == current,
		})
	}
	return &models.SessionsResult{Sessions: out}, nil
}

// Me returns the public profile of the user.
func (s *Service) Me(ctx context.Context, userID id.UserID) (*models.UserInfoResult, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, translateUserError(err, dErrors.CodeUserNotFound, "user not found")
	}
	info := models.NewUserInfoResult(user)
	return &info, nil
}
