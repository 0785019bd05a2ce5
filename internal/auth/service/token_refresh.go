package service

import (
	"context"
	"time"

	"talentgate/internal/auth/models"
	jwttoken "talentgate/internal/jwt_token"
	dErrors "talentgate/pkg/domain-errors"
)

// Refresh exchanges a refresh token for a new pair. The presented token's
// session is replaced by a successor that keeps the original absolute
// expiry, so a login never outlives its first deadline. Once Refresh returns
// at most one session per chain is live.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*models.TokenResult, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveTokenRefreshDuration(float64(time.Since(start).Milliseconds()))
	}()

	verified, err := s.tokens.Verify(refreshToken, jwttoken.TypeRefresh)
	if err != nil {
		return nil, s.authFailure(ctx, grantRefresh, err)
	}
	userID := verified.Identity.UserID

	sess, err := s.sessions.FindByRefreshJTI(ctx, verified.JTI)
	if err != nil {
		return nil, s.authFailure(ctx, grantRefresh, err, "user_id", userID.String())
	}
	if sess.UserID != userID {
		return nil, s.authFailure(ctx, grantRefresh, dErrors.New(dErrors.CodeSessionNotFound, "session not found"),
			"user_id", userID.String(), "session_id", sess.ID.String())
	}
	if err := s.sessions.CheckLive(sess); err != nil {
		if dErrors.HasCode(err, dErrors.CodeSessionRevoked) {
			s.replayDetected(ctx, sess)
		}
		return nil, s.authFailure(ctx, grantRefresh, err, "user_id", userID.String(), "session_id", sess.ID.String())
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, s.authFailure(ctx, grantRefresh, translateUserError(err, dErrors.CodeUserNotFound, "user not found"),
			"user_id", userID.String())
	}
	if !user.IsActive {
		return nil, s.authFailure(ctx, grantRefresh, dErrors.New(dErrors.CodeUserInactive, "account is inactive"),
			"user_id", userID.String())
	}

	// The successor is stored before the predecessor is revoked, so a failed
	// write leaves the presented token usable. Of several concurrent refreshes
	// with the same token only one revokes the predecessor; the others revoke
	// their own successor.
	result, next, err := s.issue(ctx, issueParams{
		user:      user,
		expiresAt: sess.ExpiresAt,
		grant:     grantRefresh,
		commit: func(*models.Session) error {
			if err := s.sessions.RevokeIfActive(ctx, sess.ID); err != nil {
				if dErrors.HasCode(err, dErrors.CodeSessionRevoked) {
					s.replayDetected(ctx, sess)
				}
				return err
			}
			s.metrics.AddSessionsRevoked(1)
			return nil
		},
	})
	if err != nil {
		return nil, s.authFailure(ctx, grantRefresh, err, "user_id", userID.String(), "session_id", sess.ID.String())
	}
	s.logEvent(ctx, "session_rotated",
		"user_id", userID.String(),
		"previous_session_id", sess.ID.String(),
		"session_id", next.ID.String(),
	)
	return result, nil
}

func (s *Service) replayDetected(ctx context.Context, sess *models.Session) {
	s.metrics.IncrementRefreshReplayDetections()
	s.logger.WarnContext(ctx, "refresh token presented for a revoked session",
		"user_id", sess.UserID.String(),
		"session_id", sess.ID.String(),
	)
}
