package service

import (
	"context"
	"time"

	"talentgate/internal/auth/models"
	"talentgate/internal/auth/session"
	jwttoken "talentgate/internal/jwt_token"
	id "talentgate/pkg/domain"
	dErrors "talentgate/pkg/domain-errors"
	"talentgate/pkg/requestcontext"
)

// SessionPolicy selects the lifetime of the session behind an issued pair.
// A positive TTL wins over RememberMe.
type SessionPolicy struct {
	RememberMe bool
	TTL        time.Duration
}

type issueParams struct {
	user       *models.User
	refreshTTL time.Duration
	// expiresAt, when set, pins the new session to an inherited deadline.
	expiresAt time.Time
	grant     string
	// commit runs once the session is stored. When it fails the new session
	// is revoked and its tokens are never handed out.
	commit func(*models.Session) error
}

// IssueTokenPair opens a session for an existing active user and returns a
// pair bound to it.
func (s *Service) IssueTokenPair(ctx context.Context, userID id.UserID, policy SessionPolicy) (*models.TokenResult, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, s.authFailure(ctx, grantIssued, translateUserError(err, dErrors.CodeUserNotFound, "user not found"),
			"user_id", userID.String())
	}
	if !user.IsActive {
		return nil, s.authFailure(ctx, grantIssued, dErrors.New(dErrors.CodeUserInactive, "account is inactive"),
			"user_id", userID.String())
	}
	ttl := policy.TTL
	if ttl <= 0 {
		ttl = s.refreshTTL(policy.RememberMe)
	}
	result, _, err := s.issue(ctx, issueParams{user: user, refreshTTL: ttl, grant: grantIssued})
	if err != nil {
		return nil, s.authFailure(ctx, grantIssued, err, "user_id", userID.String())
	}
	return result, nil
}

// issue mints a session id, signs a pair bound to it, then persists the
// session keyed by the refresh token's jti.
func (s *Service) issue(ctx context.Context, p issueParams) (*models.TokenResult, *models.Session, error) {
	ttl := p.refreshTTL
	if !p.expiresAt.IsZero() {
		ttl = p.expiresAt.Sub(s.sessions.Now())
	}
	if ttl <= 0 {
		return nil, nil, dErrors.New(dErrors.CodeSessionExpired, "session has expired")
	}

	sessionID := id.NewSessionID()
	pair, err := s.tokens.IssuePair(identityOf(p.user, sessionID), ttl)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue tokens")
	}

	sess, err := s.sessions.Create(ctx, session.CreateParams{
		ID:              sessionID,
		UserID:          p.user.ID,
		RefreshTokenJTI: pair.RefreshJTI,
		IPAddress:       requestcontext.ClientIP(ctx),
		UserAgent:       requestcontext.UserAgent(ctx),
		TTL:             ttl,
		ExpiresAt:       p.expiresAt,
	})
	if err != nil {
		return nil, nil, err
	}
	if p.commit != nil {
		if err := p.commit(sess); err != nil {
			s.discard(ctx, sess)
			return nil, nil, err
		}
	}

	s.metrics.IncrementSessionsCreated()
	s.metrics.IncrementTokenRequests(p.grant)
	s.logEvent(ctx, "session_created",
		"user_id", p.user.ID.String(),
		"session_id", sess.ID.String(),
		"grant", p.grant,
		"device", sess.DeviceDisplayName,
	)

	return &models.TokenResult{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    pair.ExpiresIn,
		User:         models.NewUserInfoResult(p.user),
	}, sess, nil
}

// discard revokes a session whose tokens were never returned.
func (s *Service) discard(ctx context.Context, sess *models.Session) {
	if err := s.sessions.Revoke(context.WithoutCancel(ctx), sess.ID); err != nil {
		s.logger.WarnContext(ctx, "failed to revoke unused session",
			"user_id", sess.UserID.String(),
			"session_id", sess.ID.String(),
			"error", err,
		)
	}
}

func identityOf(user *models.User, sessionID id.SessionID) jwttoken.Identity {
	return jwttoken.Identity{
		UserID:     user.ID,
		Email:      user.Email,
		Username:   user.Username,
		UserType:   user.UserType.String(),
		SessionID:  sessionID,
		ExternalID: user.ExternalID,
	}
}
