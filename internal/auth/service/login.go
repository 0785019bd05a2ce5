package service

import (
	"context"
	"errors"
	"time"

	"talentgate/internal/auth/email"
	"talentgate/internal/auth/models"
	"talentgate/internal/sentinel"
	dErrors "talentgate/pkg/domain-errors"
)

// invalidCredentials is shared by unknown-email and wrong-password so the two
// cannot be told apart.
const invalidCredentials = "invalid email or password"

// Login authenticates email and password and opens a session. Remember-me
// selects the longer refresh lifetime.
func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (*models.TokenResult, error) {
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	start := time.Now()
	defer func() {
		s.metrics.ObserveLoginDuration(float64(time.Since(start).Milliseconds()))
	}()

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.passwords.VerifyNothing(req.Password)
			return nil, s.authFailure(ctx, grantPassword, dErrors.New(dErrors.CodeUnauthorized, invalidCredentials),
				"email_domain", email.Domain(req.Email))
		}
		return nil, s.authFailure(ctx, grantPassword, translateUserError(err, dErrors.CodeUnauthorized, invalidCredentials))
	}

	if user.PasswordHash == "" || !s.passwords.Verify(ctx, req.Password, user.PasswordHash) {
		if user.PasswordHash == "" {
			s.passwords.VerifyNothing(req.Password)
		}
		return nil, s.authFailure(ctx, grantPassword, dErrors.New(dErrors.CodeUnauthorized, invalidCredentials),
			"user_id", user.ID.String())
	}
	if !user.IsActive {
		return nil, s.authFailure(ctx, grantPassword, dErrors.New(dErrors.CodeUserInactive, "account is inactive"),
			"user_id", user.ID.String())
	}
	if s.cfg.RequireVerifiedEmail && !user.EmailVerified {
		return nil, s.authFailure(ctx, grantPassword, dErrors.New(dErrors.CodeEmailUnverified, "email address is not verified"),
			"user_id", user.ID.String())
	}

	result, _, err := s.issue(ctx, issueParams{user: user, refreshTTL: s.refreshTTL(req.RememberMe), grant: grantPassword})
	if err != nil {
		return nil, s.authFailure(ctx, grantPassword, err, "user_id", user.ID.String())
	}
	s.recordLogin(ctx, user)
	return result, nil
}

// recordLogin stamps last_login_at. A failure here does not fail the login.
func (s *Service) recordLogin(ctx context.Context, user *models.User) {
	now := s.sessions.Now()
	updated := *user
	updated.LastLoginAt = &now
	updated.UpdatedAt = now
	if err := s.users.Update(ctx, &updated); err != nil {
		s.logger.WarnContext(ctx, "failed to record last login",
			"user_id", user.ID.String(),
			"error", err,
		)
	}
}
