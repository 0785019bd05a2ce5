// Package authenticator turns a raw Authorization header into a verified
// Principal. Checks run strictly token, then session, then user; the first
// failure short-circuits so error precedence is deterministic. Authentication
// never writes.
package authenticator

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"talentgate/internal/auth/models"
	jwttoken "talentgate/internal/jwt_token"
	"talentgate/internal/sentinel"
	id "talentgate/pkg/domain"
	dErrors "talentgate/pkg/domain-errors"
	"talentgate/pkg/requestcontext"
)

// TokenVerifier validates signed tokens without I/O.
type TokenVerifier interface {
	Verify(token string, expected jwttoken.TokenType) (*jwttoken.Verified, error)
}

// SessionSource resolves the session an access token is bound to.
// Find reports session_not_found or auth_infrastructure_error; CheckLive
// reports session_revoked or session_expired.
type SessionSource interface {
	Find(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	CheckLive(session *models.Session) error
}

// UserRepository loads users by id.
// Error Contract: wraps sentinel.ErrNotFound when the user does not exist.
type UserRepository interface {
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
}

// Recorder counts authentication outcomes by code ("authenticated" on success).
type Recorder interface {
	IncrementAuthenticationOutcome(outcome string)
}

// Config is the deployment policy applied to every authentication.
type Config struct {
	// RefreshThreshold marks a principal as eligible for proactive refresh
	// when the access token has less than this long to live.
	RefreshThreshold time.Duration
	// RequireVerifiedEmail rejects users whose email is not yet verified.
	RequireVerifiedEmail bool
	// AllowSessionlessTokens accepts access tokens without a session id.
	// Meant for non-interactive service callers only.
	AllowSessionlessTokens bool
	Public                 PublicRoutes
}

type Authenticator struct {
	tokens   TokenVerifier
	sessions SessionSource
	users    UserRepository
	cfg      Config
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time

	// userLoads collapses concurrent lookups of the same user into one
	// repository call.
	userLoads singleflight.Group
}

type Option func(*Authenticator)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Authenticator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func WithRecorder(recorder Recorder) Option {
	return func(a *Authenticator) {
		a.recorder = recorder
	}
}

// WithClock overrides the time source used for refresh eligibility.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) {
		if now != nil {
			a.now = now
		}
	}
}

func New(tokens TokenVerifier, sessions SessionSource, users UserRepository, cfg Config, opts ...Option) *Authenticator {
	a := &Authenticator{
		tokens:   tokens,
		sessions: sessions,
		users:    users,
		cfg:      cfg,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// IsPublic reports whether path bypasses authentication entirely.
func (a *Authenticator) IsPublic(path string) bool {
	return a.cfg.Public.Match(path)
}

// Authenticate resolves the Authorization header value into a Principal.
// Every failure is a *domainerrors.Error whose code is either in the
// authentication taxonomy or auth_infrastructure_error.
func (a *Authenticator) Authenticate(ctx context.Context, authorizationHeader string) (*models.Principal, error) {
	raw, err := ExtractBearer(authorizationHeader)
	if err != nil {
		return nil, a.reject(ctx, err, id.UserID{})
	}

	verified, err := a.tokens.Verify(raw, jwttoken.TypeAccess)
	if err != nil {
		return nil, a.reject(ctx, err, id.UserID{})
	}
	identity := verified.Identity

	if identity.SessionID.IsNil() {
		if !a.cfg.AllowSessionlessTokens {
			return nil, a.reject(ctx, dErrors.New(dErrors.CodeSessionNotFound, "token is not bound to a session"), identity.UserID)
		}
	} else {
		if err := a.checkSession(ctx, identity); err != nil {
			return nil, a.reject(ctx, err, identity.UserID)
		}
	}

	user, err := a.loadUser(ctx, identity.UserID)
	if err != nil {
		return nil, a.reject(ctx, err, identity.UserID)
	}

	principal := &models.Principal{
		UserID:           user.ID,
		Email:            user.Email,
		Username:         user.Username,
		UserType:         user.UserType,
		SessionID:        identity.SessionID,
		ExternalID:       user.ExternalID,
		TokenExpiresAt:   verified.ExpiresAt,
		RefreshSuggested: a.refreshSuggested(verified.ExpiresAt),
	}
	a.record("authenticated")
	return principal, nil
}

func (a *Authenticator) checkSession(ctx context.Context, identity jwttoken.Identity) error {
	session, err := a.sessions.Find(ctx, identity.SessionID)
	if err != nil {
		return err
	}
	// A token naming another user's session is treated as naming no session.
	if session.UserID != identity.UserID {
		return dErrors.New(dErrors.CodeSessionNotFound, "session not found")
	}
	return a.sessions.CheckLive(session)
}

func (a *Authenticator) loadUser(ctx context.Context, userID id.UserID) (*models.User, error) {
	// The load is shared by every concurrent caller, so it must not end with
	// the first caller's request.
	loadCtx := context.WithoutCancel(ctx)
	loaded, err, _ := a.userLoads.Do(userID.String(), func() (any, error) {
		return a.users.FindByID(loadCtx, userID)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeUserNotFound, "user not found")
		}
		a.logger.ErrorContext(ctx, "failed to load user during authentication",
			"error", err,
			"user_id", userID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, dErrors.Wrap(err, dErrors.CodeAuthInfrastructure, "failed to load user")
	}
	user := loaded.(*models.User)
	if !user.IsActive {
		return nil, dErrors.New(dErrors.CodeUserInactive, "user account is inactive")
	}
	if a.cfg.RequireVerifiedEmail && !user.EmailVerified {
		return nil, dErrors.New(dErrors.CodeEmailUnverified, "email address is not verified")
	}
	return user, nil
}

func (a *Authenticator) refreshSuggested(expiresAt time.Time) bool {
	if a.cfg.RefreshThreshold <= 0 {
		return false
	}
	return expiresAt.Sub(a.now()) < a.cfg.RefreshThreshold
}

// reject normalises err into the taxonomy, records it and logs it. Denials
// log at WARN; infrastructure failures were already logged at ERROR by the
// component that observed them.
func (a *Authenticator) reject(ctx context.Context, err error, userID id.UserID) error {
	code := dErrors.CodeOf(err)
	if code == "" {
		code = dErrors.CodeAuthInfrastructure
		err = dErrors.Wrap(err, code, "authentication failed")
	}
	a.record(string(code))
	if code == dErrors.CodeAuthInfrastructure {
		return err
	}
	attrs := []any{
		"reason", string(code),
		"request_id", requestcontext.RequestID(ctx),
	}
	if !userID.IsNil() {
		attrs = append(attrs, "user_id", userID.String())
	}
	a.logger.WarnContext(ctx, "authentication rejected", attrs...)
	return err
}

func (a *Authenticator) record(outcome string) {
	if a.recorder != nil {
		a.recorder.IncrementAuthenticationOutcome(outcome)
	}
}

// ExtractBearer returns the token from an "Authorization: Bearer <token>"
// header value. The scheme is matched case-insensitively.
func ExtractBearer(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, jwttoken.BearerType) {
		return "", dErrors.New(dErrors.CodeTokenMissing, "missing bearer token")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", dErrors.New(dErrors.CodeTokenMissing, "missing bearer token")
	}
	return token, nil
}
