package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"talentgate/internal/auth/metrics"
	"talentgate/internal/auth/models"
	"talentgate/internal/auth/session"
	authzmodels "talentgate/internal/authz/models"
	jwttoken "talentgate/internal/jwt_token"
	id "talentgate/pkg/domain"
)

// UserStore defines the persistence interface for user data.
// Error Contract: Find methods wrap sentinel.ErrNotFound; writes wrap
// sentinel.ErrConflict on a taken email, username or external id.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.User, error)
}

// OrganizationStore persists organizations created at signup or through SSO.
type OrganizationStore interface {
	Create(ctx context.Context, org *authzmodels.Organization) error
	FindBySlug(ctx context.Context, slug string) (*authzmodels.Organization, error)
	FindByExternalID(ctx context.Context, externalID string) (*authzmodels.Organization, error)
}

// MembershipStore persists organization memberships.
type MembershipStore interface {
	Add(ctx context.Context, m *authzmodels.Membership) error
	Find(ctx context.Context, userID id.UserID, orgID id.OrganizationID) (*authzmodels.Membership, error)
}

// SessionManager is the session lifecycle the service drives. Errors it
// returns are already domain errors.
type SessionManager interface {
	Now() time.Time
	Create(ctx context.Context, params session.CreateParams) (*models.Session, error)
	Find(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	FindByRefreshJTI(ctx context.Context, jti string) (*models.Session, error)
	CheckLive(s *models.Session) error
	RevokeIfActive(ctx context.Context, sessionID id.SessionID) error
	Revoke(ctx context.Context, sessionID id.SessionID) error
	ListLive(ctx context.Context, userID id.UserID) ([]*models.Session, error)
	RevokeAllForUser(ctx context.Context, userID id.UserID, except *id.SessionID) (int, error)
}

// TokenIssuer signs and verifies access/refresh tokens.
type TokenIssuer interface {
	IssuePair(identity jwttoken.Identity, refreshTTL time.Duration) (*jwttoken.Pair, error)
	Verify(token string, expected jwttoken.TokenType) (*jwttoken.Verified, error)
}

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(ctx context.Context, password, hash string) bool
	VerifyNothing(password string)
}

// Config holds the session policy knobs.
type Config struct {
	RefreshTokenTTL      time.Duration
	RememberMeRefreshTTL time.Duration
	RequireVerifiedEmail bool
}

const (
	defaultRefreshTTL    = 7 * 24 * time.Hour
	defaultRememberMeTTL = 30 * 24 * time.Hour
)

// Grant labels used for metrics and logs.
const (
	grantPassword = "password"
	grantSignup   = "signup"
	grantSSO      = "sso"
	grantRefresh  = "refresh_token"
	grantIssued   = "issued"
)

// Service implements the account flows: signup, login, SSO login, refresh,
// logout and session listing.
type Service struct {
	users         UserStore
	sessions      SessionManager
	tokens        TokenIssuer
	passwords     PasswordHasher
	organizations OrganizationStore
	memberships   MembershipStore
	cfg           Config
	logger        *slog.Logger
	metrics       *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithOrganizations enables organization creation at signup and SSO
// organization linking. Without it those steps are skipped.
func WithOrganizations(orgs OrganizationStore, memberships MembershipStore) Option {
	return func(s *Service) {
		s.organizations = orgs
		s.memberships = memberships
	}
}

func New(users UserStore, sessions SessionManager, tokens TokenIssuer, passwords PasswordHasher, cfg *Config, opts ...Option) (*Service, error) {
	if users == nil || sessions == nil || tokens == nil || passwords == nil {
		return nil, errors.New("users, sessions, tokens and passwords are required")
	}
	svc := &Service{
		users:     users,
		sessions:  sessions,
		tokens:    tokens,
		passwords: passwords,
	}
	if cfg != nil {
		svc.cfg = *cfg
	}
	if svc.cfg.RefreshTokenTTL <= 0 {
		svc.cfg.RefreshTokenTTL = defaultRefreshTTL
	}
	if svc.cfg.RememberMeRefreshTTL <= 0 {
		svc.cfg.RememberMeRefreshTTL = defaultRememberMeTTL
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	if (svc.organizations == nil) != (svc.memberships == nil) {
		return nil, errors.New("organizations and memberships must be configured together")
	}
	return svc, nil
}

func (s *Service) refreshTTL(rememberMe bool) time.Duration {
	if rememberMe {
		return s.cfg.RememberMeRefreshTTL
	}
	return s.cfg.RefreshTokenTTL
}
