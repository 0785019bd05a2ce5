package jwttoken

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "talentgate/pkg/domain"
	dErrors "talentgate/pkg/domain-errors"
)

// TokenType discriminates access tokens from refresh tokens. The "type" claim
// is authoritative: neither class is ever accepted in place of the other.
type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
)

// BearerType is the token_type reported alongside an issued pair.
const BearerType = "Bearer"

// DefaultAccessTTL applies when no access TTL is configured.
const DefaultAccessTTL = time.Hour

// signingMethod is fixed. The verifier never consults the token header to choose it.
var signingMethod = jwt.SigningMethodHS256

// Claims is the signed wire format shared by both token types.
type Claims struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email,omitempty"`
	Username     string    `json:"username,omitempty"`
	UserType     string    `json:"user_type,omitempty"`
	Type         TokenType `json:"type"`
	SessionID    string    `json:"session_id,omitempty"`
	WorkOSUserID string    `json:"workos_user_id,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the caller-supplied part of an access token.
type Identity struct {
	UserID     id.UserID
	Email      string
	Username   string
	UserType   string
	SessionID  id.SessionID // zero for sessionless service tokens
	ExternalID string       // external identity provider user id
}

// Verified is a token that passed every check.
type Verified struct {
	Identity  Identity
	Type      TokenType
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Pair is an access/refresh token pair plus the metadata needed to bind the
// refresh token to a server-side session.
type Pair struct {
	AccessToken      string
	RefreshToken     string
	TokenType        string
	ExpiresIn        int
	AccessJTI        string
	RefreshJTI       string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// JWTService issues and verifies HS256 tokens. It holds no mutable state and
// is safe for concurrent use.
type JWTService struct {
	signingKey []byte
	accessTTL  time.Duration
	now        func() time.Time
}

// Option configures a JWTService.
type Option func(*JWTService)

// WithClock replaces the wall clock used for iat/exp and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *JWTService) {
		s.now = now
	}
}

// WithAccessTTL sets the access token lifetime used by IssuePair.
func WithAccessTTL(ttl time.Duration) Option {
	return func(s *JWTService) {
		if ttl != 0 {
			s.accessTTL = ttl
		}
	}
}

func NewJWTService(signingKey string, opts ...Option) *JWTService {
	s := &JWTService{
		signingKey: []byte(signingKey),
		accessTTL:  DefaultAccessTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AccessTTL reports the configured access token lifetime.
func (s *JWTService) AccessTTL() time.Duration {
	return s.accessTTL
}

// IssueAccessToken signs an access token for identity with the given ttl.
func (s *JWTService) IssueAccessToken(identity Identity, ttl time.Duration) (string, string, error) {
	if identity.UserID.IsNil() {
		return "", "", dErrors.New(dErrors.CodeInvalidInput, "user ID is required")
	}
	claims := Claims{
		UserID:       identity.UserID.String(),
		Email:        identity.Email,
		Username:     identity.Username,
		UserType:     identity.UserType,
		Type:         TypeAccess,
		WorkOSUserID: identity.ExternalID,
	}
	if !identity.SessionID.IsNil() {
		claims.SessionID = identity.SessionID.String()
	}
	return s.sign(claims, ttl)
}

// IssueRefreshToken signs a refresh token carrying only the user id and jti.
func (s *JWTService) IssueRefreshToken(userID id.UserID, ttl time.Duration) (string, string, error) {
	if userID.IsNil() {
		return "", "", dErrors.New(dErrors.CodeInvalidInput, "user ID is required")
	}
	return s.sign(Claims{UserID: userID.String(), Type: TypeRefresh}, ttl)
}

// IssuePair mints an access token with the configured access TTL and a refresh
// token with refreshTTL.
func (s *JWTService) IssuePair(identity Identity, refreshTTL time.Duration) (*Pair, error) {
	access, accessJTI, err := s.IssueAccessToken(identity, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, refreshJTI, err := s.IssueRefreshToken(identity.UserID, refreshTTL)
	if err != nil {
		return nil, err
	}
	now := s.now()
	return &Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        BearerType,
		ExpiresIn:        int(s.accessTTL.Seconds()),
		AccessJTI:        accessJTI,
		RefreshJTI:       refreshJTI,
		AccessExpiresAt:  now.Add(s.accessTTL),
		RefreshExpiresAt: now.Add(refreshTTL),
	}, nil
}

func (s *JWTService) sign(claims Claims, ttl time.Duration) (string, string, error) {
	jti, err := newJTI()
	if err != nil {
		return "", "", dErrors.Wrap(err, dErrors.CodeInternal, "could not generate token id")
	}
	now := s.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        jti,
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(s.signingKey)
	if err != nil {
		return "", "", dErrors.Wrap(err, dErrors.CodeInternal, "could not sign token")
	}
	return signed, jti, nil
}

// Verify checks signature, expiry, claim structure and, when expected is not
// empty, the token type, in that order. It performs no I/O.
func (s *JWTService) Verify(tokenString string, expected TokenType) (*Verified, error) {
	if tokenString == "" {
		return nil, dErrors.New(dErrors.CodeTokenMissing, "token is required")
	}

	claims := new(Claims)
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != signingMethod.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm %q", t.Method.Alg())
		}
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, translateParseError(err)
	}

	verified, err := claims.toVerified()
	if err != nil {
		return nil, err
	}

	if expected != "" && verified.Type != expected {
		return nil, dErrors.New(dErrors.CodeTokenTypeMismatch, "unexpected token type")
	}
	return verified, nil
}

func translateParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return dErrors.Wrap(err, dErrors.CodeTokenMalformed, "token is malformed")
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return dErrors.Wrap(err, dErrors.CodeTokenSignatureInvalid, "token signature is invalid")
	case errors.Is(err, jwt.ErrTokenExpired):
		return dErrors.Wrap(err, dErrors.CodeTokenExpired, "token has expired")
	default:
		return dErrors.Wrap(err, dErrors.CodeTokenMalformed, "token is malformed")
	}
}

func (c *Claims) toVerified() (*Verified, error) {
	if c.UserID == "" || c.Type == "" || c.ID == "" || c.IssuedAt == nil {
		return nil, dErrors.New(dErrors.CodeTokenMalformed, "token is missing required claims")
	}
	if c.Type != TypeAccess && c.Type != TypeRefresh {
		return nil, dErrors.New(dErrors.CodeTokenMalformed, "token has unknown type")
	}
	userID, err := id.ParseUserID(c.UserID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeTokenMalformed, "token has invalid user_id")
	}

	identity := Identity{
		UserID:     userID,
		Email:      c.Email,
		Username:   c.Username,
		UserType:   c.UserType,
		ExternalID: c.WorkOSUserID,
	}
	if c.SessionID != "" {
		sessionID, err := id.ParseSessionID(c.SessionID)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeTokenMalformed, "token has invalid session_id")
		}
		identity.SessionID = sessionID
	}

	return &Verified{
		Identity:  identity,
		Type:      c.Type,
		JTI:       c.ID,
		IssuedAt:  c.IssuedAt.Time,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}

func newJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
