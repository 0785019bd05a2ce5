package models

import (
	"time"

	id "talentgate/pkg/domain"
)

// This file contains pure domain models for authentication: entities
// that should not depend on transport or HTTP-specific concerns.

// UserType is a platform-wide hint carried in access tokens. It is not an
// organization role; organization roles live on memberships.
type UserType string

const (
	UserTypeDeveloper       UserType = "developer"
	UserTypeAdmin           UserType = "admin"
	UserTypeCustomerSupport UserType = "customer_support"
	UserTypeOrgAdmin        UserType = "org_admin"
	UserTypeRecruiter       UserType = "recruiter"
	UserTypeCandidate       UserType = "candidate"
)

func (t UserType) IsValid() bool {
	switch t {
	case UserTypeDeveloper, UserTypeAdmin, UserTypeCustomerSupport,
		UserTypeOrgAdmin, UserTypeRecruiter, UserTypeCandidate:
		return true
	}
	return false
}

func (t UserType) String() string { return string(t) }

// User is an account as seen by the auth core.
type User struct {
	ID            id.UserID
	Email         string
	Username      string
	PasswordHash  string
	FirstName     string
	LastName      string
	UserType      UserType
	IsActive      bool
	EmailVerified bool
	// ExternalID is the identity provider's user id for SSO-linked accounts.
	ExternalID  string
	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

// Session is the server-side revocable anchor of one refresh token.
// It is never extended: refreshing mints a successor session.
type Session struct {
	ID              id.SessionID
	UserID          id.UserID
	RefreshTokenJTI string

	// Security metadata only.
	IPAddress         string
	UserAgent         string
	DeviceDisplayName string

	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// IsLive reports whether the session is unrevoked and unexpired at now.
func (s *Session) IsLive(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

func (s *Session) IsRevoked() bool {
	return s.RevokedAt != nil
}

// Revoke stamps the revocation time. Returns false if already revoked.
func (s *Session) Revoke(at time.Time) bool {
	if s.IsRevoked() {
		return false
	}
	s.RevokedAt = &at
	return true
}

// Principal is the authenticated caller for the lifetime of one request.
type Principal struct {
	UserID     id.UserID
	Email      string
	Username   string
	UserType   UserType
	SessionID  id.SessionID // zero when the token carried no session
	ExternalID string

	TokenExpiresAt time.Time
	// RefreshSuggested is advisory: the access token is close to expiry.
	RefreshSuggested bool
}

// HasSession reports whether the principal's token was bound to a session.
func (p *Principal) HasSession() bool {
	return !p.SessionID.IsNil()
}

// IdentityProviderProfile is the pre-validated result of an external SSO exchange.
type IdentityProviderProfile struct {
	ExternalID             string
	Email                  string
	FirstName              string
	LastName               string
	OrganizationExternalID string
	OrganizationName       string
}
