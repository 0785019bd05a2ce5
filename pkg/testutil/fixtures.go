package testutil

import (
	"time"

	"github.com/google/uuid"

	authmodels "talentgate/internal/auth/models"
	authzmodels "talentgate/internal/authz/models"
	"talentgate/internal/authz/rbac"
	id "talentgate/pkg/domain"
)

// Epoch is the fixed clock used by fixtures.
var Epoch = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

// TestIDs are stable identifiers for readable assertions.
var TestIDs = struct {
	UserID1 id.UserID
	UserID2 id.UserID
	OrgID1  id.OrganizationID
	OrgID2  id.OrganizationID
}{
	UserID1: id.UserID(uuid.MustParse("11111111-1111-1111-1111-111111111111")),
	UserID2: id.UserID(uuid.MustParse("22222222-2222-2222-2222-222222222222")),
	OrgID1:  id.OrganizationID(uuid.MustParse("aaaa0000-0000-0000-0000-000000000001")),
	OrgID2:  id.OrganizationID(uuid.MustParse("aaaa0000-0000-0000-0000-000000000002")),
}

type UserBuilder struct {
	user *authmodels.User
}

// NewUserBuilder starts from an active, verified recruiter.
func NewUserBuilder() *UserBuilder {
	return &UserBuilder{
		user: &authmodels.User{
			ID:            id.NewUserID(),
			Email:         "recruiter@example.com",
			Username:      "recruiter",
			FirstName:     "Rita",
			LastName:      "Recruiter",
			UserType:      authmodels.UserTypeRecruiter,
			IsActive:      true,
			EmailVerified: true,
			CreatedAt:     Epoch,
			UpdatedAt:     Epoch,
		},
	}
}

func (b *UserBuilder) WithID(userID id.UserID) *UserBuilder {
	b.user.ID = userID
	return b
}

func (b *UserBuilder) WithEmail(email string) *UserBuilder {
	b.user.Email = email
	return b
}

func (b *UserBuilder) WithUsername(username string) *UserBuilder {
	b.user.Username = username
	return b
}

func (b *UserBuilder) WithType(userType authmodels.UserType) *UserBuilder {
	b.user.UserType = userType
	return b
}

func (b *UserBuilder) WithPasswordHash(hash string) *UserBuilder {
	b.user.PasswordHash = hash
	return b
}

func (b *UserBuilder) Inactive() *UserBuilder {
	b.user.IsActive = false
	return b
}

func (b *UserBuilder) Unverified() *UserBuilder {
	b.user.EmailVerified = false
	return b
}

func (b *UserBuilder) Build() *authmodels.User {
	return b.user
}

type SessionBuilder struct {
	session *authmodels.Session
}

// NewSessionBuilder starts from a live week-long session created at Epoch.
func NewSessionBuilder() *SessionBuilder {
	return &SessionBuilder{
		session: &authmodels.Session{
			ID:                id.NewSessionID(),
			UserID:            TestIDs.UserID1,
			RefreshTokenJTI:   uuid.NewString(),
			IPAddress:         "198.51.100.4",
			UserAgent:         "Mozilla/5.0",
			DeviceDisplayName: "Firefox on Linux",
			CreatedAt:         Epoch,
			ExpiresAt:         Epoch.Add(7 * 24 * time.Hour),
		},
	}
}

func (b *SessionBuilder) WithID(sessionID id.SessionID) *SessionBuilder {
	b.session.ID = sessionID
	return b
}

func (b *SessionBuilder) WithUserID(userID id.UserID) *SessionBuilder {
	b.session.UserID = userID
	return b
}

func (b *SessionBuilder) WithRefreshJTI(jti string) *SessionBuilder {
	b.session.RefreshTokenJTI = jti
	return b
}

func (b *SessionBuilder) CreatedAt(t time.Time) *SessionBuilder {
	b.session.CreatedAt = t
	return b
}

func (b *SessionBuilder) ExpiresAt(t time.Time) *SessionBuilder {
	b.session.ExpiresAt = t
	return b
}

func (b *SessionBuilder) RevokedAt(t time.Time) *SessionBuilder {
	b.session.RevokedAt = &t
	return b
}

func (b *SessionBuilder) Build() *authmodels.Session {
	return b.session
}

// NewTestMembership builds a membership created at Epoch without validation.
func NewTestMembership(userID id.UserID, orgID id.OrganizationID, role rbac.Role) *authzmodels.Membership {
	return &authzmodels.Membership{
		UserID:         userID,
		OrganizationID: orgID,
		Role:           role,
		CreatedAt:      Epoch,
	}
}
