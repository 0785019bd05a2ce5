package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"talentgate/internal/auth/credentials"
	"talentgate/internal/auth/metrics"
	"talentgate/internal/auth/models"
	"talentgate/internal/auth/session"
	sessionstore "talentgate/internal/auth/store/session"
	userstore "talentgate/internal/auth/store/user"
	"talentgate/internal/authz/store/membership"
	"talentgate/internal/authz/store/organization"
	jwttoken "talentgate/internal/jwt_token"
	id "talentgate/pkg/domain"
	dErrors "talentgate/pkg/domain-errors"
	"talentgate/pkg/requestcontext"
)

// failingWrites fails session creation on demand while reads and
// revocations keep reaching the wrapped store.
type failingWrites struct {
	*sessionstore.InMemorySessionStore
	createErr error
}

func (f *failingWrites) Create(ctx context.Context, sess *models.Session) error {
	if f.createErr != nil {
		return f.createErr
	}
	return f.InMemorySessionStore.Create(ctx, sess)
}

// FlowSuite runs multi-step account flows against the in-memory stores.
type FlowSuite struct {
	suite.Suite
	ctx         context.Context
	now         time.Time
	users       *userstore.InMemoryUserStore
	sessions    *sessionstore.InMemorySessionStore
	writes      *failingWrites
	orgs        *organization.InMemory
	memberships *membership.InMemory
	jwt         *jwttoken.JWTService
	metrics     *metrics.Metrics
	service     *Service
}

func TestFlowSuite(t *testing.T) {
	suite.Run(t, new(FlowSuite))
}

func (s *FlowSuite) SetupTest() {
	s.ctx = requestcontext.WithClientMetadata(context.Background(), "203.0.113.9", testUserAgent)
	s.now = time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)
	clock := func() time.Time { return s.now }
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.users = userstore.New()
	s.sessions = sessionstore.New()
	s.writes = &failingWrites{InMemorySessionStore: s.sessions}
	s.orgs = organization.NewInMemory()
	s.memberships = membership.NewInMemory()
	s.jwt = jwttoken.NewJWTService("flow-suite-signing-key", jwttoken.WithClock(clock))
	s.metrics = metrics.New(prometheus.NewRegistry())

	svc, err := New(
		s.users,
		session.NewManager(s.writes, session.WithClock(clock), session.WithLogger(logger)),
		s.jwt,
		credentials.New(credentials.WithCost(4)),
		&Config{RefreshTokenTTL: 7 * 24 * time.Hour, RememberMeRefreshTTL: 30 * 24 * time.Hour},
		WithLogger(logger),
		WithMetrics(s.metrics),
		WithOrganizations(s.orgs, s.memberships),
	)
	s.Require().NoError(err)
	s.service = svc
}

func (s *FlowSuite) SetupSubTest() {
	s.SetupTest()
}

func (s *FlowSuite) signup(email, username, orgName string) *models.TokenResult {
	result, err := s.service.Signup(s.ctx, &models.SignupRequest{
		Email:            email,
		Username:         username,
		Password:         testPassword,
		FirstName:        "Sam",
		LastName:         "Rivera",
		OrganizationName: orgName,
	})
	s.Require().NoError(err)
	return result
}

func (s *FlowSuite) principalOf(result *models.TokenResult) *models.Principal {
	verified, err := s.jwt.Verify(result.AccessToken, jwttoken.TypeAccess)
	s.Require().NoError(err)
	return &models.Principal{
		UserID:    verified.Identity.UserID,
		Email:     verified.Identity.Email,
		SessionID: verified.Identity.SessionID,
	}
}

func (s *FlowSuite) session(sessionID id.SessionID) *models.Session {
	sess, err := s.sessions.FindByID(s.ctx, sessionID)
	s.Require().NoError(err)
	return sess
}

func (s *FlowSuite) TestRefresh() {
	s.Run("rotation revokes the old session and keeps the absolute expiry", func() {
		first := s.signup("sam@example.com", "sam", "")
		original := s.session(s.principalOf(first).SessionID)

		s.now = s.now.Add(6 * time.Hour)
		second, err := s.service.Refresh(s.ctx, first.RefreshToken)
		s.Require().NoError(err)

		rotated := s.session(s.principalOf(second).SessionID)
		s.NotEqual(original.ID, rotated.ID)
		s.Equal(original.ExpiresAt, rotated.ExpiresAt)
		s.True(rotated.IsLive(s.now))
		s.True(s.session(original.ID).IsRevoked())
		s.NotEqual(first.RefreshToken, second.RefreshToken)
		s.Equal(first.User.ID, second.User.ID)

		verified, err := s.jwt.Verify(second.RefreshToken, jwttoken.TypeRefresh)
		s.Require().NoError(err)
		s.True(original.ExpiresAt.Equal(verified.ExpiresAt))
	})

	s.Run("reusing a rotated refresh token is detected as replay", func() {
		first := s.signup("sam@example.com", "sam", "")
		_, err := s.service.Refresh(s.ctx, first.RefreshToken)
		s.Require().NoError(err)

		_, err = s.service.Refresh(s.ctx, first.RefreshToken)

		s.True(dErrors.HasCode(err, dErrors.CodeSessionRevoked))
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.RefreshReplayDetections))
	})

	s.Run("concurrent refreshes with one token have a single winner", func() {
		first := s.signup("sam@example.com", "sam", "")
		const attempts = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
			revoked   int
		)
		for range attempts {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.service.Refresh(s.ctx, first.RefreshToken)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					successes++
				case dErrors.HasCode(err, dErrors.CodeSessionRevoked):
					revoked++
				}
			}()
		}
		wg.Wait()

		s.Equal(1, successes)
		s.Equal(attempts-1, revoked)
		live, err := s.service.ListSessions(s.ctx, s.principalOf(first).UserID, id.SessionID{})
		s.Require().NoError(err)
		s.Len(live.Sessions, 1)
	})

	s.Run("failed successor write keeps the presented session usable", func() {
		first := s.signup("sam@example.com", "sam", "")
		p := s.principalOf(first)
		s.writes.createErr = errors.New("connection reset by peer")

		_, err := s.service.Refresh(s.ctx, first.RefreshToken)

		s.True(dErrors.HasCode(err, dErrors.CodeAuthInfrastructure))
		s.False(s.session(p.SessionID).IsRevoked())
		s.Equal(float64(0), testutil.ToFloat64(s.metrics.SessionsRevoked))

		s.writes.createErr = nil
		second, err := s.service.Refresh(s.ctx, first.RefreshToken)
		s.Require().NoError(err)
		s.True(s.session(p.SessionID).IsRevoked())
		s.True(s.session(s.principalOf(second).SessionID).IsLive(s.now))
	})

	s.Run("access token cannot be used to refresh", func() {
		first := s.signup("sam@example.com", "sam", "")

		_, err := s.service.Refresh(s.ctx, first.AccessToken)

		s.True(dErrors.HasCode(err, dErrors.CodeTokenTypeMismatch))
	})

	s.Run("expired refresh token", func() {
		first := s.signup("sam@example.com", "sam", "")
		s.now = s.now.Add(7*24*time.Hour + time.Second)

		_, err := s.service.Refresh(s.ctx, first.RefreshToken)

		s.True(dErrors.HasCode(err, dErrors.CodeTokenExpired))
	})

	s.Run("deactivated user cannot refresh and keeps the session", func() {
		first := s.signup("sam@example.com", "sam", "")
		p := s.principalOf(first)
		user, err := s.users.FindByID(s.ctx, p.UserID)
		s.Require().NoError(err)
		user.IsActive = false
		s.Require().NoError(s.users.Update(s.ctx, user))

		_, err = s.service.Refresh(s.ctx, first.RefreshToken)

		s.True(dErrors.HasCode(err, dErrors.CodeUserInactive))
		s.False(s.session(p.SessionID).IsRevoked())
	})

	s.Run("garbage token", func() {
		_, err := s.service.Refresh(s.ctx, "not-a-jwt")

		s.True(dErrors.HasCode(err, dErrors.CodeTokenMalformed))
		s.True(dErrors.IsAuthentication(dErrors.CodeOf(err)))
	})
}

func (s *FlowSuite) TestLogout() {
	s.Run("logout revokes the session behind the refresh token", func() {
		first := s.signup("sam@example.com", "sam", "")

		s.Require().NoError(s.service.Logout(s.ctx, s.principalOf(first)))
		_, err := s.service.Refresh(s.ctx, first.RefreshToken)

		s.True(dErrors.HasCode(err, dErrors.CodeSessionRevoked))
	})

	s.Run("logging out twice succeeds", func() {
		first := s.signup("sam@example.com", "sam", "")
		p := s.principalOf(first)

		s.Require().NoError(s.service.Logout(s.ctx, p))
		s.NoError(s.service.Logout(s.ctx, p))
	})

	s.Run("sessionless principal", func() {
		err := s.service.Logout(s.ctx, &models.Principal{UserID: id.NewUserID()})

		s.True(dErrors.HasCode(err, dErrors.CodeSessionNotFound))
	})

	s.Run("nil principal", func() {
		err := s.service.Logout(s.ctx, nil)

		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *FlowSuite) TestSessions() {
	s.Run("logout-all keeps the current session", func() {
		first := s.signup("sam@example.com", "sam", "")
		p := s.principalOf(first)
		for range 2 {
			s.now = s.now.Add(time.Minute)
			_, err := s.service.IssueTokenPair(s.ctx, p.UserID, SessionPolicy{})
			s.Require().NoError(err)
		}

		result, err := s.service.LogoutAll(s.ctx, p.UserID, &p.SessionID)
		s.Require().NoError(err)
		s.Equal(2, result.RevokedCount)

		live, err := s.service.ListSessions(s.ctx, p.UserID, p.SessionID)
		s.Require().NoError(err)
		s.Require().Len(live.Sessions, 1)
		s.Equal(p.SessionID.String(), live.Sessions[0].SessionID)
		s.True(live.Sessions[0].IsCurrent)
	})

	s.Run("logout-all without a kept session revokes everything", func() {
		first := s.signup("sam@example.com", "sam", "")
		p := s.principalOf(first)

		result, err := s.service.LogoutAll(s.ctx, p.UserID, nil)
		s.Require().NoError(err)
		s.Equal(1, result.RevokedCount)

		_, err = s.service.Refresh(s.ctx, first.RefreshToken)
		s.True(dErrors.HasCode(err, dErrors.CodeSessionRevoked))
	})

	s.Run("sessions are listed newest first with a device name", func() {
		first := s.signup("sam@example.com", "sam", "")
		p := s.principalOf(first)
		s.now = s.now.Add(time.Hour)
		second, err := s.service.IssueTokenPair(s.ctx, p.UserID, SessionPolicy{RememberMe: true})
		s.Require().NoError(err)

		live, err := s.service.ListSessions(s.ctx, p.UserID, p.SessionID)
		s.Require().NoError(err)

		s.Require().Len(live.Sessions, 2)
		s.Equal(s.principalOf(second).SessionID.String(), live.Sessions[0].SessionID)
		s.False(live.Sessions[0].IsCurrent)
		s.True(live.Sessions[1].IsCurrent)
		s.Contains(live.Sessions[0].Device, "Safari")
	})

	s.Run("users cannot revoke each other's sessions", func() {
		sam := s.principalOf(s.signup("sam@example.com", "sam", ""))
		alex := s.principalOf(s.signup("alex@example.com", "alex", ""))

		err := s.service.RevokeOwnSession(s.ctx, alex.UserID, sam.SessionID)

		s.True(dErrors.HasCode(err, dErrors.CodeSessionNotFound))
		s.False(s.session(sam.SessionID).IsRevoked())
		s.NoError(s.service.RevokeOwnSession(s.ctx, sam.UserID, sam.SessionID))
		s.True(s.session(sam.SessionID).IsRevoked())
	})
}

func (s *FlowSuite) TestMe() {
	result := s.signup("Sam@Example.com", "sam", "")
	p := s.principalOf(result)

	me, err := s.service.Me(s.ctx, p.UserID)

	s.Require().NoError(err)
	s.Equal("sam", me.Username)
	s.Equal(models.UserTypeCandidate, me.UserType)
	s.False(me.EmailVerified)

	_, err = s.service.Me(s.ctx, id.NewUserID())
	s.True(dErrors.HasCode(err, dErrors.CodeUserNotFound))
}

func (s *FlowSuite) TestSignupOrganizations() {
	owner := s.principalOf(s.signup("owner@acme.example", "owner", "Acme"))
	other := s.principalOf(s.signup("other@acme.example", "other", "Acme"))

	first, err := s.orgs.FindBySlug(s.ctx, "acme")
	s.Require().NoError(err)
	second, err := s.orgs.FindBySlug(s.ctx, "acme-2")
	s.Require().NoError(err)

	m, err := s.memberships.Find(s.ctx, owner.UserID, first.ID)
	s.Require().NoError(err)
	s.Equal("owner", m.Role.String())
	_, err = s.memberships.Find(s.ctx, other.UserID, second.ID)
	s.NoError(err)
	_, err = s.memberships.Find(s.ctx, other.UserID, first.ID)
	s.Error(err)

	_, err = s.service.Signup(s.ctx, &models.SignupRequest{
		Email:     "owner@acme.example",
		Username:  "someone",
		Password:  testPassword,
		FirstName: "Dup",
		LastName:  "Licate",
	})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *FlowSuite) TestSSOLogin() {
	s.Run("new user gets a free username and names from the address", func() {
		s.signup("taken@example.com", "janedoe", "")

		result, err := s.service.SSOLogin(s.ctx, models.IdentityProviderProfile{
			ExternalID: "user_01",
			Email:      "JaneDoe@Example.com",
		})
		s.Require().NoError(err)

		s.Equal("janedoe1", result.User.Username)
		s.Equal("janedoe@example.com", result.User.Email)
		s.Equal("Janedoe", result.User.FirstName)
		s.Empty(result.User.LastName)
		s.True(result.User.EmailVerified)
		s.Equal(models.UserTypeOrgAdmin, result.User.UserType)
	})

	s.Run("returning user is matched by external id", func() {
		first, err := s.service.SSOLogin(s.ctx, models.IdentityProviderProfile{
			ExternalID: "user_02",
			Email:      "pat.lee@example.com",
			FirstName:  "Pat",
			LastName:   "Lee",
		})
		s.Require().NoError(err)

		second, err := s.service.SSOLogin(s.ctx, models.IdentityProviderProfile{
			ExternalID: "user_02",
			Email:      "pat.lee@example.com",
		})
		s.Require().NoError(err)

		s.Equal(first.User.ID, second.User.ID)
		s.Equal("Pat", second.User.FirstName)
		s.Equal("pat.lee", second.User.Username)
	})
}
