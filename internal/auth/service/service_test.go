package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/mock/gomock"

	"talentgate/internal/auth/models"
	authzmodels "talentgate/internal/authz/models"
	"talentgate/internal/authz/rbac"
	jwttoken "talentgate/internal/jwt_token"
	"talentgate/internal/sentinel"
	dErrors "talentgate/pkg/domain-errors"
)

func notFound(what string) error {
	return fmt.Errorf("%s not found: %w", what, sentinel.ErrNotFound)
}

func (s *ServiceSuite) signupRequest() *models.SignupRequest {
	return &models.SignupRequest{
		Email:     "new@example.com",
		Username:  "newbie",
		Password:  testPassword,
		FirstName: "New",
		LastName:  "Person",
	}
}

func (s *ServiceSuite) TestSignup() {
	s.Run("creates an active unverified candidate with a session", func() {
		req := s.signupRequest()
		var created *models.User
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), req.Email).Return(nil, notFound("user"))
		s.mockUsers.EXPECT().FindByUsername(gomock.Any(), req.Username).Return(nil, notFound("user"))
		s.mockUsers.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, u *models.User) error {
			created = u
			return nil
		})

		result, err := s.service.Signup(s.ctx, req)

		s.Require().NoError(err)
		s.Require().NotNil(created)
		s.Equal(models.UserTypeCandidate, created.UserType)
		s.True(created.IsActive)
		s.False(created.EmailVerified)
		s.NotEqual(testPassword, created.PasswordHash)
		s.True(s.hasher.Verify(s.ctx, testPassword, created.PasswordHash))

		s.Equal(jwttoken.BearerType, result.TokenType)
		s.Equal(int((15 * time.Minute).Seconds()), result.ExpiresIn)
		s.Equal(created.ID.String(), result.User.ID)
		sess := s.sessionOf(result)
		s.Equal(created.ID, sess.UserID)
		s.Equal(s.now.Add(7*24*time.Hour), sess.ExpiresAt)
		s.Equal("198.51.100.4", sess.IPAddress)
		s.Contains(sess.DeviceDisplayName, "Safari")
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.UsersCreated))
	})

	s.Run("organization name makes the user an org admin and owner", func() {
		req := s.signupRequest()
		req.OrganizationName = "Acme Talent"
		var (
			created    *models.User
			org        *authzmodels.Organization
			membership *authzmodels.Membership
		)
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), req.Email).Return(nil, notFound("user"))
		s.mockUsers.EXPECT().FindByUsername(gomock.Any(), req.Username).Return(nil, notFound("user"))
		s.mockUsers.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, u *models.User) error {
			created = u
			return nil
		})
		s.mockOrgs.EXPECT().FindBySlug(gomock.Any(), "acme-talent").Return(nil, notFound("organization"))
		s.mockOrgs.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, o *authzmodels.Organization) error {
			org = o
			return nil
		})
		s.mockMemberships.EXPECT().Add(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, m *authzmodels.Membership) error {
			membership = m
			return nil
		})

		_, err := s.service.Signup(s.ctx, req)

		s.Require().NoError(err)
		s.Equal(models.UserTypeOrgAdmin, created.UserType)
		s.Equal("Acme Talent", org.Name)
		s.Equal("acme-talent", org.Slug)
		s.Equal(created.ID, membership.UserID)
		s.Equal(org.ID, membership.OrganizationID)
		s.Equal(rbac.RoleOwner, membership.Role)
	})

	s.Run("taken slug gets a numeric suffix", func() {
		req := s.signupRequest()
		req.OrganizationName = "Acme"
		var org *authzmodels.Organization
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).Return(nil, notFound("user"))
		s.mockUsers.EXPECT().FindByUsername(gomock.Any(), gomock.Any()).Return(nil, notFound("user"))
		s.mockUsers.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
		s.mockOrgs.EXPECT().FindBySlug(gomock.Any(), "acme").Return(&authzmodels.Organization{Slug: "acme"}, nil)
		s.mockOrgs.EXPECT().FindBySlug(gomock.Any(), "acme-2").Return(nil, notFound("organization"))
		s.mockOrgs.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, o *authzmodels.Organization) error {
			org = o
			return nil
		})
		s.mockMemberships.EXPECT().Add(gomock.Any(), gomock.Any()).Return(nil)

		_, err := s.service.Signup(s.ctx, req)

		s.Require().NoError(err)
		s.Equal("acme-2", org.Slug)
	})

	s.Run("duplicate email is a conflict and nothing is written", func() {
		req := s.signupRequest()
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), req.Email).Return(s.newUser(), nil)

		_, err := s.service.Signup(s.ctx, req)

		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("duplicate username is a conflict", func() {
		req := s.signupRequest()
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), req.Email).Return(nil, notFound("user"))
		s.mockUsers.EXPECT().FindByUsername(gomock.Any(), req.Username).Return(s.newUser(), nil)

		_, err := s.service.Signup(s.ctx, req)

		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Contains(err.Error(), "username")
	})

	s.Run("repository outage is an infrastructure error", func() {
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection refused"))

		_, err := s.service.Signup(s.ctx, s.signupRequest())

		s.True(dErrors.HasCode(err, dErrors.CodeAuthInfrastructure))
	})

	s.Run("organization and membership outages are infrastructure errors", func() {
		req := s.signupRequest()
		req.OrganizationName = "Acme"
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).Return(nil, notFound("user")).Times(2)
		s.mockUsers.EXPECT().FindByUsername(gomock.Any(), gomock.Any()).Return(nil, notFound("user")).Times(2)
		s.mockUsers.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil).Times(2)
		s.mockOrgs.EXPECT().FindBySlug(gomock.Any(), "acme").Return(nil, errors.New("connection refused"))

		_, err := s.service.Signup(s.ctx, req)

		s.True(dErrors.HasCode(err, dErrors.CodeAuthInfrastructure))
		s.False(dErrors.HasCode(err, dErrors.CodeInternal))

		s.mockOrgs.EXPECT().FindBySlug(gomock.Any(), "acme").Return(nil, notFound("organization"))
		s.mockOrgs.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
		s.mockMemberships.EXPECT().Add(gomock.Any(), gomock.Any()).Return(errors.New("connection refused"))

		_, err = s.service.Signup(s.ctx, req)

		s.True(dErrors.HasCode(err, dErrors.CodeAuthInfrastructure))
	})
}

func (s *ServiceSuite) TestLogin() {
	s.Run("valid credentials open a seven day session and stamp last login", func() {
		user := s.newUser()
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), user.Email).Return(user, nil)
		s.mockUsers.EXPECT().Update(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, u *models.User) error {
			s.Require().NotNil(u.LastLoginAt)
			s.Equal(s.now, *u.LastLoginAt)
			return nil
		})

		result, err := s.service.Login(s.ctx, &models.LoginRequest{Email: user.Email, Password: testPassword})

		s.Require().NoError(err)
		sess := s.sessionOf(result)
		s.Equal(user.ID, sess.UserID)
		s.Equal(s.now.Add(7*24*time.Hour), sess.ExpiresAt)
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.TokenRequests.WithLabelValues(grantPassword)))
	})

	s.Run("remember me extends the session to thirty days", func() {
		user := s.newUser()
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), user.Email).Return(user, nil)
		s.mockUsers.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)

		result, err := s.service.Login(s.ctx, &models.LoginRequest{Email: user.Email, Password: testPassword, RememberMe: true})

		s.Require().NoError(err)
		s.Equal(s.now.Add(30*24*time.Hour), s.sessionOf(result).ExpiresAt)
	})

	s.Run("unknown email and wrong password are indistinguishable", func() {
		user := s.newUser()
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), "ghost@example.com").Return(nil, notFound("user"))
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), user.Email).Return(user, nil)

		_, unknownErr := s.service.Login(s.ctx, &models.LoginRequest{Email: "ghost@example.com", Password: testPassword})
		_, wrongErr := s.service.Login(s.ctx, &models.LoginRequest{Email: user.Email, Password: "wrong"})

		s.True(dErrors.HasCode(unknownErr, dErrors.CodeUnauthorized))
		s.True(dErrors.HasCode(wrongErr, dErrors.CodeUnauthorized))
		s.Equal(unknownErr.Error(), wrongErr.Error())
	})

	s.Run("password login is refused for SSO-only accounts", func() {
		user := s.newUser(func(u *models.User) { u.PasswordHash = ""; u.ExternalID = "user_01" })
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), user.Email).Return(user, nil)

		_, err := s.service.Login(s.ctx, &models.LoginRequest{Email: user.Email, Password: testPassword})

		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("inactive account", func() {
		user := s.newUser(func(u *models.User) { u.IsActive = false })
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), user.Email).Return(user, nil)

		_, err := s.service.Login(s.ctx, &models.LoginRequest{Email: user.Email, Password: testPassword})

		s.True(dErrors.HasCode(err, dErrors.CodeUserInactive))
	})

	s.Run("unverified email", func() {
		user := s.newUser(func(u *models.User) { u.EmailVerified = false })
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), user.Email).Return(user, nil)

		_, err := s.service.Login(s.ctx, &models.LoginRequest{Email: user.Email, Password: testPassword})

		s.True(dErrors.HasCode(err, dErrors.CodeEmailUnverified))
	})

	s.Run("failed last-login stamp does not fail the login", func() {
		user := s.newUser()
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), user.Email).Return(user, nil)
		s.mockUsers.EXPECT().Update(gomock.Any(), gomock.Any()).Return(errors.New("timeout"))

		_, err := s.service.Login(s.ctx, &models.LoginRequest{Email: user.Email, Password: testPassword})

		s.NoError(err)
	})
}

func (s *ServiceSuite) TestSSOLogin() {
	profile := models.IdentityProviderProfile{
		ExternalID: "user_01HXYZ",
		Email:      "Jane.Doe@Example.com",
		FirstName:  "Jane",
		LastName:   "Doe",
	}

	s.Run("known external identity signs in and embeds the external id", func() {
		user := s.newUser(func(u *models.User) { u.ExternalID = profile.ExternalID })
		s.mockUsers.EXPECT().FindByExternalID(gomock.Any(), profile.ExternalID).Return(user, nil)
		s.mockUsers.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)

		result, err := s.service.SSOLogin(s.ctx, profile)

		s.Require().NoError(err)
		verified, err := s.jwt.Verify(result.AccessToken, jwttoken.TypeAccess)
		s.Require().NoError(err)
		s.Equal(profile.ExternalID, verified.Identity.ExternalID)
	})

	s.Run("existing local account is linked by email and marked verified", func() {
		local := s.newUser(func(u *models.User) { u.Email = "jane.doe@example.com"; u.EmailVerified = false })
		var updates []*models.User
		s.mockUsers.EXPECT().FindByExternalID(gomock.Any(), profile.ExternalID).Return(nil, notFound("user"))
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), "jane.doe@example.com").Return(local, nil)
		s.mockUsers.EXPECT().Update(gomock.Any(), gomock.Any()).Times(2).DoAndReturn(func(_ context.Context, u *models.User) error {
			updates = append(updates, u)
			return nil
		})

		_, err := s.service.SSOLogin(s.ctx, profile)

		s.Require().NoError(err)
		s.Require().Len(updates, 2)
		s.Equal(profile.ExternalID, updates[0].ExternalID)
		s.True(updates[0].EmailVerified)
		s.Equal(local.ID, updates[0].ID)
	})

	s.Run("account linked to another identity is a conflict", func() {
		local := s.newUser(func(u *models.User) { u.ExternalID = "user_other" })
		s.mockUsers.EXPECT().FindByExternalID(gomock.Any(), profile.ExternalID).Return(nil, notFound("user"))
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).Return(local, nil)

		_, err := s.service.SSOLogin(s.ctx, profile)

		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("new user gets a unique username from the email", func() {
		var created *models.User
		s.mockUsers.EXPECT().FindByExternalID(gomock.Any(), profile.ExternalID).Return(nil, notFound("user"))
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), "jane.doe@example.com").Return(nil, notFound("user"))
		s.mockUsers.EXPECT().FindByUsername(gomock.Any(), "jane.doe").Return(s.newUser(), nil)
		s.mockUsers.EXPECT().FindByUsername(gomock.Any(), "jane.doe1").Return(nil, notFound("user"))
		s.mockUsers.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, u *models.User) error {
			created = u
			return nil
		})
		s.mockUsers.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)

		result, err := s.service.SSOLogin(s.ctx, profile)

		s.Require().NoError(err)
		s.Equal("jane.doe1", created.Username)
		s.Equal(models.UserTypeOrgAdmin, created.UserType)
		s.True(created.EmailVerified)
		s.True(created.IsActive)
		s.Empty(created.PasswordHash)
		s.Equal("jane.doe1", result.User.Username)
	})

	s.Run("provider organization is created and joined as member", func() {
		withOrg := profile
		withOrg.OrganizationExternalID = "org_01ABC"
		withOrg.OrganizationName = "Globex"
		user := s.newUser(func(u *models.User) { u.ExternalID = profile.ExternalID })
		var membership *authzmodels.Membership
		s.mockUsers.EXPECT().FindByExternalID(gomock.Any(), profile.ExternalID).Return(user, nil)
		s.mockOrgs.EXPECT().FindByExternalID(gomock.Any(), "org_01ABC").Return(nil, notFound("organization"))
		s.mockOrgs.EXPECT().FindBySlug(gomock.Any(), "globex").Return(nil, notFound("organization"))
		s.mockOrgs.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, o *authzmodels.Organization) error {
			s.Equal("org_01ABC", o.ExternalID)
			return nil
		})
		s.mockMemberships.EXPECT().Find(gomock.Any(), user.ID, gomock.Any()).Return(nil, notFound("membership"))
		s.mockMemberships.EXPECT().Add(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, m *authzmodels.Membership) error {
			membership = m
			return nil
		})
		s.mockUsers.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)

		_, err := s.service.SSOLogin(s.ctx, withOrg)

		s.Require().NoError(err)
		s.Equal(rbac.RoleMember, membership.Role)
	})

	s.Run("existing membership is left alone", func() {
		withOrg := profile
		withOrg.OrganizationExternalID = "org_01ABC"
		user := s.newUser(func(u *models.User) { u.ExternalID = profile.ExternalID })
		org := &authzmodels.Organization{Name: "Globex", Slug: "globex", ExternalID: "org_01ABC"}
		s.mockUsers.EXPECT().FindByExternalID(gomock.Any(), profile.ExternalID).Return(user, nil)
		s.mockOrgs.EXPECT().FindByExternalID(gomock.Any(), "org_01ABC").Return(org, nil)
		s.mockMemberships.EXPECT().Find(gomock.Any(), user.ID, org.ID).Return(&authzmodels.Membership{Role: rbac.RoleAdmin}, nil)
		s.mockUsers.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)

		_, err := s.service.SSOLogin(s.ctx, withOrg)

		s.NoError(err)
	})

	s.Run("profile without email is rejected", func() {
		_, err := s.service.SSOLogin(s.ctx, models.IdentityProviderProfile{ExternalID: "user_01"})

		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("inactive account", func() {
		user := s.newUser(func(u *models.User) { u.ExternalID = profile.ExternalID; u.IsActive = false })
		s.mockUsers.EXPECT().FindByExternalID(gomock.Any(), profile.ExternalID).Return(user, nil)

		_, err := s.service.SSOLogin(s.ctx, profile)

		s.True(dErrors.HasCode(err, dErrors.CodeUserInactive))
	})
}

func (s *ServiceSuite) TestIssueTokenPair() {
	s.Run("custom ttl wins over remember me", func() {
		user := s.newUser()
		s.mockUsers.EXPECT().FindByID(gomock.Any(), user.ID).Return(user, nil)

		result, err := s.service.IssueTokenPair(s.ctx, user.ID, SessionPolicy{RememberMe: true, TTL: 2 * time.Hour})

		s.Require().NoError(err)
		s.Equal(s.now.Add(2*time.Hour), s.sessionOf(result).ExpiresAt)
	})

	s.Run("unknown user", func() {
		user := s.newUser()
		s.mockUsers.EXPECT().FindByID(gomock.Any(), user.ID).Return(nil, notFound("user"))

		_, err := s.service.IssueTokenPair(s.ctx, user.ID, SessionPolicy{})

		s.True(dErrors.HasCode(err, dErrors.CodeUserNotFound))
	})
}
