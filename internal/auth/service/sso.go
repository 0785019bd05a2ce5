package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"talentgate/internal/auth/email"
	"talentgate/internal/auth/models"
	"talentgate/internal/authz/rbac"
	"talentgate/internal/sentinel"
	id "talentgate/pkg/domain"
	dErrors "talentgate/pkg/domain-errors"
)

const maxUsernameAttempts = 100

// SSOLogin signs in the user described by a pre-validated identity provider
// profile. Users are matched by external id, then linked by email, then
// created.
func (s *Service) SSOLogin(ctx context.Context, profile models.IdentityProviderProfile) (*models.TokenResult, error) {
	profile.ExternalID = strings.TrimSpace(profile.ExternalID)
	profile.Email = strings.ToLower(strings.TrimSpace(profile.Email))
	if profile.ExternalID == "" || profile.Email == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "identity provider profile requires external id and email")
	}

	user, err := s.resolveSSOUser(ctx, profile)
	if err != nil {
		return nil, s.authFailure(ctx, grantSSO, err, "email_domain", email.Domain(profile.Email))
	}
	if !user.IsActive {
		return nil, s.authFailure(ctx, grantSSO, dErrors.New(dErrors.CodeUserInactive, "account is inactive"),
			"user_id", user.ID.String())
	}

	if profile.OrganizationExternalID != "" && s.organizations != nil {
		if err := s.ensureSSOMembership(ctx, user, profile); err != nil {
			return nil, s.authFailure(ctx, grantSSO, err, "user_id", user.ID.String())
		}
	}

	result, _, err := s.issue(ctx, issueParams{user: user, refreshTTL: s.refreshTTL(false), grant: grantSSO})
	if err != nil {
		return nil, s.authFailure(ctx, grantSSO, err, "user_id", user.ID.String())
	}
	s.recordLogin(ctx, user)
	return result, nil
}

func (s *Service) resolveSSOUser(ctx context.Context, profile models.IdentityProviderProfile) (*models.User, error) {
	user, err := s.users.FindByExternalID(ctx, profile.ExternalID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, translateUserError(err, dErrors.CodeUserNotFound, "user lookup failed")
	}

	user, err = s.users.FindByEmail(ctx, profile.Email)
	switch {
	case err == nil:
		return s.linkExternalIdentity(ctx, user, profile)
	case errors.Is(err, sentinel.ErrNotFound):
		return s.createSSOUser(ctx, profile)
	default:
		return nil, translateUserError(err, dErrors.CodeUserNotFound, "user lookup failed")
	}
}

// linkExternalIdentity attaches the provider identity to an existing local
// account. The provider has verified the email address.
func (s *Service) linkExternalIdentity(ctx context.Context, user *models.User, profile models.IdentityProviderProfile) (*models.User, error) {
	if user.ExternalID != "" && user.ExternalID != profile.ExternalID {
		return nil, dErrors.New(dErrors.CodeConflict, "email is linked to another identity")
	}
	linked := *user
	linked.ExternalID = profile.ExternalID
	linked.EmailVerified = true
	linked.UpdatedAt = s.sessions.Now()
	if err := s.users.Update(ctx, &linked); err != nil {
		return nil, translateUserError(err, dErrors.CodeUserNotFound, "user not found")
	}
	s.logEvent(ctx, "external_identity_linked", "user_id", linked.ID.String())
	return &linked, nil
}

func (s *Service) createSSOUser(ctx context.Context, profile models.IdentityProviderProfile) (*models.User, error) {
	username, err := s.uniqueUsername(ctx, profile.Email)
	if err != nil {
		return nil, err
	}
	firstName, lastName := profile.FirstName, profile.LastName
	if firstName == "" && lastName == "" {
		firstName, lastName = email.DeriveName(profile.Email)
	}
	now := s.sessions.Now()
	user := &models.User{
		ID:            id.NewUserID(),
		Email:         profile.Email,
		Username:      username,
		FirstName:     firstName,
		LastName:      lastName,
		UserType:      models.UserTypeOrgAdmin,
		IsActive:      true,
		EmailVerified: true,
		ExternalID:    profile.ExternalID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, translateUserError(err, dErrors.CodeUserNotFound, "user not found")
	}
	s.metrics.IncrementUsersCreated()
	s.logEvent(ctx, "user_created", "user_id", user.ID.String(), "user_type", user.UserType.String(), "grant", grantSSO)
	return user, nil
}

// uniqueUsername derives a username from the email local part, appending a
// counter until it is free.
func (s *Service) uniqueUsername(ctx context.Context, address string) (string, error) {
	base := email.UsernameBase(address)
	for attempt := 0; attempt < maxUsernameAttempts; attempt++ {
		candidate := base
		if attempt > 0 {
			candidate = fmt.Sprintf("%s%d", base, attempt)
		}
		_, err := s.users.FindByUsername(ctx, candidate)
		if errors.Is(err, sentinel.ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", translateUserError(err, dErrors.CodeUserNotFound, "user lookup failed")
		}
	}
	return "", dErrors.New(dErrors.CodeConflict, "could not derive a unique username")
}

// ensureSSOMembership finds or creates the provider's organization and makes
// the user a member when they are not one already.
func (s *Service) ensureSSOMembership(ctx context.Context, user *models.User, profile models.IdentityProviderProfile) error {
	org, err := s.organizations.FindByExternalID(ctx, profile.OrganizationExternalID)
	if errors.Is(err, sentinel.ErrNotFound) {
		org, err = s.createOrganization(ctx, ssoOrganizationName(profile), profile.OrganizationExternalID)
	} else if err != nil {
		err = translateStoreError(err, "organization lookup failed")
	}
	if err != nil {
		return err
	}

	if _, err := s.memberships.Find(ctx, user.ID, org.ID); err == nil {
		return nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return translateStoreError(err, "membership lookup failed")
	}
	return s.addMembership(ctx, user.ID, org.ID, rbac.RoleMember)
}

func ssoOrganizationName(profile models.IdentityProviderProfile) string {
	if profile.OrganizationName != "" {
		return profile.OrganizationName
	}
	return "Organization " + profile.OrganizationExternalID
}
