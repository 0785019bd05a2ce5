package service

import (
	"context"
	"errors"
	"fmt"

	"talentgate/internal/auth/email"
	"talentgate/internal/auth/models"
	authzmodels "talentgate/internal/authz/models"
	"talentgate/internal/authz/rbac"
	"talentgate/internal/sentinel"
	id "talentgate/pkg/domain"
	dErrors "talentgate/pkg/domain-errors"
)

const maxSlugAttempts = 20

// Signup registers a local account. With an organization name the user
// becomes an org admin and the owner of a new organization.
func (s *Service) Signup(ctx context.Context, req *models.SignupRequest) (*models.TokenResult, error) {
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := s.ensureAvailable(ctx, req.Email, req.Username); err != nil {
		return nil, s.authFailure(ctx, grantSignup, err, "email_domain", email.Domain(req.Email))
	}

	hash, err := s.passwords.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.sessions.Now()
	user := &models.User{
		ID:           id.NewUserID(),
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		UserType:     models.UserTypeCandidate,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	wantsOrg := req.OrganizationName != "" && s.organizations != nil
	if wantsOrg {
		user.UserType = models.UserTypeOrgAdmin
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, s.authFailure(ctx, grantSignup, translateUserError(err, dErrors.CodeNotFound, "user not found"))
	}
	s.metrics.IncrementUsersCreated()
	s.logEvent(ctx, "user_created", "user_id", user.ID.String(), "user_type", user.UserType.String())

	if wantsOrg {
		org, err := s.createOrganization(ctx, req.OrganizationName, "")
		if err != nil {
			return nil, s.authFailure(ctx, grantSignup, err, "user_id", user.ID.String())
		}
		if err := s.addMembership(ctx, user.ID, org.ID, rbac.RoleOwner); err != nil {
			return nil, s.authFailure(ctx, grantSignup, err, "user_id", user.ID.String())
		}
	}

	result, _, err := s.issue(ctx, issueParams{user: user, refreshTTL: s.refreshTTL(false), grant: grantSignup})
	if err != nil {
		return nil, s.authFailure(ctx, grantSignup, err, "user_id", user.ID.String())
	}
	return result, nil
}

func (s *Service) ensureAvailable(ctx context.Context, email, username string) error {
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return dErrors.New(dErrors.CodeConflict, "email already registered")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return translateUserError(err, dErrors.CodeNotFound, "user lookup failed")
	}
	if _, err := s.users.FindByUsername(ctx, username); err == nil {
		return dErrors.New(dErrors.CodeConflict, "username already taken")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return translateUserError(err, dErrors.CodeNotFound, "user lookup failed")
	}
	return nil
}

// createOrganization creates an organization whose slug is unique, suffixing
// a counter when the name's slug is taken.
func (s *Service) createOrganization(ctx context.Context, name, externalID string) (*authzmodels.Organization, error) {
	org, err := authzmodels.NewOrganization(id.NewOrganizationID(), name, externalID, s.sessions.Now())
	if err != nil {
		return nil, err
	}
	base := org.Slug
	for attempt := 1; attempt <= maxSlugAttempts; attempt++ {
		if attempt > 1 {
			org.Slug = fmt.Sprintf("%s-%d", base, attempt)
		}
		_, err := s.organizations.FindBySlug(ctx, org.Slug)
		if err == nil {
			continue
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, translateStoreError(err, "organization lookup failed")
		}
		if err := s.organizations.Create(ctx, org); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				continue
			}
			return nil, translateStoreError(err, "failed to create organization")
		}
		s.logEvent(ctx, "organization_created", "organization_id", org.ID.String(), "slug", org.Slug)
		return org, nil
	}
	return nil, dErrors.New(dErrors.CodeConflict, "organization name is not available")
}

func (s *Service) addMembership(ctx context.Context, userID id.UserID, orgID id.OrganizationID, role rbac.Role) error {
	m, err := authzmodels.NewMembership(userID, orgID, role, s.sessions.Now())
	if err != nil {
		return err
	}
	if err := s.memberships.Add(ctx, m); err != nil {
		return translateStoreError(err, "failed to add membership")
	}
	s.logEvent(ctx, "membership_added",
		"user_id", userID.String(),
		"organization_id", orgID.String(),
		"role", role.String(),
	)
	return nil
}
