package models

import (
	"strings"
	"time"

	"talentgate/internal/authz/rbac"
	id "talentgate/pkg/domain"
	dErrors "talentgate/pkg/domain-errors"
	str "talentgate/pkg/string"
)

const maxOrganizationNameLength = 128

// Organization is a tenant: the boundary every permission decision is scoped to.
type Organization struct {
	ID         id.OrganizationID
	Name       string
	Slug       string
	ExternalID string // identity provider organization id, empty for local sign-ups
	CreatedAt  time.Time
}

// NewOrganization validates name and derives the URL slug from it.
func NewOrganization(orgID id.OrganizationID, name, externalID string, now time.Time) (*Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "organization name cannot be empty")
	}
	if len(name) > maxOrganizationNameLength {
		return nil, dErrors.New(dErrors.CodeValidation, "organization name must be 128 characters or less")
	}
	slug := str.Slugify(name)
	if slug == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "organization name must contain letters or digits")
	}
	return &Organization{
		ID:         orgID,
		Name:       name,
		Slug:       slug,
		ExternalID: strings.TrimSpace(externalID),
		CreatedAt:  now,
	}, nil
}

// Membership binds one user to one organization with one role.
type Membership struct {
	UserID         id.UserID
	OrganizationID id.OrganizationID
	Role           rbac.Role
	CreatedAt      time.Time
}

func NewMembership(userID id.UserID, orgID id.OrganizationID, role rbac.Role, now time.Time) (*Membership, error) {
	if userID.IsNil() || orgID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "membership requires user and organization")
	}
	if !role.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown role")
	}
	return &Membership{UserID: userID, OrganizationID: orgID, Role: role, CreatedAt: now}, nil
}

// ResourceKind names a type of resource that can carry contextual grants.
type ResourceKind string

const (
	ResourceJob        ResourceKind = "job"
	ResourceDepartment ResourceKind = "department"
)

// ResourceRef points at one resource inside an organization. It is read-only
// input to a permission check and is never persisted by the resolver.
type ResourceRef struct {
	Kind ResourceKind
	ID   id.ResourceID
}

func (r *ResourceRef) IsZero() bool {
	return r == nil || r.Kind == "" || r.ID.IsNil()
}

// Assignment records that a user holds a contextual position on a resource,
// e.g. the hiring manager of a job.
type Assignment struct {
	OrganizationID id.OrganizationID
	Resource       ResourceRef
	UserID         id.UserID
}
