package rbac

import (
	"strings"

	dErrors "talentgate/pkg/domain-errors"
)

// Role is an organization-scoped label assigned through a membership.
type Role string

const (
	RoleOwner         Role = "owner"
	RoleAdmin         Role = "admin"
	RoleHeadOfTalent  Role = "head_of_talent"
	RoleRecruiter     Role = "recruiter"
	RoleHiringManager Role = "hiring_manager"
	RoleManager       Role = "manager"
	RoleInterviewer   Role = "interviewer"
	RoleMember        Role = "member"
	RoleViewer        Role = "viewer"
	RoleContractor    Role = "contractor"
)

// RoleMostPrivileged holds every permission any other role holds.
const RoleMostPrivileged = RoleOwner

// RoleReadOnly holds no permission that creates, mutates or deletes.
const RoleReadOnly = RoleViewer

var allRoles = []Role{
	RoleOwner, RoleAdmin, RoleHeadOfTalent, RoleRecruiter, RoleHiringManager,
	RoleManager, RoleInterviewer, RoleMember, RoleViewer, RoleContractor,
}

// AllRoles returns every role, most privileged first.
func AllRoles() []Role {
	out := make([]Role, len(allRoles))
	copy(out, allRoles)
	return out
}

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown role")
	}
	return r, nil
}

func (r Role) IsValid() bool {
	for _, known := range allRoles {
		if r == known {
			return true
		}
	}
	return false
}

func (r Role) String() string { return string(r) }
