package rbac

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "talentgate/pkg/domain-errors"
)

func TestEveryRoleHasExplicitNonEmptySet(t *testing.T) {
	registry := DefaultRegistry()
	assert.ElementsMatch(t, AllRoles(), registry.Roles())
	for _, role := range AllRoles() {
		assert.NotEmpty(t, registry.PermissionsFor(role), role)
	}
}

func TestMostPrivilegedRoleIsSuperset(t *testing.T) {
	registry := DefaultRegistry()
	for _, role := range registry.Roles() {
		for _, p := range registry.PermissionsFor(role) {
			assert.Truef(t, registry.Has(RoleMostPrivileged, p), "%s grants %s but %s does not", role, p, RoleMostPrivileged)
		}
	}
}

func TestReadOnlyRoleHasNoMutatingPermission(t *testing.T) {
	mutating := []string{"create", "update", "delete", "send", "approve", "manage", "edit", "remove", "admin"}
	for _, p := range DefaultRegistry().PermissionsFor(RoleReadOnly) {
		for _, verb := range mutating {
			assert.NotContainsf(t, p.Action(), verb, "read-only role grants %s", p)
		}
		assert.Contains(t, []string{"read", "view"}, p.Action())
	}
}

func TestRolePermissionLookups(t *testing.T) {
	registry := DefaultRegistry()

	tests := []struct {
		role Role
		perm Permission
		want bool
	}{
		{RoleRecruiter, JobCreate, true},
		{RoleRecruiter, UserManage, false},
		{RoleAdmin, OrgManageBilling, false},
		{RoleOwner, OrgManageBilling, true},
		{RoleHiringManager, ApplicationReject, true},
		{RoleHiringManager, JobCreate, false},
		{RoleInterviewer, InterviewFeedback, true},
		{RoleViewer, ReportView, false},
		{RoleContractor, CandidateCreate, true},
		{Role("superuser"), OrgRead, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.perm), func(t *testing.T) {
			assert.Equal(t, tt.want, registry.Has(tt.role, tt.perm))
		})
	}
}

func TestAliasesResolveToCanonicalValue(t *testing.T) {
	assert.Equal(t, JobRead, JobView)
	assert.Equal(t, JobUpdate, JobEdit)
	assert.Equal(t, CandidateUpdate, CandidateEdit)

	for spelling, canonical := range map[string]Permission{
		"job:view":         JobRead,
		"JOB:EDIT":         JobUpdate,
		"application:view": ApplicationRead,
		"offer:read ":      OfferRead,
	} {
		got, err := ParsePermission(spelling)
		require.NoError(t, err, spelling)
		assert.Equal(t, canonical, got)
	}

	_, err := ParsePermission("job:teleport")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestCatalogueIdentifiersAreUnique(t *testing.T) {
	seen := map[Permission]bool{}
	for _, p := range AllPermissions() {
		assert.Falsef(t, seen[p], "duplicate permission %s", p)
		seen[p] = true
		assert.True(t, strings.Contains(string(p), ":"))
	}
}

func TestContextualGrantsAreCatalogued(t *testing.T) {
	for _, set := range []PermissionSet{HiringManagerGrants(), DepartmentHeadGrants()} {
		require.Positive(t, set.Len())
		for _, p := range set.Slice() {
			assert.True(t, p.IsValid(), p)
		}
	}
	assert.True(t, HiringManagerGrants().Has(ApplicationReview))
	assert.False(t, HiringManagerGrants().Has(OfferSend))
}

func TestNewRegistryRejectsInvalidTables(t *testing.T) {
	_, err := NewRegistry(map[Role][]Permission{RoleViewer: {}})
	assert.Error(t, err)

	_, err = NewRegistry(map[Role][]Permission{Role("root"): {OrgRead}})
	assert.Error(t, err)

	_, err = NewRegistry(map[Role][]Permission{RoleViewer: {Permission("org:fly")}})
	assert.Error(t, err)
}

func TestPermissionsForReturnsCopy(t *testing.T) {
	registry := DefaultRegistry()
	perms := registry.PermissionsFor(RoleViewer)
	perms[0] = SystemAdmin
	assert.False(t, registry.Has(RoleViewer, SystemAdmin))
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole(" Head_Of_Talent ")
	require.NoError(t, err)
	assert.Equal(t, RoleHeadOfTalent, role)

	_, err = ParseRole("emperor")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
