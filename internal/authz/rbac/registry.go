package rbac

import (
	"fmt"
	"slices"
)

// PermissionSet is an immutable set of permissions.
type PermissionSet struct {
	members map[Permission]struct{}
}

func NewPermissionSet(perms ...Permission) PermissionSet {
	members := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		members[p] = struct{}{}
	}
	return PermissionSet{members: members}
}

func (s PermissionSet) Has(p Permission) bool {
	_, ok := s.members[p]
	return ok
}

func (s PermissionSet) Len() int { return len(s.members) }

// Slice returns the members sorted by identifier.
func (s PermissionSet) Slice() []Permission {
	out := make([]Permission, 0, len(s.members))
	for p := range s.members {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Registry maps each role to its literal permission set. It is built once
// and never mutated, so it is safe to share across goroutines.
type Registry struct {
	roles map[Role]PermissionSet
}

// NewRegistry validates table and freezes it. Every role must be known and
// map to a non-empty set of known permissions.
func NewRegistry(table map[Role][]Permission) (*Registry, error) {
	roles := make(map[Role]PermissionSet, len(table))
	for role, perms := range table {
		if !role.IsValid() {
			return nil, fmt.Errorf("registry: unknown role %q", role)
		}
		if len(perms) == 0 {
			return nil, fmt.Errorf("registry: role %q has no permissions", role)
		}
		for _, p := range perms {
			if !p.IsValid() {
				return nil, fmt.Errorf("registry: role %q lists unknown permission %q", role, p)
			}
		}
		roles[role] = NewPermissionSet(perms...)
	}
	return &Registry{roles: roles}, nil
}

// DefaultRegistry returns the registry for the built-in role table.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultRolePermissions())
	if err != nil {
		panic(err) // static table
	}
	return r
}

// Has reports whether role grants p. Unknown roles grant nothing.
func (r *Registry) Has(role Role, p Permission) bool {
	set, ok := r.roles[role]
	return ok && set.Has(p)
}

// PermissionsFor returns the role's permissions sorted by identifier.
func (r *Registry) PermissionsFor(role Role) []Permission {
	set, ok := r.roles[role]
	if !ok {
		return nil
	}
	return set.Slice()
}

// Roles returns the registered roles sorted by name.
func (r *Registry) Roles() []Role {
	out := make([]Role, 0, len(r.roles))
	for role := range r.roles {
		out = append(out, role)
	}
	slices.Sort(out)
	return out
}
