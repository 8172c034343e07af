// Package policy turns guild role assignments into API permissions.
package policy

import "sort"

// Permission represents an actionable verb within the API surface.
type Permission string

const (
	PermissionViewOverlay  Permission = "overlay:view"
	PermissionUseCrafting  Permission = "crafting:use"
	PermissionJoinEvents   Permission = "events:join"
	PermissionCreateEvents Permission = "events:create"
)

// Grant describes who receives a permission. Baseline grants go to every
// guild member. Role grants go to holders of any listed role id; when
// OpenWhenUnrestricted is set and no role ids are configured the permission
// falls back to membership.
type Grant struct {
	Baseline             bool
	RoleIDs              []string
	OpenWhenUnrestricted bool
}

// Table maps each permission to the grant that confers it. New permissions
// are added here without touching call sites.
type Table map[Permission]Grant

// NewTable builds the starter policy: membership grants read and use, the
// configured event roles grant event creation.
func NewTable(eventRoleIDs []string) Table {
	return Table{
		PermissionViewOverlay: {Baseline: true},
		PermissionUseCrafting: {Baseline: true},
		PermissionJoinEvents:  {Baseline: true},
		PermissionCreateEvents: {
			RoleIDs:              append([]string(nil), eventRoleIDs...),
			OpenWhenUnrestricted: true,
		},
	}
}

// Derive computes the permission set for a guild member holding roleIDs.
func (t Table) Derive(roleIDs []string) PermissionSet {
	held := make(map[string]struct{}, len(roleIDs))
	for _, role := range roleIDs {
		held[role] = struct{}{}
	}

	set := PermissionSet{}
	for permission, grant := range t {
		if grant.Baseline {
			set[permission] = struct{}{}
			continue
		}
		if len(grant.RoleIDs) == 0 {
			if grant.OpenWhenUnrestricted {
				set[permission] = struct{}{}
			}
			continue
		}
		for _, role := range grant.RoleIDs {
			if _, ok := held[role]; ok {
				set[permission] = struct{}{}
				break
			}
		}
	}
	return set
}

// PermissionSet is an unordered set of granted permissions.
type PermissionSet map[Permission]struct{}

func (s PermissionSet) Has(permission Permission) bool {
	_, ok := s[permission]
	return ok
}

// Strings returns the permissions sorted, for embedding in credentials.
func (s PermissionSet) Strings() []string {
	out := make([]string, 0, len(s))
	for permission := range s {
		out = append(out, string(permission))
	}
	sort.Strings(out)
	return out
}

// CanAttend reports whether a member holding roleIDs satisfies an event's
// required roles. An event without required roles is open to every member.
func CanAttend(requiredRoleIDs []string, roleIDs []string) bool {
	if len(requiredRoleIDs) == 0 {
		return true
	}
	held := make(map[string]struct{}, len(roleIDs))
	for _, role := range roleIDs {
		held[role] = struct{}{}
	}
	for _, required := range requiredRoleIDs {
		if _, ok := held[required]; ok {
			return true
		}
	}
	return false
}
