// Package policy decides whether a caller may act on a project. A Policy is
// a predicate over the caller's role; the Gate resolves that role from the
// membership directory and applies the policy.
package policy

import (
	"slices"

	id "trellis/pkg/domain"
)

// Policy is a named predicate over a project role.
type Policy struct {
	name   string
	allows func(id.Role) bool
}

// MinRole admits any role ranking at or above r.
func MinRole(r id.Role) Policy {
	return Policy{
		name:   "min_" + r.String(),
		allows: func(have id.Role) bool { return have.Satisfies(r) },
	}
}

// OneOf admits exactly the listed roles. It does not follow rank order.
func OneOf(name string, roles ...id.Role) Policy {
	set := slices.Clone(roles)
	return Policy{
		name:   name,
		allows: func(have id.Role) bool { return slices.Contains(set, have) },
	}
}

var (
	// AnyMember admits every member of the project, observers included.
	AnyMember = MinRole(id.RoleObserver)
	// AdminOnly admits project admins.
	AdminOnly = MinRole(id.RoleAdmin)
	// AdminOrMember admits admins and members but not observers. It guards
	// task deletion.
	AdminOrMember = OneOf("admin_or_member", id.RoleAdmin, id.RoleMember)
)

func (p Policy) Name() string {
	return p.name
}

// Allows reports whether role passes the policy. The zero Policy allows nothing.
func (p Policy) Allows(role id.Role) bool {
	if p.allows == nil {
		return false
	}
	return p.allows(role)
}
