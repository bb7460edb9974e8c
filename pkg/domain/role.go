package domain

import (
	"strings"

	dErrors "trellis/pkg/domain-errors"
)

// Role is a member's standing within a single project.
// This is a domain primitive that enforces validity at parse time.
type Role string

// Supported roles, lowest to highest.
const (
	RoleObserver Role = "observer"
	RoleMember   Role = "member"
	RoleAdmin    Role = "admin"
)

// roleRank defines the total order of roles.
// Higher numbers carry strictly more authority.
var roleRank = map[Role]int{
	RoleObserver: 1,
	RoleMember:   2,
	RoleAdmin:    3,
}

// ParseRole validates and returns a Role. Matching is case-insensitive so
// stored upper-case names ("ADMIN") parse to the same value.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := roleRank[r]; !ok {
		return "", dErrors.New(dErrors.CodeValidation, "unknown role: "+s)
	}
	return r, nil
}

func (r Role) String() string {
	return string(r)
}

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	_, ok := roleRank[r]
	return ok
}

// Rank returns the role's position in the ordering, 0 for unknown roles.
func (r Role) Rank() int {
	return roleRank[r]
}

// Satisfies returns true if r ranks at or above required.
// Unknown roles satisfy nothing and an unknown requirement is never met.
func (r Role) Satisfies(required Role) bool {
	have, ok := roleRank[r]
	if !ok {
		return false
	}
	want, ok := roleRank[required]
	if !ok {
		return false
	}
	return have >= want
}

// Roles returns all roles, lowest first.
func Roles() []Role {
	return []Role{RoleObserver, RoleMember, RoleAdmin}
}
