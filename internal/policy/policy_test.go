package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	id "trellis/pkg/domain"
)

func TestNamedPolicies(t *testing.T) {
	cases := []struct {
		policy Policy
		role   id.Role
		want   bool
	}{
		{AnyMember, id.RoleObserver, true},
		{AnyMember, id.RoleMember, true},
		{AnyMember, id.RoleAdmin, true},
		{AdminOnly, id.RoleObserver, false},
		{AdminOnly, id.RoleMember, false},
		{AdminOnly, id.RoleAdmin, true},
		{AdminOrMember, id.RoleObserver, false},
		{AdminOrMember, id.RoleMember, true},
		{AdminOrMember, id.RoleAdmin, true},
		{AnyMember, id.Role("owner"), false},
		{AdminOrMember, id.Role(""), false},
	}
	for _, tc := range cases {
		t.Run(tc.policy.Name()+"/"+tc.role.String(), func(t *testing.T) {
			assert.Equal(t, tc.want, tc.policy.Allows(tc.role))
		})
	}
}

func TestOneOfIgnoresRank(t *testing.T) {
	observersOnly := OneOf("observers_only", id.RoleObserver)
	assert.True(t, observersOnly.Allows(id.RoleObserver))
	assert.False(t, observersOnly.Allows(id.RoleAdmin))
}

func TestZeroPolicyAllowsNothing(t *testing.T) {
	var p Policy
	for _, r := range id.Roles() {
		assert.False(t, p.Allows(r))
	}
}
