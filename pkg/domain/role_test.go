package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "trellis/pkg/domain-errors"
)

// TestRoleOrdering checks that Satisfies is a total order consistent with rank.
func TestRoleOrdering(t *testing.T) {
	for _, have := range Roles() {
		for _, want := range Roles() {
			assert.Equal(t, have.Rank() >= want.Rank(), have.Satisfies(want),
				"%s satisfies %s", have, want)
		}
	}

	t.Run("admin satisfies everything", func(t *testing.T) {
		assert.True(t, RoleAdmin.Satisfies(RoleObserver))
		assert.True(t, RoleAdmin.Satisfies(RoleMember))
		assert.True(t, RoleAdmin.Satisfies(RoleAdmin))
	})

	t.Run("observer only satisfies observer", func(t *testing.T) {
		assert.True(t, RoleObserver.Satisfies(RoleObserver))
		assert.False(t, RoleObserver.Satisfies(RoleMember))
		assert.False(t, RoleObserver.Satisfies(RoleAdmin))
	})

	t.Run("unknown roles satisfy nothing", func(t *testing.T) {
		assert.False(t, Role("owner").Satisfies(RoleObserver))
		assert.False(t, RoleAdmin.Satisfies(Role("")))
	})
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		input string
		want  Role
	}{
		{"observer", RoleObserver},
		{"MEMBER", RoleMember},
		{" Admin ", RoleAdmin},
	}
	for _, tt := range tests {
		got, err := ParseRole(tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseRole("superuser")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}
