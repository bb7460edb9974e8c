package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches outer code", func(t *testing.T) {
		err := New(CodeNotFound, "project not found")
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeForbidden))
	})

	t.Run("matches code through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("load: %w", New(CodeForbidden, "not a member"))
		assert.True(t, HasCode(err, CodeForbidden))
	})

	t.Run("matches inner code of wrapped domain error", func(t *testing.T) {
		inner := New(CodeDuplicateMembership, "already a member")
		err := Wrap(inner, CodeInternal, "add member")
		assert.True(t, HasCode(err, CodeInternal))
		assert.True(t, HasCode(err, CodeDuplicateMembership))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.False(t, HasCode(nil, CodeInternal))
	})
}

func TestErrorsIs(t *testing.T) {
	err := New(CodeUnauthorized, "invalid token")
	require.ErrorIs(t, err, New(CodeUnauthorized, "invalid token"))
	require.ErrorIs(t, err, New(CodeUnauthorized, ""))
	require.NotErrorIs(t, err, New(CodeUnauthorized, "token has expired"))
	require.NotErrorIs(t, err, New(CodeForbidden, "invalid token"))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeInvalidAssignee, CodeOf(New(CodeInvalidAssignee, "x")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	assert.Equal(t, "x", MessageOf(Wrap(errors.New("cause"), CodeConflict, "x")))
	assert.Equal(t, "x: cause", Wrap(errors.New("cause"), CodeConflict, "x").Error())
}
