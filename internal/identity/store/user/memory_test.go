package user

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"trellis/internal/identity/models"
	id "trellis/pkg/domain"
	"trellis/pkg/platform/sentinel"
)

type UserStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *UserStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestUserStoreSuite(t *testing.T) {
	suite.Run(t, new(UserStoreSuite))
}

func (s *UserStoreSuite) newUser(username, email string) *models.User {
	return &models.User{
		ID:           id.UserID(uuid.New()),
		Username:     username,
		Email:        email,
		PasswordHash: "hash",
		CreatedAt:    time.Now(),
	}
}

func (s *UserStoreSuite) TestCreationAndLookups() {
	alice := s.newUser("alice", "alice@example.com")
	s.Require().NoError(s.store.Create(s.ctx, alice))

	s.Run("finds by id", func() {
		found, err := s.store.FindByID(s.ctx, alice.ID)
		s.Require().NoError(err)
		s.Equal("alice", found.Username)
	})

	s.Run("finds by email case-insensitively", func() {
		found, err := s.store.FindByEmail(s.ctx, "ALICE@example.com")
		s.Require().NoError(err)
		s.Equal(alice.ID, found.ID)
	})

	s.Run("finds by username case-insensitively", func() {
		found, err := s.store.FindByUsername(s.ctx, "Alice")
		s.Require().NoError(err)
		s.Equal(alice.ID, found.ID)
	})

	s.Run("batch lookup omits unknown ids", func() {
		missing := id.UserID(uuid.New())
		found, err := s.store.FindByIDs(s.ctx, []id.UserID{alice.ID, missing})
		s.Require().NoError(err)
		s.Len(found, 1)
		s.Contains(found, alice.ID)
	})

	s.Run("returns ErrNotFound for unknown id", func() {
		_, err := s.store.FindByID(s.ctx, id.UserID(uuid.New()))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *UserStoreSuite) TestUniqueness() {
	s.Require().NoError(s.store.Create(s.ctx, s.newUser("alice", "alice@example.com")))

	s.Run("rejects duplicate username regardless of case", func() {
		err := s.store.Create(s.ctx, s.newUser("ALICE", "other@example.com"))
		s.ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("rejects duplicate email", func() {
		err := s.store.Create(s.ctx, s.newUser("alice2", "alice@example.com"))
		s.ErrorIs(err, sentinel.ErrAlreadyUsed)
	})
}

func (s *UserStoreSuite) TestSnapshotRestore() {
	snap := s.store.Snapshot()
	u := s.newUser("bob", "bob@example.com")
	s.Require().NoError(s.store.Create(s.ctx, u))

	s.store.Restore(snap)

	_, err := s.store.FindByID(s.ctx, u.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
