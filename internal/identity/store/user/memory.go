package user

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"

	"trellis/internal/identity/models"
	id "trellis/pkg/domain"
	"trellis/pkg/platform/sentinel"
)

// InMemory is a thread-safe user store. Username and email uniqueness are
// case-insensitive.
type InMemory struct {
	mu    sync.RWMutex
	users map[id.UserID]models.User
}

func NewInMemory() *InMemory {
	return &InMemory{users: make(map[id.UserID]models.User)}
}

func (s *InMemory) Create(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Username, u.Username) || strings.EqualFold(existing.Email, u.Email) {
			return sentinel.ErrAlreadyUsed
		}
	}
	s.users[u.ID] = *u
	return nil
}

func (s *InMemory) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &u, nil
}

func (s *InMemory) FindByEmail(_ context.Context, address string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, address) {
			return &u, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) FindByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			return &u, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// List returns every user ordered by username, ignoring case.
func (s *InMemory) List(_ context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Collect(maps.Values(s.users))
	slices.SortFunc(out, func(a, b models.User) int {
		return strings.Compare(strings.ToLower(a.Username), strings.ToLower(b.Username))
	})
	return out, nil
}

// FindByIDs returns the users that exist among ids. Missing IDs are absent from the map.
func (s *InMemory) FindByIDs(_ context.Context, ids []id.UserID) (map[id.UserID]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[id.UserID]*models.User, len(ids))
	for _, userID := range ids {
		if u, ok := s.users[userID]; ok {
			out[userID] = &u
		}
	}
	return out, nil
}

// Delete removes a user row. Used by operators and tests to simulate
// out-of-band removal; memberships referencing the user are left in place.
func (s *InMemory) Delete(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.users, userID)
	return nil
}

func (s *InMemory) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.users)
}

func (s *InMemory) Restore(state any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = state.(map[id.UserID]models.User)
}
