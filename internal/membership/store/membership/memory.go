package membership

import (
	"context"
	"slices"
	"sync"

	"trellis/internal/membership/models"
	id "trellis/pkg/domain"
	"trellis/pkg/platform/sentinel"
)

// InMemory keeps memberships in insertion order. The (project, user) pair is
// checked under the write lock, so concurrent adds of the same pair admit
// exactly one.
type InMemory struct {
	mu   sync.RWMutex
	rows []models.Membership
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Create(_ context.Context, m *models.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.ProjectID == m.ProjectID && row.UserID == m.UserID {
			return sentinel.ErrAlreadyUsed
		}
	}
	s.rows = append(s.rows, *m)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, membershipID id.MembershipID) (*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(membershipID)
	if i < 0 {
		return nil, sentinel.ErrNotFound
	}
	m := s.rows[i]
	return &m, nil
}

func (s *InMemory) FindByProjectAndUser(_ context.Context, projectID id.ProjectID, userID id.UserID) (*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, row := range s.rows {
		if row.ProjectID == projectID && row.UserID == userID {
			return &row, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) ListByProject(_ context.Context, projectID id.ProjectID) ([]models.Membership, error) {
	return s.filter(func(m models.Membership) bool { return m.ProjectID == projectID }), nil
}

func (s *InMemory) ListByUser(_ context.Context, userID id.UserID) ([]models.Membership, error) {
	return s.filter(func(m models.Membership) bool { return m.UserID == userID }), nil
}

func (s *InMemory) UpdateRole(_ context.Context, membershipID id.MembershipID, role id.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(membershipID)
	if i < 0 {
		return sentinel.ErrNotFound
	}
	s.rows[i].Role = role
	return nil
}

func (s *InMemory) Delete(_ context.Context, membershipID id.MembershipID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(membershipID)
	if i < 0 {
		return sentinel.ErrNotFound
	}
	s.rows = slices.Delete(s.rows, i, i+1)
	return nil
}

// DeleteByProject removes every membership of a project and returns how many were removed.
func (s *InMemory) DeleteByProject(_ context.Context, projectID id.ProjectID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.rows)
	s.rows = slices.DeleteFunc(s.rows, func(m models.Membership) bool { return m.ProjectID == projectID })
	return before - len(s.rows), nil
}

func (s *InMemory) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.rows)
}

func (s *InMemory) Restore(state any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = state.([]models.Membership)
}

func (s *InMemory) indexOf(membershipID id.MembershipID) int {
	return slices.IndexFunc(s.rows, func(m models.Membership) bool { return m.ID == membershipID })
}

func (s *InMemory) filter(keep func(models.Membership) bool) []models.Membership {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Membership
	for _, row := range s.rows {
		if keep(row) {
			out = append(out, row)
		}
	}
	return out
}
