package status

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"

	"trellis/internal/status/models"
	id "trellis/pkg/domain"
	"trellis/pkg/platform/sentinel"
)

// InMemory keeps statuses in a map. Names are unique case-insensitively.
type InMemory struct {
	mu       sync.RWMutex
	statuses map[id.StatusID]models.Status
}

func NewInMemory() *InMemory {
	return &InMemory{statuses: make(map[id.StatusID]models.Status)}
}

func (s *InMemory) Create(_ context.Context, st *models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.statuses {
		if strings.EqualFold(existing.Name, st.Name) {
			return sentinel.ErrAlreadyUsed
		}
	}
	s.statuses[st.ID] = *st
	return nil
}

func (s *InMemory) FindByID(_ context.Context, statusID id.StatusID) (*models.Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.statuses[statusID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &st, nil
}

func (s *InMemory) FindByName(_ context.Context, name string) (*models.Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.statuses {
		if strings.EqualFold(st.Name, name) {
			return &st, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// List returns every status ordered by position, then name.
func (s *InMemory) List(_ context.Context) ([]models.Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Collect(maps.Values(s.statuses))
	sortStatuses(out)
	return out, nil
}

// Delete removes a status row without touching projects or tasks that
// reference it.
func (s *InMemory) Delete(_ context.Context, statusID id.StatusID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.statuses[statusID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.statuses, statusID)
	return nil
}

func (s *InMemory) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.statuses)
}

func (s *InMemory) Restore(state any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = state.(map[id.StatusID]models.Status)
}

func sortStatuses(statuses []models.Status) {
	slices.SortFunc(statuses, func(a, b models.Status) int {
		if a.Position != b.Position {
			return a.Position - b.Position
		}
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
}
