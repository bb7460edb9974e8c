package project

import (
	"context"
	"maps"
	"sync"

	"trellis/internal/project/models"
	id "trellis/pkg/domain"
	"trellis/pkg/platform/sentinel"
)

type InMemory struct {
	mu       sync.RWMutex
	projects map[id.ProjectID]models.Project
}

func NewInMemory() *InMemory {
	return &InMemory{projects: make(map[id.ProjectID]models.Project)}
}

func (s *InMemory) Create(_ context.Context, p *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[p.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.projects[p.ID] = clone(*p)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, projectID id.ProjectID) (*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[projectID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	p = clone(p)
	return &p, nil
}

// FindByIDs returns the projects that exist among ids, in the order given.
func (s *InMemory) FindByIDs(_ context.Context, ids []id.ProjectID) ([]models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Project
	for _, projectID := range ids {
		if p, ok := s.projects[projectID]; ok {
			out = append(out, clone(p))
		}
	}
	return out, nil
}

func (s *InMemory) Exists(_ context.Context, projectID id.ProjectID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.projects[projectID]
	return ok, nil
}

func (s *InMemory) Update(_ context.Context, p *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[p.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.projects[p.ID] = clone(*p)
	return nil
}

func (s *InMemory) Delete(_ context.Context, projectID id.ProjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[projectID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.projects, projectID)
	return nil
}

func (s *InMemory) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[id.ProjectID]models.Project, len(s.projects))
	for k, p := range s.projects {
		out[k] = clone(p)
	}
	return out
}

func (s *InMemory) Restore(state any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects = maps.Clone(state.(map[id.ProjectID]models.Project))
}

func clone(p models.Project) models.Project {
	if p.EndDate != nil {
		end := *p.EndDate
		p.EndDate = &end
	}
	return p
}
