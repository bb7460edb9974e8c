package task

import (
	"context"
	"slices"
	"sync"

	"trellis/internal/task/models"
	id "trellis/pkg/domain"
	"trellis/pkg/platform/sentinel"
)

// InMemory keeps tasks in creation order.
type InMemory struct {
	mu    sync.RWMutex
	tasks []models.Task
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Create(_ context.Context, t *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(t.ID) >= 0 {
		return sentinel.ErrAlreadyUsed
	}
	s.tasks = append(s.tasks, clone(*t))
	return nil
}

func (s *InMemory) FindByID(_ context.Context, taskID id.TaskID) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(taskID)
	if i < 0 {
		return nil, sentinel.ErrNotFound
	}
	t := clone(s.tasks[i])
	return &t, nil
}

// FindByIDForUpdate is FindByID: MemoryRunner already serialises units of work.
func (s *InMemory) FindByIDForUpdate(ctx context.Context, taskID id.TaskID) (*models.Task, error) {
	return s.FindByID(ctx, taskID)
}

func (s *InMemory) Update(_ context.Context, t *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(t.ID)
	if i < 0 {
		return sentinel.ErrNotFound
	}
	s.tasks[i] = clone(*t)
	return nil
}

func (s *InMemory) Delete(_ context.Context, taskID id.TaskID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(taskID)
	if i < 0 {
		return sentinel.ErrNotFound
	}
	s.tasks = slices.Delete(s.tasks, i, i+1)
	return nil
}

func (s *InMemory) ListByProject(_ context.Context, projectID id.ProjectID) ([]models.Task, error) {
	return s.filter(func(t models.Task) bool { return t.ProjectID == projectID }), nil
}

func (s *InMemory) ListByAssignee(_ context.Context, membershipID id.MembershipID) ([]models.Task, error) {
	return s.filter(func(t models.Task) bool { return t.AssigneeID != nil && *t.AssigneeID == membershipID }), nil
}

func (s *InMemory) DeleteByProject(_ context.Context, projectID id.ProjectID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.tasks)
	s.tasks = slices.DeleteFunc(s.tasks, func(t models.Task) bool { return t.ProjectID == projectID })
	return before - len(s.tasks), nil
}

func (s *InMemory) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Task, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = clone(t)
	}
	return out
}

func (s *InMemory) Restore(state any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = state.([]models.Task)
}

func (s *InMemory) indexOf(taskID id.TaskID) int {
	return slices.IndexFunc(s.tasks, func(t models.Task) bool { return t.ID == taskID })
}

func (s *InMemory) filter(keep func(models.Task) bool) []models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Task
	for _, t := range s.tasks {
		if keep(t) {
			out = append(out, clone(t))
		}
	}
	return out
}

// clone copies the pointer fields so callers never share state with the store.
func clone(t models.Task) models.Task {
	if t.DueDate != nil {
		d := *t.DueDate
		t.DueDate = &d
	}
	if t.AssigneeID != nil {
		a := *t.AssigneeID
		t.AssigneeID = &a
	}
	return t
}
