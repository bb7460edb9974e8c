package event

import (
	"context"
	"maps"
	"slices"
	"sync"

	"trellis/internal/audit"
	id "trellis/pkg/domain"
	"trellis/pkg/platform/sentinel"
)

// InMemory keeps each task's events in append order.
type InMemory struct {
	mu     sync.RWMutex
	events map[id.TaskID][]audit.Event
	seq    int64
}

func NewInMemory() *InMemory {
	return &InMemory{events: make(map[id.TaskID][]audit.Event)}
}

func (s *InMemory) Append(_ context.Context, e *audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	e.Seq = s.seq
	s.events[e.TaskID] = append(s.events[e.TaskID], *e)
	return nil
}

func (s *InMemory) Latest(_ context.Context, taskID id.TaskID) (*audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.events[taskID]
	if len(list) == 0 {
		return nil, sentinel.ErrNotFound
	}
	latest := slices.MaxFunc(list, compareEvents)
	return &latest, nil
}

// ListByTask returns events ordered by time, then sequence.
func (s *InMemory) ListByTask(_ context.Context, taskID id.TaskID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Clone(s.events[taskID])
	slices.SortStableFunc(out, compareEvents)
	return out, nil
}

func (s *InMemory) DeleteByTask(_ context.Context, taskID id.TaskID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.events[taskID])
	delete(s.events, taskID)
	return n, nil
}

func (s *InMemory) DeleteByTasks(_ context.Context, taskIDs []id.TaskID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, taskID := range taskIDs {
		n += len(s.events[taskID])
		delete(s.events, taskID)
	}
	return n, nil
}

type memoryState struct {
	events map[id.TaskID][]audit.Event
	seq    int64
}

func (s *InMemory) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := make(map[id.TaskID][]audit.Event, len(s.events))
	for taskID, list := range s.events {
		events[taskID] = slices.Clone(list)
	}
	return memoryState{events: events, seq: s.seq}
}

func (s *InMemory) Restore(state any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := state.(memoryState)
	s.events = maps.Clone(st.events)
	s.seq = st.seq
}

func compareEvents(a, b audit.Event) int {
	if c := a.OccurredAt.Compare(b.OccurredAt); c != 0 {
		return c
	}
	switch {
	case a.Seq < b.Seq:
		return -1
	case a.Seq > b.Seq:
		return 1
	}
	return 0
}
