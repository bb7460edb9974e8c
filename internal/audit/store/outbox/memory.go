package outbox

import (
	"context"
	"slices"
	"sync"
	"time"

	"trellis/internal/audit"
	"trellis/internal/audit/feed"
)

// InMemory queues events for the feed relay. Published entries are dropped.
type InMemory struct {
	mu      sync.Mutex
	pending []feed.Entry
	seq     int64
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Enqueue(_ context.Context, e audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.pending = append(s.pending, feed.Entry{Seq: s.seq, Event: e})
	return nil
}

func (s *InMemory) Pending(_ context.Context, limit int) ([]feed.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := min(limit, len(s.pending))
	return slices.Clone(s.pending[:n]), nil
}

func (s *InMemory) MarkPublished(_ context.Context, seqs []int64, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = slices.DeleteFunc(s.pending, func(e feed.Entry) bool {
		return slices.Contains(seqs, e.Seq)
	})
	return nil
}

// Len reports how many entries are waiting.
func (s *InMemory) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

type memoryState struct {
	pending []feed.Entry
	seq     int64
}

func (s *InMemory) Snapshot() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memoryState{pending: slices.Clone(s.pending), seq: s.seq}
}

func (s *InMemory) Restore(state any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := state.(memoryState)
	s.pending = st.pending
	s.seq = st.seq
}
