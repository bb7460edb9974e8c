package tx

import (
	"context"
	"errors"
	"maps"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "trellis/pkg/domain-errors"
)

type counterStore struct {
	mu     sync.Mutex
	values map[string]int
}

func newCounterStore() *counterStore {
	return &counterStore{values: map[string]int{}}
}

func (s *counterStore) inc(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key]++
}

func (s *counterStore) get(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key]
}

func (s *counterStore) Snapshot() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.values)
}

func (s *counterStore) Restore(state any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = state.(map[string]int)
}

func TestMemoryRunner(t *testing.T) {
	ctx := context.Background()

	t.Run("commit keeps writes", func(t *testing.T) {
		store := newCounterStore()
		runner := NewMemoryRunner(store)
		err := runner.RunInTx(ctx, func(ctx context.Context) error {
			store.inc("a")
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, store.get("a"))
	})

	t.Run("error rolls back every registered store", func(t *testing.T) {
		first, second := newCounterStore(), newCounterStore()
		runner := NewMemoryRunner(first)
		runner.Register(second)
		boom := errors.New("boom")

		err := runner.RunInTx(ctx, func(ctx context.Context) error {
			first.inc("a")
			second.inc("b")
			return boom
		})
		require.ErrorIs(t, err, boom)
		assert.Equal(t, 0, first.get("a"))
		assert.Equal(t, 0, second.get("b"))
	})

	t.Run("panic rolls back", func(t *testing.T) {
		store := newCounterStore()
		runner := NewMemoryRunner(store)
		assert.Panics(t, func() {
			_ = runner.RunInTx(ctx, func(ctx context.Context) error {
				store.inc("a")
				panic("boom")
			})
		})
		assert.Equal(t, 0, store.get("a"))
	})

	t.Run("nested call joins the outer unit", func(t *testing.T) {
		store := newCounterStore()
		runner := NewMemoryRunner(store)
		boom := errors.New("boom")
		err := runner.RunInTx(ctx, func(ctx context.Context) error {
			require.NoError(t, runner.RunInTx(ctx, func(ctx context.Context) error {
				store.inc("a")
				return nil
			}))
			return boom
		})
		require.ErrorIs(t, err, boom)
		assert.Equal(t, 0, store.get("a"))
	})

	t.Run("cancelled context never runs fn", func(t *testing.T) {
		runner := NewMemoryRunner()
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		ran := false
		err := runner.RunInTx(cctx, func(ctx context.Context) error {
			ran = true
			return nil
		})
		require.Error(t, err)
		assert.False(t, ran)
	})

	t.Run("read waits for the unit in flight and never sees its rolled back writes", func(t *testing.T) {
		store := newCounterStore()
		runner := NewMemoryRunner(store)
		boom := errors.New("boom")
		started, release := make(chan struct{}), make(chan struct{})
		done := make(chan error, 1)
		go func() {
			done <- runner.RunInTx(ctx, func(ctx context.Context) error {
				store.inc("a")
				close(started)
				<-release
				return boom
			})
		}()
		<-started

		seen := make(chan int, 1)
		go func() {
			_ = runner.RunReadOnly(ctx, func(ctx context.Context) error {
				seen <- store.get("a")
				return nil
			})
		}()
		select {
		case v := <-seen:
			t.Fatalf("read ran while a unit was in flight and saw %d", v)
		case <-time.After(50 * time.Millisecond):
		}

		close(release)
		require.ErrorIs(t, <-done, boom)
		assert.Equal(t, 0, <-seen)
	})

	t.Run("read inside a unit sees its writes", func(t *testing.T) {
		store := newCounterStore()
		runner := NewMemoryRunner(store)
		err := runner.RunInTx(ctx, func(ctx context.Context) error {
			store.inc("a")
			return runner.RunReadOnly(ctx, func(ctx context.Context) error {
				assert.Equal(t, 1, store.get("a"))
				return nil
			})
		})
		require.NoError(t, err)
	})

	t.Run("nested reads do not block each other", func(t *testing.T) {
		runner := NewMemoryRunner(newCounterStore())
		calls := 0
		err := runner.RunReadOnly(ctx, func(ctx context.Context) error {
			return runner.RunReadOnly(ctx, func(ctx context.Context) error {
				calls++
				return nil
			})
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("write inside a read is refused", func(t *testing.T) {
		store := newCounterStore()
		runner := NewMemoryRunner(store)
		err := runner.RunReadOnly(ctx, func(ctx context.Context) error {
			return runner.RunInTx(ctx, func(ctx context.Context) error {
				store.inc("a")
				return nil
			})
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
		assert.Equal(t, 0, store.get("a"))
	})
}
