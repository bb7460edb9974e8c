package tx

import (
	"context"
	"sync"

	dErrors "trellis/pkg/domain-errors"
)

// Snapshotter is implemented by in-memory stores taking part in MemoryRunner
// transactions. Snapshot returns a deep copy of the store's state; Restore
// replaces the state with a value previously returned by Snapshot.
type Snapshotter interface {
	Snapshot() any
	Restore(state any)
}

type (
	memTxKey   struct{}
	memReadKey struct{}
)

// MemoryRunner serialises units of work over in-memory stores. Registered
// stores are snapshotted before fn runs and restored if fn fails or panics,
// which gives the same all-or-nothing outcome as a database transaction.
// Every write to a registered store must happen inside RunInTx, and reads
// that must not observe a unit still in flight go through RunReadOnly.
type MemoryRunner struct {
	mu     sync.RWMutex
	stores []Snapshotter
}

func NewMemoryRunner(stores ...Snapshotter) *MemoryRunner {
	return &MemoryRunner{stores: stores}
}

// Register adds stores to the set restored on rollback.
func (r *MemoryRunner) Register(stores ...Snapshotter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores = append(r.stores, stores...)
}

func (r *MemoryRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if r.inTx(ctx) {
		return fn(ctx)
	}
	if owner, ok := ctx.Value(memReadKey{}).(*MemoryRunner); ok && owner == r {
		return dErrors.New(dErrors.CodeInternal, "write attempted inside a read-only unit")
	}
	if cerr := ctx.Err(); cerr != nil {
		return dErrors.Wrap(cerr, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	snapshots := make([]any, len(r.stores))
	for i, s := range r.stores {
		snapshots[i] = s.Snapshot()
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		for i, s := range r.stores {
			s.Restore(snapshots[i])
		}
	}()

	if err := fn(context.WithValue(ctx, memTxKey{}, r)); err != nil {
		return err
	}
	committed = true
	return nil
}

// RunReadOnly waits for the unit of work in flight, if any, and runs fn while
// holding off new ones. Readers run concurrently with each other.
func (r *MemoryRunner) RunReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.inTx(ctx) {
		return fn(ctx)
	}
	if owner, ok := ctx.Value(memReadKey{}).(*MemoryRunner); ok && owner == r {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "read aborted: context cancelled")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return fn(context.WithValue(ctx, memReadKey{}, r))
}

func (r *MemoryRunner) inTx(ctx context.Context) bool {
	owner, ok := ctx.Value(memTxKey{}).(*MemoryRunner)
	return ok && owner == r
}
