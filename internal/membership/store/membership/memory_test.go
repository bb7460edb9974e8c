package membership

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trellis/internal/membership/models"
	id "trellis/pkg/domain"
	"trellis/pkg/platform/sentinel"
)

func newMembership(t *testing.T, projectID id.ProjectID, userID id.UserID, role id.Role) *models.Membership {
	t.Helper()
	m, err := models.NewMembership(id.MembershipID(uuid.New()), projectID, userID, role, time.Now())
	require.NoError(t, err)
	return m
}

func TestConcurrentDuplicateAddAdmitsOne(t *testing.T) {
	store := NewInMemory()
	projectID := id.ProjectID(uuid.New())
	userID := id.UserID(uuid.New())

	var (
		wg      sync.WaitGroup
		created atomic.Int32
		dupes   atomic.Int32
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Create(context.Background(), newMembership(t, projectID, userID, id.RoleMember))
			switch {
			case err == nil:
				created.Add(1)
			case err == sentinel.ErrAlreadyUsed:
				dupes.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
	assert.Equal(t, int32(15), dupes.Load())
}

func TestListByProjectKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	projectID := id.ProjectID(uuid.New())

	var want []id.MembershipID
	for _, role := range []id.Role{id.RoleAdmin, id.RoleObserver, id.RoleMember} {
		m := newMembership(t, projectID, id.UserID(uuid.New()), role)
		require.NoError(t, store.Create(ctx, m))
		want = append(want, m.ID)
	}
	require.NoError(t, store.Create(ctx, newMembership(t, id.ProjectID(uuid.New()), id.UserID(uuid.New()), id.RoleAdmin)))

	list, err := store.ListByProject(ctx, projectID)
	require.NoError(t, err)
	got := make([]id.MembershipID, len(list))
	for i, m := range list {
		got[i] = m.ID
	}
	assert.Equal(t, want, got)
}

func TestSnapshotRestore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	m := newMembership(t, id.ProjectID(uuid.New()), id.UserID(uuid.New()), id.RoleObserver)
	require.NoError(t, store.Create(ctx, m))

	snap := store.Snapshot()
	require.NoError(t, store.UpdateRole(ctx, m.ID, id.RoleAdmin))
	n, err := store.DeleteByProject(ctx, m.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	store.Restore(snap)
	got, err := store.FindByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, id.RoleObserver, got.Role)
}
