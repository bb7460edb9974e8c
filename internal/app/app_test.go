package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trellis/internal/app"
	"trellis/internal/app/apptest"
	"trellis/internal/audit/feed"
	taskmodels "trellis/internal/task/models"
	id "trellis/pkg/domain"
)

type collectingPublisher struct {
	entries []feed.Entry
}

func (p *collectingPublisher) Publish(_ context.Context, entries []feed.Entry) error {
	p.entries = append(p.entries, entries...)
	return nil
}

func TestEventFeedMirrorsTaskHistory(t *testing.T) {
	ctx := context.Background()
	f := apptest.New(t, func(cfg *app.Config) { cfg.EventFeed = true })

	alice := f.User(t, "alice")
	bob := f.User(t, "bob")
	project := f.Project(t, alice, "Apollo")
	member := f.Member(t, alice, project, bob, id.RoleMember)
	task := f.Task(t, alice, project, "Launch", &member)

	pending, err := f.Stores.Outbox.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, task.ID, pending[0].Event.TaskID)
	assert.Equal(t, f.Descriptions(t, task.ID), []string{pending[0].Event.Description, pending[1].Event.Description})

	publisher := &collectingPublisher{}
	n, err := feed.NewRelay(f.Stores.Outbox, publisher, f.Runner).RelayOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	pending, err = f.Stores.Outbox.Pending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestEventFeedSkipsRejectedMutations(t *testing.T) {
	ctx := context.Background()
	f := apptest.New(t, func(cfg *app.Config) { cfg.EventFeed = true })

	alice := f.User(t, "alice")
	project := f.Project(t, alice, "Apollo")
	stranger := id.MembershipID{}
	_, _, err := f.Tasks.Create(ctx, alice, project, taskmodels.Input{Name: "Launch", AssigneeID: &stranger})
	require.Error(t, err)

	pending, err := f.Stores.Outbox.Pending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestEventFeedDisabledLeavesOutboxEmpty(t *testing.T) {
	f := apptest.New(t)
	alice := f.User(t, "alice")
	project := f.Project(t, alice, "Apollo")
	f.Task(t, alice, project, "Launch", nil)

	pending, err := f.Stores.Outbox.Pending(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
