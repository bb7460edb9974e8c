// Package apptest builds a fully wired in-memory App for tests.
package apptest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"trellis/internal/app"
	identitymodels "trellis/internal/identity/models"
	projectmodels "trellis/internal/project/models"
	taskmodels "trellis/internal/task/models"
	id "trellis/pkg/domain"
	"trellis/pkg/platform/tx"
)

// DefaultStatuses are seeded into every fixture, in catalog order.
var DefaultStatuses = []string{"To Do", "In Progress", "Done"}

type Fixture struct {
	*app.App
	Stores   app.Stores
	Runner   *tx.MemoryRunner
	Registry *prometheus.Registry
}

// New wires an App over fresh in-memory stores. configure may adjust the
// config before wiring.
func New(t testing.TB, configure ...func(*app.Config)) *Fixture {
	t.Helper()
	stores, runner := app.MemoryStores()
	reg := prometheus.NewRegistry()
	cfg := app.Config{
		JWTSigningKey: "test-signing-key",
		JWTIssuer:     "trellis-test",
		TokenTTL:      time.Hour,
		BcryptCost:    bcrypt.MinCost,
	}
	for _, fn := range configure {
		fn(&cfg)
	}
	a := app.New(cfg, stores, runner, app.WithRegisterer(reg))
	require.NoError(t, a.Statuses.Seed(context.Background(), DefaultStatuses))
	return &Fixture{App: a, Stores: stores, Runner: runner, Registry: reg}
}

// User stores a user directly, skipping password hashing.
func (f *Fixture) User(t testing.TB, username string) id.UserID {
	t.Helper()
	u, err := identitymodels.NewUser(id.UserID(uuid.New()), username, username+"@example.com", "not-a-real-hash", time.Now())
	require.NoError(t, err)
	require.NoError(t, f.Runner.RunInTx(context.Background(), func(ctx context.Context) error {
		return f.Stores.Users.Create(ctx, u)
	}))
	return u.ID
}

// Project creates a project owned by admin.
func (f *Fixture) Project(t testing.TB, admin id.UserID, name string) id.ProjectID {
	t.Helper()
	p, _, err := f.Projects.Create(context.Background(), admin, projectmodels.Input{
		Name:      name,
		StartDate: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return p.ID
}

// Member adds user to the project with role and returns the membership id.
func (f *Fixture) Member(t testing.TB, admin id.UserID, projectID id.ProjectID, user id.UserID, role id.Role) id.MembershipID {
	t.Helper()
	m, err := f.Memberships.Add(context.Background(), admin, projectID, user, role)
	require.NoError(t, err)
	return m.ID
}

// Task creates a task with the default status.
func (f *Fixture) Task(t testing.TB, admin id.UserID, projectID id.ProjectID, name string, assignee *id.MembershipID) *taskmodels.Task {
	t.Helper()
	task, _, err := f.Tasks.Create(context.Background(), admin, projectID, taskmodels.Input{
		Name:       name,
		AssigneeID: assignee,
	})
	require.NoError(t, err)
	return task
}

// Status returns the id of a seeded status.
func (f *Fixture) Status(t testing.TB, name string) id.StatusID {
	t.Helper()
	st, err := f.Statuses.GetByName(context.Background(), name)
	require.NoError(t, err)
	return st.ID
}

// Descriptions lists a task's history lines, oldest first.
func (f *Fixture) Descriptions(t testing.TB, taskID id.TaskID) []string {
	t.Helper()
	events, err := f.History.EventsOf(context.Background(), taskID)
	require.NoError(t, err)
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Description
	}
	return out
}
