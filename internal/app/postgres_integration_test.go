//go:build integration

package app_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"trellis/internal/app"
	"trellis/internal/app/apptest"
	"trellis/internal/audit/feed"
	identitymodels "trellis/internal/identity/models"
	projectmodels "trellis/internal/project/models"
	taskmodels "trellis/internal/task/models"
	id "trellis/pkg/domain"
	dErrors "trellis/pkg/domain-errors"
	"trellis/pkg/platform/tx"
	"trellis/pkg/testutil/containers"
)

type PostgresAppSuite struct {
	suite.Suite
	pg     *containers.PostgresContainer
	ctx    context.Context
	stores app.Stores
	runner tx.Runner
	app    *app.App
}

func TestPostgresAppSuite(t *testing.T) {
	suite.Run(t, new(PostgresAppSuite))
}

func (s *PostgresAppSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
}

func (s *PostgresAppSuite) SetupTest() {
	s.ctx = context.Background()
	s.Require().NoError(s.pg.TruncateTables(s.ctx,
		"task_event_outbox", "task_events", "tasks", "memberships", "projects", "statuses", "users"))

	s.stores = app.PostgresStores(s.pg.DB)
	s.runner = tx.NewPostgresRunner(s.pg.DB, 5*time.Second)
	s.app = app.New(app.Config{
		JWTSigningKey: "test-signing-key",
		JWTIssuer:     "trellis-test",
		TokenTTL:      time.Hour,
		BcryptCost:    bcrypt.MinCost,
		EventFeed:     true,
	}, s.stores, s.runner, app.WithRegisterer(prometheus.NewRegistry()))
	s.Require().NoError(s.app.Statuses.Seed(s.ctx, apptest.DefaultStatuses))
}

func (s *PostgresAppSuite) register(username string) id.UserID {
	u, err := s.app.Identity.Register(s.ctx, &identitymodels.RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "correct horse battery",
	})
	s.Require().NoError(err)
	return u.ID
}

func (s *PostgresAppSuite) status(name string) id.StatusID {
	st, err := s.app.Statuses.GetByName(s.ctx, name)
	s.Require().NoError(err)
	return st.ID
}

func (s *PostgresAppSuite) history(taskID id.TaskID) []string {
	events, err := s.app.History.EventsOf(s.ctx, taskID)
	s.Require().NoError(err)
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Description
	}
	return out
}

func (s *PostgresAppSuite) TestTaskLifecycle() {
	alice := s.register("alice")
	bob := s.register("bob")

	project, role, err := s.app.Projects.Create(s.ctx, alice, projectmodels.Input{
		Name:      "Apollo",
		StartDate: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
	})
	s.Require().NoError(err)
	s.Equal(id.RoleAdmin, role)

	member, err := s.app.Memberships.Add(s.ctx, alice, project.ID, bob, id.RoleMember)
	s.Require().NoError(err)
	_, err = s.app.Memberships.Add(s.ctx, alice, project.ID, bob, id.RoleObserver)
	s.True(dErrors.HasCode(err, dErrors.CodeDuplicateMembership))

	task, _, err := s.app.Tasks.Create(s.ctx, alice, project.ID, taskmodels.Input{Name: "Launch", AssigneeID: &member.ID})
	s.Require().NoError(err)
	_, _, err = s.app.Tasks.ChangeStatus(s.ctx, alice, task.ID, s.status("In Progress"))
	s.Require().NoError(err)
	_, err = s.app.Memberships.Remove(s.ctx, alice, member.ID)
	s.Require().NoError(err)

	s.Equal([]string{
		"Task Launch was created",
		"Assigned to bob",
		"Status changed to In Progress",
		"Unassigned from bob",
	}, s.history(task.ID))

	got, _, err := s.app.Tasks.Get(s.ctx, alice, task.ID)
	s.Require().NoError(err)
	s.Nil(got.AssigneeID)
}

func (s *PostgresAppSuite) TestFailedMutationRollsBack() {
	alice := s.register("alice")
	project, _, err := s.app.Projects.Create(s.ctx, alice, projectmodels.Input{
		Name:      "Apollo",
		StartDate: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
	})
	s.Require().NoError(err)

	stranger := id.MembershipID(uuid.New())
	_, _, err = s.app.Tasks.Create(s.ctx, alice, project.ID, taskmodels.Input{Name: "Launch", AssigneeID: &stranger})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidAssignee))

	tasks, _, err := s.app.Tasks.ListByProject(s.ctx, alice, project.ID, nil)
	s.Require().NoError(err)
	s.Empty(tasks)
	pending, err := s.stores.Outbox.Pending(s.ctx, 10)
	s.Require().NoError(err)
	s.Empty(pending)
}

func (s *PostgresAppSuite) TestOutboxRelay() {
	alice := s.register("alice")
	project, _, err := s.app.Projects.Create(s.ctx, alice, projectmodels.Input{
		Name:      "Apollo",
		StartDate: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
	})
	s.Require().NoError(err)
	for _, name := range []string{"Launch", "Orbit", "Splashdown"} {
		_, _, err := s.app.Tasks.Create(s.ctx, alice, project.ID, taskmodels.Input{Name: name})
		s.Require().NoError(err)
	}

	publisher := &collectingPublisher{}
	relay := feed.NewRelay(s.stores.Outbox, publisher, s.runner, feed.WithBatchSize(2))
	n, err := relay.RelayOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, n)
	n, err = relay.RelayOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	s.Require().Len(publisher.entries, 3)
	s.Equal("Task Launch was created", publisher.entries[0].Event.Description)
	s.Equal("Task Splashdown was created", publisher.entries[2].Event.Description)
	s.Less(publisher.entries[0].Seq, publisher.entries[1].Seq)

	pending, err := s.stores.Outbox.Pending(s.ctx, 10)
	s.Require().NoError(err)
	s.Empty(pending)
}

func (s *PostgresAppSuite) TestProjectDeleteCascades() {
	alice := s.register("alice")
	bob := s.register("bob")
	project, _, err := s.app.Projects.Create(s.ctx, alice, projectmodels.Input{
		Name:      "Apollo",
		StartDate: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
	})
	s.Require().NoError(err)
	_, err = s.app.Memberships.Add(s.ctx, alice, project.ID, bob, id.RoleObserver)
	s.Require().NoError(err)
	task, _, err := s.app.Tasks.Create(s.ctx, alice, project.ID, taskmodels.Input{Name: "Launch"})
	s.Require().NoError(err)

	_, _, err = s.app.Projects.Delete(s.ctx, alice, project.ID)
	s.Require().NoError(err)

	_, _, err = s.app.Projects.Get(s.ctx, alice, project.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	_, _, err = s.app.Tasks.Get(s.ctx, alice, task.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Empty(s.history(task.ID))

	mine, _, err := s.app.Projects.ListMine(s.ctx, bob)
	s.Require().NoError(err)
	s.Empty(mine)
}

func (s *PostgresAppSuite) TestConcurrentUpdatesOfOneTaskSerialize() {
	alice := s.register("alice")
	project, _, err := s.app.Projects.Create(s.ctx, alice, projectmodels.Input{
		Name:      "Apollo",
		StartDate: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
	})
	s.Require().NoError(err)
	task, _, err := s.app.Tasks.Create(s.ctx, alice, project.ID, taskmodels.Input{Name: "Launch", Priority: 1})
	s.Require().NoError(err)

	name, two, three := "Liftoff", 2, 3
	patches := []taskmodels.Patch{
		{Name: &name, Priority: &two},
		{Priority: &three},
	}
	start := make(chan struct{})
	errs := make([]error, len(patches))
	var wg sync.WaitGroup
	for i, patch := range patches {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, _, errs[i] = s.app.Tasks.Update(s.ctx, alice, task.ID, patch)
		}()
	}
	close(start)
	wg.Wait()
	for _, err := range errs {
		s.Require().NoError(err)
	}

	got, _, err := s.app.Tasks.Get(s.ctx, alice, task.ID)
	s.Require().NoError(err)
	s.Equal("Liftoff", got.Name)

	var priorities []string
	for _, line := range s.history(task.ID) {
		if strings.HasPrefix(line, "Priority changed") {
			priorities = append(priorities, line)
		}
	}
	s.Require().Len(priorities, 2)
	// whichever of 2 and 3 committed first
	middle := 5 - got.Priority
	s.Equal(fmt.Sprintf("Priority changed from 1 to %d", middle), priorities[0])
	s.Equal(fmt.Sprintf("Priority changed from %d to %d", middle, got.Priority), priorities[1])
}
