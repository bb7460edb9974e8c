package view_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"trellis/internal/app/apptest"
	membershipmodels "trellis/internal/membership/models"
	projectmodels "trellis/internal/project/models"
	"trellis/internal/view"
	"trellis/internal/view/metrics"
	id "trellis/pkg/domain"
)

type RendererSuite struct {
	suite.Suite
	ctx      context.Context
	f        *apptest.Fixture
	metrics  *metrics.Metrics
	renderer *view.Renderer

	admin     id.UserID
	member    id.UserID
	project   id.ProjectID
	memberMID id.MembershipID
}

func TestRendererSuite(t *testing.T) {
	suite.Run(t, new(RendererSuite))
}

func (s *RendererSuite) SetupTest() {
	s.ctx = context.Background()
	s.f = apptest.New(s.T())
	s.metrics = metrics.NewWith(prometheus.NewRegistry())
	s.renderer = view.NewRenderer(s.f.Runner, s.f.Statuses, s.f.Identity, s.f.Directory, s.f.Tasks, s.f.Stores.Projects, s.f.History,
		view.WithMetrics(s.metrics),
	)

	s.admin = s.f.User(s.T(), "alice")
	s.member = s.f.User(s.T(), "bob")
	s.project = s.f.Project(s.T(), s.admin, "Apollo")
	s.memberMID = s.f.Member(s.T(), s.admin, s.project, s.member, id.RoleMember)
}

func (s *RendererSuite) loadProject() *projectmodels.Project {
	p, err := s.f.Stores.Projects.FindByID(s.ctx, s.project)
	s.Require().NoError(err)
	return p
}

func (s *RendererSuite) dropped(kind, reason string) float64 {
	return testutil.ToFloat64(s.metrics.Dropped.WithLabelValues(kind, reason))
}

// orphanStatus moves the task to a fresh status and deletes that status
// behind the catalog's back.
func (s *RendererSuite) orphanStatus(taskID id.TaskID) id.StatusID {
	st, err := s.f.Statuses.Create(s.ctx, "Blocked")
	s.Require().NoError(err)
	_, _, err = s.f.Tasks.ChangeStatus(s.ctx, s.admin, taskID, st.ID)
	s.Require().NoError(err)
	s.Require().NoError(s.f.Stores.Statuses.Delete(s.ctx, st.ID))
	return st.ID
}

func (s *RendererSuite) TestProjectView() {
	s.f.Task(s.T(), s.admin, s.project, "Launch", &s.memberMID)

	v, err := s.renderer.Project(s.ctx, s.loadProject(), id.RoleMember)
	s.Require().NoError(err)

	s.Equal("Apollo", v.Name)
	s.Equal("To Do", v.Status.Name)
	s.Equal("2026-01-05", v.StartDate)
	s.Nil(v.EndDate)
	s.Equal("member", v.MyRole)
	s.False(v.Permissions.AddTask)
	s.True(v.Permissions.DeleteTask)

	s.Require().Len(v.Members, 2)
	s.Equal("alice", v.Members[0].User.Username)
	s.Equal("admin", v.Members[0].Role)
	s.Equal("bob", v.Members[1].User.Username)

	s.Require().Len(v.Tasks, 1)
	s.Equal("Launch", v.Tasks[0].Name)
	s.Equal("To Do", v.Tasks[0].Status.Name)
	s.Require().NotNil(v.Tasks[0].Assignee)
	s.Equal("bob", v.Tasks[0].Assignee.User.Username)
}

func (s *RendererSuite) TestUnresolvedStatusDropsListItemsOnly() {
	keep := s.f.Task(s.T(), s.admin, s.project, "Visible", nil)
	orphan := s.f.Task(s.T(), s.admin, s.project, "Orphaned", nil)
	statusID := s.orphanStatus(orphan.ID)

	v, err := s.renderer.Project(s.ctx, s.loadProject(), id.RoleAdmin)
	s.Require().NoError(err)
	s.Require().Len(v.Tasks, 1)
	s.Equal(keep.ID.String(), v.Tasks[0].ID)

	tasks, err := s.f.Tasks.TasksOf(s.ctx, s.project)
	s.Require().NoError(err)
	list, err := s.renderer.Tasks(s.ctx, s.project, tasks)
	s.Require().NoError(err)
	s.Len(list, 1)
	s.Equal(2.0, s.dropped("task", "status_missing"))

	t, _, err := s.f.Tasks.Get(s.ctx, s.admin, orphan.ID)
	s.Require().NoError(err)
	tv, err := s.renderer.Task(s.ctx, t, id.RoleAdmin)
	s.Require().NoError(err)
	s.Equal(view.StatusRef{ID: statusID.String()}, tv.Status)
	s.Equal("Apollo", tv.Project.Name)
	s.Len(tv.History, 2)
}

func (s *RendererSuite) TestMissingUserDropsMember() {
	ghost := id.UserID(uuid.New())
	m, err := membershipmodels.NewMembership(id.MembershipID(uuid.New()), s.project, ghost, id.RoleMember, time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.f.Stores.Memberships.Create(s.ctx, m))
	s.f.Task(s.T(), s.admin, s.project, "Haunted", &m.ID)

	v, err := s.renderer.Project(s.ctx, s.loadProject(), id.RoleAdmin)
	s.Require().NoError(err)
	s.Len(v.Members, 2)
	s.Require().Len(v.Tasks, 1)
	s.Equal(&view.MemberView{ID: m.ID.String()}, v.Tasks[0].Assignee)
	s.Equal(1.0, s.dropped("member", "user_missing"))

	members, err := s.f.Directory.MembersOf(s.ctx, s.project)
	s.Require().NoError(err)
	views, err := s.renderer.Members(s.ctx, members)
	s.Require().NoError(err)
	s.Len(views, 2)
}

func (s *RendererSuite) TestProjectSummaries() {
	second := s.f.Project(s.T(), s.admin, "Gemini")

	projects, roles, err := s.f.Projects.ListMine(s.ctx, s.admin)
	s.Require().NoError(err)
	summaries, err := s.renderer.Projects(s.ctx, projects, roles)
	s.Require().NoError(err)
	s.Require().Len(summaries, 2)
	s.Equal(2, summaries[0].MemberCount)
	s.Equal(1, summaries[1].MemberCount)
	s.True(summaries[0].Permissions.DeleteProject)

	st, err := s.f.Statuses.Create(s.ctx, "Archived")
	s.Require().NoError(err)
	_, _, err = s.f.Projects.ChangeStatus(s.ctx, s.admin, second, st.ID)
	s.Require().NoError(err)
	s.Require().NoError(s.f.Stores.Statuses.Delete(s.ctx, st.ID))

	projects, roles, err = s.f.Projects.ListMine(s.ctx, s.admin)
	s.Require().NoError(err)
	summaries, err = s.renderer.Projects(s.ctx, projects, roles)
	s.Require().NoError(err)
	s.Require().Len(summaries, 1)
	s.Equal(s.project.String(), summaries[0].ID)
	s.Equal(1.0, s.dropped("project", "status_missing"))

	p, _, err := s.f.Projects.Get(s.ctx, s.admin, second)
	s.Require().NoError(err)
	v, err := s.renderer.Project(s.ctx, p, id.RoleAdmin)
	s.Require().NoError(err)
	s.Equal("", v.Status.Name)
}

func TestPermissionsFor(t *testing.T) {
	admin := view.PermissionsFor(id.RoleAdmin)
	assert.Equal(t, view.Permissions{
		DeleteProject: true,
		AddMember:     true,
		DeleteMember:  true,
		AssignTask:    true,
		AddTask:       true,
		DeleteTask:    true,
		AssignMember:  true,
	}, admin)

	assert.Equal(t, view.Permissions{DeleteTask: true}, view.PermissionsFor(id.RoleMember))
	assert.Equal(t, view.Permissions{}, view.PermissionsFor(id.RoleObserver))
}
