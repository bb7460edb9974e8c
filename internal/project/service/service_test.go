package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"trellis/internal/app/apptest"
	"trellis/internal/project/models"
	taskmodels "trellis/internal/task/models"
	id "trellis/pkg/domain"
	dErrors "trellis/pkg/domain-errors"
)

type ProjectServiceSuite struct {
	suite.Suite
	ctx context.Context
	f   *apptest.Fixture

	admin    id.UserID
	member   id.UserID
	stranger id.UserID
}

func TestProjectServiceSuite(t *testing.T) {
	suite.Run(t, new(ProjectServiceSuite))
}

func (s *ProjectServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.f = apptest.New(s.T())
	s.admin = s.f.User(s.T(), "alice")
	s.member = s.f.User(s.T(), "bob")
	s.stranger = s.f.User(s.T(), "mallory")
}

func day(d int) time.Time {
	return time.Date(2026, 2, d, 0, 0, 0, 0, time.UTC)
}

func (s *ProjectServiceSuite) TestCreate() {
	s.Run("creator becomes admin and the default status applies", func() {
		p, role, err := s.f.Projects.Create(s.ctx, s.admin, models.Input{Name: "Apollo", StartDate: day(1)})
		s.Require().NoError(err)
		s.Equal(id.RoleAdmin, role)
		s.Equal(s.f.Status(s.T(), "To Do"), p.StatusID)

		got, found, err := s.f.Directory.RoleOf(s.ctx, p.ID, s.admin)
		s.Require().NoError(err)
		s.True(found)
		s.Equal(id.RoleAdmin, got)
	})

	s.Run("end before start is rejected and nothing is granted", func() {
		end := day(1)
		_, _, err := s.f.Projects.Create(s.ctx, s.member, models.Input{Name: "Backwards", StartDate: day(2), EndDate: &end})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		memberships, err := s.f.Directory.MembershipsOf(s.ctx, s.member)
		s.Require().NoError(err)
		s.Empty(memberships)
	})

	s.Run("unknown status is not found", func() {
		unknown := id.StatusID(uuid.New())
		_, _, err := s.f.Projects.Create(s.ctx, s.admin, models.Input{
			Name:      "Nowhere",
			StartDate: day(1),
			StatusID:  &unknown,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ProjectServiceSuite) TestUpdate() {
	projectID := s.f.Project(s.T(), s.admin, "Apollo")
	s.f.Member(s.T(), s.admin, projectID, s.member, id.RoleMember)

	name := "Apollo 11"
	end := day(28)
	p, _, err := s.f.Projects.Update(s.ctx, s.admin, projectID, models.Patch{Name: &name, EndDate: &end})
	s.Require().NoError(err)
	s.Equal("Apollo 11", p.Name)
	s.Require().NotNil(p.EndDate)

	p, _, err = s.f.Projects.Update(s.ctx, s.admin, projectID, models.Patch{ClearEndDate: true})
	s.Require().NoError(err)
	s.Nil(p.EndDate)
	s.Equal("Apollo 11", p.Name)

	_, _, err = s.f.Projects.Update(s.ctx, s.member, projectID, models.Patch{Name: &name})
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	short := "ab"
	_, _, err = s.f.Projects.Update(s.ctx, s.admin, projectID, models.Patch{Name: &short})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ProjectServiceSuite) TestChangeStatus() {
	projectID := s.f.Project(s.T(), s.admin, "Apollo")
	done := s.f.Status(s.T(), "Done")

	p, _, err := s.f.Projects.ChangeStatus(s.ctx, s.admin, projectID, done)
	s.Require().NoError(err)
	s.Equal(done, p.StatusID)

	_, _, err = s.f.Projects.ChangeStatus(s.ctx, s.admin, projectID, id.StatusID(uuid.New()))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ProjectServiceSuite) TestGetAndListMine() {
	first := s.f.Project(s.T(), s.admin, "Apollo")
	second := s.f.Project(s.T(), s.member, "Gemini")
	s.f.Member(s.T(), s.member, second, s.admin, id.RoleObserver)

	p, role, err := s.f.Projects.Get(s.ctx, s.admin, second)
	s.Require().NoError(err)
	s.Equal("Gemini", p.Name)
	s.Equal(id.RoleObserver, role)

	_, _, err = s.f.Projects.Get(s.ctx, s.stranger, first)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	_, _, err = s.f.Projects.Get(s.ctx, s.admin, id.ProjectID(uuid.New()))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	projects, roles, err := s.f.Projects.ListMine(s.ctx, s.admin)
	s.Require().NoError(err)
	s.Require().Len(projects, 2)
	s.Equal(first, projects[0].ID)
	s.Equal(second, projects[1].ID)
	s.Equal(id.RoleAdmin, roles[first])
	s.Equal(id.RoleObserver, roles[second])

	none, _, err := s.f.Projects.ListMine(s.ctx, s.stranger)
	s.Require().NoError(err)
	s.Empty(none)

	members, _, err := s.f.Projects.Members(s.ctx, s.admin, second)
	s.Require().NoError(err)
	s.Len(members, 2)
}

func (s *ProjectServiceSuite) TestDeleteCascades() {
	projectID := s.f.Project(s.T(), s.admin, "Apollo")
	memberMID := s.f.Member(s.T(), s.admin, projectID, s.member, id.RoleMember)
	task := s.f.Task(s.T(), s.admin, projectID, "Launch", &memberMID)
	keep := s.f.Project(s.T(), s.admin, "Gemini")
	kept := s.f.Task(s.T(), s.admin, keep, "Orbit", nil)

	_, _, err := s.f.Projects.Delete(s.ctx, s.member, projectID)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	deleted, _, err := s.f.Projects.Delete(s.ctx, s.admin, projectID)
	s.Require().NoError(err)
	s.Equal("Apollo", deleted.Name)

	_, _, err = s.f.Projects.Get(s.ctx, s.admin, projectID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Empty(s.f.Descriptions(s.T(), task.ID))

	tasks, err := s.f.Tasks.TasksOf(s.ctx, projectID)
	s.Require().NoError(err)
	s.Empty(tasks)
	memberships, err := s.f.Directory.MembershipsOf(s.ctx, s.member)
	s.Require().NoError(err)
	s.Empty(memberships)

	s.Len(s.f.Descriptions(s.T(), kept.ID), 1)
	_, _, err = s.f.Tasks.Create(s.ctx, s.admin, keep, taskmodels.Input{Name: "Still works"})
	s.NoError(err)
}
