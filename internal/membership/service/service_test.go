package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"trellis/internal/membership/metrics"
	membershipstore "trellis/internal/membership/store/membership"
	"trellis/internal/policy"
	id "trellis/pkg/domain"
	dErrors "trellis/pkg/domain-errors"
	"trellis/pkg/platform/tx"
)

type projectSet map[id.ProjectID]bool

func (p projectSet) Exists(_ context.Context, projectID id.ProjectID) (bool, error) {
	return p[projectID], nil
}

type userSet map[id.UserID]bool

func (u userSet) Exists(_ context.Context, userID id.UserID) (bool, error) {
	return u[userID], nil
}

type recordingUnassigner struct {
	calls []id.MembershipID
	err   error
}

func (r *recordingUnassigner) UnassignMembership(_ context.Context, membershipID id.MembershipID) (int, error) {
	r.calls = append(r.calls, membershipID)
	if r.err != nil {
		return 0, r.err
	}
	return 3, nil
}

type MembershipServiceSuite struct {
	suite.Suite
	ctx        context.Context
	store      *membershipstore.InMemory
	unassigner *recordingUnassigner
	metrics    *metrics.Metrics
	svc        *Service

	project id.ProjectID
	alice   id.UserID
	bob     id.UserID
	carol   id.UserID
}

func TestMembershipServiceSuite(t *testing.T) {
	suite.Run(t, new(MembershipServiceSuite))
}

func (s *MembershipServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.project = id.ProjectID(uuid.New())
	s.alice = id.UserID(uuid.New())
	s.bob = id.UserID(uuid.New())
	s.carol = id.UserID(uuid.New())

	s.store = membershipstore.NewInMemory()
	s.unassigner = &recordingUnassigner{}
	s.metrics = metrics.NewWith(prometheus.NewRegistry())
	dir := NewDirectory(s.store)
	gate := policy.NewGate(projectSet{s.project: true}, dir)
	runner := tx.NewMemoryRunner(s.store)
	s.svc = New(dir, s.store, runner, gate, userSet{s.alice: true, s.bob: true, s.carol: true},
		WithTaskUnassigner(s.unassigner),
		WithMetrics(s.metrics),
	)

	_, err := s.svc.Grant(s.ctx, s.project, s.alice, id.RoleAdmin)
	s.Require().NoError(err)
}

func (s *MembershipServiceSuite) TestAdd() {
	s.Run("admin adds a member", func() {
		m, err := s.svc.Add(s.ctx, s.alice, s.project, s.bob, id.RoleMember)
		s.Require().NoError(err)
		s.Equal(id.RoleMember, m.Role)

		role, found, err := s.svc.RoleOf(s.ctx, s.project, s.bob)
		s.Require().NoError(err)
		s.True(found)
		s.Equal(id.RoleMember, role)
	})

	s.Run("same pair again is a duplicate and leaves one membership", func() {
		_, err := s.svc.Add(s.ctx, s.alice, s.project, s.bob, id.RoleObserver)
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicateMembership))

		members, err := s.svc.MembersOf(s.ctx, s.project)
		s.Require().NoError(err)
		s.Len(members, 2)
	})

	s.Run("non-admin cannot add", func() {
		_, err := s.svc.Add(s.ctx, s.bob, s.project, s.carol, id.RoleObserver)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown user is not found", func() {
		_, err := s.svc.Add(s.ctx, s.alice, s.project, id.UserID(uuid.New()), id.RoleObserver)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("unknown project is not found", func() {
		_, err := s.svc.Add(s.ctx, s.alice, id.ProjectID(uuid.New()), s.carol, id.RoleObserver)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Equal(1.0, testutil.ToFloat64(s.metrics.Mutations.WithLabelValues("add")))
}

func (s *MembershipServiceSuite) TestRoleOfNonMember() {
	_, found, err := s.svc.RoleOf(s.ctx, s.project, s.carol)
	s.Require().NoError(err)
	s.False(found)
}

func (s *MembershipServiceSuite) TestChangeRole() {
	m, err := s.svc.Add(s.ctx, s.alice, s.project, s.bob, id.RoleObserver)
	s.Require().NoError(err)

	updated, err := s.svc.ChangeRole(s.ctx, s.alice, m.ID, id.RoleMember)
	s.Require().NoError(err)
	s.Equal(id.RoleMember, updated.Role)

	again, err := s.svc.ChangeRole(s.ctx, s.alice, m.ID, id.RoleMember)
	s.Require().NoError(err)
	s.Equal(id.RoleMember, again.Role)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Mutations.WithLabelValues("change_role")))

	_, err = s.svc.ChangeRole(s.ctx, s.alice, id.MembershipID(uuid.New()), id.RoleAdmin)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.svc.ChangeRole(s.ctx, s.bob, m.ID, id.RoleAdmin)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *MembershipServiceSuite) TestRemove() {
	s.Run("cascades to the task unassigner", func() {
		m, err := s.svc.Add(s.ctx, s.alice, s.project, s.bob, id.RoleMember)
		s.Require().NoError(err)

		removed, err := s.svc.Remove(s.ctx, s.alice, m.ID)
		s.Require().NoError(err)
		s.Equal(m.ID, removed.ID)
		s.Equal([]id.MembershipID{m.ID}, s.unassigner.calls)
		s.Equal(3.0, testutil.ToFloat64(s.metrics.CascadeUnassigned))

		_, found, err := s.svc.RoleOf(s.ctx, s.project, s.bob)
		s.Require().NoError(err)
		s.False(found)
	})

	s.Run("cascade failure keeps the membership", func() {
		m, err := s.svc.Add(s.ctx, s.alice, s.project, s.carol, id.RoleMember)
		s.Require().NoError(err)
		s.unassigner.err = errors.New("boom")

		_, err = s.svc.Remove(s.ctx, s.alice, m.ID)
		s.Require().Error(err)

		_, found, err := s.svc.RoleOf(s.ctx, s.project, s.carol)
		s.Require().NoError(err)
		s.True(found)
	})
}

func (s *MembershipServiceSuite) TestDeleteAllOf() {
	_, err := s.svc.Add(s.ctx, s.alice, s.project, s.bob, id.RoleMember)
	s.Require().NoError(err)

	n, err := s.svc.DeleteAllOf(s.ctx, s.project)
	s.Require().NoError(err)
	s.Equal(2, n)

	list, err := s.svc.MembershipsOf(s.ctx, s.alice)
	s.Require().NoError(err)
	s.Empty(list)
}
