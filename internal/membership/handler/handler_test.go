package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"trellis/internal/membership/handler/mocks"
	"trellis/internal/membership/models"
	id "trellis/pkg/domain"
	dErrors "trellis/pkg/domain-errors"
	"trellis/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service
type MembershipHandlerSuite struct {
	suite.Suite
	svc    *mocks.MockService
	router chi.Router
	caller id.UserID
}

func TestMembershipHandlerSuite(t *testing.T) {
	suite.Run(t, new(MembershipHandlerSuite))
}

func (s *MembershipHandlerSuite) SetupTest() {
	s.svc = mocks.NewMockService(gomock.NewController(s.T()))
	s.caller = id.UserID(uuid.New())
	s.router = chi.NewRouter()
	New(s.svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)
}

func (s *MembershipHandlerSuite) TestAdd() {
	projectID := id.ProjectID(uuid.New())
	userID := id.UserID(uuid.New())

	s.Run("parses role case-insensitively", func() {
		s.svc.EXPECT().Add(gomock.Any(), s.caller, projectID, userID, id.RoleMember).
			Return(&models.Membership{ID: id.MembershipID(uuid.New()), ProjectID: projectID, UserID: userID, Role: id.RoleMember, CreatedAt: time.Now()}, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/projects/"+projectID.String()+"/members",
			map[string]string{"user_id": userID.String(), "role": "MEMBER"})
		rr := testutil.DoRequest(s.router, testutil.WithCaller(req, s.caller))
		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		testutil.AssertJSONContains(s.T(), rr, "role", "member")
	})

	s.Run("unknown role is a validation error", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/projects/"+projectID.String()+"/members",
			map[string]string{"user_id": userID.String(), "role": "owner"})
		rr := testutil.DoRequest(s.router, testutil.WithCaller(req, s.caller))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("duplicate maps to 409", func() {
		s.svc.EXPECT().Add(gomock.Any(), s.caller, projectID, userID, id.RoleObserver).
			Return(nil, dErrors.New(dErrors.CodeDuplicateMembership, "user is already a member of this project"))

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/projects/"+projectID.String()+"/members",
			map[string]string{"user_id": userID.String(), "role": "observer"})
		rr := testutil.DoRequest(s.router, testutil.WithCaller(req, s.caller))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "duplicate_membership")
	})

	s.Run("anonymous caller is rejected", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/projects/"+projectID.String()+"/members",
			map[string]string{"user_id": userID.String(), "role": "observer"})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
	})
}

func (s *MembershipHandlerSuite) TestChangeRoleAndRemove() {
	membershipID := id.MembershipID(uuid.New())
	m := &models.Membership{ID: membershipID, ProjectID: id.ProjectID(uuid.New()), UserID: id.UserID(uuid.New()), Role: id.RoleAdmin}

	s.svc.EXPECT().ChangeRole(gomock.Any(), s.caller, membershipID, id.RoleAdmin).Return(m, nil)
	req := testutil.NewJSONRequest(s.T(), http.MethodPatch, "/members/"+membershipID.String(), map[string]string{"role": "admin"})
	rr := testutil.DoRequest(s.router, testutil.WithCaller(req, s.caller))
	testutil.AssertStatusOK(s.T(), rr)

	s.svc.EXPECT().Remove(gomock.Any(), s.caller, membershipID).
		Return(nil, dErrors.New(dErrors.CodeForbidden, "insufficient role for this operation"))
	req = testutil.NewRequest(s.T(), http.MethodDelete, "/members/"+membershipID.String())
	rr = testutil.DoRequest(s.router, testutil.WithCaller(req, s.caller))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")

	req = testutil.NewRequest(s.T(), http.MethodDelete, "/members/not-a-uuid")
	rr = testutil.DoRequest(s.router, testutil.WithCaller(req, s.caller))
	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
}

func (s *MembershipHandlerSuite) TestListRoles() {
	req := testutil.WithCaller(testutil.NewRequest(s.T(), http.MethodGet, "/roles"), s.caller)
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatusOK(s.T(), rr)
	got := testutil.UnmarshalResponse[[]models.RoleResponse](s.T(), rr)
	s.Equal([]models.RoleResponse{
		{Name: "observer", Rank: 1},
		{Name: "member", Rank: 2},
		{Name: "admin", Rank: 3},
	}, *got)
}
