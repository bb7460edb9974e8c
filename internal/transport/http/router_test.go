package httptransport_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"trellis/internal/app/apptest"
	"trellis/internal/platform/metrics"
	ratelimitmw "trellis/internal/ratelimit/middleware"
	ratelimitmodels "trellis/internal/ratelimit/models"
	ratelimitsvc "trellis/internal/ratelimit/service"
	"trellis/internal/ratelimit/store/bucket"
	httptransport "trellis/internal/transport/http"
	"trellis/pkg/testutil"
)

type statusRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type memberRef struct {
	ID   string `json:"id"`
	Role string `json:"role"`
	User struct {
		Username string `json:"username"`
	} `json:"user"`
}

type taskBody struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Status   statusRef  `json:"status"`
	Assignee *memberRef `json:"assignee"`
	MyRole   string     `json:"my_role"`
	History  []struct {
		Description string `json:"description"`
	} `json:"history"`
}

type projectBody struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	StartDate   string      `json:"start_date"`
	Status      statusRef   `json:"status"`
	Members     []memberRef `json:"members"`
	Tasks       []taskBody  `json:"tasks"`
	MyRole      string      `json:"my_role"`
	Permissions struct {
		AddTask    bool `json:"add_task"`
		DeleteTask bool `json:"delete_task"`
	} `json:"permissions"`
}

type failingCheck struct{}

func (failingCheck) Health(context.Context) error { return errors.New("connection refused") }

// RouterSuite walks a project through its whole life over HTTP.
type RouterSuite struct {
	suite.Suite
	f      *apptest.Fixture
	router http.Handler
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.f = apptest.New(s.T())
	s.router = httptransport.NewRouter(s.f.App,
		httptransport.Config{AdminAPIToken: "operator-secret"},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		httptransport.WithMetrics(metrics.NewWith(s.f.Registry)),
		httptransport.WithGatherer(s.f.Registry),
	)
}

func (s *RouterSuite) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = testutil.NewJSONRequest(s.T(), method, path, body)
	} else {
		req = testutil.NewRequest(s.T(), method, path)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return testutil.DoRequest(s.router, req)
}

// signUp registers and logs in, returning the user id and bearer token.
func (s *RouterSuite) signUp(username string) (string, string) {
	email := username + "@example.com"
	rr := s.do(http.MethodPost, "/auth/register", "", map[string]string{
		"username": username,
		"email":    email,
		"password": "correct-horse-battery",
	})
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	user := testutil.UnmarshalResponse[struct {
		ID string `json:"id"`
	}](s.T(), rr)

	rr = s.do(http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": "correct-horse-battery"})
	testutil.AssertStatusOK(s.T(), rr)
	login := testutil.UnmarshalResponse[struct {
		AccessToken string `json:"access_token"`
	}](s.T(), rr)
	s.Require().NotEmpty(login.AccessToken)
	return user.ID, login.AccessToken
}

func (s *RouterSuite) statusID(token, name string) string {
	rr := s.do(http.MethodGet, "/statuses", token, nil)
	testutil.AssertStatusOK(s.T(), rr)
	body := testutil.UnmarshalResponse[struct {
		Statuses []statusRef `json:"statuses"`
	}](s.T(), rr)
	for _, st := range body.Statuses {
		if st.Name == name {
			return st.ID
		}
	}
	s.FailNow("status not found", name)
	return ""
}

func (s *RouterSuite) TestProjectLifecycle() {
	_, alice := s.signUp("alice")
	bobID, bob := s.signUp("bob")
	carolID, carol := s.signUp("carol")

	rr := s.do(http.MethodPost, "/projects", alice, map[string]string{"name": "Apollo", "start_date": "2026-01-05"})
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	projectID := testutil.UnmarshalResponse[projectBody](s.T(), rr).ID

	rr = s.do(http.MethodPost, "/projects/"+projectID+"/members", alice, map[string]string{"user_id": bobID, "role": "member"})
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	bobMID := testutil.UnmarshalResponse[struct {
		ID string `json:"id"`
	}](s.T(), rr).ID
	rr = s.do(http.MethodPost, "/projects/"+projectID+"/members", alice, map[string]string{"user_id": carolID, "role": "observer"})
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)

	rr = s.do(http.MethodPost, "/projects/"+projectID+"/tasks", alice, map[string]any{
		"name":        "Launch",
		"priority":    1,
		"assignee_id": bobMID,
	})
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	launchID := testutil.UnmarshalResponse[taskBody](s.T(), rr).ID
	rr = s.do(http.MethodPost, "/projects/"+projectID+"/tasks", alice, map[string]any{"name": "Splashdown"})
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	splashdownID := testutil.UnmarshalResponse[taskBody](s.T(), rr).ID

	s.Run("admin moves the task along", func() {
		rr := s.do(http.MethodPut, "/tasks/"+launchID+"/status", alice, map[string]string{"status_id": s.statusID(alice, "In Progress")})
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("members cannot edit but can delete", func() {
		rr := s.do(http.MethodPatch, "/tasks/"+launchID, bob, map[string]string{"name": "Abort"})
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")

		rr = s.do(http.MethodDelete, "/tasks/"+splashdownID, carol, nil)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")

		rr = s.do(http.MethodDelete, "/tasks/"+splashdownID, bob, nil)
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("observer sees the project view", func() {
		rr := s.do(http.MethodGet, "/projects/"+projectID, carol, nil)
		testutil.AssertStatusOK(s.T(), rr)
		p := testutil.UnmarshalResponse[projectBody](s.T(), rr)
		s.Equal("observer", p.MyRole)
		s.False(p.Permissions.AddTask)
		s.False(p.Permissions.DeleteTask)
		s.Equal("To Do", p.Status.Name)
		s.Len(p.Members, 3)
		s.Require().Len(p.Tasks, 1)
		s.Equal("In Progress", p.Tasks[0].Status.Name)
		s.Require().NotNil(p.Tasks[0].Assignee)
		s.Equal("bob", p.Tasks[0].Assignee.User.Username)
	})

	s.Run("removing a member unassigns their tasks", func() {
		rr := s.do(http.MethodDelete, "/members/"+bobMID, alice, nil)
		testutil.AssertStatusOK(s.T(), rr)

		rr = s.do(http.MethodGet, "/tasks/"+launchID, alice, nil)
		testutil.AssertStatusOK(s.T(), rr)
		t := testutil.UnmarshalResponse[taskBody](s.T(), rr)
		s.Nil(t.Assignee)
		descriptions := make([]string, 0, len(t.History))
		for _, e := range t.History {
			descriptions = append(descriptions, e.Description)
		}
		s.Equal([]string{
			"Task Launch was created",
			"Assigned to bob",
			"Status changed to In Progress",
			"Unassigned from bob",
		}, descriptions)

		rr = s.do(http.MethodGet, "/projects/"+projectID, bob, nil)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")
	})

	s.Run("deleting the project removes everything under it", func() {
		rr := s.do(http.MethodDelete, "/projects/"+projectID, carol, nil)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")

		rr = s.do(http.MethodDelete, "/projects/"+projectID, alice, nil)
		testutil.AssertStatusOK(s.T(), rr)

		rr = s.do(http.MethodGet, "/projects/"+projectID, alice, nil)
		testutil.AssertStatus(s.T(), rr, http.StatusNotFound)
		rr = s.do(http.MethodGet, "/tasks/"+launchID, alice, nil)
		testutil.AssertStatus(s.T(), rr, http.StatusNotFound)

		rr = s.do(http.MethodGet, "/projects", alice, nil)
		testutil.AssertStatusOK(s.T(), rr)
		list := testutil.UnmarshalResponse[struct {
			Projects []projectBody `json:"projects"`
		}](s.T(), rr)
		s.Empty(list.Projects)
	})
}

func (s *RouterSuite) TestAdminAddsMemberFoundByUsername() {
	_, alice := s.signUp("alice")
	bobID, _ := s.signUp("bob")

	rr := s.do(http.MethodGet, "/users/bob", "", nil)
	testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)

	rr = s.do(http.MethodGet, "/users/BOB", alice, nil)
	testutil.AssertStatusOK(s.T(), rr)
	found := testutil.UnmarshalResponse[struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}](s.T(), rr)
	s.Equal(bobID, found.ID)
	s.Empty(found.Email)

	rr = s.do(http.MethodGet, "/users", alice, nil)
	testutil.AssertStatusOK(s.T(), rr)
	s.Len(*testutil.UnmarshalResponse[[]map[string]any](s.T(), rr), 2)

	rr = s.do(http.MethodGet, "/roles", alice, nil)
	testutil.AssertStatusOK(s.T(), rr)
	roles := testutil.UnmarshalResponse[[]struct {
		Name string `json:"name"`
	}](s.T(), rr)
	s.Require().Len(*roles, 3)
	s.Equal("admin", (*roles)[2].Name)

	rr = s.do(http.MethodPost, "/projects", alice, map[string]string{"name": "Apollo", "start_date": "2026-01-05"})
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	projectID := testutil.UnmarshalResponse[projectBody](s.T(), rr).ID

	rr = s.do(http.MethodPost, "/projects/"+projectID+"/members", alice, map[string]string{"user_id": found.ID, "role": (*roles)[1].Name})
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	testutil.AssertJSONContains(s.T(), rr, "role", "member")
}

func (s *RouterSuite) TestAuthBoundaries() {
	rr := s.do(http.MethodGet, "/projects", "", nil)
	testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)

	rr = s.do(http.MethodGet, "/projects", "not-a-jwt", nil)
	testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)

	_, token := s.signUp("dave")
	rr = s.do(http.MethodGet, "/auth/me", token, nil)
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "username", "dave")

	rr = s.do(http.MethodPost, "/admin/statuses", token, map[string]string{"name": "Blocked"})
	testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/statuses", map[string]string{"name": "Blocked"})
	req.Header.Set("X-Admin-Token", "operator-secret")
	rr = testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	s.NotEmpty(s.statusID(token, "Blocked"))
}

func (s *RouterSuite) TestUnknownRouteIsJSON() {
	rr := s.do(http.MethodGet, "/nowhere", "", nil)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
}

func (s *RouterSuite) TestHealthAndMetrics() {
	rr := s.do(http.MethodGet, "/health", "", nil)
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "status", "ok")

	rr = s.do(http.MethodGet, "/metrics", "", nil)
	testutil.AssertStatusOK(s.T(), rr)
	s.True(strings.Contains(rr.Body.String(), "trellis_http_requests_total"))

	degraded := httptransport.NewRouter(s.f.App, httptransport.Config{},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		httptransport.WithHealthCheck("redis", failingCheck{}),
	)
	rr = testutil.DoRequest(degraded, testutil.NewRequest(s.T(), http.MethodGet, "/health"))
	testutil.AssertStatus(s.T(), rr, http.StatusServiceUnavailable)
	testutil.AssertJSONContains(s.T(), rr, "redis", "connection refused")
}

func (s *RouterSuite) TestAuthRoutesAreRateLimited() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	limiter := ratelimitsvc.New(bucket.NewInMemoryBucketStore(),
		ratelimitsvc.WithLimit(ratelimitmodels.ClassAuth, ratelimitmodels.Limit{Requests: 2, Window: time.Minute}),
	)
	s.router = httptransport.NewRouter(s.f.App, httptransport.Config{}, logger,
		httptransport.WithRateLimiter(ratelimitmw.New(limiter, logger)),
	)

	login := map[string]string{"email": "nobody@example.com", "password": "wrong-password"}
	for range 2 {
		rr := s.do(http.MethodPost, "/auth/login", "", login)
		testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
	}
	rr := s.do(http.MethodPost, "/auth/login", "", login)
	testutil.AssertStatus(s.T(), rr, http.StatusTooManyRequests)
	s.NotEmpty(rr.Header().Get("Retry-After"))
	testutil.AssertJSONContains(s.T(), rr, "error", "rate_limit_exceeded")

	rr = s.do(http.MethodGet, "/health", "", nil)
	testutil.AssertStatusOK(s.T(), rr)
}
