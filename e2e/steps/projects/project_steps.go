package projects

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Request(method, path, token string, body any) error
	Decode(v any) error
	ResponseField(field string) (any, error)
	Expect(status int) error
	Username(name string) string
	Remember(kind, name, value string)
	Lookup(kind, name string) (string, error)
}

// RegisterSteps registers project, membership and task step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &projectSteps{tc: tc}

	// Projects
	ctx.Step(`^"([^"]*)" creates project "([^"]*)"$`, steps.createProject)
	ctx.Step(`^"([^"]*)" views project "([^"]*)"$`, steps.viewProject)
	ctx.Step(`^"([^"]*)" deletes project "([^"]*)"$`, steps.deleteProject)
	ctx.Step(`^"([^"]*)" lists their projects$`, steps.listProjects)
	ctx.Step(`^the project should have (\d+) members and (\d+) tasks?$`, steps.projectShouldHave)
	ctx.Step(`^the project list should be empty$`, steps.projectListEmpty)

	// Memberships
	ctx.Step(`^"([^"]*)" adds "([^"]*)" to "([^"]*)" as (admin|member|observer)$`, steps.addMember)
	ctx.Step(`^"([^"]*)" tries to add "([^"]*)" to "([^"]*)" as (admin|member|observer)$`, steps.tryAddMember)
	ctx.Step(`^"([^"]*)" removes "([^"]*)" from "([^"]*)"$`, steps.removeMember)

	// Tasks
	ctx.Step(`^"([^"]*)" creates task "([^"]*)" in "([^"]*)"$`, steps.createTask)
	ctx.Step(`^"([^"]*)" creates task "([^"]*)" in "([^"]*)" assigned to "([^"]*)"$`, steps.createAssignedTask)
	ctx.Step(`^"([^"]*)" moves task "([^"]*)" to "([^"]*)"$`, steps.moveTask)
	ctx.Step(`^"([^"]*)" renames task "([^"]*)" to "([^"]*)"$`, steps.renameTask)
	ctx.Step(`^"([^"]*)" deletes task "([^"]*)"$`, steps.deleteTask)
	ctx.Step(`^"([^"]*)" views task "([^"]*)"$`, steps.viewTask)
	ctx.Step(`^the task history should be:$`, steps.historyShouldBe)
	ctx.Step(`^the task should be unassigned$`, steps.taskUnassigned)
}

type projectSteps struct {
	tc TestContext
}

type ref struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (s *projectSteps) token(user string) (string, error) {
	return s.tc.Lookup("token", user)
}

func (s *projectSteps) call(user, method, path string, body any) error {
	token, err := s.token(user)
	if err != nil {
		return err
	}
	return s.tc.Request(method, path, token, body)
}

func (s *projectSteps) rememberID(kind, name string) error {
	v, err := s.tc.ResponseField("id")
	if err != nil {
		return err
	}
	s.tc.Remember(kind, name, fmt.Sprint(v))
	return nil
}

func (s *projectSteps) createProject(_ context.Context, user, name string) error {
	if err := s.call(user, http.MethodPost, "/projects", map[string]string{
		"name":       name,
		"start_date": "2026-01-05",
	}); err != nil {
		return err
	}
	if err := s.tc.Expect(http.StatusCreated); err != nil {
		return err
	}
	return s.rememberID("project", name)
}

func (s *projectSteps) viewProject(_ context.Context, user, project string) error {
	projectID, err := s.tc.Lookup("project", project)
	if err != nil {
		return err
	}
	return s.call(user, http.MethodGet, "/projects/"+projectID, nil)
}

func (s *projectSteps) deleteProject(_ context.Context, user, project string) error {
	projectID, err := s.tc.Lookup("project", project)
	if err != nil {
		return err
	}
	return s.call(user, http.MethodDelete, "/projects/"+projectID, nil)
}

func (s *projectSteps) listProjects(_ context.Context, user string) error {
	return s.call(user, http.MethodGet, "/projects", nil)
}

func (s *projectSteps) projectShouldHave(_ context.Context, members, tasks int) error {
	var body struct {
		Members []ref `json:"members"`
		Tasks   []ref `json:"tasks"`
	}
	if err := s.tc.Decode(&body); err != nil {
		return err
	}
	if len(body.Members) != members || len(body.Tasks) != tasks {
		return fmt.Errorf("expected %d members and %d tasks, got %d and %d", members, tasks, len(body.Members), len(body.Tasks))
	}
	return nil
}

func (s *projectSteps) projectListEmpty(context.Context) error {
	var body struct {
		Projects []ref `json:"projects"`
	}
	if err := s.tc.Decode(&body); err != nil {
		return err
	}
	if len(body.Projects) != 0 {
		return fmt.Errorf("expected no projects, got %d", len(body.Projects))
	}
	return nil
}

func (s *projectSteps) tryAddMember(_ context.Context, admin, user, project, role string) error {
	projectID, err := s.tc.Lookup("project", project)
	if err != nil {
		return err
	}
	// resolve the id through the directory, as a client would
	if err := s.call(admin, http.MethodGet, "/users/"+s.tc.Username(user), nil); err != nil {
		return err
	}
	if err := s.tc.Expect(http.StatusOK); err != nil {
		return err
	}
	userID, err := s.tc.ResponseField("id")
	if err != nil {
		return err
	}
	return s.call(admin, http.MethodPost, "/projects/"+projectID+"/members", map[string]string{
		"user_id": fmt.Sprint(userID),
		"role":    role,
	})
}

func (s *projectSteps) addMember(ctx context.Context, admin, user, project, role string) error {
	if err := s.tryAddMember(ctx, admin, user, project, role); err != nil {
		return err
	}
	if err := s.tc.Expect(http.StatusCreated); err != nil {
		return err
	}
	return s.rememberID("membership", project+"/"+user)
}

func (s *projectSteps) removeMember(_ context.Context, admin, user, project string) error {
	membershipID, err := s.tc.Lookup("membership", project+"/"+user)
	if err != nil {
		return err
	}
	if err := s.call(admin, http.MethodDelete, "/members/"+membershipID, nil); err != nil {
		return err
	}
	return s.tc.Expect(http.StatusOK)
}

func (s *projectSteps) createTask(_ context.Context, user, task, project string) error {
	return s.postTask(user, task, project, nil)
}

func (s *projectSteps) createAssignedTask(_ context.Context, user, task, project, assignee string) error {
	membershipID, err := s.tc.Lookup("membership", project+"/"+assignee)
	if err != nil {
		return err
	}
	return s.postTask(user, task, project, &membershipID)
}

func (s *projectSteps) postTask(user, task, project string, assignee *string) error {
	projectID, err := s.tc.Lookup("project", project)
	if err != nil {
		return err
	}
	body := map[string]any{"name": task}
	if assignee != nil {
		body["assignee_id"] = *assignee
	}
	if err := s.call(user, http.MethodPost, "/projects/"+projectID+"/tasks", body); err != nil {
		return err
	}
	if err := s.tc.Expect(http.StatusCreated); err != nil {
		return err
	}
	return s.rememberID("task", task)
}

func (s *projectSteps) statusID(user, name string) (string, error) {
	if err := s.call(user, http.MethodGet, "/statuses", nil); err != nil {
		return "", err
	}
	var body struct {
		Statuses []ref `json:"statuses"`
	}
	if err := s.tc.Decode(&body); err != nil {
		return "", err
	}
	for _, st := range body.Statuses {
		if st.Name == name {
			return st.ID, nil
		}
	}
	return "", fmt.Errorf("status %q is not in the catalog", name)
}

func (s *projectSteps) moveTask(_ context.Context, user, task, status string) error {
	taskID, err := s.tc.Lookup("task", task)
	if err != nil {
		return err
	}
	statusID, err := s.statusID(user, status)
	if err != nil {
		return err
	}
	if err := s.call(user, http.MethodPut, "/tasks/"+taskID+"/status", map[string]string{"status_id": statusID}); err != nil {
		return err
	}
	return s.tc.Expect(http.StatusOK)
}

func (s *projectSteps) renameTask(_ context.Context, user, task, name string) error {
	taskID, err := s.tc.Lookup("task", task)
	if err != nil {
		return err
	}
	return s.call(user, http.MethodPatch, "/tasks/"+taskID, map[string]string{"name": name})
}

func (s *projectSteps) deleteTask(_ context.Context, user, task string) error {
	taskID, err := s.tc.Lookup("task", task)
	if err != nil {
		return err
	}
	return s.call(user, http.MethodDelete, "/tasks/"+taskID, nil)
}

func (s *projectSteps) viewTask(_ context.Context, user, task string) error {
	taskID, err := s.tc.Lookup("task", task)
	if err != nil {
		return err
	}
	return s.call(user, http.MethodGet, "/tasks/"+taskID, nil)
}

var placeholder = regexp.MustCompile(`\{(\w+)\}`)

// historyShouldBe compares the last task view's history with the table.
// {name} in a row expands to that user's scenario username.
func (s *projectSteps) historyShouldBe(_ context.Context, table *godog.Table) error {
	var body struct {
		History []struct {
			Description string `json:"description"`
		} `json:"history"`
	}
	if err := s.tc.Decode(&body); err != nil {
		return err
	}
	var want []string
	for i, row := range table.Rows {
		if i == 0 {
			continue
		}
		line := placeholder.ReplaceAllStringFunc(row.Cells[0].Value, func(m string) string {
			return s.tc.Username(strings.Trim(m, "{}"))
		})
		want = append(want, line)
	}
	got := make([]string, len(body.History))
	for i, e := range body.History {
		got[i] = e.Description
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		return fmt.Errorf("history mismatch\nwant:\n  %s\ngot:\n  %s", strings.Join(want, "\n  "), strings.Join(got, "\n  "))
	}
	return nil
}

func (s *projectSteps) taskUnassigned(context.Context) error {
	v, err := s.tc.ResponseField("assignee")
	if err == nil && v != nil {
		return fmt.Errorf("expected no assignee, got %v", v)
	}
	return nil
}
