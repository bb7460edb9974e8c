// Package view composes the read models the API returns. Renderer loads the
// pieces a view needs; the To* functions project single entities.
package view

import (
	"time"

	"trellis/internal/audit"
	membershipmodels "trellis/internal/membership/models"
	"trellis/internal/policy"
	projectmodels "trellis/internal/project/models"
	taskmodels "trellis/internal/task/models"
	id "trellis/pkg/domain"
	"trellis/pkg/platform/httputil"
)

type StatusRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type UserRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// MemberView is a membership with its user resolved.
type MemberView struct {
	ID   string  `json:"id"`
	User UserRef `json:"user"`
	Role string  `json:"role"`
}

// Permissions tells a client which actions the caller's role unlocks.
type Permissions struct {
	DeleteProject bool `json:"delete_project"`
	AddMember     bool `json:"add_member"`
	DeleteMember  bool `json:"delete_member"`
	AssignTask    bool `json:"assign_task"`
	AddTask       bool `json:"add_task"`
	DeleteTask    bool `json:"delete_task"`
	AssignMember  bool `json:"assign_member"`
}

func PermissionsFor(role id.Role) Permissions {
	admin := policy.AdminOnly.Allows(role)
	return Permissions{
		DeleteProject: admin,
		AddMember:     admin,
		DeleteMember:  admin,
		AssignTask:    admin,
		AddTask:       admin,
		DeleteTask:    policy.AdminOrMember.Allows(role),
		AssignMember:  admin,
	}
}

type ProjectRef struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	StartDate   string    `json:"start_date"`
	EndDate     *string   `json:"end_date"`
	Status      StatusRef `json:"status"`
}

type TaskSummary struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	DueDate     *string     `json:"due_date"`
	Priority    int         `json:"priority"`
	Status      StatusRef   `json:"status"`
	Assignee    *MemberView `json:"assignee"`
}

// ProjectView is the full project page: members, tasks and what the caller may do.
type ProjectView struct {
	ProjectRef
	Members     []MemberView  `json:"members"`
	Tasks       []TaskSummary `json:"tasks"`
	MyRole      string        `json:"my_role"`
	Permissions Permissions   `json:"permissions"`
}

type ProjectSummary struct {
	ProjectRef
	MemberCount int         `json:"member_count"`
	MyRole      string      `json:"my_role"`
	Permissions Permissions `json:"permissions"`
}

// TaskView is a task with its project, assignee and history.
type TaskView struct {
	TaskSummary
	Project     ProjectRef            `json:"project"`
	History     []audit.EventResponse `json:"history"`
	MyRole      string                `json:"my_role"`
	Permissions Permissions           `json:"permissions"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// TaskResponse is the plain form of a task returned by mutations.
type TaskResponse struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	DueDate     *string   `json:"due_date"`
	Priority    int       `json:"priority"`
	StatusID    string    `json:"status_id"`
	AssigneeID  *string   `json:"assignee_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	MyRole      string    `json:"my_role,omitempty"`
}

func ToTaskResponse(t *taskmodels.Task, role id.Role) TaskResponse {
	resp := TaskResponse{
		ID:          t.ID.String(),
		ProjectID:   t.ProjectID.String(),
		Name:        t.Name,
		Description: t.Description,
		DueDate:     httputil.FormatDate(t.DueDate),
		Priority:    t.Priority,
		StatusID:    t.StatusID.String(),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		MyRole:      role.String(),
	}
	if t.AssigneeID != nil {
		s := t.AssigneeID.String()
		resp.AssigneeID = &s
	}
	return resp
}

// ProjectResponse is the plain form of a project returned by mutations.
type ProjectResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	StartDate   string    `json:"start_date"`
	EndDate     *string   `json:"end_date"`
	StatusID    string    `json:"status_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	MyRole      string    `json:"my_role,omitempty"`
}

func ToProjectResponse(p *projectmodels.Project, role id.Role) ProjectResponse {
	return ProjectResponse{
		ID:          p.ID.String(),
		Name:        p.Name,
		Description: p.Description,
		StartDate:   p.StartDate.Format(httputil.DateLayout),
		EndDate:     httputil.FormatDate(p.EndDate),
		StatusID:    p.StatusID.String(),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		MyRole:      role.String(),
	}
}

func toProjectRef(p *projectmodels.Project, status StatusRef) ProjectRef {
	return ProjectRef{
		ID:          p.ID.String(),
		Name:        p.Name,
		Description: p.Description,
		StartDate:   p.StartDate.Format(httputil.DateLayout),
		EndDate:     httputil.FormatDate(p.EndDate),
		Status:      status,
	}
}

func toTaskSummary(t *taskmodels.Task, status StatusRef, assignee *MemberView) TaskSummary {
	return TaskSummary{
		ID:          t.ID.String(),
		Name:        t.Name,
		Description: t.Description,
		DueDate:     httputil.FormatDate(t.DueDate),
		Priority:    t.Priority,
		Status:      status,
		Assignee:    assignee,
	}
}

func toMemberView(m membershipmodels.Membership, user UserRef) MemberView {
	return MemberView{
		ID:   m.ID.String(),
		User: user,
		Role: m.Role.String(),
	}
}

func toEventResponses(events []audit.Event) []audit.EventResponse {
	out := make([]audit.EventResponse, len(events))
	for i, e := range events {
		out[i] = audit.ToEventResponse(e)
	}
	return out
}
