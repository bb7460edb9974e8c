package view

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"trellis/internal/audit"
	identitymodels "trellis/internal/identity/models"
	membershipmodels "trellis/internal/membership/models"
	projectmodels "trellis/internal/project/models"
	statusmodels "trellis/internal/status/models"
	taskmodels "trellis/internal/task/models"
	"trellis/internal/view/metrics"
	id "trellis/pkg/domain"
	dErrors "trellis/pkg/domain-errors"
	"trellis/pkg/platform/sentinel"
	"trellis/pkg/platform/tx"
	"trellis/pkg/requestcontext"
)

// summaryConcurrency bounds the member-count lookups of a project list.
const summaryConcurrency = 8

const (
	reasonStatusMissing = "status_missing"
	reasonUserMissing   = "user_missing"
)

type StatusLookup interface {
	Lookup(ctx context.Context, ids []id.StatusID) (map[id.StatusID]statusmodels.Status, error)
}

type UserLookup interface {
	Lookup(ctx context.Context, ids []id.UserID) (map[id.UserID]*identitymodels.User, error)
}

type MemberLister interface {
	MembersOf(ctx context.Context, projectID id.ProjectID) ([]membershipmodels.Membership, error)
}

type TaskLister interface {
	TasksOf(ctx context.Context, projectID id.ProjectID) ([]taskmodels.Task, error)
}

type ProjectLookup interface {
	FindByID(ctx context.Context, projectID id.ProjectID) (*projectmodels.Project, error)
}

type History interface {
	EventsOf(ctx context.Context, taskID id.TaskID) ([]audit.Event, error)
}

// Renderer builds views from already-authorized entities. It never mutates;
// each view is read as one read-only unit so it reflects committed state.
type Renderer struct {
	tx       tx.Runner
	statuses StatusLookup
	users    UserLookup
	members  MemberLister
	tasks    TaskLister
	projects ProjectLookup
	history  History
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

type Option func(*Renderer)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Renderer) {
		r.metrics = m
	}
}

func NewRenderer(runner tx.Runner, statuses StatusLookup, users UserLookup, members MemberLister, tasks TaskLister, projects ProjectLookup, history History, opts ...Option) *Renderer {
	r := &Renderer{
		tx:       runner,
		statuses: statuses,
		users:    users,
		members:  members,
		tasks:    tasks,
		projects: projects,
		history:  history,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Project renders the project page for a caller holding role.
func (r *Renderer) Project(ctx context.Context, p *projectmodels.Project, role id.Role) (*ProjectView, error) {
	return readView(ctx, r.tx, func(ctx context.Context) (*ProjectView, error) {
		return r.renderProject(ctx, p, role)
	})
}

// Projects renders a project list. roles holds the caller's role per project.
func (r *Renderer) Projects(ctx context.Context, projects []projectmodels.Project, roles map[id.ProjectID]id.Role) ([]ProjectSummary, error) {
	return readView(ctx, r.tx, func(ctx context.Context) ([]ProjectSummary, error) {
		return r.renderProjects(ctx, projects, roles)
	})
}

// Task renders one task with its project, assignee and history.
func (r *Renderer) Task(ctx context.Context, t *taskmodels.Task, role id.Role) (*TaskView, error) {
	return readView(ctx, r.tx, func(ctx context.Context) (*TaskView, error) {
		return r.renderTask(ctx, t, role)
	})
}

// Tasks renders the task list of one project.
func (r *Renderer) Tasks(ctx context.Context, projectID id.ProjectID, tasks []taskmodels.Task) ([]TaskSummary, error) {
	return readView(ctx, r.tx, func(ctx context.Context) ([]TaskSummary, error) {
		return r.renderTasks(ctx, projectID, tasks)
	})
}

// Members renders memberships with their users.
func (r *Renderer) Members(ctx context.Context, members []membershipmodels.Membership) ([]MemberView, error) {
	return readView(ctx, r.tx, func(ctx context.Context) ([]MemberView, error) {
		return r.renderMembers(ctx, members)
	})
}

func readView[T any](ctx context.Context, runner tx.Runner, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := runner.RunReadOnly(ctx, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}

func (r *Renderer) renderProject(ctx context.Context, p *projectmodels.Project, role id.Role) (*ProjectView, error) {
	var (
		members []membershipmodels.Membership
		tasks   []taskmodels.Task
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		members, err = r.members.MembersOf(gctx, p.ID)
		return err
	})
	g.Go(func() error {
		var err error
		tasks, err = r.tasks.TasksOf(gctx, p.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	statusIDs := []id.StatusID{p.StatusID}
	for _, t := range tasks {
		statusIDs = append(statusIDs, t.StatusID)
	}
	statuses, users, err := r.resolve(ctx, statusIDs, userIDsOf(members))
	if err != nil {
		return nil, err
	}

	memberViews, byID := r.memberViews(ctx, members, users)
	return &ProjectView{
		ProjectRef:  toProjectRef(p, statusRef(statuses, p.StatusID)),
		Members:     memberViews,
		Tasks:       r.taskSummaries(ctx, tasks, statuses, byID),
		MyRole:      role.String(),
		Permissions: PermissionsFor(role),
	}, nil
}

func (r *Renderer) renderProjects(ctx context.Context, projects []projectmodels.Project, roles map[id.ProjectID]id.Role) ([]ProjectSummary, error) {
	var statuses map[id.StatusID]statusmodels.Status
	counts := make([]int, len(projects))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(summaryConcurrency)
	g.Go(func() error {
		ids := make([]id.StatusID, len(projects))
		for i, p := range projects {
			ids[i] = p.StatusID
		}
		var err error
		statuses, err = r.statuses.Lookup(gctx, ids)
		return err
	})
	for i, p := range projects {
		g.Go(func() error {
			members, err := r.members.MembersOf(gctx, p.ID)
			if err != nil {
				return err
			}
			counts[i] = len(members)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]ProjectSummary, 0, len(projects))
	for i := range projects {
		p := &projects[i]
		st, ok := statuses[p.StatusID]
		if !ok {
			r.drop(ctx, "project", reasonStatusMissing, "project_id", p.ID.String(), "status_id", p.StatusID.String())
			continue
		}
		role := roles[p.ID]
		out = append(out, ProjectSummary{
			ProjectRef:  toProjectRef(p, StatusRef{ID: st.ID.String(), Name: st.Name}),
			MemberCount: counts[i],
			MyRole:      role.String(),
			Permissions: PermissionsFor(role),
		})
	}
	return out, nil
}

func (r *Renderer) renderTask(ctx context.Context, t *taskmodels.Task, role id.Role) (*TaskView, error) {
	var (
		project *projectmodels.Project
		events  []audit.Event
		members []membershipmodels.Membership
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := r.projects.FindByID(gctx, t.ProjectID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "project not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load project")
		}
		project = p
		return nil
	})
	g.Go(func() error {
		var err error
		events, err = r.history.EventsOf(gctx, t.ID)
		return err
	})
	if t.AssigneeID != nil {
		g.Go(func() error {
			var err error
			members, err = r.members.MembersOf(gctx, t.ProjectID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	statuses, users, err := r.resolve(ctx, []id.StatusID{t.StatusID, project.StatusID}, userIDsOf(members))
	if err != nil {
		return nil, err
	}
	_, byID := r.memberViews(ctx, members, users)

	return &TaskView{
		TaskSummary: toTaskSummary(t, statusRef(statuses, t.StatusID), assigneeOf(t, byID)),
		Project:     toProjectRef(project, statusRef(statuses, project.StatusID)),
		History:     toEventResponses(events),
		MyRole:      role.String(),
		Permissions: PermissionsFor(role),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}, nil
}

func (r *Renderer) renderTasks(ctx context.Context, projectID id.ProjectID, tasks []taskmodels.Task) ([]TaskSummary, error) {
	if len(tasks) == 0 {
		return []TaskSummary{}, nil
	}
	members, err := r.members.MembersOf(ctx, projectID)
	if err != nil {
		return nil, err
	}
	statusIDs := make([]id.StatusID, len(tasks))
	for i, t := range tasks {
		statusIDs[i] = t.StatusID
	}
	statuses, users, err := r.resolve(ctx, statusIDs, userIDsOf(members))
	if err != nil {
		return nil, err
	}
	_, byID := r.memberViews(ctx, members, users)
	return r.taskSummaries(ctx, tasks, statuses, byID), nil
}

func (r *Renderer) renderMembers(ctx context.Context, members []membershipmodels.Membership) ([]MemberView, error) {
	users, err := r.users.Lookup(ctx, userIDsOf(members))
	if err != nil {
		return nil, err
	}
	views, _ := r.memberViews(ctx, members, users)
	return views, nil
}

// resolve loads statuses and users concurrently.
func (r *Renderer) resolve(ctx context.Context, statusIDs []id.StatusID, userIDs []id.UserID) (map[id.StatusID]statusmodels.Status, map[id.UserID]*identitymodels.User, error) {
	var (
		statuses map[id.StatusID]statusmodels.Status
		users    map[id.UserID]*identitymodels.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		statuses, err = r.statuses.Lookup(gctx, statusIDs)
		return err
	})
	g.Go(func() error {
		var err error
		users, err = r.users.Lookup(gctx, userIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return statuses, users, nil
}

func (r *Renderer) memberViews(ctx context.Context, members []membershipmodels.Membership, users map[id.UserID]*identitymodels.User) ([]MemberView, map[id.MembershipID]MemberView) {
	out := make([]MemberView, 0, len(members))
	byID := make(map[id.MembershipID]MemberView, len(members))
	for _, m := range members {
		u, ok := users[m.UserID]
		if !ok {
			r.drop(ctx, "member", reasonUserMissing, "membership_id", m.ID.String(), "user_id", m.UserID.String())
			continue
		}
		mv := toMemberView(m, UserRef{ID: u.ID.String(), Username: u.Username, Email: u.Email})
		out = append(out, mv)
		byID[m.ID] = mv
	}
	return out, byID
}

func (r *Renderer) taskSummaries(ctx context.Context, tasks []taskmodels.Task, statuses map[id.StatusID]statusmodels.Status, members map[id.MembershipID]MemberView) []TaskSummary {
	out := make([]TaskSummary, 0, len(tasks))
	for i := range tasks {
		t := &tasks[i]
		st, ok := statuses[t.StatusID]
		if !ok {
			r.drop(ctx, "task", reasonStatusMissing, "task_id", t.ID.String(), "status_id", t.StatusID.String())
			continue
		}
		out = append(out, toTaskSummary(t, StatusRef{ID: st.ID.String(), Name: st.Name}, assigneeOf(t, members)))
	}
	return out
}

func (r *Renderer) drop(ctx context.Context, kind, reason string, attrs ...any) {
	r.metrics.IncDropped(kind, reason)
	if r.logger == nil {
		return
	}
	attrs = append(attrs, "kind", kind, "reason", reason, "request_id", requestcontext.RequestID(ctx))
	r.logger.WarnContext(ctx, "dropping unresolved item from view", attrs...)
}

// assigneeOf returns the resolved assignee. A membership whose user could not
// be resolved is rendered by id alone.
func assigneeOf(t *taskmodels.Task, members map[id.MembershipID]MemberView) *MemberView {
	if t.AssigneeID == nil {
		return nil
	}
	if mv, ok := members[*t.AssigneeID]; ok {
		return &mv
	}
	return &MemberView{ID: t.AssigneeID.String()}
}

// statusRef renders an unresolved status with its id and an empty name.
func statusRef(statuses map[id.StatusID]statusmodels.Status, statusID id.StatusID) StatusRef {
	if st, ok := statuses[statusID]; ok {
		return StatusRef{ID: st.ID.String(), Name: st.Name}
	}
	return StatusRef{ID: statusID.String()}
}

func userIDsOf(members []membershipmodels.Membership) []id.UserID {
	ids := make([]id.UserID, len(members))
	for i, m := range members {
		ids[i] = m.UserID
	}
	return ids
}
