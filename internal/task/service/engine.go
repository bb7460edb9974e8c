// Package service implements the task mutation engine: every task change is
// authorized against the caller's project role, applied in one transaction,
// and described in the task's history.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"trellis/internal/audit"
	membershipmodels "trellis/internal/membership/models"
	"trellis/internal/policy"
	statusmodels "trellis/internal/status/models"
	"trellis/internal/task/metrics"
	"trellis/internal/task/models"
	id "trellis/pkg/domain"
	dErrors "trellis/pkg/domain-errors"
	"trellis/pkg/platform/sentinel"
	"trellis/pkg/platform/tx"
	"trellis/pkg/requestcontext"
)

var tracer = otel.Tracer("trellis/internal/task")

type Store interface {
	Create(ctx context.Context, t *models.Task) error
	FindByID(ctx context.Context, taskID id.TaskID) (*models.Task, error)
	// FindByIDForUpdate loads a task and holds its row until the enclosing
	// transaction ends.
	FindByIDForUpdate(ctx context.Context, taskID id.TaskID) (*models.Task, error)
	Update(ctx context.Context, t *models.Task) error
	Delete(ctx context.Context, taskID id.TaskID) error
	ListByProject(ctx context.Context, projectID id.ProjectID) ([]models.Task, error)
	ListByAssignee(ctx context.Context, membershipID id.MembershipID) ([]models.Task, error)
	DeleteByProject(ctx context.Context, projectID id.ProjectID) (int, error)
}

type Authorizer interface {
	Authorize(ctx context.Context, userID id.UserID, projectID id.ProjectID, p policy.Policy) (id.Role, error)
}

type MembershipLookup interface {
	Get(ctx context.Context, membershipID id.MembershipID) (*membershipmodels.Membership, error)
}

type StatusLookup interface {
	Get(ctx context.Context, statusID id.StatusID) (*statusmodels.Status, error)
	Default(ctx context.Context) (*statusmodels.Status, error)
}

type UserNames interface {
	Usernames(ctx context.Context, ids []id.UserID) (map[id.UserID]string, error)
}

type History interface {
	Record(ctx context.Context, taskID id.TaskID, description string, at time.Time) (*audit.Event, error)
	EventsOf(ctx context.Context, taskID id.TaskID) ([]audit.Event, error)
	DeleteAllOf(ctx context.Context, taskID id.TaskID) (int, error)
	DeleteAllOfTasks(ctx context.Context, taskIDs []id.TaskID) (int, error)
}

// Engine applies task mutations.
type Engine struct {
	store       Store
	tx          tx.Runner
	gate        Authorizer
	memberships MembershipLookup
	statuses    StatusLookup
	users       UserNames
	history     History
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func New(store Store, runner tx.Runner, gate Authorizer, memberships MembershipLookup, statuses StatusLookup, users UserNames, history History, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		tx:          runner,
		gate:        gate,
		memberships: memberships,
		statuses:    statuses,
		users:       users,
		history:     history,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Create adds a task to a project. Only project admins may create tasks.
// The assignee, if any, must be a membership of the same project.
func (e *Engine) Create(ctx context.Context, callerID id.UserID, projectID id.ProjectID, in models.Input) (*models.Task, id.Role, error) {
	ctx, span := tracer.Start(ctx, "task.Create", trace.WithAttributes(attribute.String("project_id", projectID.String())))
	defer span.End()
	start := time.Now()

	var (
		created *models.Task
		role    id.Role
		events  int
	)
	err := e.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		role, err = e.gate.Authorize(ctx, callerID, projectID, policy.AdminOnly)
		if err != nil {
			return err
		}

		st, err := e.resolveStatus(ctx, in.StatusID)
		if err != nil {
			return err
		}
		assigneeName := ""
		if in.AssigneeID != nil {
			if assigneeName, err = e.checkAssignee(ctx, projectID, *in.AssigneeID); err != nil {
				return err
			}
		}

		t, err := models.NewTask(id.TaskID(uuid.New()), projectID, in, st.ID, requestcontext.Now(ctx))
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		if err := e.store.Create(ctx, t); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create task")
		}

		lines := []string{audit.TaskCreated(t.Name)}
		if assigneeName != "" {
			lines = append(lines, audit.Assigned(assigneeName))
		}
		if err := e.record(ctx, t.ID, lines); err != nil {
			return err
		}
		created, events = t, len(lines)
		return nil
	})
	e.finish(ctx, span, "create", start, err, events)
	if err != nil {
		return nil, "", err
	}
	e.logAudit(ctx, "task_created", "actor_id", callerID.String(), "task_id", created.ID.String(), "project_id", projectID.String())
	return created, role, nil
}

// Update applies a partial patch. Each changed audited field produces one
// history line, in the order name, description, priority, status, assignee.
// Due date changes are saved without a history line.
func (e *Engine) Update(ctx context.Context, callerID id.UserID, taskID id.TaskID, patch models.Patch) (*models.Task, id.Role, error) {
	ctx, span := tracer.Start(ctx, "task.Update", trace.WithAttributes(attribute.String("task_id", taskID.String())))
	defer span.End()
	start := time.Now()

	var (
		updated *models.Task
		role    id.Role
		events  int
	)
	err := e.tx.RunInTx(ctx, func(ctx context.Context) error {
		t, err := e.lock(ctx, taskID)
		if err != nil {
			return err
		}
		role, err = e.gate.Authorize(ctx, callerID, t.ProjectID, policy.AdminOnly)
		if err != nil {
			return err
		}

		before := *t
		var lines []string

		if patch.Name != nil && *patch.Name != t.Name {
			lines = append(lines, audit.NameChanged(t.Name, *patch.Name))
			t.Name = *patch.Name
		}
		if patch.Description != nil && *patch.Description != t.Description {
			lines = append(lines, audit.DescriptionUpdated())
			t.Description = *patch.Description
		}
		if patch.Priority != nil && *patch.Priority != t.Priority {
			lines = append(lines, audit.PriorityChanged(t.Priority, *patch.Priority))
			t.Priority = *patch.Priority
		}
		if patch.StatusID != nil && *patch.StatusID != t.StatusID {
			st, err := e.statuses.Get(ctx, *patch.StatusID)
			if err != nil {
				return err
			}
			lines = append(lines, audit.StatusChanged(st.Name))
			t.StatusID = st.ID
		}

		dueChanged := false
		switch {
		case patch.ClearDueDate:
			dueChanged = t.DueDate != nil
			t.DueDate = nil
		case patch.DueDate != nil:
			dueChanged = t.DueDate == nil || !t.DueDate.Equal(*patch.DueDate)
			t.DueDate = patch.DueDate
		}

		next := t.AssigneeID
		switch {
		case patch.ClearAssignee:
			next = nil
		case patch.AssigneeID != nil:
			next = patch.AssigneeID
		}
		if !models.SameAssignee(before.AssigneeID, next) {
			from, to := "", ""
			if before.AssigneeID != nil {
				if from, err = e.assigneeName(ctx, *before.AssigneeID); err != nil {
					return err
				}
			}
			if next != nil {
				if to, err = e.checkAssignee(ctx, t.ProjectID, *next); err != nil {
					return err
				}
			}
			if line, ok := audit.AssigneeChange(from, to); ok {
				lines = append(lines, line)
			}
			t.AssigneeID = next
		}

		if len(lines) == 0 && !dueChanged && models.SameAssignee(before.AssigneeID, t.AssigneeID) {
			updated = t
			return nil
		}
		if err := t.Validate(); err != nil {
			return dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		t.UpdatedAt = requestcontext.Now(ctx)
		if err := e.save(ctx, t); err != nil {
			return err
		}
		if err := e.record(ctx, t.ID, lines); err != nil {
			return err
		}
		updated, events = t, len(lines)
		return nil
	})
	e.finish(ctx, span, "update", start, err, events)
	if err != nil {
		return nil, "", err
	}
	if events > 0 {
		e.logAudit(ctx, "task_updated", "actor_id", callerID.String(), "task_id", taskID.String(), "changes", events)
	}
	return updated, role, nil
}

// ChangeStatus moves a task to another status. Setting the current status
// changes nothing and records nothing.
func (e *Engine) ChangeStatus(ctx context.Context, callerID id.UserID, taskID id.TaskID, statusID id.StatusID) (*models.Task, id.Role, error) {
	ctx, span := tracer.Start(ctx, "task.ChangeStatus", trace.WithAttributes(
		attribute.String("task_id", taskID.String()),
		attribute.String("status_id", statusID.String()),
	))
	defer span.End()
	start := time.Now()

	var (
		updated *models.Task
		role    id.Role
		events  int
	)
	err := e.tx.RunInTx(ctx, func(ctx context.Context) error {
		t, err := e.lock(ctx, taskID)
		if err != nil {
			return err
		}
		role, err = e.gate.Authorize(ctx, callerID, t.ProjectID, policy.AdminOnly)
		if err != nil {
			return err
		}
		st, err := e.statuses.Get(ctx, statusID)
		if err != nil {
			return err
		}
		if t.StatusID == st.ID {
			updated = t
			return nil
		}
		t.StatusID = st.ID
		t.UpdatedAt = requestcontext.Now(ctx)
		if err := e.save(ctx, t); err != nil {
			return err
		}
		if err := e.record(ctx, t.ID, []string{audit.StatusChanged(st.Name)}); err != nil {
			return err
		}
		updated, events = t, 1
		return nil
	})
	e.finish(ctx, span, "change_status", start, err, events)
	if err != nil {
		return nil, "", err
	}
	if events > 0 {
		e.logAudit(ctx, "task_status_changed", "actor_id", callerID.String(), "task_id", taskID.String(), "status_id", statusID.String())
	}
	return updated, role, nil
}

// Delete removes a task and its history. Admins and members may delete;
// observers may not. The returned task is the state before deletion.
func (e *Engine) Delete(ctx context.Context, callerID id.UserID, taskID id.TaskID) (*models.Task, id.Role, error) {
	ctx, span := tracer.Start(ctx, "task.Delete", trace.WithAttributes(attribute.String("task_id", taskID.String())))
	defer span.End()
	start := time.Now()

	var (
		deleted *models.Task
		role    id.Role
	)
	err := e.tx.RunInTx(ctx, func(ctx context.Context) error {
		t, err := e.lock(ctx, taskID)
		if err != nil {
			return err
		}
		role, err = e.gate.Authorize(ctx, callerID, t.ProjectID, policy.AdminOrMember)
		if err != nil {
			return err
		}
		if _, err := e.history.DeleteAllOf(ctx, taskID); err != nil {
			return err
		}
		if err := e.store.Delete(ctx, taskID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "task not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete task")
		}
		deleted = t
		return nil
	})
	e.finish(ctx, span, "delete", start, err, 0)
	if err != nil {
		return nil, "", err
	}
	e.logAudit(ctx, "task_deleted", "actor_id", callerID.String(), "task_id", taskID.String(), "project_id", deleted.ProjectID.String())
	return deleted, role, nil
}

// Get returns a task to any member of its project.
func (e *Engine) Get(ctx context.Context, callerID id.UserID, taskID id.TaskID) (*models.Task, id.Role, error) {
	var (
		t    *models.Task
		role id.Role
	)
	err := e.tx.RunReadOnly(ctx, func(ctx context.Context) error {
		var err error
		if t, err = e.load(ctx, taskID); err != nil {
			return err
		}
		role, err = e.gate.Authorize(ctx, callerID, t.ProjectID, policy.AnyMember)
		return err
	})
	if err != nil {
		return nil, "", err
	}
	return t, role, nil
}

// ListByProject returns a project's tasks in creation order, optionally
// narrowed to one status.
func (e *Engine) ListByProject(ctx context.Context, callerID id.UserID, projectID id.ProjectID, statusFilter *id.StatusID) ([]models.Task, id.Role, error) {
	var (
		tasks []models.Task
		role  id.Role
	)
	err := e.tx.RunReadOnly(ctx, func(ctx context.Context) error {
		var err error
		if role, err = e.gate.Authorize(ctx, callerID, projectID, policy.AnyMember); err != nil {
			return err
		}
		tasks, err = e.TasksOf(ctx, projectID)
		return err
	})
	if err != nil {
		return nil, "", err
	}
	if statusFilter == nil {
		return tasks, role, nil
	}
	out := tasks[:0]
	for _, t := range tasks {
		if t.StatusID == *statusFilter {
			out = append(out, t)
		}
	}
	return out, role, nil
}

// ListEvents returns a task's history, oldest first.
func (e *Engine) ListEvents(ctx context.Context, callerID id.UserID, taskID id.TaskID) ([]audit.Event, id.Role, error) {
	var (
		events []audit.Event
		role   id.Role
	)
	err := e.tx.RunReadOnly(ctx, func(ctx context.Context) error {
		t, r, err := e.Get(ctx, callerID, taskID)
		if err != nil {
			return err
		}
		role = r
		events, err = e.history.EventsOf(ctx, t.ID)
		return err
	})
	if err != nil {
		return nil, "", err
	}
	return events, role, nil
}

// TasksOf lists a project's tasks without authorizing a caller.
func (e *Engine) TasksOf(ctx context.Context, projectID id.ProjectID) ([]models.Task, error) {
	tasks, err := e.store.ListByProject(ctx, projectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list tasks")
	}
	return tasks, nil
}

// UnassignMembership clears the assignee of every task assigned to the
// membership and records one history line per task. Membership removal calls
// it inside its transaction, before the membership row is deleted.
func (e *Engine) UnassignMembership(ctx context.Context, membershipID id.MembershipID) (int, error) {
	var count int
	err := e.tx.RunInTx(ctx, func(ctx context.Context) error {
		tasks, err := e.store.ListByAssignee(ctx, membershipID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list assigned tasks")
		}
		if len(tasks) == 0 {
			return nil
		}
		name, err := e.assigneeName(ctx, membershipID)
		if err != nil {
			return err
		}
		now := requestcontext.Now(ctx)
		for i := range tasks {
			t := &tasks[i]
			t.AssigneeID = nil
			t.UpdatedAt = now
			if err := e.save(ctx, t); err != nil {
				return err
			}
			if err := e.record(ctx, t.ID, []string{audit.Unassigned(name)}); err != nil {
				return err
			}
		}
		count = len(tasks)
		return nil
	})
	if err != nil {
		return 0, err
	}
	e.metrics.AddEvents(count)
	return count, nil
}

// DeleteAllOfProject removes the history of every task in a project, then
// the tasks themselves. Project deletion calls it inside its transaction.
func (e *Engine) DeleteAllOfProject(ctx context.Context, projectID id.ProjectID) (int, error) {
	tasks, err := e.TasksOf(ctx, projectID)
	if err != nil {
		return 0, err
	}
	taskIDs := make([]id.TaskID, len(tasks))
	for i, t := range tasks {
		taskIDs[i] = t.ID
	}
	if _, err := e.history.DeleteAllOfTasks(ctx, taskIDs); err != nil {
		return 0, err
	}
	n, err := e.store.DeleteByProject(ctx, projectID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete project tasks")
	}
	return n, nil
}

func (e *Engine) load(ctx context.Context, taskID id.TaskID) (*models.Task, error) {
	return taskOrNotFound(e.store.FindByID(ctx, taskID))
}

// lock loads a task for a mutation. Concurrent mutations of the same task
// queue on the row, so each one computes its deltas from the committed state.
func (e *Engine) lock(ctx context.Context, taskID id.TaskID) (*models.Task, error) {
	return taskOrNotFound(e.store.FindByIDForUpdate(ctx, taskID))
}

func taskOrNotFound(t *models.Task, err error) (*models.Task, error) {
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "task not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load task")
	}
	return t, nil
}

func (e *Engine) save(ctx context.Context, t *models.Task) error {
	if err := e.store.Update(ctx, t); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "task not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update task")
	}
	return nil
}

func (e *Engine) record(ctx context.Context, taskID id.TaskID, lines []string) error {
	for _, line := range lines {
		if _, err := e.history.Record(ctx, taskID, line, time.Time{}); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) resolveStatus(ctx context.Context, statusID *id.StatusID) (*statusmodels.Status, error) {
	if statusID == nil {
		return e.statuses.Default(ctx)
	}
	return e.statuses.Get(ctx, *statusID)
}

// checkAssignee verifies membershipID belongs to projectID and returns the
// assignee's display name.
func (e *Engine) checkAssignee(ctx context.Context, projectID id.ProjectID, membershipID id.MembershipID) (string, error) {
	m, err := e.memberships.Get(ctx, membershipID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return "", dErrors.New(dErrors.CodeInvalidAssignee, "assignee is not a member of this project")
		}
		return "", err
	}
	if m.ProjectID != projectID {
		return "", dErrors.New(dErrors.CodeInvalidAssignee, "assignee is not a member of this project")
	}
	return e.displayName(ctx, m.UserID)
}

func (e *Engine) assigneeName(ctx context.Context, membershipID id.MembershipID) (string, error) {
	m, err := e.memberships.Get(ctx, membershipID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return membershipID.String(), nil
		}
		return "", err
	}
	return e.displayName(ctx, m.UserID)
}

// displayName falls back to the user id when the user row is gone.
func (e *Engine) displayName(ctx context.Context, userID id.UserID) (string, error) {
	names, err := e.users.Usernames(ctx, []id.UserID{userID})
	if err != nil {
		return "", err
	}
	if name, ok := names[userID]; ok {
		return name, nil
	}
	return userID.String(), nil
}

func (e *Engine) finish(ctx context.Context, span trace.Span, op string, start time.Time, err error, events int) {
	outcome := "ok"
	if err != nil {
		outcome = string(dErrors.CodeOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		if e.logger != nil && dErrors.HasCode(err, dErrors.CodeInternal) {
			e.logger.ErrorContext(ctx, "task mutation failed",
				"op", op,
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
	} else {
		span.SetAttributes(attribute.Int("events", events))
		e.metrics.AddEvents(events)
	}
	e.metrics.ObserveMutation(op, outcome, time.Since(start))
}

func (e *Engine) logAudit(ctx context.Context, event string, attributes ...any) {
	if e.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	e.logger.InfoContext(ctx, event, args...)
}
