package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	membershipmodels "trellis/internal/membership/models"
	"trellis/internal/policy"
	"trellis/internal/project/models"
	statusmodels "trellis/internal/status/models"
	id "trellis/pkg/domain"
	dErrors "trellis/pkg/domain-errors"
	"trellis/pkg/platform/sentinel"
	"trellis/pkg/platform/tx"
	"trellis/pkg/requestcontext"
)

var tracer = otel.Tracer("trellis/internal/project")

type Store interface {
	Create(ctx context.Context, p *models.Project) error
	FindByID(ctx context.Context, projectID id.ProjectID) (*models.Project, error)
	FindByIDs(ctx context.Context, ids []id.ProjectID) ([]models.Project, error)
	Update(ctx context.Context, p *models.Project) error
	Delete(ctx context.Context, projectID id.ProjectID) error
}

type Authorizer interface {
	Authorize(ctx context.Context, userID id.UserID, projectID id.ProjectID, p policy.Policy) (id.Role, error)
}

type StatusLookup interface {
	Get(ctx context.Context, statusID id.StatusID) (*statusmodels.Status, error)
	Default(ctx context.Context) (*statusmodels.Status, error)
}

// Members is the slice of the membership service a project needs.
type Members interface {
	Grant(ctx context.Context, projectID id.ProjectID, userID id.UserID, role id.Role) (*membershipmodels.Membership, error)
	MembersOf(ctx context.Context, projectID id.ProjectID) ([]membershipmodels.Membership, error)
	MembershipsOf(ctx context.Context, userID id.UserID) ([]membershipmodels.Membership, error)
	DeleteAllOf(ctx context.Context, projectID id.ProjectID) (int, error)
}

// TaskCascade removes a project's tasks together with their history.
type TaskCascade interface {
	DeleteAllOfProject(ctx context.Context, projectID id.ProjectID) (int, error)
}

// Service manages the project lifecycle.
type Service struct {
	store    Store
	tx       tx.Runner
	gate     Authorizer
	statuses StatusLookup
	members  Members
	tasks    TaskCascade
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store Store, runner tx.Runner, gate Authorizer, statuses StatusLookup, members Members, tasks TaskCascade, opts ...Option) *Service {
	s := &Service{
		store:    store,
		tx:       runner,
		gate:     gate,
		statuses: statuses,
		members:  members,
		tasks:    tasks,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create opens a project and makes the caller its admin in the same transaction.
func (s *Service) Create(ctx context.Context, callerID id.UserID, in models.Input) (*models.Project, id.Role, error) {
	ctx, span := tracer.Start(ctx, "project.Create")
	defer span.End()

	var created *models.Project
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var (
			st  *statusmodels.Status
			err error
		)
		if in.StatusID == nil {
			st, err = s.statuses.Default(ctx)
		} else {
			st, err = s.statuses.Get(ctx, *in.StatusID)
		}
		if err != nil {
			return err
		}

		p, err := models.NewProject(id.ProjectID(uuid.New()), in, st.ID, requestcontext.Now(ctx))
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		if err := s.store.Create(ctx, p); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create project")
		}
		if _, err := s.members.Grant(ctx, p.ID, callerID, id.RoleAdmin); err != nil {
			return err
		}
		created = p
		return nil
	})
	if err != nil {
		return nil, "", spanError(span, err)
	}
	span.SetAttributes(attribute.String("project_id", created.ID.String()))
	s.logAudit(ctx, "project_created", "actor_id", callerID.String(), "project_id", created.ID.String())
	return created, id.RoleAdmin, nil
}

// Get returns a project to any of its members.
func (s *Service) Get(ctx context.Context, callerID id.UserID, projectID id.ProjectID) (*models.Project, id.Role, error) {
	var (
		p    *models.Project
		role id.Role
	)
	err := s.tx.RunReadOnly(ctx, func(ctx context.Context) error {
		var err error
		if role, err = s.gate.Authorize(ctx, callerID, projectID, policy.AnyMember); err != nil {
			return err
		}
		p, err = s.load(ctx, projectID)
		return err
	})
	if err != nil {
		return nil, "", err
	}
	return p, role, nil
}

// ListMine returns every project the caller belongs to, with the caller's
// role in each, in the order the memberships were granted.
func (s *Service) ListMine(ctx context.Context, callerID id.UserID) ([]models.Project, map[id.ProjectID]id.Role, error) {
	var (
		projects []models.Project
		roles    map[id.ProjectID]id.Role
	)
	err := s.tx.RunReadOnly(ctx, func(ctx context.Context) error {
		memberships, err := s.members.MembershipsOf(ctx, callerID)
		if err != nil {
			return err
		}
		roles = make(map[id.ProjectID]id.Role, len(memberships))
		ids := make([]id.ProjectID, 0, len(memberships))
		for _, m := range memberships {
			roles[m.ProjectID] = m.Role
			ids = append(ids, m.ProjectID)
		}
		if projects, err = s.store.FindByIDs(ctx, ids); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list projects")
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return projects, roles, nil
}

// Members lists a project's memberships for any of its members.
func (s *Service) Members(ctx context.Context, callerID id.UserID, projectID id.ProjectID) ([]membershipmodels.Membership, id.Role, error) {
	var (
		members []membershipmodels.Membership
		role    id.Role
	)
	err := s.tx.RunReadOnly(ctx, func(ctx context.Context) error {
		var err error
		if role, err = s.gate.Authorize(ctx, callerID, projectID, policy.AnyMember); err != nil {
			return err
		}
		members, err = s.members.MembersOf(ctx, projectID)
		return err
	})
	if err != nil {
		return nil, "", err
	}
	return members, role, nil
}

// Update applies a partial patch. Only project admins may update.
func (s *Service) Update(ctx context.Context, callerID id.UserID, projectID id.ProjectID, patch models.Patch) (*models.Project, id.Role, error) {
	ctx, span := tracer.Start(ctx, "project.Update", trace.WithAttributes(attribute.String("project_id", projectID.String())))
	defer span.End()

	var (
		updated *models.Project
		role    id.Role
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		role, err = s.gate.Authorize(ctx, callerID, projectID, policy.AdminOnly)
		if err != nil {
			return err
		}
		p, err := s.load(ctx, projectID)
		if err != nil {
			return err
		}
		if patch.Name != nil {
			p.Name = *patch.Name
		}
		if patch.Description != nil {
			p.Description = *patch.Description
		}
		if patch.StartDate != nil {
			p.StartDate = *patch.StartDate
		}
		switch {
		case patch.ClearEndDate:
			p.EndDate = nil
		case patch.EndDate != nil:
			p.EndDate = patch.EndDate
		}
		if err := p.Validate(); err != nil {
			return dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		p.UpdatedAt = requestcontext.Now(ctx)
		if err := s.save(ctx, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, "", spanError(span, err)
	}
	s.logAudit(ctx, "project_updated", "actor_id", callerID.String(), "project_id", projectID.String())
	return updated, role, nil
}

// ChangeStatus moves a project to another status. Only project admins may do so.
func (s *Service) ChangeStatus(ctx context.Context, callerID id.UserID, projectID id.ProjectID, statusID id.StatusID) (*models.Project, id.Role, error) {
	ctx, span := tracer.Start(ctx, "project.ChangeStatus", trace.WithAttributes(
		attribute.String("project_id", projectID.String()),
		attribute.String("status_id", statusID.String()),
	))
	defer span.End()

	var (
		updated *models.Project
		role    id.Role
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		role, err = s.gate.Authorize(ctx, callerID, projectID, policy.AdminOnly)
		if err != nil {
			return err
		}
		p, err := s.load(ctx, projectID)
		if err != nil {
			return err
		}
		st, err := s.statuses.Get(ctx, statusID)
		if err != nil {
			return err
		}
		if p.StatusID == st.ID {
			updated = p
			return nil
		}
		p.StatusID = st.ID
		p.UpdatedAt = requestcontext.Now(ctx)
		if err := s.save(ctx, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, "", spanError(span, err)
	}
	return updated, role, nil
}

// Delete removes a project with everything it owns: task history, tasks,
// memberships, then the project row, in one transaction. The returned
// project is the state before deletion.
func (s *Service) Delete(ctx context.Context, callerID id.UserID, projectID id.ProjectID) (*models.Project, id.Role, error) {
	ctx, span := tracer.Start(ctx, "project.Delete", trace.WithAttributes(attribute.String("project_id", projectID.String())))
	defer span.End()

	var (
		deleted      *models.Project
		role         id.Role
		tasksRemoved int
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		role, err = s.gate.Authorize(ctx, callerID, projectID, policy.AdminOnly)
		if err != nil {
			return err
		}
		p, err := s.load(ctx, projectID)
		if err != nil {
			return err
		}
		if tasksRemoved, err = s.tasks.DeleteAllOfProject(ctx, projectID); err != nil {
			return err
		}
		if _, err := s.members.DeleteAllOf(ctx, projectID); err != nil {
			return err
		}
		if err := s.store.Delete(ctx, projectID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "project not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete project")
		}
		deleted = p
		return nil
	})
	if err != nil {
		return nil, "", spanError(span, err)
	}
	s.logAudit(ctx, "project_deleted",
		"actor_id", callerID.String(),
		"project_id", projectID.String(),
		"tasks_removed", tasksRemoved,
	)
	return deleted, role, nil
}

func (s *Service) load(ctx context.Context, projectID id.ProjectID) (*models.Project, error) {
	p, err := s.store.FindByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "project not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load project")
	}
	return p, nil
}

func (s *Service) save(ctx context.Context, p *models.Project) error {
	if err := s.store.Update(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "project not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update project")
	}
	return nil
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	return err
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}
