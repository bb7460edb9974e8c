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

	"trellis/internal/membership/metrics"
	"trellis/internal/membership/models"
	"trellis/internal/policy"
	id "trellis/pkg/domain"
	dErrors "trellis/pkg/domain-errors"
	"trellis/pkg/platform/sentinel"
	"trellis/pkg/platform/tx"
	"trellis/pkg/requestcontext"
)

var tracer = otel.Tracer("trellis/internal/membership")

type Authorizer interface {
	Authorize(ctx context.Context, userID id.UserID, projectID id.ProjectID, p policy.Policy) (id.Role, error)
}

type UserChecker interface {
	Exists(ctx context.Context, userID id.UserID) (bool, error)
}

// TaskUnassigner clears the assignee of every task assigned to a membership
// and records an audit event per task. It returns the number of tasks touched.
type TaskUnassigner interface {
	UnassignMembership(ctx context.Context, membershipID id.MembershipID) (int, error)
}

// Service applies membership changes. Every mutation runs in one transaction.
type Service struct {
	*Directory
	store      Store
	tx         tx.Runner
	gate       Authorizer
	users      UserChecker
	unassigner TaskUnassigner
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTaskUnassigner enables the assignment cascade on Remove.
func WithTaskUnassigner(u TaskUnassigner) Option {
	return func(s *Service) {
		s.unassigner = u
	}
}

func New(dir *Directory, store Store, runner tx.Runner, gate Authorizer, users UserChecker, opts ...Option) *Service {
	s := &Service{
		Directory: dir,
		store:     store,
		tx:        runner,
		gate:      gate,
		users:     users,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add grants userID a role in projectID. Only project admins may add members.
func (s *Service) Add(ctx context.Context, callerID id.UserID, projectID id.ProjectID, userID id.UserID, role id.Role) (*models.Membership, error) {
	ctx, span := tracer.Start(ctx, "membership.Add", trace.WithAttributes(
		attribute.String("project_id", projectID.String()),
		attribute.String("user_id", userID.String()),
		attribute.String("role", role.String()),
	))
	defer span.End()

	var created *models.Membership
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.gate.Authorize(ctx, callerID, projectID, policy.AdminOnly); err != nil {
			return err
		}
		m, err := s.Grant(ctx, projectID, userID, role)
		if err != nil {
			return err
		}
		created = m
		return nil
	})
	if err != nil {
		return nil, spanError(span, err)
	}

	s.metrics.IncMutation("add")
	s.logAudit(ctx, "member_added",
		"actor_id", callerID.String(),
		"project_id", projectID.String(),
		"user_id", userID.String(),
		"role", role.String(),
	)
	return created, nil
}

// Grant creates a membership without authorizing a caller. Project creation
// uses it to make the creator an admin.
func (s *Service) Grant(ctx context.Context, projectID id.ProjectID, userID id.UserID, role id.Role) (*models.Membership, error) {
	if !role.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown role: "+role.String())
	}
	exists, err := s.users.Exists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
	}

	m, err := models.NewMembership(id.MembershipID(uuid.New()), projectID, userID, role, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
	}
	if err := s.store.Create(ctx, m); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeDuplicateMembership, "user is already a member of this project")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create membership")
	}
	return m, nil
}

// ChangeRole sets a membership's role. Setting the current role is a no-op.
func (s *Service) ChangeRole(ctx context.Context, callerID id.UserID, membershipID id.MembershipID, role id.Role) (*models.Membership, error) {
	ctx, span := tracer.Start(ctx, "membership.ChangeRole", trace.WithAttributes(
		attribute.String("membership_id", membershipID.String()),
		attribute.String("role", role.String()),
	))
	defer span.End()

	if !role.IsValid() {
		return nil, spanError(span, dErrors.New(dErrors.CodeValidation, "unknown role: "+role.String()))
	}

	var (
		updated *models.Membership
		changed bool
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		m, err := s.Get(ctx, membershipID)
		if err != nil {
			return err
		}
		if _, err := s.gate.Authorize(ctx, callerID, m.ProjectID, policy.AdminOnly); err != nil {
			return err
		}
		if m.Role == role {
			updated = m
			return nil
		}
		if err := s.store.UpdateRole(ctx, membershipID, role); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "membership not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update membership")
		}
		m.Role = role
		updated = m
		changed = true
		return nil
	})
	if err != nil {
		return nil, spanError(span, err)
	}

	if changed {
		s.metrics.IncMutation("change_role")
		s.logAudit(ctx, "member_role_changed",
			"actor_id", callerID.String(),
			"membership_id", membershipID.String(),
			"role", role.String(),
		)
	}
	return updated, nil
}

// Remove deletes a membership. Tasks assigned to it lose their assignee in
// the same transaction, each with an audit event.
func (s *Service) Remove(ctx context.Context, callerID id.UserID, membershipID id.MembershipID) (*models.Membership, error) {
	ctx, span := tracer.Start(ctx, "membership.Remove", trace.WithAttributes(
		attribute.String("membership_id", membershipID.String()),
	))
	defer span.End()

	var (
		removed    *models.Membership
		unassigned int
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		m, err := s.Get(ctx, membershipID)
		if err != nil {
			return err
		}
		if _, err := s.gate.Authorize(ctx, callerID, m.ProjectID, policy.AdminOnly); err != nil {
			return err
		}
		if s.unassigner != nil {
			n, err := s.unassigner.UnassignMembership(ctx, membershipID)
			if err != nil {
				return err
			}
			unassigned = n
		}
		if err := s.store.Delete(ctx, membershipID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "membership not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete membership")
		}
		removed = m
		return nil
	})
	if err != nil {
		return nil, spanError(span, err)
	}

	span.SetAttributes(attribute.Int("unassigned_tasks", unassigned))
	s.metrics.IncMutation("remove")
	s.metrics.AddCascadeUnassigned(unassigned)
	s.logAudit(ctx, "member_removed",
		"actor_id", callerID.String(),
		"membership_id", membershipID.String(),
		"project_id", removed.ProjectID.String(),
		"unassigned_tasks", unassigned,
	)
	return removed, nil
}

// DeleteAllOf removes every membership of a project. Project deletion calls
// it inside its own transaction after tasks are gone.
func (s *Service) DeleteAllOf(ctx context.Context, projectID id.ProjectID) (int, error) {
	n, err := s.store.DeleteByProject(ctx, projectID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete project memberships")
	}
	return n, nil
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
