package policy

import (
	"context"
	"log/slog"

	"trellis/internal/policy/metrics"
	id "trellis/pkg/domain"
	dErrors "trellis/pkg/domain-errors"
	"trellis/pkg/requestcontext"
)

// ProjectChecker reports whether a project exists.
type ProjectChecker interface {
	Exists(ctx context.Context, projectID id.ProjectID) (bool, error)
}

// RoleResolver looks up a user's role in a project. found is false for
// non-members; absence is not the same as the lowest role.
type RoleResolver interface {
	RoleOf(ctx context.Context, projectID id.ProjectID, userID id.UserID) (role id.Role, found bool, err error)
}

// Gate authorizes project-scoped operations.
type Gate struct {
	projects ProjectChecker
	roles    RoleResolver
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

type Option func(*Gate)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

func NewGate(projects ProjectChecker, roles RoleResolver, opts ...Option) *Gate {
	g := &Gate{projects: projects, roles: roles}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authorize returns the caller's role in the project when p admits it.
// A missing project is NotFound; a non-member or a rejected role is Forbidden.
func (g *Gate) Authorize(ctx context.Context, userID id.UserID, projectID id.ProjectID, p Policy) (id.Role, error) {
	exists, err := g.projects.Exists(ctx, projectID)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load project")
	}
	if !exists {
		g.record(ctx, userID, projectID, p, "", "project_not_found")
		return "", dErrors.New(dErrors.CodeNotFound, "project not found")
	}

	role, found, err := g.roles.RoleOf(ctx, projectID, userID)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve role")
	}
	if !found {
		g.record(ctx, userID, projectID, p, "", "not_member")
		return "", dErrors.New(dErrors.CodeForbidden, "not a member of this project")
	}
	if !p.Allows(role) {
		g.record(ctx, userID, projectID, p, role, "insufficient_role")
		return "", dErrors.New(dErrors.CodeForbidden, "insufficient role for this operation")
	}
	g.record(ctx, userID, projectID, p, role, "allowed")
	return role, nil
}

func (g *Gate) record(ctx context.Context, userID id.UserID, projectID id.ProjectID, p Policy, role id.Role, outcome string) {
	g.metrics.IncDecision(p.Name(), outcome)
	if g.logger == nil {
		return
	}
	level := slog.LevelDebug
	if outcome != "allowed" {
		level = slog.LevelInfo
	}
	g.logger.Log(ctx, level, "authorization decision",
		"user_id", userID.String(),
		"project_id", projectID.String(),
		"policy", p.Name(),
		"role", role.String(),
		"outcome", outcome,
		"request_id", requestcontext.RequestID(ctx),
	)
}
