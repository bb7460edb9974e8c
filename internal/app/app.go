// Package app assembles the services from a set of stores. main uses it with
// postgres stores; tests use it with the in-memory ones.
package app

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"trellis/internal/audit"
	"trellis/internal/audit/feed"
	eventstore "trellis/internal/audit/store/event"
	outboxstore "trellis/internal/audit/store/outbox"
	identitysvc "trellis/internal/identity/service"
	userstore "trellis/internal/identity/store/user"
	jwttoken "trellis/internal/jwt_token"
	membershipmetrics "trellis/internal/membership/metrics"
	membershipsvc "trellis/internal/membership/service"
	membershipstore "trellis/internal/membership/store/membership"
	"trellis/internal/policy"
	policymetrics "trellis/internal/policy/metrics"
	projectsvc "trellis/internal/project/service"
	projectstore "trellis/internal/project/store/project"
	statussvc "trellis/internal/status/service"
	statusstore "trellis/internal/status/store/status"
	taskmetrics "trellis/internal/task/metrics"
	tasksvc "trellis/internal/task/service"
	taskstore "trellis/internal/task/store/task"
	"trellis/internal/view"
	viewmetrics "trellis/internal/view/metrics"
	"trellis/pkg/platform/tx"
)

// ProjectStore is the project persistence the lifecycle service and the
// authorization gate share.
type ProjectStore interface {
	projectsvc.Store
	view.ProjectLookup
	policy.ProjectChecker
}

// StatusStore is the status persistence, optionally behind the Redis cache.
type StatusStore interface {
	statussvc.Store
	statusstore.Store
}

// OutboxStore queues task events for the feed relay.
type OutboxStore interface {
	audit.Outbox
	feed.Outbox
}

type Stores struct {
	Users       identitysvc.UserStore
	Statuses    StatusStore
	Projects    ProjectStore
	Memberships membershipsvc.Store
	Tasks       tasksvc.Store
	Events      audit.Store
	Outbox      OutboxStore
}

// MemoryStores returns empty in-memory stores and a runner that rolls all of
// them back together.
func MemoryStores() (Stores, *tx.MemoryRunner) {
	users := userstore.NewInMemory()
	statuses := statusstore.NewInMemory()
	projects := projectstore.NewInMemory()
	memberships := membershipstore.NewInMemory()
	tasks := taskstore.NewInMemory()
	events := eventstore.NewInMemory()
	outbox := outboxstore.NewInMemory()
	runner := tx.NewMemoryRunner(users, statuses, projects, memberships, tasks, events, outbox)
	return Stores{
		Users:       users,
		Statuses:    statuses,
		Projects:    projects,
		Memberships: memberships,
		Tasks:       tasks,
		Events:      events,
		Outbox:      outbox,
	}, runner
}

// PostgresStores returns stores backed by db.
func PostgresStores(db *sql.DB) Stores {
	return Stores{
		Users:       userstore.NewPostgres(db),
		Statuses:    statusstore.NewPostgres(db),
		Projects:    projectstore.NewPostgres(db),
		Memberships: membershipstore.NewPostgres(db),
		Tasks:       taskstore.NewPostgres(db),
		Events:      eventstore.NewPostgres(db),
		Outbox:      outboxstore.NewPostgres(db),
	}
}

// App holds the wired services.
type App struct {
	Tokens      *jwttoken.JWTService
	Identity    *identitysvc.Service
	Statuses    *statussvc.Service
	Directory   *membershipsvc.Directory
	Gate        *policy.Gate
	History     *audit.Recorder
	Tasks       *tasksvc.Engine
	Memberships *membershipsvc.Service
	Projects    *projectsvc.Service
	Views       *view.Renderer
}

type Config struct {
	JWTSigningKey string
	JWTIssuer     string
	TokenTTL      time.Duration
	BcryptCost    int
	// EventFeed mirrors every task event into the outbox for the relay.
	EventFeed bool
}

type options struct {
	logger     *slog.Logger
	registerer prometheus.Registerer
}

type Option func(*options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRegisterer sets where module metrics are registered. Tests pass a
// fresh registry so repeated wiring does not collide.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// New wires every service. The task engine is built before the membership
// service so that removing a membership can unassign its tasks.
func New(cfg Config, stores Stores, runner tx.Runner, opts ...Option) *App {
	o := options{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&o)
	}

	tokens := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer)
	identityOpts := []identitysvc.Option{
		identitysvc.WithLogger(o.logger),
		identitysvc.WithTokenTTL(cfg.TokenTTL),
	}
	if cfg.BcryptCost > 0 {
		identityOpts = append(identityOpts, identitysvc.WithBcryptCost(cfg.BcryptCost))
	}
	identity := identitysvc.New(stores.Users, runner, tokens, identityOpts...)
	statuses := statussvc.New(stores.Statuses, runner, statussvc.WithLogger(o.logger))

	dir := membershipsvc.NewDirectory(stores.Memberships)
	gate := policy.NewGate(stores.Projects, dir,
		policy.WithLogger(o.logger),
		policy.WithMetrics(policymetrics.NewWith(o.registerer)),
	)
	historyOpts := []audit.Option{audit.WithLogger(o.logger)}
	if cfg.EventFeed && stores.Outbox != nil {
		historyOpts = append(historyOpts, audit.WithOutbox(stores.Outbox))
	}
	history := audit.NewRecorder(stores.Events, historyOpts...)

	tasks := tasksvc.New(stores.Tasks, runner, gate, dir, statuses, identity, history,
		tasksvc.WithLogger(o.logger),
		tasksvc.WithMetrics(taskmetrics.NewWith(o.registerer)),
	)
	memberships := membershipsvc.New(dir, stores.Memberships, runner, gate, identity,
		membershipsvc.WithLogger(o.logger),
		membershipsvc.WithMetrics(membershipmetrics.NewWith(o.registerer)),
		membershipsvc.WithTaskUnassigner(tasks),
	)
	projects := projectsvc.New(stores.Projects, runner, gate, statuses, memberships, tasks,
		projectsvc.WithLogger(o.logger),
	)
	views := view.NewRenderer(runner, statuses, identity, dir, tasks, stores.Projects, history,
		view.WithLogger(o.logger),
		view.WithMetrics(viewmetrics.NewWith(o.registerer)),
	)

	return &App{
		Tokens:      tokens,
		Identity:    identity,
		Statuses:    statuses,
		Directory:   dir,
		Gate:        gate,
		History:     history,
		Tasks:       tasks,
		Memberships: memberships,
		Projects:    projects,
		Views:       views,
	}
}
