package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trellis/internal/app"
	identityhandler "trellis/internal/identity/handler"
	jwttoken "trellis/internal/jwt_token"
	membershiphandler "trellis/internal/membership/handler"
	"trellis/internal/platform/metrics"
	projecthandler "trellis/internal/project/handler"
	ratelimitmw "trellis/internal/ratelimit/middleware"
	ratelimitmodels "trellis/internal/ratelimit/models"
	statushandler "trellis/internal/status/handler"
	taskhandler "trellis/internal/task/handler"
	dErrors "trellis/pkg/domain-errors"
	"trellis/pkg/platform/httputil"
	adminmw "trellis/pkg/platform/middleware/admin"
	authmw "trellis/pkg/platform/middleware/auth"
	"trellis/pkg/platform/middleware/device"
	"trellis/pkg/platform/middleware/metadata"
	request "trellis/pkg/platform/middleware/request"
	"trellis/pkg/platform/middleware/requesttime"
)

const defaultRequestTimeout = 30 * time.Second

// HealthChecker reports whether an optional backing service is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Config carries the transport-level settings.
type Config struct {
	AdminAPIToken  string
	RequestTimeout time.Duration
}

type Option func(*router)

// WithMetrics records per-route latency and status counts.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *router) {
		r.metrics = m
	}
}

// WithGatherer selects the registry served on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(r *router) {
		r.gatherer = g
	}
}

// WithRateLimiter throttles auth routes per client IP and the authenticated
// API per caller.
func WithRateLimiter(m *ratelimitmw.Middleware) Option {
	return func(r *router) {
		r.limiter = m
	}
}

// WithHealthCheck adds a named dependency to /health.
func WithHealthCheck(name string, check HealthChecker) Option {
	return func(r *router) {
		r.checks[name] = check
	}
}

type router struct {
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	limiter  *ratelimitmw.Middleware
	checks   map[string]HealthChecker
}

// NewRouter mounts every bounded context's handler behind the shared
// middleware chain. The user directory, role catalog, project, membership and
// task routes require a bearer token.
func NewRouter(a *app.App, cfg Config, logger *slog.Logger, opts ...Option) http.Handler {
	rt := &router{
		gatherer: prometheus.DefaultGatherer,
		checks:   map[string]HealthChecker{},
	}
	for _, opt := range opts {
		opt(rt)
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	requireAuth := authmw.RequireAuth(jwttoken.NewJWTServiceAdapter(a.Tokens), logger)
	requireAdmin := adminmw.RequireAdminToken(cfg.AdminAPIToken, logger)

	r := chi.NewRouter()
	r.Use(request.Recovery(logger))
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(device.Middleware)
	r.Use(request.Logger(logger))
	r.Use(rt.metrics.Middleware)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		_, _ = w.Write([]byte(`{"error":"method_not_allowed","error_description":"method not allowed"}`))
	})

	r.Get("/health", rt.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(rt.gatherer, promhttp.HandlerOpts{}))

	identity := identityhandler.New(a.Identity, logger, requireAuth)
	r.Group(func(api chi.Router) {
		api.Use(request.Timeout(timeout))
		api.Use(request.ContentTypeJSON)
		api.Use(requesttime.Middleware)

		api.Group(func(public chi.Router) {
			public.Use(rt.limiter.RateLimit(ratelimitmodels.ClassAuth))
			identity.Register(public)
		})
		statushandler.New(a.Statuses, logger, requireAuth, requireAdmin).Register(api)

		api.Group(func(authed chi.Router) {
			authed.Use(requireAuth)
			authed.Use(rt.limiter.RateLimit(ratelimitmodels.ClassAPI))
			identity.RegisterDirectory(authed)
			projecthandler.New(a.Projects, a.Views, logger).Register(authed)
			membershiphandler.New(a.Memberships, logger).Register(authed)
			taskhandler.New(a.Tasks, a.Views, logger).Register(authed)
		})
	})

	return r
}

func (rt *router) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{"status": "ok"}
	status := http.StatusOK
	for name, check := range rt.checks {
		if err := check.Health(r.Context()); err != nil {
			body[name] = err.Error()
			body["status"] = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		body[name] = "ok"
	}
	httputil.WriteJSON(w, status, body)
}
