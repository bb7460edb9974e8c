package service

import (
	"context"
	"log/slog"
	"time"

	"trellis/internal/ratelimit/metrics"
	"trellis/internal/ratelimit/models"
	dErrors "trellis/pkg/domain-errors"
)

// BucketStore counts requests in a sliding window.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error)
	Reset(ctx context.Context, key string) error
}

// DefaultLimits apply when no override is configured.
var DefaultLimits = map[models.EndpointClass]models.Limit{
	models.ClassAuth: {Requests: 10, Window: time.Minute},
	models.ClassAPI:  {Requests: 300, Window: time.Minute},
}

type Service struct {
	buckets BucketStore
	limits  map[models.EndpointClass]models.Limit
	logger  *slog.Logger
	metrics *metrics.Metrics
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

// WithLimit overrides the budget of one endpoint class. Non-positive values
// keep the default.
func WithLimit(class models.EndpointClass, limit models.Limit) Option {
	return func(s *Service) {
		if limit.Requests > 0 && limit.Window > 0 {
			s.limits[class] = limit
		}
	}
}

func New(buckets BucketStore, opts ...Option) *Service {
	s := &Service{
		buckets: buckets,
		limits:  make(map[models.EndpointClass]models.Limit, len(DefaultLimits)),
	}
	for class, limit := range DefaultLimits {
		s.limits[class] = limit
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Check records one request by subject against the class budget.
func (s *Service) Check(ctx context.Context, class models.EndpointClass, subject string) (*models.Result, error) {
	limit, ok := s.limits[class]
	if !ok || !class.IsValid() {
		return nil, dErrors.New(dErrors.CodeInternal, "unknown endpoint class "+string(class))
	}
	s.metrics.IncChecks(string(class))

	result, err := s.buckets.Allow(ctx, key(class, subject), limit.Requests, limit.Window)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "rate limit check failed")
	}
	if !result.Allowed {
		s.metrics.IncRejected(string(class))
		if s.logger != nil {
			s.logger.WarnContext(ctx, "rate limit exceeded",
				"class", string(class),
				"retry_after", result.RetryAfter,
			)
		}
	}
	return result, nil
}

// Reset clears a subject's window.
func (s *Service) Reset(ctx context.Context, class models.EndpointClass, subject string) error {
	if err := s.buckets.Reset(ctx, key(class, subject)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "rate limit reset failed")
	}
	return nil
}

func key(class models.EndpointClass, subject string) string {
	return string(class) + ":" + subject
}
