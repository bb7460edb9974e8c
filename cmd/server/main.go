package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/prometheus/client_golang/prometheus"

	"trellis/internal/app"
	"trellis/internal/audit/feed"
	auditmetrics "trellis/internal/audit/metrics"
	"trellis/internal/platform/config"
	"trellis/internal/platform/httpserver"
	"trellis/internal/platform/logger"
	"trellis/internal/platform/metrics"
	"trellis/internal/platform/redis"
	ratelimitmetrics "trellis/internal/ratelimit/metrics"
	ratelimitmw "trellis/internal/ratelimit/middleware"
	ratelimitmodels "trellis/internal/ratelimit/models"
	ratelimitsvc "trellis/internal/ratelimit/service"
	"trellis/internal/ratelimit/store/bucket"
	statusstore "trellis/internal/status/store/status"
	"trellis/internal/storage/postgres"
	httptransport "trellis/internal/transport/http"
	"trellis/pkg/platform/tx"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Log)
	ctx := context.Background()

	stores, runner, db, err := buildStores(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialise storage", "error", err)
		os.Exit(1)
	}

	var routerOpts []httptransport.Option
	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if rdb != nil {
		stores.Statuses = statusstore.NewCached(stores.Statuses, rdb.Client, cfg.StatusCache.TTL,
			statusstore.WithKeyPrefix(cfg.StatusCache.KeyPrefix),
			statusstore.WithCacheLogger(log),
		)
		routerOpts = append(routerOpts, httptransport.WithHealthCheck("redis", rdb))
		log.Info("status cache enabled", "ttl", cfg.StatusCache.TTL)
	}

	a := app.New(app.Config{
		JWTSigningKey: cfg.JWTSigningKey,
		JWTIssuer:     cfg.JWTIssuer,
		TokenTTL:      cfg.JWTTTL,
		EventFeed:     cfg.EventFeed.Enabled(),
	}, stores, runner, app.WithLogger(log))

	if err := a.Statuses.Seed(ctx, cfg.SeedStatuses); err != nil {
		log.Error("failed to seed statuses", "error", err)
		os.Exit(1)
	}

	stopFeed := func() {}
	if cfg.EventFeed.Enabled() {
		publisher, err := startEventFeed(ctx, cfg.EventFeed, stores.Outbox, runner, log)
		if err != nil {
			log.Error("failed to start event feed", "error", err)
			os.Exit(1)
		}
		routerOpts = append(routerOpts, httptransport.WithHealthCheck("kafka", publisher))
		stopFeed = publisher.stop
	}

	routerOpts = append(routerOpts,
		httptransport.WithMetrics(metrics.NewWith(prometheus.DefaultRegisterer)),
		httptransport.WithRateLimiter(buildRateLimiter(cfg.RateLimit, rdb, log)),
	)
	router := httptransport.NewRouter(a, httptransport.Config{
		AdminAPIToken:  cfg.AdminAPIToken,
		RequestTimeout: cfg.HTTP.RequestTimeout,
	}, log, routerOpts...)
	srv := httpserver.New(cfg.Addr, router, cfg.HTTP)

	go func() {
		log.Info("starting trellis", "addr", cfg.Addr, "postgres", db != nil, "redis", rdb != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	wait := gfshutdown.GracefulShutdown(ctx, cfg.HTTP.ShutdownTimeout, map[string]gfshutdown.Operation{
		"http-server": func(ctx context.Context) error {
			log.Info("shutting down http server")
			return srv.Shutdown(ctx)
		},
		"event-feed": func(context.Context) error {
			stopFeed()
			return nil
		},
		"storage": func(context.Context) error {
			var errs []error
			if rdb != nil {
				errs = append(errs, rdb.Close())
			}
			if db != nil {
				errs = append(errs, db.Close())
			}
			return errors.Join(errs...)
		},
	})
	code := <-wait
	log.Info("trellis stopped", "exit_code", code)
	os.Exit(code)
}

// buildStores picks postgres when DATABASE_URL is set and in-memory stores
// otherwise. The returned db is nil in memory mode.
func buildStores(ctx context.Context, cfg config.Server, log *slog.Logger) (app.Stores, tx.Runner, *sql.DB, error) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		stores, runner := app.MemoryStores()
		return stores, runner, nil, nil
	}

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return app.Stores{}, nil, nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return app.Stores{}, nil, nil, err
	}
	return app.PostgresStores(db), tx.NewPostgresRunner(db, cfg.TxTimeout), db, nil
}

// buildRateLimiter shares windows through Redis when it is configured.
func buildRateLimiter(cfg config.RateLimitConfig, rdb *redis.Client, log *slog.Logger) *ratelimitmw.Middleware {
	var buckets ratelimitsvc.BucketStore = bucket.NewInMemoryBucketStore()
	if rdb != nil {
		buckets = bucket.NewRedisBucketStore(rdb.Client, cfg.RedisKeyPrefix)
	}
	limiter := ratelimitsvc.New(buckets,
		ratelimitsvc.WithLogger(log),
		ratelimitsvc.WithMetrics(ratelimitmetrics.New()),
		ratelimitsvc.WithLimit(ratelimitmodels.ClassAuth, ratelimitmodels.Limit{Requests: cfg.AuthPerMinute, Window: time.Minute}),
		ratelimitsvc.WithLimit(ratelimitmodels.ClassAPI, ratelimitmodels.Limit{Requests: cfg.APIPerMinute, Window: time.Minute}),
	)
	return ratelimitmw.New(limiter, log, ratelimitmw.WithDisabled(cfg.Disabled))
}

type eventFeed struct {
	*feed.KafkaPublisher
	stop func()
}

// startEventFeed creates the topic and runs the outbox relay until stop is called.
func startEventFeed(ctx context.Context, cfg config.EventFeedConfig, outbox feed.Outbox, runner tx.Runner, log *slog.Logger) (*eventFeed, error) {
	publisher, err := feed.NewKafkaPublisher(cfg.Brokers, cfg.Topic)
	if err != nil {
		return nil, err
	}
	setupCtx, cancelSetup := context.WithTimeout(ctx, 30*time.Second)
	defer cancelSetup()
	if err := publisher.EnsureTopic(setupCtx, int32(cfg.Partitions), int16(cfg.ReplicationFactor)); err != nil {
		publisher.Close()
		return nil, err
	}

	relay := feed.NewRelay(outbox, publisher, runner,
		feed.WithInterval(cfg.RelayInterval),
		feed.WithBatchSize(cfg.BatchSize),
		feed.WithLogger(log),
		feed.WithMetrics(auditmetrics.New()),
	)
	relayCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info("event feed relay started", "topic", cfg.Topic, "brokers", cfg.Brokers)
		if err := relay.Run(relayCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("event feed relay stopped", "error", err)
		}
	}()

	return &eventFeed{
		KafkaPublisher: publisher,
		stop: func() {
			cancel()
			<-done
			publisher.Close()
		},
	}, nil
}
