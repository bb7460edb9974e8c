package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	pstrings "trellis/pkg/platform/strings"
)

// Server captures process level configuration.
type Server struct {
	Addr          string
	DatabaseURL   string
	JWTSigningKey string
	JWTIssuer     string
	JWTTTL        time.Duration
	AdminAPIToken string
	TxTimeout     time.Duration
	SeedStatuses  []string
	HTTP          HTTPConfig
	Log           LogConfig
	Redis         RedisConfig
	StatusCache   StatusCacheConfig
	RateLimit     RateLimitConfig
	EventFeed     EventFeedConfig
}

// HTTPConfig bounds how long the server spends on one connection or request.
// RequestTimeout applies to API routes and must stay below WriteTimeout.
type HTTPConfig struct {
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	RequestTimeout    time.Duration
	ShutdownTimeout   time.Duration
}

// LogConfig selects slog handler and level.
type LogConfig struct {
	Level  string
	Format string
}

// RedisConfig configures the optional Redis client. An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// StatusCacheConfig controls the status catalog cache-aside layer.
type StatusCacheConfig struct {
	TTL       time.Duration
	KeyPrefix string
}

// RateLimitConfig sets the per-minute request budgets. Zero keeps the
// limiter's defaults.
type RateLimitConfig struct {
	Disabled       bool
	AuthPerMinute  int
	APIPerMinute   int
	RedisKeyPrefix string
}

// EventFeedConfig configures the Kafka task event feed. No brokers disables it.
type EventFeedConfig struct {
	Brokers           []string
	Topic             string
	Partitions        int
	ReplicationFactor int
	RelayInterval     time.Duration
	BatchSize         int
}

// Enabled reports whether any broker is configured.
func (c EventFeedConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

// DefaultStatuses are seeded into an empty status catalog.
var DefaultStatuses = []string{"To Do", "In Progress", "Done"}

// FromEnv builds a Server config from environment variables so main stays lean.
// A .env file in the working directory is loaded first when present; real
// environment variables take precedence over it.
func FromEnv() Server {
	_ = godotenv.Load()

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	seed := pstrings.SplitList(os.Getenv("SEED_STATUSES"))
	if len(seed) == 0 {
		seed = DefaultStatuses
	}

	return Server{
		Addr:          envString("TRELLIS_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		JWTSigningKey: jwtSigningKey,
		JWTIssuer:     envString("JWT_ISSUER", "trellis"),
		JWTTTL:        envDuration("JWT_TTL", 24*time.Hour),
		AdminAPIToken: os.Getenv("ADMIN_API_TOKEN"),
		TxTimeout:     envDuration("TX_TIMEOUT", 5*time.Second),
		SeedStatuses:  seed,
		HTTP: HTTPConfig{
			ReadHeaderTimeout: envDuration("HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       envDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:      envDuration("HTTP_WRITE_TIMEOUT", 45*time.Second),
			IdleTimeout:       envDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			RequestTimeout:    envDuration("HTTP_REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout:   envDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "json"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		StatusCache: StatusCacheConfig{
			TTL:       envDuration("STATUS_CACHE_TTL", 10*time.Minute),
			KeyPrefix: envString("STATUS_CACHE_PREFIX", "trellis:status:"),
		},
		RateLimit: RateLimitConfig{
			Disabled:       os.Getenv("DISABLE_RATE_LIMITING") == "true",
			AuthPerMinute:  envInt("RATE_LIMIT_AUTH_PER_MINUTE", 0),
			APIPerMinute:   envInt("RATE_LIMIT_API_PER_MINUTE", 0),
			RedisKeyPrefix: envString("RATE_LIMIT_PREFIX", "trellis:ratelimit:"),
		},
		EventFeed: EventFeedConfig{
			Brokers:           pstrings.SplitList(os.Getenv("KAFKA_BROKERS")),
			Topic:             envString("KAFKA_TASK_EVENTS_TOPIC", "trellis.task-events"),
			Partitions:        envInt("KAFKA_TOPIC_PARTITIONS", 3),
			ReplicationFactor: envInt("KAFKA_TOPIC_REPLICATION", 1),
			RelayInterval:     envDuration("EVENT_FEED_INTERVAL", time.Second),
			BatchSize:         envInt("EVENT_FEED_BATCH_SIZE", 100),
		},
	}
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
