package status

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"trellis/internal/status/models"
	id "trellis/pkg/domain"
)

// Store is the persistence contract the cache sits in front of.
type Store interface {
	Create(ctx context.Context, st *models.Status) error
	FindByID(ctx context.Context, statusID id.StatusID) (*models.Status, error)
	FindByName(ctx context.Context, name string) (*models.Status, error)
	List(ctx context.Context) ([]models.Status, error)
	Delete(ctx context.Context, statusID id.StatusID) error
}

const defaultKeyPrefix = "trellis:status:"

// Cached is a cache-aside layer over Store backed by Redis. Redis failures
// are logged and the call falls through to the underlying store.
type Cached struct {
	next   Store
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

type CachedOption func(*Cached)

func WithKeyPrefix(prefix string) CachedOption {
	return func(c *Cached) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

func WithCacheLogger(logger *slog.Logger) CachedOption {
	return func(c *Cached) {
		c.logger = logger
	}
}

func NewCached(next Store, client *redis.Client, ttl time.Duration, opts ...CachedOption) *Cached {
	c := &Cached{
		next:   next,
		client: client,
		ttl:    ttl,
		prefix: defaultKeyPrefix,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *Cached) idKey(statusID id.StatusID) string { return c.prefix + "id:" + statusID.String() }
func (c *Cached) nameKey(name string) string      { return c.prefix + "name:" + strings.ToLower(name) }
func (c *Cached) listKey() string                 { return c.prefix + "all" }

func (c *Cached) Create(ctx context.Context, st *models.Status) error {
	if err := c.next.Create(ctx, st); err != nil {
		return err
	}
	c.invalidate(ctx, c.listKey(), c.idKey(st.ID), c.nameKey(st.Name))
	return nil
}

func (c *Cached) FindByID(ctx context.Context, statusID id.StatusID) (*models.Status, error) {
	var st models.Status
	if c.get(ctx, c.idKey(statusID), &st) {
		return &st, nil
	}
	found, err := c.next.FindByID(ctx, statusID)
	if err != nil {
		return nil, err
	}
	c.set(ctx, c.idKey(statusID), found)
	return found, nil
}

func (c *Cached) FindByName(ctx context.Context, name string) (*models.Status, error) {
	var st models.Status
	if c.get(ctx, c.nameKey(name), &st) {
		return &st, nil
	}
	found, err := c.next.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	c.set(ctx, c.nameKey(name), found)
	return found, nil
}

func (c *Cached) List(ctx context.Context) ([]models.Status, error) {
	var list []models.Status
	if c.get(ctx, c.listKey(), &list) {
		return list, nil
	}
	list, err := c.next.List(ctx)
	if err != nil {
		return nil, err
	}
	c.set(ctx, c.listKey(), list)
	return list, nil
}

func (c *Cached) Delete(ctx context.Context, statusID id.StatusID) error {
	existing, err := c.next.FindByID(ctx, statusID)
	if err != nil {
		return err
	}
	if err := c.next.Delete(ctx, statusID); err != nil {
		return err
	}
	c.invalidate(ctx, c.listKey(), c.idKey(statusID), c.nameKey(existing.Name))
	return nil
}

func (c *Cached) get(ctx context.Context, key string, dest any) bool {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		c.warn(ctx, "status cache read failed", key, err)
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		c.warn(ctx, "status cache entry is corrupt", key, err)
		return false
	}
	return true
}

func (c *Cached) set(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		c.warn(ctx, "status cache encode failed", key, err)
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.warn(ctx, "status cache write failed", key, err)
	}
}

func (c *Cached) invalidate(ctx context.Context, keys ...string) {
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.warn(ctx, "status cache invalidation failed", keys[0], err)
	}
}

func (c *Cached) warn(ctx context.Context, msg, key string, err error) {
	if c.logger == nil {
		return
	}
	c.logger.WarnContext(ctx, msg, "key", key, "error", err)
}
