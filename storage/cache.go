package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

type backend interface {
	Read(ctx context.Context, token string) ([]byte, bool, error)
	Write(ctx context.Context, token string, data []byte) error
	Delete(ctx context.Context, token string) error
	Ping(ctx context.Context) error
}

// Cache wraps a backend with a Redis read-through cache. Writes refresh the
// cached blob and deletes evict it.
type Cache struct {
	base   backend
	redis  *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
// A zero TTL disables population but still evicts on delete.
func NewCache(base backend, client *redis.Client, ttl time.Duration, logger *log.Logger) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Cache{base: base, redis: client, ttl: ttl, logger: logger}
}

func (c *Cache) Read(ctx context.Context, token string) ([]byte, bool, error) {
	if data, ok := c.load(ctx, token); ok {
		return data, true, nil
	}

	data, found, err := c.base.Read(ctx, token)
	if err != nil || !found {
		return data, found, err
	}

	c.store(ctx, token, data)
	return data, true, nil
}

func (c *Cache) Write(ctx context.Context, token string, data []byte) error {
	if err := c.base.Write(ctx, token, data); err != nil {
		// The backend may or may not hold data now; drop the cached copy.
		c.evict(ctx, token)
		return err
	}
	c.store(ctx, token, data)
	return nil
}

func (c *Cache) Delete(ctx context.Context, token string) error {
	if err := c.base.Delete(ctx, token); err != nil {
		return err
	}
	c.evict(ctx, token)
	return nil
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.base.Ping(ctx)
}

func (c *Cache) load(ctx context.Context, token string) ([]byte, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, cacheKey(token)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			// On redis errors fall back to the backing storage without failing.
			c.logger.WithError(err).Debug("list cache read failed")
			_ = c.redis.Del(ctx, cacheKey(token)).Err()
		}
		return nil, false
	}
	return data, true
}

func (c *Cache) store(ctx context.Context, token string, data []byte) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	if err := c.redis.Set(ctx, cacheKey(token), data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Debug("list cache write failed")
	}
}

func (c *Cache) evict(ctx context.Context, token string) {
	if c.redis == nil {
		return
	}
	if err := c.redis.Del(ctx, cacheKey(token)).Err(); err != nil {
		// A stale copy may be served until the TTL expires.
		c.logger.WithError(err).WithField("ttl", c.ttl.String()).Warn("list cache eviction failed")
	}
}

func cacheKey(token string) string {
	return "listcache:" + token
}
