package abac

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by Cache.Get when no decision is stored.
var ErrCacheMiss = errors.New("abac: cache miss")

// Cache stores decisions and per-principal profile versions.
type Cache interface {
	Get(ctx context.Context, key string) (bool, error)
	Set(ctx context.Context, key string, allow bool, ttl time.Duration) error
	// Version returns the principal's profile version, 0 when never bumped.
	Version(ctx context.Context, principal string) (int64, error)
	// BumpVersion increments the version, orphaning cached decisions.
	BumpVersion(ctx context.Context, principal string) error
	Close() error
}

// LRUCache is an in-process cache. Versions are kept outside the LRU so
// they are never evicted.
type LRUCache struct {
	decisions *expirable.LRU[string, bool]
	mu        sync.Mutex
	versions  map[string]int64
}

// NewLRUCache builds an expiring LRU holding at most size decisions.
func NewLRUCache(size int, ttl time.Duration) *LRUCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &LRUCache{
		decisions: expirable.NewLRU[string, bool](size, nil, ttl),
		versions:  make(map[string]int64),
	}
}

func (c *LRUCache) Get(_ context.Context, key string) (bool, error) {
	v, ok := c.decisions.Get(key)
	if !ok {
		return false, ErrCacheMiss
	}
	return v, nil
}

// Set stores the decision; the TTL fixed at construction applies.
func (c *LRUCache) Set(_ context.Context, key string, allow bool, _ time.Duration) error {
	c.decisions.Add(key, allow)
	return nil
}

func (c *LRUCache) Version(_ context.Context, principal string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[principal], nil
}

func (c *LRUCache) BumpVersion(_ context.Context, principal string) error {
	c.mu.Lock()
	c.versions[principal]++
	c.mu.Unlock()
	return nil
}

func (c *LRUCache) Len() int { return c.decisions.Len() }

func (c *LRUCache) Close() error {
	c.decisions.Purge()
	return nil
}

// RedisCache shares decisions and versions across server instances.
type RedisCache struct {
	rdb redis.UniversalClient
}

// NewRedisCache wraps a go-redis client.
func NewRedisCache(rdb redis.UniversalClient) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func (c *RedisCache) Get(ctx context.Context, key string) (bool, error) {
	s, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, ErrCacheMiss
	}
	if err != nil {
		return false, err
	}
	return s == "1", nil
}

func (c *RedisCache) Set(ctx context.Context, key string, allow bool, ttl time.Duration) error {
	v := "0"
	if allow {
		v = "1"
	}
	return c.rdb.Set(ctx, key, v, ttl).Err()
}

func (c *RedisCache) Version(ctx context.Context, principal string) (int64, error) {
	s, err := c.rdb.Get(ctx, versionKey(principal)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(s, 10, 64)
}

func (c *RedisCache) BumpVersion(ctx context.Context, principal string) error {
	return c.rdb.Incr(ctx, versionKey(principal)).Err()
}

func (c *RedisCache) Close() error { return c.rdb.Close() }

func versionKey(principal string) string { return "abac:profile_version:" + principal }
