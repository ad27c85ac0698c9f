// Package cache implements spec.md §6's optional, best-effort cache: "a
// best-effort key-value store with TTL used for hot lookups (ticker info,
// holder snapshots)... Missing values are never promoted to errors." It
// layers github.com/redis/go-redis/v9 (when configured) over an in-process
// github.com/jellydator/ttlcache/v3 fallback, grounded on the
// Crypto-State-Infrastructure-Contractor pack repo's RedisClient
// (compliance/internal/repository/redis.go) for the Redis wiring and on
// the teacher's own ttlcache usage (services/blockvalidation/Server.go)
// for the in-process layer.
package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/redis/go-redis/v9"
)

// Cache is the best-effort TTL key-value surface §6 describes. A miss is
// never distinguished from an error by callers: Get's ok return is the
// only signal they need.
type Cache interface {
	Get(ctx context.Context, key string) (value string, ok bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// Key builds the `"<prefix>:<arg>_<arg>..."` key shape §6 specifies.
func Key(prefix string, args ...string) string {
	key := prefix + ":"
	for i, a := range args {
		if i > 0 {
			key += "_"
		}
		key += a
	}
	return key
}

// LocalCache is the in-process fallback layer: a ttlcache.Cache used
// directly when no Redis address is configured, or as the layer under a
// Layered cache when Redis is unreachable.
type LocalCache struct {
	c *ttlcache.Cache[string, string]
}

// NewLocal starts a ttlcache instance with its background eviction loop
// running, the same lifecycle the teacher gives processSubtreeNotify.
func NewLocal() *LocalCache {
	c := ttlcache.New[string, string]()
	go c.Start()
	return &LocalCache{c: c}
}

func (l *LocalCache) Get(_ context.Context, key string) (string, bool) {
	item := l.c.Get(key)
	if item == nil {
		return "", false
	}
	return item.Value(), true
}

func (l *LocalCache) Set(_ context.Context, key, value string, ttl time.Duration) {
	l.c.Set(key, value, ttl)
}

func (l *LocalCache) Delete(_ context.Context, key string) {
	l.c.Delete(key)
}

// Stop halts the background eviction goroutine.
func (l *LocalCache) Stop() {
	l.c.Stop()
}

// RedisCache is a thin wrapper over a redis.Client, grounded on the
// Crypto-State-Infrastructure-Contractor pack's RedisClient Get/Set/Delete
// trio, trimmed to the string-value TTL surface this indexer needs.
type RedisCache struct {
	client *redis.Client
}

// NewRedis constructs a RedisCache against addr (host:port). Connectivity
// is never verified here; a layered cache degrades to its local fallback
// on the first failed round trip instead of failing startup.
func NewRedis(addr, password string, db int) *RedisCache {
	return &RedisCache{client: redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})}
}

func (r *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	v, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return "", false
	}
	return v, true
}

func (r *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	_ = r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisCache) Delete(ctx context.Context, key string) {
	_ = r.client.Del(ctx, key).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

// Layered tries Redis first and falls back to an in-process LocalCache on
// any Redis error, so "the cache, if unavailable, degrades to direct
// database reads — never a hard failure" (spec.md §5) holds one level up
// too: a cache backend outage degrades to the local layer rather than
// taking down caching altogether.
type Layered struct {
	remote *RedisCache
	local  *LocalCache
}

// NewLayered builds a Layered cache. remote may be nil, in which case
// Layered behaves exactly like local alone.
func NewLayered(remote *RedisCache, local *LocalCache) *Layered {
	return &Layered{remote: remote, local: local}
}

func (c *Layered) Get(ctx context.Context, key string) (string, bool) {
	if c.remote != nil {
		if v, ok := c.remote.Get(ctx, key); ok {
			return v, true
		}
	}
	return c.local.Get(ctx, key)
}

func (c *Layered) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if c.remote != nil {
		c.remote.Set(ctx, key, value, ttl)
	}
	c.local.Set(ctx, key, value, ttl)
}

func (c *Layered) Delete(ctx context.Context, key string) {
	if c.remote != nil {
		c.remote.Delete(ctx, key)
	}
	c.local.Delete(ctx, key)
}
