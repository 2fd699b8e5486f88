package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultCacheTTL is how long a published snapshot stays readable.
const DefaultCacheTTL = 5 * time.Minute

// ErrNoSnapshot is returned by Fetch when nothing was published for a tenant.
var ErrNoSnapshot = errors.New("no cached stats")

// Cache stores the latest snapshot per tenant in redis so other processes
// (dashboards, admin commands) can read it without reaching the engine.
type Cache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewCache wraps a redis client. A non-positive ttl uses DefaultCacheTTL.
func NewCache(client redis.Cmdable, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{client: client, ttl: ttl}
}

// CacheKey is the redis key holding a tenant's snapshot.
func CacheKey(tenantID string) string { return "sync_stats_" + tenantID }

// Publish implements Sink.
func (c *Cache) Publish(ctx context.Context, tenantID string, s Stats) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	if err := c.client.Set(ctx, CacheKey(tenantID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache stats for %s: %w", tenantID, err)
	}
	return nil
}

// Fetch reads the last snapshot published for tenantID.
func (c *Cache) Fetch(ctx context.Context, tenantID string) (Stats, error) {
	raw, err := c.client.Get(ctx, CacheKey(tenantID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Stats{}, fmt.Errorf("tenant %s: %w", tenantID, ErrNoSnapshot)
	}
	if err != nil {
		return Stats{}, fmt.Errorf("read cached stats for %s: %w", tenantID, err)
	}
	var s Stats
	if err := json.Unmarshal(raw, &s); err != nil {
		return Stats{}, fmt.Errorf("decode cached stats for %s: %w", tenantID, err)
	}
	return s, nil
}
