package cache

import (
	"context"
	"time"

	"jobtrack_worker/core/port/out"
	rediscache "jobtrack_worker/pkg/cache"
)

const DefaultSeenTTL = 24 * time.Hour

// SeenFilter marks message ids with SETNX so concurrent producers skip the DB lookup.
type SeenFilter struct {
	cache *rediscache.RedisCache
	ttl   time.Duration
}

var _ out.SeenFilter = (*SeenFilter)(nil)

func NewSeenFilter(c *rediscache.RedisCache, ttl time.Duration) *SeenFilter {
	if ttl <= 0 {
		ttl = DefaultSeenTTL
	}
	return &SeenFilter{cache: c, ttl: ttl}
}

func (f *SeenFilter) MarkSeen(ctx context.Context, messageID string) (bool, error) {
	return f.cache.SetNX(ctx, f.cache.Key("seen", messageID), f.ttl)
}

func (f *SeenFilter) Forget(ctx context.Context, messageID string) error {
	return f.cache.Delete(ctx, f.cache.Key("seen", messageID))
}
