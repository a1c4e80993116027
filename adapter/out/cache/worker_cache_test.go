package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"jobtrack_worker/core/domain"
	rediscache "jobtrack_worker/pkg/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *rediscache.RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, rediscache.NewRedisCache(client, "jobtrack")
}

func TestCorrectionPoolEvictsOldest(t *testing.T) {
	_, rc := newRedis(t)
	pool := NewCorrectionPool(rc)
	ctx := context.Background()

	for i := 1; i <= 51; i++ {
		c := domain.Correction{
			MessageID:     fmt.Sprintf("m%02d@x", i),
			OriginalType:  domain.TypeOther,
			CorrectedType: domain.TypeInterview,
			HighVariance:  true,
		}
		require.NoError(t, pool.Append(ctx, domain.PoolFewShot, c, 50))
	}

	all, err := pool.Recent(ctx, domain.PoolFewShot, 100)
	require.NoError(t, err)
	require.Len(t, all, 50)
	assert.Equal(t, "m51@x", all[0].MessageID)
	assert.Equal(t, "m02@x", all[49].MessageID)

	top, err := pool.Recent(ctx, domain.PoolFewShot, 5)
	require.NoError(t, err)
	assert.Len(t, top, 5)

	other, err := pool.Recent(ctx, domain.PoolRuleFeedback, 5)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestCorrectionPoolRejectsZeroLimit(t *testing.T) {
	_, rc := newRedis(t)
	err := NewCorrectionPool(rc).Append(context.Background(), domain.PoolFewShot, domain.Correction{}, 0)
	assert.Error(t, err)
}

func TestRedisSeenFilter(t *testing.T) {
	mr, rc := newRedis(t)
	f := NewSeenFilter(rc, time.Minute)
	ctx := context.Background()

	first, err := f.MarkSeen(ctx, "a@x")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := f.MarkSeen(ctx, "a@x")
	require.NoError(t, err)
	assert.False(t, again)

	require.NoError(t, f.Forget(ctx, "a@x"))
	first, err = f.MarkSeen(ctx, "a@x")
	require.NoError(t, err)
	assert.True(t, first)

	mr.FastForward(2 * time.Minute)
	first, err = f.MarkSeen(ctx, "a@x")
	require.NoError(t, err)
	assert.True(t, first, "entry should expire after ttl")
}

func TestMemorySeenFilter(t *testing.T) {
	f := NewMemorySeenFilter(L1Config{MaxItems: 2, TTL: time.Minute})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return now }
	ctx := context.Background()

	ok, _ := f.MarkSeen(ctx, "a")
	assert.True(t, ok)
	ok, _ = f.MarkSeen(ctx, "a")
	assert.False(t, ok)

	f.MarkSeen(ctx, "b")
	f.MarkSeen(ctx, "c") // evicts a
	assert.Equal(t, 2, f.Len())
	ok, _ = f.MarkSeen(ctx, "a")
	assert.True(t, ok, "least recently marked id should have been evicted")

	now = now.Add(2 * time.Minute)
	ok, _ = f.MarkSeen(ctx, "c")
	assert.True(t, ok, "expired id is new again")

	require.NoError(t, f.Forget(ctx, "c"))
	ok, _ = f.MarkSeen(ctx, "c")
	assert.True(t, ok)
}
