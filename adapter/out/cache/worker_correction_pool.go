// Package cache holds Redis- and memory-backed adapters: the correction ring and
// the producer-side seen filter.
package cache

import (
	"context"
	"fmt"

	"jobtrack_worker/core/domain"
	"jobtrack_worker/core/port/out"
	rediscache "jobtrack_worker/pkg/cache"

	"github.com/goccy/go-json"
)

// CorrectionPool stores each correction pool as a Redis list trimmed to its cap.
type CorrectionPool struct {
	cache *rediscache.RedisCache
}

var _ out.CorrectionRepository = (*CorrectionPool)(nil)

func NewCorrectionPool(c *rediscache.RedisCache) *CorrectionPool {
	return &CorrectionPool{cache: c}
}

func (p *CorrectionPool) key(pool domain.CorrectionPool) string {
	return p.cache.Key("corrections", string(pool))
}

func (p *CorrectionPool) Append(ctx context.Context, pool domain.CorrectionPool, c domain.Correction, limit int) error {
	if limit <= 0 {
		return fmt.Errorf("correction pool limit must be positive, got %d", limit)
	}
	if err := p.cache.PushCapped(ctx, p.key(pool), c, limit); err != nil {
		return fmt.Errorf("push correction: %w", err)
	}
	return nil
}

func (p *CorrectionPool) Recent(ctx context.Context, pool domain.CorrectionPool, n int) ([]domain.Correction, error) {
	raw, err := p.cache.Range(ctx, p.key(pool), n)
	if err != nil {
		return nil, fmt.Errorf("range corrections: %w", err)
	}
	list := make([]domain.Correction, 0, len(raw))
	for _, r := range raw {
		var c domain.Correction
		if err := json.Unmarshal([]byte(r), &c); err != nil {
			// Skip entries written by an incompatible version.
			continue
		}
		list = append(list, c)
	}
	return list, nil
}
