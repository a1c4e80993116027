package out

import (
	"context"

	"jobtrack_worker/core/domain"
)

// CorrectionRepository is a bounded append-only log per pool.
type CorrectionRepository interface {
	// Append adds c to the pool and evicts the oldest entries beyond limit.
	Append(ctx context.Context, pool domain.CorrectionPool, c domain.Correction, limit int) error
	// Recent returns up to n entries, newest first.
	Recent(ctx context.Context, pool domain.CorrectionPool, n int) ([]domain.Correction, error)
}
