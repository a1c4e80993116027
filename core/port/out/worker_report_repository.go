// Package out defines outbound ports (driven ports) for the application.
package out

import (
	"context"

	"jobtrack_worker/core/domain"
)

// =============================================================================
// ReportRepository (MongoDB - batch run reports)
// =============================================================================

type ReportRepository interface {
	Save(ctx context.Context, summary *domain.BatchSummary) error
	GetByRunID(ctx context.Context, runID string) (*domain.BatchSummary, error)
	ListRecent(ctx context.Context, limit int) ([]*domain.BatchSummary, error)
}
