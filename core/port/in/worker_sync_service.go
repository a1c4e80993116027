package in

import (
	"context"

	"jobtrack_worker/core/domain"

	"github.com/google/uuid"
)

// SyncService is the ingestion endpoint's view of the staging protocol.
type SyncService interface {
	Submit(ctx context.Context, records []domain.ImportRecord) (domain.ImportSummary, error)
	Correct(ctx context.Context, corrections []domain.CorrectionRecord) (domain.CorrectionSummary, error)
	Delete(ctx context.Context, messageID string) (bool, error)
}

// ReviewService drives reviewer transitions on staged imports.
type ReviewService interface {
	List(ctx context.Context, status *domain.ImportStatus, limit, offset int) ([]*domain.StagedImport, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.StagedImport, error)
	Approve(ctx context.Context, id uuid.UUID, jobID *string) (*domain.StagedImport, error)
	Reject(ctx context.Context, id uuid.UUID) (*domain.StagedImport, error)
	Skip(ctx context.Context, id uuid.UUID) (*domain.StagedImport, error)
	Restore(ctx context.Context, id uuid.UUID) (*domain.StagedImport, error)
}
