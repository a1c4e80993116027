package out

import (
	"context"

	"jobtrack_worker/core/domain"

	"github.com/google/uuid"
)

// StagingRepository stores staged imports. Uniqueness on MessageID is enforced by the store.
type StagingRepository interface {
	// Create inserts a pending import. Returns common.ErrDuplicate when MessageID exists.
	Create(ctx context.Context, imp *domain.StagedImport) error
	GetByMessageID(ctx context.Context, messageID string) (*domain.StagedImport, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.StagedImport, error)
	Exists(ctx context.Context, messageID string) (bool, error)
	UpdateClassification(ctx context.Context, messageID string, result domain.ClassificationResult) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ImportStatus, jobID *string) error
	DeleteByMessageID(ctx context.Context, messageID string) (bool, error)
	List(ctx context.Context, opts StagingListOptions) ([]*domain.StagedImport, error)
}

type StagingListOptions struct {
	Status         *domain.ImportStatus
	IncompleteOnly bool
	Limit          int
	Offset         int
}

// StagingSink receives classified messages and corrections. Implemented locally by the
// staging service and remotely by the ingestion endpoint client.
type StagingSink interface {
	Submit(ctx context.Context, records []domain.ImportRecord) (domain.ImportSummary, error)
	Correct(ctx context.Context, corrections []domain.CorrectionRecord) (domain.CorrectionSummary, error)
	Delete(ctx context.Context, messageID string) (bool, error)
}
