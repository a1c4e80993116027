// Package staging implements the idempotent import protocol and reviewer transitions.
package staging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jobtrack_worker/core/domain"
	"jobtrack_worker/core/port/in"
	"jobtrack_worker/core/port/out"
	"jobtrack_worker/core/service/common"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const DefaultThreshold = 0.6

var (
	_ in.SyncService   = (*Service)(nil)
	_ in.ReviewService = (*Service)(nil)
	_ out.StagingSink  = (*Service)(nil)
)

type Config struct {
	Threshold float64
}

// Service owns the staged import table. Uniqueness is enforced by the repository;
// a lost insert race surfaces as common.ErrDuplicate and is counted as skipped.
type Service struct {
	repo      out.StagingRepository
	seen      out.SeenFilter
	threshold float64
	log       zerolog.Logger
	now       func() time.Time
}

// NewService creates the staging service. seen may be nil.
func NewService(repo out.StagingRepository, seen out.SeenFilter, cfg Config, log zerolog.Logger) *Service {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	return &Service{
		repo:      repo,
		seen:      seen,
		threshold: cfg.Threshold,
		log:       log.With().Str("component", "staging").Logger(),
		now:       time.Now,
	}
}

// =============================================================================
// Import
// =============================================================================

// Submit stages each record independently. Entry failures are reported in the
// summary; the returned error is reserved for a cancelled context.
func (s *Service) Submit(ctx context.Context, records []domain.ImportRecord) (domain.ImportSummary, error) {
	var sum domain.ImportSummary
	for i := range records {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		outcome, err := s.submitOne(ctx, &records[i])
		switch outcome {
		case domain.OutcomeStaged:
			sum.Processed++
		case domain.OutcomeDuplicate:
			sum.Skipped++
		case domain.OutcomeFiltered:
			sum.Filtered++
		default:
			sum.Errors++
			sum.ErrorDetails = append(sum.ErrorDetails, fmt.Sprintf("%s: %v", records[i].MessageID, err))
		}
	}
	s.log.Info().
		Int("records", len(records)).
		Int("processed", sum.Processed).
		Int("skipped", sum.Skipped).
		Int("filtered", sum.Filtered).
		Int("errors", sum.Errors).
		Msg("import batch handled")
	return sum, nil
}

func (s *Service) submitOne(ctx context.Context, rec *domain.ImportRecord) (domain.Outcome, error) {
	rec.MessageID = domain.NormalizeMessageID(rec.MessageID)
	if rec.MessageID == "" {
		return domain.OutcomeFailed, fmt.Errorf("%w: missing messageId", common.ErrBadRequest)
	}
	if !rec.Classification.Type.Valid() {
		return domain.OutcomeFailed, fmt.Errorf("%w: unknown type %q", common.ErrBadRequest, rec.Classification.Type)
	}

	if s.seen != nil {
		first, err := s.seen.MarkSeen(ctx, rec.MessageID)
		if err != nil {
			s.log.Warn().Err(err).Str("message_id", rec.MessageID).Msg("seen filter unavailable")
		} else if !first {
			return domain.OutcomeDuplicate, nil
		}
	}

	outcome, err := s.stage(ctx, rec)
	// Only staged or stored ids stay seen; a filtered or failed record may come back.
	if s.seen != nil && outcome != domain.OutcomeStaged && outcome != domain.OutcomeDuplicate {
		if ferr := s.seen.Forget(ctx, rec.MessageID); ferr != nil {
			s.log.Warn().Err(ferr).Str("message_id", rec.MessageID).Msg("seen filter forget failed")
		}
	}
	return outcome, err
}

func (s *Service) stage(ctx context.Context, rec *domain.ImportRecord) (domain.Outcome, error) {
	exists, err := s.repo.Exists(ctx, rec.MessageID)
	if err != nil {
		return domain.OutcomeFailed, fmt.Errorf("lookup: %w", err)
	}
	if exists {
		return domain.OutcomeDuplicate, nil
	}

	if !rec.Classification.Type.IsJobRelated() || !rec.Classification.Accepted(s.threshold) {
		return domain.OutcomeFiltered, nil
	}

	imp := s.newImport(rec)
	if err := s.repo.Create(ctx, imp); err != nil {
		if errors.Is(err, common.ErrDuplicate) {
			return domain.OutcomeDuplicate, nil
		}
		return domain.OutcomeFailed, fmt.Errorf("create: %w", err)
	}
	s.log.Debug().
		Str("message_id", rec.MessageID).
		Str("type", string(rec.Classification.Type)).
		Float64("confidence", rec.Classification.Confidence).
		Msg("staged")
	return domain.OutcomeStaged, nil
}

func (s *Service) newImport(rec *domain.ImportRecord) *domain.StagedImport {
	now := s.now().UTC()
	return &domain.StagedImport{
		ID:             uuid.New(),
		MessageID:      rec.MessageID,
		Subject:        rec.Subject,
		From:           rec.From,
		FromName:       rec.FromName,
		To:             rec.To,
		Date:           rec.Date,
		TextBody:       rec.TextBody,
		IsOutbound:     rec.IsOutbound,
		Classification: rec.Classification,
		Status:         domain.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// =============================================================================
// Corrections
// =============================================================================

// Correct applies reviewer overrides: relabels update in place, promotions stage a
// new import at full confidence, demotions delete.
func (s *Service) Correct(ctx context.Context, corrections []domain.CorrectionRecord) (domain.CorrectionSummary, error) {
	var sum domain.CorrectionSummary
	for _, c := range corrections {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		c.MessageID = domain.NormalizeMessageID(c.MessageID)
		if err := s.correctOne(ctx, c, &sum); err != nil {
			sum.Errors++
			sum.ErrorDetails = append(sum.ErrorDetails, fmt.Sprintf("%s: %v", c.MessageID, err))
			s.log.Warn().Err(err).Str("message_id", c.MessageID).Msg("correction failed")
		}
	}
	return sum, nil
}

func (s *Service) correctOne(ctx context.Context, c domain.CorrectionRecord, sum *domain.CorrectionSummary) error {
	if c.MessageID == "" {
		return fmt.Errorf("%w: missing messageId", common.ErrBadRequest)
	}
	if !c.OriginalType.Valid() || !c.CorrectedType.Valid() {
		return fmt.Errorf("%w: unknown type %q -> %q", common.ErrBadRequest, c.OriginalType, c.CorrectedType)
	}

	switch c.Kind() {
	case domain.CorrectionRelabel:
		existing, err := s.repo.GetByMessageID(ctx, c.MessageID)
		if errors.Is(err, common.ErrNotFound) {
			sum.NotFound++
			return nil
		}
		if err != nil {
			return fmt.Errorf("lookup: %w", err)
		}
		result := existing.Classification
		result.Type = c.CorrectedType
		result.Confidence = domain.ManualConfidence
		result.Source = domain.SourceManual
		result.Reason = fmt.Sprintf("corrected from %s", c.OriginalType)
		if err := s.repo.UpdateClassification(ctx, c.MessageID, result); err != nil {
			if errors.Is(err, common.ErrNotFound) {
				sum.NotFound++
				return nil
			}
			return fmt.Errorf("update: %w", err)
		}
		sum.Updated++

	case domain.CorrectionPromotion:
		if c.Record == nil {
			return fmt.Errorf("%w: promotion needs a message record", common.ErrBadRequest)
		}
		rec := *c.Record
		rec.MessageID = c.MessageID
		rec.Classification.Type = c.CorrectedType
		rec.Classification.Confidence = domain.ManualConfidence
		rec.Classification.Source = domain.SourceManual
		if rec.Classification.Reason == "" {
			rec.Classification.Reason = "promoted from other"
		}
		outcome, err := s.stage(ctx, &rec)
		switch outcome {
		case domain.OutcomeStaged:
			sum.Created++
		case domain.OutcomeDuplicate:
			sum.Skipped++
		default:
			return err
		}

	case domain.CorrectionDemotion:
		deleted, err := s.Delete(ctx, c.MessageID)
		if err != nil {
			return err
		}
		if deleted {
			sum.Deleted++
		} else {
			sum.NotFound++
		}

	default:
		sum.Skipped++
	}
	return nil
}

// Delete removes a staged import; false means nothing was staged.
func (s *Service) Delete(ctx context.Context, messageID string) (bool, error) {
	messageID = domain.NormalizeMessageID(messageID)
	if messageID == "" {
		return false, fmt.Errorf("%w: missing messageId", common.ErrBadRequest)
	}
	deleted, err := s.repo.DeleteByMessageID(ctx, messageID)
	if err != nil {
		return false, fmt.Errorf("delete: %w", err)
	}
	if s.seen != nil {
		if err := s.seen.Forget(ctx, messageID); err != nil {
			s.log.Warn().Err(err).Str("message_id", messageID).Msg("seen filter forget failed")
		}
	}
	return deleted, nil
}

// =============================================================================
// Backfill
// =============================================================================

// Backfill merges data into a staged import's extracted fields, fill-only.
// It reports whether anything changed.
func (s *Service) Backfill(ctx context.Context, messageID string, data domain.ExtractedData) (bool, error) {
	existing, err := s.repo.GetByMessageID(ctx, domain.NormalizeMessageID(messageID))
	if err != nil {
		return false, err
	}
	before := existing.Classification.ExtractedData
	merged := before.Merge(data)
	if merged == before {
		return false, nil
	}
	result := existing.Classification
	result.ExtractedData = merged
	if err := s.repo.UpdateClassification(ctx, existing.MessageID, result); err != nil {
		return false, fmt.Errorf("update: %w", err)
	}
	return true, nil
}

// Incomplete lists pending imports whose company or title is still missing.
func (s *Service) Incomplete(ctx context.Context, limit int) ([]*domain.StagedImport, error) {
	pending := domain.StatusPending
	return s.repo.List(ctx, out.StagingListOptions{Status: &pending, IncompleteOnly: true, Limit: limit})
}

// =============================================================================
// Review
// =============================================================================

func (s *Service) List(ctx context.Context, status *domain.ImportStatus, limit, offset int) ([]*domain.StagedImport, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.repo.List(ctx, out.StagingListOptions{Status: status, Limit: limit, Offset: offset})
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.StagedImport, error) {
	return s.repo.GetByID(ctx, id)
}

// Approve links the import to the job record created for it.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, jobID *string) (*domain.StagedImport, error) {
	return s.transition(ctx, id, domain.StatusApproved, jobID)
}

func (s *Service) Reject(ctx context.Context, id uuid.UUID) (*domain.StagedImport, error) {
	return s.transition(ctx, id, domain.StatusRejected, nil)
}

func (s *Service) Skip(ctx context.Context, id uuid.UUID) (*domain.StagedImport, error) {
	return s.transition(ctx, id, domain.StatusSkipped, nil)
}

// Restore returns a reviewed import to pending and clears its job link.
func (s *Service) Restore(ctx context.Context, id uuid.UUID) (*domain.StagedImport, error) {
	return s.transition(ctx, id, domain.StatusPending, nil)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, next domain.ImportStatus, jobID *string) (*domain.StagedImport, error) {
	imp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !imp.Status.CanTransition(next) {
		return nil, fmt.Errorf("%w: %s -> %s", common.ErrInvalidTransition, imp.Status, next)
	}
	if err := s.repo.UpdateStatus(ctx, id, next, jobID); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}

	s.log.Info().
		Str("id", id.String()).
		Str("message_id", imp.MessageID).
		Str("from", string(imp.Status)).
		Str("to", string(next)).
		Msg("staged import reviewed")
	return s.repo.GetByID(ctx, id)
}
