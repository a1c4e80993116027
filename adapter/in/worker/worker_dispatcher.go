package worker

import (
	"context"
	"fmt"

	"jobtrack_worker/core/domain"
	"jobtrack_worker/core/service/pipeline"
	"jobtrack_worker/pkg/logger"
)

// BatchRunner runs one classification batch.
type BatchRunner interface {
	Run(ctx context.Context) (domain.BatchSummary, error)
}

// CorrectionScanner replays reviewer overrides from the mail store.
type CorrectionScanner interface {
	Scan(ctx context.Context) (domain.ScanSummary, error)
}

// Backfiller fills missing extraction fields on pending imports.
type Backfiller interface {
	Run(ctx context.Context) (pipeline.BackfillSummary, error)
}

// Handler dispatches jobs by type. A nil collaborator disables its job type.
type Handler struct {
	runner   BatchRunner
	scanner  CorrectionScanner
	backfill Backfiller
}

func NewHandler(runner BatchRunner, scanner CorrectionScanner, backfill Backfiller) *Handler {
	return &Handler{runner: runner, scanner: scanner, backfill: backfill}
}

func (h *Handler) Process(ctx context.Context, msg *Message) error {
	logger.Debug("Processing job: %s", msg.Type)

	switch msg.Type {
	case JobPipelineRun:
		if h.runner == nil {
			return nil
		}
		_, err := h.runner.Run(ctx)
		return err

	case JobCorrectionsScan:
		if h.scanner == nil {
			return nil
		}
		sum, err := h.scanner.Scan(ctx)
		if err != nil {
			return err
		}
		if sum.Errors > 0 {
			logger.Warn("correction scan finished with %d errors", sum.Errors)
		}
		return nil

	case JobBackfill:
		if h.backfill == nil {
			return nil
		}
		_, err := h.backfill.Run(ctx)
		return err

	default:
		return fmt.Errorf("unknown job type: %s", msg.Type)
	}
}
