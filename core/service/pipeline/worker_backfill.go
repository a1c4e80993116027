package pipeline

import (
	"context"
	"fmt"

	"jobtrack_worker/core/domain"
	"jobtrack_worker/core/service/extraction"

	"github.com/rs/zerolog"
)

// BackfillStore is the slice of the staging service the backfill needs.
type BackfillStore interface {
	Incomplete(ctx context.Context, limit int) ([]*domain.StagedImport, error)
	Backfill(ctx context.Context, messageID string, data domain.ExtractedData) (bool, error)
}

// BackfillSummary counts one backfill pass.
type BackfillSummary struct {
	Scanned   int `json:"scanned"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Errors    int `json:"errors"`
}

// Backfiller re-runs extraction over pending imports with missing fields.
type Backfiller struct {
	store     BackfillStore
	extractor *extraction.Engine
	model     ModelExtractor
	limit     int
	log       zerolog.Logger
}

func NewBackfiller(store BackfillStore, extractor *extraction.Engine, model ModelExtractor, limit int, log zerolog.Logger) *Backfiller {
	if limit <= 0 {
		limit = 200
	}
	return &Backfiller{
		store:     store,
		extractor: extractor,
		model:     model,
		limit:     limit,
		log:       log.With().Str("component", "backfill").Logger(),
	}
}

// Run merges newly extracted fields fill-only; existing values are kept.
func (b *Backfiller) Run(ctx context.Context) (BackfillSummary, error) {
	var sum BackfillSummary
	imports, err := b.store.Incomplete(ctx, b.limit)
	if err != nil {
		return sum, fmt.Errorf("list incomplete: %w", err)
	}

	for _, imp := range imports {
		sum.Scanned++
		msg := imp.Message()

		data := b.extractor.Extract(msg)
		if extraction.NeedsLLMFallback(imp.Classification.ExtractedData.Merge(data)) && b.model != nil {
			if llmData, err := b.model.ExtractWithModel(ctx, msg); err == nil && llmData != nil {
				data = data.Merge(*llmData)
			} else if err != nil {
				b.log.Debug().Err(err).Str("message_id", imp.MessageID).Msg("model extraction unavailable")
			}
		}

		changed, err := b.store.Backfill(ctx, imp.MessageID, data)
		switch {
		case err != nil:
			sum.Errors++
			b.log.Warn().Err(err).Str("message_id", imp.MessageID).Msg("backfill failed")
		case changed:
			sum.Updated++
		default:
			sum.Unchanged++
		}
	}

	b.log.Info().Int("scanned", sum.Scanned).Int("updated", sum.Updated).Int("errors", sum.Errors).Msg("backfill finished")
	return sum, nil
}
