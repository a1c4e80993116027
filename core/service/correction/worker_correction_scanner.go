package correction

import (
	"context"
	"fmt"
	"strings"

	"jobtrack_worker/core/domain"
	"jobtrack_worker/core/port/out"
	"jobtrack_worker/core/service/parser"

	"github.com/rs/zerolog"
)

// Extractor fills extracted fields for promoted messages.
type Extractor interface {
	Extract(msg *domain.NormalizedMessage) domain.ExtractedData
}

// Scanner finds messages whose classification tag was changed by a human.
// A message tagged label-was/<original> whose current job/<type> differs is an override.
type Scanner struct {
	store       out.MailStore
	parser      *parser.Parser
	corrections *Service
	sink        out.StagingSink
	extractor   Extractor
	bodyChars   int
	limit       int
	log         zerolog.Logger
}

type ScannerConfig struct {
	BodyChars int
	Limit     int
}

func NewScanner(store out.MailStore, p *parser.Parser, corrections *Service, sink out.StagingSink, extractor Extractor, cfg ScannerConfig, log zerolog.Logger) *Scanner {
	if cfg.BodyChars <= 0 {
		cfg.BodyChars = 3000
	}
	return &Scanner{
		store:       store,
		parser:      p,
		corrections: corrections,
		sink:        sink,
		extractor:   extractor,
		bodyChars:   cfg.BodyChars,
		limit:       cfg.Limit,
		log:         log.With().Str("component", "correction_scanner").Logger(),
	}
}

// Scan processes every sentinel-tagged message. Per-message failures are counted,
// logged and leave the sentinel in place for the next scan.
func (s *Scanner) Scan(ctx context.Context) (domain.ScanSummary, error) {
	var summary domain.ScanSummary

	refs, err := s.store.Query(ctx, out.TagQuery{Prefix: domain.WasPrefix, Limit: s.limit})
	if err != nil {
		return summary, fmt.Errorf("query sentinel tags: %w", err)
	}

	for _, ref := range refs {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		summary.Scanned++
		s.scanOne(ctx, ref, &summary)
	}

	s.log.Info().
		Int("scanned", summary.Scanned).
		Int("recorded", summary.Recorded).
		Int("high_variance", summary.HighVariance).
		Int("unknown_origin", summary.UnknownOrigin).
		Int("unchanged", summary.Unchanged).
		Int("errors", summary.Errors).
		Msg("correction scan finished")
	return summary, nil
}

func (s *Scanner) scanOne(ctx context.Context, ref out.MessageRef, summary *domain.ScanSummary) {
	log := s.log.With().Str("message_id", ref.ID).Logger()

	tags, err := s.store.Tags(ctx, ref.ID)
	if err != nil {
		summary.Errors++
		log.Warn().Err(err).Msg("read tags failed")
		return
	}

	original, wasTags, ok := originalType(tags)
	if !ok {
		// No usable label-was tag: origin unknown, the correction is dropped.
		summary.UnknownOrigin++
		log.Warn().Strs("tags", wasTags).Msg("correction with unknown original label skipped")
		return
	}
	current := currentType(tags, original)

	if current == original {
		summary.Unchanged++
		if err := s.store.MutateTags(ctx, ref.ID, nil, wasTags); err != nil {
			log.Warn().Err(err).Msg("clear sentinel failed")
		}
		return
	}

	raw, err := s.store.ReadRaw(ctx, ref)
	if err != nil {
		summary.Errors++
		log.Warn().Err(err).Msg("read message failed")
		return
	}
	msg, err := s.parser.Parse(raw)
	if err != nil {
		summary.Errors++
		log.Warn().Err(err).Msg("parse failed")
		return
	}
	if msg.MessageID == "" {
		msg.MessageID = domain.NormalizeMessageID(ref.ID)
	}

	rec := domain.CorrectionRecord{
		MessageID:     msg.MessageID,
		OriginalType:  original,
		CorrectedType: current,
	}
	if rec.Kind() == domain.CorrectionPromotion {
		result := domain.ClassificationResult{
			Type:       current,
			Confidence: domain.ManualConfidence,
			Source:     domain.SourceManual,
			Reason:     "manual correction",
		}
		if s.extractor != nil {
			result.ExtractedData = s.extractor.Extract(msg)
		}
		imp := domain.NewImportRecord(msg, result, s.bodyChars)
		rec.Record = &imp
	}

	res, err := s.sink.Correct(ctx, []domain.CorrectionRecord{rec})
	summary.Sink.Add(res)
	if err != nil || res.Errors > 0 {
		summary.Errors++
		log.Warn().Err(err).Strs("details", res.ErrorDetails).Msg("forward correction failed")
		return
	}

	c, err := s.corrections.Record(ctx, msg, original, current)
	if err != nil {
		summary.Errors++
		log.Warn().Err(err).Msg("record correction failed")
		return
	}
	summary.Recorded++
	if c.HighVariance {
		summary.HighVariance++
	}

	// A reviewer may add the new label without dropping the old one.
	remove := wasTags
	if stale := domain.ClassificationPrefix + string(original); hasTag(tags, stale) {
		remove = append(append([]string(nil), wasTags...), stale)
	}
	if err := s.store.MutateTags(ctx, ref.ID, nil, remove); err != nil {
		summary.Errors++
		log.Warn().Err(err).Msg("clear sentinel failed")
	}
}

// originalType reads the label-was/<type> sentinel. ok is false when no sentinel
// carries a known label or several disagree.
func originalType(tags []string) (domain.EmailType, []string, bool) {
	var was []string
	var found domain.EmailType
	for _, t := range tags {
		if !strings.HasPrefix(t, domain.WasPrefix) {
			continue
		}
		was = append(was, t)
		parsed, ok := domain.ParseEmailType(strings.TrimPrefix(t, domain.WasPrefix))
		if !ok {
			continue
		}
		if found != "" && found != parsed {
			return "", was, false
		}
		found = parsed
	}
	return found, was, found != ""
}

// currentType reads the job/<type> tag, preferring one that differs from
// original. A message without one is "other".
func currentType(tags []string, original domain.EmailType) domain.EmailType {
	current := domain.TypeOther
	for _, t := range tags {
		if !strings.HasPrefix(t, domain.ClassificationPrefix) {
			continue
		}
		parsed, ok := domain.ParseEmailType(strings.TrimPrefix(t, domain.ClassificationPrefix))
		if !ok {
			continue
		}
		if parsed != original {
			return parsed
		}
		current = parsed
	}
	return current
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
