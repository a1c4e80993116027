// Package correction records human overrides and scans the mail store for them.
package correction

import (
	"context"
	"fmt"
	"time"

	"jobtrack_worker/core/domain"
	"jobtrack_worker/core/port/out"
	"jobtrack_worker/core/service/classification"

	"github.com/rs/zerolog"
)

const (
	DefaultPoolCap      = 50
	DefaultPreviewChars = 500
)

// Service is the bounded few-shot store. Corrections a rule could have produced
// go to the rule-feedback pool; the rest feed model prompts.
type Service struct {
	repo         out.CorrectionRepository
	rules        *classification.RuleEngine
	poolCap      int
	previewChars int
	log          zerolog.Logger
	now          func() time.Time
}

type Config struct {
	PoolCap      int
	PreviewChars int
}

func NewService(repo out.CorrectionRepository, rules *classification.RuleEngine, cfg Config, log zerolog.Logger) *Service {
	if cfg.PoolCap <= 0 {
		cfg.PoolCap = DefaultPoolCap
	}
	if cfg.PreviewChars <= 0 {
		cfg.PreviewChars = DefaultPreviewChars
	}
	return &Service{
		repo:         repo,
		rules:        rules,
		poolCap:      cfg.PoolCap,
		previewChars: cfg.PreviewChars,
		log:          log.With().Str("component", "correction_store").Logger(),
		now:          time.Now,
	}
}

// Record stores a correction with the message context captured now.
func (s *Service) Record(ctx context.Context, msg *domain.NormalizedMessage, original, corrected domain.EmailType) (domain.Correction, error) {
	c := domain.Correction{
		MessageID:     domain.NormalizeMessageID(msg.MessageID),
		OriginalType:  original,
		CorrectedType: corrected,
		Subject:       msg.Subject,
		From:          msg.From,
		IsOutbound:    msg.IsOutbound,
		BodyPreview:   msg.BodyPreview(s.previewChars),
		HighVariance:  true,
		CorrectedAt:   s.now().UTC(),
	}
	if m, ok := s.rules.Match(msg); ok {
		c.HighVariance = false
		c.MatchedRule = m.RuleID
	}

	if err := s.repo.Append(ctx, c.Pool(), c, s.poolCap); err != nil {
		return c, fmt.Errorf("append correction: %w", err)
	}

	s.log.Info().
		Str("message_id", c.MessageID).
		Str("original", string(original)).
		Str("corrected", string(corrected)).
		Bool("high_variance", c.HighVariance).
		Str("matched_rule", c.MatchedRule).
		Msg("correction recorded")
	return c, nil
}

// RecentExamples returns up to n high-variance corrections, newest first.
func (s *Service) RecentExamples(ctx context.Context, n int) ([]domain.Correction, error) {
	if n <= 0 {
		return nil, nil
	}
	return s.repo.Recent(ctx, domain.PoolFewShot, n)
}

// RuleFeedback returns corrections that point at rules needing a fix.
func (s *Service) RuleFeedback(ctx context.Context, n int) ([]domain.Correction, error) {
	return s.repo.Recent(ctx, domain.PoolRuleFeedback, n)
}
