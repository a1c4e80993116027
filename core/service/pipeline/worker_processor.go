// Package pipeline classifies unprocessed messages from the mail store and
// delivers them to a staging sink.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"jobtrack_worker/core/domain"
	"jobtrack_worker/core/port/out"
	"jobtrack_worker/core/service/classification"
	"jobtrack_worker/core/service/extraction"
	"jobtrack_worker/core/service/parser"

	"github.com/rs/zerolog"
)

// Settings is the explicit configuration threaded through a run.
type Settings struct {
	Threshold    float64
	Concurrency  int
	FewShotLimit int
	BatchLimit   int
	BodyChars    int
}

// DefaultSettings mirrors the documented configuration defaults.
func DefaultSettings() Settings {
	return Settings{
		Threshold:    0.6,
		Concurrency:  4,
		FewShotLimit: 5,
		BatchLimit:   200,
		BodyChars:    3000,
	}
}

func (s Settings) normalized() Settings {
	d := DefaultSettings()
	if s.Threshold <= 0 {
		s.Threshold = d.Threshold
	}
	if s.Concurrency < 1 {
		s.Concurrency = d.Concurrency
	}
	if s.FewShotLimit < 0 {
		s.FewShotLimit = 0
	}
	if s.BodyChars < 1 {
		s.BodyChars = d.BodyChars
	}
	return s
}

// ModelExtractor is the extraction fallback, implemented by llm.Classifier.
type ModelExtractor interface {
	ExtractWithModel(ctx context.Context, msg *domain.NormalizedMessage) (*domain.ExtractedData, error)
}

// =============================================================================
// Processor
// =============================================================================

// Processor runs one message through the pipeline. It holds no per-message
// state and is safe for concurrent use.
type Processor struct {
	store      out.MailStore
	parser     *parser.Parser
	classifier *classification.Pipeline
	extractor  *extraction.Engine
	model      ModelExtractor
	sink       out.StagingSink
	settings   Settings
	log        zerolog.Logger
}

// NewProcessor wires a processor. model may be nil to disable the extraction fallback.
func NewProcessor(
	store out.MailStore,
	p *parser.Parser,
	classifier *classification.Pipeline,
	extractor *extraction.Engine,
	model ModelExtractor,
	sink out.StagingSink,
	settings Settings,
	log zerolog.Logger,
) *Processor {
	return &Processor{
		store:      store,
		parser:     p,
		classifier: classifier,
		extractor:  extractor,
		model:      model,
		sink:       sink,
		settings:   settings.normalized(),
		log:        log.With().Str("component", "processor").Logger(),
	}
}

// Process never returns an error: every failure is mapped to an outcome.
// Transient failures leave the message untagged so the next batch retries it.
func (p *Processor) Process(ctx context.Context, ref out.MessageRef, examples []domain.Correction) domain.MessageResult {
	start := time.Now()
	res := domain.MessageResult{MessageID: ref.ID, Path: ref.Path}
	finish := func(o domain.Outcome, err error) domain.MessageResult {
		res.Outcome = o
		if err != nil {
			res.Error = err.Error()
		}
		res.Duration = time.Since(start)
		return res
	}

	raw, err := p.store.ReadRaw(ctx, ref)
	if err != nil {
		p.log.Warn().Err(err).Str("message_id", ref.ID).Msg("read failed, deferring")
		return finish(domain.OutcomeDeferred, err)
	}

	msg, err := p.parser.Parse(raw)
	if err != nil {
		p.log.Warn().Err(err).Str("message_id", ref.ID).Msg("unparseable message skipped")
		return finish(domain.OutcomeFailed, err)
	}
	if msg.MessageID == "" {
		msg.MessageID = domain.NormalizeMessageID(ref.ID)
	}

	result, err := p.classifier.Classify(ctx, msg, examples)
	if err != nil {
		p.log.Warn().Err(err).Str("message_id", ref.ID).Msg("classification failed, deferring")
		return finish(domain.OutcomeDeferred, err)
	}
	res.Type = result.Type
	res.Source = result.Source

	if !result.Accepted(p.settings.Threshold) {
		p.markProcessed(ctx, ref.ID, result.Type)
		return finish(domain.OutcomeFiltered, nil)
	}

	result.ExtractedData = result.ExtractedData.Merge(p.extract(ctx, msg))

	record := domain.NewImportRecord(msg, *result, p.settings.BodyChars)
	sum, err := p.sink.Submit(ctx, []domain.ImportRecord{record})
	if err != nil {
		p.log.Warn().Err(err).Str("message_id", ref.ID).Msg("delivery failed, deferring")
		return finish(domain.OutcomeDeferred, err)
	}

	outcome, err := outcomeOf(sum)
	if outcome == domain.OutcomeFailed {
		p.log.Warn().Err(err).Str("message_id", ref.ID).Msg("sink rejected record")
		return finish(outcome, err)
	}
	p.markProcessed(ctx, ref.ID, result.Type)

	p.log.Debug().
		Str("message_id", ref.ID).
		Str("type", string(result.Type)).
		Str("source", string(result.Source)).
		Float64("confidence", result.Confidence).
		Str("outcome", string(outcome)).
		Msg("message processed")
	return finish(outcome, nil)
}

// extract runs the rule cascade and asks the model only when company or
// title is still missing. A model failure keeps the rule result.
func (p *Processor) extract(ctx context.Context, msg *domain.NormalizedMessage) domain.ExtractedData {
	data := p.extractor.Extract(msg)
	if !extraction.NeedsLLMFallback(data) || p.model == nil {
		return data
	}
	llmData, err := p.model.ExtractWithModel(ctx, msg)
	if err != nil || llmData == nil {
		p.log.Debug().Err(err).Str("message_id", msg.MessageID).Msg("model extraction unavailable")
		return data
	}
	return data.Merge(*llmData)
}

// markProcessed tags the message so later queries skip it. A tagging failure
// only means the message is seen again and resolves as a duplicate.
func (p *Processor) markProcessed(ctx context.Context, id string, t domain.EmailType) {
	add := []string{domain.TagProcessed}
	if t.Valid() {
		add = append(add, t.Tag())
	}
	if err := p.store.MutateTags(ctx, id, add, nil); err != nil {
		p.log.Warn().Err(err).Str("message_id", id).Msg("tag mutation failed")
	}
}

func outcomeOf(sum domain.ImportSummary) (domain.Outcome, error) {
	switch {
	case sum.Processed > 0:
		return domain.OutcomeStaged, nil
	case sum.Skipped > 0:
		return domain.OutcomeDuplicate, nil
	case sum.Filtered > 0:
		return domain.OutcomeFiltered, nil
	case sum.Errors > 0:
		return domain.OutcomeFailed, errors.New(strings.Join(sum.ErrorDetails, "; "))
	}
	return domain.OutcomeFailed, errors.New("sink reported no outcome")
}
