package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"jobtrack_worker/core/domain"
	"jobtrack_worker/core/port/out"

	"github.com/go-pkgz/pool"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ExampleSource supplies few-shot corrections, implemented by correction.Service.
type ExampleSource interface {
	RecentExamples(ctx context.Context, n int) ([]domain.Correction, error)
}

// Runner executes one batch: a single candidate query, then a bounded worker
// pool over the results.
type Runner struct {
	store     out.MailStore
	processor *Processor
	examples  ExampleSource
	reports   out.ReportRepository
	settings  Settings
	log       zerolog.Logger
}

// NewRunner wires a runner. examples and reports may be nil.
func NewRunner(store out.MailStore, processor *Processor, examples ExampleSource, reports out.ReportRepository, settings Settings, log zerolog.Logger) *Runner {
	return &Runner{
		store:     store,
		processor: processor,
		examples:  examples,
		reports:   reports,
		settings:  settings.normalized(),
		log:       log.With().Str("component", "runner").Logger(),
	}
}

// messageWorker implements pool.Worker for one batch.
type messageWorker struct {
	processor *Processor
	examples  []domain.Correction

	mu      sync.Mutex
	results []domain.MessageResult
}

// Do implements pool.Worker. Results are appended in completion order.
func (w *messageWorker) Do(ctx context.Context, ref out.MessageRef) error {
	res := w.processor.Process(ctx, ref, w.examples)
	w.mu.Lock()
	w.results = append(w.results, res)
	w.mu.Unlock()
	return nil
}

// Run processes every unprocessed candidate once. Only a failed candidate
// query fails the run; per-message failures land in the summary.
func (r *Runner) Run(ctx context.Context) (domain.BatchSummary, error) {
	started := time.Now()
	runID := uuid.New().String()
	log := r.log.With().Str("run_id", runID).Logger()

	var (
		refs     []out.MessageRef
		examples []domain.Correction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		refs, err = r.store.Query(gctx, out.TagQuery{
			Exclude: []string{domain.TagProcessed},
			Limit:   r.settings.BatchLimit,
		})
		if err != nil {
			return fmt.Errorf("query candidates: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if r.examples == nil || r.settings.FewShotLimit == 0 {
			return nil
		}
		ex, err := r.examples.RecentExamples(gctx, r.settings.FewShotLimit)
		if err != nil {
			// prompts work without examples
			log.Warn().Err(err).Msg("few-shot examples unavailable")
			return nil
		}
		examples = ex
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.BatchSummary{}, err
	}

	log.Info().Int("candidates", len(refs)).Int("examples", len(examples)).Int("workers", r.settings.Concurrency).Msg("batch started")

	worker := &messageWorker{processor: r.processor, examples: examples}
	if len(refs) > 0 {
		wg := pool.New[out.MessageRef](r.settings.Concurrency, worker).
			WithBatchSize(1).
			WithContinueOnError()
		if err := wg.Go(ctx); err != nil {
			return domain.BatchSummary{}, fmt.Errorf("start pool: %w", err)
		}
		for _, ref := range refs {
			wg.Submit(ref)
		}
		if err := wg.Close(ctx); err != nil {
			log.Warn().Err(err).Msg("pool closed with error")
		}
	}

	summary := domain.Summarize(runID, started, len(refs), worker.results)
	r.save(ctx, &summary)

	log.Info().
		Int("processed", summary.Processed).
		Int("staged", summary.Staged).
		Int("skipped", summary.Skipped).
		Int("filtered", summary.Filtered).
		Int("deferred", summary.Deferred).
		Int("failed", summary.Failed).
		Dur("duration", summary.Duration).
		Msg("batch finished")
	return summary, nil
}

func (r *Runner) save(ctx context.Context, summary *domain.BatchSummary) {
	if r.reports == nil {
		return
	}
	if err := r.reports.Save(ctx, summary); err != nil {
		r.log.Warn().Err(err).Str("run_id", summary.RunID).Msg("failed to save run report")
	}
}
