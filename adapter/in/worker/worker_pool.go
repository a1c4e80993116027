package worker

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-pkgz/pool"
	"github.com/rs/zerolog"
)

// =============================================================================
// go-pkgz/pool based job pool
// =============================================================================

// PoolConfig holds job pool configuration.
type PoolConfig struct {
	Workers          int                       // concurrent jobs; 1 keeps batches from overlapping
	WorkerChanSize   int                       // buffered jobs per worker
	JobTimeout       time.Duration             // default timeout
	JobTimeoutByType map[JobType]time.Duration // per job type
	MaxRetries       int
	RetryBase        time.Duration
}

// DefaultPoolConfig returns default pool configuration.
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		Workers:        1,
		WorkerChanSize: 16,
		JobTimeout:     5 * time.Minute,
		JobTimeoutByType: map[JobType]time.Duration{
			JobPipelineRun:     30 * time.Minute, // LLM fallback on a full batch is slow
			JobCorrectionsScan: 5 * time.Minute,
			JobBackfill:        15 * time.Minute,
		},
		MaxRetries: 3,
		RetryBase:  time.Second,
	}
}

// Pool runs background jobs one type at a time. A job type that is already
// queued or running is not queued again.
type Pool struct {
	handler *Handler
	config  *PoolConfig

	pool *pool.WorkerGroup[*Message]

	ctx    context.Context
	cancel context.CancelFunc

	metrics *PoolMetrics
	log     zerolog.Logger

	mu      sync.Mutex
	started bool
	pending map[JobType]bool
	retries sync.WaitGroup
}

// PoolMetrics holds pool metrics.
type PoolMetrics struct {
	JobsProcessed  int64
	JobsFailed     int64
	JobsCoalesced  int64
	JobsRetried    int64
	AvgProcessTime int64 // milliseconds
}

// jobWorker implements pool.Worker for job messages.
type jobWorker struct {
	pool *Pool
}

// Do implements pool.Worker.
func (w *jobWorker) Do(ctx context.Context, msg *Message) error {
	return w.pool.processJob(ctx, msg)
}

func NewPool(handler *Handler, config *PoolConfig, log zerolog.Logger) *Pool {
	if config == nil {
		config = DefaultPoolConfig()
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	return &Pool{
		handler: handler,
		config:  config,
		metrics: &PoolMetrics{},
		log:     log.With().Str("component", "worker_pool").Logger(),
		pending: make(map[JobType]bool),
	}
}

// Start starts the worker pool.
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return nil
	}

	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.pool = pool.New[*Message](p.config.Workers, &jobWorker{pool: p}).
		WithBatchSize(1).
		WithWorkerChanSize(p.config.WorkerChanSize).
		WithContinueOnError()

	if err := p.pool.Go(p.ctx); err != nil {
		p.cancel()
		return err
	}
	p.started = true

	p.log.Info().Int("workers", p.config.Workers).Msg("worker pool started")
	return nil
}

// Stop waits for running jobs up to the context deadline, then cancels them.
func (p *Pool) Stop(ctx context.Context) {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()

	if err := p.pool.Close(ctx); err != nil {
		p.log.Warn().Err(err).Msg("error closing pool")
	}
	p.cancel()
	p.retries.Wait()

	p.log.Info().
		Int64("processed", atomic.LoadInt64(&p.metrics.JobsProcessed)).
		Int64("failed", atomic.LoadInt64(&p.metrics.JobsFailed)).
		Msg("worker pool stopped")
}

// Submit queues a job. It returns false when the pool is stopped or a job of
// the same type is already pending.
func (p *Pool) Submit(msg *Message) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return false
	}
	if p.pending[msg.Type] && msg.Retries == 0 {
		atomic.AddInt64(&p.metrics.JobsCoalesced, 1)
		return false
	}
	p.pending[msg.Type] = true
	p.pool.Submit(msg)
	return true
}

func (p *Pool) getJobTimeout(jobType JobType) time.Duration {
	if timeout, ok := p.config.JobTimeoutByType[jobType]; ok {
		return timeout
	}
	return p.config.JobTimeout
}

// processJob runs a single job with its timeout and schedules retries.
func (p *Pool) processJob(ctx context.Context, msg *Message) error {
	start := time.Now()

	timeout := p.getJobTimeout(msg.Type)
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := p.handler.Process(jobCtx, msg)
	p.updateAvgProcessTime(time.Since(start).Milliseconds())

	if err == nil {
		atomic.AddInt64(&p.metrics.JobsProcessed, 1)
		p.clearPending(msg.Type)
		return nil
	}

	p.log.Error().
		Err(err).
		Str("job_id", msg.ID).
		Str("job_type", msg.Type).
		Int("retries", msg.Retries).
		Msg("job processing failed")

	if msg.Retries >= p.config.MaxRetries || ctx.Err() != nil {
		atomic.AddInt64(&p.metrics.JobsFailed, 1)
		p.clearPending(msg.Type)
		p.log.Warn().Str("job_id", msg.ID).Str("job_type", msg.Type).Msg("job dropped after max retries")
		return err
	}

	// Exponential backoff with jitter: base * 2^retries + random(0, base/2)
	msg.Retries++
	atomic.AddInt64(&p.metrics.JobsRetried, 1)
	backoff := p.config.RetryBase*time.Duration(1<<msg.Retries) + time.Duration(rand.Int63n(int64(p.config.RetryBase)/2+1))

	p.retries.Add(1)
	go func() {
		defer p.retries.Done()
		select {
		case <-time.After(backoff):
			if !p.Submit(msg) {
				p.clearPending(msg.Type)
			}
		case <-ctx.Done():
			p.clearPending(msg.Type)
		}
	}()
	return err
}

func (p *Pool) clearPending(jobType JobType) {
	p.mu.Lock()
	delete(p.pending, jobType)
	p.mu.Unlock()
}

// updateAvgProcessTime keeps a simple moving average.
func (p *Pool) updateAvgProcessTime(elapsed int64) {
	current := atomic.LoadInt64(&p.metrics.AvgProcessTime)
	if current == 0 {
		atomic.StoreInt64(&p.metrics.AvgProcessTime, elapsed)
		return
	}
	atomic.StoreInt64(&p.metrics.AvgProcessTime, (current*9+elapsed)/10)
}

// GetMetrics returns current pool metrics.
func (p *Pool) GetMetrics() PoolMetrics {
	return PoolMetrics{
		JobsProcessed:  atomic.LoadInt64(&p.metrics.JobsProcessed),
		JobsFailed:     atomic.LoadInt64(&p.metrics.JobsFailed),
		JobsCoalesced:  atomic.LoadInt64(&p.metrics.JobsCoalesced),
		JobsRetried:    atomic.LoadInt64(&p.metrics.JobsRetried),
		AvgProcessTime: atomic.LoadInt64(&p.metrics.AvgProcessTime),
	}
}
