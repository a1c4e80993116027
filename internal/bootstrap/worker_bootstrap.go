package bootstrap

import (
	"context"
	"os"
	"time"

	"jobtrack_worker/adapter/in/worker"
	"jobtrack_worker/internal/stream"
	"jobtrack_worker/pkg/logger"
)

// consumerGroup is shared by every worker process so each trigger runs once.
const consumerGroup = "jobtrack-workers"

// Worker runs the background jobs of the server: periodic batches, correction
// scans and backfills, one at a time. With Redis it also takes on-demand
// triggers from the job stream.
type Worker struct {
	pool      *worker.Pool
	scheduler *worker.Scheduler
	consumer  *stream.Consumer
	cancel    context.CancelFunc
}

// NewWorker needs a mail store and a sink in deps.
func NewWorker(deps *Dependencies, interval time.Duration) *Worker {
	var backfill worker.Backfiller
	if b := deps.NewBackfiller(); b != nil {
		backfill = b
	}
	handler := worker.NewHandler(deps.NewRunner(), deps.NewScanner(), backfill)

	pool := worker.NewPool(handler, worker.DefaultPoolConfig(), deps.Log)

	w := &Worker{
		pool:      pool,
		scheduler: worker.NewScheduler(pool, interval, jobTypes(deps)...),
	}
	if deps.Redis != nil {
		rs := stream.NewRedisStream(deps.Redis, consumerGroup, deps.Log)
		w.consumer = stream.NewConsumer(rs, pool, consumerName())
	}
	return w
}

// jobTypes lists what this deployment can run.
func jobTypes(deps *Dependencies) []worker.JobType {
	jobs := []worker.JobType{worker.JobPipelineRun, worker.JobCorrectionsScan}
	if deps.Staging != nil {
		jobs = append(jobs, worker.JobBackfill)
	}
	return jobs
}

func consumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return host + "-" + time.Now().UTC().Format("150405")
}

func (w *Worker) Start() error {
	if err := w.pool.Start(); err != nil {
		return err
	}
	w.scheduler.Start()

	if w.consumer != nil {
		ctx, cancel := context.WithCancel(context.Background())
		w.cancel = cancel
		if err := w.consumer.Start(ctx); err != nil {
			// Scheduled jobs still run; only on-demand triggers are lost.
			logger.Warn("Job stream unavailable: %v", err)
			w.consumer = nil
		}
	}
	logger.Info("Worker started")
	return nil
}

// Stop ends scheduling, then waits for the running job until ctx expires.
func (w *Worker) Stop(ctx context.Context) {
	if w.cancel != nil {
		w.cancel()
	}
	w.scheduler.Stop()
	if w.consumer != nil {
		select {
		case <-w.consumer.Done():
		case <-ctx.Done():
		}
	}
	w.pool.Stop(ctx)

	m := w.pool.GetMetrics()
	logger.Info("Worker stopped: %d jobs processed, %d failed, %d retried", m.JobsProcessed, m.JobsFailed, m.JobsRetried)
}
