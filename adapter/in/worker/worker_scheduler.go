package worker

import (
	"context"
	"time"

	"jobtrack_worker/pkg/logger"
)

// =============================================================================
// Scheduler - periodic batch and correction scan
// =============================================================================

const (
	DefaultInterval    = 5 * time.Minute
	DefaultStartupWait = 10 * time.Second
)

// Scheduler submits the configured job types to the pool on a fixed interval.
type Scheduler struct {
	pool        *Pool
	jobs        []JobType
	interval    time.Duration
	startupWait time.Duration
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}
}

func NewScheduler(p *Pool, interval time.Duration, jobs ...JobType) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		pool:        p,
		jobs:        jobs,
		interval:    interval,
		startupWait: DefaultStartupWait,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	logger.Info("[Scheduler] Starting, interval %s", s.interval)
	go s.run()
}

// Stop ends the loop. Jobs already queued are left to the pool.
func (s *Scheduler) Stop() {
	logger.Info("[Scheduler] Stopping...")
	s.cancel()
	<-s.done
}

func (s *Scheduler) run() {
	defer close(s.done)

	select {
	case <-s.ctx.Done():
		return
	case <-time.After(s.startupWait):
	}
	s.tick()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			logger.Info("[Scheduler] Stopped")
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Scheduler) tick() {
	for _, job := range s.jobs {
		if !s.pool.Submit(NewMessage(job)) {
			logger.Debug("[Scheduler] %s still pending, not queued", job)
		}
	}
}
