package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"jobtrack_worker/core/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRunner struct {
	calls   int32
	failFor int32
	release chan struct{}
}

func (r *countingRunner) Run(context.Context) (domain.BatchSummary, error) {
	n := atomic.AddInt32(&r.calls, 1)
	if r.release != nil {
		<-r.release
	}
	if n <= r.failFor {
		return domain.BatchSummary{}, errors.New("mail store busy")
	}
	return domain.BatchSummary{}, nil
}

type countingScanner struct {
	mu    sync.Mutex
	calls int
}

func (s *countingScanner) Scan(context.Context) (domain.ScanSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return domain.ScanSummary{}, nil
}

func testConfig() *PoolConfig {
	cfg := DefaultPoolConfig()
	cfg.RetryBase = time.Millisecond
	return cfg
}

func TestPoolRunsJobs(t *testing.T) {
	runner := &countingRunner{}
	scanner := &countingScanner{}
	p := NewPool(NewHandler(runner, scanner, nil), testConfig(), zerolog.Nop())
	require.NoError(t, p.Start())

	assert.True(t, p.Submit(NewMessage(JobPipelineRun)))
	assert.True(t, p.Submit(NewMessage(JobCorrectionsScan)))
	assert.True(t, p.Submit(NewMessage(JobBackfill)), "disabled job types still run as no-ops")

	require.Eventually(t, func() bool { return p.GetMetrics().JobsProcessed == 3 }, time.Second, 5*time.Millisecond)
	p.Stop(context.Background())

	assert.EqualValues(t, 1, atomic.LoadInt32(&runner.calls))
	assert.Equal(t, 1, scanner.calls)
	assert.False(t, p.Submit(NewMessage(JobPipelineRun)), "stopped pool refuses jobs")
}

func TestPoolCoalescesPendingType(t *testing.T) {
	runner := &countingRunner{release: make(chan struct{})}
	p := NewPool(NewHandler(runner, nil, nil), testConfig(), zerolog.Nop())
	require.NoError(t, p.Start())

	assert.True(t, p.Submit(NewMessage(JobPipelineRun)))
	assert.False(t, p.Submit(NewMessage(JobPipelineRun)))
	close(runner.release)

	require.Eventually(t, func() bool { return p.GetMetrics().JobsProcessed == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, p.Submit(NewMessage(JobPipelineRun)), "type is free again once finished")
	require.Eventually(t, func() bool { return p.GetMetrics().JobsProcessed == 2 }, time.Second, 5*time.Millisecond)
	p.Stop(context.Background())
	assert.EqualValues(t, 1, p.GetMetrics().JobsCoalesced)
}

func TestPoolRetriesFailedJob(t *testing.T) {
	runner := &countingRunner{failFor: 2}
	p := NewPool(NewHandler(runner, nil, nil), testConfig(), zerolog.Nop())
	require.NoError(t, p.Start())

	p.Submit(NewMessage(JobPipelineRun))
	require.Eventually(t, func() bool { return p.GetMetrics().JobsProcessed == 1 }, 2*time.Second, 5*time.Millisecond)
	p.Stop(context.Background())

	assert.EqualValues(t, 3, atomic.LoadInt32(&runner.calls))
	assert.EqualValues(t, 2, p.GetMetrics().JobsRetried)
}

func TestUnknownJobTypeFails(t *testing.T) {
	h := NewHandler(nil, nil, nil)
	assert.Error(t, h.Process(context.Background(), NewMessage("nope")))
}
