package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLatencyTrackerPercentiles(t *testing.T) {
	lt := NewLatencyTracker(100)
	for i := 1; i <= 100; i++ {
		lt.Record(time.Duration(i) * time.Millisecond)
	}

	s := lt.Stats()
	assert.EqualValues(t, 100, s.Count)
	assert.Equal(t, time.Millisecond, s.Min)
	assert.Equal(t, 100*time.Millisecond, s.Max)
	assert.Equal(t, 50*time.Millisecond, s.P50)
	assert.Equal(t, 95*time.Millisecond, s.P95)
	assert.Equal(t, 50500*time.Microsecond, s.Avg)
}

func TestLatencyTrackerWindow(t *testing.T) {
	lt := NewLatencyTracker(10)
	for i := 0; i < 25; i++ {
		lt.Record(time.Second)
	}
	s := lt.Stats()
	assert.EqualValues(t, 25, s.Count)
	assert.LessOrEqual(t, s.Samples, 10)

	assert.Equal(t, LatencyStats{}, NewLatencyTracker(0).Stats())
}

func TestAssessPool(t *testing.T) {
	status, _ := assess(DBPoolStats{InUse: 2, MaxOpenConnections: 10})
	assert.Equal(t, PoolHealthy, status)

	status, _ = assess(DBPoolStats{InUse: 8, MaxOpenConnections: 10})
	assert.Equal(t, PoolDegraded, status)

	status, _ = assess(DBPoolStats{InUse: 10, MaxOpenConnections: 10})
	assert.Equal(t, PoolUnhealthy, status)

	status, msg := assess(DBPoolStats{InUse: 1, MaxOpenConnections: 10, WaitCount: 3, WaitDuration: 10 * time.Second})
	assert.Equal(t, PoolDegraded, status)
	assert.Equal(t, "elevated connection wait times", msg)

	assert.Equal(t, PoolHealthy, GetDBPoolStats(nil).Status)
}
