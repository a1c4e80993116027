package metrics

import (
	"database/sql"
	"time"
)

// =============================================================================
// Database Pool Monitor
// =============================================================================

// PoolHealthStatus indicates the health of a connection pool.
type PoolHealthStatus string

const (
	PoolHealthy   PoolHealthStatus = "healthy"
	PoolDegraded  PoolHealthStatus = "degraded"
	PoolUnhealthy PoolHealthStatus = "unhealthy"
)

// DBPoolStats is a trimmed sql.DBStats plus a health assessment.
type DBPoolStats struct {
	OpenConnections    int
	InUse              int
	Idle               int
	MaxOpenConnections int
	WaitCount          int64
	WaitDuration       time.Duration

	Status  PoolHealthStatus
	Message string
}

// GetDBPoolStats reads pool statistics from db and assesses them.
func GetDBPoolStats(db *sql.DB) DBPoolStats {
	if db == nil {
		return DBPoolStats{Status: PoolHealthy}
	}
	s := db.Stats()
	stats := DBPoolStats{
		OpenConnections:    s.OpenConnections,
		InUse:              s.InUse,
		Idle:               s.Idle,
		MaxOpenConnections: s.MaxOpenConnections,
		WaitCount:          s.WaitCount,
		WaitDuration:       s.WaitDuration,
	}
	stats.Status, stats.Message = assess(stats)
	return stats
}

func assess(s DBPoolStats) (PoolHealthStatus, string) {
	if s.MaxOpenConnections == 0 {
		return PoolHealthy, "unlimited connections"
	}

	status, message := PoolHealthy, "pool operating normally"
	utilization := float64(s.InUse) / float64(s.MaxOpenConnections)
	switch {
	case utilization >= 0.95:
		status, message = PoolUnhealthy, "pool nearly exhausted"
	case utilization >= 0.80:
		status, message = PoolDegraded, "high pool utilization"
	}

	if s.WaitCount > 0 && s.WaitDuration > 5*time.Second {
		if status == PoolHealthy {
			status = PoolDegraded
		}
		message = "elevated connection wait times"
	}
	return status, message
}

// ToMap converts stats for JSON health output.
func (s DBPoolStats) ToMap() map[string]any {
	return map[string]any{
		"status":               s.Status,
		"message":              s.Message,
		"open_connections":     s.OpenConnections,
		"in_use":               s.InUse,
		"idle":                 s.Idle,
		"max_open_connections": s.MaxOpenConnections,
		"wait_count":           s.WaitCount,
		"wait_duration_ms":     s.WaitDuration.Milliseconds(),
	}
}
