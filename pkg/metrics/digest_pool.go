package metrics

import (
	"database/sql"
	"time"
)

type PoolHealthStatus string

const (
	PoolHealthy   PoolHealthStatus = "healthy"
	PoolDegraded  PoolHealthStatus = "degraded"
	PoolUnhealthy PoolHealthStatus = "unhealthy"
)

// PoolHealth summarizes a database/sql pool for the dev stats endpoint.
type PoolHealth struct {
	Status      PoolHealthStatus `json:"status"`
	Utilization float64          `json:"utilization"`
	InUse       int              `json:"inUse"`
	Idle        int              `json:"idle"`
	MaxOpen     int              `json:"maxOpen"`
	WaitCount   int64            `json:"waitCount"`
	WaitMs      int64            `json:"waitMs"`
	Message     string           `json:"message,omitempty"`
}

// AssessPool grades pool utilization; long cumulative waits degrade a healthy pool.
func AssessPool(stats sql.DBStats) PoolHealth {
	h := PoolHealth{
		Status:    PoolHealthy,
		InUse:     stats.InUse,
		Idle:      stats.Idle,
		MaxOpen:   stats.MaxOpenConnections,
		WaitCount: stats.WaitCount,
		WaitMs:    stats.WaitDuration.Milliseconds(),
		Message:   "pool operating normally",
	}
	if stats.MaxOpenConnections == 0 {
		h.Message = "unlimited connections"
		return h
	}

	h.Utilization = float64(stats.InUse) / float64(stats.MaxOpenConnections)
	switch {
	case h.Utilization >= 0.95:
		h.Status, h.Message = PoolUnhealthy, "pool nearly exhausted"
	case h.Utilization >= 0.80:
		h.Status, h.Message = PoolDegraded, "high pool utilization"
	}

	if stats.WaitCount > 0 && stats.WaitDuration > 5*time.Second {
		if h.Status == PoolHealthy {
			h.Status = PoolDegraded
		}
		h.Message = "elevated connection wait times"
	}
	return h
}
