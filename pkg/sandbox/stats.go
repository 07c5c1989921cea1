package sandbox

import "sync/atomic"

// Stats accumulates resource counters across all queries. All fields are
// atomics; Snapshot gives a consistent-enough read for the stats endpoint.
type Stats struct {
	totalQueries  atomic.Int64
	failedQueries atomic.Int64
	rowsProcessed atomic.Int64
	execTimeMicro atomic.Int64
}

// StatsSnapshot is the exported view of the counters.
type StatsSnapshot struct {
	TotalQueries    int64   `json:"total_queries"`
	FailedQueries   int64   `json:"failed_queries"`
	RowsProcessed   int64   `json:"rows_processed"`
	TotalExecTimeMs float64 `json:"total_exec_time_ms"`
}

func (s *Stats) recordSuccess(rows int, execMs float64) {
	s.totalQueries.Add(1)
	s.rowsProcessed.Add(int64(rows))
	s.execTimeMicro.Add(int64(execMs * 1000))
}

func (s *Stats) recordFailure() {
	s.totalQueries.Add(1)
	s.failedQueries.Add(1)
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		TotalQueries:    s.totalQueries.Load(),
		FailedQueries:   s.failedQueries.Load(),
		RowsProcessed:   s.rowsProcessed.Load(),
		TotalExecTimeMs: float64(s.execTimeMicro.Load()) / 1000,
	}
}
