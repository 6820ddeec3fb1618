package core

import "time"

// RunnerStats represents runtime observability state for a task runner.
type RunnerStats struct {
	Name       string
	Type       string
	Pending    int
	Running    int
	Executed   int64
	Rejected   int64
	Closed     bool
	LastTaskAt time.Time
}

// PoolStats represents runtime observability state for a thread pool.
type PoolStats struct {
	ID      string
	Workers int
	Queued  int
	Active  int
	Running bool
}
