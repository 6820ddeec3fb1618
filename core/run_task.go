package core

import (
	"context"
	"runtime/debug"
	"time"
)

// runTask executes a single task, converting a panic into handler and
// metric calls so the calling loop keeps running.
func runTask(ctx context.Context, config *RunnerConfig, workerID int, task Task) (panicked bool) {
	start := time.Now()
	defer func() {
		config.Metrics.RecordTaskDuration(config.Name, time.Since(start))
		if rec := recover(); rec != nil {
			panicked = true
			config.Metrics.RecordTaskPanic(config.Name, rec)
			config.PanicHandler.HandlePanic(ctx, config.Name, workerID, rec, debug.Stack())
		}
	}()
	task(ctx)
	return false
}
