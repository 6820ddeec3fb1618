package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// SequencedTaskRunner executes its tasks one at a time, in post order, on
// whichever worker of a shared ThreadPool is free. Many sequenced runners can
// share one pool while each keeps its own FIFO guarantee.
type SequencedTaskRunner struct {
	threadPool    ThreadPool
	queue         *FIFOTaskQueue
	mu            sync.Mutex
	isRunning     bool
	activeRunners int32 // atomic guard for concurrency assertion
	closed        atomic.Bool

	running    atomic.Int32
	executed   atomic.Int64
	rejected   atomic.Int64
	lastTaskAt atomic.Int64

	config RunnerConfig
}

func NewSequencedTaskRunner(threadPool ThreadPool) *SequencedTaskRunner {
	return NewSequencedTaskRunnerWithConfig(threadPool, nil)
}

func NewSequencedTaskRunnerWithConfig(threadPool ThreadPool, config *RunnerConfig) *SequencedTaskRunner {
	return &SequencedTaskRunner{
		threadPool: threadPool,
		queue:      NewFIFOTaskQueue(),
		config:     config.resolve("SequencedTaskRunner"),
	}
}

// Name returns the name of the task runner
func (r *SequencedTaskRunner) Name() string {
	return r.config.Name
}

// GetThreadPool returns the pool this runner posts to.
func (r *SequencedTaskRunner) GetThreadPool() ThreadPool {
	return r.threadPool
}

// PostTask queues task and schedules the run loop if it is idle.
//
// The pool must be running. Once it has stopped, its queue (and with it any
// scheduled run loop) is gone, so the runner closes itself, drops whatever it
// still held and rejects the post.
func (r *SequencedTaskRunner) PostTask(task Task) bool {
	r.mu.Lock()
	if r.closed.Load() {
		r.mu.Unlock()
		r.reject(1, "closed")
		return false
	}
	if !r.threadPool.IsRunning() {
		dropped := r.abandonLocked()
		r.mu.Unlock()
		r.reject(dropped+1, "pool stopped")
		return false
	}
	r.queue.Push(task)
	start := !r.isRunning
	r.isRunning = true
	r.mu.Unlock()

	r.config.Metrics.RecordQueueDepth(r.config.Name, r.queue.Len())

	if start && !r.threadPool.PostInternal(r.runLoop) {
		r.mu.Lock()
		dropped := r.abandonLocked()
		r.mu.Unlock()
		r.reject(dropped, "pool stopped")
		return false
	}
	return true
}

// runLoop executes a single task, then yields the worker back to the pool
// by reposting itself if more work is queued.
func (r *SequencedTaskRunner) runLoop(ctx context.Context) {
	if r.runOne(ctx) && !r.threadPool.PostInternal(r.runLoop) {
		r.mu.Lock()
		dropped := r.abandonLocked()
		r.mu.Unlock()
		r.reject(dropped, "pool stopped")
	}
}

// abandonLocked closes the runner after its pool went away and discards the
// tasks that can no longer run. It returns how many were discarded.
func (r *SequencedTaskRunner) abandonLocked() int {
	r.closed.Store(true)
	r.isRunning = false
	n := r.queue.Len()
	r.queue.Clear()
	return n
}

func (r *SequencedTaskRunner) reject(n int, reason string) {
	for i := 0; i < n; i++ {
		r.rejected.Add(1)
		r.config.RejectedTaskHandler.HandleRejectedTask(r.config.Name, reason)
		r.config.Metrics.RecordTaskRejected(r.config.Name, reason)
	}
}

func (r *SequencedTaskRunner) runOne(ctx context.Context) (more bool) {
	// Assertion: Ensure strictly one goroutine at a time
	if n := atomic.AddInt32(&r.activeRunners, 1); n > 1 {
		panic(fmt.Sprintf("SequencedTaskRunner: concurrent runLoop detected (count=%d)", n))
	}
	defer atomic.AddInt32(&r.activeRunners, -1)

	if item, ok := r.queue.Pop(); ok {
		runCtx := context.WithValue(ctx, taskRunnerKey, r)
		r.running.Store(1)
		runTask(runCtx, &r.config, -1, item.Task)
		r.running.Store(0)
		r.executed.Add(1)
		r.lastTaskAt.Store(time.Now().UnixNano())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.queue.IsEmpty() {
		r.isRunning = false
		return false
	}
	return true
}

// Shutdown stops accepting new tasks. Queued tasks still run as long as the
// pool is running. It may be called from within a task on this runner.
func (r *SequencedTaskRunner) Shutdown() {
	r.mu.Lock()
	r.closed.Store(true)
	r.mu.Unlock()
}

// IsClosed returns true if the runner has been shut down.
func (r *SequencedTaskRunner) IsClosed() bool {
	return r.closed.Load()
}

// WaitIdle blocks until every task posted before the call has run.
func (r *SequencedTaskRunner) WaitIdle(ctx context.Context) error {
	done := make(chan struct{})
	if !r.PostTask(func(context.Context) { close(done) }) {
		return ErrRunnerClosed
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a point-in-time snapshot of the runner.
func (r *SequencedTaskRunner) Stats() RunnerStats {
	stats := RunnerStats{
		Name:     r.config.Name,
		Type:     "sequenced",
		Pending:  r.queue.Len(),
		Running:  int(r.running.Load()),
		Executed: r.executed.Load(),
		Rejected: r.rejected.Load(),
		Closed:   r.closed.Load(),
	}
	if ts := r.lastTaskAt.Load(); ts != 0 {
		stats.LastTaskAt = time.Unix(0, ts)
	}
	return stats
}
