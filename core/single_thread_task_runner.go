package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrRunnerClosed is returned by WaitIdle on a runner that no longer accepts tasks.
var ErrRunnerClosed = errors.New("runner is closed")

// SingleThreadTaskRunner binds a dedicated goroutine to execute tasks sequentially.
// All tasks posted to it run on the same goroutine, in post order.
//
// Posting never blocks the caller: tasks are buffered in an unbounded FIFO
// queue and the loop is woken through a one-slot signal channel.
type SingleThreadTaskRunner struct {
	queue  *FIFOTaskQueue
	signal chan struct{}

	// Lifecycle control
	ctx    context.Context
	cancel context.CancelFunc

	// mu orders PostTask against Shutdown so no task is queued after the
	// loop has been told to exit.
	mu           sync.Mutex
	closed       atomic.Bool
	stopped      chan struct{}
	shutdownOnce sync.Once

	running    atomic.Int32
	executed   atomic.Int64
	rejected   atomic.Int64
	lastTaskAt atomic.Int64

	config RunnerConfig
}

// NewSingleThreadTaskRunner creates and starts a new SingleThreadTaskRunner.
func NewSingleThreadTaskRunner() *SingleThreadTaskRunner {
	return NewSingleThreadTaskRunnerWithConfig(nil)
}

// NewSingleThreadTaskRunnerWithConfig creates and starts a runner with custom handlers.
// It immediately spawns a dedicated goroutine for task execution.
func NewSingleThreadTaskRunnerWithConfig(config *RunnerConfig) *SingleThreadTaskRunner {
	ctx, cancel := context.WithCancel(context.Background())
	r := &SingleThreadTaskRunner{
		queue:   NewFIFOTaskQueue(),
		signal:  make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
		stopped: make(chan struct{}),
		config:  config.resolve("SingleThreadTaskRunner"),
	}

	go r.runLoop()

	return r
}

// Name returns the name of the task runner
func (r *SingleThreadTaskRunner) Name() string {
	return r.config.Name
}

// PostTask queues task behind every task posted before it.
func (r *SingleThreadTaskRunner) PostTask(task Task) bool {
	r.mu.Lock()
	if r.closed.Load() {
		r.mu.Unlock()
		r.rejected.Add(1)
		r.config.RejectedTaskHandler.HandleRejectedTask(r.config.Name, "closed")
		r.config.Metrics.RecordTaskRejected(r.config.Name, "closed")
		return false
	}
	r.queue.Push(task)
	r.mu.Unlock()

	r.config.Metrics.RecordQueueDepth(r.config.Name, r.queue.Len())

	select {
	case r.signal <- struct{}{}:
	default:
	}
	return true
}

// Shutdown marks the runner as closed. Tasks already queued still execute,
// then the loop exits. It may be called from within a task on this runner.
func (r *SingleThreadTaskRunner) Shutdown() {
	r.shutdownOnce.Do(func() {
		r.mu.Lock()
		r.closed.Store(true)
		r.mu.Unlock()
		r.cancel()
	})
}

// Stop shuts the runner down and waits for the loop to finish its queue.
// Calling Stop from within a task on this runner deadlocks; use Shutdown there.
func (r *SingleThreadTaskRunner) Stop() {
	r.Shutdown()
	<-r.stopped
}

// IsClosed returns true once Shutdown or Stop has been called.
func (r *SingleThreadTaskRunner) IsClosed() bool {
	return r.closed.Load()
}

// Done is closed when the loop has exited.
func (r *SingleThreadTaskRunner) Done() <-chan struct{} {
	return r.stopped
}

// runLoop is the core of this runner, it occupies a dedicated goroutine
func (r *SingleThreadTaskRunner) runLoop() {
	defer close(r.stopped)

	// Tasks get a context that outlives Shutdown so queued work can finish.
	runCtx := context.WithValue(context.Background(), taskRunnerKey, r)

	for {
		if item, ok := r.queue.Pop(); ok {
			r.running.Store(1)
			runTask(runCtx, &r.config, -1, item.Task)
			r.running.Store(0)
			r.executed.Add(1)
			r.lastTaskAt.Store(time.Now().UnixNano())
			continue
		}

		select {
		case <-r.signal:
		case <-r.ctx.Done():
			// Closed: PostTask can no longer add work, so one more empty
			// check is enough to know the queue is drained.
			if r.queue.IsEmpty() {
				return
			}
		}
	}
}

// WaitIdle blocks until all currently queued tasks have completed execution.
// It posts a barrier task and waits for it to run.
func (r *SingleThreadTaskRunner) WaitIdle(ctx context.Context) error {
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
func (r *SingleThreadTaskRunner) Stats() RunnerStats {
	stats := RunnerStats{
		Name:     r.config.Name,
		Type:     "single_thread",
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
