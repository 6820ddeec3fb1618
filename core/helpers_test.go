package core

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testThreadPool is a minimal ThreadPool over TaskScheduler for runner tests.
type testThreadPool struct {
	scheduler *TaskScheduler
	stopCh    chan struct{}
	wg        sync.WaitGroup
	running   atomic.Bool
}

func newTestThreadPool(t *testing.T, workers int) *testThreadPool {
	t.Helper()
	p := &testThreadPool{
		scheduler: NewTaskSchedulerWithConfig(workers, &RunnerConfig{Name: "test-pool", Logger: NewNoOpLogger()}),
		stopCh:    make(chan struct{}),
	}
	p.Start(context.Background())
	t.Cleanup(p.Stop)
	return p
}

func (p *testThreadPool) PostInternal(task Task) bool { return p.scheduler.PostInternal(task) }

func (p *testThreadPool) Start(ctx context.Context) {
	if !p.running.CompareAndSwap(false, true) {
		return
	}
	for i := 0; i < p.scheduler.WorkerCount(); i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				task, ok := p.scheduler.GetWork(p.stopCh)
				if !ok {
					return
				}
				p.scheduler.OnTaskStart()
				task(ctx)
				p.scheduler.OnTaskEnd()
			}
		}(i)
	}
}

func (p *testThreadPool) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	p.scheduler.Shutdown()
	close(p.stopCh)
	p.wg.Wait()
}

func (p *testThreadPool) ID() string           { return "test-pool" }
func (p *testThreadPool) IsRunning() bool      { return p.running.Load() }
func (p *testThreadPool) WorkerCount() int     { return p.scheduler.WorkerCount() }
func (p *testThreadPool) QueuedTaskCount() int { return p.scheduler.QueuedTaskCount() }
func (p *testThreadPool) ActiveTaskCount() int { return p.scheduler.ActiveTaskCount() }

// recordingMetrics counts Metrics calls.
type recordingMetrics struct {
	durations atomic.Int64
	panics    atomic.Int64
	rejected  atomic.Int64
	depth     atomic.Int64
}

func (m *recordingMetrics) RecordTaskDuration(string, time.Duration) { m.durations.Add(1) }
func (m *recordingMetrics) RecordTaskPanic(string, any)              { m.panics.Add(1) }
func (m *recordingMetrics) RecordQueueDepth(_ string, depth int)     { m.depth.Store(int64(depth)) }
func (m *recordingMetrics) RecordTaskRejected(string, string)        { m.rejected.Add(1) }

// recordingPanicHandler captures the last panic value.
type recordingPanicHandler struct {
	mu     sync.Mutex
	values []any
	stacks [][]byte
}

func (h *recordingPanicHandler) HandlePanic(_ context.Context, _ string, _ int, panicInfo any, stack []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.values = append(h.values, panicInfo)
	h.stacks = append(h.stacks, stack)
}

func (h *recordingPanicHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.values)
}

// recordingRejectedHandler counts rejected tasks.
type recordingRejectedHandler struct {
	count atomic.Int64
}

func (h *recordingRejectedHandler) HandleRejectedTask(string, string) { h.count.Add(1) }

func quietConfig(name string) *RunnerConfig {
	return &RunnerConfig{Name: name, Logger: NewNoOpLogger()}
}

func waitIdle(t *testing.T, r DeliveryRunner) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.WaitIdle(ctx); err != nil {
		t.Fatalf("WaitIdle failed: %v", err)
	}
}
