package visionrunner

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/Swind/go-vision-runner/core"
)

// GoroutineThreadPool manages a set of worker goroutines
// Responsible for pulling tasks from the scheduler and executing them
type GoroutineThreadPool struct {
	id        string
	workers   int
	scheduler *core.TaskScheduler
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	running   bool
	runningMu sync.RWMutex
}

var _ core.ThreadPool = (*GoroutineThreadPool)(nil)

// NewGoroutineThreadPool creates a new GoroutineThreadPool
func NewGoroutineThreadPool(id string, workers int) *GoroutineThreadPool {
	return NewGoroutineThreadPoolWithConfig(id, workers, nil)
}

// NewGoroutineThreadPoolWithConfig creates a pool whose scheduler uses the given handlers.
func NewGoroutineThreadPoolWithConfig(id string, workers int, config *core.RunnerConfig) *GoroutineThreadPool {
	if config == nil {
		config = &core.RunnerConfig{}
	}
	cfg := *config
	if cfg.Name == "" {
		cfg.Name = id
	}
	return &GoroutineThreadPool{
		id:        id,
		workers:   workers,
		scheduler: core.NewTaskSchedulerWithConfig(workers, &cfg),
	}
}

// Start starts all worker goroutines
func (tg *GoroutineThreadPool) Start(ctx context.Context) {
	tg.runningMu.Lock()
	defer tg.runningMu.Unlock()

	if tg.running {
		return // Already running
	}

	tg.ctx, tg.cancel = context.WithCancel(ctx)
	tg.running = true

	for i := 0; i < tg.scheduler.WorkerCount(); i++ {
		tg.wg.Add(1)
		go tg.workerLoop(i, tg.ctx)
	}
}

// Stop stops the thread pool. Queued tasks are discarded.
func (tg *GoroutineThreadPool) Stop() {
	// Always shutdown scheduler to release queued tasks
	// even if pool was never started
	tg.scheduler.Shutdown()

	tg.runningMu.Lock()
	if !tg.running {
		tg.runningMu.Unlock()
		return
	}
	tg.runningMu.Unlock()

	if tg.cancel != nil {
		tg.cancel()
	}
	tg.Join()

	tg.runningMu.Lock()
	tg.running = false
	tg.runningMu.Unlock()
}

// StopGraceful stops the thread pool gracefully, waiting for queued tasks to complete
// Returns error if timeout is exceeded before tasks complete
func (tg *GoroutineThreadPool) StopGraceful(timeout time.Duration) error {
	tg.runningMu.Lock()
	if !tg.running {
		tg.runningMu.Unlock()
		return nil
	}
	tg.runningMu.Unlock()

	err := tg.scheduler.ShutdownGraceful(timeout)

	if tg.cancel != nil {
		tg.cancel()
	}
	tg.Join()

	tg.runningMu.Lock()
	tg.running = false
	tg.runningMu.Unlock()

	return err
}

// ID returns the ID of the thread pool
func (tg *GoroutineThreadPool) ID() string {
	return tg.id
}

// IsRunning returns whether the thread pool is running
func (tg *GoroutineThreadPool) IsRunning() bool {
	tg.runningMu.RLock()
	defer tg.runningMu.RUnlock()
	return tg.running
}

// workerLoop is the main loop for each worker
func (tg *GoroutineThreadPool) workerLoop(id int, ctx context.Context) {
	defer tg.wg.Done()
	stopCh := ctx.Done()

	for {
		task, ok := tg.scheduler.GetWork(stopCh)
		if !ok {
			return
		}

		tg.scheduler.OnTaskStart()
		tg.runTask(ctx, id, task)
		tg.scheduler.OnTaskEnd()
	}
}

func (tg *GoroutineThreadPool) runTask(ctx context.Context, workerID int, task core.Task) {
	cfg := tg.scheduler.Config()
	defer func() {
		if r := recover(); r != nil {
			cfg.Metrics.RecordTaskPanic(tg.id, r)
			cfg.PanicHandler.HandlePanic(ctx, tg.id, workerID, r, debug.Stack())
		}
	}()
	task(ctx)
}

// Join waits for all worker goroutines to finish
func (tg *GoroutineThreadPool) Join() {
	tg.wg.Wait()
}

// WorkerCount returns the number of workers
func (tg *GoroutineThreadPool) WorkerCount() int {
	return tg.scheduler.WorkerCount()
}

func (tg *GoroutineThreadPool) QueuedTaskCount() int {
	return tg.scheduler.QueuedTaskCount()
}

func (tg *GoroutineThreadPool) ActiveTaskCount() int {
	return tg.scheduler.ActiveTaskCount()
}

func (tg *GoroutineThreadPool) PostInternal(task core.Task) bool {
	return tg.scheduler.PostInternal(task)
}

// Stats returns a point-in-time snapshot of the pool.
func (tg *GoroutineThreadPool) Stats() core.PoolStats {
	return core.PoolStats{
		ID:      tg.id,
		Workers: tg.WorkerCount(),
		Queued:  tg.QueuedTaskCount(),
		Active:  tg.ActiveTaskCount(),
		Running: tg.IsRunning(),
	}
}

// =============================================================================
// Global Thread Pool Helper (Singleton)
// =============================================================================

var (
	globalThreadPool *GoroutineThreadPool
	globalMu         sync.Mutex
)

// InitGlobalThreadPool initializes the global thread pool with specified number of workers.
// It starts the pool immediately.
func InitGlobalThreadPool(workers int) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalThreadPool != nil {
		return // Already initialized
	}

	globalThreadPool = NewGoroutineThreadPool("global-pool", workers)
	globalThreadPool.Start(context.Background())
}

// GetGlobalThreadPool returns the global thread pool instance.
// It panics if InitGlobalThreadPool has not been called.
func GetGlobalThreadPool() *GoroutineThreadPool {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalThreadPool == nil {
		panic("GlobalThreadPool not initialized. Call InitGlobalThreadPool() first.")
	}
	return globalThreadPool
}

// ShutdownGlobalThreadPool stops the global thread pool.
func ShutdownGlobalThreadPool() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalThreadPool != nil {
		globalThreadPool.Stop()
		globalThreadPool = nil
	}
}

// CreateTaskRunner creates a new SequencedTaskRunner using the global thread pool.
func CreateTaskRunner(name string) *SequencedTaskRunner {
	return core.NewSequencedTaskRunnerWithConfig(GetGlobalThreadPool(), &core.RunnerConfig{Name: name})
}
