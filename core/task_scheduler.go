package core

import (
	"fmt"
	"sync/atomic"
	"time"
)

// TaskScheduler is the FIFO ready queue that pool workers pull from.
type TaskScheduler struct {
	queue       *FIFOTaskQueue
	signal      chan struct{}
	workerCount int

	metricQueued int32 // Waiting in ReadyQueue
	metricActive int32 // Executing in Worker

	config RunnerConfig

	// Lifecycle
	shuttingDown int32 // atomic flag
}

func NewTaskScheduler(workerCount int) *TaskScheduler {
	return NewTaskSchedulerWithConfig(workerCount, nil)
}

func NewTaskSchedulerWithConfig(workerCount int, config *RunnerConfig) *TaskScheduler {
	if workerCount < 1 {
		workerCount = 1
	}
	return &TaskScheduler{
		queue:       NewFIFOTaskQueue(),
		signal:      make(chan struct{}, workerCount*2),
		workerCount: workerCount,
		config:      config.resolve("TaskScheduler"),
	}
}

// PostInternal queues task for the next free worker.
// Tasks posted after Shutdown are rejected and false is returned.
func (s *TaskScheduler) PostInternal(task Task) bool {
	if atomic.LoadInt32(&s.shuttingDown) == 1 {
		s.config.RejectedTaskHandler.HandleRejectedTask(s.config.Name, "shutting down")
		s.config.Metrics.RecordTaskRejected(s.config.Name, "shutting down")
		return false
	}

	queued := atomic.AddInt32(&s.metricQueued, 1)
	s.queue.Push(task)
	s.config.Metrics.RecordQueueDepth(s.config.Name, int(queued))

	select {
	case s.signal <- struct{}{}:
	default:
		// Signal channel full, but task is already queued
	}
	return true
}

// GetWork (Called by Worker)
func (s *TaskScheduler) GetWork(stopCh <-chan struct{}) (Task, bool) {
	for {
		if item, ok := s.queue.Pop(); ok {
			atomic.AddInt32(&s.metricQueued, -1)
			return item.Task, true
		}

		select {
		case <-s.signal:
			continue
		case <-stopCh:
			return nil, false
		}
	}
}

func (s *TaskScheduler) Shutdown() {
	atomic.StoreInt32(&s.shuttingDown, 1)

	// Clear queue to release all task references (including runLoop bound methods)
	s.queue.Clear()
	atomic.StoreInt32(&s.metricQueued, 0)
}

// ShutdownGraceful waits for all queued and active tasks to complete
// Returns error if timeout is exceeded before tasks complete
func (s *TaskScheduler) ShutdownGraceful(timeout time.Duration) error {
	atomic.StoreInt32(&s.shuttingDown, 1)

	deadline := time.After(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if s.QueuedTaskCount() == 0 && s.ActiveTaskCount() == 0 {
			return nil
		}
		select {
		case <-deadline:
			s.queue.Clear()
			atomic.StoreInt32(&s.metricQueued, 0)
			return fmt.Errorf("shutdown graceful timeout after %v, forced clearing", timeout)
		case <-ticker.C:
		}
	}
}

// Metrics
func (s *TaskScheduler) WorkerCount() int     { return s.workerCount }
func (s *TaskScheduler) QueuedTaskCount() int { return int(atomic.LoadInt32(&s.metricQueued)) }
func (s *TaskScheduler) ActiveTaskCount() int { return int(atomic.LoadInt32(&s.metricActive)) }

func (s *TaskScheduler) OnTaskStart() {
	atomic.AddInt32(&s.metricActive, 1)
}

func (s *TaskScheduler) OnTaskEnd() {
	atomic.AddInt32(&s.metricActive, -1)
}

// Config returns the resolved handler configuration.
func (s *TaskScheduler) Config() *RunnerConfig {
	return &s.config
}
