package core

import "context"

// ThreadPool is the execution engine a SequencedTaskRunner posts its run loop to.
type ThreadPool interface {
	// PostInternal reports false if the pool no longer accepts work.
	PostInternal(task Task) bool

	Start(ctx context.Context)
	Stop()

	ID() string
	IsRunning() bool

	WorkerCount() int
	QueuedTaskCount() int // In queue
	ActiveTaskCount() int // Executing
}
