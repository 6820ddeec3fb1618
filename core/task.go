package core

import (
	"context"

	"github.com/google/uuid"
)

// Task is the unit of work (Closure)
type Task func(ctx context.Context)

// TaskID identifies a single posted task.
type TaskID uuid.UUID

// GenerateTaskID returns a new random TaskID.
func GenerateTaskID() TaskID {
	return TaskID(uuid.New())
}

func (id TaskID) String() string {
	return uuid.UUID(id).String()
}

// IsZero reports whether id was never assigned.
func (id TaskID) IsZero() bool {
	return uuid.UUID(id) == uuid.Nil
}

// =============================================================================
// TaskRunner: Define task submission interface
// =============================================================================

// TaskRunner accepts tasks for asynchronous execution.
// PostTask reports false when the runner no longer accepts work.
type TaskRunner interface {
	PostTask(task Task) bool
	Name() string
}

// DeliveryRunner is a TaskRunner that executes its tasks one at a time,
// strictly in the order they were posted.
type DeliveryRunner interface {
	TaskRunner

	// WaitIdle blocks until every task posted before the call has run.
	WaitIdle(ctx context.Context) error

	// Shutdown stops accepting new tasks. Tasks already queued still run.
	// It is safe to call from inside a task running on this runner.
	Shutdown()

	IsClosed() bool
	Stats() RunnerStats
}

// =============================================================================
// Context Helper
// =============================================================================
type taskRunnerKeyType struct{}

var taskRunnerKey taskRunnerKeyType

// GetCurrentTaskRunner returns the runner executing the task that owns ctx.
func GetCurrentTaskRunner(ctx context.Context) TaskRunner {
	if v := ctx.Value(taskRunnerKey); v != nil {
		return v.(TaskRunner)
	}
	return nil
}
