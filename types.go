package visionrunner

import (
	"github.com/Swind/go-vision-runner/core"
	"github.com/Swind/go-vision-runner/vision"
)

// Re-export commonly used types for convenience.
// This allows users to import only the visionrunner package for most use cases.

// Task is the unit of work (Closure)
type Task = core.Task

// TaskRunner is the interface for posting tasks
type TaskRunner = core.TaskRunner

// SequencedTaskRunner ensures sequential execution of tasks on a shared pool
type SequencedTaskRunner = core.SequencedTaskRunner

// SingleThreadTaskRunner ensures all tasks execute on the same dedicated goroutine
type SingleThreadTaskRunner = core.SingleThreadTaskRunner

// ThreadPool is re-exported for type compatibility
type ThreadPool = core.ThreadPool

// VisionTaskRunner is the running-mode state machine
type VisionTaskRunner = vision.TaskRunner

// RunningMode selects IMAGE, VIDEO or LIVE_STREAM execution
type RunningMode = vision.RunningMode

// Image is a caller-owned decoded image
type Image = vision.Image

// RegionOfInterest is a normalized rectangle
type RegionOfInterest = vision.RegionOfInterest

// Running mode constants
const (
	RunningModeImage      = vision.RunningModeImage
	RunningModeVideo      = vision.RunningModeVideo
	RunningModeLiveStream = vision.RunningModeLiveStream
)

// NewSingleThreadTaskRunner creates a new SingleThreadTaskRunner with a dedicated goroutine.
func NewSingleThreadTaskRunner() *SingleThreadTaskRunner {
	return core.NewSingleThreadTaskRunner()
}

// NewSequencedTaskRunner creates a new SequencedTaskRunner with the given thread pool.
func NewSequencedTaskRunner(pool ThreadPool) *SequencedTaskRunner {
	return core.NewSequencedTaskRunner(pool)
}

// GetCurrentTaskRunner retrieves the current TaskRunner from context
var GetCurrentTaskRunner = core.GetCurrentTaskRunner
