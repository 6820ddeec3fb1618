package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// =============================================================================
// PanicHandler: Interface for handling task panics
// =============================================================================

// PanicHandler is called when a task panics during execution.
//
// Implementations should be thread-safe as they may be called concurrently.
type PanicHandler interface {
	// HandlePanic is called when a task panics.
	//
	// Parameters:
	// - ctx: The context from the panicked task (may contain task runner info)
	// - runnerName: The name of the task runner where the panic occurred
	// - workerID: The ID of the worker (for thread pool workers, -1 for single-threaded runners)
	// - panicInfo: The panic value recovered from the task
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, runnerName string, workerID int, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler logs panics through a Logger.
type DefaultPanicHandler struct {
	Logger Logger
}

// HandlePanic logs panic information at error level.
func (h *DefaultPanicHandler) HandlePanic(ctx context.Context, runnerName string, workerID int, panicInfo any, stackTrace []byte) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger(zerolog.InfoLevel)
	}
	logger.Error("task panicked",
		F("runner", runnerName),
		F("worker", workerID),
		F("panic", panicInfo),
		F("stack", string(stackTrace)),
	)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting task execution metrics.
// Methods should be non-blocking and fast to avoid impacting task execution performance.
type Metrics interface {
	// RecordTaskDuration records how long a task took to execute.
	RecordTaskDuration(runnerName string, duration time.Duration)

	// RecordTaskPanic records that a task panicked during execution.
	RecordTaskPanic(runnerName string, panicInfo any)

	// RecordQueueDepth records the current queue depth.
	RecordQueueDepth(runnerName string, depth int)

	// RecordTaskRejected records that a task was rejected (e.g., during shutdown).
	RecordTaskRejected(runnerName string, reason string)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordTaskDuration(runnerName string, duration time.Duration) {}
func (m *NilMetrics) RecordTaskPanic(runnerName string, panicInfo any)             {}
func (m *NilMetrics) RecordQueueDepth(runnerName string, depth int)                {}
func (m *NilMetrics) RecordTaskRejected(runnerName string, reason string)          {}

// =============================================================================
// RejectedTaskHandler: Interface for handling rejected tasks
// =============================================================================

// RejectedTaskHandler is called when a runner or scheduler refuses a task,
// typically because it has been shut down.
//
// Implementations should be thread-safe as they may be called concurrently.
type RejectedTaskHandler interface {
	HandleRejectedTask(runnerName string, reason string)
}

// DefaultRejectedTaskHandler logs rejected tasks at warn level.
type DefaultRejectedTaskHandler struct {
	Logger Logger
}

func (h *DefaultRejectedTaskHandler) HandleRejectedTask(runnerName string, reason string) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger(zerolog.InfoLevel)
	}
	logger.Warn("task rejected", F("runner", runnerName), F("reason", reason))
}

// =============================================================================
// RunnerConfig: Configuration shared by runners and schedulers
// =============================================================================

// RunnerConfig holds configuration options for task runners and the TaskScheduler.
// All handlers are optional; if not provided, default implementations will be used.
type RunnerConfig struct {
	// Name labels the runner in logs and metrics.
	Name string

	// Logger receives runner diagnostics. Defaults to a zerolog console logger.
	Logger Logger

	// PanicHandler is called when a task panics. Defaults to DefaultPanicHandler.
	PanicHandler PanicHandler

	// Metrics is called to record task execution metrics. Defaults to NilMetrics.
	Metrics Metrics

	// RejectedTaskHandler is called when a task is rejected. Defaults to DefaultRejectedTaskHandler.
	RejectedTaskHandler RejectedTaskHandler
}

// DefaultRunnerConfig returns a config with default handlers.
func DefaultRunnerConfig(name string) *RunnerConfig {
	logger := NewDefaultLogger(zerolog.InfoLevel)
	return &RunnerConfig{
		Name:                name,
		Logger:              logger,
		PanicHandler:        &DefaultPanicHandler{Logger: logger},
		Metrics:             &NilMetrics{},
		RejectedTaskHandler: &DefaultRejectedTaskHandler{Logger: logger},
	}
}

// resolve fills nil fields with defaults without mutating config.
func (config *RunnerConfig) resolve(fallbackName string) RunnerConfig {
	var c RunnerConfig
	if config != nil {
		c = *config
	}
	if c.Name == "" {
		c.Name = fallbackName
	}
	if c.Logger == nil {
		c.Logger = NewDefaultLogger(zerolog.InfoLevel)
	}
	if c.PanicHandler == nil {
		c.PanicHandler = &DefaultPanicHandler{Logger: c.Logger}
	}
	if c.Metrics == nil {
		c.Metrics = &NilMetrics{}
	}
	if c.RejectedTaskHandler == nil {
		c.RejectedTaskHandler = &DefaultRejectedTaskHandler{Logger: c.Logger}
	}
	return c
}
