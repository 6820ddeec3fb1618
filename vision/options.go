package vision

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/Swind/go-vision-runner/core"
)

// ResultCallback receives LIVE_STREAM results. result is nil when the engine
// found nothing to process. input is the image passed to ProcessLiveStream.
type ResultCallback func(result Image, input Image, timestampMs int64)

// ErrorCallback receives LIVE_STREAM inference failures, in the same order
// as results.
type ErrorCallback func(err error, input Image, timestampMs int64)

// Options configures a TaskRunner.
type Options struct {
	// Name labels the runner in errors, logs and metrics.
	Name string

	BaseOptions BaseOptions
	RunningMode RunningMode

	// ResultCallback is required in RunningModeLiveStream and must be nil otherwise.
	ResultCallback ResultCallback
	// ErrorCallback is optional in RunningModeLiveStream and must be nil otherwise.
	// Without it, asynchronous inference failures are logged.
	ErrorCallback ErrorCallback

	EngineFactory EngineFactory

	// ThreadPool, if set, delivers LIVE_STREAM results through a
	// SequencedTaskRunner on that pool instead of a dedicated goroutine.
	ThreadPool core.ThreadPool

	Logger core.Logger
	// Metrics records request outcomes. Defaults to NilMetrics.
	Metrics Metrics
	// DeliveryMetrics is passed to the LIVE_STREAM delivery runner.
	DeliveryMetrics core.Metrics
	// PanicHandler handles panics raised by the result or error callback.
	PanicHandler core.PanicHandler
	// TracerProvider defaults to the global OpenTelemetry provider.
	TracerProvider trace.TracerProvider
}

// DefaultOptions returns image-mode options with default handlers.
func DefaultOptions() *Options {
	return &Options{
		Name:        "vision_task",
		RunningMode: RunningModeImage,
		Metrics:     NilMetrics{},
	}
}

// modeBinding is the running mode fused with the callbacks it permits. Only
// liveStreamBinding carries callbacks, so a mode/callback mismatch cannot be
// represented once Options have been bound.
type modeBinding interface {
	mode() RunningMode
}

type imageBinding struct{}

type videoBinding struct{}

type liveStreamBinding struct {
	onResult ResultCallback
	onError  ErrorCallback
}

func (imageBinding) mode() RunningMode      { return RunningModeImage }
func (videoBinding) mode() RunningMode      { return RunningModeVideo }
func (liveStreamBinding) mode() RunningMode { return RunningModeLiveStream }

func bindMode(op string, mode RunningMode, onResult ResultCallback, onError ErrorCallback) (modeBinding, error) {
	if !mode.valid() {
		return nil, &Error{Kind: ErrConfiguration, Op: op, Msg: "unknown running mode " + mode.String()}
	}
	if mode == RunningModeLiveStream {
		if onResult == nil {
			return nil, &Error{Kind: ErrConfiguration, Op: op, Msg: "result callback must be provided when in the live stream mode"}
		}
		return liveStreamBinding{onResult: onResult, onError: onError}, nil
	}

	if onResult != nil {
		return nil, &Error{Kind: ErrConfiguration, Op: op, Msg: "result callback should not be provided when not in the live stream mode"}
	}
	if onError != nil {
		return nil, &Error{Kind: ErrConfiguration, Op: op, Msg: "error callback should not be provided when not in the live stream mode"}
	}
	if mode == RunningModeVideo {
		return videoBinding{}, nil
	}
	return imageBinding{}, nil
}
