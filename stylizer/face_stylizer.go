// Package stylizer implements the face stylizer task: an image-to-image model
// that restyles the face found in an image, or in a region of it.
package stylizer

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/Swind/go-vision-runner/core"
	"github.com/Swind/go-vision-runner/vision"
)

const taskName = "face_stylizer"

// Options configures a FaceStylizer.
type Options struct {
	// Name labels logs, errors and metrics. Defaults to "face_stylizer".
	Name        string
	BaseOptions vision.BaseOptions
	RunningMode vision.RunningMode

	// ResultCallback receives LIVE_STREAM results. The stylized image is nil
	// when no face was found.
	ResultCallback vision.ResultCallback
	ErrorCallback  vision.ErrorCallback

	// EngineFactory builds the stylization model from the loaded asset.
	EngineFactory vision.EngineFactory

	ThreadPool     core.ThreadPool
	Logger         core.Logger
	Metrics        vision.Metrics
	TracerProvider trace.TracerProvider

	// DeliveryMetrics and PanicHandler configure the LIVE_STREAM delivery queue.
	DeliveryMetrics core.Metrics
	PanicHandler    core.PanicHandler
}

// FaceStylizer stylizes faces in images, video frames and live streams.
type FaceStylizer struct {
	runner *vision.TaskRunner
}

// NewFromOptions creates a FaceStylizer. See vision.NewTaskRunner for the
// errors it returns.
func NewFromOptions(ctx context.Context, opts *Options) (*FaceStylizer, error) {
	if opts == nil {
		opts = &Options{}
	}
	name := opts.Name
	if name == "" {
		name = taskName
	}
	runner, err := vision.NewTaskRunner(ctx, &vision.Options{
		Name:            name,
		BaseOptions:     opts.BaseOptions,
		RunningMode:     opts.RunningMode,
		ResultCallback:  opts.ResultCallback,
		ErrorCallback:   opts.ErrorCallback,
		EngineFactory:   opts.EngineFactory,
		ThreadPool:      opts.ThreadPool,
		Logger:          opts.Logger,
		Metrics:         opts.Metrics,
		DeliveryMetrics: opts.DeliveryMetrics,
		PanicHandler:    opts.PanicHandler,
		TracerProvider:  opts.TracerProvider,
	})
	if err != nil {
		return nil, err
	}
	return &FaceStylizer{runner: runner}, nil
}

// NewFromModelPath creates an image-mode FaceStylizer from a model file.
func NewFromModelPath(ctx context.Context, modelPath string, factory vision.EngineFactory) (*FaceStylizer, error) {
	return NewFromOptions(ctx, &Options{
		BaseOptions:   vision.BaseOptions{ModelAssetPath: modelPath},
		RunningMode:   vision.RunningModeImage,
		EngineFactory: factory,
	})
}

// Stylize stylizes the face in img. roi optionally restricts the search.
// It returns nil, nil when no face is found.
func (s *FaceStylizer) Stylize(ctx context.Context, img vision.Image, roi *vision.RegionOfInterest) (vision.Image, error) {
	return s.runner.ProcessImage(ctx, img, roi)
}

// StylizeAndReply runs Stylize as a task on runner and passes the outcome to
// reply on replyRunner, keeping slow image-mode inference off the caller's
// runner. It reports whether runner accepted the task.
func (s *FaceStylizer) StylizeAndReply(
	runner core.TaskRunner,
	img vision.Image,
	roi *vision.RegionOfInterest,
	reply core.ReplyWithResult[vision.Image],
	replyRunner core.TaskRunner,
) bool {
	if roi != nil {
		region := *roi
		roi = &region
	}
	return core.PostTaskAndReplyWithResult(runner,
		func(ctx context.Context) (vision.Image, error) {
			return s.Stylize(ctx, img, roi)
		},
		reply,
		replyRunner,
	)
}

// StylizeForVideo stylizes one video frame. Timestamps must increase strictly.
func (s *FaceStylizer) StylizeForVideo(ctx context.Context, img vision.Image, roi *vision.RegionOfInterest, timestampMs int64) (vision.Image, error) {
	return s.runner.ProcessVideo(ctx, img, roi, timestampMs)
}

// StylizeAsync submits a live-stream frame. The result is delivered to the
// ResultCallback in timestamp order.
func (s *FaceStylizer) StylizeAsync(img vision.Image, roi *vision.RegionOfInterest, timestampMs int64) error {
	return s.runner.ProcessLiveStream(img, roi, timestampMs)
}

// Close waits for pending live-stream results and releases the model.
func (s *FaceStylizer) Close() error {
	return s.runner.Close()
}

// CloseContext is Close with a bound on the wait.
func (s *FaceStylizer) CloseContext(ctx context.Context) error {
	return s.runner.CloseContext(ctx)
}

// Stats returns the underlying runner's snapshot.
func (s *FaceStylizer) Stats() vision.Stats {
	return s.runner.Stats()
}
