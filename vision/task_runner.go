package vision

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Swind/go-vision-runner/core"
)

const tracerName = "github.com/Swind/go-vision-runner/vision"

// TaskRunner routes calls to an Engine according to the RunningMode it was
// created with, and enforces timestamp ordering for VIDEO and LIVE_STREAM.
//
// A TaskRunner is safe for concurrent use. Calls are serialized: the mode,
// lifecycle and timestamp checks and, for the synchronous modes, the engine
// call itself happen under one lock.
type TaskRunner struct {
	name     string
	binding  modeBinding
	engine   Engine
	delivery core.DeliveryRunner // LIVE_STREAM only

	logger  core.Logger
	metrics Metrics
	tracer  trace.Tracer

	mu            sync.Mutex
	lastTimestamp int64
	hasTimestamp  bool
	closed        bool

	releaseOnce sync.Once
	released    chan struct{}
	releaseErr  error

	// inflight holds accepted LIVE_STREAM requests in submission order until
	// they are delivered or failed.
	flightMu sync.Mutex
	inflight []*liveRequest

	pending   atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
}

// Stats is a point-in-time snapshot of a TaskRunner.
type Stats struct {
	Name            string
	Mode            RunningMode
	LastTimestampMs int64
	HasTimestamp    bool
	// Pending counts LIVE_STREAM requests accepted but not yet delivered.
	Pending   int64
	Delivered int64
	Failed    int64
	Rejected  int64
	Closed    bool
}

type liveRequest struct {
	id          uuid.UUID
	image       Image
	roi         *RegionOfInterest
	timestamp   int64
	submittedAt time.Time
	settled     atomic.Bool
}

// NewTaskRunner validates opts, loads the model and creates the engine.
//
// A mode/callback mismatch fails with ErrConfiguration before any model is
// loaded. A model or engine that cannot be created fails with ErrResource
// carrying the underlying cause.
func NewTaskRunner(ctx context.Context, opts *Options) (*TaskRunner, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	name := opts.Name
	if name == "" {
		name = "vision_task"
	}

	binding, err := bindMode(name, opts.RunningMode, opts.ResultCallback, opts.ErrorCallback)
	if err != nil {
		return nil, err
	}
	if opts.EngineFactory == nil {
		return nil, &Error{Kind: ErrConfiguration, Op: name, Msg: "engine factory must be provided"}
	}

	asset, err := opts.BaseOptions.Resolve()
	if err != nil {
		return nil, withOp(err, name)
	}

	engine, err := opts.EngineFactory(ctx, asset)
	if err != nil {
		if errors.Is(err, ErrResource) {
			return nil, err
		}
		return nil, &Error{Kind: ErrResource, Op: name, Msg: "failed to create engine from " + asset.Name, Err: err}
	}
	if engine == nil {
		return nil, &Error{Kind: ErrResource, Op: name, Msg: "engine factory returned no engine"}
	}

	logger := opts.Logger
	if logger == nil {
		logger = core.NewDefaultLogger(zerolog.InfoLevel)
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NilMetrics{}
	}
	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	r := &TaskRunner{
		name:     name,
		binding:  binding,
		engine:   engine,
		logger:   logger,
		metrics:  metrics,
		tracer:   tp.Tracer(tracerName),
		released: make(chan struct{}),
	}

	if binding.mode() == RunningModeLiveStream {
		cfg := &core.RunnerConfig{
			Name:         name + "/delivery",
			Logger:       logger,
			PanicHandler: opts.PanicHandler,
			Metrics:      opts.DeliveryMetrics,
		}
		if opts.ThreadPool != nil {
			r.delivery = core.NewSequencedTaskRunnerWithConfig(opts.ThreadPool, cfg)
		} else {
			r.delivery = core.NewSingleThreadTaskRunnerWithConfig(cfg)
		}
	}

	logger.Info("task runner created",
		core.F("runner", name),
		core.F("mode", binding.mode().String()),
		core.F("model", asset.Name),
	)
	return r, nil
}

// WithTaskRunner creates a runner, passes it to fn and closes it on every
// exit path, including a panic in fn.
func WithTaskRunner(ctx context.Context, opts *Options, fn func(*TaskRunner) error) (err error) {
	r, err := NewTaskRunner(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := r.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()
	return fn(r)
}

// Name returns the runner name used in errors, logs and metrics.
func (r *TaskRunner) Name() string { return r.name }

// Mode returns the running mode fixed at construction.
func (r *TaskRunner) Mode() RunningMode { return r.binding.mode() }

// LastTimestamp returns the highest accepted timestamp, if any.
func (r *TaskRunner) LastTimestamp() (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastTimestamp, r.hasTimestamp
}

// IsClosed reports whether Close has been called.
func (r *TaskRunner) IsClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Stats returns a point-in-time snapshot of the runner.
func (r *TaskRunner) Stats() Stats {
	r.mu.Lock()
	s := Stats{
		Name:            r.name,
		Mode:            r.binding.mode(),
		LastTimestampMs: r.lastTimestamp,
		HasTimestamp:    r.hasTimestamp,
		Closed:          r.closed,
	}
	r.mu.Unlock()

	s.Pending = r.pending.Load()
	s.Delivered = r.delivered.Load()
	s.Failed = r.failed.Load()
	s.Rejected = r.rejected.Load()
	return s
}

// ProcessImage runs inference on img synchronously. It is valid only in
// RunningModeImage. A nil result with a nil error means nothing was found to
// process.
func (r *TaskRunner) ProcessImage(ctx context.Context, img Image, roi *RegionOfInterest) (Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.admitLocked(RunningModeImage, img, roi); err != nil {
		return nil, r.reject(err)
	}
	return r.infer(ctx, img, roi)
}

// ProcessVideo runs inference on a video frame synchronously. It is valid
// only in RunningModeVideo. timestampMs must be greater than every timestamp
// accepted before; a rejected frame leaves the runner unchanged and never
// reaches the engine.
func (r *TaskRunner) ProcessVideo(ctx context.Context, img Image, roi *RegionOfInterest, timestampMs int64) (Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.admitLocked(RunningModeVideo, img, roi); err != nil {
		return nil, r.reject(err)
	}
	if err := r.checkTimestampLocked(timestampMs); err != nil {
		return nil, r.reject(err)
	}

	// The frame has reached the engine, so its timestamp is consumed even
	// if inference fails.
	r.lastTimestamp, r.hasTimestamp = timestampMs, true
	return r.infer(ctx, img, roi, attribute.Int64("vision.timestamp_ms", timestampMs))
}

// ProcessLiveStream submits a frame for asynchronous inference and returns
// without waiting for it. It is valid only in RunningModeLiveStream.
//
// Validation happens here, on the caller's goroutine: an error return means
// the frame was not accepted and no callback will fire for it. Accepted
// frames are delivered to the ResultCallback (or ErrorCallback) one at a
// time, in submission order, with the same img value that was passed in.
//
// If the shared ThreadPool behind delivery has stopped, the frame is rejected
// with ErrLifecycle and every frame still waiting is reported as failed.
func (r *TaskRunner) ProcessLiveStream(img Image, roi *RegionOfInterest, timestampMs int64) error {
	r.mu.Lock()
	if err := r.admitLocked(RunningModeLiveStream, img, roi); err != nil {
		r.mu.Unlock()
		return r.reject(err)
	}
	if err := r.checkTimestampLocked(timestampMs); err != nil {
		r.mu.Unlock()
		return r.reject(err)
	}

	req := &liveRequest{
		id:          uuid.New(),
		image:       img,
		timestamp:   timestampMs,
		submittedAt: time.Now(),
	}
	if roi != nil {
		region := *roi
		req.roi = &region
	}

	r.track(req)
	if !r.delivery.PostTask(func(ctx context.Context) { r.deliver(ctx, req) }) {
		r.settle(req)
		r.mu.Unlock()
		r.failStranded()
		return r.reject(&Error{Kind: ErrLifecycle, Op: r.name, Msg: "result delivery has stopped"})
	}
	r.lastTimestamp, r.hasTimestamp = timestampMs, true
	r.mu.Unlock()
	return nil
}

// Close releases the engine and marks the runner closed. In LIVE_STREAM mode
// it first waits until every accepted frame has been delivered; frames whose
// delivery pool has already stopped are reported as failed instead. Calling
// Close again returns the same result as the first call.
//
// Close must not be called from the result or error callback, since it waits
// for that callback to return; use CloseContext with a deadline there.
func (r *TaskRunner) Close() error {
	return r.CloseContext(context.Background())
}

// CloseContext is Close with a bound on the wait. If ctx ends first, the
// remaining frames are still delivered and the engine is released after the
// last of them; the runner is closed either way.
func (r *TaskRunner) CloseContext(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return r.waitReleased(ctx, &r.releaseErr)
	}
	r.closed = true
	r.mu.Unlock()

	r.logger.Info("closing task runner",
		core.F("runner", r.name),
		core.F("pending", r.pending.Load()),
	)

	if r.delivery == nil {
		r.release()
	} else if !r.delivery.PostTask(func(context.Context) {
		r.release()
		r.delivery.Shutdown()
	}) {
		r.failStranded()
		r.release()
	}

	return r.waitReleased(ctx, &r.releaseErr)
}

func (r *TaskRunner) waitReleased(ctx context.Context, result *error) error {
	select {
	case <-r.released:
	case <-ctx.Done():
		select {
		case <-r.released:
		default:
			return ctx.Err()
		}
	}
	if result == nil {
		return nil
	}
	return *result
}

func (r *TaskRunner) release() {
	r.releaseOnce.Do(func() {
		if err := r.engine.Close(); err != nil {
			r.releaseErr = &Error{Kind: ErrResource, Op: r.name, Msg: "failed to release engine", Err: err}
			r.logger.Error("engine release failed", core.F("runner", r.name), core.F("error", err))
		}
		close(r.released)
	})
}

func (r *TaskRunner) admitLocked(want RunningMode, img Image, roi *RegionOfInterest) error {
	if r.closed {
		return &Error{Kind: ErrLifecycle, Op: r.name, Msg: "task runner is closed"}
	}
	if current := r.binding.mode(); current != want {
		return &Error{
			Kind: ErrMode,
			Op:   r.name,
			Msg:  fmt.Sprintf("task is not initialized with the %s mode; current running mode is %s", want.phrase(), current.phrase()),
		}
	}
	if img == nil {
		return &Error{Kind: ErrInvalidArgument, Op: r.name, Msg: "input image must not be nil"}
	}
	if roi != nil {
		if err := roi.Validate(); err != nil {
			return withOp(err, r.name)
		}
	}
	return nil
}

func (r *TaskRunner) checkTimestampLocked(timestampMs int64) error {
	if r.hasTimestamp && timestampMs <= r.lastTimestamp {
		return &Error{
			Kind: ErrTimestamp,
			Op:   r.name,
			Msg: fmt.Sprintf("input timestamp must be monotonically increasing; got %d, last accepted %d",
				timestampMs, r.lastTimestamp),
		}
	}
	return nil
}

func (r *TaskRunner) reject(err error) error {
	r.rejected.Add(1)
	r.metrics.RecordRequestRejected(r.name, kindLabel(err))
	r.logger.Debug("request rejected", core.F("runner", r.name), core.F("error", err))
	return err
}

func (r *TaskRunner) infer(ctx context.Context, img Image, roi *RegionOfInterest, attrs ...attribute.KeyValue) (Image, error) {
	mode := r.binding.mode()
	attrs = append(attrs,
		attribute.String("vision.runner", r.name),
		attribute.String("vision.mode", mode.String()),
		attribute.Bool("vision.roi", roi != nil),
	)
	ctx, span := r.tracer.Start(ctx, "vision.Infer", trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	out, err := r.engine.Infer(ctx, img, roi)
	r.metrics.RecordInference(r.name, mode, time.Since(start), out != nil, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &Error{Kind: ErrInference, Op: r.name, Msg: "inference failed", Err: err}
	}
	span.SetAttributes(attribute.Bool("vision.has_result", out != nil))
	return out, nil
}

func (r *TaskRunner) track(req *liveRequest) {
	r.pending.Add(1)
	r.flightMu.Lock()
	r.inflight = append(r.inflight, req)
	r.flightMu.Unlock()
}

// settle claims req for delivery. It returns false if req was already
// delivered or failed.
func (r *TaskRunner) settle(req *liveRequest) bool {
	if !req.settled.CompareAndSwap(false, true) {
		return false
	}
	r.flightMu.Lock()
	for i, q := range r.inflight {
		if q == req {
			r.inflight = append(r.inflight[:i], r.inflight[i+1:]...)
			break
		}
	}
	r.flightMu.Unlock()
	r.pending.Add(-1)
	return true
}

// failStranded reports every request that can no longer be delivered
// because the delivery runner has stopped. It runs on the caller's goroutine.
func (r *TaskRunner) failStranded() {
	r.flightMu.Lock()
	stranded := r.inflight
	r.inflight = nil
	r.flightMu.Unlock()

	binding := r.binding.(liveStreamBinding)
	for _, req := range stranded {
		if !req.settled.CompareAndSwap(false, true) {
			continue
		}
		r.pending.Add(-1)
		r.failed.Add(1)
		err := &Error{
			Kind: ErrLifecycle,
			Op:   r.name,
			Msg:  "result delivery stopped before the frame was processed",
			Err:  core.ErrRunnerClosed,
		}
		if binding.onError != nil {
			binding.onError(err, req.image, req.timestamp)
			continue
		}
		r.logger.Error("live stream frame dropped",
			core.F("runner", r.name),
			core.F("request", req.id.String()),
			core.F("timestamp_ms", req.timestamp),
			core.F("error", err),
		)
	}
}

func (r *TaskRunner) deliver(ctx context.Context, req *liveRequest) {
	if !r.settle(req) {
		return
	}

	binding := r.binding.(liveStreamBinding)
	result, err := r.infer(ctx, req.image, req.roi,
		attribute.Int64("vision.timestamp_ms", req.timestamp),
		attribute.String("vision.request_id", req.id.String()),
	)
	if err != nil {
		r.failed.Add(1)
		if binding.onError != nil {
			binding.onError(err, req.image, req.timestamp)
			return
		}
		r.logger.Error("live stream inference failed",
			core.F("runner", r.name),
			core.F("request", req.id.String()),
			core.F("timestamp_ms", req.timestamp),
			core.F("error", err),
		)
		return
	}

	binding.onResult(result, req.image, req.timestamp)
	r.delivered.Add(1)
	r.metrics.RecordDelivery(r.name, time.Since(req.submittedAt))
}

// withOp relabels a vision error with the runner name.
func withOp(err error, op string) error {
	var ve *Error
	if errors.As(err, &ve) {
		c := *ve
		c.Op = op
		return &c
	}
	return err
}
