package prometheus

import (
	"errors"
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/Swind/go-vision-runner/core"
	"github.com/Swind/go-vision-runner/vision"
)

// DefaultNamespace prefixes every collector when no namespace is given.
const DefaultNamespace = "visionrunner"

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
	LatencyBuckets  []float64
}

// MetricsExporter adapts vision.Metrics and core.Metrics to Prometheus
// collectors, so one exporter can serve a TaskRunner and its delivery queue.
type MetricsExporter struct {
	inferenceSeconds  *prom.HistogramVec
	requestsRejected  *prom.CounterVec
	deliveryLatency   *prom.HistogramVec
	taskDurationSecs  *prom.HistogramVec
	taskPanicTotal    *prom.CounterVec
	taskRejectedTotal *prom.CounterVec
	queueDepth        *prom.GaugeVec
}

var (
	_ vision.Metrics = (*MetricsExporter)(nil)
	_ core.Metrics   = (*MetricsExporter)(nil)
)

// NewMetricsExporter creates and registers the collectors. Registering twice
// against the same registry reuses the existing collectors.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}
	latencyBuckets := opts.LatencyBuckets
	if len(latencyBuckets) == 0 {
		latencyBuckets = prom.DefBuckets
	}

	inferenceVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "inference_duration_seconds",
		Help:      "Engine inference duration in seconds.",
		Buckets:   buckets,
	}, []string{"runner", "mode", "outcome"})
	requestsRejectedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "requests_rejected_total",
		Help:      "Total number of requests refused before reaching the engine.",
	}, []string{"runner", "reason"})
	deliveryVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "delivery_latency_seconds",
		Help:      "Time from live stream submission to result callback.",
		Buckets:   latencyBuckets,
	}, []string{"runner"})
	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_duration_seconds",
		Help:      "Task execution duration in seconds.",
		Buckets:   buckets,
	}, []string{"runner"})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_panic_total",
		Help:      "Total number of task panics.",
	}, []string{"runner"})
	rejectedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_rejected_total",
		Help:      "Total number of rejected tasks.",
	}, []string{"runner", "reason"})
	queueDepthVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Current queue depth.",
	}, []string{"runner"})

	var err error
	if inferenceVec, err = registerCollector(reg, inferenceVec); err != nil {
		return nil, err
	}
	if requestsRejectedVec, err = registerCollector(reg, requestsRejectedVec); err != nil {
		return nil, err
	}
	if deliveryVec, err = registerCollector(reg, deliveryVec); err != nil {
		return nil, err
	}
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}
	if rejectedVec, err = registerCollector(reg, rejectedVec); err != nil {
		return nil, err
	}
	if queueDepthVec, err = registerCollector(reg, queueDepthVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		inferenceSeconds:  inferenceVec,
		requestsRejected:  requestsRejectedVec,
		deliveryLatency:   deliveryVec,
		taskDurationSecs:  durationVec,
		taskPanicTotal:    panicVec,
		taskRejectedTotal: rejectedVec,
		queueDepth:        queueDepthVec,
	}, nil
}

// RecordInference records one engine call.
func (m *MetricsExporter) RecordInference(runnerName string, mode vision.RunningMode, duration time.Duration, hasResult bool, err error) {
	if m == nil {
		return
	}
	m.inferenceSeconds.WithLabelValues(
		normalizeLabel(runnerName, "unknown"),
		mode.String(),
		outcomeLabel(hasResult, err),
	).Observe(duration.Seconds())
}

// RecordRequestRejected records a request refused by the runner.
func (m *MetricsExporter) RecordRequestRejected(runnerName string, reason string) {
	if m == nil {
		return
	}
	m.requestsRejected.WithLabelValues(normalizeLabel(runnerName, "unknown"), normalizeLabel(reason, "unknown")).Inc()
}

// RecordDelivery records live stream delivery latency.
func (m *MetricsExporter) RecordDelivery(runnerName string, latency time.Duration) {
	if m == nil {
		return
	}
	m.deliveryLatency.WithLabelValues(normalizeLabel(runnerName, "unknown")).Observe(latency.Seconds())
}

// RecordTaskDuration records task execution duration.
func (m *MetricsExporter) RecordTaskDuration(runnerName string, duration time.Duration) {
	if m == nil {
		return
	}
	m.taskDurationSecs.WithLabelValues(normalizeLabel(runnerName, "unknown")).Observe(duration.Seconds())
}

// RecordTaskPanic records task panic events.
func (m *MetricsExporter) RecordTaskPanic(runnerName string, panicInfo any) {
	if m == nil {
		return
	}
	m.taskPanicTotal.WithLabelValues(normalizeLabel(runnerName, "unknown")).Inc()
}

// RecordQueueDepth records queue depth.
func (m *MetricsExporter) RecordQueueDepth(runnerName string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(normalizeLabel(runnerName, "unknown")).Set(float64(depth))
}

// RecordTaskRejected records task rejection events.
func (m *MetricsExporter) RecordTaskRejected(runnerName string, reason string) {
	if m == nil {
		return
	}
	m.taskRejectedTotal.WithLabelValues(normalizeLabel(runnerName, "unknown"), normalizeLabel(reason, "unknown")).Inc()
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func outcomeLabel(hasResult bool, err error) string {
	switch {
	case err != nil:
		return "error"
	case hasResult:
		return "result"
	default:
		return "empty"
	}
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
