package prometheus

import (
	"errors"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"github.com/Swind/go-vision-runner/vision"
)

func TestMetricsExporter_RecordMethods(t *testing.T) {
	reg := prom.NewRegistry()
	exporter, err := NewMetricsExporter("", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("NewMetricsExporter failed: %v", err)
	}

	exporter.RecordTaskDuration("runner-a", 250*time.Millisecond)
	exporter.RecordTaskPanic("runner-a", "panic")
	exporter.RecordQueueDepth("runner-a", 7)
	exporter.RecordTaskRejected("runner-a", "closed")

	panicTotal := testutil.ToFloat64(exporter.taskPanicTotal.WithLabelValues("runner-a"))
	if panicTotal != 1 {
		t.Fatalf("panic total = %v, want 1", panicTotal)
	}

	queueDepth := testutil.ToFloat64(exporter.queueDepth.WithLabelValues("runner-a"))
	if queueDepth != 7 {
		t.Fatalf("queue depth = %v, want 7", queueDepth)
	}

	rejected := testutil.ToFloat64(exporter.taskRejectedTotal.WithLabelValues("runner-a", "closed"))
	if rejected != 1 {
		t.Fatalf("rejected total = %v, want 1", rejected)
	}

	histCount, err := histogramSampleCount(exporter.taskDurationSecs.WithLabelValues("runner-a"))
	if err != nil {
		t.Fatalf("histogramSampleCount failed: %v", err)
	}
	if histCount != 1 {
		t.Fatalf("duration sample count = %d, want 1", histCount)
	}

	if n, err := testutil.GatherAndCount(reg, "visionrunner_queue_depth"); err != nil || n != 1 {
		t.Fatalf("visionrunner_queue_depth series = %d, want 1 (err=%v)", n, err)
	}
}

func TestMetricsExporter_VisionMethods(t *testing.T) {
	reg := prom.NewRegistry()
	exporter, err := NewMetricsExporter("stylizer", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("NewMetricsExporter failed: %v", err)
	}

	exporter.RecordInference("face", vision.RunningModeVideo, 10*time.Millisecond, true, nil)
	exporter.RecordInference("face", vision.RunningModeVideo, 10*time.Millisecond, false, nil)
	exporter.RecordInference("face", vision.RunningModeVideo, 10*time.Millisecond, false, nil)
	exporter.RecordInference("face", vision.RunningModeLiveStream, time.Millisecond, false, errors.New("boom"))
	exporter.RecordRequestRejected("face", "timestamp")
	exporter.RecordRequestRejected("", "")
	exporter.RecordDelivery("face", 30*time.Millisecond)

	tests := []struct {
		labels []string
		want   uint64
	}{
		{labels: []string{"face", "video", "result"}, want: 1},
		{labels: []string{"face", "video", "empty"}, want: 2},
		{labels: []string{"face", "live_stream", "error"}, want: 1},
	}
	for _, tt := range tests {
		got, err := histogramSampleCount(exporter.inferenceSeconds.WithLabelValues(tt.labels...))
		if err != nil {
			t.Fatalf("histogramSampleCount(%v) failed: %v", tt.labels, err)
		}
		if got != tt.want {
			t.Fatalf("inference count %v = %d, want %d", tt.labels, got, tt.want)
		}
	}

	if got := testutil.ToFloat64(exporter.requestsRejected.WithLabelValues("face", "timestamp")); got != 1 {
		t.Fatalf("rejected(face, timestamp) = %v, want 1", got)
	}
	if got := testutil.ToFloat64(exporter.requestsRejected.WithLabelValues("unknown", "unknown")); got != 1 {
		t.Fatalf("rejected(unknown, unknown) = %v, want 1", got)
	}

	delivered, err := histogramSampleCount(exporter.deliveryLatency.WithLabelValues("face"))
	if err != nil {
		t.Fatalf("histogramSampleCount failed: %v", err)
	}
	if delivered != 1 {
		t.Fatalf("delivery count = %d, want 1", delivered)
	}
}

func TestMetricsExporter_AlreadyRegisteredReuse(t *testing.T) {
	reg := prom.NewRegistry()
	first, err := NewMetricsExporter("visionrunner", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("first NewMetricsExporter failed: %v", err)
	}
	second, err := NewMetricsExporter("visionrunner", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("second NewMetricsExporter failed: %v", err)
	}

	first.RecordTaskPanic("runner-a", nil)
	second.RecordTaskPanic("runner-a", nil)

	got := testutil.ToFloat64(first.taskPanicTotal.WithLabelValues("runner-a"))
	if got != 2 {
		t.Fatalf("shared panic counter = %v, want 2", got)
	}
}

func TestMetricsExporter_NilSafe(t *testing.T) {
	var exporter *MetricsExporter
	exporter.RecordInference("r", vision.RunningModeImage, time.Second, true, nil)
	exporter.RecordRequestRejected("r", "mode")
	exporter.RecordDelivery("r", time.Second)
	exporter.RecordTaskDuration("r", time.Second)
	exporter.RecordTaskPanic("r", nil)
	exporter.RecordQueueDepth("r", 1)
	exporter.RecordTaskRejected("r", "closed")
}

func histogramSampleCount(observer prom.Observer) (uint64, error) {
	collector, ok := observer.(prom.Collector)
	if !ok {
		return 0, nil
	}

	metricCh := make(chan prom.Metric, 1)
	collector.Collect(metricCh)
	close(metricCh)
	for metric := range metricCh {
		msg := &dto.Metric{}
		if err := metric.Write(msg); err != nil {
			return 0, err
		}
		if msg.Histogram != nil {
			return msg.Histogram.GetSampleCount(), nil
		}
	}
	return 0, nil
}
