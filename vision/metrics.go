package vision

import "time"

// Metrics receives per-request observations from a TaskRunner.
// Implementations must be safe for concurrent use.
type Metrics interface {
	// RecordInference records one engine call. hasResult is false when the
	// engine found nothing to process; err is the engine error, if any.
	RecordInference(runner string, mode RunningMode, duration time.Duration, hasResult bool, err error)

	// RecordRequestRejected records a call refused before reaching the engine.
	RecordRequestRejected(runner string, reason string)

	// RecordDelivery records the submit-to-callback latency of a LIVE_STREAM request.
	RecordDelivery(runner string, latency time.Duration)
}

// NilMetrics discards all observations.
type NilMetrics struct{}

func (NilMetrics) RecordInference(string, RunningMode, time.Duration, bool, error) {}
func (NilMetrics) RecordRequestRejected(string, string)                            {}
func (NilMetrics) RecordDelivery(string, time.Duration)                            {}
