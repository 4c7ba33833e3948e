package syncbox

import "time"

// Metrics captures engine-level telemetry.
type Metrics interface {
	// ObserveSendDuration records the time spent in a single transport call.
	ObserveSendDuration(duration time.Duration)
	// AddDispatched increments the count of send attempts made.
	AddDispatched(count int)
	// AddCompleted increments the count of operations marked Done.
	AddCompleted(count int)
	// AddRetried increments the count of operations returned to Failed for a retry.
	AddRetried(count int)
	// AddPermanentFailed increments the count of operations moved to PermanentFailed.
	AddPermanentFailed(count int)
	// AddSweptInflight increments the count of stuck in-flight operations requeued.
	AddSweptInflight(count int)
	// SetPendingReady updates the current count of ready-to-send operations.
	SetPendingReady(count int)
}

// NopMetrics is a no-op metrics recorder.
type NopMetrics struct{}

// ObserveSendDuration implements Metrics.
func (NopMetrics) ObserveSendDuration(time.Duration) {}

// AddDispatched implements Metrics.
func (NopMetrics) AddDispatched(int) {}

// AddCompleted implements Metrics.
func (NopMetrics) AddCompleted(int) {}

// AddRetried implements Metrics.
func (NopMetrics) AddRetried(int) {}

// AddPermanentFailed implements Metrics.
func (NopMetrics) AddPermanentFailed(int) {}

// AddSweptInflight implements Metrics.
func (NopMetrics) AddSweptInflight(int) {}

// SetPendingReady implements Metrics.
func (NopMetrics) SetPendingReady(int) {}
