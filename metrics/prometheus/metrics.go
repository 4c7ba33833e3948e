// Package prometheus implements syncbox.Metrics over
// github.com/prometheus/client_golang, registering one counter/gauge/
// histogram family per Metrics method.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/relaysync/syncbox"
)

// Metrics implements syncbox.Metrics, recording to a dedicated family of
// Prometheus collectors. Multiple Metrics instances must use distinct
// namespaces or be registered against distinct registries, since
// collector names collide on duplicate registration.
type Metrics struct {
	sendDuration    prometheus.Histogram
	dispatched      prometheus.Counter
	completed       prometheus.Counter
	retried         prometheus.Counter
	permanentFailed prometheus.Counter
	sweptInflight   prometheus.Counter
	pendingReady    prometheus.Gauge
}

var _ syncbox.Metrics = (*Metrics)(nil)

// New constructs a Metrics and registers its collectors against reg. If
// reg is nil, prometheus.DefaultRegisterer is used.
func New(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		sendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "send_duration_seconds",
			Help:      "Time spent in a single transport Send call.",
			Buckets:   prometheus.DefBuckets,
		}),
		dispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatched_total",
			Help:      "Total number of send attempts made.",
		}),
		completed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completed_total",
			Help:      "Total number of operations marked Done.",
		}),
		retried: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retried_total",
			Help:      "Total number of operations returned to Failed for a retry.",
		}),
		permanentFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "permanent_failed_total",
			Help:      "Total number of operations moved to PermanentFailed.",
		}),
		sweptInflight: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swept_inflight_total",
			Help:      "Total number of stuck in-flight operations requeued.",
		}),
		pendingReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_ready",
			Help:      "Current count of ready-to-send operations.",
		}),
	}

	collectors := []prometheus.Collector{
		m.sendDuration, m.dispatched, m.completed, m.retried,
		m.permanentFailed, m.sweptInflight, m.pendingReady,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// ObserveSendDuration implements syncbox.Metrics.
func (m *Metrics) ObserveSendDuration(d time.Duration) {
	m.sendDuration.Observe(d.Seconds())
}

// AddDispatched implements syncbox.Metrics.
func (m *Metrics) AddDispatched(count int) {
	m.dispatched.Add(float64(count))
}

// AddCompleted implements syncbox.Metrics.
func (m *Metrics) AddCompleted(count int) {
	m.completed.Add(float64(count))
}

// AddRetried implements syncbox.Metrics.
func (m *Metrics) AddRetried(count int) {
	m.retried.Add(float64(count))
}

// AddPermanentFailed implements syncbox.Metrics.
func (m *Metrics) AddPermanentFailed(count int) {
	m.permanentFailed.Add(float64(count))
}

// AddSweptInflight implements syncbox.Metrics.
func (m *Metrics) AddSweptInflight(count int) {
	m.sweptInflight.Add(float64(count))
}

// SetPendingReady implements syncbox.Metrics.
func (m *Metrics) SetPendingReady(count int) {
	m.pendingReady.Set(float64(count))
}
