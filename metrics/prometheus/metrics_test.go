package prometheus

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecordsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New("syncbox_test", reg)
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}

	m.ObserveSendDuration(5 * time.Millisecond)
	m.AddDispatched(3)
	m.AddCompleted(2)
	m.AddRetried(1)
	m.AddPermanentFailed(1)
	m.AddSweptInflight(4)
	m.SetPendingReady(7)

	if got := testutil.ToFloat64(m.dispatched); got != 3 {
		t.Fatalf("expected dispatched=3, got %v", got)
	}
	if got := testutil.ToFloat64(m.completed); got != 2 {
		t.Fatalf("expected completed=2, got %v", got)
	}
	if got := testutil.ToFloat64(m.retried); got != 1 {
		t.Fatalf("expected retried=1, got %v", got)
	}
	if got := testutil.ToFloat64(m.permanentFailed); got != 1 {
		t.Fatalf("expected permanentFailed=1, got %v", got)
	}
	if got := testutil.ToFloat64(m.sweptInflight); got != 4 {
		t.Fatalf("expected sweptInflight=4, got %v", got)
	}
	if got := testutil.ToFloat64(m.pendingReady); got != 7 {
		t.Fatalf("expected pendingReady=7, got %v", got)
	}
}

func TestNewRejectsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New("syncbox_test", reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := New("syncbox_test", reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}
