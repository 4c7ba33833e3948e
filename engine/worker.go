package engine

import (
	"context"
	"time"

	"github.com/relaysync/syncbox"
)

const (
	defaultBatchLimit        = 25
	defaultInflightTimeoutMS = 10_000

	noTransportError = "no transport configured"
	sendFailedError  = "send failed"
)

// WorkerConfig configures a SyncWorker.
type WorkerConfig struct {
	// BatchLimit caps how many ready operations a single Tick claims and sends.
	BatchLimit int
	// InflightTimeoutMS is how long an operation may sit InFlight before
	// Tick requeues it back to Failed, recovering from a worker that died
	// mid-send.
	InflightTimeoutMS int64
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.BatchLimit <= 0 {
		c.BatchLimit = defaultBatchLimit
	}
	if c.InflightTimeoutMS <= 0 {
		c.InflightTimeoutMS = defaultInflightTimeoutMS
	}

	return c
}

// SyncWorker performs a single sweep-claim-send-record cycle over an
// Outbox. It holds no goroutines or timers of its own; SyncEngine supplies
// the loop and the clock.
type SyncWorker struct {
	cfg       WorkerConfig
	outbox    *syncbox.Outbox
	probe     Probe
	transport Transport
	metrics   syncbox.Metrics
}

// NewSyncWorker constructs a SyncWorker. probe may be nil, in which case
// the worker always sends. transport may be nil, in which case every send
// fails retryably with "no transport configured". metrics may be nil, in
// which case syncbox.NopMetrics is used.
func NewSyncWorker(cfg WorkerConfig, outbox *syncbox.Outbox, probe Probe, transport Transport, metrics syncbox.Metrics) (*SyncWorker, error) {
	if outbox == nil {
		return nil, ErrOutboxRequired
	}
	if metrics == nil {
		metrics = syncbox.NopMetrics{}
	}

	return &SyncWorker{
		cfg:       cfg.withDefaults(),
		outbox:    outbox,
		probe:     probe,
		transport: transport,
		metrics:   metrics,
	}, nil
}

// TickResult summarizes one SyncWorker.Tick call.
type TickResult struct {
	// Processed is the number of operations claimed and sent.
	Processed int
	// Online reports whether the probe allowed sending this tick.
	Online bool
}

// Tick performs one non-blocking sweep: it first requeues any operation
// stuck InFlight past InflightTimeoutMS, then — if the probe reports
// online — claims and sends up to BatchLimit ready operations.
func (w *SyncWorker) Tick(ctx context.Context, nowMS int64) (TickResult, error) {
	swept, err := w.outbox.Store().RequeueInflightOlderThan(ctx, nowMS, w.cfg.InflightTimeoutMS)
	if err != nil {
		return TickResult{}, err
	}
	if swept > 0 {
		w.metrics.AddSweptInflight(swept)
	}

	if !w.shouldSend(ctx, nowMS) {
		return TickResult{Online: false}, nil
	}

	processed, err := w.processReady(ctx, nowMS)
	if err != nil {
		return TickResult{Online: true}, err
	}

	return TickResult{Processed: processed, Online: true}, nil
}

func (w *SyncWorker) shouldSend(ctx context.Context, nowMS int64) bool {
	if w.probe == nil {
		return true
	}

	return w.probe.Refresh(ctx, nowMS)
}

func (w *SyncWorker) processReady(ctx context.Context, nowMS int64) (int, error) {
	ops, err := w.outbox.PeekReady(ctx, nowMS, w.cfg.BatchLimit)
	if err != nil {
		return 0, err
	}
	w.metrics.SetPendingReady(len(ops))

	processed := 0
	for _, op := range ops {
		claimed, err := w.outbox.Claim(ctx, op.ID, nowMS)
		if err != nil {
			return processed, err
		}
		if !claimed {
			continue
		}

		result := w.send(ctx, op)
		w.metrics.AddDispatched(1)

		if result.OK {
			if _, err := w.outbox.Complete(ctx, op.ID, nowMS); err != nil {
				return processed, err
			}
			w.metrics.AddCompleted(1)
		} else {
			errMsg := result.Error
			if errMsg == "" {
				errMsg = sendFailedError
			}
			if _, err := w.outbox.Fail(ctx, op.ID, errMsg, nowMS, result.Retryable); err != nil {
				return processed, err
			}
			w.recordFailure(op, result)
		}

		processed++
	}

	return processed, nil
}

func (w *SyncWorker) recordFailure(op syncbox.Operation, result SendResult) {
	if !result.Retryable {
		w.metrics.AddPermanentFailed(1)

		return
	}

	if w.outbox.Config().Retry.CanRetry(op.Attempt + 1) {
		w.metrics.AddRetried(1)
	} else {
		w.metrics.AddPermanentFailed(1)
	}
}

func (w *SyncWorker) send(ctx context.Context, op syncbox.Operation) SendResult {
	if w.transport == nil {
		return SendResult{OK: false, Retryable: true, Error: noTransportError}
	}

	start := time.Now()
	result := w.transport.Send(ctx, op)
	w.metrics.ObserveSendDuration(time.Since(start))

	return result
}
