package syncbox

import (
	"context"
	"testing"
)

func TestOutbox_EnqueueAssignsIDAndIdempotencyKey(t *testing.T) {
	ob, err := NewOutbox(NewMemStore())
	if err != nil {
		t.Fatalf("new outbox: %v", err)
	}

	id, err := ob.Enqueue(context.Background(), Operation{Kind: "http.post", Payload: []byte("x")}, 1000)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if id == "" {
		t.Fatalf("expected an id to be assigned")
	}

	op, err := ob.Store().Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if op.IdempotencyKey == "" {
		t.Fatalf("expected an idempotency key to be assigned")
	}
	if op.Status != StatusPending {
		t.Fatalf("expected status pending, got %v", op.Status)
	}
	if op.NextRetryAtMS != 1000 {
		t.Fatalf("expected next retry at enqueue time, got %d", op.NextRetryAtMS)
	}
}

func TestOutbox_ClaimCompleteHappyPath(t *testing.T) {
	ctx := context.Background()
	ob, _ := NewOutbox(NewMemStore())

	id, err := ob.Enqueue(ctx, Operation{Kind: "http.post", Payload: []byte("x")}, 0)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	ok, err := ob.Claim(ctx, id, 10)
	if err != nil || !ok {
		t.Fatalf("claim: ok=%v err=%v", ok, err)
	}

	// A second claim attempt must fail: the operation is already InFlight.
	ok, err = ob.Claim(ctx, id, 11)
	if err != nil || ok {
		t.Fatalf("expected second claim to fail, got ok=%v err=%v", ok, err)
	}

	ok, err = ob.Complete(ctx, id, 20)
	if err != nil || !ok {
		t.Fatalf("complete: ok=%v err=%v", ok, err)
	}

	op, err := ob.Store().Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if op.Status != StatusDone {
		t.Fatalf("expected done, got %v", op.Status)
	}
}

func TestOutbox_FailRetryableSchedulesBackoff(t *testing.T) {
	ctx := context.Background()
	policy := NewRetryPolicy(WithMaxAttempts(3), WithBaseDelayMS(100), WithMaxDelayMS(1000), WithFactor(2))
	ob, _ := NewOutbox(NewMemStore(), WithRetryPolicy(policy))

	id, _ := ob.Enqueue(ctx, Operation{Kind: "k", Payload: []byte("x")}, 0)
	ob.Claim(ctx, id, 0)

	ok, err := ob.Fail(ctx, id, "boom", 5, true)
	if err != nil || !ok {
		t.Fatalf("fail: ok=%v err=%v", ok, err)
	}

	op, _ := ob.Store().Get(ctx, id)
	if op.Status != StatusFailed {
		t.Fatalf("expected failed, got %v", op.Status)
	}
	if op.Attempt != 1 {
		t.Fatalf("expected attempt 1, got %d", op.Attempt)
	}
	if op.NextRetryAtMS != 5+200 {
		t.Fatalf("expected next retry at 205, got %d", op.NextRetryAtMS)
	}
}

func TestOutbox_FailNonRetryableIsPermanent(t *testing.T) {
	ctx := context.Background()
	ob, _ := NewOutbox(NewMemStore())

	id, _ := ob.Enqueue(ctx, Operation{Kind: "k", Payload: []byte("x")}, 0)
	ob.Claim(ctx, id, 0)

	ok, err := ob.Fail(ctx, id, "rejected", 5, false)
	if err != nil || !ok {
		t.Fatalf("fail: ok=%v err=%v", ok, err)
	}

	op, _ := ob.Store().Get(ctx, id)
	if op.Status != StatusPermanentFailed {
		t.Fatalf("expected permanent failed, got %v", op.Status)
	}
}

func TestOutbox_FailExhaustsRetriesEscalatesToPermanent(t *testing.T) {
	ctx := context.Background()
	policy := NewRetryPolicy(WithMaxAttempts(1), WithBaseDelayMS(10), WithMaxDelayMS(10), WithFactor(1))
	ob, _ := NewOutbox(NewMemStore(), WithRetryPolicy(policy))

	id, _ := ob.Enqueue(ctx, Operation{Kind: "k", Payload: []byte("x")}, 0)
	ob.Claim(ctx, id, 0)

	// First retryable failure: attempt becomes 1, which already meets
	// MaxAttempts, so this must escalate straight to PermanentFailed
	// rather than leaving a Failed operation peek_ready would resurrect
	// forever.
	ok, err := ob.Fail(ctx, id, "boom", 5, true)
	if err != nil || !ok {
		t.Fatalf("fail: ok=%v err=%v", ok, err)
	}

	op, _ := ob.Store().Get(ctx, id)
	if op.Status != StatusPermanentFailed {
		t.Fatalf("expected permanent failed once attempts are exhausted, got %v", op.Status)
	}
}

func TestOutbox_PeekReadyExcludesInflightAndNotYetDue(t *testing.T) {
	ctx := context.Background()
	ob, _ := NewOutbox(NewMemStore())

	ready, _ := ob.Enqueue(ctx, Operation{Kind: "k", Payload: []byte("a")}, 0)
	notDue, _ := ob.Enqueue(ctx, Operation{Kind: "k", Payload: []byte("b"), NextRetryAtMS: 1000}, 0)
	inflight, _ := ob.Enqueue(ctx, Operation{Kind: "k", Payload: []byte("c")}, 0)
	ob.Claim(ctx, inflight, 0)

	ops, err := ob.PeekReady(ctx, 5, 10)
	if err != nil {
		t.Fatalf("peek ready: %v", err)
	}

	ids := map[string]bool{}
	for _, op := range ops {
		ids[op.ID] = true
	}
	if !ids[ready] {
		t.Fatalf("expected ready operation to be included")
	}
	if ids[notDue] {
		t.Fatalf("expected not-yet-due operation to be excluded")
	}
	if ids[inflight] {
		t.Fatalf("expected inflight operation to be excluded")
	}
}
