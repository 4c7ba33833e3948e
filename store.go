package syncbox

import "context"

// ListOptions controls which operations OutboxStore.List returns.
type ListOptions struct {
	Limit int
	NowMS int64
	// OnlyReady excludes operations whose NextRetryAtMS is after NowMS.
	// DefaultListOptions sets it to true; the zero value is false.
	OnlyReady bool
	// IncludeInflight includes operations currently InFlight. Defaults to false.
	IncludeInflight bool
}

// DefaultListOptions returns the peek-ready defaults: only ready operations,
// in-flight excluded.
func DefaultListOptions(nowMS int64, limit int) ListOptions {
	return ListOptions{Limit: limit, NowMS: nowMS, OnlyReady: true, IncludeInflight: false}
}

// OutboxStore is the persistent map of operation id to operation. It
// enforces the operation state machine: Claim is the only mutation that
// may move Pending|Failed to InFlight, and it atomically checks the
// precondition and applies the transition, guaranteeing that at most one
// caller ever claims a given operation at a time.
//
// Implementations must serialize mutations on the same store and must flush
// any change to durable storage before returning a successful result. Done
// and PermanentFailed are terminal: no method may transition an operation
// out of either status.
type OutboxStore interface {
	// Put inserts or overwrites an operation by id.
	Put(ctx context.Context, op Operation) error
	// Get returns the operation for id, or ErrOperationNotFound.
	Get(ctx context.Context, id string) (Operation, error)
	// List returns operations matching opts. Done and PermanentFailed
	// operations are always excluded.
	List(ctx context.Context, opts ListOptions) ([]Operation, error)
	// Claim transitions id from Pending|Failed to InFlight under owner.
	// It returns false if the operation does not exist or is already
	// InFlight, Done or PermanentFailed.
	Claim(ctx context.Context, id, owner string, nowMS int64) (bool, error)
	// MarkDone transitions id to Done, clearing its owner and last error.
	MarkDone(ctx context.Context, id string, nowMS int64) (bool, error)
	// MarkFailed transitions id to Failed, increments Attempt, records err
	// and the next retry time, and clears its owner.
	MarkFailed(ctx context.Context, id, err string, nowMS, nextRetryAtMS int64) (bool, error)
	// MarkPermanentFailed transitions id to the terminal PermanentFailed
	// status, increments Attempt, records err, and clears its owner.
	MarkPermanentFailed(ctx context.Context, id, err string, nowMS int64) (bool, error)
	// PruneDone deletes Done operations last updated at or before olderThanMS.
	PruneDone(ctx context.Context, olderThanMS int64) (int, error)
	// RequeueInflightOlderThan returns any InFlight operation whose
	// UpdatedAtMS is at least timeoutMS behind nowMS back to Failed,
	// incrementing Attempt and clearing its owner. It is the sole
	// crash-recovery mechanism for workers that died mid-send.
	RequeueInflightOlderThan(ctx context.Context, nowMS, timeoutMS int64) (int, error)
}
