package syncbox

import "context"

const (
	defaultOwner       = "syncbox"
	defaultPeekLimit   = 50
	requeuedErrMessage = "requeued after inflight timeout"
)

// OutboxConfig configures an Outbox.
type OutboxConfig struct {
	// Owner identifies this outbox instance in the store's ownership table.
	Owner string
	// Retry is the backoff policy consulted by Fail.
	Retry RetryPolicy
	// IDGenerator assigns ids to operations enqueued without one.
	IDGenerator IDGenerator
	// IdempotencyGenerator assigns idempotency keys to operations enqueued
	// without one.
	IdempotencyGenerator IdempotencyGenerator
	// AutoGenerateIDs controls whether Enqueue assigns missing ids. Defaults to true.
	AutoGenerateIDs bool
	// AutoGenerateIdempotencyKeys controls whether Enqueue assigns missing
	// idempotency keys. Defaults to true.
	AutoGenerateIdempotencyKeys bool
}

func (c OutboxConfig) withDefaults() OutboxConfig {
	if c.Owner == "" {
		c.Owner = defaultOwner
	}
	if c.Retry == (RetryPolicy{}) {
		c.Retry = DefaultRetryPolicy()
	}
	if c.IDGenerator == nil {
		c.IDGenerator = NewUUIDv7Generator(SystemClock{})
	}
	if c.IdempotencyGenerator == nil {
		c.IdempotencyGenerator = UUIDv4IdempotencyGenerator{}
	}

	return c
}

// OutboxOption configures an Outbox built with NewOutbox.
type OutboxOption func(*OutboxConfig)

// WithOwner sets the owner identity recorded on claimed operations.
func WithOwner(owner string) OutboxOption {
	return func(c *OutboxConfig) {
		c.Owner = owner
	}
}

// WithRetryPolicy sets the backoff policy.
func WithRetryPolicy(policy RetryPolicy) OutboxOption {
	return func(c *OutboxConfig) {
		c.Retry = policy
	}
}

// WithIDGenerator overrides the id generator.
func WithIDGenerator(gen IDGenerator) OutboxOption {
	return func(c *OutboxConfig) {
		c.IDGenerator = gen
	}
}

// WithIdempotencyGenerator overrides the idempotency key generator.
func WithIdempotencyGenerator(gen IdempotencyGenerator) OutboxOption {
	return func(c *OutboxConfig) {
		c.IdempotencyGenerator = gen
	}
}

// WithAutoGenerateIDs enables or disables automatic id assignment.
func WithAutoGenerateIDs(enabled bool) OutboxOption {
	return func(c *OutboxConfig) {
		c.AutoGenerateIDs = enabled
	}
}

// WithAutoGenerateIdempotencyKeys enables or disables automatic idempotency
// key assignment.
func WithAutoGenerateIdempotencyKeys(enabled bool) OutboxOption {
	return func(c *OutboxConfig) {
		c.AutoGenerateIdempotencyKeys = enabled
	}
}

// Outbox is the thin policy layer over an OutboxStore: id and idempotency
// key generation at enqueue time, attempt counting and backoff computation
// on failure, and peek-ready for the engine to pull a batch from.
type Outbox struct {
	cfg   OutboxConfig
	store OutboxStore
}

// NewOutbox constructs an Outbox over store with defaults and optional settings.
func NewOutbox(store OutboxStore, opts ...OutboxOption) (*Outbox, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}

	cfg := OutboxConfig{AutoGenerateIDs: true, AutoGenerateIdempotencyKeys: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg = cfg.withDefaults()

	return &Outbox{cfg: cfg, store: store}, nil
}

// Store returns the underlying OutboxStore.
func (o *Outbox) Store() OutboxStore {
	return o.store
}

// Config returns the outbox's effective configuration.
func (o *Outbox) Config() OutboxConfig {
	return o.cfg
}

// Enqueue persists op, assigning an id and idempotency key if configured to
// do so and they are empty, and returns the assigned id.
func (o *Outbox) Enqueue(ctx context.Context, op Operation, nowMS int64) (string, error) {
	if op.Kind == "" {
		return "", ErrEmptyKind
	}
	if len(op.Payload) == 0 {
		return "", ErrEmptyPayload
	}
	if o.cfg.AutoGenerateIDs && op.ID == "" {
		id, err := o.cfg.IDGenerator.New()
		if err != nil {
			return "", err
		}
		op.ID = id.String()
	}
	if o.cfg.AutoGenerateIdempotencyKeys && op.IdempotencyKey == "" {
		key, err := o.cfg.IdempotencyGenerator.New()
		if err != nil {
			return "", err
		}
		op.IdempotencyKey = key
	}

	if op.CreatedAtMS == 0 {
		op.CreatedAtMS = nowMS
	}
	op.UpdatedAtMS = nowMS

	if op.NextRetryAtMS == 0 {
		op.NextRetryAtMS = nowMS
	}
	op.Status = StatusPending

	if err := o.store.Put(ctx, op); err != nil {
		return "", err
	}

	return op.ID, nil
}

// PeekReady returns up to limit operations eligible for (re)send at nowMS.
func (o *Outbox) PeekReady(ctx context.Context, nowMS int64, limit int) ([]Operation, error) {
	if limit <= 0 {
		limit = defaultPeekLimit
	}

	return o.store.List(ctx, DefaultListOptions(nowMS, limit))
}

// Claim attempts to take ownership of id under this outbox's owner identity.
func (o *Outbox) Claim(ctx context.Context, id string, nowMS int64) (bool, error) {
	return o.store.Claim(ctx, id, o.cfg.Owner, nowMS)
}

// Complete marks id as delivered.
func (o *Outbox) Complete(ctx context.Context, id string, nowMS int64) (bool, error) {
	return o.store.MarkDone(ctx, id, nowMS)
}

// Fail records a send failure for id.
//
// A non-retryable failure moves the operation straight to
// PermanentFailed. A retryable failure that exhausts the retry policy also
// escalates to PermanentFailed, rather than leaving a Failed operation that
// peek_ready would resurrect forever (see DESIGN.md, "attempts-exhausted
// semantics"). Otherwise the operation returns to Failed with
// NextRetryAtMS computed from the policy.
func (o *Outbox) Fail(ctx context.Context, id, errMsg string, nowMS int64, retryable bool) (bool, error) {
	op, err := o.store.Get(ctx, id)
	if err != nil {
		if err == ErrOperationNotFound {
			return false, nil
		}

		return false, err
	}

	attempt := op.Attempt + 1

	if !retryable {
		return o.store.MarkPermanentFailed(ctx, id, errMsg, nowMS)
	}

	if !o.cfg.Retry.CanRetry(attempt) {
		exhausted := errMsg + " (attempts exhausted)"

		return o.store.MarkPermanentFailed(ctx, id, exhausted, nowMS)
	}

	delay := o.cfg.Retry.ComputeDelayMS(attempt)

	return o.store.MarkFailed(ctx, id, errMsg, nowMS, nowMS+delay)
}
