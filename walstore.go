package syncbox

import (
	"context"

	"github.com/relaysync/syncbox/wal"
)

// WALStore wraps an OutboxStore with a write-ahead log: Put, MarkDone,
// MarkFailed and MarkPermanentFailed are appended to the log before being
// applied to the inner store, so a crash between the two leaves a record
// that Recover can replay.
//
// Claim, RequeueInflightOlderThan and PruneDone are passed straight to the
// inner store and not logged, so replay restores neither InFlight claims,
// nor the attempt increments of a requeue, nor prunes (a missed prune just
// means stale Done rows linger until the next sweep).
type WALStore struct {
	inner OutboxStore
	log   *wal.Wal
}

// NewWALStore wraps inner with a write-ahead log rooted at path.
func NewWALStore(inner OutboxStore, path string, fsyncOnWrite bool) (*WALStore, error) {
	if inner == nil {
		return nil, ErrStoreRequired
	}

	return &WALStore{
		inner: inner,
		log:   wal.New(wal.Config{Path: path, FsyncOnWrite: fsyncOnWrite}),
	}, nil
}

var _ OutboxStore = (*WALStore)(nil)

// Put implements OutboxStore.
func (s *WALStore) Put(ctx context.Context, op Operation) error {
	if _, err := s.log.Append(wal.Record{
		ID:      op.ID,
		Type:    wal.PutOperation,
		TSMS:    op.UpdatedAtMS,
		Payload: op.Payload,
	}); err != nil {
		return err
	}

	return s.inner.Put(ctx, op)
}

// Get implements OutboxStore.
func (s *WALStore) Get(ctx context.Context, id string) (Operation, error) {
	return s.inner.Get(ctx, id)
}

// List implements OutboxStore.
func (s *WALStore) List(ctx context.Context, opts ListOptions) ([]Operation, error) {
	return s.inner.List(ctx, opts)
}

// Claim implements OutboxStore.
func (s *WALStore) Claim(ctx context.Context, id, owner string, nowMS int64) (bool, error) {
	return s.inner.Claim(ctx, id, owner, nowMS)
}

// MarkDone implements OutboxStore.
func (s *WALStore) MarkDone(ctx context.Context, id string, nowMS int64) (bool, error) {
	if _, err := s.log.Append(wal.Record{ID: id, Type: wal.MarkDone, TSMS: nowMS}); err != nil {
		return false, err
	}

	return s.inner.MarkDone(ctx, id, nowMS)
}

// MarkFailed implements OutboxStore.
func (s *WALStore) MarkFailed(ctx context.Context, id, errMsg string, nowMS, nextRetryAtMS int64) (bool, error) {
	if _, err := s.log.Append(wal.Record{
		ID:            id,
		Type:          wal.MarkFailed,
		TSMS:          nowMS,
		Error:         errMsg,
		NextRetryAtMS: nextRetryAtMS,
	}); err != nil {
		return false, err
	}

	return s.inner.MarkFailed(ctx, id, errMsg, nowMS, nextRetryAtMS)
}

// MarkPermanentFailed implements OutboxStore.
//
// A permanent failure is logged as a MarkFailed record with NextRetryAtMS
// equal to TSMS: Recover treats that as the signal to replay it as a
// permanent failure rather than a retryable one (see Recover).
func (s *WALStore) MarkPermanentFailed(ctx context.Context, id, errMsg string, nowMS int64) (bool, error) {
	if _, err := s.log.Append(wal.Record{
		ID:            id,
		Type:          wal.MarkFailed,
		TSMS:          nowMS,
		Error:         errMsg,
		NextRetryAtMS: nowMS,
	}); err != nil {
		return false, err
	}

	return s.inner.MarkPermanentFailed(ctx, id, errMsg, nowMS)
}

// PruneDone implements OutboxStore.
func (s *WALStore) PruneDone(ctx context.Context, olderThanMS int64) (int, error) {
	return s.inner.PruneDone(ctx, olderThanMS)
}

// RequeueInflightOlderThan implements OutboxStore.
func (s *WALStore) RequeueInflightOlderThan(ctx context.Context, nowMS, timeoutMS int64) (int, error) {
	return s.inner.RequeueInflightOlderThan(ctx, nowMS, timeoutMS)
}

// Recover replays the write-ahead log into store from fromOffset, applying
// each record's effect, and returns the byte offset at which the last
// replayed record starts (-1 if no record was read). It is
// meant to run once at startup before the first WALStore mutation.
func (s *WALStore) Recover(ctx context.Context, store OutboxStore, fromOffset int64) (int64, error) {
	var replayErr error

	last, err := s.log.Replay(fromOffset, func(rec wal.Record) {
		if replayErr != nil {
			return
		}

		switch rec.Type {
		case wal.PutOperation:
			_, getErr := store.Get(ctx, rec.ID)
			if getErr == nil {
				return
			}
			replayErr = store.Put(ctx, Operation{
				ID:          rec.ID,
				Payload:     rec.Payload,
				CreatedAtMS: rec.TSMS,
				UpdatedAtMS: rec.TSMS,
				Status:      StatusPending,
			})
		case wal.MarkDone:
			_, replayErr = store.MarkDone(ctx, rec.ID, rec.TSMS)
		case wal.MarkFailed:
			if rec.NextRetryAtMS == rec.TSMS {
				_, replayErr = store.MarkPermanentFailed(ctx, rec.ID, rec.Error, rec.TSMS)

				return
			}
			_, replayErr = store.MarkFailed(ctx, rec.ID, rec.Error, rec.TSMS, rec.NextRetryAtMS)
		}
	})
	if err != nil {
		return last, err
	}

	return last, replayErr
}
