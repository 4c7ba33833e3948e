package engine

import "errors"

var (
	// ErrOutboxRequired is returned when a SyncWorker or SyncEngine is
	// constructed without an Outbox.
	ErrOutboxRequired = errors.New("engine: outbox is required")
	// ErrWorkerPanic wraps a recovered panic from a worker's run loop.
	ErrWorkerPanic = errors.New("engine: worker panicked")
)
