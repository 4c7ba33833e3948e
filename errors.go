package syncbox

import "errors"

var (
	// ErrOperationNotFound is returned when a store method targets an unknown id.
	ErrOperationNotFound = errors.New("syncbox: operation not found")
	// ErrInvalidID is returned when parsing a generated id fails.
	ErrInvalidID = errors.New("syncbox: invalid id")
	// ErrStoreRequired is returned when Outbox is constructed without a store.
	ErrStoreRequired = errors.New("syncbox: outbox store is required")
	// ErrEmptyPayload is returned when an operation is enqueued without a payload.
	ErrEmptyPayload = errors.New("syncbox: operation payload is required")
	// ErrEmptyKind is returned when an operation is enqueued without a kind.
	ErrEmptyKind = errors.New("syncbox: operation kind is required")
	// ErrStoreClosed reports use of a closed store. None of the stores in
	// this module has a Close method, and none of them returns it.
	ErrStoreClosed = errors.New("syncbox: store is closed")
)
