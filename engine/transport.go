package engine

import (
	"context"

	"github.com/relaysync/syncbox"
)

// SendResult is the outcome of a Transport.Send call.
type SendResult struct {
	// OK reports whether the operation was delivered.
	OK bool
	// Retryable is consulted only when OK is false: true schedules a
	// backoff retry, false escalates the operation straight to
	// PermanentFailed.
	Retryable bool
	// Error is a human-readable description of the failure, if any.
	Error string
}

// Transport performs the actual delivery of an operation (HTTP, a message
// broker, a websocket peer, and so on). Implementations must not block
// indefinitely; respect ctx cancellation.
type Transport interface {
	Send(ctx context.Context, op syncbox.Operation) SendResult
}
