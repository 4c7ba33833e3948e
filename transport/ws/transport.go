// Package ws implements engine.Transport over a single gorilla/websocket
// connection: each operation is sent as a JSON frame and the call blocks
// until the matching ack/nack frame arrives or ctx is cancelled.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relaysync/syncbox"
	"github.com/relaysync/syncbox/engine"
)

const (
	defaultWriteTimeout = 10 * time.Second
	defaultAckTimeout   = 30 * time.Second
)

// frame is the wire shape exchanged over the connection. Request frames
// carry an operation; response frames carry its outcome. OpID correlates
// the two across a full-duplex connection that may also carry other
// traffic.
type frame struct {
	OpID      string `json:"op_id"`
	Kind      string `json:"kind,omitempty"`
	Target    string `json:"target,omitempty"`
	Payload   []byte `json:"payload,omitempty"`
	OK        bool   `json:"ok,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Config configures a Transport.
type Config struct {
	// Conn is the underlying connection. Required.
	Conn *websocket.Conn
	// WriteTimeout bounds how long a single frame write may take. Defaults
	// to 10s.
	WriteTimeout time.Duration
	// AckTimeout bounds how long Send waits for the peer's response frame
	// once the request has been written. Defaults to 30s.
	AckTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.AckTimeout <= 0 {
		c.AckTimeout = defaultAckTimeout
	}

	return c
}

// Transport implements engine.Transport by sending each operation as a
// JSON frame over a websocket connection and awaiting a single ack/nack
// frame in reply. The connection carries one request at a time: Send
// serializes concurrent callers with an internal mutex, matching the way
// a SyncWorker drives sends sequentially within a single Tick.
type Transport struct {
	cfg Config
	mu  sync.Mutex
}

var _ engine.Transport = (*Transport)(nil)

// New constructs a Transport. Returns an error if cfg.Conn is nil.
func New(cfg Config) (*Transport, error) {
	if cfg.Conn == nil {
		return nil, fmt.Errorf("ws: conn is required")
	}

	return &Transport{cfg: cfg.withDefaults()}, nil
}

// Send writes op as a request frame and blocks until the matching
// response frame arrives, ctx is cancelled, or AckTimeout elapses.
// Malformed or out-of-order frames are treated as retryable failures
// rather than closing the connection, since a single misbehaving peer
// frame should not take down the whole transport.
func (t *Transport) Send(ctx context.Context, op syncbox.Operation) engine.SendResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	deadline := time.Now().Add(t.cfg.AckTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := t.writeRequest(op); err != nil {
		return retryableError(fmt.Sprintf("ws: write request: %v", err))
	}

	return t.readResponse(ctx, op.ID, deadline)
}

func (t *Transport) writeRequest(op syncbox.Operation) error {
	if err := t.cfg.Conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout)); err != nil {
		return err
	}

	return t.cfg.Conn.WriteJSON(frame{
		OpID:    op.ID,
		Kind:    op.Kind,
		Target:  op.Target,
		Payload: op.Payload,
	})
}

func (t *Transport) readResponse(ctx context.Context, opID string, deadline time.Time) engine.SendResult {
	if err := t.cfg.Conn.SetReadDeadline(deadline); err != nil {
		return retryableError(fmt.Sprintf("ws: set read deadline: %v", err))
	}
	stop := context.AfterFunc(ctx, func() { _ = t.cfg.Conn.SetReadDeadline(time.Now()) })
	defer stop()

	var resp frame
	if err := t.cfg.Conn.ReadJSON(&resp); err != nil {
		return retryableError(fmt.Sprintf("ws: read response: %v", err))
	}
	if resp.OpID != opID {
		return retryableError(fmt.Sprintf("ws: response op_id mismatch: got %q, want %q", resp.OpID, opID))
	}

	return engine.SendResult{OK: resp.OK, Retryable: resp.Retryable, Error: resp.Error}
}

func retryableError(msg string) engine.SendResult {
	return engine.SendResult{OK: false, Retryable: true, Error: msg}
}

// marshalFrame is exposed for tests that want to assert on wire shape
// without standing up a real connection.
func marshalFrame(f frame) ([]byte, error) {
	return json.Marshal(f)
}
