// Package redisprobe implements engine.Probe by PINGing a Redis instance:
// a shared broker's reachability stands in for "is the network path to our
// backing services up." The last verdict is cached for a configurable TTL
// so a worker's once-per-tick Refresh call doesn't hammer Redis.
package redisprobe

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/relaysync/syncbox/engine"
)

const defaultTTL = 2 * time.Second

// Config configures a Probe.
type Config struct {
	// Client is the Redis client to PING. Required.
	Client *redis.Client
	// TTL is how long a verdict is reused before Refresh PINGs again.
	// Defaults to 2s.
	TTL time.Duration
	// PingTimeout bounds a single PING call. Defaults to TTL.
	PingTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = defaultTTL
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = c.TTL
	}

	return c
}

// Probe implements engine.Probe over a Redis PING, caching the verdict for
// Config.TTL wall-clock time so repeated Refresh calls within a tick
// interval don't each round-trip to Redis.
type Probe struct {
	cfg Config

	mu       sync.Mutex
	checked  time.Time
	lastOK   bool
	lastInit bool
}

var _ engine.Probe = (*Probe)(nil)

// New constructs a Probe. Returns an error if cfg.Client is nil.
func New(cfg Config) (*Probe, error) {
	if cfg.Client == nil {
		return nil, errClientRequired
	}

	return &Probe{cfg: cfg.withDefaults()}, nil
}

// Refresh returns the cached verdict if it is still within TTL, otherwise
// PINGs Redis and caches the new verdict. nowMS is accepted to satisfy
// engine.Probe's signature but the cache uses wall-clock time internally,
// since the TTL is a real-world rate limit on PING traffic rather than a
// property of the simulated operation timeline.
func (p *Probe) Refresh(ctx context.Context, nowMS int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if p.lastInit && now.Sub(p.checked) < p.cfg.TTL {
		return p.lastOK
	}

	pingCtx, cancel := context.WithTimeout(ctx, p.cfg.PingTimeout)
	defer cancel()

	ok := p.cfg.Client.Ping(pingCtx).Err() == nil

	p.checked = now
	p.lastOK = ok
	p.lastInit = true

	return ok
}
