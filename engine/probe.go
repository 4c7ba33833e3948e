package engine

import "context"

// Probe reports network reachability. Refresh is called once per worker
// tick and may throttle its own underlying checks internally; it returns
// the (possibly cached) online/offline verdict for nowMS.
type Probe interface {
	Refresh(ctx context.Context, nowMS int64) bool
}

// AlwaysOnlineProbe reports online unconditionally. Useful for tests and
// for deployments with no connectivity signal of their own.
type AlwaysOnlineProbe struct{}

// Refresh implements Probe.
func (AlwaysOnlineProbe) Refresh(context.Context, int64) bool {
	return true
}
