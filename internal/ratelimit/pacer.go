// Package ratelimit paces sequential calls to upstream services. Politeness
// toward feed hosts and model backends is a hard requirement, so every
// external call goes through a Pacer derived from a requests-per-second
// budget.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Pacer enforces a minimum interval between consecutive calls. The zero
// budget means unlimited.
type Pacer struct {
	limiter *rate.Limiter
}

// New builds a Pacer from a requests-per-second budget. Burst is pinned to 1
// so calls are strictly paced rather than allowed in bursts.
func New(rps float64) *Pacer {
	if rps <= 0 {
		return &Pacer{}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Limit(rps), 1)}
}

// Wait blocks until the next slot, or until ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.limiter == nil {
		return ctx.Err()
	}
	return p.limiter.Wait(ctx)
}
