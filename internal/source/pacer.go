package source

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// MinRequestInterval is the smallest delay allowed between paced requests
const MinRequestInterval = 300 * time.Millisecond

// Pacer spaces out successive requests by a fixed interval. It is a
// cooperative courtesy to providers, not a quota.
type Pacer struct {
	limiter  *rate.Limiter
	interval time.Duration
}

// NewPacer creates a pacer; intervals below MinRequestInterval are raised to it
func NewPacer(interval time.Duration) *Pacer {
	if interval < MinRequestInterval {
		interval = MinRequestInterval
	}
	return &Pacer{
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		interval: interval,
	}
}

// Wait blocks until the next request may be issued. The first call returns immediately.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// Interval returns the enforced spacing
func (p *Pacer) Interval() time.Duration {
	return p.interval
}
