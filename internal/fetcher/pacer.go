// Package fetcher owns the outbound HTTP path for one source: a pooled
// client, a pacer bounding in-flight calls and request spacing, and a
// retrying executor with exponential backoff.
package fetcher

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Pacer enforces two independent constraints for one source: at most
// maxConcurrent calls in flight, and a minimum interval between the start
// times of consecutive calls. Each source gets its own Pacer so a slow
// source never throttles its siblings.
type Pacer struct {
	sem     *semaphore.Weighted
	limiter *rate.Limiter
}

// NewPacer creates a pacer. maxConcurrent must be >= 1; a minInterval of
// zero disables spacing.
func NewPacer(maxConcurrent int, minInterval time.Duration) *Pacer {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	p := &Pacer{
		sem: semaphore.NewWeighted(int64(maxConcurrent)),
	}
	if minInterval > 0 {
		// Burst 1 makes the limiter a pure minimum-spacing gate.
		p.limiter = rate.NewLimiter(rate.Every(minInterval), 1)
	}
	return p
}

// Acquire blocks until a concurrency slot is free and the spacing
// interval has elapsed, or the context is cancelled. Every successful
// Acquire must be paired with Release.
func (p *Pacer) Acquire(ctx context.Context) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return eris.Wrap(err, "pacer: acquire slot")
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			p.sem.Release(1)
			return eris.Wrap(err, "pacer: wait interval")
		}
	}
	return nil
}

// Release frees the concurrency slot taken by Acquire.
func (p *Pacer) Release() {
	p.sem.Release(1)
}
