package fetcher

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacer_ConcurrencyCeiling(t *testing.T) {
	const maxConcurrent = 3
	p := NewPacer(maxConcurrent, 0)

	var inFlight, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, p.Acquire(context.Background()))
			defer p.Release()

			n := inFlight.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(maxConcurrent))
}

func TestPacer_MinimumSpacing(t *testing.T) {
	const interval = 20 * time.Millisecond
	p := NewPacer(10, interval)

	var starts []time.Time
	for i := 0; i < 4; i++ {
		require.NoError(t, p.Acquire(context.Background()))
		starts = append(starts, time.Now())
		p.Release()
	}

	// The first acquire may pass immediately; every later gap must be at
	// least the interval, give or take timer resolution.
	for i := 1; i < len(starts); i++ {
		gap := starts[i].Sub(starts[i-1])
		assert.GreaterOrEqual(t, gap, interval-5*time.Millisecond, "gap %d too short: %v", i, gap)
	}
}

func TestPacer_CancelledContext(t *testing.T) {
	p := NewPacer(1, 0)
	require.NoError(t, p.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := p.Acquire(ctx)
	require.Error(t, err)

	p.Release()
}

func TestPacer_ZeroIntervalDisablesSpacing(t *testing.T) {
	p := NewPacer(1, 0)

	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, p.Acquire(context.Background()))
		p.Release()
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}
