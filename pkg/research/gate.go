package research

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// ConcurrencyGate bounds how many branches do outbound work at once across a
// whole research tree. One gate is shared by every level of the recursion.
type ConcurrencyGate struct {
	sem      *semaphore.Weighted
	capacity int64

	held atomic.Int64
	peak atomic.Int64
}

func NewConcurrencyGate(capacity int) *ConcurrencyGate {
	if capacity <= 0 {
		capacity = 1
	}
	return &ConcurrencyGate{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: int64(capacity),
	}
}

// Acquire blocks until a permit is free. The returned release func is
// idempotent, so callers can both defer it and call it early.
func (g *ConcurrencyGate) Acquire(ctx context.Context) (release func(), err error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return func() {}, fmt.Errorf("acquire permit: %w", err)
	}

	held := g.held.Add(1)
	for {
		peak := g.peak.Load()
		if held <= peak || g.peak.CompareAndSwap(peak, held) {
			break
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.held.Add(-1)
			g.sem.Release(1)
		})
	}, nil
}

func (g *ConcurrencyGate) Capacity() int {
	return int(g.capacity)
}

// Held reports the permits currently handed out.
func (g *ConcurrencyGate) Held() int {
	return int(g.held.Load())
}

// Peak reports the highest number of permits ever held at the same time.
func (g *ConcurrencyGate) Peak() int {
	return int(g.peak.Load())
}
