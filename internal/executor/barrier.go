package executor

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errBarrierExpired = errors.New("barrier wait expired")

// barrier releases its waiters once a fixed number of parties have
// arrived. Each tick uses a fresh barrier, so a late arrival from one tick
// can never be counted toward the next.
//
// Release is driven by the arrival count reaching zero, not by wakeups,
// so waiters cannot be released early by a single arrival.
type barrier struct {
	mu        sync.Mutex
	remaining int
	released  chan struct{}
}

func newBarrier(parties int) *barrier {
	b := &barrier{
		remaining: parties,
		released:  make(chan struct{}),
	}
	if parties <= 0 {
		b.remaining = 0
		close(b.released)
	}
	return b
}

// arrive records one party as done. Arrivals beyond the party count are
// ignored.
func (b *barrier) arrive() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.remaining == 0 {
		return
	}
	b.remaining--
	if b.remaining == 0 {
		close(b.released)
	}
}

// pending returns how many parties have not arrived yet.
func (b *barrier) pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}

// wait blocks until all parties arrived, ctx is done, or timeout elapses.
// A non-positive timeout waits without bound.
func (b *barrier) wait(ctx context.Context, timeout time.Duration) error {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	var err error
	select {
	case <-b.released:
		return nil
	case <-ctx.Done():
		err = ctx.Err()
	case <-expired:
		err = errBarrierExpired
	}
	// The last party may have arrived while the deadline fired.
	if b.pending() == 0 {
		return nil
	}
	return err
}
