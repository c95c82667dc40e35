package utils

import (
	"context"
	"sync"
	"time"
)

// Throttle enforces a minimum interval between successive operations.
type Throttle struct {
	interval time.Duration
	mu       sync.Mutex
	last     time.Time
}

// NewThrottle creates a Throttle allowing one operation per rateLimitMs.
func NewThrottle(rateLimitMs int) *Throttle {
	return &Throttle{interval: time.Duration(rateLimitMs) * time.Millisecond}
}

// Wait blocks until the interval since the previous call has elapsed or ctx is done.
// The first call never waits.
func (t *Throttle) Wait(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.last.IsZero() {
		if wait := t.interval - time.Since(t.last); wait > 0 {
			timer := time.NewTimer(wait)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	t.last = time.Now()
	return nil
}
