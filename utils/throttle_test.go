package utils

import (
	"context"
	"testing"
	"time"
)

func TestThrottleSpacing(t *testing.T) {
	rateLimitMs := 50
	th := NewThrottle(rateLimitMs)

	var timestamps []time.Time
	for i := 0; i < 3; i++ {
		if err := th.Wait(context.Background()); err != nil {
			t.Fatalf("Wait: %v", err)
		}
		timestamps = append(timestamps, time.Now())
	}

	min := time.Duration(rateLimitMs) * time.Millisecond
	for i := 1; i < len(timestamps); i++ {
		if gap := timestamps[i].Sub(timestamps[i-1]); gap < min {
			t.Errorf("gap between call %d and %d: %v < minimum %v", i-1, i, gap, min)
		}
	}
}

func TestThrottleCancelled(t *testing.T) {
	th := NewThrottle(int(time.Hour / time.Millisecond))
	if err := th.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := th.Wait(ctx); err == nil {
		t.Error("expected context error from cancelled Wait")
	}
}
