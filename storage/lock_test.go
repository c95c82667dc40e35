package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestLock(t *testing.T) (*RunLock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	lock, err := NewRunLock(context.Background(), "redis://"+mr.Addr(), "krisha:persist:lock", time.Minute)
	if err != nil {
		t.Fatalf("NewRunLock: %v", err)
	}
	t.Cleanup(func() { lock.Close() })
	return lock, mr
}

func TestRunLockExcludesSecondHolder(t *testing.T) {
	lock, _ := newTestLock(t)
	ctx := context.Background()

	release, err := lock.Acquire(ctx)
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}

	if _, err := lock.Acquire(ctx); !errors.Is(err, ErrLockHeld) {
		t.Errorf("second Acquire: got %v, want ErrLockHeld", err)
	}

	if err := release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := lock.Acquire(ctx); err != nil {
		t.Errorf("Acquire after release: %v", err)
	}
}

func TestRunLockReleaseKeepsForeignLock(t *testing.T) {
	lock, mr := newTestLock(t)
	ctx := context.Background()

	release, err := lock.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}

	// Our lock expired and someone else took it.
	mr.FastForward(2 * time.Minute)
	if err := mr.Set("krisha:persist:lock", "someone-else"); err != nil {
		t.Fatal(err)
	}

	if err := release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if got, _ := mr.Get("krisha:persist:lock"); got != "someone-else" {
		t.Errorf("foreign lock was removed, key now %q", got)
	}
}

func TestRunLockTTL(t *testing.T) {
	lock, mr := newTestLock(t)
	if _, err := lock.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	if ttl := mr.TTL("krisha:persist:lock"); ttl != time.Minute {
		t.Errorf("TTL: got %v, want 1m", ttl)
	}
}

func TestNewRunLockBadURL(t *testing.T) {
	if _, err := NewRunLock(context.Background(), "not-a-url", "k", time.Minute); err == nil {
		t.Error("expected error for invalid redis URL")
	}
}

func TestNoopLocker(t *testing.T) {
	release, err := NoopLocker{}.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := release(context.Background()); err != nil {
		t.Errorf("release: %v", err)
	}
}
