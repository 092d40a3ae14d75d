package ratelimit

import (
	"testing"
	"time"
)

func newTestLimiter(limit int, period time.Duration) (*Limiter, *time.Time) {
	l := NewLimiter(limit, period)
	now := time.Unix(1700000000, 0)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestAllowWithinLimit(t *testing.T) {
	l, _ := newTestLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		if !l.Allow("caller-1") {
			t.Fatalf("call %d rejected inside the limit", i)
		}
	}
	if l.Allow("caller-1") {
		t.Error("fourth call allowed past the limit")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)
	if !l.Allow("caller-1") {
		t.Fatal("first caller rejected")
	}
	if !l.Allow("caller-2") {
		t.Error("second caller throttled by the first caller's window")
	}
}

func TestWindowResets(t *testing.T) {
	l, now := newTestLimiter(1, time.Minute)
	if !l.Allow("caller-1") {
		t.Fatal("first call rejected")
	}
	if l.Allow("caller-1") {
		t.Fatal("second call allowed in the same window")
	}
	*now = now.Add(61 * time.Second)
	if !l.Allow("caller-1") {
		t.Error("call rejected after the window rolled over")
	}
}

func TestExpiredKeysAreCollected(t *testing.T) {
	l, now := newTestLimiter(5, time.Minute)
	for i := 0; i < 100; i++ {
		l.Allow(time.Unix(int64(i), 0).String())
	}
	*now = now.Add(2 * time.Minute)
	l.Allow("fresh")

	l.mu.Lock()
	n := len(l.windows)
	l.mu.Unlock()
	if n != 1 {
		t.Errorf("%d stale windows survived collection, want 1", n)
	}
}

func TestZeroLimitDisables(t *testing.T) {
	l, _ := newTestLimiter(0, time.Minute)
	for i := 0; i < 100; i++ {
		if !l.Allow("caller-1") {
			t.Fatal("disabled limiter rejected a call")
		}
	}
}
