package ratelimit

import (
	"errors"
	"sync"
	"time"
)

// ErrLimited is returned by entry points that refuse work because the caller
// exhausted its window.
var ErrLimited = errors.New("rate limit exceeded")

type window struct {
	start time.Time
	count int
}

// Limiter is a fixed-window request counter per caller key. It is
// process-local: in a multi-instance deployment it under-counts real traffic
// and is only a first line of defense for the remote providers.
type Limiter struct {
	mu      sync.Mutex
	limit   int
	period  time.Duration
	windows map[string]*window
	now     func() time.Time
	lastGC  time.Time
}

// NewLimiter allows limit calls per key per period.
func NewLimiter(limit int, period time.Duration) *Limiter {
	if period <= 0 {
		period = time.Minute
	}
	return &Limiter{
		limit:   limit,
		period:  period,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Allow reports whether key may make another call in the current window.
func (l *Limiter) Allow(key string) bool {
	if l.limit <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.gcLocked(now)

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.period {
		l.windows[key] = &window{start: now, count: 1}
		return true
	}
	if w.count >= l.limit {
		return false
	}
	w.count++
	return true
}

// gcLocked lazily drops expired windows so idle keys do not accumulate.
func (l *Limiter) gcLocked(now time.Time) {
	if now.Sub(l.lastGC) < l.period {
		return
	}
	l.lastGC = now
	for key, w := range l.windows {
		if now.Sub(w.start) >= l.period {
			delete(l.windows, key)
		}
	}
}
