package ratelimit

import (
	"sync"
	"time"
)

// Result reports the outcome of one fixed-window check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

type window struct {
	count   int
	resetAt time.Time
}

// Limiter is a fixed-window counter keyed by caller-supplied string (an IP,
// an email, a device id). Orchestrators consult it before creating state on
// abuse-prone entry points so live records cannot grow unbounded.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock injects the time source for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func New(opts ...Option) *Limiter {
	l := &Limiter{
		windows: make(map[string]*window),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check counts one request against key's current window. When the window has
// elapsed a new one starts. Stale windows for other keys are dropped lazily so
// the map stays bounded by the set of recently active keys.
func (l *Limiter) Check(key string, maxRequests int, windowDur time.Duration) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, w := range l.windows {
		if !w.resetAt.After(now) {
			delete(l.windows, k)
		}
	}

	w, ok := l.windows[key]
	if !ok {
		w = &window{resetAt: now.Add(windowDur)}
		l.windows[key] = w
	}
	if w.count >= maxRequests {
		return Result{Allowed: false, Remaining: 0, ResetAt: w.resetAt}
	}
	w.count++
	return Result{
		Allowed:   true,
		Remaining: maxRequests - w.count,
		ResetAt:   w.resetAt,
	}
}
