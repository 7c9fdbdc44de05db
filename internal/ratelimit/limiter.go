// Package ratelimit bounds calls to an external API to at most N per rolling
// window. It is an in-process, cooperative limiter: every caller sharing an
// API quota must share one Limiter instance.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// DefaultMargin is added to computed waits so the oldest call has fully left
// the window when the caller re-checks.
const DefaultMargin = 50 * time.Millisecond

// Limiter permits at most limit acquisitions in any rolling window.
type Limiter struct {
	mu         sync.Mutex
	limit      int
	window     time.Duration
	margin     time.Duration
	timestamps []time.Time

	now func() time.Time
	// onWait is called with every computed suspension, for metrics.
	onWait func(time.Duration)
}

// Option configures a Limiter
type Option func(*Limiter)

// WithMargin overrides the safety margin added to each wait
func WithMargin(margin time.Duration) Option {
	return func(l *Limiter) { l.margin = margin }
}

// WithWaitObserver registers a callback invoked before each suspension
func WithWaitObserver(fn func(time.Duration)) Option {
	return func(l *Limiter) { l.onWait = fn }
}

// New creates a limiter allowing limit calls per window
func New(limit int, window time.Duration, opts ...Option) *Limiter {
	if limit < 1 {
		limit = 1
	}
	l := &Limiter{
		limit:  limit,
		window: window,
		margin: DefaultMargin,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Wait blocks until a call is permitted or ctx is done. The limiter's lock is
// never held while sleeping, so other callers keep making progress.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		wait, ok := l.reserve()
		if ok {
			return nil
		}

		if l.onWait != nil {
			l.onWait(wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		// Re-evaluate: another caller may have taken the freed slot.
	}
}

// reserve records a call if the window has room, otherwise it returns how
// long to wait before the oldest call leaves the window.
func (l *Limiter) reserve() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	drop := 0
	for drop < len(l.timestamps) && !l.timestamps[drop].After(cutoff) {
		drop++
	}
	l.timestamps = l.timestamps[drop:]

	if len(l.timestamps) >= l.limit {
		oldest := l.timestamps[0]
		return oldest.Add(l.window).Sub(now) + l.margin, false
	}

	l.timestamps = append(l.timestamps, now)
	return 0, true
}

// InWindow returns how many calls are currently counted in the window
func (l *Limiter) InWindow() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	count := 0
	for _, ts := range l.timestamps {
		if ts.After(cutoff) {
			count++
		}
	}
	return count
}
