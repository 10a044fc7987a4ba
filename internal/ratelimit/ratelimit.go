// Package ratelimit throttles callers with one token bucket per key.
package ratelimit

import (
	"sync"
	"time"
)

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// Limiter allows rate requests per window for each key. Buckets start full.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    int
	window  time.Duration
	now     func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a Limiter. A non-positive rate allows everything.
func New(rate int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		window:  window,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Rate is the bucket size.
func (l *Limiter) Rate() int {
	return l.rate
}

// Must be called with l.mu held.
func (l *Limiter) bucketFor(key string) *bucket {
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.rate), lastRefill: l.now()}
		l.buckets[key] = b
	}
	l.refill(b)
	return b
}

// Must be called with l.mu held.
func (l *Limiter) refill(b *bucket) {
	now := l.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * float64(l.rate) / l.window.Seconds()
	if b.tokens > float64(l.rate) {
		b.tokens = float64(l.rate)
	}
	b.lastRefill = now
}

// Allow consumes one token for key and reports whether one was available.
func (l *Limiter) Allow(key string) bool {
	if l.rate <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.bucketFor(key)
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Status returns the whole tokens left for key and when its bucket will be
// full again.
func (l *Limiter) Status(key string) (remaining int, resetAt time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.rate <= 0 {
		return 0, now
	}
	b := l.bucketFor(key)
	remaining = max(int(b.tokens), 0)

	deficit := float64(l.rate) - b.tokens
	if deficit <= 0 {
		return remaining, now
	}
	perSecond := float64(l.rate) / l.window.Seconds()
	return remaining, now.Add(time.Duration(deficit / perSecond * float64(time.Second)))
}

// RetryAfter is how long key must wait for its next token.
func (l *Limiter) RetryAfter(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rate <= 0 {
		return 0
	}
	b := l.bucketFor(key)
	if b.tokens >= 1 {
		return 0
	}
	perSecond := float64(l.rate) / l.window.Seconds()
	return time.Duration((1 - b.tokens) / perSecond * float64(time.Second))
}

// Prune drops buckets that have refilled completely, which are
// indistinguishable from new ones. It returns how many were removed.
func (l *Limiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for key, b := range l.buckets {
		l.refill(b)
		if b.tokens >= float64(l.rate) {
			delete(l.buckets, key)
			n++
		}
	}
	return n
}

// Len is the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
