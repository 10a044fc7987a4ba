package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// fakeClock is a controllable time source for deterministic tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestAllowBasic(t *testing.T) {
	clock := newFakeClock(time.Now())
	l := New(3, time.Minute, WithClock(clock.Now))

	for i := 0; i < 3; i++ {
		if !l.Allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow("10.0.0.1") {
		t.Fatal("4th request should be denied")
	}
	// Another key has its own bucket.
	if !l.Allow("10.0.0.2") {
		t.Fatal("first request for a second key should be allowed")
	}
}

func TestDisabled(t *testing.T) {
	l := New(0, time.Minute)
	for i := 0; i < 100; i++ {
		if !l.Allow("k") {
			t.Fatal("zero rate must allow everything")
		}
	}
	if l.Len() != 0 {
		t.Fatalf("disabled limiter should not track keys, got %d", l.Len())
	}
}

func TestTokenRefill(t *testing.T) {
	clock := newFakeClock(time.Now())
	// 60 per minute is one token per second.
	l := New(60, time.Minute, WithClock(clock.Now))

	for i := 0; i < 60; i++ {
		l.Allow("k")
	}
	if l.Allow("k") {
		t.Fatal("should be denied after exhausting tokens")
	}
	if got := l.RetryAfter("k"); got <= 0 || got > time.Second {
		t.Fatalf("retry after should be within a second, got %v", got)
	}

	clock.Advance(time.Second)
	if !l.Allow("k") {
		t.Fatal("should be allowed after 1 second refill")
	}
	if l.Allow("k") {
		t.Fatal("should be denied again after consuming refilled token")
	}

	clock.Advance(5 * time.Second)
	for i := 0; i < 5; i++ {
		if !l.Allow("k") {
			t.Fatalf("request %d should be allowed after 5s refill", i+1)
		}
	}
}

func TestStatus(t *testing.T) {
	clock := newFakeClock(time.Now())
	l := New(10, time.Minute, WithClock(clock.Now))

	remaining, resetAt := l.Status("s")
	if remaining != 10 {
		t.Fatalf("expected remaining 10, got %d", remaining)
	}
	if !resetAt.Equal(clock.Now()) {
		t.Fatalf("full bucket reset should be now, got diff %v", resetAt.Sub(clock.Now()))
	}

	l.Allow("s")
	l.Allow("s")
	l.Allow("s")

	remaining, resetAt = l.Status("s")
	if remaining != 7 {
		t.Fatalf("expected remaining 7, got %d", remaining)
	}
	// Three tokens at one per six seconds.
	if want := clock.Now().Add(18 * time.Second); !resetAt.Equal(want) {
		t.Fatalf("resetAt = %v, want %v", resetAt, want)
	}

	clock.Advance(10 * time.Minute)
	if remaining, _ = l.Status("s"); remaining != 10 {
		t.Fatalf("remaining should cap at 10, got %d", remaining)
	}
}

func TestPrune(t *testing.T) {
	clock := newFakeClock(time.Now())
	l := New(2, time.Minute, WithClock(clock.Now))

	l.Allow("a")
	l.Allow("b")
	l.Allow("b")
	if l.Len() != 2 {
		t.Fatalf("expected 2 keys, got %d", l.Len())
	}

	// Half a window refills one token: a is full, b is not.
	clock.Advance(30 * time.Second)
	if n := l.Prune(); n != 1 {
		t.Fatalf("expected 1 pruned, got %d", n)
	}
	if l.Len() != 1 {
		t.Fatalf("expected 1 key left, got %d", l.Len())
	}
}

func TestConcurrentAccess(t *testing.T) {
	clock := newFakeClock(time.Now())
	l := New(100, time.Minute, WithClock(clock.Now))

	var wg sync.WaitGroup
	allowed := make(chan bool, 200)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed <- l.Allow("concurrent")
		}()
	}
	wg.Wait()
	close(allowed)

	count := 0
	for ok := range allowed {
		if ok {
			count++
		}
	}
	if count != 100 {
		t.Fatalf("expected exactly 100 allowed, got %d", count)
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:5555"
	if got := ClientIP(r); got != "192.0.2.1" {
		t.Fatalf("got %q", got)
	}
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := ClientIP(r); got != "203.0.113.9" {
		t.Fatalf("got %q", got)
	}
}

func TestMiddleware(t *testing.T) {
	clock := newFakeClock(time.Now())
	l := New(1, time.Minute, WithClock(clock.Now))
	rejected := 0
	h := Middleware(l, ClientIP, func(*http.Request) { rejected++ })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}),
	)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("first request: got %d", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Limit") != "1" {
		t.Fatalf("missing limit header: %v", rec.Header())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Fatalf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
	if rejected != 1 {
		t.Fatalf("onReject called %d times", rejected)
	}
}
