package ratelimit

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
)

// KeyFunc picks the bucket a request is charged to.
type KeyFunc func(r *http.Request) string

// ClientIP keys requests by the first X-Forwarded-For hop, falling back to
// the connection's remote address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware enforces limiter on every request. The quota headers are always
// set:
//
//	X-RateLimit-Limit     bucket size
//	X-RateLimit-Remaining tokens left
//	X-RateLimit-Reset     Unix time the bucket is full again
//
// A request over the limit gets 429 with a Retry-After header and an
// {status, message} error body.
func Middleware(limiter *Limiter, key KeyFunc, onReject ...func(r *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter.Rate() <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			k := key(r)

			remaining, resetAt := limiter.Status(k)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Rate()))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

			if !limiter.Allow(k) {
				for _, fn := range onReject {
					fn(r)
				}
				wait := int(math.Ceil(limiter.RetryAfter(k).Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(max(wait, 1)))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"status":  "error",
					"message": "Too many requests, try again later",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
