package ratelimit

import (
	"net/http"
	"strconv"
)

// Middleware returns an HTTP middleware that enforces per-IP rate limiting.
// If limiter is nil, the middleware passes through without limiting.
// onLimited writes the 429 response; nil writes a plain text body.
func Middleware(limiter *PerIPLimiter, onLimited func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	if onLimited == nil {
		onLimited = func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
		}
	}

	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, remaining, resetOrRetry := limiter.Allow(limiter.ClientIP(r))

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Burst()))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetOrRetry, 10))

			if allowed {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Retry-After", strconv.FormatInt(resetOrRetry, 10))
			onLimited(w, r)
		})
	}
}
