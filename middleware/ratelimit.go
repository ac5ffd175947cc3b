package middleware

import (
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitConfig tunes the per-IP fixed window.
type RateLimitConfig struct {
	// Max requests per window per client IP.
	Max int
	// Window length. The counter key expires with the window.
	Window time.Duration
}

// RateLimit enforces a per-IP request budget using Redis counters. The
// limiter fails open: if Redis is unreachable the request proceeds, since
// dropping all traffic on a cache outage is worse than briefly losing
// throttling.
func RateLimit(client redis.UniversalClient, cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.Max <= 0 {
		cfg.Max = 60
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if ip == "" || client == nil {
				next.ServeHTTP(w, r)
				return
			}

			key := "fa:rl:" + ip
			count, err := client.Incr(r.Context(), key).Result()
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			if count == 1 {
				client.Expire(r.Context(), key, cfg.Window)
			}
			if count > int64(cfg.Max) {
				writeAuthError(w, http.StatusTooManyRequests, "too many requests", "")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
