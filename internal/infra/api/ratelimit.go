package api

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"jobboard-premium/internal/infra/logging"
	"jobboard-premium/internal/infra/metrics"
	red "jobboard-premium/internal/infra/redis"
)

// Limiter is satisfied by redis.RateLimiter.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (red.Decision, error)
}

// RateLimit caps calls per user to route. Redis failures let the request
// through: initiation must not depend on the cache being up.
func RateLimit(l Limiter, route string, limit int, window time.Duration, logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		if l == nil || limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid := logging.UserIDFrom(r.Context())
			d, err := l.Allow(r.Context(), red.UserRouteKey(uid, route), limit, window)
			if err != nil {
				logging.With(r.Context(), logger).Warn().Err(err).Str("route", route).Msg("rate limiter unavailable; allowing request")
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			if !d.Allowed {
				metrics.IncRateLimited(route)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(d.RetryAfter)))
				writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "too many requests"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// retryAfterSeconds rounds up so a client never retries inside the window.
func retryAfterSeconds(d time.Duration) int {
	if s := int(math.Ceil(d.Seconds())); s > 1 {
		return s
	}
	return 1
}
