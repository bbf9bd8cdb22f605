package redis

import (
	"context"
	"fmt"
	"time"
)

// Decision is the outcome of one counted request.
type Decision struct {
	Allowed   bool
	Remaining int
	// RetryAfter is how long until the current window closes. Zero when allowed.
	RetryAfter time.Duration
}

// RateLimiter counts requests per key in fixed windows that start with the
// first request of the window.
type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow counts one request against key. A rejected request reports the time
// left in the window. A counter found without an expiry (the Expire after the
// first INCR was lost) gets a fresh window instead of blocking the key forever.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return Decision{}, err
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, window); err != nil {
			return Decision{}, err
		}
	}

	if count <= int64(limit) {
		return Decision{Allowed: true, Remaining: limit - int(count)}, nil
	}

	ttl, err := r.client.TTL(ctx, key)
	if err != nil {
		return Decision{}, err
	}
	if ttl <= 0 {
		if err := r.client.Expire(ctx, key, window); err != nil {
			return Decision{}, err
		}
		ttl = window
	}
	return Decision{RetryAfter: ttl}, nil
}

func UserRouteKey(userID, route string) string {
	return fmt.Sprintf("rate_limit:%s:%s", userID, route)
}
