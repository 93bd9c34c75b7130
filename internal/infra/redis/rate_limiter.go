package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// RateLimiter throttles chat traffic with a fixed-window counter per key.
// The window opens on the first hit and expires on its own, so an idle user
// leaves nothing behind.
type RateLimiter struct {
	client RedisClient
	log    *zerolog.Logger
}

func NewRateLimiter(client RedisClient, logger *zerolog.Logger) *RateLimiter {
	return &RateLimiter{client: client, log: logger}
}

// Allow reports whether one more event fits inside the current window.
// Redis faults surface to the caller, which decides whether to fail open.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, window); err != nil {
			return false, err
		}
	}
	if count > int64(limit) {
		r.log.Debug().Str("key", key).Int64("count", count).Int("limit", limit).Msg("throttled")
		return false, nil
	}
	return true, nil
}

// ThrottleKey scopes a window to one chat identity and command verb, so a
// burst of /send attempts does not eat the allowance of /history paging.
func ThrottleKey(userID int64, verb string) string {
	return fmt.Sprintf("throttle:%d:%s", userID, verb)
}
