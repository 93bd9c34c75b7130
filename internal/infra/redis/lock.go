// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"time"

	"telegram-sms-relay/internal/domain"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Locker serializes the send pipeline per user: two concurrent attempts by
// the same identity must not both pass the cap check.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

const (
	lockAttempts = 4
	lockBackoff  = 40 * time.Millisecond
)

type RedisLocker struct {
	cli *redis.Client
	log *zerolog.Logger
}

func NewLocker(c *Client, logger *zerolog.Logger) *RedisLocker {
	return &RedisLocker{cli: c.cli, log: logger}
}

// TryLock retries with a growing backoff so a relay call finishing on
// another worker has a moment to release, then reports the user as busy.
// Redis faults surface to the caller instead of being retried blind.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	for attempt := 1; ; attempt++ {
		ok, err := l.cli.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return "", err
		}
		if ok {
			return token, nil
		}
		if attempt == lockAttempts {
			l.log.Debug().Str("key", key).Msg("send lock contended")
			return "", domain.ErrSendInProgress
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Duration(attempt) * lockBackoff):
		}
	}
}

// Unlock releases only while the token still matches, so a lock that
// expired and was reacquired by a later attempt is never deleted here.
var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := luaUnlock.Run(ctx, l.cli, []string{key}, token).Result()
	return err
}
