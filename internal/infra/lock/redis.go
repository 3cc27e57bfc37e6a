package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"groomly/internal/notify"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var _ notify.Locker = (*RedisLock)(nil)

// releaseScript deletes the lock key only when the caller still holds it,
// so an expired holder cannot release a lock reacquired by someone else.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

// RedisLock is a SET-NX advisory lock guarding the retry sweep, giving the
// scheduler a single-writer guarantee across instances. The TTL bounds how
// long a crashed holder can block subsequent sweeps.
type RedisLock struct {
	client *redis.Client
	key    string
}

// NewRedisLock creates a new Redis-backed sweep lock.
func NewRedisLock(redisAddr, password string, db int, key string) *RedisLock {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: password,
		DB:       db,
	})
	return &RedisLock{client: client, key: key}
}

// TryLock attempts to acquire the lock with a random fencing token.
func (l *RedisLock) TryLock(ctx context.Context, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, l.key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquiring sweep lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// Release with a fresh context: the sweep's context may already
		// be cancelled by the time the deferred release runs.
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.client.Eval(rctx, releaseScript, []string{l.key}, token).Err(); err != nil {
			slog.Error("failed to release sweep lock", "key", l.key, "error", err)
		}
	}
	return release, true, nil
}

// Close closes the Redis connection.
func (l *RedisLock) Close() error {
	return l.client.Close()
}
