package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sandeepkv93/refresh-session-auth/internal/observability"
)

var releaseIfOwner = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisRotationLocker holds rotation leases in redis so every replica sees them.
type RedisRotationLocker struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisRotationLocker(client redis.UniversalClient, prefix string) *RedisRotationLocker {
	if prefix == "" {
		prefix = "rotation_lock"
	}
	return &RedisRotationLocker{client: client, prefix: prefix}
}

func (l *RedisRotationLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context), error) {
	lockKey := l.prefix + ":" + key
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, lockKey, owner, ttl).Result()
	if err != nil {
		observability.RecordRotationLock(ctx, "redis", "error")
		return nil, err
	}
	if !ok {
		observability.RecordRotationLock(ctx, "redis", "contended")
		return nil, ErrRotationInProgress
	}
	observability.RecordRotationLock(ctx, "redis", "acquired")
	return func(ctx context.Context) {
		_ = releaseIfOwner.Run(ctx, l.client, []string{lockKey}, owner).Err()
	}, nil
}
