package ratelimit

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "langop:authfail"

// Redis shares failure counters across dashboard replicas. Keys expire after
// the window, measured from the first failure.
type Redis struct {
	rdb       redis.Cmdable
	threshold int
	window    time.Duration
}

func NewRedis(rdb redis.Cmdable, threshold int, window time.Duration) *Redis {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Redis{rdb: rdb, threshold: threshold, window: window}
}

func (r *Redis) key(k Key) string {
	return redisKeyPrefix + ":" + k.OrganizationID + ":" + k.UserID
}

func (r *Redis) Blocked(ctx context.Context, key Key) (bool, error) {
	n, err := r.rdb.Get(ctx, r.key(key)).Int()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n >= r.threshold, nil
}

// RecordFailure increments the counter and sets its expiry in one MULTI, so
// a counter never outlives the window. NX keeps the first failure's deadline.
func (r *Redis) RecordFailure(ctx context.Context, key Key) (int, error) {
	k := r.key(key)
	var incr *redis.IntCmd
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, r.window)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(incr.Val()), nil
}

func (r *Redis) Reset(ctx context.Context, key Key) error {
	return r.rdb.Del(ctx, r.key(key)).Err()
}
