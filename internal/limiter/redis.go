package limiter

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a limiter backed by Redis counters with key expiry as the window.
type Redis struct {
	rdb    redis.UniversalClient
	policy Policy
}

// NewRedis constructs a Redis-backed limiter.
func NewRedis(rdb redis.UniversalClient, p Policy) *Redis {
	return &Redis{rdb: rdb, policy: p.normalized()}
}

func keys(scope string, subject []byte) (fails, block string) {
	s := hex.EncodeToString(subject)
	return "limiter:" + scope + ":fails:" + s, "limiter:" + scope + ":block:" + s
}

// Allow reports whether the subject is currently allowed.
func (l *Redis) Allow(ctx context.Context, scope string, subject []byte) (bool, time.Duration, error) {
	_, block := keys(scope, subject)
	ttl, err := l.rdb.PTTL(ctx, block).Result()
	if err != nil {
		return false, 0, err
	}
	if ttl > 0 {
		return false, ttl, nil
	}
	return true, 0, nil
}

// Success clears counters and any active block.
func (l *Redis) Success(ctx context.Context, scope string, subject []byte) error {
	fails, block := keys(scope, subject)
	return l.rdb.Del(ctx, fails, block).Err()
}

// Failure increments the window counter and blocks on reaching the threshold.
func (l *Redis) Failure(ctx context.Context, scope string, subject []byte) (bool, time.Duration, error) {
	fails, block := keys(scope, subject)

	n, err := l.rdb.Incr(ctx, fails).Result()
	if err != nil {
		return false, 0, err
	}
	if n == 1 {
		if err := l.rdb.Expire(ctx, fails, l.policy.Window).Err(); err != nil {
			return false, 0, err
		}
	}
	if int(n) < l.policy.MaxFails {
		return false, 0, nil
	}
	_, err = l.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, block, 1, l.policy.Block)
		p.Del(ctx, fails)
		return nil
	})
	if err != nil {
		return false, 0, err
	}
	return true, l.policy.Block, nil
}
