package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis adapts a go-redis client to the Store interface so the CSRF
// registry and rate-limit counters can be shared across instances.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

// NewRedis wraps an existing client.  The prefix namespaces keys so
// multiple components can share one Redis database.
func NewRedis(rdb *redis.Client, prefix string) *Redis {
	return &Redis{rdb: rdb, prefix: prefix}
}

func (r *Redis) key(k string) string { return r.prefix + k }

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	v, err := r.rdb.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return v, err
}

func (r *Redis) SetEX(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.rdb.SetEx(ctx, r.key(key), value, ttl).Err()
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, r.key(key)).Err()
}

// incrScript increments a fixed-window counter atomically.  The first
// increment of a window sets its expiry; subsequent increments leave
// the expiry untouched so the window stays fixed rather than sliding.
// Returns {count, remaining window in milliseconds}.
var incrScript = redis.NewScript(`
	local key = KEYS[1]
	local window_ms = tonumber(ARGV[1])

	local count = redis.call('INCR', key)
	if count == 1 then
		redis.call('PEXPIRE', key, window_ms)
	end
	local ttl = redis.call('PTTL', key)
	if ttl < 0 then
		redis.call('PEXPIRE', key, window_ms)
		ttl = window_ms
	end
	return { count, ttl }
`)

func (r *Redis) IncrWindow(ctx context.Context, key string, window time.Duration) (Window, error) {
	now := time.Now()
	vals, err := incrScript.Run(ctx, r.rdb, []string{r.key(key)}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Window{}, err
	}
	if len(vals) != 2 {
		return Window{}, errors.New("store: unexpected script result")
	}
	return Window{
		Count:       vals[0],
		ResetAt:     now.Add(time.Duration(vals[1]) * time.Millisecond),
		LastRequest: now,
	}, nil
}

func (r *Redis) GetWindow(ctx context.Context, key string) (Window, error) {
	now := time.Now()
	count, err := r.rdb.Get(ctx, r.key(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return Window{}, ErrNotFound
	}
	if err != nil {
		return Window{}, err
	}
	ttl, err := r.rdb.PTTL(ctx, r.key(key)).Result()
	if err != nil {
		return Window{}, err
	}
	return Window{Count: count, ResetAt: now.Add(ttl), LastRequest: now}, nil
}
