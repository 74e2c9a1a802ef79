package kv

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 1000

// RedisStore implements Store on top of a go-redis universal client, so a
// single node, a sentinel group or a cluster can back the registry.
type RedisStore struct {
	redis redis.UniversalClient
}

// NewRedisStore wraps an existing client. The caller owns the client lifecycle.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{redis: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, unavailable("get", err)
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, key, value, ttl).Err(); err != nil {
		return unavailable("set", err)
	}
	return nil
}

// Replace uses SET XX so a key deleted concurrently is not written back.
func (s *RedisStore) Replace(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := s.redis.SetXX(ctx, key, value, ttl).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, unavailable("replace", err)
	}
	return ok, nil
}

// Incr seeds the window with SET NX EX and increments inside one MULTI, so a
// counter never exists without its expiry.
func (s *RedisStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := s.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SetNX(ctx, key, 0, ttl)
		incr = p.Incr(ctx, key)
		return nil
	})
	if err != nil {
		return 0, unavailable("incr", err)
	}
	return incr.Val(), nil
}

// Delete issues a single DEL; the reply counts keys that existed, which makes
// it usable as the one-shot gate for refresh rotation.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.redis.Del(ctx, keys...).Result()
	if err != nil {
		return 0, unavailable("delete", err)
	}
	return n, nil
}

// Keys walks the keyspace with SCAN. It never blocks the server the way KEYS
// does, at the cost of possibly missing keys written mid-iteration.
func (s *RedisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	pattern := globEscape(prefix) + "*"
	var (
		cursor uint64
		out    []string
	)
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return nil, unavailable("scan", err)
		}
		out = append(out, keys...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return out, nil
}

// Ping returns a point-in-time availability check and latency.
func (s *RedisStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), unavailable("ping", err)
	}
	return time.Since(start), nil
}

func globEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)
	return r.Replace(s)
}
