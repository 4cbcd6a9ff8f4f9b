package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// setScript stores an entry as a hash unless the key already holds one with
// a later stored_at, then applies or clears the key's TTL.
var setScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'stored_at')
if cur and tonumber(cur) > tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], 'stored_at', ARGV[1], 'expires_at', ARGV[2], 'value', ARGV[3])
if tonumber(ARGV[4]) > 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[4])
else
  redis.call('PERSIST', KEYS[1])
end
return 1
`)

// RedisTier is the shared remote tier.
type RedisTier struct {
	client  redis.UniversalClient
	prefix  string
	timeout time.Duration
}

// NewRedisTier wraps client. Every key is stored under prefix, and each call
// is bounded by timeout.
func NewRedisTier(client redis.UniversalClient, prefix string, timeout time.Duration) *RedisTier {
	return &RedisTier{client: client, prefix: prefix, timeout: timeout}
}

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (t *RedisTier) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, t.timeout)
}

func (t *RedisTier) Get(ctx context.Context, key string) (Entry, bool, error) {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	vals, err := t.client.HMGet(ctx, t.prefix+key, "stored_at", "expires_at", "value").Result()
	if err != nil {
		return Entry{}, false, fmt.Errorf("redis hmget %s: %w", key, err)
	}
	if len(vals) != 3 || vals[2] == nil {
		return Entry{}, false, nil
	}

	storedAt, err1 := millis(vals[0])
	expiresAt, err2 := millis(vals[1])
	raw, ok := vals[2].(string)
	if err1 != nil || err2 != nil || !ok {
		// A corrupt entry is treated as absent; the next Set overwrites it.
		return Entry{}, false, nil
	}
	value, err := decodeValue([]byte(raw))
	if err != nil {
		return Entry{}, false, nil
	}

	e := Entry{Key: key, Value: value, StoredAt: storedAt}
	if !expiresAt.Equal(time.UnixMilli(0)) {
		e.ExpiresAt = expiresAt
	}
	return e, true, nil
}

func (t *RedisTier) Set(ctx context.Context, e Entry) error {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	var expiresAt, ttl int64
	if !e.ExpiresAt.IsZero() {
		expiresAt = e.ExpiresAt.UnixMilli()
		ttl = e.ExpiresAt.Sub(e.StoredAt).Milliseconds()
		if ttl <= 0 {
			ttl = 1
		}
	}
	err := setScript.Run(ctx, t.client, []string{t.prefix + e.Key},
		e.StoredAt.UnixMilli(), expiresAt, encodeValue(e.Value), ttl).Err()
	if err != nil {
		return fmt.Errorf("redis set %s: %w", e.Key, err)
	}
	return nil
}

func (t *RedisTier) Delete(ctx context.Context, key string) error {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()
	if err := t.client.Del(ctx, t.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func (t *RedisTier) Ping(ctx context.Context) error {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()
	return t.client.Ping(ctx).Err()
}

func (t *RedisTier) Close() error {
	return t.client.Close()
}

func millis(v any) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("unexpected type %T", v)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(n), nil
}
