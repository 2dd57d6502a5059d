package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// slidingWindowScript makes the check-and-record decision atomic on the
// server: prune expired members, count, and conditionally add in one
// round trip.
//
// KEYS[1] = window key
// ARGV[1] = window start (unix micros)
// ARGV[2] = now (unix micros)
// ARGV[3] = limit
// ARGV[4] = member id
// ARGV[5] = key TTL seconds
// Returns {allowed(0/1), count, oldest score or 0}
var slidingWindowScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], 0, ARGV[1])
local count = redis.call('ZCARD', KEYS[1])
if count < tonumber(ARGV[3]) then
    redis.call('ZADD', KEYS[1], ARGV[2], ARGV[4])
    redis.call('EXPIRE', KEYS[1], ARGV[5])
    return {1, count + 1, 0}
end
local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
local score = 0
if oldest[2] then
    score = tonumber(oldest[2])
end
return {0, count, score}
`)

// RedisBackend implements a sliding-window limiter on Redis sorted
// sets. Each identifier maps to one ZSET whose members are request
// timestamps; the Lua script keeps decide-and-consume atomic across
// instances.
type RedisBackend struct {
	client    *redis.Client
	keyPrefix string
	timeout   time.Duration
}

// RedisOptions configures the Redis limiter backend.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	PoolSize  int
	Timeout   time.Duration
}

// NewRedisBackend connects to Redis and verifies the connection.
func NewRedisBackend(opts RedisOptions) (*RedisBackend, error) {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "gatewarden:rl:"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 100 * time.Millisecond
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: opts.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisBackend{client: client, keyPrefix: opts.KeyPrefix, timeout: opts.Timeout}, nil
}

// NewRedisBackendWithClient wraps an existing client. Used by tests.
func NewRedisBackendWithClient(client *redis.Client, keyPrefix string, timeout time.Duration) *RedisBackend {
	if keyPrefix == "" {
		keyPrefix = "gatewarden:rl:"
	}
	if timeout <= 0 {
		timeout = 100 * time.Millisecond
	}
	return &RedisBackend{client: client, keyPrefix: keyPrefix, timeout: timeout}
}

func (r *RedisBackend) key(identifier string) string {
	return r.keyPrefix + identifier
}

func (r *RedisBackend) CheckAndRecord(ctx context.Context, identifier string, limit int, window time.Duration) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	now := time.Now()
	windowStart := now.Add(-window).UnixMicro()
	ttl := int(window.Seconds()) + 1

	raw, err := slidingWindowScript.Run(ctx, r.client, []string{r.key(identifier)},
		windowStart, now.UnixMicro(), limit, uuid.NewString(), ttl).Result()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit script failed: %w", err)
	}

	vals, ok := raw.([]interface{})
	if !ok || len(vals) != 3 {
		return Result{}, fmt.Errorf("unexpected rate limit script reply: %v", raw)
	}
	allowed := toInt64(vals[0]) == 1
	count := int(toInt64(vals[1]))
	oldest := toInt64(vals[2])

	if allowed {
		remaining := limit - count
		if remaining < 0 {
			remaining = 0
		}
		return allowedResult(limit, remaining, now.Add(window)), nil
	}

	// The window frees a slot when its oldest entry expires.
	retry := window
	if oldest > 0 {
		retry = time.UnixMicro(oldest).Add(window).Sub(now)
		if retry < 0 {
			retry = time.Second
		}
	}
	return deniedResult(limit, now.Add(retry), retry), nil
}

func (r *RedisBackend) Check(ctx context.Context, identifier string, limit int, window time.Duration) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	now := time.Now()
	windowStart := now.Add(-window).UnixMicro()
	key := r.key(identifier)

	pipe := r.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart))
	card := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("rate limit check failed: %w", err)
	}

	count := int(card.Val())
	if count < limit {
		return allowedResult(limit, limit-count-1, now.Add(window)), nil
	}
	return deniedResult(limit, now.Add(window), window), nil
}

func (r *RedisBackend) Record(ctx context.Context, identifier string, _ int, window time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	now := time.Now()
	key := r.key(identifier)
	pipe := r.client.Pipeline()
	pipe.ZAdd(ctx, key, &redis.Z{Score: float64(now.UnixMicro()), Member: uuid.NewString()})
	pipe.Expire(ctx, key, window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("rate limit record failed: %w", err)
	}
	return nil
}

func (r *RedisBackend) Reset(ctx context.Context, identifier string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.client.Del(ctx, r.key(identifier)).Err(); err != nil {
		return fmt.Errorf("rate limit reset failed: %w", err)
	}
	return nil
}

func (r *RedisBackend) Close() error {
	return r.client.Close()
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case string:
		var out int64
		_, _ = fmt.Sscanf(n, "%d", &out)
		return out
	default:
		return 0
	}
}
