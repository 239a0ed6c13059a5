package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lua script for atomic check-and-increment. GET → check → INCR as separate
// commands races under concurrent senders, so the whole decision runs
// server-side.
const allowLuaScript = `
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local ttl = tonumber(ARGV[2])

local current = tonumber(redis.call("GET", key) or "0")
if current >= limit then
    return {0, current}
end

local newVal = redis.call("INCR", key)
if newVal == 1 then
    redis.call("EXPIRE", key, ttl)
end

return {1, newVal}
`

// Redis is a shared-store limiter for multi-instance deployments. Windows
// are hour buckets keyed by scope, expired by TTL.
type Redis struct {
	client      *redis.Client
	allowScript *redis.Script
}

// NewRedis creates a Redis-backed limiter.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{
		client:      client,
		allowScript: redis.NewScript(allowLuaScript),
	}
}

// NewRedisFromURL connects to Redis and verifies the connection.
func NewRedisFromURL(url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return NewRedis(client), nil
}

func (r *Redis) key(scopeID string) string {
	hour := time.Now().UTC().Format("2006010215")
	return fmt.Sprintf("ratelimit:email:%s:%s", scopeID, hour)
}

// Allow consumes one slot for the scope if the window has room.
func (r *Redis) Allow(ctx context.Context, scopeID string, limit int) (bool, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	// TTL is one window plus slack so a bucket straddling the boundary
	// still expires.
	result, err := r.allowScript.Run(ctx, r.client,
		[]string{r.key(scopeID)},
		limit,
		int(Window.Seconds())+100,
	).Slice()
	if err != nil {
		return false, fmt.Errorf("rate limit check: %w", err)
	}

	allowed, ok := result[0].(int64)
	if !ok {
		return false, fmt.Errorf("rate limit check: unexpected script reply %v", result)
	}
	return allowed == 1, nil
}

// Remaining reports unused slots in the current window.
func (r *Redis) Remaining(ctx context.Context, scopeID string, limit int) (int, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	current, err := r.client.Get(ctx, r.key(scopeID)).Int()
	if err == redis.Nil {
		return limit, nil
	}
	if err != nil {
		return 0, fmt.Errorf("rate limit read: %w", err)
	}

	left := limit - current
	if left < 0 {
		left = 0
	}
	return left, nil
}

// Close closes the underlying Redis connection.
func (r *Redis) Close() error { return r.client.Close() }
