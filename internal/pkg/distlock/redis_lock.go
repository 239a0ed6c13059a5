package distlock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only when the stored owner token matches,
// so an instance whose lock already expired cannot release a successor's.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	end
	return 0
`)

// RedisLock implements DistLock with SET NX plus a TTL. The TTL bounds how
// long a crashed holder can block the next sweep.
type RedisLock struct {
	client *redis.Client
	key    string
	owner  string
	ttl    time.Duration
}

// NewRedisLock creates a Redis-backed lock. Each instance gets a random
// owner token so Release only ever deletes its own acquisition.
func NewRedisLock(client *redis.Client, key string, ttl time.Duration) *RedisLock {
	tok := make([]byte, 16)
	rand.Read(tok)
	return &RedisLock{
		client: client,
		key:    "lock:" + key,
		owner:  hex.EncodeToString(tok),
		ttl:    ttl,
	}
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	held, err := l.client.SetNX(ctx, l.key, l.owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", l.key, err)
	}
	return held, nil
}

func (l *RedisLock) Release(ctx context.Context) error {
	_, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.owner).Result()
	return err
}
