// Package distlock provides a small distributed lock for background jobs
// that must not run on two instances at once, such as the email log
// retention sweep.
package distlock

import (
	"context"
	"database/sql"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DistLock is a non-blocking, single-holder lock. Instances are not safe
// for concurrent use; give each goroutine its own.
type DistLock interface {
	// Acquire reports whether this instance now holds the lock.
	Acquire(ctx context.Context) (bool, error)
	// Release gives the lock up if this instance still holds it.
	Release(ctx context.Context) error
}

// NewLock picks the best available backend: Redis when a client is
// configured (works across hosts), otherwise a Postgres advisory lock.
func NewLock(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) DistLock {
	if redisClient != nil {
		return NewRedisLock(redisClient, key, ttl)
	}
	return NewPGAdvisoryLock(db, key)
}

// PGAdvisoryLock implements DistLock on pg_try_advisory_lock. The lock is
// session-scoped, so a dropped connection releases it, which stands in for
// the TTL expiry the Redis backend gets.
type PGAdvisoryLock struct {
	db  *sql.DB
	key int64
}

// NewPGAdvisoryLock derives a stable advisory lock id from the key string.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLock{db: db, key: int64(h.Sum64())}
}

func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	var held bool
	err := l.db.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.key).Scan(&held)
	return held, err
}

func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.key)
	return err
}
