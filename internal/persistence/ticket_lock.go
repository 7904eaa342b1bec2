package persistence

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockPollInterval = 50 * time.Millisecond

// ErrLockTimeout is returned when a lock could not be acquired within its TTL.
var ErrLockTimeout = errors.New("lock acquisition timed out")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// LocalLocker is the single-process locker. Callers in one process are already coalesced
// per key, so Lock never blocks.
type LocalLocker struct{}

// Lock returns immediately.
func (LocalLocker) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}

// RedisLocker is a SET NX PX lock shared by every process using the same Redis. A held
// lock is refreshed every ttl/3 until released, so a slow holder keeps it. The ttl only
// bounds how long a crashed holder blocks others and how long a waiter waits.
type RedisLocker struct {
	redis *Redis
	ttl   time.Duration
}

// NewRedisLocker builds a locker whose locks expire after ttl.
func NewRedisLocker(r *Redis, ttl time.Duration) *RedisLocker {
	return &RedisLocker{redis: r, ttl: ttl}
}

// Lock blocks until key is held, ctx is done or ttl elapses. The returned func releases
// the lock only if it is still held by this caller.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	fullKey := l.redis.Key("lock", key)
	token := uuid.NewString()
	deadline := time.Now().Add(l.ttl)

	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()
	for {
		ok, err := l.redis.Client.SetNX(ctx, fullKey, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return l.hold(ctx, fullKey, token), nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// hold keeps fullKey alive and returns the release func.
func (l *RedisLocker) hold(ctx context.Context, fullKey, token string) func() {
	bg := context.WithoutCancel(ctx)
	stop := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(l.refreshInterval())
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				refreshCtx, cancel := context.WithTimeout(bg, time.Second)
				held, err := refreshScript.Run(refreshCtx, l.redis.Client, []string{fullKey}, token, l.ttl.Milliseconds()).Int()
				cancel()
				if err == nil && held == 0 {
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-stopped
			releaseCtx, cancel := context.WithTimeout(bg, time.Second)
			defer cancel()
			_ = releaseScript.Run(releaseCtx, l.redis.Client, []string{fullKey}, token).Err()
		})
	}
}

func (l *RedisLocker) refreshInterval() time.Duration {
	if interval := l.ttl / 3; interval > 0 {
		return interval
	}
	return time.Millisecond
}
