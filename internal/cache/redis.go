package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Domenick1991/ridehold/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockTimeout = errors.New("booking lock not acquired")

// releaseScript deletes the key only when it still carries our token, so a
// lock that expired and was re-taken is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript pushes the expiry out while the key still carries our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

type RedisLocker struct {
	client       *redis.Client
	ttl          time.Duration
	pollInterval time.Duration
}

func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{
		client:       client,
		ttl:          ttl,
		pollInterval: 25 * time.Millisecond,
	}
}

// Lock blocks until the booking lock is held or ctx is done. The lock is kept
// alive every ttl/3 until the returned func releases it, so a slow provider
// call does not outlive it.
func (l *RedisLocker) Lock(ctx context.Context, bookingID string) (func(), error) {
	key := bookingLockKey(bookingID)
	token := uuid.NewString()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire booking lock %s: %w", bookingID, err)
		}
		if ok {
			return l.hold(context.WithoutCancel(ctx), key, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w for %s: %w", ErrLockTimeout, bookingID, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *RedisLocker) hold(ctx context.Context, key, token string) func() {
	stop := make(chan struct{})
	renewed := make(chan struct{})
	go func() {
		defer close(renewed)
		ticker := time.NewTicker(l.ttl / 3)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				held, err := extendScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int()
				if err != nil || held == 0 {
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-renewed
			_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
		})
	}
}

func bookingLockKey(bookingID string) string {
	return fmt.Sprintf("lock:booking:%s", bookingID)
}
