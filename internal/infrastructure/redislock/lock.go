// Package redislock keeps two processes from driving the same site account
// at once.
package redislock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type busyError struct{ key string }

func (e busyError) Error() string { return fmt.Sprintf("lock %s is held by another process", e.key) }

// Retryable reports true: the holder releases after its attempt.
func (busyError) Retryable() bool { return true }

// ErrLockBusy is returned (wrapped) when the lock was not acquired in time.
var ErrLockBusy error = busyError{}

func (e busyError) Is(target error) bool {
	_, ok := target.(busyError)
	return ok
}

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

const refreshScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`

type client interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

type Locker struct {
	client client
	key    string

	// TTL bounds how long a crashed holder blocks others. The holder
	// extends it every TTL/3 until release, so an attempt may outlast it.
	TTL time.Duration
	// Wait is how long Lock polls before giving up.
	Wait         time.Duration
	PollInterval time.Duration
}

func New(c client, key string) *Locker {
	return &Locker{client: c, key: key, TTL: 2 * time.Minute, Wait: 30 * time.Second, PollInterval: 250 * time.Millisecond}
}

// NewClient builds a go-redis client for addr and checks it answers.
func NewClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

// Key derives the lock key for an account.
func Key(email, centre string) string {
	return "sportsched:lock:" + centre + ":" + email
}

func (l *Locker) Lock(ctx context.Context) (func(context.Context) error, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(l.Wait)
	for {
		ok, err := l.client.SetNX(ctx, l.key, token, l.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock: %w", err)
		}
		if ok {
			return l.hold(ctx, token), nil
		}
		if !time.Now().Before(deadline) {
			return nil, busyError{key: l.key}
		}
		timer := time.NewTimer(l.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// hold keeps the lock alive until the returned release runs.
func (l *Locker) hold(ctx context.Context, token string) func(context.Context) error {
	stop := make(chan struct{})
	done := make(chan struct{})
	refreshCtx := context.WithoutCancel(ctx)
	go func() {
		defer close(done)
		ticker := time.NewTicker(l.TTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				// A failed refresh is retried on the next tick; release still runs.
				_ = l.client.Eval(refreshCtx, refreshScript, []string{l.key}, token, l.TTL.Milliseconds()).Err()
			}
		}
	}()

	var once sync.Once
	return func(ctx context.Context) error {
		once.Do(func() {
			close(stop)
			<-done
		})
		return l.release(ctx, token)
	}
}

func (l *Locker) release(ctx context.Context, token string) error {
	if err := l.client.Eval(ctx, releaseScript, []string{l.key}, token).Err(); err != nil {
		return fmt.Errorf("redis unlock: %w", err)
	}
	return nil
}
