package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ============================================================================
// Redis distributed lock
// ============================================================================
//
// Acquire: SET key token NX PX ttl
// Release: Lua compare-and-delete, so a holder whose lock already expired can
// never delete a lock that another holder has taken since.
//
// The lock only narrows contention. The conditional UPDATEs in the
// repositories stay correct on their own if a lock expires mid-transaction.
// ============================================================================

var (
	ErrLockFailed = errors.New("acquire distributed lock failed")
)

var unlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string
	expiration time.Duration
}

func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock makes a single non-blocking attempt.
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

// Lock retries TryLock every retryInterval, at most maxRetries times.
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		timer := time.NewTimer(retryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("%w: key=%s", ErrLockFailed, l.key)
}

// Unlock reports whether the lock was still held by this owner.
func (l *DistributedLock) Unlock(ctx context.Context) (bool, error) {
	n, err := unlockScript.Run(ctx, l.client, []string{l.key}, l.value).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ============================================================================
// Keyed locker
// ============================================================================

// Locker hands out per-key locks with a fresh owner token per acquisition.
type Locker struct {
	client        *redis.Client
	ttl           time.Duration
	retryInterval time.Duration
	maxRetries    int
}

func NewLocker(client *redis.Client, ttl, retryInterval time.Duration, maxRetries int) *Locker {
	return &Locker{
		client:        client,
		ttl:           ttl,
		retryInterval: retryInterval,
		maxRetries:    maxRetries,
	}
}

// Acquire blocks until key is held or retries run out (ErrLockFailed).
// The returned release func is safe to defer and ignores ctx cancellation.
func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	dl := NewDistributedLock(l.client, key, uuid.NewString(), l.ttl)
	if err := dl.Lock(ctx, l.retryInterval, l.maxRetries); err != nil {
		return nil, err
	}
	return func() {
		_, _ = dl.Unlock(context.WithoutCancel(ctx))
	}, nil
}

func CampaignKey(campaignID string) string {
	return "campaign:lock:" + campaignID
}

func WalletKey(userID int64) string {
	return fmt.Sprintf("wallet:lock:user:%d", userID)
}
