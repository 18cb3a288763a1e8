package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"itemledger/internal/repository"
	"itemledger/pkg/apperror"

	"github.com/bsm/redislock"
)

const lockKeyPrefix = "lock:item:"

// RedisGuard serializes mutations with a named mutex in Redis, keyed by
// item id. The item read-modify-write inside fn runs without a transaction;
// the mutex alone provides exclusion. Release is unconditional on every
// exit path.
type RedisGuard struct {
	locker *redislock.Client
	store  repository.ItemStore

	ttl           time.Duration
	waitTimeout   time.Duration
	retryInterval time.Duration
}

// NewRedisGuard creates a distributed-mutex guard. ttl bounds how long a
// crashed holder can keep the lock; waitTimeout bounds acquisition and maps
// exhaustion to LOCK_TIMEOUT.
func NewRedisGuard(locker *redislock.Client, store repository.ItemStore, ttl, waitTimeout, retryInterval time.Duration) *RedisGuard {
	if retryInterval <= 0 {
		retryInterval = 50 * time.Millisecond
	}
	return &RedisGuard{
		locker:        locker,
		store:         store,
		ttl:           ttl,
		waitTimeout:   waitTimeout,
		retryInterval: retryInterval,
	}
}

// WithItemLock obtains the item's mutex, runs fn against the plain store,
// and releases the mutex regardless of outcome.
func (g *RedisGuard) WithItemLock(ctx context.Context, itemID int64, fn func(ctx context.Context, store repository.ItemStore) error) error {
	retries := int(g.waitTimeout / g.retryInterval)
	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(g.retryInterval), retries),
	}

	key := fmt.Sprintf("%s%d", lockKeyPrefix, itemID)
	l, err := g.locker.Obtain(ctx, key, g.ttl, opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		return apperror.LockTimeout(fmt.Sprintf("timed out waiting for lock on item %d", itemID))
	}
	if err != nil {
		return apperror.LockUnavailable("failed to obtain item lock").WithCause(err)
	}
	defer func() {
		_ = l.Release(context.WithoutCancel(ctx))
	}()

	return fn(ctx, g.store)
}
