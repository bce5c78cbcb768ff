package service

import (
	"context"
	"errors"
	"fmt"

	"campaignledger/internal/infrastructure/lock"
)

// Locker serializes writers on one key across processes.
// *lock.Locker is the Redis implementation.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

var _ Locker = (*lock.Locker)(nil)

func acquire(ctx context.Context, locker Locker, key string) (func(), error) {
	release, err := locker.Acquire(ctx, key)
	if err != nil {
		if errors.Is(err, lock.ErrLockFailed) {
			return nil, fmt.Errorf("%w: %s", ErrTransientConflict, key)
		}
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	return release, nil
}
