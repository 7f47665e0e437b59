package domain

import (
	"context"
	"time"
)

// MarketCache provides fast market metadata lookups.
type MarketCache interface {
	Set(ctx context.Context, market Market) error
	Get(ctx context.Context, conditionID string) (Market, error)
	Invalidate(ctx context.Context, conditionID string) error
}

// LockManager provides distributed locking, used to serialize syncs of
// the same market across workers.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}
