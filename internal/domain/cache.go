package domain

import (
	"context"
	"time"
)

// SnapshotCache provides fast access to recently read market snapshots.
type SnapshotCache interface {
	Set(ctx context.Context, market Market) error
	SetMany(ctx context.Context, markets []Market) error
	Get(ctx context.Context, id uint64) (Market, error)
	Invalidate(ctx context.Context, id uint64) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// ChannelMarkets carries a JSON array of listed markets after every refresh.
const ChannelMarkets = "ch:markets"

// SignalBus provides pub/sub fan-out.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
