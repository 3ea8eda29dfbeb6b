package domain

import (
	"context"
	"time"
)

// MarketStore persists market snapshots for history and indexing.
type MarketStore interface {
	UpsertBatch(ctx context.Context, markets []Market) error
	GetByID(ctx context.Context, id uint64) (Market, error)
	ListByState(ctx context.Context, state MarketState, limit int) ([]Market, error)
	UpdatedSince(ctx context.Context, since time.Time) (int64, error)
}
