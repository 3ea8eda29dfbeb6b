package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/winzzers/internal/domain"
)

// DefaultSnapshotTTL bounds how long a cached snapshot may be served.
const DefaultSnapshotTTL = 5 * time.Minute

// SnapshotCache implements domain.SnapshotCache with one JSON string per
// market under market:snap:{id}. Amounts are encoded with their fixed-point
// text form, so values survive the round trip exactly.
type SnapshotCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSnapshotCache creates a SnapshotCache. A zero ttl uses DefaultSnapshotTTL.
func NewSnapshotCache(c *Client, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &SnapshotCache{rdb: c.Underlying(), ttl: ttl}
}

func snapshotKey(id uint64) string { return "market:snap:" + strconv.FormatUint(id, 10) }

// Set stores m with the cache TTL.
func (sc *SnapshotCache) Set(ctx context.Context, m domain.Market) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("redis: marshal market %d: %w", m.ID, err)
	}
	if err := sc.rdb.Set(ctx, snapshotKey(m.ID), data, sc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set market %d: %w", m.ID, err)
	}
	return nil
}

// SetMany stores a whole refresh in one pipeline.
func (sc *SnapshotCache) SetMany(ctx context.Context, markets []domain.Market) error {
	if len(markets) == 0 {
		return nil
	}
	pipe := sc.rdb.Pipeline()
	for _, m := range markets {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("redis: marshal market %d: %w", m.ID, err)
		}
		pipe.Set(ctx, snapshotKey(m.ID), data, sc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set %d markets: %w", len(markets), err)
	}
	return nil
}

// Get returns the cached snapshot or domain.ErrNotFound.
func (sc *SnapshotCache) Get(ctx context.Context, id uint64) (domain.Market, error) {
	data, err := sc.rdb.Get(ctx, snapshotKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("redis: get market %d: %w", id, err)
	}

	var m domain.Market
	if err := json.Unmarshal(data, &m); err != nil {
		return domain.Market{}, fmt.Errorf("redis: unmarshal market %d: %w", id, err)
	}
	return m, nil
}

// Invalidate drops a cached snapshot, typically after a write touched it.
func (sc *SnapshotCache) Invalidate(ctx context.Context, id uint64) error {
	if err := sc.rdb.Del(ctx, snapshotKey(id)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate market %d: %w", id, err)
	}
	return nil
}

var _ domain.SnapshotCache = (*SnapshotCache)(nil)
