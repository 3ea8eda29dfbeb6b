package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/winzzers/internal/aggregator"
	"github.com/alanyoungcy/winzzers/internal/domain"
	"github.com/alanyoungcy/winzzers/internal/market"
	"github.com/alanyoungcy/winzzers/internal/metrics"
)

// RefreshResult summarises one MarketService.Refresh.
type RefreshResult struct {
	Generation uint64        `json:"generation"`
	Counter    uint64        `json:"counter"`
	Fetched    int           `json:"fetched"`
	Tracked    int           `json:"tracked"`
	Listed     int           `json:"listed"`
	Duration   time.Duration `json:"duration"`
}

// MarketService owns the in-memory market board. Reads go board, then cache,
// then ledger. Refreshes are stamped with a generation; an entry written by a
// newer generation is never replaced by an older one.
type MarketService struct {
	reader  domain.LedgerReader
	agg     *aggregator.Aggregator
	metrics *metrics.Metrics
	logger  *slog.Logger

	cache        domain.SnapshotCache
	store        domain.MarketStore
	bus          domain.SignalBus
	archiver     domain.SnapshotArchiver
	archiveEvery time.Duration

	gen atomic.Uint64

	mu          sync.RWMutex
	board       map[uint64]domain.Market
	applied     map[uint64]uint64
	lastRefresh time.Time
	lastArchive time.Time
}

// NewMarketService creates a MarketService with no sinks attached.
func NewMarketService(
	reader domain.LedgerReader,
	agg *aggregator.Aggregator,
	m *metrics.Metrics,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
		reader:  reader,
		agg:     agg,
		metrics: m,
		logger:  logger.With(slog.String("component", "market_service")),
		board:   make(map[uint64]domain.Market),
		applied: make(map[uint64]uint64),
	}
}

// WithCache attaches a snapshot cache used for read-through and refreshed on
// every Refresh.
func (s *MarketService) WithCache(c domain.SnapshotCache) *MarketService {
	s.cache = c
	return s
}

// WithStore persists every refreshed batch.
func (s *MarketService) WithStore(st domain.MarketStore) *MarketService {
	s.store = st
	return s
}

// WithBus broadcasts the listed markets on domain.ChannelMarkets after every
// refresh.
func (s *MarketService) WithBus(b domain.SignalBus) *MarketService {
	s.bus = b
	return s
}

// WithArchiver archives the whole board at most once per every.
func (s *MarketService) WithArchiver(a domain.SnapshotArchiver, every time.Duration) *MarketService {
	s.archiver = a
	s.archiveEvery = every
	return s
}

// Refresh reads the market counter, re-fetches every id and merges the
// results into the board. Ids whose read fails keep their previous entry.
// Sink failures are logged; only a failed or out of range counter read fails
// the refresh.
func (s *MarketService) Refresh(ctx context.Context) (RefreshResult, error) {
	start := time.Now()
	gen := s.gen.Add(1)

	counter, err := s.reader.MarketCounter(ctx)
	if err != nil {
		return RefreshResult{Generation: gen}, fmt.Errorf("market_service: refresh: %w", err)
	}
	if counter > aggregator.MaxMarkets {
		s.logger.WarnContext(ctx, "market counter out of range, skipping refresh",
			slog.Uint64("counter", counter),
			slog.Int("max", aggregator.MaxMarkets),
		)
		return RefreshResult{Generation: gen, Counter: counter},
			fmt.Errorf("market_service: refresh: counter %d exceeds %d: %w", counter, aggregator.MaxMarkets, domain.ErrMalformedMarketData)
	}

	fresh := s.agg.FetchAll(ctx, aggregator.IDRange(counter))
	all := s.apply(gen, fresh, start)
	listed := market.Listed(all)

	res := RefreshResult{
		Generation: gen,
		Counter:    counter,
		Fetched:    len(fresh),
		Tracked:    len(all),
		Listed:     len(listed),
		Duration:   time.Since(start),
	}
	s.metrics.ObserveRefresh(res.Duration, res.Tracked, res.Listed)

	s.publish(ctx, aggregator.SortedByID(fresh), all, listed, start)

	s.logger.InfoContext(ctx, "markets refreshed",
		slog.Uint64("generation", gen),
		slog.Uint64("counter", counter),
		slog.Int("fetched", res.Fetched),
		slog.Int("listed", res.Listed),
		slog.Duration("duration", res.Duration),
	)
	return res, nil
}

// apply merges fresh into the board under generation gen and returns the
// whole board sorted by id.
func (s *MarketService) apply(gen uint64, fresh map[uint64]domain.Market, at time.Time) []domain.Market {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, m := range fresh {
		if s.applied[id] > gen {
			continue
		}
		s.board[id] = m
		s.applied[id] = gen
	}
	if at.After(s.lastRefresh) {
		s.lastRefresh = at
	}
	return aggregator.SortedByID(s.board)
}

func (s *MarketService) publish(ctx context.Context, fresh, all, listed []domain.Market, at time.Time) {
	if s.cache != nil && len(fresh) > 0 {
		if err := s.cache.SetMany(ctx, fresh); err != nil {
			s.warn(ctx, "snapshot cache write failed", err)
		}
	}
	if s.store != nil && len(fresh) > 0 {
		if err := s.store.UpsertBatch(ctx, fresh); err != nil {
			s.warn(ctx, "snapshot store upsert failed", err)
		}
	}
	if s.bus != nil {
		payload, err := json.Marshal(listed)
		if err == nil {
			err = s.bus.Publish(ctx, domain.ChannelMarkets, payload)
		}
		if err != nil {
			s.warn(ctx, "market broadcast failed", err)
		}
	}
	if s.archiver != nil && s.archiveDue(at) {
		path, err := s.archiver.Archive(ctx, all, at)
		if err != nil {
			s.warn(ctx, "snapshot archive failed", err)
			return
		}
		s.logger.InfoContext(ctx, "snapshot archived",
			slog.String("path", path),
			slog.Int("markets", len(all)),
		)
	}
}

// archiveDue claims the archive slot for at when the interval has elapsed.
func (s *MarketService) archiveDue(at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.lastArchive.IsZero() && at.Sub(s.lastArchive) < s.archiveEvery {
		return false
	}
	s.lastArchive = at
	return true
}

// Get returns a market from the board, the cache or the ledger, in that
// order. A ledger read is applied to the board as the newest generation.
func (s *MarketService) Get(ctx context.Context, id uint64) (domain.Market, error) {
	s.mu.RLock()
	m, ok := s.board[id]
	s.mu.RUnlock()
	if ok {
		return m, nil
	}

	if s.cache != nil {
		m, err := s.cache.Get(ctx, id)
		if err == nil {
			return m, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.warn(ctx, "snapshot cache read failed", err)
		}
	}
	return s.Fetch(ctx, id)
}

// Fetch reads a market straight from the ledger, bypassing the board and the
// cache, and records the result.
func (s *MarketService) Fetch(ctx context.Context, id uint64) (domain.Market, error) {
	gen := s.gen.Add(1)
	raw, err := s.reader.GetMarketSummary(ctx, id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get market %d: %w", id, err)
	}
	m, err := market.Normalize(raw, id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get market %d: %w", id, err)
	}

	s.mu.Lock()
	if s.applied[id] <= gen {
		s.board[id] = m
		s.applied[id] = gen
	}
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.Set(ctx, m); err != nil {
			s.warn(ctx, "snapshot cache write failed", err)
		}
	}
	return m, nil
}

// Odds reads the current odds of every outcome of a market.
func (s *MarketService) Odds(ctx context.Context, id uint64) (domain.MarketOdds, error) {
	raw, err := s.reader.GetMarketOdds(ctx, id)
	if err != nil {
		return domain.MarketOdds{}, fmt.Errorf("market_service: get odds %d: %w", id, err)
	}
	o, err := market.NormalizeOdds(raw, id)
	if err != nil {
		return domain.MarketOdds{}, fmt.Errorf("market_service: get odds %d: %w", id, err)
	}
	return o, nil
}

// Listed returns the open markets on the board ordered by id.
func (s *MarketService) Listed() []domain.Market {
	return market.Listed(s.All())
}

// All returns every market on the board ordered by id.
func (s *MarketService) All() []domain.Market {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return aggregator.SortedByID(s.board)
}

// LastRefresh reports when the latest applied refresh started.
func (s *MarketService) LastRefresh() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRefresh
}

func (s *MarketService) warn(ctx context.Context, msg string, err error) {
	s.logger.WarnContext(ctx, msg, slog.String("error", err.Error()))
}
