// Package aggregator fans market summary reads out over a range of ids and
// merges the results into one collection. A failed read only removes its own
// id; it never fails the batch. The aggregator holds no state between calls
// and never schedules anything by itself.
package aggregator

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/winzzers/internal/domain"
	"github.com/alanyoungcy/winzzers/internal/market"
)

// DefaultConcurrency bounds outstanding reads when none is configured.
const DefaultConcurrency = 8

// Aggregator batches getMarketSummary reads.
type Aggregator struct {
	reader      domain.SummaryReader
	concurrency int
	logger      *slog.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithConcurrency sets the maximum number of outstanding reads.
func WithConcurrency(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// New creates an Aggregator over reader.
func New(reader domain.SummaryReader, logger *slog.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		reader:      reader,
		concurrency: DefaultConcurrency,
		logger:      logger.With(slog.String("component", "aggregator")),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// FetchAll reads and normalizes every id concurrently. The result holds one
// entry per id that was read and decoded successfully; ids whose read or
// decode failed are absent. Duplicate ids are read once.
func (a *Aggregator) FetchAll(ctx context.Context, ids []uint64) map[uint64]domain.Market {
	out := make(map[uint64]domain.Market, len(ids))
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(a.concurrency)

	for _, id := range dedupe(ids) {
		g.Go(func() error {
			m, err := a.fetchOne(ctx, id)
			if err != nil {
				a.logger.DebugContext(ctx, "market read dropped",
					slog.Uint64("market_id", id),
					slog.String("error", err.Error()),
				)
				return nil
			}
			mu.Lock()
			out[id] = m
			mu.Unlock()
			return nil
		})
	}

	// Workers never return errors; per-id failures are already recorded.
	_ = g.Wait()
	return out
}

// Refresh re-reads ids and returns a new collection: a copy of existing where
// every successfully re-read id is replaced. An id whose re-read fails keeps
// its previous entry, if any. existing is not modified.
func (a *Aggregator) Refresh(ctx context.Context, existing map[uint64]domain.Market, ids []uint64) map[uint64]domain.Market {
	fresh := a.FetchAll(ctx, ids)

	out := make(map[uint64]domain.Market, len(existing)+len(fresh))
	for id, m := range existing {
		out[id] = m
	}
	for id, m := range fresh {
		out[id] = m
	}
	return out
}

func (a *Aggregator) fetchOne(ctx context.Context, id uint64) (domain.Market, error) {
	if err := ctx.Err(); err != nil {
		return domain.Market{}, err
	}
	raw, err := a.reader.GetMarketSummary(ctx, id)
	if err != nil {
		return domain.Market{}, err
	}
	return market.Normalize(raw, id)
}

// MaxMarkets bounds how many ids one refresh will fetch.
const MaxMarkets = 100_000

// IDRange returns the ids 1..counter, the ids assigned by the contract so far.
// counter is clamped to MaxMarkets.
func IDRange(counter uint64) []uint64 {
	counter = min(counter, MaxMarkets)
	ids := make([]uint64, 0, counter)
	for i := uint64(0); i < counter; i++ {
		ids = append(ids, i+1)
	}
	return ids
}

// SortedByID flattens a collection into a slice ordered by ascending id.
func SortedByID(markets map[uint64]domain.Market) []domain.Market {
	out := make([]domain.Market, 0, len(markets))
	for _, m := range markets {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Listed returns the open markets of a collection ordered by ascending id.
func Listed(markets map[uint64]domain.Market) []domain.Market {
	return market.Listed(SortedByID(markets))
}

func dedupe(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
