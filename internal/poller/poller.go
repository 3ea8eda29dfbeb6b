// Package poller schedules market refreshes on a fixed interval. Nothing else
// in the module keeps time.
package poller

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/winzzers/internal/service"
)

// DefaultInterval is used when no interval is configured.
const DefaultInterval = 15 * time.Second

// Refresher is implemented by *service.MarketService.
type Refresher interface {
	Refresh(ctx context.Context) (service.RefreshResult, error)
}

// Poller calls Refresh once on start and then on every tick.
type Poller struct {
	target   Refresher
	interval time.Duration
	logger   *slog.Logger
}

// New creates a Poller. A non-positive interval uses DefaultInterval.
func New(target Refresher, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		target:   target,
		interval: interval,
		logger:   logger.With(slog.String("component", "poller")),
	}
}

// Interval returns the tick interval.
func (p *Poller) Interval() time.Duration { return p.interval }

// RunLoop refreshes until ctx is cancelled. A failed refresh is logged and the
// loop carries on; the previous snapshot stays in place.
func (p *Poller) RunLoop(ctx context.Context) error {
	p.tick(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped")
			return ctx.Err()
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	if _, err := p.target.Refresh(ctx); err != nil && ctx.Err() == nil {
		p.logger.ErrorContext(ctx, "market refresh failed", slog.String("error", err.Error()))
	}
}
