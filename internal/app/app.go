// Package app provides the top-level application lifecycle for the winzzers
// betting core. It wires together the ledger client, the optional Redis,
// Postgres and S3 backends, and the services, then starts the goroutines of
// the configured operating mode.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/winzzers/internal/aggregator"
	"github.com/alanyoungcy/winzzers/internal/config"
	"github.com/alanyoungcy/winzzers/internal/money"
	"github.com/alanyoungcy/winzzers/internal/service"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()

	deps    *Dependencies
	markets *service.MarketService
	betting *service.BettingService
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Init wires dependencies and builds the services. Commands call it directly;
// Run calls it with every backend enabled.
func (a *App) Init(ctx context.Context, opts WireOptions) error {
	deps, cleanup, err := Wire(ctx, a.cfg, opts, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)
	a.deps = deps

	agg := aggregator.New(deps.Reader, a.logger,
		aggregator.WithConcurrency(a.cfg.Chain.FetchConcurrency))

	a.markets = service.NewMarketService(deps.Reader, agg, deps.Metrics, a.logger).
		WithCache(deps.SnapshotCache).
		WithStore(deps.MarketStore).
		WithBus(deps.SignalBus)
	if deps.Archiver != nil {
		a.markets.WithArchiver(deps.Archiver, a.cfg.S3.ArchiveEvery.Duration)
	}

	liquidity, err := money.Parse(a.cfg.Market.VirtualLiquidityPerOutcome)
	if err != nil {
		return fmt.Errorf("app: virtual liquidity: %w", err)
	}
	a.betting = service.NewBettingService(deps.Reader, a.markets, service.BettingConfig{
		Contract:                          a.cfg.Chain.ContractAddress(),
		DefaultVirtualLiquidityPerOutcome: liquidity,
		DefaultCreatorFeeBps:              uint16(a.cfg.Market.CreatorFeeBps),
		MetadataTimeout:                   a.cfg.Market.MetadataTimeout.Duration,
	}, deps.Metrics, a.logger).
		WithMetadata(deps.MetadataSink).
		WithJournal(deps.WriteJournal).
		WithSlippage(uint32(a.cfg.Market.SlippageBps))
	if deps.Writer != nil {
		a.betting.WithWallet(deps.Writer)
	}
	return nil
}

// Markets returns the market service. Valid after Init.
func (a *App) Markets() *service.MarketService { return a.markets }

// Betting returns the betting service. Valid after Init.
func (a *App) Betting() *service.BettingService { return a.betting }

// Run is the main entry point for the long-running modes. It wires all
// dependencies, selects the operating mode, and blocks until the context is
// cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	if err := a.Init(ctx, WireOptions{Backends: true}); err != nil {
		return err
	}

	switch strings.ToLower(a.cfg.Mode) {
	case "serve":
		return a.ServeMode(ctx)
	case "watch":
		return a.WatchMode(ctx)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
