package app

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/winzzers/internal/poller"
	"github.com/alanyoungcy/winzzers/internal/server"
	"github.com/alanyoungcy/winzzers/internal/server/handler"
	"github.com/alanyoungcy/winzzers/internal/server/ws"
)

const shutdownTimeout = 5 * time.Second

// ServeMode runs the refresh poller, the WebSocket hub and the HTTP API until
// ctx is cancelled.
func (a *App) ServeMode(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)

	p := poller.New(a.markets, a.cfg.Chain.PollInterval.Duration, a.logger)
	g.Go(func() error { return p.RunLoop(ctx) })

	hub := ws.NewHub(a.deps.SignalBus, a.markets.Listed, a.logger)
	g.Go(func() error { return hub.Run(ctx) })

	srv := a.newServer(hub)
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	return g.Wait()
}

// WatchMode only keeps the snapshot fresh and feeds the cache, store, bus and
// archive. It is meant for a dedicated refresher next to several API replicas.
func (a *App) WatchMode(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting watch mode",
		slog.Duration("interval", a.cfg.Chain.PollInterval.Duration))

	g, ctx := errgroup.WithContext(ctx)
	p := poller.New(a.markets, a.cfg.Chain.PollInterval.Duration, a.logger)
	g.Go(func() error { return p.RunLoop(ctx) })
	return g.Wait()
}

func (a *App) newServer(hub *ws.Hub) *server.Server {
	wallet := ""
	if a.deps.Writer != nil {
		wallet = a.deps.Writer.From().Hex()
	}

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(a.markets, a.deps.Checks, a.logger),
		Status: &handler.StatusHandler{
			Mode:       a.cfg.Mode,
			ChainID:    strconv.FormatInt(a.cfg.Chain.ChainID, 10),
			Contract:   a.cfg.Chain.ContractAddress().Hex(),
			Collateral: a.cfg.Chain.CollateralAddress().Hex(),
			Wallet:     wallet,
			StartedAt:  time.Now().UTC(),
		},
		Markets:  handler.NewMarketHandler(a.markets, a.logger),
		Metadata: handler.NewMetadataHandler(a.deps.MetadataStore, a.logger),
		Betting:  handler.NewBettingHandler(a.betting, a.logger),
		Metrics:  promhttp.HandlerFor(a.deps.Metrics.Registry(), promhttp.HandlerOpts{}),
	}

	return server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, server.Deps{
		Hub:     hub,
		Limiter: a.deps.RateLimiter,
		Signer:  a.deps.Signer,
	}, a.logger)
}
