package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/alanyoungcy/winzzers/internal/crypto"
	"github.com/alanyoungcy/winzzers/internal/domain"
	"github.com/alanyoungcy/winzzers/internal/server/handler"
	"github.com/alanyoungcy/winzzers/internal/server/middleware"
	"github.com/alanyoungcy/winzzers/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// APIKey, when set, is required on everything except health, metrics,
	// the market reads and /ws.
	APIKey string
	// RateLimit requests per RateWindow per client IP; 0 disables limiting.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health   *handler.HealthHandler
	Status   *handler.StatusHandler
	Markets  *handler.MarketHandler
	Metadata *handler.MetadataHandler
	Betting  *handler.BettingHandler
	// Metrics serves the Prometheus exposition format; nil hides /metrics.
	Metrics http.Handler
}

// Deps are the optional collaborators of the middleware chain.
type Deps struct {
	Hub     *ws.Hub
	Limiter domain.RateLimiter
	// Signer verifies metadata writes; nil leaves the route open.
	Signer *crypto.RequestSigner
}

// Server is the HTTP + WebSocket API of the betting core.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// NewServer creates a Server with every route registered on a ServeMux and
// the middleware chain applied.
func NewServer(cfg Config, handlers Handlers, deps Deps, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "http"))
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	if handlers.Status != nil {
		mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)
	}

	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("GET /api/markets/{id}/odds", handlers.Markets.GetOdds)

	mux.HandleFunc("GET /api/markets/{id}/meta", handlers.Metadata.GetMetadata)
	mux.Handle("POST /api/markets",
		middleware.Signature(deps.Signer, logger)(http.HandlerFunc(handlers.Metadata.SaveMetadata)))

	if handlers.Betting != nil {
		mux.HandleFunc("GET /api/quote", handlers.Betting.Quote)
		mux.HandleFunc("GET /api/wallets/{address}/funds", handlers.Betting.Funds)
		mux.HandleFunc("GET /api/writes", handlers.Betting.RecentWrites)
	}

	if handlers.Metrics != nil {
		mux.Handle("GET /metrics", handlers.Metrics)
	}
	if deps.Hub != nil {
		mux.HandleFunc("GET /ws", deps.Hub.HandleWS)
	}

	var h http.Handler = mux
	public := publicRoutes
	if deps.Signer != nil {
		public = append(slices.Clone(public), "POST /api/markets")
	}
	h = middleware.Auth(cfg.APIKey, public...)(h)
	h = middleware.RateLimit(deps.Limiter, cfg.RateLimit, cfg.RateWindow, logger)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           h,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		handler: h,
		logger:  logger,
	}
}

// publicRoutes skip API key auth. Metadata writes join them only when request
// signatures guard the route.
var publicRoutes = []string{
	"GET /api/health",
	"GET /api/markets",
	"GET /api/quote",
	"GET /metrics",
	"GET /ws",
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler { return s.handler }

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
