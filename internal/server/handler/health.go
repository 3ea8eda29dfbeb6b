package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"
)

// Check probes one dependency.
type Check func(ctx context.Context) error

// Board reports the freshness of the market snapshot.
type Board interface {
	LastRefresh() time.Time
}

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	board  Board
	checks map[string]Check
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler. checks may be nil.
func NewHealthHandler(board Board, checks map[string]Check, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{board: board, checks: checks, logger: logger}
}

// HealthCheck reports every dependency probe and the last refresh time. Any
// failing probe turns the response into a 503.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status, code := "ok", http.StatusOK
	deps := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			deps[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			h.logger.WarnContext(ctx, "handler: health check failed",
				slog.String("dependency", name),
				slog.String("error", err.Error()),
			)
			continue
		}
		deps[name] = "ok"
	}

	resp := map[string]any{
		"status":       status,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"dependencies": deps,
	}
	if h.board != nil {
		if last := h.board.LastRefresh(); !last.IsZero() {
			resp["lastRefresh"] = last.UTC().Format(time.RFC3339)
		}
	}
	writeJSON(w, code, resp)
}
