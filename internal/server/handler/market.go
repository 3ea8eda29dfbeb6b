package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/winzzers/internal/domain"
)

// MarketService defines the methods that the market handler requires from the
// service layer. It is declared locally so the handler package does not depend
// on the concrete service implementation.
type MarketService interface {
	Listed() []domain.Market
	All() []domain.Market
	Get(ctx context.Context, id uint64) (domain.Market, error)
	Odds(ctx context.Context, id uint64) (domain.MarketOdds, error)
}

// MarketHandler serves market-related HTTP endpoints.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given service and logger.
func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{markets: markets, logger: logger}
}

type listMarketsResponse struct {
	Markets []domain.Market `json:"markets"`
	Total   int             `json:"total"`
}

// ListMarkets returns the open markets ordered by id. ?state=<name> lists
// markets in that state instead; ?state=all lists every tracked market.
// GET /api/markets
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	var markets []domain.Market
	switch state := r.URL.Query().Get("state"); state {
	case "":
		markets = h.markets.Listed()
	case "all":
		markets = h.markets.All()
	default:
		var want domain.MarketState
		if err := want.UnmarshalText([]byte(state)); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		for _, m := range h.markets.All() {
			if m.State == want {
				markets = append(markets, m)
			}
		}
	}
	if markets == nil {
		markets = []domain.Market{}
	}
	writeJSON(w, http.StatusOK, listMarketsResponse{Markets: markets, Total: len(markets)})
}

// GetMarket returns one market in any state.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}
	m, err := h.markets.Get(r.Context(), id)
	if err != nil {
		fail(w, r, h.logger, "get market", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// GetOdds returns the current odds of every outcome.
// GET /api/markets/{id}/odds
func (h *MarketHandler) GetOdds(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}
	o, err := h.markets.Odds(r.Context(), id)
	if err != nil {
		fail(w, r, h.logger, "get odds", err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
