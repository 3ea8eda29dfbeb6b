package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/winzzers/internal/domain"
	"github.com/alanyoungcy/winzzers/internal/odds"
	"github.com/alanyoungcy/winzzers/internal/service"
)

// BettingService is the subset of service.BettingService served over HTTP.
// Writes are not exposed; they need the wallet key and run from the CLI.
type BettingService interface {
	NewQuote(stakeText string, o odds.Odds) service.Quote
	QuoteMarket(ctx context.Context, marketID uint64, outcome int, stakeText string) (service.Quote, error)
	Funds(ctx context.Context, owner common.Address) (service.Funds, error)
	RecentWrites(ctx context.Context, limit int) ([]domain.WriteRecord, error)
}

// BettingHandler serves quotes, wallet funds and the write journal.
type BettingHandler struct {
	betting BettingService
	logger  *slog.Logger
}

// NewBettingHandler creates a BettingHandler.
func NewBettingHandler(betting BettingService, logger *slog.Logger) *BettingHandler {
	return &BettingHandler{betting: betting, logger: logger}
}

// Quote prices a stake. With ?market=&outcome= it uses the market's current
// odds; with ?odds= it prices against the given odds. An unparseable stake
// quotes as zero.
// GET /api/quote?market=1&outcome=0&stake=10
func (h *BettingHandler) Quote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	stake := q.Get("stake")

	if text := q.Get("odds"); text != "" {
		var o odds.Odds
		if err := o.UnmarshalText([]byte(text)); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, h.betting.NewQuote(stake, o))
		return
	}

	id, err := strconv.ParseUint(q.Get("market"), 10, 64)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "market or odds is required")
		return
	}
	outcome, err := strconv.Atoi(q.Get("outcome"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "outcome is required")
		return
	}
	quote, err := h.betting.QuoteMarket(r.Context(), id, outcome, stake)
	if err != nil {
		fail(w, r, h.logger, "quote", err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// Funds returns a wallet's collateral balance and allowance.
// GET /api/wallets/{address}/funds
func (h *BettingHandler) Funds(w http.ResponseWriter, r *http.Request) {
	addr := r.PathValue("address")
	if !common.IsHexAddress(addr) {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}
	funds, err := h.betting.Funds(r.Context(), common.HexToAddress(addr))
	if err != nil {
		fail(w, r, h.logger, "funds", err)
		return
	}
	writeJSON(w, http.StatusOK, funds)
}

// RecentWrites lists the newest journaled ledger writes.
// GET /api/writes?limit=50
func (h *BettingHandler) RecentWrites(w http.ResponseWriter, r *http.Request) {
	recs, err := h.betting.RecentWrites(r.Context(), parseLimit(r))
	if err != nil {
		fail(w, r, h.logger, "recent writes", err)
		return
	}
	if recs == nil {
		recs = []domain.WriteRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"writes": recs})
}
