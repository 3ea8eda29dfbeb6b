package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/winzzers/internal/domain"
)

const maxMetadataBody = 64 << 10

// MetadataHandler serves the off-chain market metadata routes. A nil store
// makes every request fail with "Redis not configured".
type MetadataHandler struct {
	store  domain.MetadataStore
	logger *slog.Logger
}

// NewMetadataHandler creates a MetadataHandler.
func NewMetadataHandler(store domain.MetadataStore, logger *slog.Logger) *MetadataHandler {
	return &MetadataHandler{store: store, logger: logger}
}

type saveMetadataRequest struct {
	MarketID    json.RawMessage `json:"marketId"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Tags        []string        `json:"tags"`
	CreatedAt   int64           `json:"createdAt"`
}

// SaveMetadata stores title, description and tags for a market.
// POST /api/markets
func (h *MetadataHandler) SaveMetadata(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusInternalServerError, "Redis not configured")
		return
	}

	var req saveMetadataRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMetadataBody)).Decode(&req); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	id, ok := numericID(req.MarketID)
	if !ok {
		writeError(w, http.StatusBadRequest, "marketId is required")
		return
	}

	err := h.store.SaveMetadata(r.Context(), domain.MarketMetadata{
		MarketID:    id,
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
		CreatedAt:   req.CreatedAt,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: save metadata failed",
			slog.Uint64("market_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// GetMetadata returns the stored metadata of a market.
// GET /api/markets/{id}/meta
func (h *MetadataHandler) GetMetadata(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusInternalServerError, "Redis not configured")
		return
	}
	id, ok := marketID(w, r)
	if !ok {
		return
	}
	meta, err := h.store.GetMetadata(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no metadata for market "+strconv.FormatUint(id, 10))
		return
	}
	if err != nil {
		fail(w, r, h.logger, "get metadata", err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

// numericID accepts any non-negative integral JSON number, so 7, 7.0 and 1e3
// are ids. Strings, null, negatives and fractions are rejected.
func numericID(raw json.RawMessage) (uint64, bool) {
	if len(raw) == 0 || raw[0] < '0' || raw[0] > '9' {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	if id, err := strconv.ParseUint(n.String(), 10, 64); err == nil {
		return id, true
	}
	f, _, err := big.ParseFloat(n.String(), 10, 256, big.ToNearestEven)
	if err != nil || f.Acc() != big.Exact || !f.IsInt() {
		return 0, false
	}
	id, acc := f.Uint64()
	return id, acc == big.Exact
}
