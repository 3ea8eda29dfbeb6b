package handler

import (
	"net/http"
	"time"
)

// StatusHandler serves static facts about the running process.
type StatusHandler struct {
	Mode       string
	ChainID    string
	Contract   string
	Collateral string
	// Wallet is empty when the process runs without a signing key.
	Wallet    string
	StartedAt time.Time
}

// GetStatus responds with the mode, contract addresses and uptime.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":          h.Mode,
		"chainId":       h.ChainID,
		"contract":      h.Contract,
		"collateral":    h.Collateral,
		"wallet":        h.Wallet,
		"uptimeSeconds": int64(time.Since(h.StartedAt).Seconds()),
	})
}
