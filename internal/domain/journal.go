package domain

import (
	"context"
	"time"
)

// WriteStatus is the final outcome of a ledger write.
type WriteStatus string

const (
	WriteConfirmed WriteStatus = "confirmed"
	WriteRejected  WriteStatus = "rejected"
	WriteFailed    WriteStatus = "failed"
)

// WriteRecord is one journaled ledger write.
type WriteRecord struct {
	ID        int64          `json:"id"`
	Method    string         `json:"method"`
	From      string         `json:"from"`
	TxHash    string         `json:"txHash,omitempty"`
	Status    WriteStatus    `json:"status"`
	Error     string         `json:"error,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// WriteJournal keeps an append-only history of ledger writes.
type WriteJournal interface {
	Record(ctx context.Context, rec WriteRecord) error
	Recent(ctx context.Context, limit int) ([]WriteRecord, error)
}
