package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/winzzers/internal/domain"
)

// WriteJournal implements domain.WriteJournal on the write_journal table.
type WriteJournal struct {
	pool *pgxpool.Pool
}

// NewWriteJournal creates a WriteJournal on pool.
func NewWriteJournal(pool *pgxpool.Pool) *WriteJournal {
	return &WriteJournal{pool: pool}
}

// Record appends rec. Detail is stored as JSONB.
func (j *WriteJournal) Record(ctx context.Context, rec domain.WriteRecord) error {
	var detail []byte
	if len(rec.Detail) > 0 {
		var err error
		if detail, err = json.Marshal(rec.Detail); err != nil {
			return fmt.Errorf("postgres: marshal journal detail: %w", err)
		}
	}

	const query = `
		INSERT INTO write_journal (method, from_addr, tx_hash, status, error, detail)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := j.pool.Exec(ctx, query,
		rec.Method, rec.From, rec.TxHash, string(rec.Status), rec.Error, detail,
	); err != nil {
		return fmt.Errorf("postgres: record %s write: %w", rec.Method, err)
	}
	return nil
}

// Recent returns the newest limit records, newest first.
func (j *WriteJournal) Recent(ctx context.Context, limit int) ([]domain.WriteRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.pool.Query(ctx, `
		SELECT id, method, from_addr, tx_hash, status, error, detail, created_at
		FROM write_journal ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list journal: %w", err)
	}
	defer rows.Close()

	var out []domain.WriteRecord
	for rows.Next() {
		var (
			rec    domain.WriteRecord
			status string
			detail []byte
		)
		if err := rows.Scan(&rec.ID, &rec.Method, &rec.From, &rec.TxHash, &status, &rec.Error, &detail, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan journal: %w", err)
		}
		rec.Status = domain.WriteStatus(status)
		if detail != nil {
			if err := json.Unmarshal(detail, &rec.Detail); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal journal detail: %w", err)
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list journal: %w", err)
	}
	return out, nil
}

var _ domain.WriteJournal = (*WriteJournal)(nil)
