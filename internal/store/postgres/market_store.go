package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/winzzers/internal/domain"
	"github.com/alanyoungcy/winzzers/internal/money"
)

// MarketStore implements domain.MarketStore. Amounts are NUMERIC(78,0) so
// any uint256 the ledger returns fits without loss.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a MarketStore on pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const upsertMarket = `
	INSERT INTO markets (
		id, creator, state, creator_fee_bps, virtual_liquidity,
		outcome_count, outcome_names, total_staked, winning_outcome,
		distributable, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
	ON CONFLICT (id) DO UPDATE SET
		state             = EXCLUDED.state,
		creator_fee_bps   = EXCLUDED.creator_fee_bps,
		virtual_liquidity = EXCLUDED.virtual_liquidity,
		outcome_count     = EXCLUDED.outcome_count,
		outcome_names     = EXCLUDED.outcome_names,
		total_staked      = EXCLUDED.total_staked,
		winning_outcome   = EXCLUDED.winning_outcome,
		distributable     = EXCLUDED.distributable,
		updated_at        = NOW()`

const marketCols = `id, creator, state, creator_fee_bps, virtual_liquidity,
	outcome_count, outcome_names, total_staked, winning_outcome, distributable`

// UpsertBatch writes every snapshot in one batch round trip.
func (s *MarketStore) UpsertBatch(ctx context.Context, markets []domain.Market) error {
	if len(markets) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, m := range markets {
		batch.Queue(upsertMarket,
			int64(m.ID),
			m.Creator.Hex(),
			int16(m.State),
			int32(m.CreatorFeeBps),
			toNumeric(m.VirtualLiquidity),
			int16(m.OutcomeCount),
			m.OutcomeNames,
			toNumeric(m.TotalStaked),
			int16(m.WinningOutcome),
			toNumeric(m.Distributable),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for _, m := range markets {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert market %d: %w", m.ID, err)
		}
	}
	return nil
}

// GetByID returns the last persisted snapshot of a market.
func (s *MarketStore) GetByID(ctx context.Context, id uint64) (domain.Market, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+marketCols+` FROM markets WHERE id = $1`, int64(id))
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %d: %w", id, err)
	}
	return m, nil
}

// ListByState returns persisted markets in state ordered by id.
func (s *MarketStore) ListByState(ctx context.Context, state domain.MarketState, limit int) ([]domain.Market, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketCols+` FROM markets WHERE state = $1 ORDER BY id LIMIT $2`,
		int16(state), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list %s markets: %w", state, err)
	}
	defer rows.Close()

	var out []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list %s markets: %w", state, err)
	}
	return out, nil
}

// UpdatedSince counts markets whose snapshot changed after since.
func (s *MarketStore) UpdatedSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM markets WHERE updated_at > $1`, since,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count updated markets: %w", err)
	}
	return n, nil
}

func scanMarket(row pgx.Row) (domain.Market, error) {
	var (
		id                int64
		creator           string
		state             int16
		fee               int32
		count, winner     int16
		names             []string
		liq, staked, dist pgtype.Numeric
	)
	if err := row.Scan(&id, &creator, &state, &fee, &liq, &count, &names, &staked, &winner, &dist); err != nil {
		return domain.Market{}, err
	}

	m := domain.Market{
		ID:             uint64(id),
		Creator:        common.HexToAddress(creator),
		State:          domain.MarketState(state),
		CreatorFeeBps:  uint16(fee),
		OutcomeCount:   int(count),
		OutcomeNames:   names,
		WinningOutcome: int(winner),
	}
	var err error
	if m.VirtualLiquidity, err = fromNumeric(liq); err != nil {
		return domain.Market{}, fmt.Errorf("virtual_liquidity: %w", err)
	}
	if m.TotalStaked, err = fromNumeric(staked); err != nil {
		return domain.Market{}, fmt.Errorf("total_staked: %w", err)
	}
	if m.Distributable, err = fromNumeric(dist); err != nil {
		return domain.Market{}, fmt.Errorf("distributable: %w", err)
	}
	return m, nil
}

func toNumeric(a money.Amount) pgtype.Numeric {
	return pgtype.Numeric{Int: a.Big(), Exp: 0, Valid: true}
}

// fromNumeric converts an integral NUMERIC back to an Amount. pgx may return
// the value with a positive exponent (1e6 as Int=1, Exp=6).
func fromNumeric(n pgtype.Numeric) (money.Amount, error) {
	if !n.Valid || n.NaN || n.InfinityModifier != pgtype.Finite || n.Int == nil {
		return money.Zero, errors.New("not a finite number")
	}
	v := new(big.Int).Set(n.Int)
	switch {
	case n.Exp > 0:
		v.Mul(v, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n.Exp)), nil))
	case n.Exp < 0:
		div := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-n.Exp)), nil)
		q, r := new(big.Int).QuoRem(v, div, new(big.Int))
		if r.Sign() != 0 {
			return money.Zero, fmt.Errorf("%s has a fractional part", n.Int)
		}
		v = q
	}
	return money.FromBig(v)
}

var _ domain.MarketStore = (*MarketStore)(nil)
