package domain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/winzzers/internal/money"
	"github.com/alanyoungcy/winzzers/internal/odds"
)

// SummaryReader reads the raw market summary tuple for one market.
type SummaryReader interface {
	GetMarketSummary(ctx context.Context, id uint64) ([]any, error)
}

// LedgerReader is the read side of the betting contract and its collateral
// token. Raw tuples are returned undecoded so that normalization stays in one
// place.
type LedgerReader interface {
	SummaryReader
	GetMarketOdds(ctx context.Context, id uint64) ([]any, error)
	MarketCounter(ctx context.Context) (uint64, error)
	BalanceOf(ctx context.Context, owner common.Address) (money.Amount, error)
	Allowance(ctx context.Context, owner, spender common.Address) (money.Amount, error)
}

// CreateMarketParams are the arguments of the createMarket write.
type CreateMarketParams struct {
	OutcomeNames               []string
	VirtualLiquidityPerOutcome money.Amount
	CreatorFeeBps              uint16
}

// PlaceBetParams are the arguments of the placeBet write.
type PlaceBetParams struct {
	MarketID  uint64
	OutcomeID uint8
	Amount    money.Amount
	MinOdds   odds.Odds
}

// LedgerWriter submits transactions and waits for their receipts. A returned
// receipt always has a successful status; reverted transactions are reported
// as ErrWriteRejected.
type LedgerWriter interface {
	CreateMarket(ctx context.Context, p CreateMarketParams) (*types.Receipt, error)
	PlaceBet(ctx context.Context, p PlaceBetParams) (*types.Receipt, error)
	Approve(ctx context.Context, spender common.Address, amount money.Amount) (*types.Receipt, error)
	Claim(ctx context.Context, ticketID uint64) (*types.Receipt, error)
}
