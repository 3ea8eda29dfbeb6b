package domain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/winzzers/internal/money"
	"github.com/alanyoungcy/winzzers/internal/odds"
)

// MarketState is the on-chain lifecycle state of a market.
type MarketState uint8

const (
	MarketStateCreated MarketState = iota
	MarketStateOpen
	MarketStateLocked
	MarketStateResolved
	MarketStateCancelled
)

// NoWinningOutcome marks a market that has not been resolved.
const NoWinningOutcome = -1

var marketStateNames = [...]string{"created", "open", "locked", "resolved", "cancelled"}

// Valid reports whether s is one of the known states.
func (s MarketState) Valid() bool { return int(s) < len(marketStateNames) }

func (s MarketState) String() string {
	if !s.Valid() {
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
	return marketStateNames[s]
}

// MarshalText encodes the state by name.
func (s MarketState) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("domain: unknown market state %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *MarketState) UnmarshalText(text []byte) error {
	for i, name := range marketStateNames {
		if name == string(text) {
			*s = MarketState(i)
			return nil
		}
	}
	return fmt.Errorf("domain: unknown market state %q", string(text))
}

// Market is a normalized snapshot of a betting market as read from the ledger.
// OutcomeNames always has OutcomeCount entries. WinningOutcome is
// NoWinningOutcome unless State is MarketStateResolved.
type Market struct {
	ID               uint64         `json:"id"`
	Creator          common.Address `json:"creator"`
	State            MarketState    `json:"state"`
	CreatorFeeBps    uint16         `json:"creatorFeeBps"`
	VirtualLiquidity money.Amount   `json:"virtualLiquidity"`
	OutcomeCount     int            `json:"outcomeCount"`
	OutcomeNames     []string       `json:"outcomeNames"`
	TotalStaked      money.Amount   `json:"totalStaked"`
	WinningOutcome   int            `json:"winningOutcome"`
	Distributable    money.Amount   `json:"distributable"`
}

// Winner returns the winning outcome index when the market is resolved.
func (m Market) Winner() (int, bool) {
	if m.State != MarketStateResolved || m.WinningOutcome == NoWinningOutcome {
		return 0, false
	}
	return m.WinningOutcome, true
}

// MarketOdds holds the current odds for each outcome of a market, in outcome
// order.
type MarketOdds struct {
	MarketID uint64      `json:"marketId"`
	Odds     []odds.Odds `json:"odds"`
	Names    []string    `json:"names"`
}

// MarketMetadata is the off-chain description attached to a market.
type MarketMetadata struct {
	MarketID    uint64   `json:"marketId"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	// CreatedAt is a unix timestamp in milliseconds.
	CreatedAt int64 `json:"createdAt"`
}
