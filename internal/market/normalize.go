// Package market turns raw contract reads into domain.Market values and
// decides which markets appear in the default listing.
package market

import (
	"fmt"
	"math"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/winzzers/internal/domain"
	"github.com/alanyoungcy/winzzers/internal/money"
	"github.com/alanyoungcy/winzzers/internal/odds"
)

// summaryArity is the number of fields returned by getMarketSummary.
const summaryArity = 9

// Normalize maps the ordered getMarketSummary tuple
//
//	(creator, state, creatorFee, virtualLiquidity, outcomeCount,
//	 outcomeNames, totalStaked, winningOutcome, distributable)
//
// onto a domain.Market. Any shape or type mismatch, an unknown state, or an
// outcome name list whose length differs from outcomeCount yields an error
// wrapping domain.ErrMalformedMarketData.
func Normalize(raw []any, id uint64) (domain.Market, error) {
	if len(raw) != summaryArity {
		return domain.Market{}, malformed(id, "expected %d fields, got %d", summaryArity, len(raw))
	}

	creator, err := toAddress(raw[0])
	if err != nil {
		return domain.Market{}, malformed(id, "creator: %v", err)
	}

	state, err := toUint(raw[1], math.MaxUint8)
	if err != nil {
		return domain.Market{}, malformed(id, "state: %v", err)
	}
	if !domain.MarketState(state).Valid() {
		return domain.Market{}, malformed(id, "unknown state %d", state)
	}

	fee, err := toUint(raw[2], math.MaxUint16)
	if err != nil {
		return domain.Market{}, malformed(id, "creatorFee: %v", err)
	}

	virtual, err := toAmount(raw[3])
	if err != nil {
		return domain.Market{}, malformed(id, "virtualLiquidity: %v", err)
	}

	count, err := toUint(raw[4], math.MaxUint16)
	if err != nil {
		return domain.Market{}, malformed(id, "outcomeCount: %v", err)
	}

	names, ok := raw[5].([]string)
	if !ok {
		return domain.Market{}, malformed(id, "outcomeNames: expected []string, got %T", raw[5])
	}
	if uint64(len(names)) != count {
		return domain.Market{}, malformed(id, "outcomeCount is %d but %d outcome names were returned", count, len(names))
	}

	staked, err := toAmount(raw[6])
	if err != nil {
		return domain.Market{}, malformed(id, "totalStaked: %v", err)
	}

	winner, err := toUint(raw[7], math.MaxUint16)
	if err != nil {
		return domain.Market{}, malformed(id, "winningOutcome: %v", err)
	}

	distributable, err := toAmount(raw[8])
	if err != nil {
		return domain.Market{}, malformed(id, "distributable: %v", err)
	}

	m := domain.Market{
		ID:               id,
		Creator:          creator,
		State:            domain.MarketState(state),
		CreatorFeeBps:    uint16(fee),
		VirtualLiquidity: virtual,
		OutcomeCount:     int(count),
		OutcomeNames:     append([]string(nil), names...),
		TotalStaked:      staked,
		WinningOutcome:   domain.NoWinningOutcome,
		Distributable:    distributable,
	}

	// The contract leaves winningOutcome at its zero value until resolution,
	// so it only carries meaning for resolved markets.
	if m.State == domain.MarketStateResolved {
		if winner >= count {
			return domain.Market{}, malformed(id, "winning outcome %d out of range for %d outcomes", winner, count)
		}
		m.WinningOutcome = int(winner)
	}

	return m, nil
}

// NormalizeOdds maps the getMarketOdds tuple (odds[], names[]) onto a
// domain.MarketOdds.
func NormalizeOdds(raw []any, id uint64) (domain.MarketOdds, error) {
	if len(raw) != 2 {
		return domain.MarketOdds{}, malformed(id, "odds: expected 2 fields, got %d", len(raw))
	}

	rawOdds, ok := raw[0].([]*big.Int)
	if !ok {
		return domain.MarketOdds{}, malformed(id, "odds: expected []*big.Int, got %T", raw[0])
	}
	names, ok := raw[1].([]string)
	if !ok {
		return domain.MarketOdds{}, malformed(id, "odds names: expected []string, got %T", raw[1])
	}
	if len(rawOdds) != len(names) {
		return domain.MarketOdds{}, malformed(id, "%d odds for %d outcome names", len(rawOdds), len(names))
	}

	out := domain.MarketOdds{
		MarketID: id,
		Odds:     make([]odds.Odds, len(rawOdds)),
		Names:    append([]string(nil), names...),
	}
	for i, n := range rawOdds {
		o, err := odds.FromBig(n)
		if err != nil {
			return domain.MarketOdds{}, malformed(id, "odds[%d]: %v", i, err)
		}
		out.Odds[i] = o
	}
	return out, nil
}

// IsListed reports whether m belongs in the default browse view. Markets in
// any other state stay addressable by id.
func IsListed(m domain.Market) bool {
	return m.State == domain.MarketStateOpen
}

// Listed returns the listed markets of ms ordered by ascending id.
func Listed(ms []domain.Market) []domain.Market {
	out := make([]domain.Market, 0, len(ms))
	for _, m := range ms {
		if IsListed(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func malformed(id uint64, format string, args ...any) error {
	return fmt.Errorf("market %d: %w: %s", id, domain.ErrMalformedMarketData, fmt.Sprintf(format, args...))
}

func toAddress(v any) (common.Address, error) {
	switch a := v.(type) {
	case common.Address:
		return a, nil
	case string:
		if !common.IsHexAddress(a) {
			return common.Address{}, fmt.Errorf("invalid address %q", a)
		}
		return common.HexToAddress(a), nil
	default:
		return common.Address{}, fmt.Errorf("expected address, got %T", v)
	}
}

// toUint accepts the integer kinds the ABI decoder produces and rejects
// negative values or values above limit.
func toUint(v any, limit uint64) (uint64, error) {
	var n uint64
	switch x := v.(type) {
	case uint8:
		n = uint64(x)
	case uint16:
		n = uint64(x)
	case uint32:
		n = uint64(x)
	case uint64:
		n = x
	case int:
		if x < 0 {
			return 0, fmt.Errorf("negative value %d", x)
		}
		n = uint64(x)
	case int64:
		if x < 0 {
			return 0, fmt.Errorf("negative value %d", x)
		}
		n = uint64(x)
	case *big.Int:
		if x == nil || x.Sign() < 0 || !x.IsUint64() {
			return 0, fmt.Errorf("value %v out of range", x)
		}
		n = x.Uint64()
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
	if n > limit {
		return 0, fmt.Errorf("value %d exceeds %d", n, limit)
	}
	return n, nil
}

func toAmount(v any) (money.Amount, error) {
	switch x := v.(type) {
	case *big.Int:
		if x == nil {
			return money.Amount{}, fmt.Errorf("nil amount")
		}
		return money.FromBig(x)
	case uint64:
		return money.NewAmount(x), nil
	default:
		return money.Amount{}, fmt.Errorf("expected uint256, got %T", v)
	}
}
