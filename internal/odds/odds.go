// Package odds implements payout math over fixed-point odds. An Odds value is
// an integer multiplier over Denominator, so 1_850_000 means 1.85x. All
// arithmetic is done on big integers and truncates exactly like the betting
// contract does.
package odds

import (
	"fmt"
	"math/big"

	"github.com/alanyoungcy/winzzers/internal/money"
)

// Denominator is the implicit scale of an Odds value, shared with money.Unit.
const Denominator = money.Unit

// DefaultSlippageBps is the tolerance applied when deriving the minimum odds
// sent with a bet (5%).
const DefaultSlippageBps = 500

const bpsScale = 10_000

var denominatorBig = big.NewInt(Denominator)

// Odds is a non-negative payout multiplier at 1e-6 scale. The zero value is
// zero odds.
type Odds struct {
	v *big.Int
}

// New returns Odds of n / Denominator.
func New(n uint64) Odds {
	return Odds{v: new(big.Int).SetUint64(n)}
}

// FromBig returns Odds holding a copy of n. Negative values are rejected.
func FromBig(n *big.Int) (Odds, error) {
	if n == nil {
		return Odds{}, nil
	}
	if n.Sign() < 0 {
		return Odds{}, fmt.Errorf("odds: negative value %s", n.String())
	}
	return Odds{v: new(big.Int).Set(n)}, nil
}

// Big returns a copy of the raw numerator, suitable for ABI encoding.
func (o Odds) Big() *big.Int {
	if o.v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(o.v)
}

func (o Odds) int() *big.Int {
	if o.v == nil {
		return new(big.Int)
	}
	return o.v
}

// IsZero reports whether o is zero.
func (o Odds) IsZero() bool { return o.v == nil || o.v.Sign() == 0 }

// Equal reports whether o and p are the same ratio.
func (o Odds) Equal(p Odds) bool { return o.int().Cmp(p.int()) == 0 }

// Payout returns stake * o / Denominator, truncated. The figure is advisory;
// the contract computes the real payout with the same integer truncation.
func Payout(stake money.Amount, o Odds) money.Amount {
	n := new(big.Int).Mul(stake.Big(), o.int())
	n.Quo(n, denominatorBig)
	// Both factors are non-negative, so the quotient is too.
	a, _ := money.FromBig(n)
	return a
}

// MinOdds returns the lowest odds a bet quoted at o should still accept,
// using DefaultSlippageBps: o * 95 / 100, truncated.
func MinOdds(o Odds) Odds {
	return MinOddsWithSlippage(o, DefaultSlippageBps)
}

// MinOddsWithSlippage returns o * (10000 - bps) / 10000, truncated. bps is
// clamped to [0, 10000].
func MinOddsWithSlippage(o Odds, bps uint32) Odds {
	if bps > bpsScale {
		bps = bpsScale
	}
	n := new(big.Int).Mul(o.int(), big.NewInt(int64(bpsScale-bps)))
	n.Quo(n, big.NewInt(bpsScale))
	return Odds{v: n}
}

// ImpliedProbabilityBps returns the probability implied by o in basis points,
// truncated. Zero odds imply nothing and return 0.
func ImpliedProbabilityBps(o Odds) uint64 {
	if o.IsZero() {
		return 0
	}
	n := new(big.Int).Mul(big.NewInt(bpsScale), denominatorBig)
	n.Quo(n, o.int())
	return n.Uint64()
}

// Format renders o with the fixed-point layout used for amounts ("1.850000").
func Format(o Odds) string {
	return money.FormatUnits(o.int())
}

// FormatMultiplier renders o for display ("1.85", "2.125").
func FormatMultiplier(o Odds) string {
	return money.DisplayUnits(o.int())
}

// String implements fmt.Stringer.
func (o Odds) String() string { return Format(o) }

// MarshalText encodes o with Format.
func (o Odds) MarshalText() ([]byte, error) {
	return []byte(Format(o)), nil
}

// UnmarshalText decodes text produced by MarshalText.
func (o *Odds) UnmarshalText(text []byte) error {
	a, err := money.Parse(string(text))
	if err != nil {
		return fmt.Errorf("odds: %w", err)
	}
	o.v = a.Big()
	return nil
}
