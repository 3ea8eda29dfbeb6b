// Package money implements exact fixed-point USDC amounts. An Amount is a
// non-negative integer count of 1e-6 units; no floating point is involved in
// parsing, formatting or arithmetic.
package money

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Decimals is the number of fractional digits carried by an Amount (USDC).
const Decimals = 6

// Unit is 10^Decimals, the number of base units in one whole currency unit.
const Unit = 1_000_000

// ErrInvalidAmount is returned for decimal text that cannot be represented as
// an Amount.
var ErrInvalidAmount = errors.New("invalid amount")

var unitBig = big.NewInt(Unit)

// Amount is an exact, non-negative count of 1e-6 currency units. The zero
// value is zero. Amounts are immutable; every operation returns a new value.
type Amount struct {
	v *big.Int
}

// Zero is the zero Amount.
var Zero = Amount{}

// NewAmount returns an Amount of n base units.
func NewAmount(n uint64) Amount {
	return Amount{v: new(big.Int).SetUint64(n)}
}

// FromBig returns an Amount holding a copy of n. Negative values are rejected;
// a nil n is zero.
func FromBig(n *big.Int) (Amount, error) {
	if n == nil {
		return Zero, nil
	}
	if n.Sign() < 0 {
		return Zero, fmt.Errorf("money: %w: negative value %s", ErrInvalidAmount, n.String())
	}
	return Amount{v: new(big.Int).Set(n)}, nil
}

// Big returns a copy of the underlying integer, suitable for ABI encoding.
func (a Amount) Big() *big.Int {
	if a.v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a.v)
}

func (a Amount) int() *big.Int {
	if a.v == nil {
		return new(big.Int)
	}
	return a.v
}

// IsZero reports whether a is zero.
func (a Amount) IsZero() bool { return a.v == nil || a.v.Sign() == 0 }

// Cmp compares a and b and returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int { return a.int().Cmp(b.int()) }

// Equal reports whether a and b hold the same number of units.
func (a Amount) Equal(b Amount) bool { return a.Cmp(b) == 0 }

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return Amount{v: new(big.Int).Add(a.int(), b.int())}
}

// Uint64 returns the unit count and whether it fits in a uint64.
func (a Amount) Uint64() (uint64, bool) {
	n := a.int()
	return n.Uint64(), n.IsUint64()
}

// Parse converts sign-free decimal text such as "12.5" or "0.000001" to an
// Amount. Surrounding whitespace is ignored.
//
// The empty string parses to zero. This is a deliberate convenience for form
// inputs that have not been filled in yet; any other malformed text is an
// error wrapping ErrInvalidAmount: more than one '.', a character that is not
// a digit, no digits at all, or more than Decimals fractional digits.
func Parse(text string) (Amount, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return Zero, nil
	}

	whole, frac, found := strings.Cut(s, ".")
	if found && strings.Contains(frac, ".") {
		return Zero, fmt.Errorf("money: parse %q: %w: more than one decimal separator", text, ErrInvalidAmount)
	}
	if whole == "" && frac == "" {
		return Zero, fmt.Errorf("money: parse %q: %w: no digits", text, ErrInvalidAmount)
	}
	if !allDigits(whole) || !allDigits(frac) {
		return Zero, fmt.Errorf("money: parse %q: %w: non-digit character", text, ErrInvalidAmount)
	}
	if len(frac) > Decimals {
		return Zero, fmt.Errorf("money: parse %q: %w: more than %d fractional digits", text, ErrInvalidAmount, Decimals)
	}

	digits := whole + frac + strings.Repeat("0", Decimals-len(frac))
	n, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return Zero, fmt.Errorf("money: parse %q: %w", text, ErrInvalidAmount)
	}
	return Amount{v: n}, nil
}

// MustParse is Parse for constants; it panics on error.
func MustParse(text string) Amount {
	a, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return a
}

// ParseOrZero parses text and returns zero when it is malformed. The result
// is only suitable for advisory figures such as a payout preview; anything
// sent to the ledger must go through Parse.
func ParseOrZero(text string) Amount {
	a, err := Parse(text)
	if err != nil {
		return Zero
	}
	return a
}

// Format renders a as "<whole>.<6-digit fraction>", e.g. "185.000000".
func Format(a Amount) string {
	return FormatUnits(a.int())
}

// FormatUnits renders a non-negative integer count of 1e-6 units with the
// same layout as Format.
func FormatUnits(n *big.Int) string {
	q, r := new(big.Int).QuoRem(n, unitBig, new(big.Int))
	frac := r.String()
	return q.String() + "." + strings.Repeat("0", Decimals-len(frac)) + frac
}

// FormatDisplay renders a for people: trailing zeros are dropped but at least
// two fractional digits are kept ("185.00", "0.125"). No rounding happens.
func FormatDisplay(a Amount) string {
	return DisplayUnits(a.int())
}

// DisplayUnits is FormatDisplay for a raw 1e-6 unit count.
func DisplayUnits(n *big.Int) string {
	d := decimal.NewFromBigInt(n, -Decimals)
	if d.Round(2).Equal(d) {
		return d.StringFixed(2)
	}
	return d.String()
}

// String implements fmt.Stringer using Format.
func (a Amount) String() string { return Format(a) }

// MarshalText encodes a with Format so cached and served values round-trip
// exactly through Parse.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(Format(a)), nil
}

// UnmarshalText decodes text produced by MarshalText.
func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
