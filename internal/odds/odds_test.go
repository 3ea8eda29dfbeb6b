package odds

import (
	"math/big"
	"testing"

	"github.com/alanyoungcy/winzzers/internal/money"
)

func TestPayout(t *testing.T) {
	tests := []struct {
		name  string
		stake uint64
		odds  uint64
		want  uint64
	}{
		{"100 at 1.85x", 100_000_000, 1_850_000, 185_000_000},
		{"zero stake", 0, 1_850_000, 0},
		{"zero odds", 100_000_000, 0, 0},
		{"even odds", 5_000_000, 1_000_000, 5_000_000},
		{"truncates remainder", 1, 1_500_000, 1},
		{"truncates below one unit", 1, 999_999, 0},
		{"odd product", 333_333, 3_333_333, 1_111_109},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Payout(money.NewAmount(tt.stake), New(tt.odds))
			if !got.Equal(money.NewAmount(tt.want)) {
				t.Errorf("Payout(%d, %d) = %s, want %d", tt.stake, tt.odds, got.Big(), tt.want)
			}
		})
	}
}

func TestPayoutLargeValues(t *testing.T) {
	// Stakes beyond uint64 must not overflow.
	stake, _ := money.FromBig(new(big.Int).Lsh(big.NewInt(1), 100))
	got := Payout(stake, New(2_000_000))
	want := new(big.Int).Lsh(big.NewInt(1), 101)
	if got.Big().Cmp(want) != 0 {
		t.Errorf("got %s, want %s", got.Big(), want)
	}
}

func FuzzPayoutNeverRoundsUp(f *testing.F) {
	f.Add(uint64(100_000_000), uint64(1_850_000))
	f.Add(uint64(1), uint64(1))
	f.Add(uint64(7), uint64(333_333))

	f.Fuzz(func(t *testing.T, stake, o uint64) {
		got := Payout(money.NewAmount(stake), New(o)).Big()

		product := new(big.Int).Mul(new(big.Int).SetUint64(stake), new(big.Int).SetUint64(o))
		// got * D <= product < (got + 1) * D
		lower := new(big.Int).Mul(got, big.NewInt(Denominator))
		upper := new(big.Int).Mul(new(big.Int).Add(got, big.NewInt(1)), big.NewInt(Denominator))
		if lower.Cmp(product) > 0 || product.Cmp(upper) >= 0 {
			t.Fatalf("Payout(%d, %d) = %s is not the floor of %s / %d", stake, o, got, product, Denominator)
		}
	})
}

func TestMinOdds(t *testing.T) {
	tests := []struct {
		in, want uint64
	}{
		{2_000_000, 1_900_000},
		{1_850_000, 1_757_500},
		{1_000_001, 950_000},
		{0, 0},
		{19, 18},
	}
	for _, tt := range tests {
		if got := MinOdds(New(tt.in)); !got.Equal(New(tt.want)) {
			t.Errorf("MinOdds(%d) = %s, want %d", tt.in, got.Big(), tt.want)
		}
	}
}

func TestMinOddsWithSlippage(t *testing.T) {
	if got := MinOddsWithSlippage(New(2_000_000), 0); !got.Equal(New(2_000_000)) {
		t.Errorf("zero slippage: got %s", got.Big())
	}
	if got := MinOddsWithSlippage(New(2_000_000), 100); !got.Equal(New(1_980_000)) {
		t.Errorf("1%% slippage: got %s", got.Big())
	}
	if got := MinOddsWithSlippage(New(2_000_000), 20_000); !got.IsZero() {
		t.Errorf("clamped slippage: got %s", got.Big())
	}
}

func TestFormat(t *testing.T) {
	if got := Format(New(1_850_000)); got != "1.850000" {
		t.Errorf("Format = %q", got)
	}
	if got := FormatMultiplier(New(1_850_000)); got != "1.85" {
		t.Errorf("FormatMultiplier = %q", got)
	}
	if got := FormatMultiplier(New(2_125_000)); got != "2.125" {
		t.Errorf("FormatMultiplier = %q", got)
	}
}

func TestImpliedProbabilityBps(t *testing.T) {
	tests := []struct {
		odds uint64
		want uint64
	}{
		{2_000_000, 5_000},
		{1_000_000, 10_000},
		{3_000_000, 3_333},
		{0, 0},
	}
	for _, tt := range tests {
		if got := ImpliedProbabilityBps(New(tt.odds)); got != tt.want {
			t.Errorf("ImpliedProbabilityBps(%d) = %d, want %d", tt.odds, got, tt.want)
		}
	}
}

func TestOddsTextRoundTrip(t *testing.T) {
	o := New(1_757_500)
	text, _ := o.MarshalText()
	var back Odds
	if err := back.UnmarshalText(text); err != nil {
		t.Fatal(err)
	}
	if !back.Equal(o) {
		t.Errorf("got %s, want %s", back, o)
	}
}
