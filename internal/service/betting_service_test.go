package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/winzzers/internal/domain"
	"github.com/alanyoungcy/winzzers/internal/money"
	"github.com/alanyoungcy/winzzers/internal/odds"
)

type bettingFixture struct {
	ledger  *fakeLedger
	wallet  *fakeWallet
	journal *fakeJournal
	sink    *fakeSink
	svc     *BettingService
}

func newBettingFixture() *bettingFixture {
	ledger := newFakeLedger()
	ledger.setSummary(1, summary(domain.MarketStateOpen, []string{"Yes", "No"}, 0))
	ledger.setSummary(2, summary(domain.MarketStateLocked, []string{"Yes", "No"}, 0))
	ledger.odds[1] = oddsTuple([]string{"Yes", "No"}, 2_000_000, 1_850_000)
	ledger.balance = money.MustParse("50")
	ledger.allowance = money.MustParse("50")

	f := &bettingFixture{
		ledger:  ledger,
		wallet:  &fakeWallet{from: testBettor},
		journal: &fakeJournal{},
		sink:    &fakeSink{},
	}
	f.svc = NewBettingService(ledger, newTestMarketService(ledger), BettingConfig{Contract: testContract}, nil, quietLogger()).
		WithWallet(f.wallet).
		WithJournal(f.journal).
		WithMetadata(f.sink)
	return f
}

func TestNewQuote(t *testing.T) {
	svc := newBettingFixture().svc

	q := svc.NewQuote("100", odds.New(1_850_000))
	if !q.Payout.Equal(money.NewAmount(185_000_000)) {
		t.Errorf("payout = %s, want 185.000000", q.Payout)
	}
	if !q.MinOdds.Equal(odds.New(1_757_500)) {
		t.Errorf("min odds = %s", q.MinOdds)
	}
	if q.PayoutDisplay != "185.00" || q.OddsDisplay != "1.85" {
		t.Errorf("display = %q %q", q.PayoutDisplay, q.OddsDisplay)
	}

	q = svc.NewQuote("not a number", odds.New(1_850_000))
	if !q.Stake.IsZero() || !q.Payout.IsZero() {
		t.Errorf("unparseable stake should quote as zero, got %+v", q)
	}
}

func TestQuoteMarket(t *testing.T) {
	svc := newBettingFixture().svc

	q, err := svc.QuoteMarket(context.Background(), 1, 1, "10")
	if err != nil {
		t.Fatal(err)
	}
	if !q.Payout.Equal(money.MustParse("18.5")) {
		t.Errorf("payout = %s", q.Payout)
	}

	if _, err := svc.QuoteMarket(context.Background(), 1, 2, "10"); !errors.Is(err, domain.ErrInvalidOutcome) {
		t.Errorf("outcome out of range: got %v", err)
	}
}

func TestPlaceBet(t *testing.T) {
	f := newBettingFixture()
	f.wallet.receipt = &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		TxHash: common.HexToHash("0xbe7"),
		Logs:   []*types.Log{betPlacedLog(42, 1)},
	}

	res, err := f.svc.PlaceBet(context.Background(), BetRequest{MarketID: 1, Outcome: 0, Stake: money.MustParse("10")})
	if err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}
	if !res.TicketKnown || res.TicketID != 42 {
		t.Errorf("ticket = %d (known=%v), want 42", res.TicketID, res.TicketKnown)
	}

	if len(f.wallet.bets) != 1 {
		t.Fatalf("submitted %d bets", len(f.wallet.bets))
	}
	bet := f.wallet.bets[0]
	if bet.MarketID != 1 || bet.OutcomeID != 0 || !bet.Amount.Equal(money.NewAmount(10_000_000)) {
		t.Errorf("bet params = %+v", bet)
	}
	if !bet.MinOdds.Equal(odds.New(1_900_000)) {
		t.Errorf("min odds = %s, want 95%% of 2.0", bet.MinOdds)
	}

	if len(f.journal.records) != 1 {
		t.Fatalf("journal has %d records", len(f.journal.records))
	}
	rec := f.journal.records[0]
	if rec.Method != "placeBet" || rec.Status != domain.WriteConfirmed || rec.From != testBettor.Hex() {
		t.Errorf("journal record = %+v", rec)
	}
}

func TestPlaceBetExplicitMinOdds(t *testing.T) {
	f := newBettingFixture()
	_, err := f.svc.PlaceBet(context.Background(), BetRequest{
		MarketID: 1, Outcome: 1, Stake: money.MustParse("1"), MinOdds: odds.New(1_500_000),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !f.wallet.bets[0].MinOdds.Equal(odds.New(1_500_000)) {
		t.Errorf("caller min odds replaced: %s", f.wallet.bets[0].MinOdds)
	}
}

func TestPlaceBetPrechecks(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *bettingFixture)
		req   BetRequest
		want  error
	}{
		{
			name: "zero stake",
			req:  BetRequest{MarketID: 1},
			want: domain.ErrInvalidAmount,
		},
		{
			name: "market not open",
			req:  BetRequest{MarketID: 2, Stake: money.MustParse("1")},
			want: domain.ErrMarketNotOpen,
		},
		{
			name: "outcome out of range",
			req:  BetRequest{MarketID: 1, Outcome: 2, Stake: money.MustParse("1")},
			want: domain.ErrInvalidOutcome,
		},
		{
			name: "negative outcome",
			req:  BetRequest{MarketID: 1, Outcome: -1, Stake: money.MustParse("1")},
			want: domain.ErrInvalidOutcome,
		},
		{
			name:  "balance too low",
			setup: func(f *bettingFixture) { f.ledger.balance = money.MustParse("0.5") },
			req:   BetRequest{MarketID: 1, Stake: money.MustParse("1")},
			want:  domain.ErrInsufficientBalance,
		},
		{
			name:  "allowance too low",
			setup: func(f *bettingFixture) { f.ledger.allowance = money.MustParse("0.999999") },
			req:   BetRequest{MarketID: 1, Stake: money.MustParse("1")},
			want:  domain.ErrNeedsApproval,
		},
		{
			name: "unknown market",
			req:  BetRequest{MarketID: 99, Stake: money.MustParse("1")},
			want: domain.ErrReadFailure,
		},
		{
			name:  "no wallet",
			setup: func(f *bettingFixture) { f.svc.wallet = nil },
			req:   BetRequest{MarketID: 1, Stake: money.MustParse("1")},
			want:  domain.ErrNoWallet,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBettingFixture()
			if tt.setup != nil {
				tt.setup(f)
			}
			_, err := f.svc.PlaceBet(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			if len(f.wallet.bets) != 0 {
				t.Error("rejected bet reached the wallet")
			}
		})
	}
}

func TestCreateMarketValidation(t *testing.T) {
	many := make([]string, MaxOutcomes+1)
	for i := range many {
		many[i] = "o"
	}
	fee := uint16(10_001)

	tests := []struct {
		name string
		req  CreateMarketRequest
		want string
	}{
		{"one outcome", CreateMarketRequest{Title: "t", Description: "d", Outcomes: []string{"Yes"}}, "need 2 to 20 outcomes"},
		{"too many outcomes", CreateMarketRequest{Title: "t", Description: "d", Outcomes: many}, "got 21"},
		{"blank outcome", CreateMarketRequest{Title: "t", Description: "d", Outcomes: []string{"Yes", "  "}}, "outcome 2 is empty"},
		{"missing title", CreateMarketRequest{Title: " ", Description: "d", Outcomes: []string{"Yes", "No"}}, "title is required"},
		{"missing description", CreateMarketRequest{Title: "t", Outcomes: []string{"Yes", "No"}}, "description is required"},
		{"fee too high", CreateMarketRequest{Title: "t", Description: "d", Outcomes: []string{"Yes", "No"}, CreatorFeeBps: &fee}, "exceeds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBettingFixture()
			_, err := f.svc.CreateMarket(context.Background(), tt.req)
			if !errors.Is(err, domain.ErrInvalidMarketParams) {
				t.Fatalf("got %v, want ErrInvalidMarketParams", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
			if len(f.wallet.creates) != 0 {
				t.Error("invalid market reached the wallet")
			}
		})
	}
}

func TestCreateMarketDefaultsAndMetadata(t *testing.T) {
	f := newBettingFixture()
	f.wallet.receipt = &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		TxHash: common.HexToHash("0xc0ffee"),
		Logs:   []*types.Log{marketCreatedLog(9)},
	}

	res, err := f.svc.CreateMarket(context.Background(), CreateMarketRequest{
		Title:       " Derby ",
		Description: "Who wins?",
		Tags:        []string{"football", " "},
		Outcomes:    []string{" Home", "Draw ", "Away"},
	})
	if err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}
	if !res.MarketIDKnown || res.MarketID != 9 || !res.MetadataSynced {
		t.Errorf("result = %+v", res)
	}

	p := f.wallet.creates[0]
	if strings.Join(p.OutcomeNames, ",") != "Home,Draw,Away" {
		t.Errorf("outcomes = %q", p.OutcomeNames)
	}
	if !p.VirtualLiquidityPerOutcome.Equal(money.NewAmount(1_000_000_000)) || p.CreatorFeeBps != 100 {
		t.Errorf("defaults not applied: %+v", p)
	}

	if len(f.sink.saved) != 1 {
		t.Fatalf("metadata saved %d times", len(f.sink.saved))
	}
	meta := f.sink.saved[0]
	if meta.MarketID != 9 || meta.Title != "Derby" || len(meta.Tags) != 1 || meta.CreatedAt == 0 {
		t.Errorf("metadata = %+v", meta)
	}
}

func TestCreateMarketMetadataFailureIsSwallowed(t *testing.T) {
	f := newBettingFixture()
	f.wallet.receipt = &types.Receipt{Status: types.ReceiptStatusSuccessful, Logs: []*types.Log{marketCreatedLog(3)}}
	f.sink.err = domain.ErrMetadataSync

	res, err := f.svc.CreateMarket(context.Background(), CreateMarketRequest{
		Title: "t", Description: "d", Outcomes: []string{"Yes", "No"},
	})
	if err != nil {
		t.Fatalf("metadata failure leaked: %v", err)
	}
	if res.MarketID != 3 || res.MetadataSynced {
		t.Errorf("result = %+v", res)
	}
}

func TestCreateMarketWithoutIDSkipsMetadata(t *testing.T) {
	f := newBettingFixture()

	res, err := f.svc.CreateMarket(context.Background(), CreateMarketRequest{
		Title: "t", Description: "d", Outcomes: []string{"Yes", "No"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.MarketIDKnown {
		t.Error("market id reported without a MarketCreated log")
	}
	if len(f.sink.saved) != 0 {
		t.Error("metadata synced for an unknown market id")
	}
}

func TestRejectedWriteIsJournaled(t *testing.T) {
	f := newBettingFixture()
	f.wallet.err = domain.ErrWriteRejected
	f.wallet.receipt = &types.Receipt{Status: types.ReceiptStatusFailed, TxHash: common.HexToHash("0xdead")}

	_, err := f.svc.Claim(context.Background(), 5)
	if !errors.Is(err, domain.ErrWriteRejected) {
		t.Fatalf("got %v", err)
	}
	rec := f.journal.records[0]
	if rec.Status != domain.WriteRejected || rec.TxHash != common.HexToHash("0xdead").Hex() || rec.Error == "" {
		t.Errorf("journal record = %+v", rec)
	}

	recent, err := f.svc.RecentWrites(context.Background(), 10)
	if err != nil || len(recent) != 1 {
		t.Errorf("RecentWrites = %v, %v", recent, err)
	}
}

func TestApproveTargetsContract(t *testing.T) {
	f := newBettingFixture()
	if _, err := f.svc.Approve(context.Background(), money.MustParse("100")); err != nil {
		t.Fatal(err)
	}
	if len(f.wallet.approvals) != 1 || f.wallet.approvals[0] != testContract {
		t.Errorf("approvals = %v", f.wallet.approvals)
	}
}

func TestApproveRejectsZero(t *testing.T) {
	for _, text := range []string{"", "0", "0.000000"} {
		f := newBettingFixture()
		_, err := f.svc.Approve(context.Background(), money.MustParse(text))
		if !errors.Is(err, domain.ErrInvalidAmount) {
			t.Errorf("Approve(%q) err = %v", text, err)
		}
		if len(f.wallet.approvals) != 0 || len(f.journal.records) != 0 {
			t.Errorf("Approve(%q) reached the ledger: approvals=%v records=%v", text, f.wallet.approvals, f.journal.records)
		}
	}
}

func TestRevokeIsExplicit(t *testing.T) {
	f := newBettingFixture()
	if _, err := f.svc.Revoke(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(f.wallet.approvals) != 1 || f.wallet.approvals[0] != testContract {
		t.Errorf("approvals = %v", f.wallet.approvals)
	}
	if len(f.journal.records) != 1 || f.journal.records[0].Method != "revoke" {
		t.Errorf("records = %+v", f.journal.records)
	}
}

func TestFunds(t *testing.T) {
	f := newBettingFixture()
	funds, err := f.svc.Funds(context.Background(), testBettor)
	if err != nil {
		t.Fatal(err)
	}
	if !funds.Balance.Equal(money.MustParse("50")) || !funds.Allowance.Equal(money.MustParse("50")) {
		t.Errorf("funds = %+v", funds)
	}
}
