package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/winzzers/internal/aggregator"
	"github.com/alanyoungcy/winzzers/internal/domain"
	"github.com/alanyoungcy/winzzers/internal/money"
)

var (
	testContract = common.HexToAddress("0x00000000000000000000000000000000000b3771")
	testBettor   = common.HexToAddress("0x6e2456c991fc5d2d0835d4d75558e7ddf28d6956")
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// summary builds a getMarketSummary tuple the way the ABI decoder returns it.
func summary(state domain.MarketState, names []string, staked int64) []any {
	return []any{
		testBettor,
		uint8(state),
		uint16(100),
		big.NewInt(1_000_000_000),
		uint8(len(names)),
		names,
		big.NewInt(staked),
		uint8(0),
		big.NewInt(staked),
	}
}

func oddsTuple(names []string, values ...int64) []any {
	os := make([]*big.Int, len(values))
	for i, v := range values {
		os[i] = big.NewInt(v)
	}
	return []any{os, names}
}

type fakeLedger struct {
	mu         sync.Mutex
	counter    uint64
	counterErr error
	summaries  map[uint64][]any
	failing    map[uint64]bool
	odds       map[uint64][]any
	balance    money.Amount
	allowance  money.Amount
	reads      int

	// gate, when set, holds the next summary read until closed. The read's
	// result is captured before it blocks.
	gate    chan struct{}
	entered chan struct{}
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		summaries: make(map[uint64][]any),
		failing:   make(map[uint64]bool),
		odds:      make(map[uint64][]any),
	}
}

func (f *fakeLedger) setSummary(id uint64, raw []any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries[id] = raw
	if id > f.counter {
		f.counter = id
	}
}

func (f *fakeLedger) GetMarketSummary(_ context.Context, id uint64) ([]any, error) {
	f.mu.Lock()
	f.reads++
	raw, ok := f.summaries[id]
	fail := f.failing[id]
	gate, entered := f.gate, f.entered
	f.gate = nil
	f.mu.Unlock()

	if gate != nil {
		entered <- struct{}{}
		<-gate
	}
	if fail || !ok {
		return nil, fmt.Errorf("summary %d: %w", id, domain.ErrReadFailure)
	}
	return raw, nil
}

func (f *fakeLedger) GetMarketOdds(_ context.Context, id uint64) ([]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.odds[id]
	if !ok {
		return nil, fmt.Errorf("odds %d: %w", id, domain.ErrReadFailure)
	}
	return raw, nil
}

func (f *fakeLedger) MarketCounter(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counter, f.counterErr
}

func (f *fakeLedger) BalanceOf(context.Context, common.Address) (money.Amount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balance, nil
}

func (f *fakeLedger) Allowance(_ context.Context, _, spender common.Address) (money.Amount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if spender != testContract {
		return money.Amount{}, nil
	}
	return f.allowance, nil
}

func (f *fakeLedger) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[uint64]domain.Market
	sets    int
}

func newFakeCache() *fakeCache { return &fakeCache{entries: make(map[uint64]domain.Market)} }

func (c *fakeCache) Set(_ context.Context, m domain.Market) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[m.ID] = m
	c.sets++
	return nil
}

func (c *fakeCache) SetMany(ctx context.Context, ms []domain.Market) error {
	for _, m := range ms {
		_ = c.Set(ctx, m)
	}
	return nil
}

func (c *fakeCache) Get(_ context.Context, id uint64) (domain.Market, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.entries[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (c *fakeCache) Invalidate(_ context.Context, id uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	return nil
}

type fakeStore struct {
	domain.MarketStore
	batches [][]domain.Market
	err     error
}

func (s *fakeStore) UpsertBatch(_ context.Context, ms []domain.Market) error {
	s.batches = append(s.batches, ms)
	return s.err
}

type published struct {
	channel string
	payload []byte
}

type fakeBus struct {
	msgs []published
}

func (b *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.msgs = append(b.msgs, published{channel, payload})
	return nil
}

func (b *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not supported")
}

type fakeArchiver struct {
	calls [][]domain.Market
}

func (a *fakeArchiver) Archive(_ context.Context, ms []domain.Market, at time.Time) (string, error) {
	a.calls = append(a.calls, ms)
	return "archive/" + at.UTC().Format("150405"), nil
}

type fakeWallet struct {
	from    common.Address
	receipt *types.Receipt
	err     error

	bets      []domain.PlaceBetParams
	creates   []domain.CreateMarketParams
	approvals []common.Address
	claims    []uint64
}

func (w *fakeWallet) From() common.Address { return w.from }

func (w *fakeWallet) result() (*types.Receipt, error) {
	if w.err != nil {
		return w.receipt, w.err
	}
	if w.receipt == nil {
		return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: common.HexToHash("0x01")}, nil
	}
	return w.receipt, nil
}

func (w *fakeWallet) CreateMarket(_ context.Context, p domain.CreateMarketParams) (*types.Receipt, error) {
	w.creates = append(w.creates, p)
	return w.result()
}

func (w *fakeWallet) PlaceBet(_ context.Context, p domain.PlaceBetParams) (*types.Receipt, error) {
	w.bets = append(w.bets, p)
	return w.result()
}

func (w *fakeWallet) Approve(_ context.Context, spender common.Address, _ money.Amount) (*types.Receipt, error) {
	w.approvals = append(w.approvals, spender)
	return w.result()
}

func (w *fakeWallet) Claim(_ context.Context, ticketID uint64) (*types.Receipt, error) {
	w.claims = append(w.claims, ticketID)
	return w.result()
}

type fakeJournal struct {
	records []domain.WriteRecord
}

func (j *fakeJournal) Record(_ context.Context, rec domain.WriteRecord) error {
	j.records = append(j.records, rec)
	return nil
}

func (j *fakeJournal) Recent(_ context.Context, limit int) ([]domain.WriteRecord, error) {
	if limit > len(j.records) {
		limit = len(j.records)
	}
	return j.records[:limit], nil
}

type fakeSink struct {
	saved []domain.MarketMetadata
	err   error
}

func (s *fakeSink) SaveMetadata(_ context.Context, meta domain.MarketMetadata) error {
	s.saved = append(s.saved, meta)
	return s.err
}

func uintTopic(n uint64) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(n))
}

func marketCreatedLog(id uint64) *types.Log {
	return &types.Log{
		Address: testContract,
		Topics: []common.Hash{
			crypto.Keccak256Hash([]byte("MarketCreated(uint256,address,uint256)")),
			uintTopic(id),
			common.BytesToHash(testBettor.Bytes()),
		},
	}
}

func betPlacedLog(ticketID, marketID uint64) *types.Log {
	return &types.Log{
		Address: testContract,
		Topics: []common.Hash{
			crypto.Keccak256Hash([]byte("BetPlaced(uint256,uint256,address,uint8,uint256,uint256)")),
			uintTopic(ticketID),
			uintTopic(marketID),
			common.BytesToHash(testBettor.Bytes()),
		},
	}
}

func newTestMarketService(ledger *fakeLedger) *MarketService {
	logger := quietLogger()
	return NewMarketService(ledger, aggregator.New(ledger, logger), nil, logger)
}
