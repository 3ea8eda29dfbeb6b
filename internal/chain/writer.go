package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/winzzers/internal/domain"
	"github.com/alanyoungcy/winzzers/internal/money"
)

const defaultWriteLockTTL = 5 * time.Minute

// Transactor submits one call and waits for its receipt. *Sender implements it.
type Transactor interface {
	From() common.Address
	Transact(ctx context.Context, to common.Address, data []byte) (*types.Receipt, error)
}

// WriteObserver is notified of every write outcome.
type WriteObserver interface {
	ObserveWrite(method string, err error)
}

// WriterConfig holds the contract addresses and the optional shared lock.
type WriterConfig struct {
	Contract   common.Address
	Collateral common.Address
	// Locks, when set, serializes writes from the same address across
	// processes. Writes within one process are always serialized.
	Locks   domain.LockManager
	LockTTL time.Duration
}

// Writer implements domain.LedgerWriter. At most one write per Writer is in
// flight at a time; a second concurrent write fails fast with
// ErrWriteInFlight instead of queueing.
type Writer struct {
	tx         Transactor
	contract   common.Address
	collateral common.Address
	locks      domain.LockManager
	lockTTL    time.Duration
	observer   WriteObserver
	logger     *slog.Logger

	inFlight atomic.Bool
}

var _ domain.LedgerWriter = (*Writer)(nil)

// NewWriter creates a Writer.
func NewWriter(tx Transactor, cfg WriterConfig, observer WriteObserver, logger *slog.Logger) *Writer {
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = defaultWriteLockTTL
	}
	return &Writer{
		tx:         tx,
		contract:   cfg.Contract,
		collateral: cfg.Collateral,
		locks:      cfg.Locks,
		lockTTL:    ttl,
		observer:   observer,
		logger:     logger.With(slog.String("component", "chain_writer")),
	}
}

// From returns the address writes are sent from.
func (w *Writer) From() common.Address { return w.tx.From() }

// CreateMarket submits createMarket.
func (w *Writer) CreateMarket(ctx context.Context, p domain.CreateMarketParams) (*types.Receipt, error) {
	return w.submit(ctx, &winzzersABI, w.contract, "createMarket",
		p.OutcomeNames,
		p.VirtualLiquidityPerOutcome.Big(),
		p.CreatorFeeBps,
	)
}

// PlaceBet submits placeBet.
func (w *Writer) PlaceBet(ctx context.Context, p domain.PlaceBetParams) (*types.Receipt, error) {
	return w.submit(ctx, &winzzersABI, w.contract, "placeBet",
		new(big.Int).SetUint64(p.MarketID),
		p.OutcomeID,
		p.Amount.Big(),
		p.MinOdds.Big(),
	)
}

// Approve lets spender move amount of collateral.
func (w *Writer) Approve(ctx context.Context, spender common.Address, amount money.Amount) (*types.Receipt, error) {
	return w.submit(ctx, &erc20ABI, w.collateral, "approve", spender, amount.Big())
}

// Claim submits claim for a winning or refundable ticket.
func (w *Writer) Claim(ctx context.Context, ticketID uint64) (*types.Receipt, error) {
	return w.submit(ctx, &winzzersABI, w.contract, "claim", new(big.Int).SetUint64(ticketID))
}

func (w *Writer) submit(ctx context.Context, parsed *abi.ABI, to common.Address, method string, args ...any) (receipt *types.Receipt, err error) {
	if !w.inFlight.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("chain: %s: %w", method, domain.ErrWriteInFlight)
	}
	defer w.inFlight.Store(false)

	defer func() {
		if w.observer != nil {
			w.observer.ObserveWrite(method, err)
		}
	}()

	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("chain: pack %s: %w", method, err)
	}

	if w.locks != nil {
		unlock, err := w.locks.Acquire(ctx, "write:"+w.tx.From().Hex(), w.lockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				return nil, fmt.Errorf("chain: %s: %w", method, domain.ErrWriteInFlight)
			}
			return nil, fmt.Errorf("chain: %s: acquire write lock: %w", method, err)
		}
		defer unlock()
	}

	receipt, err = w.tx.Transact(ctx, to, data)
	if err != nil {
		w.logger.WarnContext(ctx, "write failed",
			slog.String("method", method),
			slog.String("error", err.Error()),
		)
		return receipt, err
	}

	w.logger.InfoContext(ctx, "write confirmed",
		slog.String("method", method),
		slog.String("tx_hash", receipt.TxHash.Hex()),
		slog.String("block", receipt.BlockNumber.String()),
	)
	return receipt, nil
}
