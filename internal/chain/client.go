// Package chain talks to the betting contract and its collateral token over
// JSON-RPC. Reads return the ABI decoder's raw output so normalization stays
// in the market package; writes are signed locally and wait for a receipt.
package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"

	"github.com/alanyoungcy/winzzers/internal/domain"
	"github.com/alanyoungcy/winzzers/internal/money"
)

// ContractCaller executes read-only contract calls. *ethclient.Client
// satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ReadObserver is notified of every read outcome.
type ReadObserver interface {
	ObserveRead(method string, err error)
}

// ClientConfig holds the addresses and throttling used by Client.
type ClientConfig struct {
	Contract          common.Address
	Collateral        common.Address
	RequestsPerSecond float64
	Burst             int
}

// Client implements domain.LedgerReader.
type Client struct {
	caller     ContractCaller
	contract   common.Address
	collateral common.Address
	limiter    *rate.Limiter
	observer   ReadObserver
	logger     *slog.Logger
}

var _ domain.LedgerReader = (*Client)(nil)

// NewClient creates a Client on top of an existing caller.
func NewClient(caller ContractCaller, cfg ClientConfig, observer ReadObserver, logger *slog.Logger) *Client {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		caller:     caller,
		contract:   cfg.Contract,
		collateral: cfg.Collateral,
		limiter:    rate.NewLimiter(limit, burst),
		observer:   observer,
		logger:     logger.With(slog.String("component", "chain")),
	}
}

// Dial connects to an RPC endpoint and returns the raw ethclient alongside a
// Client reading through it.
func Dial(ctx context.Context, rpcURL string, cfg ClientConfig, observer ReadObserver, logger *slog.Logger) (*ethclient.Client, *Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, fmt.Errorf("chain: dial %s: %w", rpcURL, err)
	}
	return eth, NewClient(eth, cfg, observer, logger), nil
}

// GetMarketSummary returns the nine-element summary tuple of one market.
func (c *Client) GetMarketSummary(ctx context.Context, id uint64) ([]any, error) {
	return c.call(ctx, &winzzersABI, c.contract, "getMarketSummary", new(big.Int).SetUint64(id))
}

// GetMarketOdds returns the (odds, names) pair of one market.
func (c *Client) GetMarketOdds(ctx context.Context, id uint64) ([]any, error) {
	return c.call(ctx, &winzzersABI, c.contract, "getMarketOdds", new(big.Int).SetUint64(id))
}

// MarketCounter returns the highest market id assigned so far.
func (c *Client) MarketCounter(ctx context.Context) (uint64, error) {
	out, err := c.call(ctx, &winzzersABI, c.contract, "marketCounter")
	if err != nil {
		return 0, err
	}
	n, err := singleUint(out)
	if err != nil {
		return 0, fmt.Errorf("chain: marketCounter: %w", err)
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("chain: marketCounter %s overflows uint64: %w", n, domain.ErrMalformedMarketData)
	}
	return n.Uint64(), nil
}

// BalanceOf returns the collateral balance of owner.
func (c *Client) BalanceOf(ctx context.Context, owner common.Address) (money.Amount, error) {
	out, err := c.call(ctx, &erc20ABI, c.collateral, "balanceOf", owner)
	if err != nil {
		return money.Zero, err
	}
	return amountResult("balanceOf", out)
}

// Allowance returns how much collateral spender may move on behalf of owner.
func (c *Client) Allowance(ctx context.Context, owner, spender common.Address) (money.Amount, error) {
	out, err := c.call(ctx, &erc20ABI, c.collateral, "allowance", owner, spender)
	if err != nil {
		return money.Zero, err
	}
	return amountResult("allowance", out)
}

func (c *Client) call(ctx context.Context, parsed *abi.ABI, to common.Address, method string, args ...any) (out []any, err error) {
	defer func() {
		if c.observer != nil {
			c.observer.ObserveRead(method, err)
		}
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("chain: %s: %w: %w", method, domain.ErrReadFailure, err)
	}

	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("chain: pack %s: %w", method, err)
	}

	raw, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		c.logger.WarnContext(ctx, "contract call failed",
			slog.String("method", method),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("chain: %s: %w: %w", method, domain.ErrReadFailure, err)
	}

	out, err = parsed.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("chain: unpack %s: %w: %w", method, domain.ErrMalformedMarketData, err)
	}
	return out, nil
}

func singleUint(out []any) (*big.Int, error) {
	if len(out) != 1 {
		return nil, fmt.Errorf("expected 1 value, got %d: %w", len(out), domain.ErrMalformedMarketData)
	}
	n, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("expected uint256, got %T: %w", out[0], domain.ErrMalformedMarketData)
	}
	return n, nil
}

func amountResult(method string, out []any) (money.Amount, error) {
	n, err := singleUint(out)
	if err != nil {
		return money.Zero, fmt.Errorf("chain: %s: %w", method, err)
	}
	a, err := money.FromBig(n)
	if err != nil {
		return money.Zero, fmt.Errorf("chain: %s: %w", method, err)
	}
	return a, nil
}
