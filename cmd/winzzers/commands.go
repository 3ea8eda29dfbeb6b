package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/winzzers/internal/app"
	"github.com/alanyoungcy/winzzers/internal/config"
	"github.com/alanyoungcy/winzzers/internal/crypto"
	"github.com/alanyoungcy/winzzers/internal/money"
	"github.com/alanyoungcy/winzzers/internal/odds"
	"github.com/alanyoungcy/winzzers/internal/service"
)

type command func(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) error

var commands = map[string]command{
	"serve":         runMode,
	"watch":         runMode,
	"markets":       runMarkets,
	"quote":         runQuote,
	"funds":         runFunds,
	"create-market": runCreateMarket,
	"bet":           runBet,
	"approve":       runApprove,
	"claim":         runClaim,
}

var stdout io.Writer = os.Stdout

func printJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// open wires the app for a one-shot command.
func open(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts app.WireOptions) (*app.App, error) {
	a := app.New(cfg, logger)
	if err := a.Init(ctx, opts); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func runMode(ctx context.Context, cfg *config.Config, logger *slog.Logger, _ []string) error {
	a := app.New(cfg, logger)
	defer a.Close()
	return a.Run(ctx)
}

func runMarkets(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("markets", flag.ContinueOnError)
	all := fs.Bool("all", false, "include markets that are not open")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := open(ctx, cfg, logger, app.WireOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.Markets().Refresh(ctx); err != nil {
		return err
	}
	if *all {
		return printJSON(a.Markets().All())
	}
	return printJSON(a.Markets().Listed())
}

func runQuote(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("quote", flag.ContinueOnError)
	stake := fs.String("stake", "", "stake in collateral units, e.g. 100 or 12.5")
	oddsText := fs.String("odds", "", "decimal odds, e.g. 1.85 (skips the ledger)")
	marketID := fs.Uint64("market", 0, "market id to read odds from")
	outcome := fs.Int("outcome", -1, "outcome index")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *oddsText != "" {
		var o odds.Odds
		if err := o.UnmarshalText([]byte(*oddsText)); err != nil {
			return err
		}
		offline := service.NewBettingService(nil, nil, service.BettingConfig{}, nil, logger).
			WithSlippage(uint32(cfg.Market.SlippageBps))
		return printJSON(offline.NewQuote(*stake, o))
	}
	if *marketID == 0 || *outcome < 0 {
		return errors.New("quote: -odds or both -market and -outcome are required")
	}

	a, err := open(ctx, cfg, logger, app.WireOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	q, err := a.Betting().QuoteMarket(ctx, *marketID, *outcome, *stake)
	if err != nil {
		return err
	}
	return printJSON(q)
}

func runFunds(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("funds", flag.ContinueOnError)
	owner := fs.String("owner", "", "wallet address (defaults to the configured wallet)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	addr, err := resolveOwner(*owner, cfg)
	if err != nil {
		return err
	}

	a, err := open(ctx, cfg, logger, app.WireOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	f, err := a.Betting().Funds(ctx, addr)
	if err != nil {
		return err
	}
	return printJSON(f)
}

func resolveOwner(owner string, cfg *config.Config) (common.Address, error) {
	if owner != "" {
		if !common.IsHexAddress(owner) {
			return common.Address{}, fmt.Errorf("funds: %q is not an address", owner)
		}
		return common.HexToAddress(owner), nil
	}
	key, err := crypto.LoadKey(crypto.KeySource{
		RawKey:   cfg.Wallet.PrivateKey,
		KeyFile:  cfg.Wallet.EncryptedKeyPath,
		Password: cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return common.Address{}, fmt.Errorf("funds: -owner not set: %w", err)
	}
	hexAddr, err := crypto.AddressOf(key)
	if err != nil {
		return common.Address{}, err
	}
	return common.HexToAddress(hexAddr), nil
}

// writer wires the wallet and every enabled backend so writes are journaled
// and metadata is synced.
func writer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app.App, error) {
	return open(ctx, cfg, logger, app.WireOptions{Wallet: true, Backends: true})
}

func runCreateMarket(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("create-market", flag.ContinueOnError)
	title := fs.String("title", "", "market title")
	description := fs.String("description", "", "market description")
	tags := fs.String("tags", "", "comma-separated tags")
	outcomes := fs.String("outcomes", "Yes,No", "comma-separated outcome names")
	liquidity := fs.String("liquidity", "", "virtual liquidity per outcome (default from config)")
	fee := fs.Int("fee-bps", -1, "creator fee in basis points (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := service.CreateMarketRequest{
		Title:       *title,
		Description: *description,
		Tags:        splitList(*tags),
		Outcomes:    strings.Split(*outcomes, ","),
	}
	if *liquidity != "" {
		amt, err := money.Parse(*liquidity)
		if err != nil {
			return fmt.Errorf("create-market: liquidity: %w", err)
		}
		req.VirtualLiquidityPerOutcome = amt
	}
	if *fee >= 0 {
		if *fee > 10_000 {
			return fmt.Errorf("create-market: fee-bps %d exceeds 10000", *fee)
		}
		bps := uint16(*fee)
		req.CreatorFeeBps = &bps
	}

	a, err := writer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Betting().CreateMarket(ctx, req)
	if err != nil {
		return err
	}
	return printJSON(res)
}

func runBet(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("bet", flag.ContinueOnError)
	marketID := fs.Uint64("market", 0, "market id")
	outcome := fs.Int("outcome", -1, "outcome index")
	stake := fs.String("stake", "", "stake in collateral units")
	minOdds := fs.String("min-odds", "", "minimum accepted odds (default: current odds less slippage)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *marketID == 0 || *outcome < 0 {
		return errors.New("bet: -market and -outcome are required")
	}

	amt, err := money.Parse(*stake)
	if err != nil {
		return fmt.Errorf("bet: stake: %w", err)
	}
	req := service.BetRequest{MarketID: *marketID, Outcome: *outcome, Stake: amt}
	if *minOdds != "" {
		if err := req.MinOdds.UnmarshalText([]byte(*minOdds)); err != nil {
			return fmt.Errorf("bet: min-odds: %w", err)
		}
	}

	a, err := writer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Betting().PlaceBet(ctx, req)
	if err != nil {
		return err
	}
	return printJSON(res)
}

func runApprove(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("approve", flag.ContinueOnError)
	amount := fs.String("amount", "", "collateral amount to approve")
	revoke := fs.Bool("revoke", false, "set the allowance back to zero")
	if err := fs.Parse(args); err != nil {
		return err
	}
	amt, err := approveAmount(*amount, *revoke)
	if err != nil {
		return err
	}

	a, err := writer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var hash common.Hash
	if *revoke {
		hash, err = a.Betting().Revoke(ctx)
	} else {
		hash, err = a.Betting().Approve(ctx, amt)
	}
	if err != nil {
		return err
	}
	return printJSON(map[string]string{"txHash": hash.Hex(), "amount": money.Format(amt)})
}

// approveAmount validates the approve flags. A zero allowance is only sent
// with -revoke.
func approveAmount(amount string, revoke bool) (money.Amount, error) {
	if revoke {
		if amount != "" {
			return money.Zero, errors.New("approve: -amount and -revoke are exclusive")
		}
		return money.Zero, nil
	}
	if strings.TrimSpace(amount) == "" {
		return money.Zero, errors.New("approve: -amount is required (use -revoke to clear the allowance)")
	}
	amt, err := money.Parse(amount)
	if err != nil {
		return money.Zero, fmt.Errorf("approve: amount: %w", err)
	}
	if amt.IsZero() {
		return money.Zero, fmt.Errorf("approve: amount must be positive (use -revoke to clear the allowance): %w", money.ErrInvalidAmount)
	}
	return amt, nil
}

func runClaim(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("claim", flag.ContinueOnError)
	ticket := fs.Uint64("ticket", 0, "ticket id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *ticket == 0 {
		return errors.New("claim: -ticket is required")
	}

	a, err := writer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	hash, err := a.Betting().Claim(ctx, *ticket)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"txHash": hash.Hex(), "ticketId": *ticket})
}

func runEncryptKey(args []string) error {
	fs := flag.NewFlagSet("encrypt-key", flag.ContinueOnError)
	out := fs.String("out", "wallet.json", "key file to write")
	if err := fs.Parse(args); err != nil {
		return err
	}
	key := os.Getenv("WINZZERS_WALLET_PRIVATE_KEY")
	password := os.Getenv("WINZZERS_WALLET_KEY_PASSWORD")
	if key == "" || password == "" {
		return errors.New("encrypt-key: set WINZZERS_WALLET_PRIVATE_KEY and WINZZERS_WALLET_KEY_PASSWORD")
	}

	data, err := crypto.EncryptKey(key, password)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, data, 0o600); err != nil {
		return fmt.Errorf("encrypt-key: %w", err)
	}
	addr, err := crypto.AddressOf(key)
	if err != nil {
		return err
	}
	return printJSON(map[string]string{"path": *out, "address": addr})
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
