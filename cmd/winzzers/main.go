// Command winzzers is the entry point for the winzzers betting core. It loads
// configuration, validates it, sets up signal handling, and either runs a
// long-lived mode (serve, watch) or a one-shot ledger command.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alanyoungcy/winzzers/internal/config"
)

const usage = `usage: winzzers [-config path] <command> [flags]

commands:
  serve          refresh markets and serve the HTTP + WebSocket API
  watch          refresh markets and feed the cache, store, bus and archive
  markets        refresh once and print the listed markets
  quote          price a stake at given odds or at a market outcome
  funds          print a wallet's collateral balance and allowance
  create-market  create a market and sync its metadata
  bet            place a bet
  approve        approve (or -revoke) collateral for the betting contract
  claim          claim a winning ticket
  encrypt-key    write an encrypted key file for wallet.encrypted_key_path
`

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file (empty for env only)")
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	name, rest := args[0], args[1:]

	logger := newLogger("info")
	slog.SetDefault(logger)

	// encrypt-key must work before any config exists.
	if name == "encrypt-key" {
		if err := runEncryptKey(rest); err != nil {
			exit(logger, err)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	if name == "serve" || name == "watch" {
		cfg.Mode = name
	}

	logger = newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Debug("configuration loaded",
		slog.String("command", name),
		slog.Any("config", config.RedactedConfig(cfg)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
		flag.Usage()
		os.Exit(2)
	}
	if err := cmd(ctx, cfg, logger, rest); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("winzzers stopped")
			return
		}
		exit(logger, err)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	// Logs go to stderr so command output on stdout stays machine readable.
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func exit(logger *slog.Logger, err error) {
	logger.Error("command failed", slog.String("error", err.Error()))
	fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
	os.Exit(1)
}
