package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"

	s3blob "github.com/alanyoungcy/winzzers/internal/blob/s3"
	"github.com/alanyoungcy/winzzers/internal/cache/redis"
	"github.com/alanyoungcy/winzzers/internal/chain"
	"github.com/alanyoungcy/winzzers/internal/config"
	"github.com/alanyoungcy/winzzers/internal/crypto"
	"github.com/alanyoungcy/winzzers/internal/domain"
	"github.com/alanyoungcy/winzzers/internal/metadata"
	"github.com/alanyoungcy/winzzers/internal/metrics"
	"github.com/alanyoungcy/winzzers/internal/server/handler"
	"github.com/alanyoungcy/winzzers/internal/store/postgres"
)

// Dependencies bundles every concrete adapter the modes and commands need.
// Optional backends are nil when disabled in the configuration.
type Dependencies struct {
	Metrics *metrics.Metrics

	// Ledger
	Eth    *ethclient.Client
	Reader *chain.Client
	Writer *chain.Writer

	// Redis
	SnapshotCache domain.SnapshotCache
	MetadataStore domain.MetadataStore
	RateLimiter   domain.RateLimiter
	LockManager   domain.LockManager
	SignalBus     domain.SignalBus

	// Postgres
	MarketStore  domain.MarketStore
	WriteJournal domain.WriteJournal

	// Blob storage
	Archiver domain.SnapshotArchiver

	// Metadata
	MetadataSink domain.MetadataSink
	Signer       *crypto.RequestSigner

	// Checks feed the health endpoint, one per connected backend.
	Checks map[string]handler.Check
}

// WireOptions select the parts of the graph a caller needs.
type WireOptions struct {
	// Wallet loads the signing key and builds a Writer.
	Wallet bool
	// Backends connects Redis, Postgres and S3 when enabled in the config.
	Backends bool
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, opts WireOptions, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(stage string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %s: %w", stage, err)
	}

	deps := &Dependencies{
		Metrics: metrics.New(),
		Checks:  make(map[string]handler.Check),
	}

	// --- Chain ---
	eth, reader, err := chain.Dial(ctx, cfg.Chain.RPCURL, chain.ClientConfig{
		Contract:          cfg.Chain.ContractAddress(),
		Collateral:        cfg.Chain.CollateralAddress(),
		RequestsPerSecond: cfg.Chain.RequestsPerSecond,
		Burst:             cfg.Chain.Burst,
	}, deps.Metrics, logger)
	if err != nil {
		return fail("chain", err)
	}
	closers = append(closers, eth.Close)
	deps.Eth, deps.Reader = eth, reader
	deps.Checks["chain"] = func(ctx context.Context) error {
		_, err := eth.BlockNumber(ctx)
		return err
	}

	if opts.Backends {
		if err := wireBackends(ctx, cfg, deps, &closers, logger); err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	// --- Metadata ---
	if cfg.Metadata.Secret != "" {
		deps.Signer = crypto.NewRequestSigner(cfg.Metadata.Secret, cfg.Metadata.MaxSkew.Duration)
	}
	switch {
	case cfg.Metadata.BaseURL != "":
		mopts := []metadata.Option{}
		if deps.Signer != nil {
			mopts = append(mopts, metadata.WithSigner(deps.Signer))
		}
		deps.MetadataSink = metadata.NewClient(cfg.Metadata.BaseURL, mopts...)
	case deps.MetadataStore != nil:
		deps.MetadataSink = deps.MetadataStore
	}

	// --- Wallet ---
	if opts.Wallet {
		w, err := wireWriter(cfg, deps, logger)
		if err != nil {
			return fail("wallet", err)
		}
		deps.Writer = w
	}

	return deps, cleanup, nil
}

func wireBackends(ctx context.Context, cfg *config.Config, deps *Dependencies, closers *[]func(), logger *slog.Logger) error {
	// --- Redis ---
	if cfg.Redis.Enabled {
		rc, err := redis.New(ctx, redis.ClientConfig{
			URL:        cfg.Redis.URL,
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fmt.Errorf("wire: redis: %w", err)
		}
		*closers = append(*closers, func() { _ = rc.Close() })

		deps.SnapshotCache = redis.NewSnapshotCache(rc, cfg.Redis.SnapshotTTL.Duration)
		deps.MetadataStore = redis.NewMetadataStore(rc)
		deps.RateLimiter = redis.NewRateLimiter(rc)
		deps.LockManager = redis.NewLockManager(rc)
		deps.SignalBus = redis.NewSignalBus(rc)
		deps.Checks["redis"] = rc.Ping
	} else {
		logger.Warn("redis disabled: no snapshot cache, metadata store or shared rate limits")
	}

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pg, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fmt.Errorf("wire: postgres: %w", err)
		}
		*closers = append(*closers, pg.Close)

		if cfg.Postgres.RunMigrations {
			if err := pg.RunMigrations(ctx); err != nil {
				return fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		deps.MarketStore = postgres.NewMarketStore(pg.Pool())
		deps.WriteJournal = postgres.NewWriteJournal(pg.Pool())
		deps.Checks["postgres"] = pg.Ping
	}

	// --- S3 ---
	if cfg.S3.Enabled {
		sc, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(sc), cfg.S3.Prefix)
		deps.Checks["s3"] = sc.Health
	}
	return nil
}

func wireWriter(cfg *config.Config, deps *Dependencies, logger *slog.Logger) (*chain.Writer, error) {
	if !cfg.Wallet.Configured() {
		return nil, domain.ErrNoWallet
	}
	key, err := crypto.LoadKey(crypto.KeySource{
		RawKey:   cfg.Wallet.PrivateKey,
		KeyFile:  cfg.Wallet.EncryptedKeyPath,
		Password: cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return nil, err
	}
	sender, err := chain.NewSender(deps.Eth, key, chain.SenderConfig{
		ChainID:     big.NewInt(cfg.Chain.ChainID),
		MineTimeout: cfg.Chain.MineTimeout.Duration,
	}, logger)
	if err != nil {
		return nil, err
	}
	w := chain.NewWriter(sender, chain.WriterConfig{
		Contract:   cfg.Chain.ContractAddress(),
		Collateral: cfg.Chain.CollateralAddress(),
		Locks:      deps.LockManager,
		LockTTL:    cfg.Chain.MineTimeout.Duration + 30*time.Second,
	}, deps.Metrics, logger)
	logger.Info("wallet loaded", slog.String("address", w.From().Hex()))
	return w, nil
}
