// Package config defines the top-level configuration for the winzzers betting
// core and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/winzzers/internal/money"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by WINZZERS_* environment variables.
type Config struct {
	Chain    ChainConfig    `toml:"chain"`
	Wallet   WalletConfig   `toml:"wallet"`
	Market   MarketConfig   `toml:"market"`
	Metadata MetadataConfig `toml:"metadata"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// ChainConfig holds the RPC endpoint, contract addresses and read pacing.
type ChainConfig struct {
	RPCURL            string   `toml:"rpc_url"`
	ChainID           int64    `toml:"chain_id"`
	Contract          string   `toml:"contract"`
	Collateral        string   `toml:"collateral"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	Burst             int      `toml:"burst"`
	FetchConcurrency  int      `toml:"fetch_concurrency"`
	PollInterval      duration `toml:"poll_interval"`
	MineTimeout       duration `toml:"mine_timeout"`
}

// WalletConfig holds the signing key used for writes. Reads need no wallet.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// Configured reports whether any key source is set.
func (w WalletConfig) Configured() bool {
	return w.PrivateKey != "" || w.EncryptedKeyPath != ""
}

// MarketConfig holds the defaults applied to new markets and bets.
type MarketConfig struct {
	// VirtualLiquidityPerOutcome is a decimal collateral amount, e.g. "1000".
	VirtualLiquidityPerOutcome string   `toml:"virtual_liquidity_per_outcome"`
	CreatorFeeBps              int      `toml:"creator_fee_bps"`
	SlippageBps                int      `toml:"slippage_bps"`
	MetadataTimeout            duration `toml:"metadata_timeout"`
}

// MetadataConfig points at the off-chain metadata service. When BaseURL is
// empty, metadata is written straight to Redis.
type MetadataConfig struct {
	BaseURL string `toml:"base_url"`
	// Secret signs POST /api/markets requests. Empty disables signing.
	Secret  string   `toml:"secret"`
	MaxSkew duration `toml:"max_skew"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled     bool     `toml:"enabled"`
	URL         string   `toml:"url"`
	Addr        string   `toml:"addr"`
	Password    string   `toml:"password"`
	DB          int      `toml:"db"`
	PoolSize    int      `toml:"pool_size"`
	MaxRetries  int      `toml:"max_retries"`
	TLSEnabled  bool     `toml:"tls_enabled"`
	SnapshotTTL duration `toml:"snapshot_ttl"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds S3-compatible object storage parameters for snapshot archives.
type S3Config struct {
	Enabled        bool     `toml:"enabled"`
	Endpoint       string   `toml:"endpoint"`
	Region         string   `toml:"region"`
	Bucket         string   `toml:"bucket"`
	AccessKey      string   `toml:"access_key"`
	SecretKey      string   `toml:"secret_key"`
	UseSSL         bool     `toml:"use_ssl"`
	ForcePathStyle bool     `toml:"force_path_style"`
	Prefix         string   `toml:"prefix"`
	ArchiveEvery   duration `toml:"archive_every"`
}

// ServerConfig holds the HTTP API server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "10s", "15m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with sensible defaults for a local
// deployment. Addresses and the RPC URL have no defaults.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			RPCURL:            "http://localhost:8545",
			ChainID:           31337,
			RequestsPerSecond: 20,
			Burst:             5,
			FetchConcurrency:  8,
			PollInterval:      duration{15 * time.Second},
			MineTimeout:       duration{2 * time.Minute},
		},
		Market: MarketConfig{
			VirtualLiquidityPerOutcome: "1000",
			CreatorFeeBps:              100,
			SlippageBps:                500,
			MetadataTimeout:            duration{10 * time.Second},
		},
		Metadata: MetadataConfig{
			MaxSkew: duration{5 * time.Minute},
		},
		Redis: RedisConfig{
			Addr:        "localhost:6379",
			PoolSize:    10,
			MaxRetries:  3,
			SnapshotTTL: duration{5 * time.Minute},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "winzzers",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		S3: S3Config{
			Region:       "us-east-1",
			Prefix:       "snapshots",
			ArchiveEvery: duration{time.Hour},
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   120,
			RateWindow:  duration{time.Minute},
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"serve": true,
	"watch": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ContractAddress returns the parsed market contract address.
func (c ChainConfig) ContractAddress() common.Address { return common.HexToAddress(c.Contract) }

// CollateralAddress returns the parsed collateral token address.
func (c ChainConfig) CollateralAddress() common.Address { return common.HexToAddress(c.Collateral) }

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, watch)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Chain
	if strings.TrimSpace(c.Chain.RPCURL) == "" {
		errs = append(errs, "chain: rpc_url must not be empty")
	}
	if c.Chain.ChainID <= 0 {
		errs = append(errs, "chain: chain_id must be positive")
	}
	if !common.IsHexAddress(c.Chain.Contract) {
		errs = append(errs, fmt.Sprintf("chain: contract %q is not a hex address", c.Chain.Contract))
	}
	if !common.IsHexAddress(c.Chain.Collateral) {
		errs = append(errs, fmt.Sprintf("chain: collateral %q is not a hex address", c.Chain.Collateral))
	}
	if c.Chain.RequestsPerSecond < 0 {
		errs = append(errs, "chain: requests_per_second must be >= 0 (0 = unlimited)")
	}
	if c.Chain.FetchConcurrency < 1 {
		errs = append(errs, "chain: fetch_concurrency must be >= 1")
	}
	if c.Chain.PollInterval.Duration <= 0 {
		errs = append(errs, "chain: poll_interval must be > 0")
	}

	// Wallet
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}

	// Market
	if _, err := money.Parse(c.Market.VirtualLiquidityPerOutcome); err != nil {
		errs = append(errs, fmt.Sprintf("market: virtual_liquidity_per_outcome: %v", err))
	}
	if c.Market.CreatorFeeBps < 0 || c.Market.CreatorFeeBps > 10_000 {
		errs = append(errs, fmt.Sprintf("market: creator_fee_bps must be 0-10000, got %d", c.Market.CreatorFeeBps))
	}
	if c.Market.SlippageBps < 0 || c.Market.SlippageBps >= 10_000 {
		errs = append(errs, fmt.Sprintf("market: slippage_bps must be 0-9999, got %d", c.Market.SlippageBps))
	}
	if c.Market.MetadataTimeout.Duration <= 0 {
		errs = append(errs, "market: metadata_timeout must be > 0")
	}

	// Metadata
	if c.Metadata.BaseURL == "" && !c.Redis.Enabled {
		errs = append(errs, "metadata: set base_url or enable redis to store market metadata")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.URL == "" && c.Redis.Addr == "" {
			errs = append(errs, "redis: url or addr must be set when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
		if c.S3.ArchiveEvery.Duration <= 0 {
			errs = append(errs, "s3: archive_every must be > 0")
		}
	}

	// Server
	if c.Mode == "serve" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be > 0 when rate_limit is set")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
