package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies WINZZERS_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; call Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known WINZZERS_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). Secrets are expected to arrive this way rather than in the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "WINZZERS_CHAIN_RPC_URL")
	setInt64(&cfg.Chain.ChainID, "WINZZERS_CHAIN_ID")
	setStr(&cfg.Chain.Contract, "WINZZERS_CHAIN_CONTRACT")
	setStr(&cfg.Chain.Collateral, "WINZZERS_CHAIN_COLLATERAL")
	setFloat64(&cfg.Chain.RequestsPerSecond, "WINZZERS_CHAIN_REQUESTS_PER_SECOND")
	setInt(&cfg.Chain.Burst, "WINZZERS_CHAIN_BURST")
	setInt(&cfg.Chain.FetchConcurrency, "WINZZERS_CHAIN_FETCH_CONCURRENCY")
	setDuration(&cfg.Chain.PollInterval, "WINZZERS_CHAIN_POLL_INTERVAL")
	setDuration(&cfg.Chain.MineTimeout, "WINZZERS_CHAIN_MINE_TIMEOUT")

	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "WINZZERS_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "WINZZERS_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "WINZZERS_WALLET_KEY_PASSWORD")

	// ── Market ──
	setStr(&cfg.Market.VirtualLiquidityPerOutcome, "WINZZERS_MARKET_VIRTUAL_LIQUIDITY_PER_OUTCOME")
	setInt(&cfg.Market.CreatorFeeBps, "WINZZERS_MARKET_CREATOR_FEE_BPS")
	setInt(&cfg.Market.SlippageBps, "WINZZERS_MARKET_SLIPPAGE_BPS")
	setDuration(&cfg.Market.MetadataTimeout, "WINZZERS_MARKET_METADATA_TIMEOUT")

	// ── Metadata ──
	setStr(&cfg.Metadata.BaseURL, "WINZZERS_METADATA_BASE_URL")
	setStr(&cfg.Metadata.Secret, "WINZZERS_METADATA_SECRET")
	setDuration(&cfg.Metadata.MaxSkew, "WINZZERS_METADATA_MAX_SKEW")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "WINZZERS_REDIS_ENABLED")
	setStr(&cfg.Redis.URL, "WINZZERS_REDIS_URL")
	setStr(&cfg.Redis.URL, "REDIS_URL") // compatibility alias
	setStr(&cfg.Redis.Addr, "WINZZERS_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "WINZZERS_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "WINZZERS_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "WINZZERS_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "WINZZERS_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "WINZZERS_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.SnapshotTTL, "WINZZERS_REDIS_SNAPSHOT_TTL")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "WINZZERS_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "WINZZERS_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "WINZZERS_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "WINZZERS_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "WINZZERS_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "WINZZERS_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "WINZZERS_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "WINZZERS_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "WINZZERS_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "WINZZERS_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "WINZZERS_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "WINZZERS_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "WINZZERS_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "WINZZERS_S3_REGION")
	setStr(&cfg.S3.Bucket, "WINZZERS_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "WINZZERS_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "WINZZERS_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "WINZZERS_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "WINZZERS_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.Prefix, "WINZZERS_S3_PREFIX")
	setDuration(&cfg.S3.ArchiveEvery, "WINZZERS_S3_ARCHIVE_EVERY")

	// ── Server ──
	setInt(&cfg.Server.Port, "WINZZERS_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "WINZZERS_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "WINZZERS_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "WINZZERS_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "WINZZERS_SERVER_RATE_WINDOW")

	// ── Top-level ──
	setStr(&cfg.Mode, "WINZZERS_MODE")
	setStr(&cfg.LogLevel, "WINZZERS_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
