package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies GEMWATCH_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known GEMWATCH_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Marketplace ──
	setStr(&cfg.Marketplace.GraphqlURL, "GEMWATCH_MARKETPLACE_GRAPHQL_URL")
	setStr(&cfg.Marketplace.SiteURL, "GEMWATCH_MARKETPLACE_SITE_URL")
	setStr(&cfg.Marketplace.CollectionAddress, "GEMWATCH_MARKETPLACE_COLLECTION_ADDRESS")
	setInt(&cfg.Marketplace.Count, "GEMWATCH_MARKETPLACE_COUNT")
	setStr(&cfg.Marketplace.Sha256Hash, "GEMWATCH_MARKETPLACE_SHA256_HASH")
	setStr(&cfg.Marketplace.XGGClient, "GEMWATCH_MARKETPLACE_X_GG_CLIENT")
	setStr(&cfg.Marketplace.SaleKeyPrefix, "GEMWATCH_MARKETPLACE_SALE_KEY_PREFIX")
	setStr(&cfg.Marketplace.ItemKeyPrefix, "GEMWATCH_MARKETPLACE_ITEM_KEY_PREFIX")
	setDuration(&cfg.Marketplace.RequestDelayMin, "GEMWATCH_MARKETPLACE_REQUEST_DELAY_MIN")
	setDuration(&cfg.Marketplace.RequestDelayMax, "GEMWATCH_MARKETPLACE_REQUEST_DELAY_MAX")

	// ── Transport ──
	setDuration(&cfg.Transport.ConnectTimeout, "GEMWATCH_TRANSPORT_CONNECT_TIMEOUT")
	setDuration(&cfg.Transport.ReadTimeout, "GEMWATCH_TRANSPORT_READ_TIMEOUT")
	setInt(&cfg.Transport.RetryAttempts, "GEMWATCH_TRANSPORT_RETRY_ATTEMPTS")
	setDuration(&cfg.Transport.RetryBase, "GEMWATCH_TRANSPORT_RETRY_BASE")
	setDuration(&cfg.Transport.RetryMax, "GEMWATCH_TRANSPORT_RETRY_MAX")
	setFloat64(&cfg.Transport.RateLimitRPS, "GEMWATCH_TRANSPORT_RATE_LIMIT_RPS")
	setInt(&cfg.Transport.RateLimitBurst, "GEMWATCH_TRANSPORT_RATE_LIMIT_BURST")
	setBool(&cfg.Transport.EnableProxy, "GEMWATCH_TRANSPORT_ENABLE_PROXY")
	setStr(&cfg.Transport.ProxyURL, "GEMWATCH_TRANSPORT_PROXY_URL")
	setStringSlice(&cfg.Transport.UserAgents, "GEMWATCH_TRANSPORT_USER_AGENTS")

	// ── Pipeline ──
	setDuration(&cfg.Pipeline.CycleInterval, "GEMWATCH_PIPELINE_CYCLE_INTERVAL")
	setFloat64(&cfg.Pipeline.CycleJitter, "GEMWATCH_PIPELINE_CYCLE_JITTER")
	setInt(&cfg.Pipeline.MaxCycles, "GEMWATCH_PIPELINE_MAX_CYCLES")
	setInt(&cfg.Pipeline.Workers, "GEMWATCH_PIPELINE_WORKERS")
	setDuration(&cfg.Pipeline.StatsInterval, "GEMWATCH_PIPELINE_STATS_INTERVAL")
	setBool(&cfg.Pipeline.SnapshotEnabled, "GEMWATCH_PIPELINE_SNAPSHOT_ENABLED")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "GEMWATCH_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "GEMWATCH_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "GEMWATCH_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "GEMWATCH_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "GEMWATCH_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "GEMWATCH_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "GEMWATCH_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "GEMWATCH_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "GEMWATCH_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "GEMWATCH_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "GEMWATCH_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "GEMWATCH_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "GEMWATCH_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "GEMWATCH_REDIS_DB")
	setDuration(&cfg.Redis.DetailTTL, "GEMWATCH_REDIS_DETAIL_TTL")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "GEMWATCH_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "GEMWATCH_S3_REGION")
	setStr(&cfg.S3.Bucket, "GEMWATCH_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "GEMWATCH_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "GEMWATCH_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "GEMWATCH_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "GEMWATCH_S3_FORCE_PATH_STYLE")

	// ── Notify ──
	setStr(&cfg.Notify.BotToken, "GEMWATCH_NOTIFY_BOT_TOKEN")
	setStr(&cfg.Notify.APIBase, "GEMWATCH_NOTIFY_API_BASE")
	setDuration(&cfg.Notify.Interval, "GEMWATCH_NOTIFY_INTERVAL")
	setInt(&cfg.Notify.TrashCount, "GEMWATCH_NOTIFY_TRASH_COUNT")
	setFloat64(&cfg.Notify.HalfFactor, "GEMWATCH_NOTIFY_HALF_FACTOR")
	setFloat64(&cfg.Notify.SuperFactor, "GEMWATCH_NOTIFY_SUPER_FACTOR")

	// ── Audit ──
	setStr(&cfg.Audit.RPCURL, "GEMWATCH_AUDIT_RPC_URL")
	setStr(&cfg.Audit.APIKey, "GEMWATCH_AUDIT_API_KEY")
	setStr(&cfg.Audit.Method, "GEMWATCH_AUDIT_METHOD")
	setDuration(&cfg.Audit.RequestDelay, "GEMWATCH_AUDIT_REQUEST_DELAY")

	// ── Top-level ──
	setStr(&cfg.Mode, "GEMWATCH_MODE")
	setStr(&cfg.LogLevel, "GEMWATCH_LOG_LEVEL")
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
