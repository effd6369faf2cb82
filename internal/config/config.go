// Package config defines the top-level configuration for gemwatch and
// provides validation helpers.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by GEMWATCH_* environment
// variables.
type Config struct {
	Marketplace MarketplaceConfig `toml:"marketplace"`
	Transport   TransportConfig   `toml:"transport"`
	Pipeline    PipelineConfig    `toml:"pipeline"`
	Postgres    PostgresConfig    `toml:"postgres"`
	Redis       RedisConfig       `toml:"redis"`
	S3          S3Config          `toml:"s3"`
	Notify      NotifyConfig      `toml:"notify"`
	Audit       AuditConfig       `toml:"audit"`
	Mode        string            `toml:"mode"`
	LogLevel    string            `toml:"log_level"`
}

// MarketplaceConfig holds the GetGems endpoints and query parameters.
type MarketplaceConfig struct {
	GraphqlURL        string   `toml:"graphql_url"`
	SiteURL           string   `toml:"site_url"`
	CollectionAddress string   `toml:"collection_address"`
	Count             int      `toml:"count"`
	Sha256Hash        string   `toml:"sha256_hash"`
	XGGClient         string   `toml:"x_gg_client"`
	SaleKeyPrefix     string   `toml:"sale_key_prefix"`
	ItemKeyPrefix     string   `toml:"item_key_prefix"`
	RequestDelayMin   duration `toml:"request_delay_min"`
	RequestDelayMax   duration `toml:"request_delay_max"`
}

// TransportConfig holds HTTP client timeouts, retry policy, rate ceiling,
// proxying, and user-agent rotation.
type TransportConfig struct {
	ConnectTimeout duration `toml:"connect_timeout"`
	ReadTimeout    duration `toml:"read_timeout"`
	RetryAttempts  int      `toml:"retry_attempts"`
	RetryBase      duration `toml:"retry_base"`
	RetryMax       duration `toml:"retry_max"`
	RateLimitRPS   float64  `toml:"rate_limit_rps"`
	RateLimitBurst int      `toml:"rate_limit_burst"`
	EnableProxy    bool     `toml:"enable_proxy"`
	ProxyURL       string   `toml:"proxy_url"`
	UserAgents     []string `toml:"user_agents"`
}

// PipelineConfig holds ingestion cycle parameters.
type PipelineConfig struct {
	CycleInterval   duration `toml:"cycle_interval"`
	CycleJitter     float64  `toml:"cycle_jitter"`
	MaxCycles       int      `toml:"max_cycles"`
	Workers         int      `toml:"workers"`
	StatsInterval   duration `toml:"stats_interval"`
	SnapshotEnabled bool     `toml:"snapshot_enabled"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
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

// RedisConfig holds the optional detail-cache connection parameters.
type RedisConfig struct {
	Enabled   bool     `toml:"enabled"`
	Addr      string   `toml:"addr"`
	Password  string   `toml:"password"`
	DB        int      `toml:"db"`
	DetailTTL duration `toml:"detail_ttl"`
}

// S3Config holds S3-compatible object storage parameters for cycle snapshots.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// NotifyConfig holds the Telegram bot credentials and floor-alert parameters.
type NotifyConfig struct {
	BotToken    string   `toml:"bot_token"`
	APIBase     string   `toml:"api_base"`
	Interval    duration `toml:"interval"`
	TrashCount  int      `toml:"trash_count"`
	HalfFactor  float64  `toml:"half_factor"`
	SuperFactor float64  `toml:"super_factor"`
}

// AuditConfig holds the on-chain verification job parameters.
type AuditConfig struct {
	RPCURL       string   `toml:"rpc_url"`
	APIKey       string   `toml:"api_key"`
	Method       string   `toml:"method"`
	RequestDelay duration `toml:"request_delay"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
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

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Marketplace: MarketplaceConfig{
			GraphqlURL:        "https://getgems.io/graphql/",
			SiteURL:           "https://getgems.io",
			CollectionAddress: "",
			Count:             30,
			Sha256Hash:        "99377ac921442804742bd8a4d84047fbfbcf6dbca52879dc9c6e9029f5912b7b",
			XGGClient:         "v:1 l:en",
			SaleKeyPrefix:     "NftSale",
			ItemKeyPrefix:     "NftItem",
			RequestDelayMin:   duration{1 * time.Second},
			RequestDelayMax:   duration{3 * time.Second},
		},
		Transport: TransportConfig{
			ConnectTimeout: duration{10 * time.Second},
			ReadTimeout:    duration{30 * time.Second},
			RetryAttempts:  5,
			RetryBase:      duration{500 * time.Millisecond},
			RetryMax:       duration{30 * time.Second},
			RateLimitRPS:   4,
			RateLimitBurst: 4,
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/138.0.0.0 Safari/537.36",
			},
		},
		Pipeline: PipelineConfig{
			CycleInterval:   duration{60 * time.Second},
			CycleJitter:     0.2,
			MaxCycles:       0,
			Workers:         5,
			StatsInterval:   duration{5 * time.Minute},
			SnapshotEnabled: false,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "gemwatch",
			User:          "gemwatch",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:   false,
			Addr:      "localhost:6379",
			DetailTTL: duration{5 * time.Minute},
		},
		S3: S3Config{
			Endpoint:       "",
			Region:         "us-east-1",
			Bucket:         "gemwatch-snapshots",
			ForcePathStyle: true,
		},
		Notify: NotifyConfig{
			APIBase:     "https://api.telegram.org",
			Interval:    duration{60 * time.Second},
			TrashCount:  5,
			HalfFactor:  0.98,
			SuperFactor: 0.96,
		},
		Audit: AuditConfig{
			RPCURL:       "https://ton.drpc.org/rest/runGetMethod",
			Method:       "get_sale_data",
			RequestDelay: duration{500 * time.Millisecond},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"collect": true,
	"notify":  true,
	"audit":   true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: collect, notify, audit, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Marketplace
	if c.Marketplace.CollectionAddress == "" {
		errs = append(errs, "marketplace: collection_address must not be empty")
	}
	if c.Marketplace.GraphqlURL == "" {
		errs = append(errs, "marketplace: graphql_url must not be empty")
	}
	if c.Marketplace.Count <= 0 {
		errs = append(errs, "marketplace: count must be > 0")
	}
	if c.Marketplace.RequestDelayMin.Duration < 0 || c.Marketplace.RequestDelayMax.Duration < c.Marketplace.RequestDelayMin.Duration {
		errs = append(errs, "marketplace: request_delay_min/max must satisfy 0 <= min <= max")
	}

	// Transport
	if c.Transport.ConnectTimeout.Duration <= 0 {
		errs = append(errs, "transport: connect_timeout must be > 0")
	}
	if c.Transport.ReadTimeout.Duration <= 0 {
		errs = append(errs, "transport: read_timeout must be > 0")
	}
	if c.Transport.RetryAttempts < 1 {
		errs = append(errs, "transport: retry_attempts must be >= 1")
	}
	if len(c.Transport.UserAgents) == 0 {
		errs = append(errs, "transport: at least one user agent is required")
	}
	if c.Transport.EnableProxy {
		if c.Transport.ProxyURL == "" {
			errs = append(errs, "transport: proxy_url is required when enable_proxy is set")
		} else if _, err := url.Parse(c.Transport.ProxyURL); err != nil {
			errs = append(errs, fmt.Sprintf("transport: invalid proxy_url: %v", err))
		}
	}

	// Pipeline
	if c.Pipeline.CycleInterval.Duration <= 0 {
		errs = append(errs, "pipeline: cycle_interval must be > 0")
	}
	if c.Pipeline.CycleJitter < 0 || c.Pipeline.CycleJitter > 1 {
		errs = append(errs, "pipeline: cycle_jitter must be within [0, 1]")
	}
	if c.Pipeline.Workers < 1 {
		errs = append(errs, "pipeline: workers must be >= 1")
	}
	if c.Pipeline.MaxCycles < 0 {
		errs = append(errs, "pipeline: max_cycles must be >= 0")
	}
	if c.Pipeline.SnapshotEnabled {
		if c.S3.Endpoint == "" && c.S3.Region == "" {
			errs = append(errs, "s3: endpoint or region must be set when snapshots are enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when snapshots are enabled")
		}
	}

	// Postgres
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

	// Redis
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty when enabled")
	}

	// Notify
	needsNotify := c.Mode == "notify" || c.Mode == "full"
	if needsNotify && c.Notify.BotToken == "" {
		errs = append(errs, "notify: bot_token is required for mode "+c.Mode)
	}
	if c.Notify.TrashCount < 1 {
		errs = append(errs, "notify: trash_count must be >= 1")
	}
	if c.Notify.HalfFactor <= 0 || c.Notify.HalfFactor > 1 {
		errs = append(errs, "notify: half_factor must be within (0, 1]")
	}
	if c.Notify.SuperFactor <= 0 || c.Notify.SuperFactor > c.Notify.HalfFactor {
		errs = append(errs, "notify: super_factor must be within (0, half_factor]")
	}
	if c.Notify.Interval.Duration <= 0 {
		errs = append(errs, "notify: interval must be > 0")
	}

	// Audit
	if c.Mode == "audit" {
		if c.Audit.RPCURL == "" {
			errs = append(errs, "audit: rpc_url must not be empty for mode audit")
		}
		if c.Audit.Method == "" {
			errs = append(errs, "audit: method must not be empty for mode audit")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
