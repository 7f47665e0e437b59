// Package config defines the top-level configuration for the polymarket
// agent and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by AGENT_* environment variables.
type Config struct {
	Polymarket PolymarketConfig `toml:"polymarket"`
	Supabase   SupabaseConfig   `toml:"supabase"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Sync       SyncConfig       `toml:"sync"`
	Reclassify ReclassifyConfig `toml:"reclassify"`
	Analytics  AnalyticsConfig  `toml:"analytics"`
	Archive    ArchiveConfig    `toml:"archive"`
	Feed       FeedConfig       `toml:"feed"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// PolymarketConfig holds Polymarket API endpoints.
type PolymarketConfig struct {
	GammaHost string `toml:"gamma_host"`
	DataHost  string `toml:"data_host"`
	WsHost    string `toml:"ws_host"`
}

// SupabaseConfig holds PostgreSQL / Supabase connection parameters.
type SupabaseConfig struct {
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

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// SyncConfig holds the incremental sync scheduler parameters.
type SyncConfig struct {
	// Minimum inter-sync interval per priority tier. A market becomes
	// eligible for re-selection only once this much time has passed since
	// its last successful sync.
	HighInterval     duration `toml:"high_interval"`
	NormalInterval   duration `toml:"normal_interval"`
	LowInterval      duration `toml:"low_interval"`
	ArchivedInterval duration `toml:"archived_interval"`

	BatchSize    int      `toml:"batch_size"`   // markets selected per cycle
	Parallelism  int      `toml:"parallelism"`  // concurrent per-market syncs
	FetchTimeout duration `toml:"fetch_timeout"`
	PageSize     int      `toml:"page_size"` // trades per Data API page
	RateLimitRPS float64  `toml:"rate_limit_rps"`
	LockTTL      duration `toml:"lock_ttl"`

	MarketRefreshInterval duration `toml:"market_refresh_interval"`
	MarketPageSize        int      `toml:"market_page_size"`
}

// ReclassifyConfig holds the priority reclassifier parameters.
type ReclassifyConfig struct {
	Interval        duration `toml:"interval"`
	VolumeThreshold float64  `toml:"volume_threshold"` // 24h volume for high-tier promotion
	RecencyWindow   duration `toml:"recency_window"`   // closed-market window for normal tier
}

// AnalyticsConfig holds the PnL refresh job parameters and the
// successful-trader classification thresholds. All four thresholds are
// strict: a trader sitting exactly on a boundary is not flagged.
type AnalyticsConfig struct {
	RefreshInterval duration `toml:"refresh_interval"`
	Parallelism     int      `toml:"parallelism"`

	MinWinRate float64 `toml:"min_win_rate"` // percent
	MinTrades  int64   `toml:"min_trades"`
	MinROI     float64 `toml:"min_roi"` // percent
	MinPnL     float64 `toml:"min_pnl"` // USD
}

// ArchiveConfig holds cold-storage archival parameters.
type ArchiveConfig struct {
	Enabled       bool   `toml:"enabled"`
	RetentionDays int    `toml:"retention_days"`
	Cron          string `toml:"cron"`
}

// FeedConfig holds the live market-activity feed parameters.
type FeedConfig struct {
	Enabled bool `toml:"enabled"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
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
		Polymarket: PolymarketConfig{
			GammaHost: "https://gamma-api.polymarket.com",
			DataHost:  "https://data-api.polymarket.com",
			WsHost:    "wss://ws-live-data.polymarket.com",
		},
		Supabase: SupabaseConfig{
			DSN:           "",
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "polymarket-agent-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Sync: SyncConfig{
			HighInterval:     duration{2 * time.Minute},
			NormalInterval:   duration{5 * time.Minute},
			LowInterval:      duration{30 * time.Minute},
			ArchivedInterval: duration{24 * time.Hour},

			BatchSize:    50,
			Parallelism:  8,
			FetchTimeout: duration{30 * time.Second},
			PageSize:     100,
			RateLimitRPS: 2.0,
			LockTTL:      duration{2 * time.Minute},

			MarketRefreshInterval: duration{15 * time.Minute},
			MarketPageSize:        100,
		},
		Reclassify: ReclassifyConfig{
			Interval:        duration{10 * time.Minute},
			VolumeThreshold: 10_000,
			RecencyWindow:   duration{7 * 24 * time.Hour},
		},
		Analytics: AnalyticsConfig{
			RefreshInterval: duration{1 * time.Hour},
			Parallelism:     4,
			MinWinRate:      55,
			MinTrades:       50,
			MinROI:          10,
			MinPnL:          1000,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 180,
			Cron:          "0 3 1 * *",
		},
		Feed: FeedConfig{
			Enabled: true,
		},
		Notify: NotifyConfig{
			Events: []string{"cycle_failed", "invariant_violation", "archive_complete"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"sync":     true,
	"backfill": true,
	"analyze":  true,
	"archive":  true,
	"full":     true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: sync, backfill, analyze, archive, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Polymarket endpoints
	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Polymarket.DataHost == "" {
		errs = append(errs, "polymarket: data_host must not be empty")
	}
	if c.Feed.Enabled && c.Polymarket.WsHost == "" {
		errs = append(errs, "polymarket: ws_host must not be empty when feed is enabled")
	}

	// Supabase
	if strings.TrimSpace(c.Supabase.DSN) == "" {
		if c.Supabase.Host == "" {
			errs = append(errs, "supabase: host must not be empty (or set supabase.dsn)")
		}
		if c.Supabase.Port <= 0 || c.Supabase.Port > 65535 {
			errs = append(errs, fmt.Sprintf("supabase: port must be 1-65535, got %d", c.Supabase.Port))
		}
		if c.Supabase.Database == "" {
			errs = append(errs, "supabase: database must not be empty")
		}
	}
	if c.Supabase.PoolMaxConns < 1 {
		errs = append(errs, "supabase: pool_max_conns must be >= 1")
	}
	if c.Supabase.PoolMinConns < 0 {
		errs = append(errs, "supabase: pool_min_conns must be >= 0")
	}
	if c.Supabase.PoolMinConns > c.Supabase.PoolMaxConns {
		errs = append(errs, "supabase: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 — only required when archival is on.
	if c.Archive.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archive is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
		if strings.TrimSpace(c.Archive.Cron) == "" {
			errs = append(errs, "archive: cron must not be empty when archive is enabled")
		}
	}

	// Sync
	for _, iv := range []struct {
		name string
		d    duration
	}{
		{"high_interval", c.Sync.HighInterval},
		{"normal_interval", c.Sync.NormalInterval},
		{"low_interval", c.Sync.LowInterval},
		{"archived_interval", c.Sync.ArchivedInterval},
	} {
		if iv.d.Duration <= 0 {
			errs = append(errs, fmt.Sprintf("sync: %s must be > 0", iv.name))
		}
	}
	if c.Sync.HighInterval.Duration > c.Sync.NormalInterval.Duration {
		errs = append(errs, "sync: high_interval must not exceed normal_interval")
	}
	if c.Sync.NormalInterval.Duration > c.Sync.LowInterval.Duration {
		errs = append(errs, "sync: normal_interval must not exceed low_interval")
	}
	if c.Sync.BatchSize < 1 {
		errs = append(errs, "sync: batch_size must be >= 1")
	}
	if c.Sync.Parallelism < 1 {
		errs = append(errs, "sync: parallelism must be >= 1")
	}
	if c.Sync.FetchTimeout.Duration <= 0 {
		errs = append(errs, "sync: fetch_timeout must be > 0")
	}
	if c.Sync.PageSize < 1 || c.Sync.PageSize > 500 {
		errs = append(errs, fmt.Sprintf("sync: page_size must be 1-500, got %d", c.Sync.PageSize))
	}
	if c.Sync.RateLimitRPS <= 0 {
		errs = append(errs, "sync: rate_limit_rps must be > 0")
	}
	if c.Sync.LockTTL.Duration < c.Sync.FetchTimeout.Duration {
		errs = append(errs, "sync: lock_ttl must be >= fetch_timeout")
	}

	// Reclassify
	if c.Reclassify.Interval.Duration <= 0 {
		errs = append(errs, "reclassify: interval must be > 0")
	}
	if c.Reclassify.VolumeThreshold < 0 {
		errs = append(errs, "reclassify: volume_threshold must be >= 0")
	}
	if c.Reclassify.RecencyWindow.Duration <= 0 {
		errs = append(errs, "reclassify: recency_window must be > 0")
	}

	// Analytics
	if c.Analytics.RefreshInterval.Duration <= 0 {
		errs = append(errs, "analytics: refresh_interval must be > 0")
	}
	if c.Analytics.Parallelism < 1 {
		errs = append(errs, "analytics: parallelism must be >= 1")
	}
	if c.Analytics.MinWinRate < 0 || c.Analytics.MinWinRate > 100 {
		errs = append(errs, fmt.Sprintf("analytics: min_win_rate must be 0-100, got %g", c.Analytics.MinWinRate))
	}
	if c.Analytics.MinTrades < 0 {
		errs = append(errs, "analytics: min_trades must be >= 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
