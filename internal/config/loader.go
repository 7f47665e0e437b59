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
// built-in defaults, applies AGENT_* environment variable overrides, and
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

// applyEnvOverrides reads well-known AGENT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Polymarket ──
	setStr(&cfg.Polymarket.GammaHost, "AGENT_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.DataHost, "AGENT_POLYMARKET_DATA_HOST")
	setStr(&cfg.Polymarket.WsHost, "AGENT_POLYMARKET_WS_HOST")

	// ── Supabase ──
	setStr(&cfg.Supabase.DSN, "AGENT_SUPABASE_DSN")
	setStr(&cfg.Supabase.DSN, "AGENT_SUPABASE_URL") // compatibility alias
	setStr(&cfg.Supabase.Host, "AGENT_SUPABASE_HOST")
	setInt(&cfg.Supabase.Port, "AGENT_SUPABASE_PORT")
	setStr(&cfg.Supabase.Database, "AGENT_SUPABASE_DATABASE")
	setStr(&cfg.Supabase.User, "AGENT_SUPABASE_USER")
	setStr(&cfg.Supabase.Password, "AGENT_SUPABASE_PASSWORD")
	setStr(&cfg.Supabase.SSLMode, "AGENT_SUPABASE_SSL_MODE")
	setInt(&cfg.Supabase.PoolMaxConns, "AGENT_SUPABASE_POOL_MAX_CONNS")
	setInt(&cfg.Supabase.PoolMinConns, "AGENT_SUPABASE_POOL_MIN_CONNS")
	setBool(&cfg.Supabase.RunMigrations, "AGENT_SUPABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "AGENT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "AGENT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "AGENT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "AGENT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "AGENT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "AGENT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "AGENT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "AGENT_S3_REGION")
	setStr(&cfg.S3.Bucket, "AGENT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "AGENT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "AGENT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "AGENT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "AGENT_S3_FORCE_PATH_STYLE")

	// ── Sync ──
	setDuration(&cfg.Sync.HighInterval, "AGENT_SYNC_HIGH_INTERVAL")
	setDuration(&cfg.Sync.NormalInterval, "AGENT_SYNC_NORMAL_INTERVAL")
	setDuration(&cfg.Sync.LowInterval, "AGENT_SYNC_LOW_INTERVAL")
	setDuration(&cfg.Sync.ArchivedInterval, "AGENT_SYNC_ARCHIVED_INTERVAL")
	setInt(&cfg.Sync.BatchSize, "AGENT_SYNC_BATCH_SIZE")
	setInt(&cfg.Sync.Parallelism, "AGENT_SYNC_PARALLELISM")
	setDuration(&cfg.Sync.FetchTimeout, "AGENT_SYNC_FETCH_TIMEOUT")
	setInt(&cfg.Sync.PageSize, "AGENT_SYNC_PAGE_SIZE")
	setFloat64(&cfg.Sync.RateLimitRPS, "AGENT_SYNC_RATE_LIMIT_RPS")
	setDuration(&cfg.Sync.LockTTL, "AGENT_SYNC_LOCK_TTL")
	setDuration(&cfg.Sync.MarketRefreshInterval, "AGENT_SYNC_MARKET_REFRESH_INTERVAL")
	setInt(&cfg.Sync.MarketPageSize, "AGENT_SYNC_MARKET_PAGE_SIZE")

	// ── Reclassify ──
	setDuration(&cfg.Reclassify.Interval, "AGENT_RECLASSIFY_INTERVAL")
	setFloat64(&cfg.Reclassify.VolumeThreshold, "AGENT_RECLASSIFY_VOLUME_THRESHOLD")
	setDuration(&cfg.Reclassify.RecencyWindow, "AGENT_RECLASSIFY_RECENCY_WINDOW")

	// ── Analytics ──
	setDuration(&cfg.Analytics.RefreshInterval, "AGENT_ANALYTICS_REFRESH_INTERVAL")
	setInt(&cfg.Analytics.Parallelism, "AGENT_ANALYTICS_PARALLELISM")
	setFloat64(&cfg.Analytics.MinWinRate, "AGENT_ANALYTICS_MIN_WIN_RATE")
	setInt64(&cfg.Analytics.MinTrades, "AGENT_ANALYTICS_MIN_TRADES")
	setFloat64(&cfg.Analytics.MinROI, "AGENT_ANALYTICS_MIN_ROI")
	setFloat64(&cfg.Analytics.MinPnL, "AGENT_ANALYTICS_MIN_PNL")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "AGENT_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "AGENT_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Archive.Cron, "AGENT_ARCHIVE_CRON")

	// ── Feed ──
	setBool(&cfg.Feed.Enabled, "AGENT_FEED_ENABLED")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "AGENT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "AGENT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "AGENT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "AGENT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "AGENT_MODE")
	setStr(&cfg.LogLevel, "AGENT_LOG_LEVEL")
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
