package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults_AreValid(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
}

func TestDefaults_TierIntervals(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, 2*time.Minute, cfg.Sync.HighInterval.Duration)
	assert.Equal(t, 5*time.Minute, cfg.Sync.NormalInterval.Duration)
	assert.Equal(t, 30*time.Minute, cfg.Sync.LowInterval.Duration)
	assert.Equal(t, 24*time.Hour, cfg.Sync.ArchivedInterval.Duration)
}

func TestDefaults_SuccessThresholds(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, 55.0, cfg.Analytics.MinWinRate)
	assert.Equal(t, int64(50), cfg.Analytics.MinTrades)
	assert.Equal(t, 10.0, cfg.Analytics.MinROI)
	assert.Equal(t, 1000.0, cfg.Analytics.MinPnL)
}

func TestValidate_RejectsUnknownMode(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "turbo"

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidate_RejectsInvertedIntervals(t *testing.T) {
	cfg := Defaults()
	cfg.Sync.HighInterval = duration{time.Hour}

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "high_interval must not exceed normal_interval")
}

func TestValidate_LockTTLCoversFetchTimeout(t *testing.T) {
	cfg := Defaults()
	cfg.Sync.LockTTL = duration{10 * time.Second}

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock_ttl must be >= fetch_timeout")
}

func TestValidate_S3OnlyRequiredWhenArchiveEnabled(t *testing.T) {
	cfg := Defaults()
	cfg.S3.Bucket = ""
	assert.NoError(t, cfg.Validate())

	cfg.Archive.Enabled = true
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3: bucket must not be empty")
}

func TestValidate_CollectsMultipleErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "bogus"
	cfg.Sync.BatchSize = 0
	cfg.Sync.PageSize = 9999

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "batch_size")
	assert.Contains(t, err.Error(), "page_size")
}

func TestLoad_MergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
mode = "sync"

[sync]
high_interval = "90s"
batch_size = 25

[analytics]
min_pnl = 2500.0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "sync", cfg.Mode)
	assert.Equal(t, 90*time.Second, cfg.Sync.HighInterval.Duration)
	assert.Equal(t, 25, cfg.Sync.BatchSize)
	assert.Equal(t, 2500.0, cfg.Analytics.MinPnL)
	// Untouched fields keep their defaults.
	assert.Equal(t, 5*time.Minute, cfg.Sync.NormalInterval.Duration)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`mode = "sync"`), 0o600))

	t.Setenv("AGENT_MODE", "analyze")
	t.Setenv("AGENT_SYNC_BATCH_SIZE", "7")
	t.Setenv("AGENT_RECLASSIFY_VOLUME_THRESHOLD", "50000")
	t.Setenv("AGENT_NOTIFY_EVENTS", "cycle_failed, archive_complete")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "analyze", cfg.Mode)
	assert.Equal(t, 7, cfg.Sync.BatchSize)
	assert.Equal(t, 50000.0, cfg.Reclassify.VolumeThreshold)
	assert.Equal(t, []string{"cycle_failed", "archive_complete"}, cfg.Notify.Events)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestRedactedConfig_HidesSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Supabase.Password = "hunter2"
	cfg.Redis.Password = "hunter2"
	cfg.S3.SecretKey = "hunter2"
	cfg.Notify.TelegramToken = "123:abc"

	red := RedactedConfig(&cfg)

	assert.NotContains(t, red.Supabase.Password, "hunter2")
	assert.NotContains(t, red.Redis.Password, "hunter2")
	assert.NotContains(t, red.S3.SecretKey, "hunter2")
	assert.NotContains(t, red.Notify.TelegramToken, "123:abc")
}
