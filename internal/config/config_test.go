package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
mode = "collect"

[marketplace]
collection_address = "EQcollection"

[pipeline]
cycle_interval = "90s"
workers = 3
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "collect", cfg.Mode)
	assert.Equal(t, "EQcollection", cfg.Marketplace.CollectionAddress)
	assert.Equal(t, 90*time.Second, cfg.Pipeline.CycleInterval.Duration)
	assert.Equal(t, 3, cfg.Pipeline.Workers)

	// Untouched fields keep their defaults.
	assert.Equal(t, "https://getgems.io/graphql/", cfg.Marketplace.GraphqlURL)
	assert.Equal(t, 5, cfg.Notify.TrashCount)
	assert.InDelta(t, 0.98, cfg.Notify.HalfFactor, 1e-9)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
[marketplace]
collection_address = "EQfromfile"
`)

	t.Setenv("GEMWATCH_MARKETPLACE_COLLECTION_ADDRESS", "EQfromenv")
	t.Setenv("GEMWATCH_PIPELINE_WORKERS", "9")
	t.Setenv("GEMWATCH_NOTIFY_BOT_TOKEN", "secret-token")
	t.Setenv("GEMWATCH_PIPELINE_CYCLE_INTERVAL", "2m")
	t.Setenv("GEMWATCH_REDIS_ENABLED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "EQfromenv", cfg.Marketplace.CollectionAddress)
	assert.Equal(t, 9, cfg.Pipeline.Workers)
	assert.Equal(t, "secret-token", cfg.Notify.BotToken)
	assert.Equal(t, 2*time.Minute, cfg.Pipeline.CycleInterval.Duration)
	assert.True(t, cfg.Redis.Enabled)
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Marketplace.CollectionAddress = "EQcollection"
	cfg.Mode = "collect"
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "banana"
	cfg.Pipeline.Workers = 0
	cfg.Notify.SuperFactor = 1.5

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "workers must be >= 1")
	assert.Contains(t, err.Error(), "super_factor")
	// collection_address default is empty, also reported
	assert.Contains(t, err.Error(), "collection_address")
}

func TestValidateRequiresBotTokenForNotifyModes(t *testing.T) {
	cfg := Defaults()
	cfg.Marketplace.CollectionAddress = "EQcollection"
	cfg.Mode = "notify"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bot_token")

	cfg.Notify.BotToken = "token"
	require.NoError(t, cfg.Validate())
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "hunter2"
	cfg.Notify.BotToken = "token"

	red := RedactedConfig(&cfg)
	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Notify.BotToken)
	assert.Empty(t, red.Audit.APIKey, "empty secrets stay empty")

	// Original is untouched.
	assert.Equal(t, "hunter2", cfg.Postgres.Password)
}
