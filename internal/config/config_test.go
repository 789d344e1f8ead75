// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uipilot/uipilot/internal/cache"
)

func defaultViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestDefaults(t *testing.T) {
	cfg, err := NewConfigFromViper(defaultViper())
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "uipilot", cfg.Logger.ServiceName)
	assert.Equal(t, "disk", cfg.Cache.Backend)
	assert.NotEmpty(t, cfg.Cache.Dir)
	assert.Equal(t, int64(cache.DefaultDiskMaxBytes), cfg.Cache.MaxSizeBytes)
	assert.Equal(t, cache.DefaultMemoryEntries, cfg.Cache.MaxEntries)
	assert.Equal(t, cache.DefaultTTL, cfg.Cache.TTL)
	assert.Equal(t, "web", cfg.Device.Kind)
	assert.True(t, cfg.Device.Headless)
	assert.Equal(t, 500*time.Millisecond, cfg.Device.SettleDuration)
	assert.Equal(t, "gemini-2.5-pro", cfg.AI.Models["powerful"].Model)
	assert.Equal(t, 2*time.Minute, cfg.AI.Models["powerful"].APITimeout)
	assert.Equal(t, "png", cfg.Run.ImageFormat)
	assert.Equal(t, 1, cfg.Run.Parallelism)
	assert.False(t, cfg.Store.Enabled)
}

func TestConfigValidation(t *testing.T) {
	base := func() *Config {
		cfg, err := NewConfigFromViper(defaultViper())
		require.NoError(t, err)
		return cfg
	}

	t.Run("invalid cache backend", func(t *testing.T) {
		cfg := base()
		cfg.Cache.Backend = "redis"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cache.backend")
	})

	t.Run("invalid image format", func(t *testing.T) {
		cfg := base()
		cfg.Run.ImageFormat = "webp"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "run.image_format")
	})

	t.Run("invalid parallelism", func(t *testing.T) {
		cfg := base()
		cfg.Run.Parallelism = 0
		require.Error(t, cfg.Validate())
	})

	t.Run("unsupported device kind", func(t *testing.T) {
		cfg := base()
		cfg.Device.Kind = "android"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "device.kind")
	})

	t.Run("store enabled requires dsn", func(t *testing.T) {
		cfg := base()
		cfg.Store.Enabled = true
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "store.dsn")
	})
}

func TestNewConfigFromViper(t *testing.T) {
	t.Run("yaml overrides defaults", func(t *testing.T) {
		yamlBytes := []byte(`
logger:
  level: debug
cache:
  backend: memory
  ttl: 1h
device:
  headless: false
  width: 1920
  height: 1080
tools:
  command: my-tool-server
  args: ["--port", "9000"]
  defaults:
    search: true
    payments: false
`)
		v := defaultViper()
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlBytes)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, "debug", cfg.Logger.Level)
		assert.Equal(t, "memory", cfg.Cache.Backend)
		assert.Equal(t, time.Hour, cfg.Cache.TTL)
		assert.False(t, cfg.Device.Headless)
		assert.Equal(t, 1920, cfg.Device.Width)
		assert.Equal(t, "my-tool-server", cfg.Tools.Command)
		assert.Equal(t, []string{"--port", "9000"}, cfg.Tools.Args)
		assert.Equal(t, map[string]bool{"search": true, "payments": false}, cfg.Tools.Defaults)
		// Defaults still apply for untouched sections.
		assert.Equal(t, "png", cfg.Run.ImageFormat)
	})

	t.Run("validation failure", func(t *testing.T) {
		v := defaultViper()
		v.Set("run.parallelism", 0)

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
	})

	t.Run("environment variable binding", func(t *testing.T) {
		t.Setenv("UIPILOT_POWERFUL_API_KEY", "key-from-env")
		t.Setenv("UIPILOT_STORE_DSN", "postgres://envvar/uipilot")

		v := defaultViper()
		v.Set("store.enabled", true)

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, "key-from-env", cfg.AI.Models["powerful"].APIKey)
		assert.Equal(t, "postgres://envvar/uipilot", cfg.Store.DSN)
	})
}
