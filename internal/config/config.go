// File: internal/config/config.go

// Package config loads and validates engine configuration from file,
// environment, and flags via viper.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/uipilot/uipilot/internal/cache"
	"github.com/uipilot/uipilot/internal/llmclient"
)

// Config holds the entire engine configuration.
type Config struct {
	Logger LoggerConfig `mapstructure:"logger" yaml:"logger"`
	AI     AIConfig     `mapstructure:"ai" yaml:"ai"`
	Cache  CacheConfig  `mapstructure:"cache" yaml:"cache"`
	Device DeviceConfig `mapstructure:"device" yaml:"device"`
	Tools  ToolsConfig  `mapstructure:"tools" yaml:"tools"`
	Store  StoreConfig  `mapstructure:"store" yaml:"store"`
	Run    RunConfig    `mapstructure:"run" yaml:"run"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// AIConfig configures the model tiers. Keys of Models are tier names
// ("fast", "powerful").
type AIConfig struct {
	Models map[string]llmclient.ModelConfig `mapstructure:"models" yaml:"models"`
}

// CacheConfig selects and tunes the decision cache backend.
type CacheConfig struct {
	// Backend is "disk", "memory", or "none".
	Backend      string        `mapstructure:"backend" yaml:"backend"`
	Dir          string        `mapstructure:"dir" yaml:"dir"`
	MaxSizeBytes int64         `mapstructure:"max_size_bytes" yaml:"max_size_bytes"`
	MaxEntries   int           `mapstructure:"max_entries" yaml:"max_entries"`
	TTL          time.Duration `mapstructure:"ttl" yaml:"ttl"`
	Disabled     bool          `mapstructure:"disabled" yaml:"disabled"`
}

// DeviceConfig selects the device backend.
type DeviceConfig struct {
	// Kind is "web"; emulator-backed kinds plug in behind the same interface.
	Kind           string        `mapstructure:"kind" yaml:"kind"`
	Headless       bool          `mapstructure:"headless" yaml:"headless"`
	Width          int           `mapstructure:"width" yaml:"width"`
	Height         int           `mapstructure:"height" yaml:"height"`
	SettleDuration time.Duration `mapstructure:"settle_duration" yaml:"settle_duration"`
	UserAgent      string        `mapstructure:"user_agent" yaml:"user_agent"`
}

// ToolsConfig configures the external tool server and the default tool set.
type ToolsConfig struct {
	// Command starts the tool server; empty disables tools entirely.
	Command string   `mapstructure:"command" yaml:"command"`
	Args    []string `mapstructure:"args" yaml:"args"`
	// Defaults enables or disables tools project-wide; scenario overrides win.
	Defaults map[string]bool `mapstructure:"defaults" yaml:"defaults"`
}

// StoreConfig configures the optional PostgreSQL run archive.
type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	DSN     string `mapstructure:"dsn" yaml:"dsn"`
}

// RunConfig holds per-run settings populated from flags and file.
type RunConfig struct {
	OutputDir    string `mapstructure:"output_dir" yaml:"output_dir"`
	BuildVersion string `mapstructure:"build_version" yaml:"build_version"`
	// ImageFormat is "png" or "jpeg".
	ImageFormat string `mapstructure:"image_format" yaml:"image_format"`
	Parallelism int    `mapstructure:"parallelism" yaml:"parallelism"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "uipilot")
	v.SetDefault("logger.log_file", "uipilot.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- AI --
	v.SetDefault("ai.models.fast.model", "gemini-2.5-flash")
	v.SetDefault("ai.models.powerful.model", "gemini-2.5-pro")
	v.SetDefault("ai.models.powerful.api_timeout", "2m")

	// -- Cache --
	v.SetDefault("cache.backend", "disk")
	v.SetDefault("cache.dir", defaultCacheDir())
	v.SetDefault("cache.max_size_bytes", int64(cache.DefaultDiskMaxBytes))
	v.SetDefault("cache.max_entries", cache.DefaultMemoryEntries)
	v.SetDefault("cache.ttl", cache.DefaultTTL.String())
	v.SetDefault("cache.disabled", false)

	// -- Device --
	v.SetDefault("device.kind", "web")
	v.SetDefault("device.headless", true)
	v.SetDefault("device.width", 1280)
	v.SetDefault("device.height", 800)
	v.SetDefault("device.settle_duration", "500ms")

	// -- Store --
	v.SetDefault("store.enabled", false)

	// -- Run --
	v.SetDefault("run.output_dir", "uipilot-results")
	v.SetDefault("run.image_format", "png")
	v.SetDefault("run.parallelism", 1)
}

func defaultCacheDir() string {
	home, err := homedir.Dir()
	if err != nil {
		return filepath.Join(".", ".uipilot", "cache")
	}
	return filepath.Join(home, ".uipilot", "cache")
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// API keys are sensitive; take them from the environment, never the file.
	v.BindEnv("ai.models.fast.api_key", "UIPILOT_FAST_API_KEY", "GEMINI_API_KEY")
	v.BindEnv("ai.models.powerful.api_key", "UIPILOT_POWERFUL_API_KEY", "GEMINI_API_KEY")
	v.BindEnv("store.dsn", "UIPILOT_STORE_DSN")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "disk", "memory", "none":
	default:
		return fmt.Errorf("cache.backend must be one of disk, memory, none (got %q)", c.Cache.Backend)
	}
	switch c.Run.ImageFormat {
	case "png", "jpeg":
	default:
		return fmt.Errorf("run.image_format must be png or jpeg (got %q)", c.Run.ImageFormat)
	}
	if c.Run.Parallelism < 1 {
		return fmt.Errorf("run.parallelism must be a positive integer")
	}
	if c.Device.Kind != "web" {
		return fmt.Errorf("unsupported device.kind %q", c.Device.Kind)
	}
	if c.Device.Width <= 0 || c.Device.Height <= 0 {
		return fmt.Errorf("device.width and device.height must be positive")
	}
	if c.Store.Enabled && c.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required when store.enabled is true. Set UIPILOT_STORE_DSN")
	}
	return nil
}
