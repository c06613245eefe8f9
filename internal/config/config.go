package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v2"

	"github.com/assetcache/assetcache/pkg/utils"
)

// Configuration represents the complete application configuration
type Configuration struct {
	Global     GlobalConfig     `yaml:"global"`
	Cache      CacheConfig      `yaml:"cache"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

// GlobalConfig represents global application settings
type GlobalConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	LogFile   string `yaml:"log_file"`
}

// CacheConfig represents asset cache settings
type CacheConfig struct {
	Workers         int                `yaml:"workers"`
	DefaultPriority int                `yaml:"default_priority"`
	MaxAssetSize    string             `yaml:"max_asset_size"`
	IdleEviction    IdleEvictionConfig `yaml:"idle_eviction"`
}

// IdleEvictionConfig controls the background sweep that drops entries nobody holds
type IdleEvictionConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	MaxIdle  time.Duration `yaml:"max_idle"`
}

// MonitoringConfig represents monitoring settings
type MonitoringConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig represents Prometheus metrics settings
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// NewDefault returns a configuration with sensible defaults
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel:  "INFO",
			LogFormat: "text",
			LogFile:   "",
		},
		Cache: CacheConfig{
			Workers:         4,
			DefaultPriority: 0,
			MaxAssetSize:    "",
			IdleEviction: IdleEvictionConfig{
				Enabled:  false,
				Interval: time.Minute,
				MaxIdle:  10 * time.Minute,
			},
		},
		Monitoring: MonitoringConfig{
			Metrics: MetricsConfig{
				Enabled:   false,
				Port:      9464,
				Path:      "/metrics",
				Namespace: "assetcache",
			},
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv overrides settings from ASSETCACHE_* environment variables
func (c *Configuration) LoadFromEnv() error {
	if val := os.Getenv("ASSETCACHE_LOG_LEVEL"); val != "" {
		c.Global.LogLevel = strings.ToUpper(val)
	}
	if val := os.Getenv("ASSETCACHE_LOG_FORMAT"); val != "" {
		c.Global.LogFormat = strings.ToLower(val)
	}
	if val := os.Getenv("ASSETCACHE_LOG_FILE"); val != "" {
		c.Global.LogFile = val
	}

	if val := os.Getenv("ASSETCACHE_WORKERS"); val != "" {
		workers, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid ASSETCACHE_WORKERS: %w", err)
		}
		c.Cache.Workers = workers
	}
	if val := os.Getenv("ASSETCACHE_DEFAULT_PRIORITY"); val != "" {
		priority, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid ASSETCACHE_DEFAULT_PRIORITY: %w", err)
		}
		c.Cache.DefaultPriority = priority
	}
	if val := os.Getenv("ASSETCACHE_MAX_ASSET_SIZE"); val != "" {
		c.Cache.MaxAssetSize = val
	}
	if val := os.Getenv("ASSETCACHE_IDLE_EVICTION"); val != "" {
		c.Cache.IdleEviction.Enabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("ASSETCACHE_IDLE_MAX"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid ASSETCACHE_IDLE_MAX: %w", err)
		}
		c.Cache.IdleEviction.MaxIdle = d
	}

	if val := os.Getenv("ASSETCACHE_METRICS_ENABLED"); val != "" {
		c.Monitoring.Metrics.Enabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("ASSETCACHE_METRICS_PORT"); val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid ASSETCACHE_METRICS_PORT: %w", err)
		}
		c.Monitoring.Metrics.Port = port
	}

	return nil
}

// SaveToFile atomically replaces filename with the YAML form of the configuration
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := atomic.WriteFile(filename, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	// atomic.WriteFile keeps the temp file's mode for new files
	if err := os.Chmod(filename, 0600); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	return nil
}

// MaxAssetSizeBytes returns the configured asset size limit, 0 meaning unlimited
func (c *Configuration) MaxAssetSizeBytes() (int64, error) {
	if strings.TrimSpace(c.Cache.MaxAssetSize) == "" {
		return 0, nil
	}
	return utils.ParseBytes(c.Cache.MaxAssetSize)
}

// Validate validates the configuration
func (c *Configuration) Validate() error {
	if _, err := utils.ParseLogLevel(c.Global.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %s (must be one of: TRACE, DEBUG, INFO, WARN, ERROR)",
			c.Global.LogLevel)
	}
	if _, err := utils.ParseLogFormat(c.Global.LogFormat); err != nil {
		return fmt.Errorf("invalid log_format: %s (must be text or json)", c.Global.LogFormat)
	}

	if c.Cache.Workers <= 0 {
		return fmt.Errorf("workers must be greater than 0")
	}

	size, err := c.MaxAssetSizeBytes()
	if err != nil {
		return fmt.Errorf("invalid max_asset_size: %w", err)
	}
	if size < 0 {
		return fmt.Errorf("max_asset_size cannot be negative")
	}

	if c.Cache.IdleEviction.Enabled {
		if c.Cache.IdleEviction.Interval <= 0 {
			return fmt.Errorf("idle_eviction.interval must be greater than 0")
		}
		if c.Cache.IdleEviction.MaxIdle <= 0 {
			return fmt.Errorf("idle_eviction.max_idle must be greater than 0")
		}
	}

	if c.Monitoring.Metrics.Enabled {
		if c.Monitoring.Metrics.Port <= 0 || c.Monitoring.Metrics.Port > 65535 {
			return fmt.Errorf("metrics port out of range: %d", c.Monitoring.Metrics.Port)
		}
		if !strings.HasPrefix(c.Monitoring.Metrics.Path, "/") {
			return fmt.Errorf("metrics path must start with /: %q", c.Monitoring.Metrics.Path)
		}
	}

	return nil
}
