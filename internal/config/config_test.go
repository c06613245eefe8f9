package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewDefault(t *testing.T) {
	cfg := NewDefault()

	if cfg.Global.LogLevel != "INFO" {
		t.Errorf("Expected LogLevel to be INFO, got %s", cfg.Global.LogLevel)
	}
	if cfg.Cache.Workers != 4 {
		t.Errorf("Expected Workers to be 4, got %d", cfg.Cache.Workers)
	}
	if cfg.Cache.IdleEviction.Enabled {
		t.Error("Expected idle eviction to be disabled by default")
	}
	if cfg.Monitoring.Metrics.Path != "/metrics" {
		t.Errorf("Expected metrics path /metrics, got %s", cfg.Monitoring.Metrics.Path)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Configuration)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(cfg *Configuration) {},
		},
		{
			name:    "invalid log level",
			mutate:  func(cfg *Configuration) { cfg.Global.LogLevel = "LOUD" },
			wantErr: "invalid log_level",
		},
		{
			name:    "invalid log format",
			mutate:  func(cfg *Configuration) { cfg.Global.LogFormat = "xml" },
			wantErr: "invalid log_format",
		},
		{
			name:    "zero workers",
			mutate:  func(cfg *Configuration) { cfg.Cache.Workers = 0 },
			wantErr: "workers must be greater than 0",
		},
		{
			name:    "unparseable max asset size",
			mutate:  func(cfg *Configuration) { cfg.Cache.MaxAssetSize = "huge" },
			wantErr: "invalid max_asset_size",
		},
		{
			name: "idle eviction without interval",
			mutate: func(cfg *Configuration) {
				cfg.Cache.IdleEviction.Enabled = true
				cfg.Cache.IdleEviction.Interval = 0
			},
			wantErr: "idle_eviction.interval",
		},
		{
			name: "idle eviction without max idle",
			mutate: func(cfg *Configuration) {
				cfg.Cache.IdleEviction.Enabled = true
				cfg.Cache.IdleEviction.MaxIdle = 0
			},
			wantErr: "idle_eviction.max_idle",
		},
		{
			name: "metrics port out of range",
			mutate: func(cfg *Configuration) {
				cfg.Monitoring.Metrics.Enabled = true
				cfg.Monitoring.Metrics.Port = 70000
			},
			wantErr: "metrics port out of range",
		},
		{
			name: "metrics path without slash",
			mutate: func(cfg *Configuration) {
				cfg.Monitoring.Metrics.Enabled = true
				cfg.Monitoring.Metrics.Path = "metrics"
			},
			wantErr: "metrics path must start with /",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefault()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	configContent := `
global:
  log_level: DEBUG
  log_format: json
cache:
  workers: 8
  default_priority: 10
  max_asset_size: 256MB
  idle_eviction:
    enabled: true
    interval: 30s
    max_idle: 5m
monitoring:
  metrics:
    enabled: true
    port: 9100
`
	if err := os.WriteFile(configFile, []byte(configContent), 0600); err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}

	cfg := NewDefault()
	if err := cfg.LoadFromFile(configFile); err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Global.LogLevel != "DEBUG" {
		t.Errorf("Expected LogLevel DEBUG, got %s", cfg.Global.LogLevel)
	}
	if cfg.Cache.Workers != 8 {
		t.Errorf("Expected Workers 8, got %d", cfg.Cache.Workers)
	}
	if cfg.Cache.DefaultPriority != 10 {
		t.Errorf("Expected DefaultPriority 10, got %d", cfg.Cache.DefaultPriority)
	}
	if cfg.Cache.IdleEviction.Interval != 30*time.Second {
		t.Errorf("Expected Interval 30s, got %v", cfg.Cache.IdleEviction.Interval)
	}
	if cfg.Cache.IdleEviction.MaxIdle != 5*time.Minute {
		t.Errorf("Expected MaxIdle 5m, got %v", cfg.Cache.IdleEviction.MaxIdle)
	}
	if cfg.Monitoring.Metrics.Port != 9100 {
		t.Errorf("Expected metrics port 9100, got %d", cfg.Monitoring.Metrics.Port)
	}
	if cfg.Monitoring.Metrics.Path != "/metrics" {
		t.Errorf("Expected unset path to keep its default, got %q", cfg.Monitoring.Metrics.Path)
	}

	size, err := cfg.MaxAssetSizeBytes()
	if err != nil {
		t.Fatalf("MaxAssetSizeBytes() error = %v", err)
	}
	if size != 256*1024*1024 {
		t.Errorf("Expected 256MB limit, got %d", size)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config should validate: %v", err)
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	cfg := NewDefault()
	if err := cfg.LoadFromFile("/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error when loading non-existent config file")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("cache: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := cfg.LoadFromFile(bad); err == nil || !strings.Contains(err.Error(), "failed to parse") {
		t.Errorf("Expected parse error, got %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ASSETCACHE_LOG_LEVEL", "debug")
	t.Setenv("ASSETCACHE_WORKERS", "2")
	t.Setenv("ASSETCACHE_DEFAULT_PRIORITY", "-5")
	t.Setenv("ASSETCACHE_MAX_ASSET_SIZE", "1GB")
	t.Setenv("ASSETCACHE_IDLE_EVICTION", "true")
	t.Setenv("ASSETCACHE_IDLE_MAX", "90s")
	t.Setenv("ASSETCACHE_METRICS_ENABLED", "TRUE")
	t.Setenv("ASSETCACHE_METRICS_PORT", "9200")

	cfg := NewDefault()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Global.LogLevel != "DEBUG" {
		t.Errorf("Expected LogLevel DEBUG, got %s", cfg.Global.LogLevel)
	}
	if cfg.Cache.Workers != 2 {
		t.Errorf("Expected Workers 2, got %d", cfg.Cache.Workers)
	}
	if cfg.Cache.DefaultPriority != -5 {
		t.Errorf("Expected DefaultPriority -5, got %d", cfg.Cache.DefaultPriority)
	}
	if cfg.Cache.MaxAssetSize != "1GB" {
		t.Errorf("Expected MaxAssetSize 1GB, got %s", cfg.Cache.MaxAssetSize)
	}
	if !cfg.Cache.IdleEviction.Enabled || cfg.Cache.IdleEviction.MaxIdle != 90*time.Second {
		t.Errorf("Unexpected idle eviction config: %+v", cfg.Cache.IdleEviction)
	}
	if !cfg.Monitoring.Metrics.Enabled || cfg.Monitoring.Metrics.Port != 9200 {
		t.Errorf("Unexpected metrics config: %+v", cfg.Monitoring.Metrics)
	}
}

func TestLoadFromEnvInvalidNumber(t *testing.T) {
	t.Setenv("ASSETCACHE_WORKERS", "many")

	cfg := NewDefault()
	if err := cfg.LoadFromEnv(); err == nil {
		t.Error("Expected error for non-numeric ASSETCACHE_WORKERS")
	}
}

func TestSaveToFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "nested", "config.yaml")

	original := NewDefault()
	original.Cache.Workers = 6
	original.Cache.MaxAssetSize = "64MB"
	original.Cache.IdleEviction.MaxIdle = 3 * time.Minute

	if err := original.SaveToFile(configFile); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	info, err := os.Stat(configFile)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected mode 0600, got %v", info.Mode().Perm())
	}

	loaded := NewDefault()
	if err := loaded.LoadFromFile(configFile); err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if loaded.Cache.Workers != 6 || loaded.Cache.MaxAssetSize != "64MB" {
		t.Errorf("round trip lost cache settings: %+v", loaded.Cache)
	}
	if loaded.Cache.IdleEviction.MaxIdle != 3*time.Minute {
		t.Errorf("round trip lost max_idle: %v", loaded.Cache.IdleEviction.MaxIdle)
	}
}
