/*
Package config loads and validates asset cache configuration.

Configuration is layered: NewDefault provides defaults, LoadFromFile overlays a YAML
file and LoadFromEnv applies ASSETCACHE_* environment overrides. Validate should run
after all layers are applied.

Example file:

	global:
	  log_level: INFO
	  log_format: text
	cache:
	  workers: 4
	  default_priority: 0
	  max_asset_size: 256MB
	  idle_eviction:
	    enabled: true
	    interval: 1m
	    max_idle: 10m
	monitoring:
	  metrics:
	    enabled: true
	    port: 9464
	    path: /metrics

Environment variables:

	ASSETCACHE_LOG_LEVEL, ASSETCACHE_LOG_FORMAT, ASSETCACHE_LOG_FILE
	ASSETCACHE_WORKERS, ASSETCACHE_DEFAULT_PRIORITY, ASSETCACHE_MAX_ASSET_SIZE
	ASSETCACHE_IDLE_EVICTION, ASSETCACHE_IDLE_MAX
	ASSETCACHE_METRICS_ENABLED, ASSETCACHE_METRICS_PORT
*/
package config
