package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/assetcache/assetcache/pkg/types"
)

// Collector records asset cache events as Prometheus metrics.
// It implements types.MetricsRecorder.
type Collector struct {
	mu       sync.RWMutex
	config   *Config
	registry *prometheus.Registry

	requestCounter  *prometheus.CounterVec
	loadCounter     *prometheus.CounterVec
	loadDuration    *prometheus.HistogramVec
	loadSize        *prometheus.HistogramVec
	evictionCounter *prometheus.CounterVec
	releaseCounter  prometheus.Counter
	releasedBytes   prometheus.Counter
	entriesGauge    *prometheus.GaugeVec
	bytesGauge      *prometheus.GaugeVec
	queueDepth      prometheus.Gauge
	inFlight        prometheus.Gauge
	workers         prometheus.Gauge

	loads     map[string]*LoadMetrics
	lastReset time.Time

	server *http.Server
}

var _ types.MetricsRecorder = (*Collector)(nil)

// Config represents metrics configuration
type Config struct {
	Enabled   bool              `yaml:"enabled"`
	Port      int               `yaml:"port"`
	Path      string            `yaml:"path"`
	Labels    map[string]string `yaml:"labels"`
	Namespace string            `yaml:"namespace"`
	Subsystem string            `yaml:"subsystem"`
}

// LoadMetrics summarizes the loads performed by one cache
type LoadMetrics struct {
	Count         int64         `json:"count"`
	Failures      int64         `json:"failures"`
	TotalDuration time.Duration `json:"total_duration"`
	TotalSize     int64         `json:"total_size"`
	AvgDuration   time.Duration `json:"avg_duration"`
	LastLoad      time.Time     `json:"last_load"`
}

// NewCollector creates a new metrics collector
func NewCollector(config *Config) (*Collector, error) {
	if config == nil {
		config = &Config{
			Enabled:   true,
			Port:      9464,
			Path:      "/metrics",
			Namespace: "assetcache",
			Labels:    make(map[string]string),
		}
	}

	if !config.Enabled {
		return &Collector{config: config}, nil
	}

	collector := &Collector{
		config:    config,
		registry:  prometheus.NewRegistry(),
		loads:     make(map[string]*LoadMetrics),
		lastReset: time.Now(),
	}

	collector.initMetrics()

	if err := collector.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	return collector, nil
}

// Registry returns the Prometheus registry, nil when metrics are disabled.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns the HTTP handler serving the metrics endpoint and debug pages.
func (c *Collector) Handler() http.Handler {
	mux := http.NewServeMux()
	if !c.config.Enabled {
		mux.HandleFunc("/health", c.healthHandler)
		return mux
	}

	mux.Handle(c.config.Path, promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", c.healthHandler)
	mux.HandleFunc("/debug/loads", c.debugLoadsHandler)
	return mux
}

// Start serves the metrics endpoint in the background
func (c *Collector) Start(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	c.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", c.config.Port),
		Handler:           c.Handler(),
		ReadHeaderTimeout: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	go func() {
		if err := c.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Printf("Metrics server error: %v\n", err)
		}
	}()

	return nil
}

// Stop stops the metrics server
func (c *Collector) Stop(ctx context.Context) error {
	if c.server != nil {
		return c.server.Shutdown(ctx)
	}
	return nil
}

// RecordRequest counts one Get or GetAsync call by how it was satisfied
func (c *Collector) RecordRequest(cache string, result types.RequestResult) {
	if !c.config.Enabled {
		return
	}

	c.requestCounter.With(prometheus.Labels{
		"cache":  cache,
		"result": string(result),
	}).Inc()
}

// RecordLoad records one completed file read
func (c *Collector) RecordLoad(cache string, duration time.Duration, size int64, success bool) {
	if !c.config.Enabled {
		return
	}

	c.mu.Lock()
	m, exists := c.loads[cache]
	if !exists {
		m = &LoadMetrics{}
		c.loads[cache] = m
	}
	m.Count++
	m.TotalDuration += duration
	m.TotalSize += size
	if !success {
		m.Failures++
	}
	m.AvgDuration = time.Duration(int64(m.TotalDuration) / m.Count)
	m.LastLoad = time.Now()
	c.mu.Unlock()

	c.loadCounter.With(prometheus.Labels{
		"cache":  cache,
		"status": map[bool]string{true: "success", false: "error"}[success],
	}).Inc()
	c.loadDuration.With(prometheus.Labels{"cache": cache}).Observe(duration.Seconds())
	if success {
		c.loadSize.With(prometheus.Labels{"cache": cache}).Observe(float64(size))
	}
}

// RecordEviction counts entries dropped by idle eviction or invalidation
func (c *Collector) RecordEviction(cache string, count int) {
	if !c.config.Enabled || count <= 0 {
		return
	}
	c.evictionCounter.With(prometheus.Labels{"cache": cache}).Add(float64(count))
}

// RecordRelease counts shared asset state being freed
func (c *Collector) RecordRelease(size int64) {
	if !c.config.Enabled {
		return
	}
	c.releaseCounter.Inc()
	if size > 0 {
		c.releasedBytes.Add(float64(size))
	}
}

// UpdateCacheState sets the entry and byte gauges for one cache
func (c *Collector) UpdateCacheState(cache string, entries int, bytes int64) {
	if !c.config.Enabled {
		return
	}
	c.entriesGauge.With(prometheus.Labels{"cache": cache}).Set(float64(entries))
	c.bytesGauge.With(prometheus.Labels{"cache": cache}).Set(float64(bytes))
}

// UpdateQueue sets the async scheduler gauges
func (c *Collector) UpdateQueue(depth, inFlight, workers int) {
	if !c.config.Enabled {
		return
	}
	c.queueDepth.Set(float64(depth))
	c.inFlight.Set(float64(inFlight))
	c.workers.Set(float64(workers))
}

// GetMetrics returns a snapshot of the internal load tracking
func (c *Collector) GetMetrics() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	loads := make(map[string]LoadMetrics, len(c.loads))
	for k, v := range c.loads {
		loads[k] = *v
	}

	return map[string]interface{}{
		"loads":      loads,
		"last_reset": c.lastReset,
		"uptime":     time.Since(c.lastReset),
	}
}

// ResetMetrics resets the internal load tracking
func (c *Collector) ResetMetrics() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.loads = make(map[string]*LoadMetrics)
	c.lastReset = time.Now()
}

func (c *Collector) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   c.config.Namespace,
		Subsystem:   c.config.Subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: c.config.Labels,
	}
}

func (c *Collector) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   c.config.Namespace,
		Subsystem:   c.config.Subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: c.config.Labels,
	}
}

func (c *Collector) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   c.config.Namespace,
		Subsystem:   c.config.Subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: c.config.Labels,
		Buckets:     buckets,
	}
}

func (c *Collector) initMetrics() {
	c.requestCounter = prometheus.NewCounterVec(
		c.counterOpts("requests_total", "Asset requests by cache and result"),
		[]string{"cache", "result"},
	)
	c.loadCounter = prometheus.NewCounterVec(
		c.counterOpts("loads_total", "File loads by cache and status"),
		[]string{"cache", "status"},
	)

	c.loadDuration = prometheus.NewHistogramVec(
		c.histogramOpts("load_duration_seconds", "Duration of file loads in seconds",
			prometheus.ExponentialBuckets(0.0001, 2, 16)), // 100µs to ~3s
		[]string{"cache"},
	)
	c.loadSize = prometheus.NewHistogramVec(
		c.histogramOpts("load_size_bytes", "Size of loaded assets in bytes",
			prometheus.ExponentialBuckets(1024, 4, 10)), // 1KB to ~256MB
		[]string{"cache"},
	)

	c.evictionCounter = prometheus.NewCounterVec(
		c.counterOpts("evictions_total", "Entries removed from a cache"),
		[]string{"cache"},
	)
	c.releaseCounter = prometheus.NewCounter(c.counterOpts("releases_total", "Shared asset states freed"))
	c.releasedBytes = prometheus.NewCounter(c.counterOpts("released_bytes_total", "Bytes of content freed"))

	c.entriesGauge = prometheus.NewGaugeVec(c.gaugeOpts("entries", "Cached keys"), []string{"cache"})
	c.bytesGauge = prometheus.NewGaugeVec(c.gaugeOpts("bytes", "Bytes held by cached content"), []string{"cache"})
	c.queueDepth = prometheus.NewGauge(c.gaugeOpts("queue_depth", "Load requests waiting for a worker"))
	c.inFlight = prometheus.NewGauge(c.gaugeOpts("in_flight", "Loads currently being read"))
	c.workers = prometheus.NewGauge(c.gaugeOpts("workers", "Configured worker pool size"))
}

func (c *Collector) registerMetrics() error {
	metrics := []prometheus.Collector{
		c.requestCounter,
		c.loadCounter,
		c.loadDuration,
		c.loadSize,
		c.evictionCounter,
		c.releaseCounter,
		c.releasedBytes,
		c.entriesGauge,
		c.bytesGauge,
		c.queueDepth,
		c.inFlight,
		c.workers,
	}

	for _, metric := range metrics {
		if err := c.registry.Register(metric); err != nil {
			return err
		}
	}

	return nil
}

func (c *Collector) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy","service":"assetcache-metrics"}`))
}

func (c *Collector) debugLoadsHandler(w http.ResponseWriter, r *http.Request) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	w.Header().Set("Content-Type", "text/plain")
	writef := func(format string, args ...interface{}) { _, _ = fmt.Fprintf(w, format, args...) }

	writef("Asset Cache Loads\n")
	writef("=================\n\n")
	writef("Uptime: %v\n\n", time.Since(c.lastReset))

	if len(c.loads) == 0 {
		writef("No loads recorded.\n")
		return
	}

	names := make([]string, 0, len(c.loads))
	for name := range c.loads {
		names = append(names, name)
	}
	sort.Strings(names)

	writef("%-12s %10s %10s %14s %14s\n", "Cache", "Loads", "Failures", "Avg Duration", "Total Bytes")
	for _, name := range names {
		m := c.loads[name]
		writef("%-12s %10d %10d %14v %14d\n", name, m.Count, m.Failures, m.AvgDuration, m.TotalSize)
	}
}
