// Package memmon tracks how much loaded asset data a cache keeps resident and who holds it
package memmon

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/assetcache/assetcache/pkg/types"
	"github.com/assetcache/assetcache/pkg/utils"
)

// Source is anything that can describe its cached entries, such as a cache.
type Source interface {
	Snapshot() []types.EntryInfo
}

// MonitorConfig configures residency monitoring behavior
type MonitorConfig struct {
	// SampleInterval is how often to take a sample
	SampleInterval time.Duration

	// GrowthThreshold is the percentage of resident growth over the baseline that triggers an alert
	GrowthThreshold float64

	// IdleThreshold is the share of resident bytes held only by the cache that triggers an alert
	IdleThreshold float64

	// MaxSamples is the number of samples to keep in history
	MaxSamples int

	// Logger for monitoring events
	Logger *utils.StructuredLogger
}

// DefaultMonitorConfig returns sensible defaults
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		SampleInterval:  30 * time.Second,
		GrowthThreshold: 50.0,
		IdleThreshold:   0.75,
		MaxSamples:      100,
	}
}

// Sample is one observation of a cache's residency.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`

	Entries int `json:"entries"`
	Failed  int `json:"failed"`
	InUse   int `json:"in_use"`

	ResidentBytes int64 `json:"resident_bytes"`
	// InUseBytes is content held by at least one caller besides the cache.
	InUseBytes int64 `json:"in_use_bytes"`
	// IdleBytes is content only the cache holds.
	IdleBytes int64 `json:"idle_bytes"`
	// OldestIdle is the longest time any entry has been held only by the cache.
	OldestIdle time.Duration `json:"oldest_idle"`

	HeapAlloc    uint64 `json:"heap_alloc"`
	NumGoroutine int    `json:"num_goroutine"`
}

// IdleRatio is the share of resident bytes nobody outside the cache uses.
func (s Sample) IdleRatio() float64 {
	if s.ResidentBytes == 0 {
		return 0
	}
	return float64(s.IdleBytes) / float64(s.ResidentBytes)
}

// String summarizes the sample on one line.
func (s Sample) String() string {
	return fmt.Sprintf("%d entries (%d failed), %s resident: %s in use by %d, %s idle",
		s.Entries, s.Failed,
		utils.FormatBytes(s.ResidentBytes),
		utils.FormatBytes(s.InUseBytes), s.InUse,
		utils.FormatBytes(s.IdleBytes))
}

// AlertType represents the type of residency alert
type AlertType int

const (
	AlertTypeResidentGrowth AlertType = iota
	AlertTypeIdleRetention
)

// String returns the string representation of alert type
func (t AlertType) String() string {
	switch t {
	case AlertTypeResidentGrowth:
		return "resident_growth"
	case AlertTypeIdleRetention:
		return "idle_retention"
	default:
		return "unknown"
	}
}

// Alert represents a residency alert
type Alert struct {
	Timestamp time.Time
	AlertType AlertType
	Message   string
	Current   int64
	Baseline  int64
	Value     float64
}

// Take builds a sample from one snapshot of source.
func Take(source Source) Sample {
	sample := Sample{
		Timestamp:    time.Now(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	sample.HeapAlloc = memStats.HeapAlloc

	for _, entry := range source.Snapshot() {
		sample.Entries++
		if !entry.Valid {
			sample.Failed++
			continue
		}
		sample.ResidentBytes += entry.Size
		if entry.InUse() {
			sample.InUse++
			sample.InUseBytes += entry.Size
			continue
		}
		sample.IdleBytes += entry.Size
		if entry.Idle > sample.OldestIdle {
			sample.OldestIdle = entry.Idle
		}
	}

	return sample
}

// Monitor samples a Source periodically and raises alerts when resident data grows or
// sits unused.
type Monitor struct {
	config MonitorConfig
	logger *utils.StructuredLogger
	source Source

	mu          sync.RWMutex
	samples     []Sample
	baselineSet bool
	baseline    Sample
	current     Sample
	alerts      []Alert

	stopCh chan struct{}
	wg     sync.WaitGroup
	active int32
}

// NewMonitor creates a new residency monitor for source
func NewMonitor(source Source, config MonitorConfig) *Monitor {
	if config.Logger == nil {
		config.Logger = utils.NewDiscardLogger()
	}
	if config.MaxSamples <= 0 {
		config.MaxSamples = DefaultMonitorConfig().MaxSamples
	}

	return &Monitor{
		config:  config,
		logger:  config.Logger.WithComponent("memmon"),
		source:  source,
		samples: make([]Sample, 0, config.MaxSamples),
		stopCh:  make(chan struct{}),
	}
}

// Start begins sampling in the background
func (m *Monitor) Start(ctx context.Context) error {
	if m.config.SampleInterval <= 0 {
		return fmt.Errorf("sample interval must be positive, got %v", m.config.SampleInterval)
	}
	if !atomic.CompareAndSwapInt32(&m.active, 0, 1) {
		return fmt.Errorf("monitor already running")
	}

	m.logger.Info("Starting residency monitor", map[string]interface{}{
		"sample_interval": m.config.SampleInterval,
	})

	m.wg.Add(1)
	go m.monitorLoop(ctx)

	return nil
}

// Stop stops sampling
func (m *Monitor) Stop() error {
	if !atomic.CompareAndSwapInt32(&m.active, 1, 0) {
		return nil // Already stopped
	}

	close(m.stopCh)
	m.wg.Wait()
	return nil
}

func (m *Monitor) monitorLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.SampleInterval)
	defer ticker.Stop()

	m.Sample()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.Sample()
		}
	}
}

// Sample takes a sample now, records it and checks it against the alert thresholds.
func (m *Monitor) Sample() Sample {
	sample := Take(m.source)

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.baselineSet {
		m.baseline = sample
		m.baselineSet = true
	}
	m.current = sample

	m.samples = append(m.samples, sample)
	if len(m.samples) > m.config.MaxSamples {
		m.samples = m.samples[1:]
	}

	m.analyze()
	return sample
}

// analyze must be called with the lock held
func (m *Monitor) analyze() {
	baseline, current := m.baseline, m.current

	if m.config.GrowthThreshold > 0 && baseline.ResidentBytes > 0 {
		growthPct := (float64(current.ResidentBytes) - float64(baseline.ResidentBytes)) / float64(baseline.ResidentBytes) * 100
		if growthPct > m.config.GrowthThreshold {
			m.alert(AlertTypeResidentGrowth, fmt.Sprintf(
				"Resident asset data grew by %.2f%% (from %s to %s)",
				growthPct, utils.FormatBytes(baseline.ResidentBytes), utils.FormatBytes(current.ResidentBytes),
			), current.ResidentBytes, baseline.ResidentBytes, growthPct)
		}
	}

	if m.config.IdleThreshold > 0 && current.IdleRatio() > m.config.IdleThreshold {
		m.alert(AlertTypeIdleRetention, fmt.Sprintf(
			"%.0f%% of resident asset data is held only by the cache (%s, oldest idle %v)",
			current.IdleRatio()*100, utils.FormatBytes(current.IdleBytes), current.OldestIdle,
		), current.IdleBytes, current.ResidentBytes, current.IdleRatio())
	}
}

func (m *Monitor) alert(alertType AlertType, message string, current, baseline int64, value float64) {
	m.alerts = append(m.alerts, Alert{
		Timestamp: time.Now(),
		AlertType: alertType,
		Message:   message,
		Current:   current,
		Baseline:  baseline,
		Value:     value,
	})

	m.logger.Warn("Residency alert", map[string]interface{}{
		"type":     alertType.String(),
		"message":  message,
		"current":  current,
		"baseline": baseline,
	})
}

// Current returns the latest sample
func (m *Monitor) Current() Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// GetAlerts returns all alerts raised so far
func (m *Monitor) GetAlerts() []Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	alerts := make([]Alert, len(m.alerts))
	copy(alerts, m.alerts)
	return alerts
}

// GetSamples returns the sample history
func (m *Monitor) GetSamples() []Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()

	samples := make([]Sample, len(m.samples))
	copy(samples, m.samples)
	return samples
}

// ResetBaseline makes the latest sample the new baseline
func (m *Monitor) ResetBaseline() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baseline = m.current
}

// ClearAlerts clears all alerts
func (m *Monitor) ClearAlerts() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = nil
}
