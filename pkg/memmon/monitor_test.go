package memmon

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/assetcache/assetcache/pkg/types"
)

// staticSource returns whatever entries it was last given.
type staticSource struct {
	mu      sync.Mutex
	entries []types.EntryInfo
}

func (s *staticSource) Snapshot() []types.EntryInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.EntryInfo(nil), s.entries...)
}

func (s *staticSource) set(entries ...types.EntryInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = entries
}

func TestTake(t *testing.T) {
	source := &staticSource{}
	source.set(
		types.EntryInfo{Key: "held", Size: 100, Valid: true, RefCount: 3, Idle: -1},
		types.EntryInfo{Key: "idle-old", Size: 40, Valid: true, RefCount: 1, Idle: time.Minute},
		types.EntryInfo{Key: "idle-new", Size: 60, Valid: true, RefCount: 1, Idle: time.Second},
		types.EntryInfo{Key: "broken", Valid: false, RefCount: 1, Error: "FILE_NOT_FOUND"},
	)

	sample := Take(source)

	if sample.Entries != 4 || sample.Failed != 1 || sample.InUse != 1 {
		t.Errorf("Entries/Failed/InUse = %d/%d/%d, want 4/1/1", sample.Entries, sample.Failed, sample.InUse)
	}
	if sample.ResidentBytes != 200 {
		t.Errorf("ResidentBytes = %d, want 200", sample.ResidentBytes)
	}
	if sample.InUseBytes != 100 || sample.IdleBytes != 100 {
		t.Errorf("InUseBytes/IdleBytes = %d/%d, want 100/100", sample.InUseBytes, sample.IdleBytes)
	}
	if sample.OldestIdle != time.Minute {
		t.Errorf("OldestIdle = %v, want 1m", sample.OldestIdle)
	}
	if got := sample.IdleRatio(); got != 0.5 {
		t.Errorf("IdleRatio() = %v, want 0.5", got)
	}
	if !strings.Contains(sample.String(), "4 entries (1 failed)") {
		t.Errorf("String() = %q", sample.String())
	}
}

func TestTake_Empty(t *testing.T) {
	sample := Take(&staticSource{})
	if sample.Entries != 0 || sample.IdleRatio() != 0 {
		t.Errorf("empty source sample = %+v", sample)
	}
	if sample.NumGoroutine == 0 {
		t.Error("expected goroutine count to be recorded")
	}
}

func TestMonitor_Alerts(t *testing.T) {
	source := &staticSource{}
	source.set(types.EntryInfo{Key: "a", Size: 100, Valid: true, RefCount: 2, Idle: -1})

	config := DefaultMonitorConfig()
	config.GrowthThreshold = 50
	config.IdleThreshold = 0.75
	monitor := NewMonitor(source, config)

	monitor.Sample()
	if alerts := monitor.GetAlerts(); len(alerts) != 0 {
		t.Fatalf("baseline sample raised %d alerts", len(alerts))
	}

	source.set(
		types.EntryInfo{Key: "a", Size: 100, Valid: true, RefCount: 1, Idle: time.Second},
		types.EntryInfo{Key: "b", Size: 300, Valid: true, RefCount: 1, Idle: time.Second},
	)
	monitor.Sample()

	alerts := monitor.GetAlerts()
	if len(alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %d: %+v", len(alerts), alerts)
	}
	if alerts[0].AlertType != AlertTypeResidentGrowth {
		t.Errorf("first alert = %v, want resident_growth", alerts[0].AlertType)
	}
	if alerts[1].AlertType != AlertTypeIdleRetention {
		t.Errorf("second alert = %v, want idle_retention", alerts[1].AlertType)
	}

	monitor.ResetBaseline()
	monitor.ClearAlerts()
	source.set(types.EntryInfo{Key: "b", Size: 300, Valid: true, RefCount: 5, Idle: -1})
	monitor.Sample()
	if alerts := monitor.GetAlerts(); len(alerts) != 0 {
		t.Errorf("expected no alerts after reset, got %+v", alerts)
	}
}

func TestMonitor_SampleHistory(t *testing.T) {
	config := DefaultMonitorConfig()
	config.MaxSamples = 3
	monitor := NewMonitor(&staticSource{}, config)

	for i := 0; i < 5; i++ {
		monitor.Sample()
	}

	if got := len(monitor.GetSamples()); got != 3 {
		t.Errorf("expected history capped at 3, got %d", got)
	}
	if monitor.Current().Timestamp.IsZero() {
		t.Error("expected current sample to be set")
	}
}

func TestMonitor_StartStop(t *testing.T) {
	config := DefaultMonitorConfig()
	config.SampleInterval = 10 * time.Millisecond
	monitor := NewMonitor(&staticSource{}, config)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := monitor.Start(ctx); err != nil {
		t.Fatalf("Failed to start monitor: %v", err)
	}
	if err := monitor.Start(ctx); err == nil {
		t.Error("expected error starting a running monitor")
	}

	deadline := time.Now().Add(time.Second)
	for len(monitor.GetSamples()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := len(monitor.GetSamples()); got < 2 {
		t.Errorf("Expected at least 2 samples, got %d", got)
	}

	if err := monitor.Stop(); err != nil {
		t.Fatalf("Failed to stop monitor: %v", err)
	}
	if err := monitor.Stop(); err != nil {
		t.Errorf("second Stop returned %v", err)
	}
}

func TestMonitor_StartRejectsZeroInterval(t *testing.T) {
	monitor := NewMonitor(&staticSource{}, MonitorConfig{})
	if err := monitor.Start(context.Background()); err == nil {
		t.Error("expected error for zero sample interval")
	}
}
