package types

import "time"

// MetricsRecorder receives cache events. Implementations must be safe for concurrent use.
type MetricsRecorder interface {
	RecordRequest(cache string, result RequestResult)
	RecordLoad(cache string, duration time.Duration, size int64, success bool)
	RecordEviction(cache string, count int)
	RecordRelease(size int64)
	UpdateCacheState(cache string, entries int, bytes int64)
	UpdateQueue(depth, inFlight, workers int)
}

// NopRecorder discards all events.
type NopRecorder struct{}

func (NopRecorder) RecordRequest(string, RequestResult)           {}
func (NopRecorder) RecordLoad(string, time.Duration, int64, bool) {}
func (NopRecorder) RecordEviction(string, int)                    {}
func (NopRecorder) RecordRelease(int64)                           {}
func (NopRecorder) UpdateCacheState(string, int, int64)           {}
func (NopRecorder) UpdateQueue(int, int, int)                     {}
