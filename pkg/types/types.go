package types

import "time"

// CacheStats represents asset cache statistics
type CacheStats struct {
	Hits       uint64  `json:"hits"`
	Misses     uint64  `json:"misses"`
	Joins      uint64  `json:"joins"`
	Loads      uint64  `json:"loads"`
	Failures   uint64  `json:"failures"`
	Evictions  uint64  `json:"evictions"`
	Entries    int     `json:"entries"`
	Bytes      int64   `json:"bytes"`
	QueueDepth int     `json:"queue_depth"`
	InFlight   int     `json:"in_flight"`
	Workers    int     `json:"workers"`
	HitRate    float64 `json:"hit_rate"`
}

// UpdateHitRate recomputes HitRate from the hit, join and miss counters.
// Joining an in-flight load counts as a hit.
func (s *CacheStats) UpdateHitRate() {
	total := s.Hits + s.Joins + s.Misses
	if total == 0 {
		s.HitRate = 0
		return
	}
	s.HitRate = float64(s.Hits+s.Joins) / float64(total)
}

// EntryInfo describes one cached key for profilers and eviction policies.
type EntryInfo struct {
	Key      string `json:"key"`
	Size     int64  `json:"size"`
	Valid    bool   `json:"valid"`
	Error    string `json:"error,omitempty"`
	RefCount int64  `json:"ref_count"`
	// Idle is how long only the cache has held the entry; negative while in use.
	Idle time.Duration `json:"idle"`
}

// InUse reports whether anything besides the cache holds the entry.
func (e EntryInfo) InUse() bool {
	return e.RefCount > 1
}

// RequestResult labels how a cache request was satisfied.
type RequestResult string

const (
	ResultHit  RequestResult = "hit"
	ResultMiss RequestResult = "miss"
	ResultJoin RequestResult = "join"
)
