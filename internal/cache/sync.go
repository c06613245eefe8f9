package cache

import (
	"time"

	"github.com/assetcache/assetcache/internal/asset"
	"github.com/assetcache/assetcache/pkg/types"
	"github.com/assetcache/assetcache/pkg/utils"
)

// SyncCache loads assets on the calling goroutine. It has no locking and must be
// confined to one goroutine.
type SyncCache struct {
	name     string
	loader   asset.Loader
	logger   *utils.StructuredLogger
	recorder types.MetricsRecorder

	entries map[string]asset.Handle
	bytes   int64
	stats   types.CacheStats
}

// NewSyncCache creates an empty cache. opts may be nil.
func NewSyncCache(opts *Options) *SyncCache {
	o := opts.resolve("sync")
	return &SyncCache{
		name:     o.Name,
		loader:   loaderFor(o),
		logger:   o.Logger.WithComponent("sync-cache"),
		recorder: o.Recorder,
		entries:  make(map[string]asset.Handle),
	}
}

// Get returns a reference to the asset stored under key, reading the file on the first
// request. The result may be invalid; a failed key is not read again until it is
// invalidated. The caller must Release the returned handle.
func (c *SyncCache) Get(key string) asset.Handle {
	if h, ok := c.entries[key]; ok {
		c.stats.Hits++
		c.recorder.RecordRequest(c.name, types.ResultHit)
		return h.Clone()
	}

	c.stats.Misses++
	c.recorder.RecordRequest(c.name, types.ResultMiss)

	start := time.Now()
	h := c.loader.Load(key)
	size := contentSize(h.Content())
	c.recorder.RecordLoad(c.name, time.Since(start), size, h.IsValid())

	c.stats.Loads++
	if h.IsValid() {
		c.logger.Debug("asset loaded", map[string]interface{}{
			"key":  key,
			"size": utils.FormatBytes(size),
		})
	} else {
		c.stats.Failures++
		c.logger.Warn("asset load failed", map[string]interface{}{
			"key":   key,
			"error": h.Err(),
		})
	}

	c.entries[key] = h
	c.bytes += size
	c.recorder.UpdateCacheState(c.name, len(c.entries), c.bytes)

	return h.Clone()
}

// Len returns the number of cached keys, failed ones included.
func (c *SyncCache) Len() int {
	return len(c.entries)
}

// Stats returns the cache counters.
func (c *SyncCache) Stats() types.CacheStats {
	stats := c.stats
	stats.Entries = len(c.entries)
	stats.Bytes = c.bytes
	stats.UpdateHitRate()
	return stats
}

// Snapshot describes every cached key, sorted by key.
func (c *SyncCache) Snapshot() []types.EntryInfo {
	return snapshot(c.entries)
}

// Invalidate drops the cache's reference to key. Handles already handed out stay valid.
func (c *SyncCache) Invalidate(key string) bool {
	if !c.remove(key) {
		return false
	}
	c.recorder.RecordEviction(c.name, 1)
	c.recorder.UpdateCacheState(c.name, len(c.entries), c.bytes)
	return true
}

// EvictIdle drops entries that nothing outside the cache has held for at least maxIdle.
func (c *SyncCache) EvictIdle(maxIdle time.Duration) int {
	keys := idleKeys(c.entries, maxIdle)
	for _, key := range keys {
		c.remove(key)
	}
	if len(keys) > 0 {
		c.logger.Debug("evicted idle assets", map[string]interface{}{"count": len(keys)})
		c.recorder.RecordEviction(c.name, len(keys))
		c.recorder.UpdateCacheState(c.name, len(c.entries), c.bytes)
	}
	return len(keys)
}

// Destroy releases every entry. The cache is empty afterwards and may be used again.
func (c *SyncCache) Destroy() {
	for key, h := range c.entries {
		h.Release()
		delete(c.entries, key)
	}
	c.logger.Info("cache destroyed", map[string]interface{}{"loads": c.stats.Loads})
	c.bytes = 0
	c.recorder.UpdateCacheState(c.name, 0, 0)
}

func (c *SyncCache) remove(key string) bool {
	h, ok := c.entries[key]
	if !ok {
		return false
	}
	delete(c.entries, key)
	c.bytes -= contentSize(h.Content())
	c.stats.Evictions++
	h.Release()
	return true
}
