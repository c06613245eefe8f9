package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jtolds/gls"

	"github.com/assetcache/assetcache/internal/asset"
	"github.com/assetcache/assetcache/pkg/errors"
	"github.com/assetcache/assetcache/pkg/types"
	"github.com/assetcache/assetcache/pkg/utils"
)

// workerKey marks goroutines owned by an AsyncCache pool. Its value is the owning cache.
type workerKey struct{}

var workerContext = gls.NewContextManager()

// AsyncCache loads assets on a pool of worker goroutines. It is safe for concurrent use.
type AsyncCache struct {
	name     string
	loader   asset.Loader
	logger   *utils.StructuredLogger
	recorder types.MetricsRecorder

	mu      sync.Mutex
	cond    *sync.Cond
	entries map[string]asset.Handle
	bytes   int64
	pending map[string]*request
	queue   *requestQueue
	seq     uint64

	workers int // configured pool size
	running int // live worker goroutines
	// drained is closed while no worker goroutine is running.
	drained  chan struct{}
	workerID int
	inFlight int
	stopped  bool
	stats    types.CacheStats

	wg sync.WaitGroup
}

// NewAsyncCache creates a cache with no workers. Requests queue until InitializeWorkers
// starts the pool; Get still works before that by loading on the caller's goroutine.
func NewAsyncCache(opts *Options) *AsyncCache {
	o := opts.resolve("async")
	c := &AsyncCache{
		name:     o.Name,
		loader:   loaderFor(o),
		logger:   o.Logger.WithComponent("async-cache"),
		recorder: o.Recorder,
		entries:  make(map[string]asset.Handle),
		pending:  make(map[string]*request),
		queue:    newRequestQueue(),
	}
	c.cond = sync.NewCond(&c.mu)
	c.drained = make(chan struct{})
	close(c.drained)
	return c
}

// InitializeWorkers sets the pool size to n. It may be called again at any time: extra
// workers are started immediately, surplus workers exit after their current load.
// Queued requests are kept either way.
func (c *AsyncCache) InitializeWorkers(n int) {
	if n < 0 {
		n = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}

	previous := c.workers
	c.workers = n
	for c.running < n {
		c.startWorker()
	}
	c.cond.Broadcast()
	c.updateGauges()

	c.logger.Info("worker pool resized", map[string]interface{}{
		"from":   previous,
		"to":     n,
		"queued": c.queue.Len(),
	})
}

// Workers returns the configured pool size.
func (c *AsyncCache) Workers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.workers
}

// GetAsync requests key without blocking. A cached key resolves immediately; a key
// already being loaded shares that load, raised to priority if it is still queued.
// Higher priorities are loaded first. The caller must Release the future.
func (c *AsyncCache) GetAsync(key string, priority int) *Future {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, _ := c.request(key, priority)
	return f
}

// Get returns a reference to the asset stored under key, waiting for it to load. The
// caller must Release the returned handle.
func (c *AsyncCache) Get(key string) asset.Handle {
	c.mu.Lock()
	f, r := c.request(key, 0)
	for r != nil && r.queued {
		if c.running == 0 || c.onWorker() {
			c.queue.remove(r)
			c.inFlight++
			c.updateGauges()
			c.mu.Unlock()
			c.load(r)
			c.mu.Lock()
			break
		}

		// The pool may shrink to nothing before it reaches r.
		drained := c.drained
		c.mu.Unlock()
		select {
		case <-f.Done():
		case <-drained:
		}
		c.mu.Lock()
	}
	c.mu.Unlock()

	h := f.Wait()
	f.Release()
	return h
}

// Len returns the number of cached keys, failed ones included.
func (c *AsyncCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns the cache counters together with the current queue state.
func (c *AsyncCache) Stats() types.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Entries = len(c.entries)
	stats.Bytes = c.bytes
	stats.QueueDepth = c.queue.Len()
	stats.InFlight = c.inFlight
	stats.Workers = c.workers
	stats.UpdateHitRate()
	return stats
}

// Snapshot describes every cached key, sorted by key. Loads still pending are not listed.
func (c *AsyncCache) Snapshot() []types.EntryInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return snapshot(c.entries)
}

// Invalidate drops the cache's reference to key. A load already pending for key is not
// affected.
func (c *AsyncCache) Invalidate(key string) bool {
	c.mu.Lock()
	h, ok := c.take(key)
	if ok {
		c.recorder.RecordEviction(c.name, 1)
		c.updateGauges()
	}
	c.mu.Unlock()

	h.Release()
	return ok
}

// EvictIdle drops entries that nothing outside the cache has held for at least maxIdle.
func (c *AsyncCache) EvictIdle(maxIdle time.Duration) int {
	c.mu.Lock()
	keys := idleKeys(c.entries, maxIdle)
	evicted := make([]asset.Handle, 0, len(keys))
	for _, key := range keys {
		h, _ := c.take(key)
		evicted = append(evicted, h)
	}
	if len(keys) > 0 {
		c.recorder.RecordEviction(c.name, len(keys))
		c.updateGauges()
	}
	c.mu.Unlock()

	for i := range evicted {
		evicted[i].Release()
	}
	if len(keys) > 0 {
		c.logger.Debug("evicted idle assets", map[string]interface{}{"count": len(keys)})
	}
	return len(keys)
}

// StartIdleSweeper calls EvictIdle every interval until ctx is done or the cache is
// destroyed. A non-positive interval disables sweeping.
func (c *AsyncCache) StartIdleSweeper(ctx context.Context, interval, maxIdle time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.isStopped() {
					return
				}
				c.EvictIdle(maxIdle)
			}
		}
	}()
}

// Destroy stops the pool and releases the cache's references. Queued requests resolve
// to invalid handles with a COMPONENT_STOPPED error, as does every later GetAsync.
// Loads already running finish and resolve their waiters but are not stored.
func (c *AsyncCache) Destroy() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true

	queued := c.queue.drain()
	for _, r := range queued {
		delete(c.pending, r.key)
	}
	entries := c.entries
	c.entries = make(map[string]asset.Handle)
	c.bytes = 0
	c.cond.Broadcast()
	c.updateGauges()
	c.mu.Unlock()

	for _, r := range queued {
		h := stoppedHandle(r.key)
		for _, f := range r.waiters {
			f.resolve(h.Clone())
		}
		h.Release()
	}
	for _, h := range entries {
		h.Release()
	}

	if !c.onWorker() {
		c.wg.Wait()
	}

	c.logger.Info("cache destroyed", map[string]interface{}{
		"entries":   len(entries),
		"abandoned": len(queued),
	})
}

// request finds or creates the pending load for key. The returned request is nil when
// the future is already resolved. c.mu must be held.
func (c *AsyncCache) request(key string, priority int) (*Future, *request) {
	if c.stopped {
		return resolvedFuture(key, stoppedHandle(key)), nil
	}

	if h, ok := c.entries[key]; ok {
		c.stats.Hits++
		c.recorder.RecordRequest(c.name, types.ResultHit)
		return resolvedFuture(key, h.Clone()), nil
	}

	f := newFuture(key)
	if r, ok := c.pending[key]; ok {
		c.stats.Joins++
		c.recorder.RecordRequest(c.name, types.ResultJoin)
		c.queue.raise(r, priority)
		r.waiters = append(r.waiters, f)
		return f, r
	}

	c.stats.Misses++
	c.recorder.RecordRequest(c.name, types.ResultMiss)

	c.seq++
	r := &request{
		id:       uuid.NewString(),
		key:      key,
		priority: priority,
		seq:      c.seq,
		waiters:  []*Future{f},
	}
	c.pending[key] = r
	c.queue.push(r)
	c.cond.Signal()
	c.updateGauges()

	c.logger.Trace("load queued", map[string]interface{}{
		"key":        key,
		"priority":   priority,
		"request_id": r.id,
	})
	return f, r
}

// load reads r's file and resolves every waiter. r must already be out of the queue and
// counted in inFlight.
func (c *AsyncCache) load(r *request) {
	start := time.Now()
	h := c.loader.LoadRequest(r.key, "async-cache", r.id)
	elapsed := time.Since(start)
	size := contentSize(h.Content())

	c.mu.Lock()
	c.inFlight--
	delete(c.pending, r.key)
	waiters := r.waiters
	r.waiters = nil

	c.stats.Loads++
	if !h.IsValid() {
		c.stats.Failures++
	}
	stored := !c.stopped
	if stored {
		c.entries[r.key] = h.Clone()
		c.bytes += size
	}
	c.updateGauges()
	c.mu.Unlock()

	c.recorder.RecordLoad(c.name, elapsed, size, h.IsValid())
	fields := map[string]interface{}{
		"key":        r.key,
		"priority":   r.priority,
		"waiters":    len(waiters),
		"request_id": r.id,
		"duration":   elapsed,
	}
	if h.IsValid() {
		fields["size"] = utils.FormatBytes(size)
		c.logger.Debug("asset loaded", fields)
	} else {
		fields["error"] = h.Err()
		c.logger.Warn("asset load failed", fields)
	}
	if !stored {
		c.logger.Debug("load finished after destroy, result not cached", map[string]interface{}{"key": r.key})
	}

	for _, f := range waiters {
		f.resolve(h.Clone())
	}
	h.Release()
}

func (c *AsyncCache) startWorker() {
	if c.running == 0 {
		c.drained = make(chan struct{})
	}
	c.running++
	c.workerID++
	id := c.workerID
	c.wg.Add(1)

	go workerContext.SetValues(gls.Values{workerKey{}: c}, func() {
		defer c.wg.Done()
		c.work(id)
	})
}

func (c *AsyncCache) work(id int) {
	c.logger.Debug("worker started", map[string]interface{}{"worker": id})

	c.mu.Lock()
	for {
		for !c.stopped && c.running <= c.workers && c.queue.Len() == 0 {
			c.cond.Wait()
		}
		if c.stopped || c.running > c.workers {
			c.running--
			if c.running == 0 {
				close(c.drained)
			}
			c.updateGauges()
			c.mu.Unlock()
			c.logger.Debug("worker stopped", map[string]interface{}{"worker": id})
			return
		}

		r, _ := c.queue.pop()
		c.inFlight++
		c.updateGauges()
		c.mu.Unlock()

		c.load(r)

		c.mu.Lock()
	}
}

// onWorker reports whether the calling goroutine belongs to this cache's pool.
func (c *AsyncCache) onWorker() bool {
	owner, ok := workerContext.GetValue(workerKey{})
	return ok && owner == c
}

func (c *AsyncCache) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// take removes key from the map and returns the cache's reference. c.mu must be held.
func (c *AsyncCache) take(key string) (asset.Handle, bool) {
	h, ok := c.entries[key]
	if !ok {
		return asset.Handle{}, false
	}
	delete(c.entries, key)
	c.bytes -= contentSize(h.Content())
	c.stats.Evictions++
	return h, true
}

// updateGauges publishes the queue and map sizes. c.mu must be held.
func (c *AsyncCache) updateGauges() {
	c.recorder.UpdateCacheState(c.name, len(c.entries), c.bytes)
	c.recorder.UpdateQueue(c.queue.Len(), c.inFlight, c.workers)
}

func stoppedHandle(key string) asset.Handle {
	err := errors.NewError(errors.ErrCodeComponentStopped, "asset cache destroyed").
		WithContext("key", key).
		WithComponent("async-cache")
	return asset.NewHandle(key, nil, err)
}
