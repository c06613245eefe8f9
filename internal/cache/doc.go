/*
Package cache keeps loaded assets keyed by path and hands out counted references to them.

Two caches share the same lookup semantics:

	SyncCache   single goroutine, loads on the caller's goroutine
	AsyncCache  any goroutine, loads on a bounded worker pool

Every Get returns an asset.Handle the caller owns and must Release. The cache keeps one
reference of its own per key, so an entry whose RefCount is 1 is held by nothing else.
Snapshot exposes that view and EvictIdle uses it to drop entries nobody has touched for a
while.

Failed loads are cached as invalid handles. Asking for the same key again returns the
same failure without touching the file system; Invalidate removes the entry so the next
request reads the file again.

# Scheduling

AsyncCache queues one load request per key. Requests are served highest priority first
and in arrival order within a priority. A GetAsync for a key whose load is still queued
joins that request and raises its priority if the new caller asked for more.

	c := cache.NewAsyncCache(nil)
	c.InitializeWorkers(4)
	defer c.Destroy()

	f := c.GetAsync("textures/sky.png", 200)
	defer f.Release()

	h := f.Wait()
	defer h.Release()

Get blocks until the asset is available. When called from one of the cache's own
workers, or while no workers are running, it takes the queued load and runs it on the
calling goroutine instead of waiting for the pool.

# Teardown

Destroy stops the workers, resolves queued requests with invalid handles carrying a
COMPONENT_STOPPED error and releases the cache's own references. Handles callers already
hold remain valid until they are released.
*/
package cache
