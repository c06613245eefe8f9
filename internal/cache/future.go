package cache

import (
	"context"
	"sync"

	"github.com/assetcache/assetcache/internal/asset"
)

// Future is the pending result of GetAsync. It holds one reference to the resolved
// handle until Release is called.
type Future struct {
	key  string
	done chan struct{}

	mu       sync.Mutex
	handle   asset.Handle
	released bool
}

func newFuture(key string) *Future {
	return &Future{key: key, done: make(chan struct{})}
}

// resolvedFuture returns a future that already owns h.
func resolvedFuture(key string, h asset.Handle) *Future {
	f := newFuture(key)
	f.resolve(h)
	return f
}

// resolve hands ownership of h to the future. It must be called exactly once.
func (f *Future) resolve(h asset.Handle) {
	f.mu.Lock()
	if f.released {
		f.mu.Unlock()
		h.Release()
		close(f.done)
		return
	}
	f.handle = h
	close(f.done)
	f.mu.Unlock()
}

// Key returns the requested key.
func (f *Future) Key() string {
	return f.key
}

// Done is closed once the load has finished.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the load finishes and returns a new reference the caller must
// Release. It returns an empty handle if the future was already released.
func (f *Future) Wait() asset.Handle {
	<-f.done
	return f.clone()
}

// WaitContext is Wait with cancellation. The load itself is not canceled.
func (f *Future) WaitContext(ctx context.Context) (asset.Handle, error) {
	select {
	case <-f.done:
		return f.clone(), nil
	case <-ctx.Done():
		return asset.Handle{}, ctx.Err()
	}
}

// Release drops the future's reference. It may be called before the load finishes.
func (f *Future) Release() {
	f.mu.Lock()
	f.released = true
	h := f.handle.Move()
	f.mu.Unlock()
	h.Release()
}

func (f *Future) clone() asset.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handle.Clone()
}
