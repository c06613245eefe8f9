package asset

import (
	"sync"
	"sync/atomic"
	"time"
)

// NotIdle is what IdleDuration reports while the handle has more than one holder.
const NotIdle time.Duration = -1

// ReleaseFunc is called once, after the last reference to a load result is dropped.
type ReleaseFunc func(name string, content *Content)

var now = time.Now

// state is shared by every Handle cloned from the same origin.
type state struct {
	name      string
	content   *Content
	err       error
	onRelease ReleaseFunc

	// mu orders refcount transitions so the idle timestamp always matches the count.
	mu        sync.Mutex
	refs      atomic.Int64
	idleSince atomic.Int64 // unix milliseconds, 0 while not idle
}

// Handle is a counted reference to a loaded asset, or to a failed load.
// The zero Handle is empty and refers to nothing.
type Handle struct {
	s *state
}

// NewHandle returns the first reference to a load result. content is nil when
// the load failed, in which case err describes why.
func NewHandle(name string, content *Content, err error) Handle {
	return newHandle(name, content, err, nil)
}

func newHandle(name string, content *Content, err error, onRelease ReleaseFunc) Handle {
	s := &state{
		name:      name,
		content:   content,
		err:       err,
		onRelease: onRelease,
	}
	s.refs.Store(1)
	return Handle{s: s}
}

// Clone returns a new counted reference to the same shared state.
func (h *Handle) Clone() Handle {
	s := h.s
	if s == nil {
		return Handle{}
	}

	s.mu.Lock()
	n := s.refs.Add(1)
	if n <= 1 {
		s.mu.Unlock()
		panic("asset: clone of a released handle")
	}
	if n == 2 {
		s.idleSince.Store(0)
	}
	s.mu.Unlock()

	return Handle{s: s}
}

// Move transfers the reference to the returned handle and leaves h empty.
func (h *Handle) Move() Handle {
	moved := Handle{s: h.s}
	h.s = nil
	return moved
}

// Release drops this reference and leaves h empty. Releasing an empty handle is a no-op.
func (h *Handle) Release() {
	s := h.s
	if s == nil {
		return
	}
	h.s = nil

	s.mu.Lock()
	n := s.refs.Add(-1)
	switch {
	case n == 1:
		s.idleSince.Store(idleStamp())
	case n < 0:
		s.mu.Unlock()
		panic("asset: handle released more times than it was cloned")
	}
	if n != 0 {
		s.mu.Unlock()
		return
	}

	name, content, onRelease := s.name, s.content, s.onRelease
	s.content = nil
	s.err = nil
	s.onRelease = nil
	s.idleSince.Store(0)
	s.mu.Unlock()

	if onRelease != nil {
		onRelease(name, content)
	}
}

// Assign makes h a counted copy of other, dropping whatever h referred to before.
func (h *Handle) Assign(other *Handle) {
	if h.s == other.s {
		return
	}
	c := other.Clone()
	h.Release()
	*h = c
}

// Name returns the key the asset was loaded under, or "" for an empty handle.
func (h *Handle) Name() string {
	if h.s == nil {
		return ""
	}
	return h.s.name
}

// Content returns the payload, or nil if the load failed or the handle is empty.
func (h *Handle) Content() *Content {
	if h.s == nil {
		return nil
	}
	return h.s.content
}

// Err returns why the load failed, nil for valid handles.
func (h *Handle) Err() error {
	if h.s == nil {
		return nil
	}
	return h.s.err
}

// IsValid reports whether the handle refers to loaded content.
func (h *Handle) IsValid() bool {
	return h.s != nil && h.s.content != nil
}

// IsEmpty reports whether the handle refers to no shared state at all.
func (h *Handle) IsEmpty() bool {
	return h.s == nil
}

// Equal reports whether both handles share the same state. Byte equality is irrelevant.
func (h *Handle) Equal(other Handle) bool {
	return h.s == other.s
}

// RefCount returns the number of live references, 0 for an empty handle.
func (h *Handle) RefCount() int64 {
	if h.s == nil {
		return 0
	}
	return h.s.refs.Load()
}

// IdleDuration returns how long the handle has had a single holder, or NotIdle.
func (h *Handle) IdleDuration() time.Duration {
	if h.s == nil {
		return NotIdle
	}
	since := h.s.idleSince.Load()
	if since == 0 {
		return NotIdle
	}
	d := now().Sub(time.UnixMilli(since))
	if d < 0 {
		return 0
	}
	return d
}

func idleStamp() int64 {
	ms := now().UnixMilli()
	if ms <= 0 {
		return 1
	}
	return ms
}
