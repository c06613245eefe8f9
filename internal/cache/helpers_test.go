package cache

import (
	"io/fs"
	"sync"
	"testing/fstest"

	"github.com/assetcache/assetcache/internal/asset"
)

// recordingFS serves a MapFS and remembers every open, in order.
type recordingFS struct {
	fsys fstest.MapFS

	mu     sync.Mutex
	opened []string
	// before, when set, runs ahead of each open on the opening goroutine.
	before func(name string)
}

func newRecordingFS(files map[string]string) *recordingFS {
	fsys := fstest.MapFS{}
	for name, data := range files {
		fsys[name] = &fstest.MapFile{Data: []byte(data)}
	}
	return &recordingFS{fsys: fsys}
}

func (r *recordingFS) open(name string) (fs.File, error) {
	if r.before != nil {
		r.before(name)
	}
	r.mu.Lock()
	r.opened = append(r.opened, name)
	r.mu.Unlock()
	return r.fsys.Open(name)
}

func (r *recordingFS) opens() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.opened...)
}

func (r *recordingFS) count(name string) int {
	n := 0
	for _, opened := range r.opens() {
		if opened == name {
			n++
		}
	}
	return n
}

func (r *recordingFS) loader() *asset.Loader {
	return &asset.Loader{Open: r.open}
}

type getter interface {
	Get(key string) asset.Handle
}

// touch requests key and drops the reference straight away.
func touch(c getter, key string) {
	h := c.Get(key)
	h.Release()
}
