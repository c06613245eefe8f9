package cache

import (
	"sort"
	"time"

	"github.com/assetcache/assetcache/internal/asset"
	"github.com/assetcache/assetcache/pkg/types"
	"github.com/assetcache/assetcache/pkg/utils"
)

// Options configures a cache. The zero value reads OS paths with no size limit,
// logs nothing and records no metrics.
type Options struct {
	// Name labels the cache in logs and metrics.
	Name     string
	Loader   *asset.Loader
	Logger   *utils.StructuredLogger
	Recorder types.MetricsRecorder
}

func (o *Options) resolve(defaultName string) Options {
	var opts Options
	if o != nil {
		opts = *o
	}
	if opts.Name == "" {
		opts.Name = defaultName
	}
	if opts.Logger == nil {
		opts.Logger = utils.NewDiscardLogger()
	}
	if opts.Recorder == nil {
		opts.Recorder = types.NopRecorder{}
	}
	return opts
}

// loaderFor copies the configured loader and reports freed state to the recorder.
func loaderFor(opts Options) asset.Loader {
	var l asset.Loader
	if opts.Loader != nil {
		l = *opts.Loader
	}

	next := l.OnRelease
	recorder := opts.Recorder
	l.OnRelease = func(name string, content *asset.Content) {
		recorder.RecordRelease(contentSize(content))
		if next != nil {
			next(name, content)
		}
	}
	return l
}

func contentSize(content *asset.Content) int64 {
	if content == nil {
		return 0
	}
	return int64(content.Size())
}

func entryInfo(key string, h asset.Handle) types.EntryInfo {
	info := types.EntryInfo{
		Key:      key,
		Size:     contentSize(h.Content()),
		Valid:    h.IsValid(),
		RefCount: h.RefCount(),
		Idle:     h.IdleDuration(),
	}
	if err := h.Err(); err != nil {
		info.Error = err.Error()
	}
	return info
}

func snapshot(entries map[string]asset.Handle) []types.EntryInfo {
	infos := make([]types.EntryInfo, 0, len(entries))
	for key, h := range entries {
		infos = append(infos, entryInfo(key, h))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos
}

// idleKeys returns the keys only the cache holds that have been idle for at least maxIdle.
func idleKeys(entries map[string]asset.Handle, maxIdle time.Duration) []string {
	var keys []string
	for key, h := range entries {
		if h.RefCount() != 1 {
			continue
		}
		if idle := h.IdleDuration(); idle != asset.NotIdle && idle >= maxIdle {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}
