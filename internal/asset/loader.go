package asset

import "github.com/assetcache/assetcache/pkg/errors"

// Loader turns keys into Handles by reading them through a FileReader.
// The zero Loader reads operating system paths with no size limit.
type Loader struct {
	// Open resolves a key to a file. Defaults to OSOpen.
	Open OpenFunc
	// MaxSize rejects files larger than this many bytes. Zero means unlimited.
	MaxSize int64
	// OnRelease observes shared state being freed.
	OnRelease ReleaseFunc
}

// NewReader returns a FileReader configured like the loader.
func (l *Loader) NewReader(key string) *FileReader {
	if l == nil {
		return NewFileReader(key)
	}
	return newFileReader(key, l.Open, l.MaxSize)
}

// Load reads key and returns the first reference to the result. Failures yield an
// invalid handle whose Err describes the cause.
func (l *Loader) Load(key string) Handle {
	return l.load(key, nil)
}

// LoadRequest is Load with the failure cause tagged with the component and request
// that asked for key.
func (l *Loader) LoadRequest(key, component, requestID string) Handle {
	return l.load(key, func(err *errors.AssetError) {
		err.WithComponent(component).WithOperation("load").WithRequestID(requestID)
	})
}

// load finishes the failure cause before the handle exists, so it is never written to
// once shared.
func (l *Loader) load(key string, annotate func(*errors.AssetError)) Handle {
	r := l.NewReader(key)

	var onRelease ReleaseFunc
	if l != nil {
		onRelease = l.OnRelease
	}

	if r.IsGood() {
		return newHandle(key, NewContent(r.MoveContent()), nil, onRelease)
	}

	err := r.Err()
	if assetErr, ok := err.(*errors.AssetError); ok && annotate != nil {
		annotate(assetErr)
	}
	return newHandle(key, nil, err, onRelease)
}
