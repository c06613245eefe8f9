package asset

import (
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/assetcache/assetcache/pkg/errors"
)

// OpenFunc opens the file named by an asset key.
type OpenFunc func(name string) (fs.File, error)

// OSOpen opens keys as operating system paths.
func OSOpen(name string) (fs.File, error) {
	return os.Open(name)
}

// FSOpen adapts an fs.FS so keys are resolved inside it.
func FSOpen(fsys fs.FS) OpenFunc {
	return fsys.Open
}

type readState uint8

const (
	stateUninitialized readState = 0
	stateAccessed      readState = 1 << 0
	stateEOF           readState = 1 << 1
	stateError         readState = 1 << 2
)

// FileReader loads one file into memory on first access.
// It is not safe for concurrent use and is meant for a single load.
type FileReader struct {
	path    string
	open    OpenFunc
	maxSize int64
	state   readState
	spent   bool
	buf     []byte
	err     *errors.AssetError
}

// NewFileReader returns a reader for path. No I/O happens until first access.
func NewFileReader(path string) *FileReader {
	return newFileReader(path, OSOpen, 0)
}

func newFileReader(path string, open OpenFunc, maxSize int64) *FileReader {
	if open == nil {
		open = OSOpen
	}
	return &FileReader{path: path, open: open, maxSize: maxSize}
}

// Path returns the path this reader loads.
func (r *FileReader) Path() string {
	return r.path
}

// IsGood loads the file if needed and reports whether the whole file was read.
func (r *FileReader) IsGood() bool {
	r.access()
	return r.good()
}

// Content loads the file if needed and returns the buffer, empty on error.
func (r *FileReader) Content() []byte {
	r.access()
	return r.buf
}

// MoveContent loads the file if needed, hands the buffer to the caller and resets the
// reader. A second call without a fresh load returns an empty buffer.
func (r *FileReader) MoveContent() []byte {
	r.access()
	buf := r.buf
	r.buf = nil
	r.state = stateUninitialized
	r.err = nil
	r.spent = true
	return buf
}

// Err returns the failure cause once a load has failed, nil otherwise.
func (r *FileReader) Err() error {
	if r.err == nil {
		return nil
	}
	return r.err
}

func (r *FileReader) good() bool {
	return r.state&(stateAccessed|stateEOF) == stateAccessed|stateEOF
}

func (r *FileReader) access() {
	if r.state != stateUninitialized || r.spent {
		return
	}
	r.load()
}

func (r *FileReader) load() {
	f, err := r.open(r.path)
	if err != nil {
		r.fail(errors.FromOpenError(r.path, err))
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		r.fail(errors.FromOpenError(r.path, err))
		return
	}
	if info.IsDir() {
		r.fail(errors.NewError(errors.ErrCodePathInvalid, fmt.Sprintf("%q is a directory", r.path)).
			WithContext("path", r.path))
		return
	}

	size := info.Size()
	if r.maxSize > 0 && size > r.maxSize {
		r.fail(errors.NewError(errors.ErrCodeLimitExceeded,
			fmt.Sprintf("%q is %d bytes, limit is %d", r.path, size, r.maxSize)).
			WithContext("path", r.path))
		return
	}

	buf := make([]byte, size)
	n, err := io.ReadFull(f, buf)
	r.state |= stateAccessed
	if err != nil {
		r.buf = nil
		r.err = errors.NewError(errors.ErrCodeStorageRead,
			fmt.Sprintf("short read of %q: %d of %d bytes", r.path, n, size)).
			WithContext("path", r.path).
			WithCause(err)
		return
	}
	r.buf = buf
	r.state |= stateEOF
}

func (r *FileReader) fail(err *errors.AssetError) {
	r.state = stateError
	r.buf = nil
	r.err = err
}
