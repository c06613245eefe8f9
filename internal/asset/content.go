package asset

import "bytes"

// Content is the immutable payload of a loaded asset.
type Content struct {
	buf []byte
}

// NewContent takes ownership of buf. The caller must not modify it afterwards.
func NewContent(buf []byte) *Content {
	return &Content{buf: buf}
}

// Bytes returns a read-only view of the payload. Callers must not modify it.
func (c *Content) Bytes() []byte {
	return c.buf
}

// Size returns the payload length in bytes.
func (c *Content) Size() int {
	return len(c.buf)
}

// Reader returns a fresh reader over the payload.
func (c *Content) Reader() *bytes.Reader {
	return bytes.NewReader(c.buf)
}

// Clone returns a private copy of the payload that the caller may modify.
func (c *Content) Clone() []byte {
	out := make([]byte, len(c.buf))
	copy(out, c.buf)
	return out
}
