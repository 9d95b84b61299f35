package models

import (
	"bytes"
	"io"
)

// Payload is the immutable body of one gateway upload. The decoder and the
// relay share the same Payload, so it only hands out copies and readers.
type Payload struct {
	b []byte
}

func NewPayload(b []byte) Payload {
	return Payload{b: bytes.Clone(b)}
}

func (p Payload) Len() int {
	return len(p.b)
}

func (p Payload) Bytes() []byte {
	return bytes.Clone(p.b)
}

func (p Payload) Reader() io.Reader {
	return bytes.NewReader(p.b)
}

// Slice copies n bytes starting at off, nil when out of range.
func (p Payload) Slice(off, n int) []byte {
	if off < 0 || n < 0 || off+n > len(p.b) {
		return nil
	}
	return bytes.Clone(p.b[off : off+n])
}
