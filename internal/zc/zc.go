// Package zc provides a zero-copy byte-range type.
//
// A [Range] is a (offset, length) pair relative to a source buffer, packed
// into a single uint64. Cloning a Range never touches the underlying bytes,
// which is what lets [wireproto.Value] be "cheaply cloneable" per the data
// model: a byte-string Value is a Range plus a pointer to the buffer it was
// decoded from, not a copy of the bytes themselves.
package zc

import (
	"fmt"
	"math"
)

// Range is a packed (offset, length) pair describing a slice of some larger
// byte buffer, such as the source of a decoded record.
//
// The zero value represents an empty slice at offset 0.
type Range uint64

// New constructs a Range from an offset and a length.
func New(offset, length int) Range {
	if offset < 0 || length < 0 || offset > math.MaxUint32 || length > math.MaxUint32 {
		panic(fmt.Sprintf("zc: range out of bounds: [%d:%d]", offset, length))
	}
	return Range(uint32(offset)) | Range(uint32(length))<<32
}

// Start returns the start offset of this range within its source.
func (r Range) Start() int { return int(uint32(r)) }

// Len returns the length of this range.
func (r Range) Len() int { return int(r >> 32) }

// End returns the end offset (exclusive) of this range within its source.
func (r Range) End() int { return r.Start() + r.Len() }

// Bytes slices src according to this range.
func (r Range) Bytes(src []byte) []byte {
	if r.Len() == 0 {
		return nil
	}
	return src[r.Start():r.End()]
}

// String converts this range into a string, given its source.
func (r Range) String(src []byte) string {
	if r.Len() == 0 {
		return ""
	}
	return string(r.Bytes(src))
}

// Format implements [fmt.Formatter], printing the range as "[start:end]".
func (r Range) Format(s fmt.State, _ rune) {
	_, _ = fmt.Fprintf(s, "[%d:%d]", r.Start(), r.End())
}
