// Package ddml implements the Data Description Meta-Language wire codec: a
// set of typed commands (absorb, mask, skip, squeeze, commit, ed25519,
// x25519, join, fork, repeated) that drive a Spongos transcript and
// emit/consume a byte stream. Every message's size, wrap, and unwrap are
// three passes over the same command sequence, realized here as three
// structurally mirrored context types rather than one generic script
// function, matching how the source this module is grounded on splits each
// command into three separate per-pass implementations.
package ddml

import "fmt"

// Uint8, Uint16, Uint32, Uint64 are fixed-width unsigned integers absorbed,
// masked, or skipped as big-endian bytes.
type Uint8 uint8
type Uint16 uint16
type Uint32 uint32
type Uint64 uint64

// Size is a varint-encoded unsigned length: a length-prefix byte giving the
// count of subsequent big-endian bytes (0-8), followed by those bytes.
type Size uint64

// SizeMaxBytes is the largest number of trailing bytes a Size encoding can
// carry (enough to hold any uint64).
const SizeMaxBytes = 8

// sizeBytes returns the minimal number of big-endian bytes needed to hold n,
// 0 for n == 0.
func sizeBytes(n uint64) int {
	d := 0
	for n > 0 {
		n >>= 8
		d++
	}
	return d
}

// EncodedLen returns the number of bytes Size's own wire encoding occupies:
// one length-prefix byte plus sizeBytes(n) trailing bytes.
func (s Size) EncodedLen() int {
	return 1 + sizeBytes(uint64(s))
}

// NBytes is a fixed-length byte array whose length is known out of band
// (never self-describing on the wire).
type NBytes []byte

// Bytes is a variable-length byte array whose length is written as a Size
// prefix before the payload.
type Bytes []byte

// External wraps a value absorbed into the transcript but never written to
// or read from the wire; both sides must independently supply an identical
// value.
type External[T any] struct {
	Value T
}

// NewExternal wraps v as an External command argument.
func NewExternal[T any](v T) External[T] {
	return External[T]{Value: v}
}

// Mac requests n bytes be squeezed from the transcript and written (Wrap) or
// read-and-compared (Unwrap) as a message authentication tag.
type Mac int

// Maybe wraps an optional value: Unwrap only attempts to decode the inner
// value when Present is learned from context (a preceding tag), mirroring
// the option encodings used throughout the message bodies (e.g. linked
// MsgId).
type Maybe[T any] struct {
	Present bool
	Value   T
}

func (s Size) String() string {
	return fmt.Sprintf("Size(%d)", uint64(s))
}
