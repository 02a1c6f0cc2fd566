package ddml

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/iotaledger/streams-go/pkg/spongos"
	"github.com/iotaledger/streams-go/pkg/streamserr"
)

// WrapContext drives a Spongos transcript and writes bytes into an output
// stream: the encode+authenticate pass.
type WrapContext struct {
	S  *spongos.Spongos
	OS OStream
}

// NewWrapContext starts a wrap pass over s, writing into os.
func NewWrapContext(s *spongos.Spongos, os OStream) *WrapContext {
	return &WrapContext{S: s, OS: os}
}

func (c *WrapContext) writeAndAbsorb(data []byte) error {
	chunk, err := c.OS.TryAdvance(len(data))
	if err != nil {
		return err
	}
	copy(chunk, data)
	c.S.Absorb(data)
	return nil
}

func (c *WrapContext) writeOnly(data []byte) error {
	chunk, err := c.OS.TryAdvance(len(data))
	if err != nil {
		return err
	}
	copy(chunk, data)
	return nil
}

func (c *WrapContext) maskAndWrite(plain []byte) error {
	cipher, err := c.OS.TryAdvance(len(plain))
	if err != nil {
		return err
	}
	return c.S.Encrypt(plain, cipher)
}

func (c *WrapContext) AbsorbUint8(v Uint8) (*WrapContext, error) {
	return c, c.writeAndAbsorb([]byte{byte(v)})
}

func (c *WrapContext) AbsorbUint16(v Uint16) (*WrapContext, error) {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], uint16(v))
	return c, c.writeAndAbsorb(buf[:])
}

func (c *WrapContext) AbsorbUint32(v Uint32) (*WrapContext, error) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(v))
	return c, c.writeAndAbsorb(buf[:])
}

func (c *WrapContext) AbsorbUint64(v Uint64) (*WrapContext, error) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	return c, c.writeAndAbsorb(buf[:])
}

// encodeSize produces the varint wire form: a length-prefix byte giving the
// count of trailing big-endian bytes, followed by those bytes.
func encodeSize(s Size) []byte {
	n := sizeBytes(uint64(s))
	out := make([]byte, 1+n)
	out[0] = byte(n)
	v := uint64(s)
	for i := n; i >= 1; i-- {
		out[i] = byte(v & 0xff)
		v >>= 8
	}
	return out
}

func (c *WrapContext) AbsorbSize(s Size) (*WrapContext, error) {
	return c, c.writeAndAbsorb(encodeSize(s))
}

func (c *WrapContext) AbsorbNBytes(b NBytes) (*WrapContext, error) {
	return c, c.writeAndAbsorb(b)
}

func (c *WrapContext) AbsorbBytes(b Bytes) (*WrapContext, error) {
	if err := c.writeAndAbsorb(encodeSize(Size(len(b)))); err != nil {
		return c, err
	}
	return c, c.writeAndAbsorb(b)
}

func (c *WrapContext) MaskUint8(v Uint8) (*WrapContext, error) {
	return c, c.maskAndWrite([]byte{byte(v)})
}

func (c *WrapContext) MaskUint16(v Uint16) (*WrapContext, error) {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], uint16(v))
	return c, c.maskAndWrite(buf[:])
}

func (c *WrapContext) MaskUint32(v Uint32) (*WrapContext, error) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(v))
	return c, c.maskAndWrite(buf[:])
}

func (c *WrapContext) MaskUint64(v Uint64) (*WrapContext, error) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	return c, c.maskAndWrite(buf[:])
}

func (c *WrapContext) MaskSize(s Size) (*WrapContext, error) {
	return c, c.maskAndWrite(encodeSize(s))
}

func (c *WrapContext) MaskNBytes(b NBytes) (*WrapContext, error) {
	return c, c.maskAndWrite(b)
}

func (c *WrapContext) MaskBytes(b Bytes) (*WrapContext, error) {
	if err := c.writeAndAbsorb(encodeSize(Size(len(b)))); err != nil {
		return c, err
	}
	return c, c.maskAndWrite(b)
}

func (c *WrapContext) SkipUint8(v Uint8) (*WrapContext, error) {
	return c, c.writeOnly([]byte{byte(v)})
}

func (c *WrapContext) SkipUint16(v Uint16) (*WrapContext, error) {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], uint16(v))
	return c, c.writeOnly(buf[:])
}

func (c *WrapContext) SkipUint32(v Uint32) (*WrapContext, error) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(v))
	return c, c.writeOnly(buf[:])
}

func (c *WrapContext) SkipUint64(v Uint64) (*WrapContext, error) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	return c, c.writeOnly(buf[:])
}

func (c *WrapContext) SkipSize(s Size) (*WrapContext, error) {
	return c, c.writeOnly(encodeSize(s))
}

func (c *WrapContext) SkipNBytes(b NBytes) (*WrapContext, error) {
	return c, c.writeOnly(b)
}

func (c *WrapContext) SkipBytes(b Bytes) (*WrapContext, error) {
	if err := c.writeOnly(encodeSize(Size(len(b)))); err != nil {
		return c, err
	}
	return c, c.writeOnly(b)
}

// AbsorbExternalNBytes absorbs v into the transcript without touching the
// wire at all.
func (c *WrapContext) AbsorbExternalNBytes(v External[NBytes]) *WrapContext {
	c.S.Absorb(v.Value)
	return c
}

func (c *WrapContext) AbsorbExternalBytes(v External[Bytes]) *WrapContext {
	c.S.Absorb(v.Value)
	return c
}

func (c *WrapContext) AbsorbExternalUint8(v External[Uint8]) *WrapContext {
	c.S.Absorb([]byte{byte(v.Value)})
	return c
}

// Squeeze writes n freshly-squeezed transcript bytes (a MAC or hash-binding
// tag) to the wire.
func (c *WrapContext) Squeeze(n Mac) (*WrapContext, error) {
	tag := c.S.SqueezeN(int(n))
	return c, c.writeOnly(tag)
}

// SqueezeExternalHash squeezes exactly 64 bytes without writing them to the
// wire, for use as the hash an Ed25519Sign command signs over.
func (c *WrapContext) SqueezeExternalHash() [64]byte {
	var h [64]byte
	c.S.Squeeze(h[:])
	return h
}

func (c *WrapContext) Commit() *WrapContext {
	c.S.Commit()
	return c
}

// Ed25519Sign commits, squeezes a 64-byte external hash, and writes a
// signature over that hash as unabsorbed (skip) bytes.
func (c *WrapContext) Ed25519Sign(key ed25519.PrivateKey) (*WrapContext, error) {
	c.S.Commit()
	hash := c.SqueezeExternalHash()
	sig := ed25519.Sign(key, hash[:])
	return c, c.writeOnly(sig)
}

// Fork returns a new WrapContext sharing the output stream but operating on
// an independent forked Spongos.
func (c *WrapContext) Fork() *WrapContext {
	return &WrapContext{S: c.S.Fork(), OS: c.OS}
}

// Join mixes the transcript of other into c's Spongos.
func (c *WrapContext) Join(other *spongos.Spongos) *WrapContext {
	c.S.Join(other)
	return c
}

// X25519Mask writes the sender's X25519 public key to the wire (absorbed),
// absorbs the shared secret as external, and masks keyMaterial, all on c's
// own transcript: it does not fork, so callers that need a per-recipient
// branch call it on a forked context. sharedSecret is supplied by the caller
// (computed via identity.SharedSecretFrom) to keep this package free of a
// direct key agreement dependency at the command layer.
func (c *WrapContext) X25519Mask(ephemeralPublic [32]byte, sharedSecret [32]byte, keyMaterial NBytes) (*WrapContext, error) {
	if err := c.writeAndAbsorb(ephemeralPublic[:]); err != nil {
		return c, err
	}
	c.S.Absorb(sharedSecret[:])
	return c, c.maskAndWrite(keyMaterial)
}

// WrapErr adapts a stream error into the module's error taxonomy.
func WrapErr(err error) error {
	if err == nil {
		return nil
	}
	return streamserr.Wrap(streamserr.InternalError, "ddml wrap", err)
}
