package ddml

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/iotaledger/streams-go/pkg/spongos"
	"github.com/iotaledger/streams-go/pkg/streamserr"
)

// UnwrapContext drives a Spongos transcript and reads bytes from an input
// stream: the decode+verify pass, the mirror of WrapContext.
type UnwrapContext struct {
	S  *spongos.Spongos
	IS IStream
}

// NewUnwrapContext starts an unwrap pass over s, reading from is.
func NewUnwrapContext(s *spongos.Spongos, is IStream) *UnwrapContext {
	return &UnwrapContext{S: s, IS: is}
}

func (c *UnwrapContext) readAndAbsorb(n int) ([]byte, error) {
	chunk, err := c.IS.TryAdvance(n)
	if err != nil {
		return nil, err
	}
	c.S.Absorb(chunk)
	return chunk, nil
}

func (c *UnwrapContext) readOnly(n int) ([]byte, error) {
	return c.IS.TryAdvance(n)
}

func (c *UnwrapContext) readAndUnmask(n int) ([]byte, error) {
	cipher, err := c.IS.TryAdvance(n)
	if err != nil {
		return nil, err
	}
	plain := make([]byte, n)
	if err := c.S.Decrypt(cipher, plain); err != nil {
		return nil, err
	}
	return plain, nil
}

func (c *UnwrapContext) AbsorbUint8(out *Uint8) (*UnwrapContext, error) {
	b, err := c.readAndAbsorb(1)
	if err != nil {
		return c, err
	}
	*out = Uint8(b[0])
	return c, nil
}

func (c *UnwrapContext) AbsorbUint16(out *Uint16) (*UnwrapContext, error) {
	b, err := c.readAndAbsorb(2)
	if err != nil {
		return c, err
	}
	*out = Uint16(binary.BigEndian.Uint16(b))
	return c, nil
}

func (c *UnwrapContext) AbsorbUint32(out *Uint32) (*UnwrapContext, error) {
	b, err := c.readAndAbsorb(4)
	if err != nil {
		return c, err
	}
	*out = Uint32(binary.BigEndian.Uint32(b))
	return c, nil
}

func (c *UnwrapContext) AbsorbUint64(out *Uint64) (*UnwrapContext, error) {
	b, err := c.readAndAbsorb(8)
	if err != nil {
		return c, err
	}
	*out = Uint64(binary.BigEndian.Uint64(b))
	return c, nil
}

// decodeSizeFrom reads a varint Size from a read function.
func decodeSizeFrom(read func(n int) ([]byte, error)) (Size, error) {
	prefix, err := read(1)
	if err != nil {
		return 0, err
	}
	n := int(prefix[0])
	if n > SizeMaxBytes {
		return 0, streamserr.NewInvalidSize("size prefix exceeds maximum byte count")
	}
	if n == 0 {
		return 0, nil
	}
	tail, err := read(n)
	if err != nil {
		return 0, err
	}
	var v uint64
	for _, b := range tail {
		v = (v << 8) | uint64(b)
	}
	return Size(v), nil
}

func (c *UnwrapContext) AbsorbSize(out *Size) (*UnwrapContext, error) {
	s, err := decodeSizeFrom(c.readAndAbsorb)
	if err != nil {
		return c, err
	}
	*out = s
	return c, nil
}

func (c *UnwrapContext) AbsorbNBytes(out NBytes) (*UnwrapContext, error) {
	b, err := c.readAndAbsorb(len(out))
	if err != nil {
		return c, err
	}
	copy(out, b)
	return c, nil
}

func (c *UnwrapContext) AbsorbBytes(out *Bytes) (*UnwrapContext, error) {
	s, err := decodeSizeFrom(c.readAndAbsorb)
	if err != nil {
		return c, err
	}
	b, err := c.readAndAbsorb(int(s))
	if err != nil {
		return c, err
	}
	*out = append(Bytes{}, b...)
	return c, nil
}

func (c *UnwrapContext) MaskUint8(out *Uint8) (*UnwrapContext, error) {
	b, err := c.readAndUnmask(1)
	if err != nil {
		return c, err
	}
	*out = Uint8(b[0])
	return c, nil
}

func (c *UnwrapContext) MaskUint16(out *Uint16) (*UnwrapContext, error) {
	b, err := c.readAndUnmask(2)
	if err != nil {
		return c, err
	}
	*out = Uint16(binary.BigEndian.Uint16(b))
	return c, nil
}

func (c *UnwrapContext) MaskUint32(out *Uint32) (*UnwrapContext, error) {
	b, err := c.readAndUnmask(4)
	if err != nil {
		return c, err
	}
	*out = Uint32(binary.BigEndian.Uint32(b))
	return c, nil
}

func (c *UnwrapContext) MaskUint64(out *Uint64) (*UnwrapContext, error) {
	b, err := c.readAndUnmask(8)
	if err != nil {
		return c, err
	}
	*out = Uint64(binary.BigEndian.Uint64(b))
	return c, nil
}

func (c *UnwrapContext) MaskSize(out *Size) (*UnwrapContext, error) {
	s, err := decodeSizeFrom(c.readAndUnmask)
	if err != nil {
		return c, err
	}
	*out = s
	return c, nil
}

func (c *UnwrapContext) MaskNBytes(out NBytes) (*UnwrapContext, error) {
	b, err := c.readAndUnmask(len(out))
	if err != nil {
		return c, err
	}
	copy(out, b)
	return c, nil
}

func (c *UnwrapContext) MaskBytes(out *Bytes) (*UnwrapContext, error) {
	s, err := decodeSizeFrom(c.readAndAbsorb)
	if err != nil {
		return c, err
	}
	b, err := c.readAndUnmask(int(s))
	if err != nil {
		return c, err
	}
	*out = append(Bytes{}, b...)
	return c, nil
}

func (c *UnwrapContext) SkipUint8(out *Uint8) (*UnwrapContext, error) {
	b, err := c.readOnly(1)
	if err != nil {
		return c, err
	}
	*out = Uint8(b[0])
	return c, nil
}

func (c *UnwrapContext) SkipUint16(out *Uint16) (*UnwrapContext, error) {
	b, err := c.readOnly(2)
	if err != nil {
		return c, err
	}
	*out = Uint16(binary.BigEndian.Uint16(b))
	return c, nil
}

func (c *UnwrapContext) SkipUint32(out *Uint32) (*UnwrapContext, error) {
	b, err := c.readOnly(4)
	if err != nil {
		return c, err
	}
	*out = Uint32(binary.BigEndian.Uint32(b))
	return c, nil
}

func (c *UnwrapContext) SkipUint64(out *Uint64) (*UnwrapContext, error) {
	b, err := c.readOnly(8)
	if err != nil {
		return c, err
	}
	*out = Uint64(binary.BigEndian.Uint64(b))
	return c, nil
}

func (c *UnwrapContext) SkipSize(out *Size) (*UnwrapContext, error) {
	s, err := decodeSizeFrom(c.readOnly)
	if err != nil {
		return c, err
	}
	*out = s
	return c, nil
}

func (c *UnwrapContext) SkipNBytes(out NBytes) (*UnwrapContext, error) {
	b, err := c.readOnly(len(out))
	if err != nil {
		return c, err
	}
	copy(out, b)
	return c, nil
}

func (c *UnwrapContext) SkipBytes(out *Bytes) (*UnwrapContext, error) {
	s, err := decodeSizeFrom(c.readOnly)
	if err != nil {
		return c, err
	}
	b, err := c.readOnly(int(s))
	if err != nil {
		return c, err
	}
	*out = append(Bytes{}, b...)
	return c, nil
}

// AbsorbExternalNBytes absorbs v into the transcript; both sides must supply
// an identical value out of band since nothing is read from the wire.
func (c *UnwrapContext) AbsorbExternalNBytes(v External[NBytes]) *UnwrapContext {
	c.S.Absorb(v.Value)
	return c
}

func (c *UnwrapContext) AbsorbExternalBytes(v External[Bytes]) *UnwrapContext {
	c.S.Absorb(v.Value)
	return c
}

func (c *UnwrapContext) AbsorbExternalUint8(v External[Uint8]) *UnwrapContext {
	c.S.Absorb([]byte{byte(v.Value)})
	return c
}

// Squeeze reads n bytes and compares them to a freshly-squeezed tag,
// returning BadMac on mismatch.
func (c *UnwrapContext) Squeeze(n Mac) (*UnwrapContext, error) {
	wire, err := c.readOnly(int(n))
	if err != nil {
		return c, err
	}
	if !c.S.SqueezeEq(wire) {
		return c, streamserr.NewBadMac("squeezed tag mismatch")
	}
	return c, nil
}

// SqueezeExternalHash squeezes exactly 64 bytes without reading from the
// wire, mirroring WrapContext.SqueezeExternalHash.
func (c *UnwrapContext) SqueezeExternalHash() [64]byte {
	var h [64]byte
	c.S.Squeeze(h[:])
	return h
}

func (c *UnwrapContext) Commit() *UnwrapContext {
	c.S.Commit()
	return c
}

// Ed25519Verify commits, squeezes the same 64-byte external hash the signer
// squeezed, reads a 64-byte signature off the wire, and verifies it against
// pub.
func (c *UnwrapContext) Ed25519Verify(pub ed25519.PublicKey) (*UnwrapContext, error) {
	c.S.Commit()
	hash := c.SqueezeExternalHash()
	sig, err := c.readOnly(ed25519.SignatureSize)
	if err != nil {
		return c, err
	}
	if !ed25519.Verify(pub, hash[:], sig) {
		return c, streamserr.NewBadSignature("ed25519 signature verification failed")
	}
	return c, nil
}

// Fork returns a new UnwrapContext sharing the input stream but operating on
// an independent forked Spongos.
func (c *UnwrapContext) Fork() *UnwrapContext {
	return &UnwrapContext{S: c.S.Fork(), IS: c.IS}
}

// Join mixes the transcript of other into c's Spongos.
func (c *UnwrapContext) Join(other *spongos.Spongos) *UnwrapContext {
	c.S.Join(other)
	return c
}

// X25519Unmask reads the ephemeral public key off the wire (absorbing it),
// absorbs the shared secret (computed by the caller from that ephemeral key
// and the recipient's static secret) as external, and unmasks keyMaterial.
func (c *UnwrapContext) X25519Unmask(sharedSecretFromEphemeral func(ephemeralPublic [32]byte) [32]byte, keyMaterial NBytes) (*UnwrapContext, error) {
	raw, err := c.readAndAbsorb(32)
	if err != nil {
		return c, err
	}
	var ephemeralPublic [32]byte
	copy(ephemeralPublic[:], raw)
	sharedSecret := sharedSecretFromEphemeral(ephemeralPublic)
	c.S.Absorb(sharedSecret[:])
	b, err := c.readAndUnmask(len(keyMaterial))
	if err != nil {
		return c, err
	}
	copy(keyMaterial, b)
	return c, nil
}
