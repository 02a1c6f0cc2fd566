package ddml

// SizeofContext counts the bytes a Wrap pass over the same command sequence
// would produce. It never touches a Spongos transcript.
type SizeofContext struct {
	size int
}

// NewSizeofContext starts a fresh byte-counting pass.
func NewSizeofContext() *SizeofContext {
	return &SizeofContext{}
}

// Size returns the total byte count accumulated so far.
func (c *SizeofContext) Size() int {
	return c.size
}

func (c *SizeofContext) AbsorbUint8(Uint8) *SizeofContext   { c.size++; return c }
func (c *SizeofContext) AbsorbUint16(Uint16) *SizeofContext { c.size += 2; return c }
func (c *SizeofContext) AbsorbUint32(Uint32) *SizeofContext { c.size += 4; return c }
func (c *SizeofContext) AbsorbUint64(Uint64) *SizeofContext { c.size += 8; return c }
func (c *SizeofContext) AbsorbSize(s Size) *SizeofContext   { c.size += s.EncodedLen(); return c }
func (c *SizeofContext) AbsorbNBytes(b NBytes) *SizeofContext {
	c.size += len(b)
	return c
}
func (c *SizeofContext) AbsorbBytes(b Bytes) *SizeofContext {
	c.size += Size(len(b)).EncodedLen() + len(b)
	return c
}

func (c *SizeofContext) MaskUint8(Uint8) *SizeofContext   { c.size++; return c }
func (c *SizeofContext) MaskUint16(Uint16) *SizeofContext { c.size += 2; return c }
func (c *SizeofContext) MaskUint32(Uint32) *SizeofContext { c.size += 4; return c }
func (c *SizeofContext) MaskUint64(Uint64) *SizeofContext { c.size += 8; return c }
func (c *SizeofContext) MaskSize(s Size) *SizeofContext   { c.size += s.EncodedLen(); return c }
func (c *SizeofContext) MaskNBytes(b NBytes) *SizeofContext {
	c.size += len(b)
	return c
}
func (c *SizeofContext) MaskBytes(b Bytes) *SizeofContext {
	c.size += Size(len(b)).EncodedLen() + len(b)
	return c
}

func (c *SizeofContext) SkipUint8(Uint8) *SizeofContext   { c.size++; return c }
func (c *SizeofContext) SkipUint16(Uint16) *SizeofContext { c.size += 2; return c }
func (c *SizeofContext) SkipUint32(Uint32) *SizeofContext { c.size += 4; return c }
func (c *SizeofContext) SkipUint64(Uint64) *SizeofContext { c.size += 8; return c }
func (c *SizeofContext) SkipSize(s Size) *SizeofContext   { c.size += s.EncodedLen(); return c }
func (c *SizeofContext) SkipNBytes(b NBytes) *SizeofContext {
	c.size += len(b)
	return c
}
func (c *SizeofContext) SkipBytes(b Bytes) *SizeofContext {
	c.size += Size(len(b)).EncodedLen() + len(b)
	return c
}

// External values are never written to the wire regardless of type.
func (c *SizeofContext) AbsorbExternalNBytes(External[NBytes]) *SizeofContext { return c }
func (c *SizeofContext) AbsorbExternalBytes(External[Bytes]) *SizeofContext   { return c }
func (c *SizeofContext) AbsorbExternalUint8(External[Uint8]) *SizeofContext   { return c }

// Squeeze (a MAC or hash-binding tag) costs exactly n wire bytes.
func (c *SizeofContext) Squeeze(n Mac) *SizeofContext {
	c.size += int(n)
	return c
}

// Commit is transcript-only; it costs no wire bytes.
func (c *SizeofContext) Commit() *SizeofContext { return c }

// Ed25519Sign costs exactly a 64-byte signature, written unconditionally
// (skip semantics: not absorbed).
func (c *SizeofContext) Ed25519Sign() *SizeofContext {
	c.size += 64
	return c
}

// X25519Mask costs a 32-byte ephemeral public key plus len(keyMaterial)
// masked bytes.
func (c *SizeofContext) X25519Mask(keyMaterial NBytes) *SizeofContext {
	c.size += 32 + len(keyMaterial)
	return c
}

// Fork for Sizeof is a pure transcript operation (no bytes, no Spongos
// needed) and is therefore a no-op; it exists so call sites that drive all
// three contexts through an identical shaped script compile unchanged.
func (c *SizeofContext) Fork() *SizeofContext { return c }

// Join costs no wire bytes (it only mixes transcript state).
func (c *SizeofContext) Join() *SizeofContext { return c }
