package message

import "github.com/iotaledger/streams-go/pkg/ddml"

// taggedPacketMacSize is the length in bytes of the MAC squeezed at the end
// of a tagged packet body, the sole authenticator for this message type.
const taggedPacketMacSize = 32

// SizeofTaggedPacket returns the wire byte count a tagged packet body would
// produce.
func SizeofTaggedPacket(p *TaggedPacket) int {
	c := ddml.NewSizeofContext()
	c.AbsorbBytes(ddml.Bytes(p.PublicPayload))
	c.MaskBytes(ddml.Bytes(p.MaskedPayload))
	c.Commit()
	c.Squeeze(ddml.Mac(taggedPacketMacSize))
	return c.Size()
}

// WrapTaggedPacket: absorb(public_payload); mask(masked_payload); commit;
// squeeze(MAC). No signature: recipients must hold the session key already
// bound into the spongos via a prior keyload join.
func WrapTaggedPacket(c *ddml.WrapContext, p *TaggedPacket) error {
	if _, err := c.AbsorbBytes(ddml.Bytes(p.PublicPayload)); err != nil {
		return err
	}
	if _, err := c.MaskBytes(ddml.Bytes(p.MaskedPayload)); err != nil {
		return err
	}
	c.Commit()
	_, err := c.Squeeze(ddml.Mac(taggedPacketMacSize))
	return err
}

// UnwrapTaggedPacket reads and MAC-verifies a tagged packet body. A BadMac
// here (as opposed to a hard parse error) is the expected outcome for a
// recipient who was not included in the keyload that established the
// session key: callers surface that case as an Orphan, not a hard error.
func UnwrapTaggedPacket(c *ddml.UnwrapContext) (*TaggedPacket, error) {
	var pub, masked ddml.Bytes
	if _, err := c.AbsorbBytes(&pub); err != nil {
		return nil, err
	}
	if _, err := c.MaskBytes(&masked); err != nil {
		return nil, err
	}
	c.Commit()
	if _, err := c.Squeeze(ddml.Mac(taggedPacketMacSize)); err != nil {
		return nil, err
	}
	return &TaggedPacket{PublicPayload: pub, MaskedPayload: masked}, nil
}
