package message

import (
	"crypto/ed25519"

	"github.com/iotaledger/streams-go/pkg/ddml"
)

// SizeofSignedPacket returns the wire byte count a signed packet body would
// produce.
func SizeofSignedPacket(p *SignedPacket) int {
	c := ddml.NewSizeofContext()
	c.AbsorbBytes(ddml.Bytes(p.PublicPayload))
	c.MaskBytes(ddml.Bytes(p.MaskedPayload))
	c.Commit()
	c.Ed25519Sign()
	return c.Size()
}

// WrapSignedPacket: absorb(public_payload); mask(masked_payload); commit;
// sign.
func WrapSignedPacket(c *ddml.WrapContext, p *SignedPacket, publisherKey ed25519.PrivateKey) error {
	if _, err := c.AbsorbBytes(ddml.Bytes(p.PublicPayload)); err != nil {
		return err
	}
	if _, err := c.MaskBytes(ddml.Bytes(p.MaskedPayload)); err != nil {
		return err
	}
	c.Commit()
	_, err := c.Ed25519Sign(publisherKey)
	return err
}

// UnwrapSignedPacket reads and verifies a signed packet body against
// publisherKey (the publisher's Ed25519 public key, resolved by the caller
// from the cursor/subscriber table before calling this).
func UnwrapSignedPacket(c *ddml.UnwrapContext, publisherKey ed25519.PublicKey) (*SignedPacket, error) {
	var pub, masked ddml.Bytes
	if _, err := c.AbsorbBytes(&pub); err != nil {
		return nil, err
	}
	if _, err := c.MaskBytes(&masked); err != nil {
		return nil, err
	}
	c.Commit()
	if _, err := c.Ed25519Verify(publisherKey); err != nil {
		return nil, err
	}
	return &SignedPacket{PublicPayload: pub, MaskedPayload: masked}, nil
}
