package message

import (
	"crypto/ed25519"

	"github.com/iotaledger/streams-go/pkg/ddml"
)

// SizeofBranchAnnouncement returns the wire byte count a branch
// announcement body would produce.
func SizeofBranchAnnouncement(b *BranchAnnouncement) int {
	c := ddml.NewSizeofContext()
	c.MaskBytes(ddml.Bytes(b.NewTopic))
	c.Commit()
	c.Ed25519Sign()
	return c.Size()
}

// WrapBranchAnnouncement masks the new topic name and signs, linked to the
// tip of the parent topic by the caller's choice of spongos/HDF link.
func WrapBranchAnnouncement(c *ddml.WrapContext, b *BranchAnnouncement, authorKey ed25519.PrivateKey) error {
	if _, err := c.MaskBytes(ddml.Bytes(b.NewTopic)); err != nil {
		return err
	}
	c.Commit()
	_, err := c.Ed25519Sign(authorKey)
	return err
}

// UnwrapBranchAnnouncement reads and verifies a branch announcement.
func UnwrapBranchAnnouncement(c *ddml.UnwrapContext, authorKey ed25519.PublicKey) (*BranchAnnouncement, error) {
	var topic ddml.Bytes
	if _, err := c.MaskBytes(&topic); err != nil {
		return nil, err
	}
	c.Commit()
	if _, err := c.Ed25519Verify(authorKey); err != nil {
		return nil, err
	}
	return &BranchAnnouncement{NewTopic: string(topic)}, nil
}
