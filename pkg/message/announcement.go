package message

import (
	"crypto/ed25519"

	"github.com/iotaledger/streams-go/pkg/ddml"
)

// SizeofAnnouncement returns the wire byte count an announcement body would
// produce.
func SizeofAnnouncement(a *Announcement) int {
	c := ddml.NewSizeofContext()
	sizeofIdentifier(c, a.AuthorIdentifier)
	c.Commit()
	c.Ed25519Sign()
	return c.Size()
}

// WrapAnnouncement absorbs the author's identifier, commits, and signs.
func WrapAnnouncement(c *ddml.WrapContext, a *Announcement, authorKey ed25519.PrivateKey) error {
	if err := wrapIdentifier(c, a.AuthorIdentifier); err != nil {
		return err
	}
	c.Commit()
	_, err := c.Ed25519Sign(authorKey)
	return err
}

// UnwrapAnnouncement reads and verifies an announcement body, using the
// author identifier found on the wire as the Ed25519 public key it must be
// signed with (a channel's trust root: the author identifies itself in the
// very first message of the channel).
func UnwrapAnnouncement(c *ddml.UnwrapContext) (*Announcement, error) {
	id, err := unwrapIdentifier(c)
	if err != nil {
		return nil, err
	}
	c.Commit()
	if _, err := c.Ed25519Verify(id.Ed25519); err != nil {
		return nil, err
	}
	return &Announcement{AuthorIdentifier: id}, nil
}
