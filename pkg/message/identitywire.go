package message

import (
	"crypto/ed25519"

	"github.com/iotaledger/streams-go/pkg/ddml"
	"github.com/iotaledger/streams-go/pkg/identity"
	"github.com/iotaledger/streams-go/pkg/streamserr"
)

// identifier wire tags, distinct from identity.IdentifierTag's numeric
// values only by convention (kept equal here for directness).
const (
	idTagEd25519 = uint8(identity.TagEd25519Pub)
	idTagPsk     = uint8(identity.TagPskId)
	idTagDID     = uint8(identity.TagDID)
)

func sizeofIdentifier(c *ddml.SizeofContext, id identity.Identifier) {
	c.AbsorbUint8(0)
	switch id.Tag {
	case identity.TagEd25519Pub:
		c.AbsorbNBytes(make(ddml.NBytes, ed25519.PublicKeySize))
	case identity.TagPskId:
		c.AbsorbNBytes(make(ddml.NBytes, identity.PskIdSize))
	case identity.TagDID:
		c.AbsorbBytes(ddml.Bytes(id.DID))
	}
}

func wrapIdentifier(c *ddml.WrapContext, id identity.Identifier) error {
	if _, err := c.AbsorbUint8(ddml.Uint8(id.Tag)); err != nil {
		return err
	}
	switch id.Tag {
	case identity.TagEd25519Pub:
		_, err := c.AbsorbNBytes(ddml.NBytes(id.Ed25519))
		return err
	case identity.TagPskId:
		_, err := c.AbsorbNBytes(ddml.NBytes(id.Psk[:]))
		return err
	case identity.TagDID:
		_, err := c.AbsorbBytes(ddml.Bytes(id.DID))
		return err
	default:
		return streamserr.New(streamserr.Malformed, "unknown identifier tag")
	}
}

func unwrapIdentifier(c *ddml.UnwrapContext) (identity.Identifier, error) {
	var tag ddml.Uint8
	if _, err := c.AbsorbUint8(&tag); err != nil {
		return identity.Identifier{}, err
	}
	switch identity.IdentifierTag(tag) {
	case identity.TagEd25519Pub:
		buf := make(ddml.NBytes, ed25519.PublicKeySize)
		if _, err := c.AbsorbNBytes(buf); err != nil {
			return identity.Identifier{}, err
		}
		return identity.NewEd25519Identifier(ed25519.PublicKey(buf)), nil
	case identity.TagPskId:
		buf := make(ddml.NBytes, identity.PskIdSize)
		if _, err := c.AbsorbNBytes(buf); err != nil {
			return identity.Identifier{}, err
		}
		var id identity.PskId
		copy(id[:], buf)
		return identity.NewPskIdentifier(id), nil
	case identity.TagDID:
		var b ddml.Bytes
		if _, err := c.AbsorbBytes(&b); err != nil {
			return identity.Identifier{}, err
		}
		return identity.NewDIDIdentifier(string(b)), nil
	default:
		return identity.Identifier{}, streamserr.New(streamserr.Malformed, "unknown identifier tag on wire")
	}
}
