package message

import (
	"crypto/ed25519"

	"github.com/iotaledger/streams-go/pkg/ddml"
	"github.com/iotaledger/streams-go/pkg/identity"
)

const unsubscriptionMacSize = 32

// SizeofUnsubscription returns the wire byte count an unsubscription body
// would produce.
func SizeofUnsubscription() int {
	c := ddml.NewSizeofContext()
	sizeofIdentifier(c, identity.Identifier{Tag: identity.TagEd25519Pub, Ed25519: make(ed25519.PublicKey, ed25519.PublicKeySize)})
	c.Commit()
	c.Squeeze(ddml.Mac(unsubscriptionMacSize))
	return c.Size()
}

// WrapUnsubscription absorbs the withdrawing subscriber's identifier, then
// authenticates with the unsubscribe key the subscriber encapsulated to the
// author in its subscription (an external absorb followed by a squeezed MAC, not a
// signature: this message type proves possession of that shared secret, not
// a fresh Ed25519 signature).
func WrapUnsubscription(c *ddml.WrapContext, u *Unsubscription, unsubscribeKey [unsubscribeKeySize]byte) error {
	if err := wrapIdentifier(c, u.SubscriberIdentifier); err != nil {
		return err
	}
	c.AbsorbExternalNBytes(ddml.NewExternal(ddml.NBytes(unsubscribeKey[:])))
	c.Commit()
	_, err := c.Squeeze(ddml.Mac(unsubscriptionMacSize))
	return err
}

// UnwrapUnsubscription reads an unsubscription body and verifies its MAC
// against the unsubscribe key the author recorded for the withdrawing
// identifier at subscription time.
func UnwrapUnsubscription(c *ddml.UnwrapContext, unsubscribeKeyOf func(id identity.Identifier) ([unsubscribeKeySize]byte, error)) (*Unsubscription, error) {
	id, err := unwrapIdentifier(c)
	if err != nil {
		return nil, err
	}
	key, err := unsubscribeKeyOf(id)
	if err != nil {
		return nil, err
	}
	c.AbsorbExternalNBytes(ddml.NewExternal(ddml.NBytes(key[:])))
	c.Commit()
	if _, err := c.Squeeze(ddml.Mac(unsubscriptionMacSize)); err != nil {
		return nil, err
	}
	return &Unsubscription{SubscriberIdentifier: id}, nil
}
