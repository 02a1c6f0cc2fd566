package message

import (
	"crypto/ed25519"

	"github.com/iotaledger/streams-go/pkg/ddml"
	"github.com/iotaledger/streams-go/pkg/identity"
	"github.com/iotaledger/streams-go/pkg/spongos"
)

const unsubscribeKeySize = 32

// SizeofSubscription returns the wire byte count a subscription body would
// produce.
func SizeofSubscription() int {
	c := ddml.NewSizeofContext()
	c.X25519Mask(make(ddml.NBytes, unsubscribeKeySize))
	sizeofIdentifier(c, identity.Identifier{Tag: identity.TagEd25519Pub, Ed25519: make(ed25519.PublicKey, ed25519.PublicKeySize)})
	c.Commit()
	c.Ed25519Sign()
	return c.Size()
}

// WrapSubscription encapsulates to the author's X25519 public key using the
// subscriber's own X25519 keypair (the same key the author will go on to
// record and use as a keyload recipient key), masking a future unsubscribe
// key, then absorbs and signs the subscriber's identifier.
func WrapSubscription(
	c *ddml.WrapContext,
	sub *Subscription,
	subscriberXPublic, subscriberXPrivate [32]byte,
	unsubscribeKey [unsubscribeKeySize]byte,
	authorXPublic [32]byte,
	subscriberKey ed25519.PrivateKey,
) error {
	shared, err := identity.SharedSecretFrom(subscriberXPrivate, authorXPublic)
	if err != nil {
		return err
	}
	if _, err := c.X25519Mask(subscriberXPublic, shared, ddml.NBytes(unsubscribeKey[:])); err != nil {
		return err
	}
	if err := wrapIdentifier(c, sub.SubscriberIdentifier); err != nil {
		return err
	}
	c.Commit()
	_, err = c.Ed25519Sign(subscriberKey)
	return err
}

// UnwrapSubscription decapsulates the future unsubscribe key using the
// author's X25519 private key, reads and verifies the subscriber's
// identifier, and returns the subscription (with the subscriber's X25519
// public key recovered from the wire, for the author to store) along with
// the recovered unsubscribe key.
func UnwrapSubscription(c *ddml.UnwrapContext, authorXPrivate [32]byte) (*Subscription, [unsubscribeKeySize]byte, error) {
	var unsubscribeKey [unsubscribeKeySize]byte
	var subscriberXPublic [32]byte
	sk := ddml.NBytes(unsubscribeKey[:])
	if _, err := c.X25519Unmask(func(ephemeralPublic [32]byte) [32]byte {
		subscriberXPublic = ephemeralPublic
		shared, _ := identity.SharedSecretFrom(authorXPrivate, ephemeralPublic)
		return shared
	}, sk); err != nil {
		return nil, unsubscribeKey, err
	}

	id, err := unwrapIdentifier(c)
	if err != nil {
		return nil, unsubscribeKey, err
	}

	c.Commit()
	if _, err := c.Ed25519Verify(id.Ed25519); err != nil {
		return nil, unsubscribeKey, err
	}

	return &Subscription{SubscriberIdentifier: id, SubscriberXPublic: subscriberXPublic}, unsubscribeKey, nil
}
