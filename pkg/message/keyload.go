package message

import (
	"crypto/ed25519"

	"github.com/iotaledger/streams-go/pkg/ddml"
	"github.com/iotaledger/streams-go/pkg/identity"
	"github.com/iotaledger/streams-go/pkg/spongos"
	"github.com/iotaledger/streams-go/pkg/streamserr"
)

// SessionKeySize is the length in bytes of a keyload's generated session
// key.
const SessionKeySize = 32
const keyloadMacSize = 32

// RecipientXPublicLookup resolves the X25519 public key the author recorded
// for an Ed25519 subscriber identifier at subscription time.
type RecipientXPublicLookup func(id identity.Identifier) ([32]byte, error)

// PskLookup resolves a PskId to the pre-shared key it identifies.
type PskLookup func(id identity.PskId) (identity.Psk, error)

func sizeofRecipient(c *ddml.SizeofContext, r KeyloadRecipient) {
	sizeofIdentifier(c, r.Identifier.Identifier)
	switch r.Identifier.Identifier.Tag {
	case identity.TagEd25519Pub:
		c.X25519Mask(make(ddml.NBytes, SessionKeySize))
	case identity.TagPskId:
		c.MaskNBytes(make(ddml.NBytes, SessionKeySize))
	}
}

// SizeofKeyload returns the wire byte count a keyload body would produce.
func SizeofKeyload(kl *Keyload) int {
	c := ddml.NewSizeofContext()
	c.AbsorbNBytes(make(ddml.NBytes, len(kl.Nonce)))
	c.AbsorbSize(ddml.Size(len(kl.Recipients)))
	for _, r := range kl.Recipients {
		sizeofRecipient(c, r)
	}
	c.AbsorbSize(ddml.Size(len(kl.PskIds)))
	for range kl.PskIds {
		c.AbsorbNBytes(make(ddml.NBytes, identity.PskIdSize))
		c.MaskNBytes(make(ddml.NBytes, SessionKeySize))
	}
	c.Commit()
	c.Squeeze(ddml.Mac(keyloadMacSize))
	c.Ed25519Sign()
	return c.Size()
}

// WrapKeyload absorbs the nonce, then for each recipient forks the
// transcript, absorbs the recipient's identifier, and masks the session key
// (X25519 encapsulation for Ed25519 identifiers, PSK-absorb for PSK
// identifiers). After all recipients it commits on the main transcript,
// squeezes a MAC, and signs. It returns the committed inner state of a
// session-binding fork taken right after the nonce absorb: anyone who
// learns sessionKey can reproduce this same fork (fork-from-identical-
// prefix, absorb the key, commit), so it is what this module's link store
// records for the keyload's MsgId — the join target for every subsequent
// signed/tagged packet linked to this keyload.
func WrapKeyload(
	c *ddml.WrapContext,
	kl *Keyload,
	sessionKey [SessionKeySize]byte,
	xPublicOf RecipientXPublicLookup,
	pskOf PskLookup,
	randSource *spongos.Spongos,
	authorKey ed25519.PrivateKey,
) (spongos.Inner, error) {
	if _, err := c.AbsorbNBytes(ddml.NBytes(kl.Nonce[:])); err != nil {
		return spongos.Inner{}, err
	}

	sessionFork := c.S.Fork()
	sessionFork.Absorb(sessionKey[:])
	sessionFork.Commit()
	linkInner, err := sessionFork.ToInner()
	if err != nil {
		return spongos.Inner{}, err
	}

	if _, err := c.AbsorbSize(ddml.Size(len(kl.Recipients))); err != nil {
		return spongos.Inner{}, err
	}
	for _, r := range kl.Recipients {
		fork := c.Fork()
		if err := wrapIdentifier(fork, r.Identifier.Identifier); err != nil {
			return spongos.Inner{}, err
		}
		switch r.Identifier.Identifier.Tag {
		case identity.TagEd25519Pub:
			xPublic, err := xPublicOf(r.Identifier.Identifier)
			if err != nil {
				return spongos.Inner{}, err
			}
			ephPublic, ephPrivate := identity.EphemeralX25519(randSource)
			shared, err := identity.SharedSecretFrom(ephPrivate, xPublic)
			if err != nil {
				return spongos.Inner{}, err
			}
			if _, err := fork.X25519Mask(ephPublic, shared, ddml.NBytes(sessionKey[:])); err != nil {
				return spongos.Inner{}, err
			}
		case identity.TagPskId:
			psk, err := pskOf(r.Identifier.Identifier.Psk)
			if err != nil {
				return spongos.Inner{}, err
			}
			fork.AbsorbExternalNBytes(ddml.NewExternal(ddml.NBytes(psk[:])))
			fork.Commit()
			if _, err := fork.MaskNBytes(ddml.NBytes(sessionKey[:])); err != nil {
				return spongos.Inner{}, err
			}
		default:
			return spongos.Inner{}, streamserr.New(streamserr.Malformed, "keyload recipient identifier must be Ed25519 or PSK")
		}
	}

	if _, err := c.AbsorbSize(ddml.Size(len(kl.PskIds))); err != nil {
		return spongos.Inner{}, err
	}
	for _, pskID := range kl.PskIds {
		fork := c.Fork()
		if _, err := fork.AbsorbNBytes(ddml.NBytes(pskID[:])); err != nil {
			return spongos.Inner{}, err
		}
		psk, err := pskOf(pskID)
		if err != nil {
			return spongos.Inner{}, err
		}
		fork.AbsorbExternalNBytes(ddml.NewExternal(ddml.NBytes(psk[:])))
		fork.Commit()
		if _, err := fork.MaskNBytes(ddml.NBytes(sessionKey[:])); err != nil {
			return spongos.Inner{}, err
		}
	}

	c.Commit()
	if _, err := c.Squeeze(ddml.Mac(keyloadMacSize)); err != nil {
		return spongos.Inner{}, err
	}
	if _, err := c.Ed25519Sign(authorKey); err != nil {
		return spongos.Inner{}, err
	}
	return linkInner, nil
}

// UnwrapKeyloadResult carries the outcome of attempting to unwrap a keyload
// as a specific recipient: SessionKey is populated only when Included is
// true.
type UnwrapKeyloadResult struct {
	Keyload    *Keyload
	Included   bool
	SessionKey [SessionKeySize]byte
	// LinkInner is the committed inner state of the session-binding fork
	// (see WrapKeyload), populated only when Included is true: this is what
	// the caller records in its link store for the keyload's MsgId so that
	// subsequent signed/tagged packets linked to it can join.
	LinkInner spongos.Inner
}

// PskMembership looks up a psk this user holds by id, reporting whether it
// is known at all.
type PskMembership func(id identity.PskId) (identity.Psk, bool)

// UnwrapKeyload reads a keyload body, attempting the fork belonging to
// selfIdentifier (an Ed25519 identifier using xPrivate) or any psk known to
// pskOf. Recipients attempt each fork in turn with their own secret; here
// the caller already knows which fork is theirs, since the wire carries an
// explicit identifier per recipient.
func UnwrapKeyload(
	c *ddml.UnwrapContext,
	selfIdentifier identity.Identifier,
	xPrivate [32]byte,
	pskOf PskMembership,
	authorKey ed25519.PublicKey,
) (*UnwrapKeyloadResult, error) {
	var nonce [32]byte
	if err := readNBytesInto(c, nonce[:]); err != nil {
		return nil, err
	}

	kl := &Keyload{Nonce: nonce}
	result := &UnwrapKeyloadResult{Keyload: kl}
	sessionFork := c.S.Fork()

	var recipientCountWire ddml.Size
	if _, err := c.AbsorbSize(&recipientCountWire); err != nil {
		return nil, err
	}
	recipientCount := int(recipientCountWire)

	for i := 0; i < recipientCount; i++ {
		fork := c.Fork()
		id, err := unwrapIdentifier(fork)
		if err != nil {
			return nil, err
		}
		kl.Recipients = append(kl.Recipients, KeyloadRecipient{Identifier: identity.NewPermissioned(id, identity.PermissionRead)})

		switch id.Tag {
		case identity.TagEd25519Pub:
			var sessionKey [SessionKeySize]byte
			sk := ddml.NBytes(sessionKey[:])
			_, err := fork.X25519Unmask(func(ephemeralPublic [32]byte) [32]byte {
				shared, _ := identity.SharedSecretFrom(xPrivate, ephemeralPublic)
				return shared
			}, sk)
			if err == nil && id.Equal(selfIdentifier) {
				result.Included = true
				result.SessionKey = sessionKey
			}
			// A mismatch here (wrong recipient's fork) is expected and
			// silently discarded: only the matching fork yields a usable
			// session key, per the keyload fork-and-try-each-own-secret
			// design.
		case identity.TagPskId:
			if psk, ok := pskOf(id.Psk); ok {
				fork.AbsorbExternalNBytes(ddml.NewExternal(ddml.NBytes(psk[:])))
				fork.Commit()
				var sessionKey [SessionKeySize]byte
				sk := ddml.NBytes(sessionKey[:])
				if _, err := fork.MaskNBytes(sk); err == nil {
					result.Included = true
					result.SessionKey = sessionKey
				}
			}
		}
	}

	var pskCountWire ddml.Size
	if _, err := c.AbsorbSize(&pskCountWire); err != nil {
		return nil, err
	}
	pskCount := int(pskCountWire)

	for i := 0; i < pskCount; i++ {
		fork := c.Fork()
		var pskID identity.PskId
		if err := readNBytesInto(fork, pskID[:]); err != nil {
			return nil, err
		}
		kl.PskIds = append(kl.PskIds, pskID)
		if psk, ok := pskOf(pskID); ok {
			fork.AbsorbExternalNBytes(ddml.NewExternal(ddml.NBytes(psk[:])))
			fork.Commit()
			var sessionKey [SessionKeySize]byte
			sk := ddml.NBytes(sessionKey[:])
			if _, err := fork.MaskNBytes(sk); err == nil {
				result.Included = true
				result.SessionKey = sessionKey
			}
		}
	}

	if result.Included {
		sessionFork.Absorb(result.SessionKey[:])
		sessionFork.Commit()
		inner, err := sessionFork.ToInner()
		if err != nil {
			return nil, err
		}
		result.LinkInner = inner
	}

	c.Commit()
	if _, err := c.Squeeze(ddml.Mac(keyloadMacSize)); err != nil {
		return nil, err
	}
	if _, err := c.Ed25519Verify(authorKey); err != nil {
		return nil, err
	}

	return result, nil
}

func readNBytesInto(c *ddml.UnwrapContext, out []byte) error {
	_, err := c.AbsorbNBytes(ddml.NBytes(out))
	return err
}
