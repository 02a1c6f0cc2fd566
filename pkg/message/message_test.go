package message

import (
	"bytes"
	"testing"

	"github.com/iotaledger/streams-go/pkg/address"
	"github.com/iotaledger/streams-go/pkg/ddml"
	"github.com/iotaledger/streams-go/pkg/identity"
	"github.com/iotaledger/streams-go/pkg/spongos"
	"github.com/iotaledger/streams-go/pkg/streamserr"
)

func TestHDFRoundTrip(t *testing.T) {
	linked := address.MsgId{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	h, err := NewHDF(TypeSignedPacket, 5)
	if err != nil {
		t.Fatalf("NewHDF: %v", err)
	}
	h = h.WithLinkedMsgAddress(linked)

	size := SizeofHDF(h)
	os := ddml.NewFixedOStream(size)
	wc := ddml.NewWrapContext(spongos.NewKeccak(), os)
	if err := WrapHDF(wc, h); err != nil {
		t.Fatalf("WrapHDF: %v", err)
	}
	if len(os.Bytes()) != size {
		t.Fatalf("Sizeof mismatch: predicted %d, wrote %d", size, len(os.Bytes()))
	}

	is := ddml.NewSliceIStream(os.Bytes())
	uc := ddml.NewUnwrapContext(spongos.NewKeccak(), is)
	got, err := UnwrapHDF(uc)
	if err != nil {
		t.Fatalf("UnwrapHDF: %v", err)
	}

	if got.MessageType != TypeSignedPacket {
		t.Errorf("MessageType = %d, want %d", got.MessageType, TypeSignedPacket)
	}
	if got.Sequence != 5 {
		t.Errorf("Sequence = %d, want 5", got.Sequence)
	}
	if got.LinkedMsgAddress == nil || *got.LinkedMsgAddress != linked {
		t.Errorf("LinkedMsgAddress = %v, want %v", got.LinkedMsgAddress, linked)
	}
}

func TestHDFWithoutLinkedAddress(t *testing.T) {
	h, err := NewHDF(TypeAnnouncement, 0)
	if err != nil {
		t.Fatalf("NewHDF: %v", err)
	}

	size := SizeofHDF(h)
	os := ddml.NewFixedOStream(size)
	wc := ddml.NewWrapContext(spongos.NewKeccak(), os)
	if err := WrapHDF(wc, h); err != nil {
		t.Fatalf("WrapHDF: %v", err)
	}

	is := ddml.NewSliceIStream(os.Bytes())
	uc := ddml.NewUnwrapContext(spongos.NewKeccak(), is)
	got, err := UnwrapHDF(uc)
	if err != nil {
		t.Fatalf("UnwrapHDF: %v", err)
	}
	if got.LinkedMsgAddress != nil {
		t.Errorf("expected nil LinkedMsgAddress, got %v", got.LinkedMsgAddress)
	}
}

func TestAnnouncementRoundTrip(t *testing.T) {
	author, err := identity.GenerateKeypair([]byte("author"))
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	ann := &Announcement{AuthorIdentifier: identity.NewEd25519Identifier(author.Ed25519Public)}

	size := SizeofAnnouncement(ann)
	os := ddml.NewFixedOStream(size)
	wc := ddml.NewWrapContext(spongos.NewKeccak(), os)
	if err := WrapAnnouncement(wc, ann, author.Ed25519Private); err != nil {
		t.Fatalf("WrapAnnouncement: %v", err)
	}

	is := ddml.NewSliceIStream(os.Bytes())
	uc := ddml.NewUnwrapContext(spongos.NewKeccak(), is)
	got, err := UnwrapAnnouncement(uc)
	if err != nil {
		t.Fatalf("UnwrapAnnouncement: %v", err)
	}
	if !got.AuthorIdentifier.Equal(ann.AuthorIdentifier) {
		t.Errorf("recovered author identifier mismatch")
	}
}

func TestSignedPacketRoundTrip(t *testing.T) {
	publisher, err := identity.GenerateKeypair([]byte("publisher"))
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	p := &SignedPacket{PublicPayload: []byte("hello"), MaskedPayload: []byte("secret")}

	size := SizeofSignedPacket(p)
	os := ddml.NewFixedOStream(size)
	wc := ddml.NewWrapContext(spongos.NewKeccak(), os)
	if err := WrapSignedPacket(wc, p, publisher.Ed25519Private); err != nil {
		t.Fatalf("WrapSignedPacket: %v", err)
	}

	is := ddml.NewSliceIStream(os.Bytes())
	uc := ddml.NewUnwrapContext(spongos.NewKeccak(), is)
	got, err := UnwrapSignedPacket(uc, publisher.Ed25519Public)
	if err != nil {
		t.Fatalf("UnwrapSignedPacket: %v", err)
	}
	if !bytes.Equal(got.PublicPayload, p.PublicPayload) || !bytes.Equal(got.MaskedPayload, p.MaskedPayload) {
		t.Errorf("recovered payloads mismatch")
	}
}

func TestSignedPacketTamperDetection(t *testing.T) {
	publisher, err := identity.GenerateKeypair([]byte("publisher"))
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	p := &SignedPacket{PublicPayload: []byte("p"), MaskedPayload: []byte("m")}

	size := SizeofSignedPacket(p)
	os := ddml.NewFixedOStream(size)
	wc := ddml.NewWrapContext(spongos.NewKeccak(), os)
	if err := WrapSignedPacket(wc, p, publisher.Ed25519Private); err != nil {
		t.Fatalf("WrapSignedPacket: %v", err)
	}

	tampered := append([]byte(nil), os.Bytes()...)
	// Flip a byte inside the masked region (after the 2-byte public-length
	// prefix, the public payload, and the 2-byte masked-length prefix: a Size
	// of 1 encodes as a count byte plus one value byte).
	tampered[2+len(p.PublicPayload)+2] ^= 0xff

	is := ddml.NewSliceIStream(tampered)
	uc := ddml.NewUnwrapContext(spongos.NewKeccak(), is)
	_, err = UnwrapSignedPacket(uc, publisher.Ed25519Public)
	if !streamserr.Is(err, streamserr.BadSignature) {
		t.Fatalf("expected BadSignature, got %v", err)
	}
}

func TestTaggedPacketRoundTrip(t *testing.T) {
	p := &TaggedPacket{PublicPayload: []byte("pub"), MaskedPayload: []byte("mask")}

	size := SizeofTaggedPacket(p)
	os := ddml.NewFixedOStream(size)
	wc := ddml.NewWrapContext(spongos.NewKeccak(), os)
	wc.S.Absorb([]byte("session key established by a prior keyload"))
	if err := WrapTaggedPacket(wc, p); err != nil {
		t.Fatalf("WrapTaggedPacket: %v", err)
	}

	is := ddml.NewSliceIStream(os.Bytes())
	uc := ddml.NewUnwrapContext(spongos.NewKeccak(), is)
	uc.S.Absorb([]byte("session key established by a prior keyload"))
	got, err := UnwrapTaggedPacket(uc)
	if err != nil {
		t.Fatalf("UnwrapTaggedPacket: %v", err)
	}
	if !bytes.Equal(got.MaskedPayload, p.MaskedPayload) {
		t.Errorf("recovered masked payload mismatch")
	}
}

func TestTaggedPacketWrongSessionKeyYieldsBadMac(t *testing.T) {
	p := &TaggedPacket{PublicPayload: []byte("pub"), MaskedPayload: []byte("mask")}

	size := SizeofTaggedPacket(p)
	os := ddml.NewFixedOStream(size)
	wc := ddml.NewWrapContext(spongos.NewKeccak(), os)
	wc.S.Absorb([]byte("session key A"))
	if err := WrapTaggedPacket(wc, p); err != nil {
		t.Fatalf("WrapTaggedPacket: %v", err)
	}

	is := ddml.NewSliceIStream(os.Bytes())
	uc := ddml.NewUnwrapContext(spongos.NewKeccak(), is)
	uc.S.Absorb([]byte("session key B (excluded recipient)"))
	_, err := UnwrapTaggedPacket(uc)
	if !streamserr.Is(err, streamserr.BadMac) {
		t.Fatalf("expected BadMac for excluded recipient, got %v", err)
	}
}

func TestKeyloadIncludedAndExcludedRecipients(t *testing.T) {
	author, err := identity.GenerateKeypair([]byte("author"))
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	subA, err := identity.GenerateKeypair([]byte("subA"))
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	subB, err := identity.GenerateKeypair([]byte("subB"))
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}

	idA := identity.NewEd25519Identifier(subA.Ed25519Public)
	kl := &Keyload{
		Nonce: [32]byte{1, 2, 3},
		Recipients: []KeyloadRecipient{
			{Identifier: identity.NewPermissioned(idA, identity.PermissionRead)},
		},
	}

	var sessionKey [SessionKeySize]byte
	copy(sessionKey[:], []byte("a fresh 32 byte session key!!!!"))

	xPublicOf := func(id identity.Identifier) ([32]byte, error) {
		return subA.X25519Public, nil
	}

	size := SizeofKeyload(kl)
	os := ddml.NewFixedOStream(size)
	wc := ddml.NewWrapContext(spongos.NewKeccak(), os)
	rnd := spongos.NewKeccak()
	rnd.Absorb([]byte("randomness source"))
	if _, err := WrapKeyload(wc, kl, sessionKey, xPublicOf, nil, rnd, author.Ed25519Private); err != nil {
		t.Fatalf("WrapKeyload: %v", err)
	}

	// A included.
	isA := ddml.NewSliceIStream(os.Bytes())
	ucA := ddml.NewUnwrapContext(spongos.NewKeccak(), isA)
	resA, err := UnwrapKeyload(ucA, idA, subA.X25519Private, nil, author.Ed25519Public)
	if err != nil {
		t.Fatalf("UnwrapKeyload (A): %v", err)
	}
	if !resA.Included {
		t.Fatal("expected A to be included in the keyload")
	}
	if resA.SessionKey != sessionKey {
		t.Errorf("A recovered wrong session key")
	}

	// B excluded.
	idB := identity.NewEd25519Identifier(subB.Ed25519Public)
	isB := ddml.NewSliceIStream(os.Bytes())
	ucB := ddml.NewUnwrapContext(spongos.NewKeccak(), isB)
	resB, err := UnwrapKeyload(ucB, idB, subB.X25519Private, nil, author.Ed25519Public)
	if err != nil {
		t.Fatalf("UnwrapKeyload (B): %v", err)
	}
	if resB.Included {
		t.Fatal("expected B to be excluded from the keyload")
	}
}

func TestKeyloadLinkInnerAgreesWithIncludedRecipient(t *testing.T) {
	author, err := identity.GenerateKeypair([]byte("author"))
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	subA, err := identity.GenerateKeypair([]byte("subA"))
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}

	idA := identity.NewEd25519Identifier(subA.Ed25519Public)
	kl := &Keyload{
		Nonce:      [32]byte{7, 7, 7},
		Recipients: []KeyloadRecipient{{Identifier: identity.NewPermissioned(idA, identity.PermissionRead)}},
	}
	var sessionKey [SessionKeySize]byte
	copy(sessionKey[:], []byte("yet another 32 byte session key!"))

	xPublicOf := func(id identity.Identifier) ([32]byte, error) { return subA.X25519Public, nil }

	size := SizeofKeyload(kl)
	os := ddml.NewFixedOStream(size)
	wc := ddml.NewWrapContext(spongos.NewKeccak(), os)
	rnd := spongos.NewKeccak()
	rnd.Absorb([]byte("randomness"))
	wrapInner, err := WrapKeyload(wc, kl, sessionKey, xPublicOf, nil, rnd, author.Ed25519Private)
	if err != nil {
		t.Fatalf("WrapKeyload: %v", err)
	}

	is := ddml.NewSliceIStream(os.Bytes())
	uc := ddml.NewUnwrapContext(spongos.NewKeccak(), is)
	res, err := UnwrapKeyload(uc, idA, subA.X25519Private, nil, author.Ed25519Public)
	if err != nil {
		t.Fatalf("UnwrapKeyload: %v", err)
	}
	if !res.Included {
		t.Fatal("expected recipient to be included")
	}
	if !bytes.Equal(wrapInner.Capacity, res.LinkInner.Capacity) {
		t.Errorf("wrap-side and unwrap-side session-binding link inner diverge")
	}
}

func TestKeyloadPskRecipient(t *testing.T) {
	author, err := identity.GenerateKeypair([]byte("author"))
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	psk := identity.NewPsk([]byte("pw"))

	kl := &Keyload{
		Nonce:  [32]byte{9, 9, 9},
		PskIds: []identity.PskId{psk.Id()},
	}

	var sessionKey [SessionKeySize]byte
	copy(sessionKey[:], []byte("another 32 byte session key!!!!"))

	pskOf := func(id identity.PskId) (identity.Psk, error) { return psk, nil }

	size := SizeofKeyload(kl)
	os := ddml.NewFixedOStream(size)
	wc := ddml.NewWrapContext(spongos.NewKeccak(), os)
	rnd := spongos.NewKeccak()
	rnd.Absorb([]byte("randomness"))
	if _, err := WrapKeyload(wc, kl, sessionKey, nil, pskOf, rnd, author.Ed25519Private); err != nil {
		t.Fatalf("WrapKeyload: %v", err)
	}

	is := ddml.NewSliceIStream(os.Bytes())
	uc := ddml.NewUnwrapContext(spongos.NewKeccak(), is)
	pskMembership := func(id identity.PskId) (identity.Psk, bool) { return psk, id == psk.Id() }
	res, err := UnwrapKeyload(uc, identity.Identifier{}, [32]byte{}, pskMembership, author.Ed25519Public)
	if err != nil {
		t.Fatalf("UnwrapKeyload: %v", err)
	}
	if !res.Included {
		t.Fatal("expected PSK recipient to be included")
	}
	if res.SessionKey != sessionKey {
		t.Errorf("PSK recipient recovered wrong session key")
	}
}

func TestSubscriptionRoundTrip(t *testing.T) {
	author, err := identity.GenerateKeypair([]byte("author"))
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	subscriber, err := identity.GenerateKeypair([]byte("subscriber"))
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}

	var unsubKey [32]byte
	copy(unsubKey[:], []byte("future unsubscribe key 32 bytes"))

	sub := &Subscription{SubscriberIdentifier: identity.NewEd25519Identifier(subscriber.Ed25519Public)}

	size := SizeofSubscription()
	os := ddml.NewFixedOStream(size)
	wc := ddml.NewWrapContext(spongos.NewKeccak(), os)
	if err := WrapSubscription(wc, sub, subscriber.X25519Public, subscriber.X25519Private, unsubKey, author.X25519Public, subscriber.Ed25519Private); err != nil {
		t.Fatalf("WrapSubscription: %v", err)
	}

	is := ddml.NewSliceIStream(os.Bytes())
	uc := ddml.NewUnwrapContext(spongos.NewKeccak(), is)
	got, gotUnsubKey, err := UnwrapSubscription(uc, author.X25519Private)
	if err != nil {
		t.Fatalf("UnwrapSubscription: %v", err)
	}
	if !got.SubscriberIdentifier.Equal(sub.SubscriberIdentifier) {
		t.Errorf("recovered subscriber identifier mismatch")
	}
	if got.SubscriberXPublic != subscriber.X25519Public {
		t.Errorf("recovered subscriber X25519 public key mismatch")
	}
	if gotUnsubKey != unsubKey {
		t.Errorf("recovered unsubscribe key mismatch")
	}
}

func TestUnsubscriptionRoundTrip(t *testing.T) {
	subscriber, err := identity.GenerateKeypair([]byte("subscriber"))
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	var unsubKey [32]byte
	copy(unsubKey[:], []byte("shared unsubscribe key 32 bytes "))

	u := &Unsubscription{SubscriberIdentifier: identity.NewEd25519Identifier(subscriber.Ed25519Public)}

	size := SizeofUnsubscription()
	os := ddml.NewFixedOStream(size)
	wc := ddml.NewWrapContext(spongos.NewKeccak(), os)
	if err := WrapUnsubscription(wc, u, unsubKey); err != nil {
		t.Fatalf("WrapUnsubscription: %v", err)
	}
	if len(os.Bytes()) != size {
		t.Fatalf("Sizeof mismatch: predicted %d, wrote %d", size, len(os.Bytes()))
	}

	is := ddml.NewSliceIStream(os.Bytes())
	uc := ddml.NewUnwrapContext(spongos.NewKeccak(), is)
	got, err := UnwrapUnsubscription(uc, func(id identity.Identifier) ([32]byte, error) {
		return unsubKey, nil
	})
	if err != nil {
		t.Fatalf("UnwrapUnsubscription: %v", err)
	}
	if !got.SubscriberIdentifier.Equal(u.SubscriberIdentifier) {
		t.Errorf("recovered subscriber identifier mismatch")
	}
}

func TestUnsubscriptionWrongKeyYieldsBadMac(t *testing.T) {
	subscriber, err := identity.GenerateKeypair([]byte("subscriber"))
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	var unsubKey, wrongKey [32]byte
	copy(unsubKey[:], []byte("shared unsubscribe key 32 bytes "))
	copy(wrongKey[:], []byte("a completely different 32 bytes"))

	u := &Unsubscription{SubscriberIdentifier: identity.NewEd25519Identifier(subscriber.Ed25519Public)}

	size := SizeofUnsubscription()
	os := ddml.NewFixedOStream(size)
	wc := ddml.NewWrapContext(spongos.NewKeccak(), os)
	if err := WrapUnsubscription(wc, u, unsubKey); err != nil {
		t.Fatalf("WrapUnsubscription: %v", err)
	}

	is := ddml.NewSliceIStream(os.Bytes())
	uc := ddml.NewUnwrapContext(spongos.NewKeccak(), is)
	_, err = UnwrapUnsubscription(uc, func(id identity.Identifier) ([32]byte, error) {
		return wrongKey, nil
	})
	if !streamserr.Is(err, streamserr.BadMac) {
		t.Fatalf("expected BadMac, got %v", err)
	}
}
