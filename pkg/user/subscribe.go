package user

import (
	"context"

	"github.com/iotaledger/streams-go/pkg/address"
	"github.com/iotaledger/streams-go/pkg/ddml"
	"github.com/iotaledger/streams-go/pkg/identity"
	"github.com/iotaledger/streams-go/pkg/message"
	"github.com/iotaledger/streams-go/pkg/spongos"
	"github.com/iotaledger/streams-go/pkg/streamserr"
)

// Subscribe publishes a subscription request encapsulated to the channel
// author's X25519 public key, linked to the current tip of the root topic.
// The caller must have already learned the channel's root topic and the
// author's identifier and X25519 public key, normally via ReceiveAnnouncement.
func (u *User) Subscribe(ctx context.Context) (address.Address, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.hasAuthorXPublic {
		return address.Address{}, streamserr.New(streamserr.Unexpected, "author's X25519 public key is not yet known")
	}
	tip, ok := u.topicTip[u.rootTopic]
	if !ok {
		return address.Address{}, streamserr.NewLinkNotFound("no known tip for root topic")
	}

	var unsubscribeKey [32]byte
	copy(unsubscribeKey[:], u.prng.SqueezeN(32))

	sub := &message.Subscription{SubscriberIdentifier: u.identifier}
	size := message.SizeofSubscription()

	seq := u.cursors.Next(u.selfCursorKey(u.rootTopic))
	msgID := address.GenMsgId(u.appAddr, u.identifier, u.rootTopic, seq)

	hdf, err := message.NewHDF(message.TypeSubscription, seq)
	if err != nil {
		return address.Address{}, err
	}
	hdf = hdf.WithLinkedMsgAddress(tip)
	if hdf, err = hdf.WithPayloadLength(uint16(size & 0x3FF)); err != nil {
		return address.Address{}, err
	}

	total := message.SizeofHDF(hdf) + size
	os := ddml.NewFixedOStream(total)
	wc := ddml.NewWrapContext(spongos.NewKeccak(), os)
	if err := message.WrapHDF(wc, hdf); err != nil {
		return address.Address{}, err
	}
	if _, err := u.joinPredecessor(wc.S, tip); err != nil {
		return address.Address{}, err
	}
	if err := message.WrapSubscription(wc, sub, u.keys.X25519Public, u.keys.X25519Private, unsubscribeKey, u.authorXPublic, u.keys.Ed25519Private); err != nil {
		return address.Address{}, err
	}

	addr := address.NewAddress(u.appAddr, msgID)
	if _, err := u.transport.SendMessage(ctx, addr, os.Bytes()); err != nil {
		return address.Address{}, err
	}

	inner, err := finalInnerWrap(wc)
	if err != nil {
		return address.Address{}, err
	}
	if err := u.links.Update(msgID, inner, LinkInfo{MessageType: message.TypeSubscription, Topic: u.rootTopic}); err != nil {
		return address.Address{}, err
	}

	u.cursors.Advance(u.selfCursorKey(u.rootTopic), seq)
	u.topicTip[u.rootTopic] = msgID
	u.ownUnsubscribeKey = unsubscribeKey
	u.hasOwnUnsubscribeKey = true

	return addr, nil
}

// Unsubscribe publishes an unsubscription linked to keyloadAddr, the last
// keyload this User was (or believed it was) included in, authenticated by
// the unsubscribe key this User minted at Subscribe time.
func (u *User) Unsubscribe(ctx context.Context, keyloadAddr address.MsgId) (address.Address, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.hasOwnUnsubscribeKey {
		return address.Address{}, streamserr.New(streamserr.Unexpected, "no unsubscribe key: this user never subscribed")
	}

	body := &message.Unsubscription{SubscriberIdentifier: u.identifier}
	size := message.SizeofUnsubscription()

	seq := u.cursors.Next(u.selfCursorKey(u.rootTopic))
	msgID := address.GenMsgId(u.appAddr, u.identifier, u.rootTopic, seq)

	hdf, err := message.NewHDF(message.TypeUnsubscription, seq)
	if err != nil {
		return address.Address{}, err
	}
	hdf = hdf.WithLinkedMsgAddress(keyloadAddr)
	if hdf, err = hdf.WithPayloadLength(uint16(size & 0x3FF)); err != nil {
		return address.Address{}, err
	}

	total := message.SizeofHDF(hdf) + size
	os := ddml.NewFixedOStream(total)
	wc := ddml.NewWrapContext(spongos.NewKeccak(), os)
	if err := message.WrapHDF(wc, hdf); err != nil {
		return address.Address{}, err
	}
	if _, err := u.joinPredecessor(wc.S, keyloadAddr); err != nil {
		return address.Address{}, err
	}
	if err := message.WrapUnsubscription(wc, body, u.ownUnsubscribeKey); err != nil {
		return address.Address{}, err
	}

	addr := address.NewAddress(u.appAddr, msgID)
	if _, err := u.transport.SendMessage(ctx, addr, os.Bytes()); err != nil {
		return address.Address{}, err
	}

	inner, err := finalInnerWrap(wc)
	if err != nil {
		return address.Address{}, err
	}
	if err := u.links.Update(msgID, inner, LinkInfo{MessageType: message.TypeUnsubscription, Topic: u.rootTopic}); err != nil {
		return address.Address{}, err
	}

	u.cursors.Advance(u.selfCursorKey(u.rootTopic), seq)
	u.topicTip[u.rootTopic] = msgID

	return addr, nil
}

// GrantPermission records perm for a subscriber already known from a
// received Subscription, for the author to use as a keyload recipient
// permission on the next SendKeyload.
func (u *User) GrantPermission(id identity.Identifier, perm identity.Permission) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	rec, ok := u.subscribers[id.MapKey()]
	if !ok {
		return streamserr.New(streamserr.Unexpected, "unknown subscriber "+id.String())
	}
	rec.Permission = perm
	return nil
}

// SubscriberXPublic returns the X25519 public key stored for id, for a
// caller that wants to list known subscribers.
func (u *User) SubscriberXPublic(id identity.Identifier) ([32]byte, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	rec, ok := u.subscribers[id.MapKey()]
	if !ok || !rec.HasXPublic {
		return [32]byte{}, false
	}
	return rec.XPublic, true
}
