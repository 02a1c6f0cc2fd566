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

// SendKeyload generates a fresh session key, distributes it to recipients
// (by identifier, using the X25519 public key stored for each from their
// Subscription) and to pskIds (by pre-shared key), and publishes the
// result linked to the current tip of topic. It returns the published
// address and the session key, which the author already holds directly and
// need not recover from the link store.
func (u *User) SendKeyload(ctx context.Context, topic string, recipients []identity.Identifier, pskIds []identity.PskId) (address.Address, [message.SessionKeySize]byte, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.permission.CanWrite() {
		return address.Address{}, [message.SessionKeySize]byte{}, streamserr.New(streamserr.Unexpected, "this user holds no write permission to send a keyload")
	}

	t := address.NewTopic(topic)
	tip, ok := u.topicTip[t]
	if !ok {
		return address.Address{}, [message.SessionKeySize]byte{}, streamserr.NewLinkNotFound("no known tip for topic " + string(t))
	}

	kl := &message.Keyload{PskIds: pskIds}
	copy(kl.Nonce[:], u.prng.SqueezeN(32))
	var sessionKey [message.SessionKeySize]byte
	copy(sessionKey[:], u.prng.SqueezeN(message.SessionKeySize))

	for _, id := range recipients {
		perm := identity.PermissionRead
		if rec, ok := u.subscribers[id.MapKey()]; ok {
			perm = rec.Permission
		}
		kl.Recipients = append(kl.Recipients, message.KeyloadRecipient{Identifier: identity.NewPermissioned(id, perm)})
	}

	seq := u.cursors.Next(u.selfCursorKey(t))
	msgID := address.GenMsgId(u.appAddr, u.identifier, t, seq)

	hdf, err := message.NewHDF(message.TypeKeyload, seq)
	if err != nil {
		return address.Address{}, sessionKey, err
	}
	hdf = hdf.WithLinkedMsgAddress(tip)
	bodySize := message.SizeofKeyload(kl)
	if hdf, err = hdf.WithPayloadLength(uint16(bodySize & 0x3FF)); err != nil {
		return address.Address{}, sessionKey, err
	}

	total := message.SizeofHDF(hdf) + bodySize
	os := ddml.NewFixedOStream(total)
	wc := ddml.NewWrapContext(spongos.NewKeccak(), os)
	if err := message.WrapHDF(wc, hdf); err != nil {
		return address.Address{}, sessionKey, err
	}
	if _, err := u.joinPredecessor(wc.S, tip); err != nil {
		return address.Address{}, sessionKey, err
	}

	linkInner, err := message.WrapKeyload(wc, kl, sessionKey, u.xPublicOf, u.pskOfWrap, u.prng, u.keys.Ed25519Private)
	if err != nil {
		return address.Address{}, sessionKey, err
	}

	addr := address.NewAddress(u.appAddr, msgID)
	if _, err := u.transport.SendMessage(ctx, addr, os.Bytes()); err != nil {
		return address.Address{}, sessionKey, err
	}

	if err := u.links.Update(msgID, linkInner, LinkInfo{MessageType: message.TypeKeyload, Topic: t}); err != nil {
		return address.Address{}, sessionKey, err
	}

	u.cursors.Advance(u.selfCursorKey(t), seq)
	u.topicTip[t] = msgID

	return addr, sessionKey, nil
}

func (u *User) xPublicOf(id identity.Identifier) ([32]byte, error) {
	rec, ok := u.subscribers[id.MapKey()]
	if !ok || !rec.HasXPublic {
		return [32]byte{}, streamserr.New(streamserr.Unexpected, "no stored X25519 public key for recipient "+id.String())
	}
	return rec.XPublic, nil
}

func (u *User) pskOfWrap(id identity.PskId) (identity.Psk, error) {
	psk, ok := u.psks[id]
	if !ok {
		return identity.Psk{}, streamserr.New(streamserr.Unexpected, "no stored psk for id")
	}
	return psk, nil
}
