package user

import (
	"context"

	"github.com/iotaledger/streams-go/pkg/address"
	"github.com/iotaledger/streams-go/pkg/ddml"
	"github.com/iotaledger/streams-go/pkg/message"
	"github.com/iotaledger/streams-go/pkg/spongos"
	"github.com/iotaledger/streams-go/pkg/streamserr"
)

// SendSignedPacket publishes a signed packet linked to the current tip of
// topic, authenticated by this User's own Ed25519 key.
func (u *User) SendSignedPacket(ctx context.Context, topic string, publicPayload, maskedPayload []byte) (address.Address, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	body := &message.SignedPacket{PublicPayload: publicPayload, MaskedPayload: maskedPayload}
	return u.sendLinkedBody(ctx, topic, message.TypeSignedPacket,
		func() int { return message.SizeofSignedPacket(body) },
		func(wc *ddml.WrapContext) error { return message.WrapSignedPacket(wc, body, u.keys.Ed25519Private) },
	)
}

// SendTaggedPacket publishes a tagged packet linked to the current tip of
// topic, authenticated only by a MAC: the recipient must already hold the
// session key established by a prior keyload linked into this message's
// transcript.
func (u *User) SendTaggedPacket(ctx context.Context, topic string, publicPayload, maskedPayload []byte) (address.Address, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	body := &message.TaggedPacket{PublicPayload: publicPayload, MaskedPayload: maskedPayload}
	return u.sendLinkedBody(ctx, topic, message.TypeTaggedPacket,
		func() int { return message.SizeofTaggedPacket(body) },
		func(wc *ddml.WrapContext) error { return message.WrapTaggedPacket(wc, body) },
	)
}

// sendLinkedBody is the scaffolding shared by every message type that links
// to its topic's current tip: derive the next sequence and MsgId, build and
// wrap the HDF, join the predecessor's transcript, wrap the body, send, and
// on success update the link store, cursor, and topic tip. Caller must hold
// u.mu.
func (u *User) sendLinkedBody(
	ctx context.Context,
	topic string,
	msgType uint8,
	bodySize func() int,
	wrapBody func(*ddml.WrapContext) error,
) (address.Address, error) {
	t := address.NewTopic(topic)
	tip, ok := u.topicTip[t]
	if !ok {
		return address.Address{}, streamserr.NewLinkNotFound("no known tip for topic " + string(t))
	}

	seq := u.cursors.Next(u.selfCursorKey(t))
	msgID := address.GenMsgId(u.appAddr, u.identifier, t, seq)

	hdf, err := message.NewHDF(msgType, seq)
	if err != nil {
		return address.Address{}, err
	}
	hdf = hdf.WithLinkedMsgAddress(tip)
	size := bodySize()
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
	if err := wrapBody(wc); err != nil {
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
	if err := u.links.Update(msgID, inner, LinkInfo{MessageType: msgType, Topic: t}); err != nil {
		return address.Address{}, err
	}

	u.cursors.Advance(u.selfCursorKey(t), seq)
	u.topicTip[t] = msgID

	return addr, nil
}
