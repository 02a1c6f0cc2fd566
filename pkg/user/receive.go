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

// ReceiveAnnouncement is the bootstrap entry point for a fresh User that has
// not yet joined a channel: the root topic and the author's X25519 public
// key cannot be recovered from the wire bytes alone, so a caller (an invite
// link, in effect) must supply them out of band.
func (u *User) ReceiveAnnouncement(ctx context.Context, addr address.Address, topic string, authorXPublic [32]byte) (*Message, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	raw, err := u.transport.ReceiveMessage(ctx, addr)
	if err != nil {
		return nil, err
	}

	uc := ddml.NewUnwrapContext(spongos.NewKeccak(), ddml.NewSliceIStream(raw))
	hdf, err := message.UnwrapHDF(uc)
	if err != nil {
		return nil, err
	}
	if hdf.MessageType != message.TypeAnnouncement || hdf.LinkedMsgAddress != nil {
		return nil, streamserr.NewMalformed("expected an unlinked announcement at this address")
	}

	ann, err := message.UnwrapAnnouncement(uc)
	if err != nil {
		return nil, err
	}

	t := address.NewTopic(topic)
	inner, err := finalInnerUnwrap(uc)
	if err != nil {
		return nil, err
	}
	if err := u.links.Update(addr.MsgId, inner, LinkInfo{MessageType: message.TypeAnnouncement, Topic: t}); err != nil {
		return nil, err
	}

	u.appAddr = addr.AppAddr
	u.rootTopic = t
	u.authorIdentifier = ann.AuthorIdentifier
	u.authorXPublic = authorXPublic
	u.hasAuthorXPublic = true
	u.topicTip[t] = addr.MsgId
	u.cursors.Advance(u.otherCursorKey(t, ann.AuthorIdentifier), hdf.Sequence)

	u.logger.Infof("joined channel %s on topic %q", addr.AppAddr, topic)

	return &Message{
		Address:   addr,
		Topic:     t,
		Publisher: ann.AuthorIdentifier,
		Body:      message.Body{Kind: message.KindAnnouncement, Announcement: ann},
	}, nil
}

// ReceiveMessage reads the message at addr, already known to have been
// published under topic by publisher (the caller, or a streaming iterator
// built on top of this package, resolves that from the cursor map before
// asking the transport for the predicted address). It dispatches on the
// HDF's message type, joining the transcript with the recorded
// predecessor, and returns the decoded Message.
//
// A LinkNotFound here (the predecessor is not yet known) is a hard error:
// callers that want orphan semantics instead should queue this address and
// retry once the predecessor has been received, the behavior a streaming
// iterator built on this package implements.
func (u *User) ReceiveMessage(ctx context.Context, addr address.Address, topic string, publisher identity.Identifier) (*Message, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.receiveLocked(ctx, addr, address.NewTopic(topic), publisher)
}

func (u *User) receiveLocked(ctx context.Context, addr address.Address, topic address.Topic, publisher identity.Identifier) (*Message, error) {
	raw, err := u.transport.ReceiveMessage(ctx, addr)
	if err != nil {
		return nil, err
	}

	uc := ddml.NewUnwrapContext(spongos.NewKeccak(), ddml.NewSliceIStream(raw))
	hdf, err := message.UnwrapHDF(uc)
	if err != nil {
		return nil, err
	}
	if hdf.LinkedMsgAddress == nil {
		return nil, streamserr.NewMalformed("expected a linked message")
	}

	if _, err := u.joinPredecessor(uc.S, *hdf.LinkedMsgAddress); err != nil {
		return nil, err
	}

	var body message.Body
	switch hdf.MessageType {
	case message.TypeBranchAnnouncement:
		ba, err := message.UnwrapBranchAnnouncement(uc, publisher.Ed25519)
		if err != nil {
			return nil, err
		}
		child := address.NewTopic(ba.NewTopic)
		u.topicTip[child] = addr.MsgId
		u.topicParent[child] = topic
		u.topicTip[topic] = addr.MsgId
		body = message.Body{Kind: message.KindBranchAnnouncement, BranchAnnouncement: ba}

	case message.TypeKeyload:
		res, err := message.UnwrapKeyload(uc, u.identifier, u.keys.X25519Private, u.pskOf, publisher.Ed25519)
		if err != nil {
			return nil, err
		}
		linkInfo := LinkInfo{MessageType: message.TypeKeyload, Topic: topic, Excluded: !res.Included}
		linkInner := res.LinkInner
		if err := u.links.Update(addr.MsgId, linkInner, linkInfo); err != nil {
			return nil, err
		}
		u.topicTip[topic] = addr.MsgId
		u.cursors.Advance(u.otherCursorKey(topic, publisher), hdf.Sequence)
		body = message.Body{Kind: message.KindKeyload, Keyload: res.Keyload}
		return &Message{Address: addr, Topic: topic, Publisher: publisher, Body: body}, nil

	case message.TypeSignedPacket:
		sp, err := message.UnwrapSignedPacket(uc, publisher.Ed25519)
		if err != nil {
			return nil, err
		}
		body = message.Body{Kind: message.KindSignedPacket, SignedPacket: sp}

	case message.TypeTaggedPacket:
		tp, err := message.UnwrapTaggedPacket(uc)
		if err != nil {
			return nil, err
		}
		body = message.Body{Kind: message.KindTaggedPacket, TaggedPacket: tp}

	case message.TypeSubscription:
		sub, unsubscribeKey, err := message.UnwrapSubscription(uc, u.keys.X25519Private)
		if err != nil {
			return nil, err
		}
		u.subscribers[sub.SubscriberIdentifier.MapKey()] = &subscriberRecord{
			Identifier:        sub.SubscriberIdentifier,
			Permission:        identity.PermissionRead,
			XPublic:           sub.SubscriberXPublic,
			HasXPublic:        true,
			UnsubscribeKey:    unsubscribeKey,
			HasUnsubscribeKey: true,
		}
		body = message.Body{Kind: message.KindSubscription, Subscription: sub}

	case message.TypeUnsubscription:
		uns, err := message.UnwrapUnsubscription(uc, u.unsubscribeKeyOf)
		if err != nil {
			return nil, err
		}
		delete(u.subscribers, uns.SubscriberIdentifier.MapKey())
		body = message.Body{Kind: message.KindUnsubscription, Unsubscription: uns}

	default:
		return nil, streamserr.NewMalformed("unknown message type on wire")
	}

	inner, err := finalInnerUnwrap(uc)
	if err != nil {
		return nil, err
	}
	if err := u.links.Update(addr.MsgId, inner, LinkInfo{MessageType: hdf.MessageType, Topic: topic}); err != nil {
		return nil, err
	}
	// Subscriptions and unsubscriptions can be unwrapped only by the author,
	// so they do not become the tip that later publishes link to.
	if hdf.MessageType != message.TypeSubscription && hdf.MessageType != message.TypeUnsubscription {
		u.topicTip[topic] = addr.MsgId
	}
	u.cursors.Advance(u.otherCursorKey(topic, publisher), hdf.Sequence)

	return &Message{Address: addr, Topic: topic, Publisher: publisher, Body: body}, nil
}

func (u *User) unsubscribeKeyOf(id identity.Identifier) ([32]byte, error) {
	rec, ok := u.subscribers[id.MapKey()]
	if !ok || !rec.HasUnsubscribeKey {
		return [32]byte{}, streamserr.New(streamserr.Unexpected, "no stored unsubscribe key for "+id.String())
	}
	return rec.UnsubscribeKey, nil
}
