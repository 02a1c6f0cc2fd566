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

// CreateStream derives the channel's AppAddr from this User's identifier and
// topic, publishes the announcement, and returns the announcement's
// address. This User becomes the channel's author with Admin permission.
func (u *User) CreateStream(ctx context.Context, topic string) (address.Address, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	t := address.NewTopic(topic)
	appAddr := address.NewAppAddr([]byte(u.identifier.MapKey()), t)

	// Fix this User's role as Admin author before deriving the announcement's
	// own self-cursor key: selfCursorKey folds the currently-held permission
	// into its cursor slot, and the announcement is itself this User's first
	// self-published message, so the permission must already be its final
	// value here to avoid forking the self-sequence space against the very
	// first message published under it.
	u.isAuthor = true
	u.authorIdentifier = u.identifier
	u.authorXPublic = u.keys.X25519Public
	u.hasAuthorXPublic = true
	u.permission = identity.PermissionAdmin

	seq := u.cursors.Next(u.selfCursorKey(t))
	msgID := address.GenMsgId(appAddr, u.identifier, t, seq)

	hdf, err := message.NewHDF(message.TypeAnnouncement, seq)
	if err != nil {
		return address.Address{}, err
	}
	body := &message.Announcement{AuthorIdentifier: u.identifier}
	bodySize := message.SizeofAnnouncement(body)
	if hdf, err = hdf.WithPayloadLength(uint16(bodySize & 0x3FF)); err != nil {
		return address.Address{}, err
	}

	total := message.SizeofHDF(hdf) + bodySize
	os := ddml.NewFixedOStream(total)
	wc := ddml.NewWrapContext(spongos.NewKeccak(), os)
	if err := message.WrapHDF(wc, hdf); err != nil {
		return address.Address{}, err
	}
	if err := message.WrapAnnouncement(wc, body, u.keys.Ed25519Private); err != nil {
		return address.Address{}, err
	}

	addr := address.NewAddress(appAddr, msgID)
	if _, err := u.transport.SendMessage(ctx, addr, os.Bytes()); err != nil {
		return address.Address{}, err
	}

	inner, err := finalInnerWrap(wc)
	if err != nil {
		return address.Address{}, err
	}
	if err := u.links.Update(msgID, inner, LinkInfo{MessageType: message.TypeAnnouncement, Topic: t}); err != nil {
		return address.Address{}, err
	}

	u.cursors.Advance(u.selfCursorKey(t), seq)
	u.appAddr = appAddr
	u.rootTopic = t
	u.topicTip[t] = msgID

	u.logger.Infof("created stream on topic %q at %s", topic, addr)

	return addr, nil
}

// NewBranch publishes a branch announcement for newTopic, linked to the
// current tip of parentTopic. Only a User with write permission in
// parentTopic may call this.
func (u *User) NewBranch(ctx context.Context, parentTopic, newTopic string) (address.Address, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.permission.CanWrite() {
		return address.Address{}, streamserr.New(streamserr.Unexpected, "this user holds no write permission to announce a branch")
	}

	parent := address.NewTopic(parentTopic)
	child := address.NewTopic(newTopic)
	tip, ok := u.topicTip[parent]
	if !ok {
		return address.Address{}, streamserr.NewLinkNotFound("no known tip for parent topic " + string(parent))
	}

	seq := u.cursors.Next(u.selfCursorKey(parent))
	msgID := address.GenMsgId(u.appAddr, u.identifier, parent, seq)

	hdf, err := message.NewHDF(message.TypeBranchAnnouncement, seq)
	if err != nil {
		return address.Address{}, err
	}
	hdf = hdf.WithLinkedMsgAddress(tip)
	body := &message.BranchAnnouncement{NewTopic: string(child)}
	bodySize := message.SizeofBranchAnnouncement(body)
	if hdf, err = hdf.WithPayloadLength(uint16(bodySize & 0x3FF)); err != nil {
		return address.Address{}, err
	}

	total := message.SizeofHDF(hdf) + bodySize
	os := ddml.NewFixedOStream(total)
	wc := ddml.NewWrapContext(spongos.NewKeccak(), os)
	if err := message.WrapHDF(wc, hdf); err != nil {
		return address.Address{}, err
	}
	if _, err := u.joinPredecessor(wc.S, tip); err != nil {
		return address.Address{}, err
	}
	if err := message.WrapBranchAnnouncement(wc, body, u.keys.Ed25519Private); err != nil {
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
	if err := u.links.Update(msgID, inner, LinkInfo{MessageType: message.TypeBranchAnnouncement, Topic: parent}); err != nil {
		return address.Address{}, err
	}

	u.cursors.Advance(u.selfCursorKey(parent), seq)
	u.topicTip[parent] = msgID
	u.topicTip[child] = msgID
	u.topicParent[child] = parent

	u.logger.Infof("announced branch %q under %q at %s", newTopic, parentTopic, addr)

	return addr, nil
}
