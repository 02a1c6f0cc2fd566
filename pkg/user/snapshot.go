package user

import (
	"crypto/ed25519"

	"github.com/iotaledger/streams-go/pkg/address"
	"github.com/iotaledger/streams-go/pkg/codec/cborcanon"
	"github.com/iotaledger/streams-go/pkg/cursor"
	"github.com/iotaledger/streams-go/pkg/ddml"
	"github.com/iotaledger/streams-go/pkg/identity"
	"github.com/iotaledger/streams-go/pkg/spongos"
	"github.com/iotaledger/streams-go/pkg/streamserr"
	"github.com/iotaledger/streams-go/pkg/transport"
)

// snapshotMacSize is the length of the authentication tag appended to every
// encoded snapshot.
const snapshotMacSize = 32

// snapshotKDFDomain binds the passphrase-derived key to this specific use,
// the same domain-separation discipline identity.GenerateKeypair follows.
const snapshotKDFDomain = "IOTA Streams Channels user snapshot key"

type linkEntry struct {
	MsgId       address.MsgId
	Capacity    []byte
	MessageType uint8
	Topic       address.Topic
	Excluded    bool
}

type topicTipEntry struct {
	Topic address.Topic
	MsgId address.MsgId
}

type topicParentEntry struct {
	Child  address.Topic
	Parent address.Topic
}

type subscriberEntry struct {
	Identifier        identity.Identifier
	Permission        identity.Permission
	XPublic           [32]byte
	HasXPublic        bool
	UnsubscribeKey    [32]byte
	HasUnsubscribeKey bool
}

// snapshotEnvelope is the full serializable state of a User: its own key
// material, the channel it belongs to, and everything needed to resume
// publishing and receiving without replaying the channel's history.
type snapshotEnvelope struct {
	Ed25519Private []byte

	IsAuthor         bool
	AuthorIdentifier identity.Identifier
	AuthorXPublic    [32]byte
	HasAuthorXPublic bool
	Permission       identity.Permission

	AppAddr   address.AppAddr
	RootTopic address.Topic

	OwnUnsubscribeKey    [32]byte
	HasOwnUnsubscribeKey bool

	Psks        [][32]byte
	Subscribers []subscriberEntry
	Cursors     []cursor.Entry
	Links       []linkEntry
	TopicTips   []topicTipEntry
	TopicParent []topicParentEntry
}

func (u *User) toEnvelope() (*snapshotEnvelope, error) {
	env := &snapshotEnvelope{
		Ed25519Private:       append([]byte(nil), u.keys.Ed25519Private...),
		IsAuthor:             u.isAuthor,
		AuthorIdentifier:     u.authorIdentifier,
		AuthorXPublic:        u.authorXPublic,
		HasAuthorXPublic:     u.hasAuthorXPublic,
		Permission:           u.permission,
		AppAddr:              u.appAddr,
		RootTopic:            u.rootTopic,
		OwnUnsubscribeKey:    u.ownUnsubscribeKey,
		HasOwnUnsubscribeKey: u.hasOwnUnsubscribeKey,
		Cursors:              u.cursors.Entries(),
	}

	for _, psk := range u.psks {
		env.Psks = append(env.Psks, [32]byte(psk))
	}
	for _, rec := range u.subscribers {
		env.Subscribers = append(env.Subscribers, subscriberEntry{
			Identifier:        rec.Identifier,
			Permission:        rec.Permission,
			XPublic:           rec.XPublic,
			HasXPublic:        rec.HasXPublic,
			UnsubscribeKey:    rec.UnsubscribeKey,
			HasUnsubscribeKey: rec.HasUnsubscribeKey,
		})
	}
	for topic, tip := range u.topicTip {
		env.TopicTips = append(env.TopicTips, topicTipEntry{Topic: topic, MsgId: tip})
	}
	for child, parent := range u.topicParent {
		env.TopicParent = append(env.TopicParent, topicParentEntry{Child: child, Parent: parent})
	}

	if mls, ok := u.links.(*ddml.MapLinkStore[address.MsgId, LinkInfo]); ok {
		for _, e := range mls.Entries() {
			env.Links = append(env.Links, linkEntry{
				MsgId:       e.Link,
				Capacity:    append([]byte(nil), e.Inner.Capacity...),
				MessageType: e.Info.MessageType,
				Topic:       e.Info.Topic,
				Excluded:    e.Info.Excluded,
			})
		}
	}

	return env, nil
}

// Snapshot serializes this User's full state, encrypted and authenticated
// under passphrase, to a byte slice suitable for offline storage.
func (u *User) Snapshot(passphrase string) ([]byte, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	env, err := u.toEnvelope()
	if err != nil {
		return nil, err
	}
	plain, err := cborcanon.Marshal(env)
	if err != nil {
		return nil, streamserr.Wrap(streamserr.InternalError, "encoding snapshot envelope", err)
	}

	total := ddml.Size(len(plain)).EncodedLen() + len(plain) + snapshotMacSize
	os := ddml.NewFixedOStream(total)
	wc := ddml.NewWrapContext(spongos.NewKeccak(), os)
	wc.AbsorbExternalBytes(ddml.NewExternal(ddml.Bytes(snapshotKey(passphrase))))
	wc.Commit()
	if _, err := wc.MaskBytes(ddml.Bytes(plain)); err != nil {
		return nil, err
	}
	wc.Commit()
	if _, err := wc.Squeeze(ddml.Mac(snapshotMacSize)); err != nil {
		return nil, err
	}
	return os.Bytes(), nil
}

// RestoreUser reconstructs a User from a byte slice produced by Snapshot,
// authenticated under passphrase, wired to tr as its transport.
func RestoreUser(raw []byte, passphrase string, tr transport.Transport) (*User, error) {
	uc := ddml.NewUnwrapContext(spongos.NewKeccak(), ddml.NewSliceIStream(raw))
	uc.AbsorbExternalBytes(ddml.NewExternal(ddml.Bytes(snapshotKey(passphrase))))
	uc.Commit()

	var plain ddml.Bytes
	if _, err := uc.MaskBytes(&plain); err != nil {
		return nil, err
	}
	uc.Commit()
	if _, err := uc.Squeeze(ddml.Mac(snapshotMacSize)); err != nil {
		return nil, err
	}

	var env snapshotEnvelope
	if err := cborcanon.Unmarshal(plain, &env); err != nil {
		return nil, streamserr.Wrap(streamserr.Malformed, "decoding snapshot envelope", err)
	}

	return userFromEnvelope(&env, tr)
}

func userFromEnvelope(env *snapshotEnvelope, tr transport.Transport) (*User, error) {
	priv := ed25519.PrivateKey(append([]byte(nil), env.Ed25519Private...))
	keys := identity.KeypairFromEd25519(priv)

	u := &User{
		keys:                 keys,
		identifier:           identity.NewEd25519Identifier(keys.Ed25519Public),
		isAuthor:             env.IsAuthor,
		authorIdentifier:     env.AuthorIdentifier,
		authorXPublic:        env.AuthorXPublic,
		hasAuthorXPublic:     env.HasAuthorXPublic,
		permission:           env.Permission,
		appAddr:              env.AppAddr,
		rootTopic:            env.RootTopic,
		ownUnsubscribeKey:    env.OwnUnsubscribeKey,
		hasOwnUnsubscribeKey: env.HasOwnUnsubscribeKey,
		psks:                 make(map[identity.PskId]identity.Psk),
		subscribers:          make(map[string]*subscriberRecord),
		cursors:              cursor.Restore(env.Cursors),
		links:                ddml.NewMapLinkStore[address.MsgId, LinkInfo](),
		topicTip:             make(map[address.Topic]address.MsgId),
		topicParent:          make(map[address.Topic]address.Topic),
		transport:            tr,
		logger:               noopLogger{},
	}

	prng := spongos.NewKeccak()
	prng.Absorb(priv.Seed())
	prng.Commit()
	u.prng = prng

	for _, raw := range env.Psks {
		psk := identity.Psk(raw)
		u.psks[psk.Id()] = psk
	}
	for _, s := range env.Subscribers {
		u.subscribers[s.Identifier.MapKey()] = &subscriberRecord{
			Identifier:        s.Identifier,
			Permission:        s.Permission,
			XPublic:           s.XPublic,
			HasXPublic:        s.HasXPublic,
			UnsubscribeKey:    s.UnsubscribeKey,
			HasUnsubscribeKey: s.HasUnsubscribeKey,
		}
	}
	for _, e := range env.TopicTips {
		u.topicTip[e.Topic] = e.MsgId
	}
	for _, e := range env.TopicParent {
		u.topicParent[e.Child] = e.Parent
	}
	for _, e := range env.Links {
		inner := spongos.Inner{Capacity: append([]byte(nil), e.Capacity...)}
		info := LinkInfo{MessageType: e.MessageType, Topic: e.Topic, Excluded: e.Excluded}
		if err := u.links.Update(e.MsgId, inner, info); err != nil {
			return nil, err
		}
	}

	return u, nil
}

// snapshotKey derives the passphrase-bound masking key via the same
// Spongos-KDF shape identity.GenerateKeypair uses.
func snapshotKey(passphrase string) []byte {
	s := spongos.NewKeccak()
	s.Absorb([]byte(snapshotKDFDomain))
	s.Absorb([]byte(passphrase))
	s.Commit()
	return s.SqueezeN(32)
}
