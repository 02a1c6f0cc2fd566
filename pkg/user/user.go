// Package user implements the channel state machine: the single-owner
// participant that creates or joins a channel, publishes and receives
// messages, and maintains the cursor map, link store, and key material a
// channel session needs across its lifetime.
package user

import (
	"crypto/rand"
	"sync"

	"github.com/iotaledger/streams-go/pkg/address"
	"github.com/iotaledger/streams-go/pkg/cursor"
	"github.com/iotaledger/streams-go/pkg/ddml"
	"github.com/iotaledger/streams-go/pkg/identity"
	"github.com/iotaledger/streams-go/pkg/message"
	"github.com/iotaledger/streams-go/pkg/spongos"
	"github.com/iotaledger/streams-go/pkg/streamserr"
	"github.com/iotaledger/streams-go/pkg/transport"
)

// LinkInfo is what this package's link store records per MsgId alongside
// the Spongos inner state needed to join a successor's transcript.
type LinkInfo struct {
	MessageType uint8
	Topic       address.Topic
	// Excluded marks a keyload this User was not a recipient of: Inner is
	// the zero value and cannot be used to join a successor. Anything
	// linked to such an entry must surface as an orphan rather than
	// attempt FromInnerKeccak on invalid capacity bytes.
	Excluded bool
}

// subscriberRecord is what a channel author keeps per subscriber once their
// Subscription message has been received.
type subscriberRecord struct {
	Identifier        identity.Identifier
	Permission        identity.Permission
	XPublic           [32]byte
	HasXPublic        bool
	UnsubscribeKey    [32]byte
	HasUnsubscribeKey bool
}

// Message is a single decoded channel message returned to a caller.
type Message struct {
	Address   address.Address
	Topic     address.Topic
	Publisher identity.Identifier
	Body      message.Body
}

// User is the single-owner participant in a channel: it holds key
// material, the cursor map, the link store, and the topic tree, and drives
// every publish and receive through an injected transport.Transport. Not
// safe to share across goroutines without external locking beyond the
// guarantee New's own mutex gives against concurrent misuse from this
// package's own methods.
type User struct {
	mu sync.Mutex

	keys       *identity.Keypair
	identifier identity.Identifier

	isAuthor         bool
	authorIdentifier identity.Identifier
	authorXPublic    [32]byte
	hasAuthorXPublic bool
	permission       identity.Permission

	appAddr   address.AppAddr
	rootTopic address.Topic

	ownUnsubscribeKey    [32]byte
	hasOwnUnsubscribeKey bool

	psks        map[identity.PskId]identity.Psk
	subscribers map[string]*subscriberRecord

	cursors     *cursor.Map
	links       ddml.LinkStore[address.MsgId, LinkInfo]
	topicTip    map[address.Topic]address.MsgId
	topicParent map[address.Topic]address.Topic

	prng      *spongos.Spongos
	transport transport.Transport

	logger   Logger
	boltPath string
}

// New derives a Keypair from seed and returns a User with empty cursor,
// link, and subscriber state, ready to either CreateStream or receive an
// announcement to join one. Equivalent to NewWithConfig(seed, tr,
// DefaultConfig()).
func New(seed []byte, tr transport.Transport) (*User, error) {
	return NewWithConfig(seed, tr, DefaultConfig())
}

// NewWithConfig is New with explicit ambient settings: a Logger to report
// diagnostics to, and a BoltPath for Persist to save snapshots under. The
// RateBytes/CapacityBytes fields on cfg describe this module's fixed
// Keccak-f[1600] Spongos and are not themselves configurable.
func NewWithConfig(seed []byte, tr transport.Transport, cfg Config) (*User, error) {
	keys, err := identity.GenerateKeypair(seed)
	if err != nil {
		return nil, err
	}

	seedEntropy := make([]byte, 32)
	if _, err := rand.Read(seedEntropy); err != nil {
		return nil, streamserr.Wrap(streamserr.InternalError, "seeding message-randomness spongos", err)
	}
	prng := spongos.NewKeccak()
	prng.Absorb(seedEntropy)
	prng.Commit()

	return &User{
		keys:        keys,
		identifier:  identity.NewEd25519Identifier(keys.Ed25519Public),
		permission:  identity.PermissionRead,
		psks:        make(map[identity.PskId]identity.Psk),
		subscribers: make(map[string]*subscriberRecord),
		cursors:     cursor.New(),
		links:       ddml.NewMapLinkStore[address.MsgId, LinkInfo](),
		topicTip:    make(map[address.Topic]address.MsgId),
		topicParent: make(map[address.Topic]address.Topic),
		prng:        prng,
		transport:   tr,
		logger:      cfg.logger(),
		boltPath:    cfg.BoltPath,
	}, nil
}

// Identifier returns this User's own identifier.
func (u *User) Identifier() identity.Identifier {
	return u.identifier
}

// X25519Public returns this User's own X25519 public key, the value a
// would-be subscriber needs out of band to call ReceiveAnnouncement against
// this User's stream.
func (u *User) X25519Public() [32]byte {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.keys.X25519Public
}

// AppAddr returns the channel address this User has joined or created, the
// zero value if none yet.
func (u *User) AppAddr() address.AppAddr {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.appAddr
}

// Cursors returns this User's cursor map, for a streaming iterator built on
// top of this package to rebuild its candidate stack from.
func (u *User) Cursors() *cursor.Map {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.cursors
}

// Transport returns this User's underlying transport, for a streaming
// iterator to probe predicted addresses directly without a full receive.
func (u *User) Transport() transport.Transport {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.transport
}

// StorePsk records psk, making its PskId available as a keyload recipient
// and its bytes available to unwrap a keyload or tagged packet that names
// it.
func (u *User) StorePsk(psk identity.Psk) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.psks[psk.Id()] = psk
}

func (u *User) pskOf(id identity.PskId) (identity.Psk, bool) {
	psk, ok := u.psks[id]
	return psk, ok
}

// selfCursorKey is the cursor slot this User's own publishes under topic
// advance: keyed by this User's identifier and its currently known
// permission for that identifier. u.permission changes only when
// CreateStream makes this User the Admin author; receiving a keyload does
// not change it. A change of permission begins a fresh sequence under the
// new key rather than migrating the old one.
func (u *User) selfCursorKey(topic address.Topic) cursor.Key {
	return cursor.Key{
		Topic:        topic,
		Permissioned: identity.NewPermissioned(u.identifier, u.permission),
	}
}

// permissionOf reports the permission this User currently knows id to hold:
// Admin for the channel author, a subscriber's granted permission if known,
// or Read as the default for an otherwise-unknown publisher.
func (u *User) permissionOf(id identity.Identifier) identity.Permission {
	if u.isAuthor && id.Equal(u.identifier) {
		return u.permission
	}
	if id.Equal(u.authorIdentifier) {
		return identity.PermissionAdmin
	}
	if rec, ok := u.subscribers[id.MapKey()]; ok {
		return rec.Permission
	}
	return identity.PermissionRead
}

// otherCursorKey is the cursor slot this User tracks for a remote
// publisher's position in topic, using the permission currently on record
// for that identifier.
func (u *User) otherCursorKey(topic address.Topic, id identity.Identifier) cursor.Key {
	return cursor.Key{
		Topic:        topic,
		Permissioned: identity.NewPermissioned(id, u.permissionOf(id)),
	}
}

func finalInnerWrap(c *ddml.WrapContext) (spongos.Inner, error) {
	c.Commit()
	return c.S.ToInner()
}

func finalInnerUnwrap(c *ddml.UnwrapContext) (spongos.Inner, error) {
	c.Commit()
	return c.S.ToInner()
}

// joinPredecessor looks up link's recorded inner state and, unless it was
// recorded as Excluded, joins it into s. Excluded predecessors (a keyload
// this User was not a recipient of) cannot be joined; the caller must
// surface an Orphan instead of calling this.
func (u *User) joinPredecessor(s *spongos.Spongos, link address.MsgId) (LinkInfo, error) {
	inner, info, err := u.links.Lookup(link)
	if err != nil {
		return LinkInfo{}, streamserr.NewLinkNotFound("linked predecessor not found: " + link.String())
	}
	if info.Excluded {
		return info, streamserr.NewOrphan("linked predecessor was an excluded keyload")
	}
	pred, err := spongos.FromInnerKeccak(inner)
	if err != nil {
		return info, streamserr.Wrap(streamserr.InternalError, "reconstructing predecessor spongos", err)
	}
	s.Join(pred)
	return info, nil
}
