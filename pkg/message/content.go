package message

import "github.com/iotaledger/streams-go/pkg/identity"

// Kind tags the body variant a message carries.
type Kind uint8

const (
	KindAnnouncement Kind = iota
	KindBranchAnnouncement
	KindKeyload
	KindSignedPacket
	KindTaggedPacket
	KindSubscription
	KindUnsubscription
)

// Announcement is the channel-creation body: the author's identifier,
// committed and signed.
type Announcement struct {
	AuthorIdentifier identity.Identifier
}

// BranchAnnouncement introduces a new topic, linked to the tip of its
// parent topic.
type BranchAnnouncement struct {
	NewTopic string
}

// KeyloadRecipient is one entry of a keyload's recipient list: either an
// Ed25519 identifier (masked via X25519 encapsulation) or a PSK id (masked
// via PSK-absorb).
type KeyloadRecipient struct {
	Identifier identity.Permissioned
}

// Keyload distributes a freshly generated session key to a set of
// recipients, each via its own forked mask, then is signed by the author.
type Keyload struct {
	Nonce      [32]byte
	Recipients []KeyloadRecipient
	PskIds     []identity.PskId
}

// SignedPacket carries a public and a masked payload, authenticated by the
// publisher's signature.
type SignedPacket struct {
	PublicPayload []byte
	MaskedPayload []byte
}

// TaggedPacket carries a public and a masked payload, authenticated only by
// a squeezed MAC: recipients must already hold the session key established
// by a prior keyload.
type TaggedPacket struct {
	PublicPayload []byte
	MaskedPayload []byte
}

// Subscription is a subscriber's request to join, encapsulated to the
// author's X25519 public key.
type Subscription struct {
	SubscriberIdentifier identity.Identifier
	SubscriberXPublic    [32]byte
}

// Unsubscription withdraws a previously granted subscription.
type Unsubscription struct {
	SubscriberIdentifier identity.Identifier
}

// Body is the decoded payload of a message, tagged by Kind. Exactly one of
// the typed fields is populated according to Kind.
type Body struct {
	Kind                Kind
	Announcement        *Announcement
	BranchAnnouncement  *BranchAnnouncement
	Keyload             *Keyload
	SignedPacket        *SignedPacket
	TaggedPacket        *TaggedPacket
	Subscription        *Subscription
	Unsubscription      *Unsubscription
}
