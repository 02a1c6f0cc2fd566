package identity

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
)

// IdentifierTag distinguishes the variants of the Identifier tagged sum.
type IdentifierTag uint8

const (
	TagEd25519Pub IdentifierTag = iota
	TagPskId
	TagDID
)

// Identifier is a tagged sum over the kinds of participant identity this
// module recognizes: an Ed25519 public key, a pre-shared key id, or a
// decentralized identifier. Equality and use as a map key are over tag plus
// bytes.
type Identifier struct {
	Tag     IdentifierTag
	Ed25519 ed25519.PublicKey
	Psk     PskId
	DID     string
}

// NewEd25519Identifier wraps an Ed25519 public key as an Identifier.
func NewEd25519Identifier(pub ed25519.PublicKey) Identifier {
	return Identifier{Tag: TagEd25519Pub, Ed25519: append(ed25519.PublicKey(nil), pub...)}
}

// NewPskIdentifier wraps a PskId as an Identifier.
func NewPskIdentifier(id PskId) Identifier {
	return Identifier{Tag: TagPskId, Psk: id}
}

// NewDIDIdentifier wraps a DID string as an Identifier.
func NewDIDIdentifier(did string) Identifier {
	return Identifier{Tag: TagDID, DID: did}
}

// Equal compares two identifiers by tag and underlying bytes.
func (id Identifier) Equal(other Identifier) bool {
	if id.Tag != other.Tag {
		return false
	}
	switch id.Tag {
	case TagEd25519Pub:
		return bytes.Equal(id.Ed25519, other.Ed25519)
	case TagPskId:
		return id.Psk == other.Psk
	case TagDID:
		return id.DID == other.DID
	default:
		return false
	}
}

// MapKey returns a value comparable with ==, suitable as a Go map key, since
// Identifier itself embeds a slice and cannot be used directly as one.
func (id Identifier) MapKey() string {
	switch id.Tag {
	case TagEd25519Pub:
		return "ed25519:" + string(id.Ed25519)
	case TagPskId:
		return "psk:" + string(id.Psk[:])
	case TagDID:
		return "did:" + id.DID
	default:
		return fmt.Sprintf("unknown:%d", id.Tag)
	}
}

func (id Identifier) String() string {
	switch id.Tag {
	case TagEd25519Pub:
		return fmt.Sprintf("Ed25519Pub(%x)", []byte(id.Ed25519))
	case TagPskId:
		return fmt.Sprintf("PskId(%x)", id.Psk)
	case TagDID:
		return fmt.Sprintf("DID(%s)", id.DID)
	default:
		return "Identifier(invalid)"
	}
}

// CanSign reports whether this identifier supports producing a signature
// (only Ed25519 identifiers can).
func (id Identifier) CanSign() bool {
	return id.Tag == TagEd25519Pub
}

// Permission is the access level an Identifier holds over a topic.
type Permission uint8

const (
	PermissionRead Permission = iota
	PermissionReadWrite
	PermissionAdmin
)

func (p Permission) String() string {
	switch p {
	case PermissionRead:
		return "Read"
	case PermissionReadWrite:
		return "ReadWrite"
	case PermissionAdmin:
		return "Admin"
	default:
		return fmt.Sprintf("Permission(%d)", uint8(p))
	}
}

// CanWrite reports whether p allows publishing.
func (p Permission) CanWrite() bool {
	return p == PermissionReadWrite || p == PermissionAdmin
}

// Permissioned pairs an Identifier with the Permission it holds, the unit
// DDML actually absorbs for subscriber and keyload-recipient lists.
type Permissioned struct {
	Identifier Identifier
	Permission Permission
}

func NewPermissioned(id Identifier, perm Permission) Permissioned {
	return Permissioned{Identifier: id, Permission: perm}
}

// MapKey returns a key suitable for use in a Go map keyed by (Topic,
// Permissioned<Identifier>) as the cursor map requires.
func (p Permissioned) MapKey() string {
	return fmt.Sprintf("%s#%d", p.Identifier.MapKey(), p.Permission)
}
