// Package cursor implements the per-(topic, publisher) monotonic sequence
// counter a channel's User state uses to derive the next MsgId and to track
// how far each known publisher has been read.
package cursor

import (
	"github.com/iotaledger/streams-go/pkg/address"
	"github.com/iotaledger/streams-go/pkg/identity"
)

// Key identifies one cursor slot: a topic crossed with a permissioned
// identifier. Read-only entries still occupy a slot (so a reader's own
// position in a branch is tracked) but never advance by publishing.
type Key struct {
	Topic       address.Topic
	Permissioned identity.Permissioned
}

func (k Key) mapKey() string {
	return string(k.Topic) + "\x00" + k.Permissioned.MapKey()
}

// Map is the cursor table owned by a User: per (topic, publisher) the
// sequence number of the most recently published-or-received message, or 0
// if none has occurred yet. The first message published in a branch by an
// identifier carries sequence 1.
type Map struct {
	seq map[string]uint64
	key map[string]Key
}

// New returns an empty cursor map.
func New() *Map {
	return &Map{seq: make(map[string]uint64), key: make(map[string]Key)}
}

// Get returns the current sequence number for k, or 0 if unset.
func (m *Map) Get(k Key) uint64 {
	return m.seq[k.mapKey()]
}

// Next returns the sequence number the next message published under k would
// carry, without mutating the map.
func (m *Map) Next(k Key) uint64 {
	return m.Get(k) + 1
}

// Advance sets k's sequence number to seq if seq is greater than the
// current value, and records k for later enumeration. It never moves a
// cursor backwards: a stale or replayed message must not regress state.
func (m *Map) Advance(k Key, seq uint64) {
	mk := k.mapKey()
	if seq > m.seq[mk] {
		m.seq[mk] = seq
		m.key[mk] = k
	}
}

// Keys returns every (topic, publisher) pair with a recorded cursor, in no
// particular order. Streaming traversal rebuilds its candidate stack from
// this each round.
func (m *Map) Keys() []Key {
	out := make([]Key, 0, len(m.key))
	for _, k := range m.key {
		out = append(out, k)
	}
	return out
}

// Entry is one cursor flattened into plain fields, suitable for CBOR
// encoding in a user snapshot; it carries the full Key (topic, identifier,
// permission) alongside the sequence number for exact reconstruction.
type Entry struct {
	Topic        address.Topic
	Identifier   identity.Identifier
	Permission   identity.Permission
	Sequence     uint64
}

// Entries returns every cursor as a flat, serializable slice.
func (m *Map) Entries() []Entry {
	out := make([]Entry, 0, len(m.key))
	for mk, k := range m.key {
		out = append(out, Entry{
			Topic:      k.Topic,
			Identifier: k.Permissioned.Identifier,
			Permission: k.Permissioned.Permission,
			Sequence:   m.seq[mk],
		})
	}
	return out
}

// Restore rebuilds a Map from entries produced by a prior Entries call.
func Restore(entries []Entry) *Map {
	m := New()
	for _, e := range entries {
		k := Key{Topic: e.Topic, Permissioned: identity.NewPermissioned(e.Identifier, e.Permission)}
		m.Advance(k, e.Sequence)
	}
	return m
}
