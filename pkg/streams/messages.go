// Package streams implements a pull-based, pre-order traversal over every
// message a User can currently read: each call to Next predicts the next
// candidate address for every publisher this User's cursor map knows about,
// asks the transport whether anything has arrived there, and yields decoded
// messages in link order, queuing orphans for retry as later arrivals make
// them resolvable.
package streams

import (
	"context"

	"github.com/iotaledger/streams-go/pkg/address"
	"github.com/iotaledger/streams-go/pkg/identity"
	"github.com/iotaledger/streams-go/pkg/streamserr"
	"github.com/iotaledger/streams-go/pkg/user"
)

// Orphan is a message this User could not decode because it links to a
// keyload this User was not a recipient of. A message whose linked
// predecessor has not arrived yet is not reported as an Orphan: Next keeps
// it queued and retries it on later calls. The raw content is not
// recoverable without the missing key material, so only its address is
// retained.
type Orphan struct {
	Address   address.Address
	Topic     address.Topic
	Publisher identity.Identifier
}

// Item is one value yielded by Messages.Next: exactly one of Message or
// Orphan is set.
type Item struct {
	Message *user.Message
	Orphan  *Orphan
}

type pending struct {
	address   address.Address
	topic     address.Topic
	publisher identity.Identifier
}

// Messages is a pre-order traversal cursor over one User's readable
// messages. Not safe for concurrent use; matches the single-owner, &mut-self
// discipline the rest of this module's state machine follows.
type Messages struct {
	u *user.User

	// stage holds addresses known to have arrived but not yet decoded this
	// round.
	stage []pending
	// pendingRetry holds messages whose linked predecessor was not yet known
	// at decode time, retried at the start of every subsequent round. There
	// is no eviction: a predecessor that never arrives leaves its dependents
	// here indefinitely, bounded only by how long the caller keeps polling.
	pendingRetry map[address.Address]pending
}

// New returns a traversal cursor over u, starting from u's current cursor
// map: messages already advanced past (by a prior receive) are not
// re-yielded.
func New(u *user.User) *Messages {
	return &Messages{u: u, pendingRetry: make(map[address.Address]pending)}
}

// Next advances the traversal by one step, returning the next yieldable
// Item, or (nil, nil) when no more messages are currently reachable. A
// later call may yield more once new messages have arrived at the
// transport.
func (m *Messages) Next(ctx context.Context) (*Item, error) {
	if item, ok, err := m.drain(ctx); ok || err != nil {
		return item, err
	}

	for addr, p := range m.pendingRetry {
		delete(m.pendingRetry, addr)
		m.stage = append(m.stage, p)
	}
	if item, ok, err := m.drain(ctx); ok || err != nil {
		return item, err
	}

	if !m.scanCandidates(ctx) {
		return nil, nil
	}
	item, _, err := m.drain(ctx)
	return item, err
}

// drain pops staged addresses one at a time, decoding each through the
// User's normal receive path, until it yields an Item or runs out of staged
// work. A LinkNotFound outcome moves the address to pendingRetry rather than
// looping on it immediately, so a single Next call always terminates.
func (m *Messages) drain(ctx context.Context) (*Item, bool, error) {
	for len(m.stage) > 0 {
		p := m.stage[0]
		m.stage = m.stage[1:]

		msg, err := m.u.ReceiveMessage(ctx, p.address, string(p.topic), p.publisher)
		switch {
		case err == nil:
			return &Item{Message: msg}, true, nil
		case streamserr.Is(err, streamserr.LinkNotFound):
			m.pendingRetry[p.address] = p
		case streamserr.Is(err, streamserr.Orphan):
			return &Item{Orphan: &Orphan{Address: p.address, Topic: p.topic, Publisher: p.publisher}}, true, nil
		default:
			// Malformed, BadMac, BadSignature and similar: not retryable,
			// dropped per the traversal's "on other errors, skip" rule.
		}
	}
	return nil, false, nil
}

// scanCandidates rebuilds the candidate stack from the current cursor map,
// skipping entries that cannot have published anything (read-only
// permissions), and stages every address the transport already has bytes
// for. Reports whether at least one candidate hit.
func (m *Messages) scanCandidates(ctx context.Context) bool {
	hit := false
	appAddr := m.u.AppAddr()
	tr := m.u.Transport()

	for _, key := range m.u.Cursors().Keys() {
		if !key.Permissioned.Permission.CanWrite() {
			continue
		}
		seq := m.u.Cursors().Next(key)
		msgID := address.GenMsgId(appAddr, key.Permissioned.Identifier, key.Topic, seq)
		addr := address.NewAddress(appAddr, msgID)

		if _, err := tr.ReceiveMessage(ctx, addr); err == nil {
			m.stage = append(m.stage, pending{address: addr, topic: key.Topic, publisher: key.Permissioned.Identifier})
			hit = true
		}
	}
	return hit
}
