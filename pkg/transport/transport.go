// Package transport defines the external collaborator a channel's User
// sends wire bytes through and reads them back from: an address-keyed,
// unordered, untrusted byte store. Concrete backends live in
// pkg/transport/memtransport (in-process) and pkg/transport/quictransport
// (QUIC-framed).
package transport

import (
	"context"

	"github.com/iotaledger/streams-go/pkg/address"
	"github.com/iotaledger/streams-go/pkg/streamserr"
)

// SendResponse is returned by a successful SendMessage; idempotent upsert
// means sending the same bytes to the same address twice is not an error.
type SendResponse struct {
	Address address.Address
}

// Transport is the only external interface the channel state machine
// depends on. It knows nothing about DDML, Spongos, or message semantics:
// it moves opaque bytes keyed by address.
type Transport interface {
	// SendMessage upserts msg at addr.
	SendMessage(ctx context.Context, addr address.Address, msg []byte) (SendResponse, error)
	// ReceiveMessage returns the bytes stored at addr, or a streamserr
	// LinkNotFound error when nothing has been sent there yet, or
	// MessageNotUnique when more than one payload collides at addr.
	ReceiveMessage(ctx context.Context, addr address.Address) ([]byte, error)
}

// ErrMessageNotFound is returned wrapped in a streamserr.LinkNotFound error
// by every Transport implementation in this module when addr is unknown.
func ErrMessageNotFound(addr address.Address) error {
	return streamserr.NewLinkNotFound("no message at address " + addr.String())
}

// ErrMessageNotUnique is returned wrapped in a streamserr.MessageNotUnique
// error when a transport backend finds more than one payload at addr.
func ErrMessageNotUnique(addr address.Address) error {
	return streamserr.New(streamserr.MessageNotUnique, "multiple messages collide at address "+addr.String())
}
