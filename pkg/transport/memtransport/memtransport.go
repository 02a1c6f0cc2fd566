// Package memtransport is an in-process transport.Transport backed by a
// mutex-guarded map, used in tests and for single-process multi-User
// scenarios. It never blocks. Sending to an address that already holds a
// payload overwrites it; the only errors are a cancelled context and, on
// receive, an address nothing has been sent to.
package memtransport

import (
	"context"
	"sync"

	"github.com/iotaledger/streams-go/pkg/address"
	"github.com/iotaledger/streams-go/pkg/transport"
)

// Transport is a shared, in-memory address-keyed byte store. Its zero value
// is not usable; construct with New. Multiple Users may share one Transport
// value to simulate publishing to and reading from the same channel.
type Transport struct {
	mu   sync.Mutex
	data map[address.Address][]byte
}

// New returns an empty in-memory transport.
func New() *Transport {
	return &Transport{data: make(map[address.Address][]byte)}
}

var _ transport.Transport = (*Transport)(nil)

// SendMessage upserts msg at addr, overwriting any prior payload: an
// idempotent put, matching the transport trait's contract.
func (t *Transport) SendMessage(ctx context.Context, addr address.Address, msg []byte) (transport.SendResponse, error) {
	if ctx.Err() != nil {
		return transport.SendResponse{}, ctx.Err()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := append([]byte(nil), msg...)
	t.data[addr] = cp
	return transport.SendResponse{Address: addr}, nil
}

// ReceiveMessage returns the bytes previously sent to addr.
func (t *Transport) ReceiveMessage(ctx context.Context, addr address.Address) ([]byte, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	msg, ok := t.data[addr]
	if !ok {
		return nil, transport.ErrMessageNotFound(addr)
	}
	return append([]byte(nil), msg...), nil
}
