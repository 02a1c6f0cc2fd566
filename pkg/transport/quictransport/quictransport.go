// Package quictransport implements transport.Transport over QUIC streams,
// framed for this module's address-keyed request/response semantics rather
// than a persistent connection-oriented session: a transport only needs
// SendMessage/ReceiveMessage, so this only needs the stream-framing half of
// a typical QUIC client/server (no long-lived Conn abstraction, no generic
// Listener/Conn interfaces).
package quictransport

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/iotaledger/streams-go/pkg/address"
	"github.com/iotaledger/streams-go/pkg/streamserr"
	"github.com/iotaledger/streams-go/pkg/transport"
	"github.com/iotaledger/streams-go/pkg/transport/memtransport"
)

const alpn = "streams/1"

const (
	opPut byte = iota
	opGet
)

const (
	statusOK byte = iota
	statusNotFound
)

func defaultQUICConfig() *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:  5 * time.Minute,
		KeepAlivePeriod: 30 * time.Second,
	}
}

func withALPN(cfg *tls.Config) *tls.Config {
	out := cfg.Clone()
	if out == nil {
		out = &tls.Config{}
	}
	if len(out.NextProtos) == 0 {
		out.NextProtos = []string{alpn}
	}
	return out
}

// writeFrame writes one request frame: op byte, 2-byte address length, the
// address string, 4-byte payload length, the payload (absent for opGet).
func writeFrame(w io.Writer, op byte, addr address.Address, payload []byte) error {
	addrBytes := []byte(addr.String())
	var header [1 + 2 + 4]byte
	header[0] = op
	binary.BigEndian.PutUint16(header[1:3], uint16(len(addrBytes)))
	binary.BigEndian.PutUint32(header[3:7], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if _, err := w.Write(addrBytes); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := w.Write(payload)
	return err
}

func readFrame(r io.Reader) (op byte, addr address.Address, payload []byte, err error) {
	var header [1 + 2 + 4]byte
	if _, err = io.ReadFull(r, header[:]); err != nil {
		return
	}
	op = header[0]
	addrLen := binary.BigEndian.Uint16(header[1:3])
	payloadLen := binary.BigEndian.Uint32(header[3:7])

	addrBuf := make([]byte, addrLen)
	if _, err = io.ReadFull(r, addrBuf); err != nil {
		return
	}
	addr, err = address.ParseAddress(string(addrBuf))
	if err != nil {
		return
	}
	if payloadLen > 0 {
		payload = make([]byte, payloadLen)
		if _, err = io.ReadFull(r, payload); err != nil {
			return
		}
	}
	return op, addr, payload, nil
}

// Client dials a single QUIC connection to a quictransport Server and sends
// one request per logical send/receive call, each over its own bidirectional
// stream.
type Client struct {
	conn *quic.Conn
}

// Dial establishes the underlying QUIC connection a Client issues requests
// over.
func Dial(ctx context.Context, addr string, tlsConfig *tls.Config) (*Client, error) {
	conn, err := quic.DialAddr(ctx, addr, withALPN(tlsConfig), defaultQUICConfig())
	if err != nil {
		return nil, streamserr.Wrap(streamserr.TransportFailure, "quic dial", err)
	}
	return &Client{conn: conn}, nil
}

// Close tears down the underlying QUIC connection.
func (c *Client) Close() error {
	return c.conn.CloseWithError(0, "closed")
}

var _ transport.Transport = (*Client)(nil)

func (c *Client) roundTrip(ctx context.Context, op byte, addr address.Address, payload []byte) (byte, []byte, error) {
	stream, err := c.conn.OpenStreamSync(ctx)
	if err != nil {
		return 0, nil, streamserr.Wrap(streamserr.TransportFailure, "open stream", err)
	}
	defer stream.Close()

	if err := writeFrame(stream, op, addr, payload); err != nil {
		return 0, nil, streamserr.Wrap(streamserr.TransportFailure, "write frame", err)
	}
	if err := stream.Close(); err != nil {
		return 0, nil, streamserr.Wrap(streamserr.TransportFailure, "close write side", err)
	}

	var respHeader [1 + 4]byte
	if _, err := io.ReadFull(stream, respHeader[:]); err != nil {
		return 0, nil, streamserr.Wrap(streamserr.TransportFailure, "read response header", err)
	}
	status := respHeader[0]
	n := binary.BigEndian.Uint32(respHeader[1:5])
	body := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(stream, body); err != nil {
			return 0, nil, streamserr.Wrap(streamserr.TransportFailure, "read response body", err)
		}
	}
	return status, body, nil
}

// SendMessage upserts msg at addr on the remote store.
func (c *Client) SendMessage(ctx context.Context, addr address.Address, msg []byte) (transport.SendResponse, error) {
	status, _, err := c.roundTrip(ctx, opPut, addr, msg)
	if err != nil {
		return transport.SendResponse{}, err
	}
	if status != statusOK {
		return transport.SendResponse{}, streamserr.Wrap(streamserr.TransportFailure, "put rejected", fmt.Errorf("status %d", status))
	}
	return transport.SendResponse{Address: addr}, nil
}

// ReceiveMessage fetches the bytes at addr from the remote store.
func (c *Client) ReceiveMessage(ctx context.Context, addr address.Address) ([]byte, error) {
	status, body, err := c.roundTrip(ctx, opGet, addr, nil)
	if err != nil {
		return nil, err
	}
	if status == statusNotFound {
		return nil, transport.ErrMessageNotFound(addr)
	}
	return body, nil
}

// Server accepts QUIC connections and answers put/get requests against an
// in-process memtransport.Transport, the same store a local memtransport
// user could address directly.
type Server struct {
	store *memtransport.Transport
}

// NewServer wraps store (or a fresh one, if nil) for QUIC-facing access.
func NewServer(store *memtransport.Transport) *Server {
	if store == nil {
		store = memtransport.New()
	}
	return &Server{store: store}
}

// Listen binds a QUIC listener on addr, separate from Serve so a caller can
// learn the bound address — addr may end in ":0" for an OS-assigned port —
// before handing the listener off to run.
func (s *Server) Listen(addr string, tlsConfig *tls.Config) (*quic.Listener, error) {
	ln, err := quic.ListenAddr(addr, withALPN(tlsConfig), defaultQUICConfig())
	if err != nil {
		return nil, streamserr.Wrap(streamserr.TransportFailure, "quic listen", err)
	}
	return ln, nil
}

// Serve answers requests accepted from ln until ctx is cancelled or
// accepting fails, closing ln on return.
func (s *Server) Serve(ctx context.Context, ln *quic.Listener) error {
	defer ln.Close()

	for {
		conn, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return streamserr.Wrap(streamserr.TransportFailure, "quic accept", err)
		}
		go s.serveConn(ctx, conn)
	}
}

// ListenAndServe binds addr and serves until ctx is cancelled, for a caller
// that does not need the bound address (e.g. a fixed, pre-known port).
func (s *Server) ListenAndServe(ctx context.Context, addr string, tlsConfig *tls.Config) error {
	ln, err := s.Listen(addr, tlsConfig)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) serveConn(ctx context.Context, conn *quic.Conn) {
	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			return
		}
		go s.serveStream(stream)
	}
}

func (s *Server) serveStream(stream *quic.Stream) {
	defer stream.Close()

	op, addr, payload, err := readFrame(stream)
	if err != nil {
		return
	}

	switch op {
	case opPut:
		if _, err := s.store.SendMessage(context.Background(), addr, payload); err != nil {
			writeResponse(stream, statusNotFound, nil)
			return
		}
		writeResponse(stream, statusOK, nil)
	case opGet:
		msg, err := s.store.ReceiveMessage(context.Background(), addr)
		if err != nil {
			writeResponse(stream, statusNotFound, nil)
			return
		}
		writeResponse(stream, statusOK, msg)
	}
}

func writeResponse(w io.Writer, status byte, body []byte) {
	var header [1 + 4]byte
	header[0] = status
	binary.BigEndian.PutUint32(header[1:5], uint32(len(body)))
	if _, err := w.Write(header[:]); err != nil {
		return
	}
	if len(body) > 0 {
		w.Write(body)
	}
}
