// Package address implements the channel and message addressing scheme:
// a 40-byte AppAddr derived once per channel, a 12-byte MsgId derived
// per message from the Spongos hash of (appaddr, identifier, topic, seq),
// and the hex:hex textual Address format used at the transport boundary.
package address

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/iotaledger/streams-go/pkg/identity"
	"github.com/iotaledger/streams-go/pkg/spongos"
	"github.com/iotaledger/streams-go/pkg/streamserr"
)

// AppAddrSize is the fixed byte length of an AppAddr.
const AppAddrSize = 40

// MsgIdSize is the fixed byte length of a MsgId.
const MsgIdSize = 12

// AppAddr identifies a channel, derived once at creation from the author's
// identifier and the channel's root topic.
type AppAddr [AppAddrSize]byte

func (a AppAddr) String() string {
	return hex.EncodeToString(a[:])
}

// AppAddrFromHex parses a hex-encoded AppAddr.
func AppAddrFromHex(s string) (AppAddr, error) {
	var a AppAddr
	b, err := hex.DecodeString(s)
	if err != nil {
		return a, streamserr.Wrap(streamserr.MalformedAddress, "invalid AppAddr hex", err)
	}
	if len(b) != AppAddrSize {
		return a, streamserr.New(streamserr.MalformedAddress, fmt.Sprintf("AppAddr must be %d bytes, got %d", AppAddrSize, len(b)))
	}
	copy(a[:], b)
	return a, nil
}

// NewAppAddr derives an AppAddr from the channel author's identifier bytes
// and the root topic, the one-time channel-creation hash.
func NewAppAddr(authorIdentifierBytes []byte, topic Topic) AppAddr {
	s := spongos.NewKeccak()
	s.Absorb(authorIdentifierBytes)
	s.Absorb([]byte(topic))
	s.Commit()
	var a AppAddr
	copy(a[:], s.SqueezeN(AppAddrSize))
	return a
}

// MsgId identifies a single message within a channel, derived per message.
type MsgId [MsgIdSize]byte

func (m MsgId) String() string {
	return hex.EncodeToString(m[:])
}

// MsgIdFromHex parses a hex-encoded MsgId.
func MsgIdFromHex(s string) (MsgId, error) {
	var m MsgId
	b, err := hex.DecodeString(s)
	if err != nil {
		return m, streamserr.Wrap(streamserr.InvalidMsgId, "invalid MsgId hex", err)
	}
	if len(b) != MsgIdSize {
		return m, streamserr.New(streamserr.InvalidMsgId, fmt.Sprintf("MsgId must be %d bytes, got %d", MsgIdSize, len(b)))
	}
	copy(m[:], b)
	return m, nil
}

// GenMsgId derives the deterministic MsgId for the next message published
// by identifier under topic at the channel appaddr, by the given sequence
// number: squeeze from a fresh Spongos that absorbed appaddr, identifier,
// topic, and the sequence number as 8 big-endian bytes.
func GenMsgId(appaddr AppAddr, id identity.Identifier, topic Topic, seq uint64) MsgId {
	s := spongos.NewKeccak()
	s.Absorb(appaddr[:])
	s.Absorb([]byte(id.MapKey()))
	s.Absorb([]byte(topic))
	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], seq)
	s.Absorb(seqBuf[:])
	s.Commit()
	var m MsgId
	copy(m[:], s.SqueezeN(MsgIdSize))
	return m
}

// Address is the full transport-level message address: an AppAddr and a
// MsgId, serialized as "hex:hex".
type Address struct {
	AppAddr AppAddr
	MsgId   MsgId
}

func NewAddress(appaddr AppAddr, msgid MsgId) Address {
	return Address{AppAddr: appaddr, MsgId: msgid}
}

func (a Address) String() string {
	return a.AppAddr.String() + ":" + a.MsgId.String()
}

// ParseAddress parses the "hex:hex" textual form produced by String.
func ParseAddress(s string) (Address, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return Address{}, streamserr.New(streamserr.MalformedAddress, "address must be of the form appaddr:msgid")
	}
	appaddr, err := AppAddrFromHex(parts[0])
	if err != nil {
		return Address{}, err
	}
	msgid, err := MsgIdFromHex(parts[1])
	if err != nil {
		return Address{}, err
	}
	return Address{AppAddr: appaddr, MsgId: msgid}, nil
}

// Topic names a branch within a channel. Topics are compared and absorbed
// in Unicode NFC normal form so visually identical strings from different
// input methods address the same branch.
type Topic string

// NewTopic normalizes s to NFC.
func NewTopic(s string) Topic {
	return Topic(norm.NFC.String(s))
}

func (t Topic) Equal(other Topic) bool {
	return string(t) == string(other)
}
