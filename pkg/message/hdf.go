// Package message implements the HDF wire header and the DDML body variants
// transported inside a channel: announcement, branch announcement, keyload,
// signed packet, tagged packet, subscription, and unsubscription.
package message

import (
	"encoding/binary"

	"github.com/iotaledger/streams-go/pkg/address"
	"github.com/iotaledger/streams-go/pkg/ddml"
	"github.com/iotaledger/streams-go/pkg/streamserr"
)

// Encoding and frame-type constants fixed by this module's wire format.
const (
	EncodingUTF8      = 0
	StreamsVersion1   = 0
	FrameTypeHDF      = 0x30
	SequenceFieldSize = 8
)

// Message-type nibble values.
const (
	TypeAnnouncement       = 0
	TypeBranchAnnouncement = 1
	TypeKeyload            = 2
	TypeSignedPacket       = 3
	TypeTaggedPacket       = 4
	TypeSubscription       = 5
	TypeUnsubscription     = 6
)

// HDF is the fixed-layout header that precedes every message body. It is the
// only part of a message unwrapped before the spongos joins with the
// predecessor: encoding and version are absorb-written, so both are bound
// into the transcript, and only the version is checked on unwrap (the
// encoding byte is not validated); the message-type nibble is additionally absorbed as external
// so the body transcript is bound to it, and the linked address is
// absorb-written so its presence or absence is part of the transcript.
type HDF struct {
	Encoding          uint8
	Version           uint8
	MessageType       uint8 // low 4 bits significant
	PayloadLength     uint16 // low 10 bits significant
	FrameType         uint8
	PayloadFrameCount uint32 // low 22 bits significant
	LinkedMsgAddress  *address.MsgId
	Sequence          uint64
}

// NewHDF constructs an HDF for a fresh message, message-type validated to
// fit in 4 bits.
func NewHDF(messageType uint8, seq uint64) (*HDF, error) {
	if messageType>>4 != 0 {
		return nil, streamserr.New(streamserr.ValueOutOfRange, "message type must fit in 4 bits")
	}
	return &HDF{
		Encoding:    EncodingUTF8,
		Version:     StreamsVersion1,
		MessageType: messageType,
		FrameType:   FrameTypeHDF,
		Sequence:    seq,
	}, nil
}

// WithLinkedMsgAddress sets the linked predecessor address.
func (h *HDF) WithLinkedMsgAddress(id address.MsgId) *HDF {
	h.LinkedMsgAddress = &id
	return h
}

// WithPayloadLength sets the 10-bit payload length field.
func (h *HDF) WithPayloadLength(n uint16) (*HDF, error) {
	if n>>10 != 0 {
		return nil, streamserr.New(streamserr.ValueOutOfRange, "payload length must fit in 10 bits")
	}
	h.PayloadLength = n
	return h, nil
}

func messageTypeAndPayloadLengthBytes(h *HDF) [2]byte {
	return [2]byte{
		(h.MessageType << 4) | (uint8(h.PayloadLength>>8) & 0b0011),
		uint8(h.PayloadLength),
	}
}

func payloadFrameCountBytes(h *HDF) [3]byte {
	var x [4]byte
	binary.BigEndian.PutUint32(x[:], h.PayloadFrameCount)
	return [3]byte{x[1] & 0b00111111, x[2], x[3]}
}

func linkedAddressBytes(link *address.MsgId) ddml.NBytes {
	if link == nil {
		return ddml.NBytes{0}
	}
	out := make(ddml.NBytes, 1+address.MsgIdSize)
	out[0] = 1
	copy(out[1:], link[:])
	return out
}

// SizeofHDF returns the exact wire byte count an HDF's Wrap would produce.
func SizeofHDF(h *HDF) int {
	c := ddml.NewSizeofContext()
	c.AbsorbUint8(0)
	c.AbsorbUint8(0)
	c.SkipNBytes(make(ddml.NBytes, 2))
	c.AbsorbExternalUint8(ddml.NewExternal(ddml.Uint8(0)))
	c.AbsorbUint8(0)
	c.SkipNBytes(make(ddml.NBytes, 3))
	c.AbsorbNBytes(linkedAddressBytes(h.LinkedMsgAddress))
	c.SkipNBytes(make(ddml.NBytes, SequenceFieldSize))
	return c.Size()
}

// WrapHDF writes h's wire form into c, driving the spongos.
func WrapHDF(c *ddml.WrapContext, h *HDF) error {
	if _, err := c.AbsorbUint8(ddml.Uint8(h.Encoding)); err != nil {
		return err
	}
	if _, err := c.AbsorbUint8(ddml.Uint8(h.Version)); err != nil {
		return err
	}
	mtpl := messageTypeAndPayloadLengthBytes(h)
	if _, err := c.SkipNBytes(ddml.NBytes(mtpl[:])); err != nil {
		return err
	}
	c.AbsorbExternalUint8(ddml.NewExternal(ddml.Uint8(h.MessageType << 4)))
	if _, err := c.AbsorbUint8(ddml.Uint8(h.FrameType)); err != nil {
		return err
	}
	pfc := payloadFrameCountBytes(h)
	if _, err := c.SkipNBytes(ddml.NBytes(pfc[:])); err != nil {
		return err
	}
	if _, err := c.AbsorbNBytes(linkedAddressBytes(h.LinkedMsgAddress)); err != nil {
		return err
	}
	var seqBuf [SequenceFieldSize]byte
	binary.BigEndian.PutUint64(seqBuf[:], h.Sequence)
	_, err := c.SkipNBytes(ddml.NBytes(seqBuf[:]))
	return err
}

// UnwrapHDF reads an HDF's wire form from c, driving the spongos, and
// validates version, reserved bits, and frame type.
func UnwrapHDF(c *ddml.UnwrapContext) (*HDF, error) {
	h := &HDF{}

	var encoding, version, frameType ddml.Uint8
	if _, err := c.AbsorbUint8(&encoding); err != nil {
		return nil, err
	}
	if _, err := c.AbsorbUint8(&version); err != nil {
		return nil, err
	}
	if version != StreamsVersion1 {
		return nil, streamserr.New(streamserr.Malformed, "unsupported message version")
	}

	mtpl := make(ddml.NBytes, 2)
	if _, err := c.SkipNBytes(mtpl); err != nil {
		return nil, err
	}
	if mtpl[0]&0b1100 != 0 {
		return nil, streamserr.New(streamserr.Malformed, "reserved bits between message type and payload length must be zero")
	}
	c.AbsorbExternalUint8(ddml.NewExternal(ddml.Uint8(mtpl[0] & 0b11110000)))

	if _, err := c.AbsorbUint8(&frameType); err != nil {
		return nil, err
	}
	if frameType != FrameTypeHDF {
		return nil, streamserr.New(streamserr.Malformed, "unexpected frame type")
	}

	pfc := make(ddml.NBytes, 3)
	if _, err := c.SkipNBytes(pfc); err != nil {
		return nil, err
	}
	if pfc[0]&0b11000000 != 0 {
		return nil, streamserr.New(streamserr.Malformed, "reserved bits of payload frame count must be zero")
	}

	linkTag := make(ddml.NBytes, 1)
	if _, err := c.AbsorbNBytes(linkTag); err != nil {
		return nil, err
	}
	switch linkTag[0] {
	case 0:
		h.LinkedMsgAddress = nil
	case 1:
		idBytes := make(ddml.NBytes, address.MsgIdSize)
		if _, err := c.AbsorbNBytes(idBytes); err != nil {
			return nil, err
		}
		var id address.MsgId
		copy(id[:], idBytes)
		h.LinkedMsgAddress = &id
	default:
		return nil, streamserr.New(streamserr.Malformed, "invalid linked-address presence tag")
	}

	var seqBuf ddml.NBytes = make(ddml.NBytes, SequenceFieldSize)
	if _, err := c.SkipNBytes(seqBuf); err != nil {
		return nil, err
	}

	h.Encoding = uint8(encoding)
	h.Version = uint8(version)
	h.MessageType = mtpl[0] >> 4
	h.PayloadLength = (uint16(mtpl[0]&0b0011) << 8) | uint16(mtpl[1])
	h.FrameType = uint8(frameType)
	var x [4]byte
	x[1], x[2], x[3] = pfc[0], pfc[1], pfc[2]
	h.PayloadFrameCount = binary.BigEndian.Uint32(x[:])
	h.Sequence = binary.BigEndian.Uint64(seqBuf)

	return h, nil
}
