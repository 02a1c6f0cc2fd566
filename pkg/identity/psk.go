package identity

import "lukechampine.com/blake3"

// PskSize is the length in bytes of a pre-shared key.
const PskSize = 32

// PskIdSize is the length in bytes of a PskId.
const PskIdSize = 16

// Psk is an opaque pre-shared secret usable as a keyload absorbing key.
type Psk [PskSize]byte

// PskId identifies a Psk without revealing it; derived via a hash external
// to any message transcript so it is safe to mask onto the wire.
type PskId [PskIdSize]byte

// NewPsk derives a Psk deterministically from a passphrase, so two parties
// who separately call store_psk with the same passphrase end up with the
// same key and id.
func NewPsk(passphrase []byte) Psk {
	h := blake3.Sum256(passphrase)
	var psk Psk
	copy(psk[:], h[:])
	return psk
}

// Id derives this Psk's PskId via BLAKE3, a hash external to any DDML
// transcript (the pre-shared key is never itself absorbed to derive its
// own id).
func (p Psk) Id() PskId {
	h := blake3.Sum256(append([]byte("streams-psk-id"), p[:]...))
	var id PskId
	copy(id[:], h[:PskIdSize])
	return id
}
