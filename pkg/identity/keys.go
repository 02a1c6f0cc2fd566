// Package identity implements the per-participant key material this module
// uses: spongos-derived Ed25519 signing keypairs, the birationally-mapped
// X25519 counterpart used for keyload encapsulation, and opaque pre-shared
// keys addressed by a short non-transcript id.
package identity

import (
	"crypto/ed25519"
	"crypto/sha512"

	"github.com/flynn/noise"
	"golang.org/x/crypto/curve25519"

	"github.com/iotaledger/streams-go/pkg/spongos"
)

// kdfDomain is absorbed ahead of the seed when deriving an Ed25519 keypair,
// binding the derivation to this specific use so the same seed used
// elsewhere does not collide.
const kdfDomain = "IOTA Streams Channels user sig keypair"

// Keypair holds the Ed25519 signing keypair for a participant and the X25519
// keypair derived from it, used respectively for message signatures and
// keyload session-key encapsulation.
type Keypair struct {
	Ed25519Public  ed25519.PublicKey
	Ed25519Private ed25519.PrivateKey
	X25519Public   [32]byte
	X25519Private  [32]byte
}

// GenerateKeypair derives a full Keypair from a seed via a Spongos-based
// KDF: absorb the domain string and seed into a fresh Spongos, squeeze 32
// bytes, and use them as the Ed25519 secret scalar seed. The X25519 secret
// is then derived from the Ed25519 secret through the standard
// Ed25519-to-X25519 birational mapping (SHA-512, first 32 bytes, clamped).
func GenerateKeypair(seed []byte) (*Keypair, error) {
	s := spongos.NewKeccak()
	s.Absorb([]byte(kdfDomain))
	s.Absorb(seed)
	s.Commit()
	edSeed := s.SqueezeN(ed25519.SeedSize)

	edPriv := ed25519.NewKeyFromSeed(edSeed)
	edPub := edPriv.Public().(ed25519.PublicKey)

	xPriv := ed25519PrivateToX25519(edPriv)
	var xPub [32]byte
	curve25519.ScalarBaseMult(&xPub, &xPriv)

	return &Keypair{
		Ed25519Public:  edPub,
		Ed25519Private: edPriv,
		X25519Public:   xPub,
		X25519Private:  xPriv,
	}, nil
}

// KeypairFromEd25519 reconstructs a Keypair from an already-derived Ed25519
// private key, deriving its X25519 counterpart the same way GenerateKeypair
// does. Used to restore a Keypair from persisted key material (a User
// snapshot) without needing the original seed.
func KeypairFromEd25519(priv ed25519.PrivateKey) *Keypair {
	pub := priv.Public().(ed25519.PublicKey)
	xPriv := ed25519PrivateToX25519(priv)
	var xPub [32]byte
	curve25519.ScalarBaseMult(&xPub, &xPriv)
	return &Keypair{
		Ed25519Public:  pub,
		Ed25519Private: priv,
		X25519Public:   xPub,
		X25519Private:  xPriv,
	}
}

// ed25519PrivateToX25519 maps an Ed25519 private key to its birationally
// equivalent X25519 scalar: hash the 32-byte seed half with SHA-512, take
// the first 32 bytes, and clamp per RFC 7748.
func ed25519PrivateToX25519(priv ed25519.PrivateKey) [32]byte {
	h := sha512.Sum512(priv.Seed())
	var out [32]byte
	copy(out[:], h[:32])
	out[0] &= 248
	out[31] &= 127
	out[31] |= 64
	return out
}

// SharedSecret computes the X25519 shared secret between this keypair's
// private key and a peer's public key, via noise.DH25519.
func (k *Keypair) SharedSecret(peerPublic [32]byte) ([32]byte, error) {
	return SharedSecretFrom(k.X25519Private, peerPublic)
}

// spongosReader adapts a Spongos into an io.Reader of squeezed bytes, so a
// deterministic transcript can serve as the randomness source noise.DHFunc's
// GenerateKeypair expects.
type spongosReader struct {
	s *spongos.Spongos
}

func (r spongosReader) Read(p []byte) (int, error) {
	copy(p, r.s.SqueezeN(len(p)))
	return len(p), nil
}

// EphemeralX25519 generates a fresh ephemeral X25519 keypair via
// noise.DH25519, drawing randomness from randSource, used by the wrap side
// of the x25519 DDML command.
func EphemeralX25519(randSource *spongos.Spongos) (public, private [32]byte) {
	key, err := noise.DH25519.GenerateKeypair(spongosReader{randSource})
	if err != nil {
		// spongosReader never returns an error; GenerateKeypair cannot fail.
		panic(err)
	}
	copy(public[:], key.Public)
	copy(private[:], key.Private)
	return public, private
}

// SharedSecretFrom computes the X25519 shared secret between a local
// private scalar and a peer public key via noise.DH25519, used on the
// unwrap side where no Keypair is available (only the ephemeral or static
// private scalar is).
func SharedSecretFrom(localPrivate, peerPublic [32]byte) ([32]byte, error) {
	var out [32]byte
	secret, err := noise.DH25519.DH(localPrivate[:], peerPublic[:])
	if err != nil {
		return out, err
	}
	copy(out[:], secret)
	return out, nil
}
