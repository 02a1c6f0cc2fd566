package spongos

import "encoding/binary"

// PRP is a fixed-width permutation usable as a Spongos primitive. Width is
// the total state size in bytes (rate + capacity).
type PRP interface {
	// Permute applies the permutation in place to a Width()-byte state.
	Permute(state []byte)
	// Width returns the permutation's state size in bytes.
	Width() int
	// Rate returns the outer (revealed) region size in bytes.
	Rate() int
	// Capacity returns the inner (unrevealed) region size in bytes.
	Capacity() int
}

// KeccakF1600 is the 1600-bit Keccak permutation (W=200, R=168, C=32), the
// sole primitive this module wires into Spongos.
type KeccakF1600 struct{}

func (KeccakF1600) Width() int    { return 200 }
func (KeccakF1600) Rate() int     { return 168 }
func (KeccakF1600) Capacity() int { return 32 }

// Permute runs 24 rounds of Keccak-f[1600] over a 200-byte little-endian
// lane state, laid out exactly as FIPS-202 describes it (5x5 64-bit lanes).
func (KeccakF1600) Permute(state []byte) {
	var a [25]uint64
	for i := 0; i < 25; i++ {
		a[i] = binary.LittleEndian.Uint64(state[i*8 : i*8+8])
	}
	keccakF1600(&a)
	for i := 0; i < 25; i++ {
		binary.LittleEndian.PutUint64(state[i*8:i*8+8], a[i])
	}
}

var roundConstants = [24]uint64{
	0x0000000000000001, 0x0000000000008082, 0x800000000000808a, 0x8000000080008000,
	0x000000000000808b, 0x0000000080000001, 0x8000000080008081, 0x8000000000008009,
	0x000000000000008a, 0x0000000000000088, 0x0000000080008009, 0x000000008000000a,
	0x000000008000808b, 0x800000000000008b, 0x8000000000008089, 0x8000000000008003,
	0x8000000000008002, 0x8000000000000080, 0x000000000000800a, 0x800000008000000a,
	0x8000000080008081, 0x8000000000008080, 0x0000000080000001, 0x8000000080008008,
}

var rotationOffsets = [25]uint{
	0, 1, 62, 28, 27,
	36, 44, 6, 55, 20,
	3, 10, 43, 25, 39,
	41, 45, 15, 21, 8,
	18, 2, 61, 56, 14,
}

func rotl64(x uint64, n uint) uint64 {
	if n == 0 {
		return x
	}
	return (x << n) | (x >> (64 - n))
}

// keccakF1600 applies the 24-round Keccak-f permutation to a 5x5 lane state,
// laid out row-major: a[5*y+x] is lane (x, y).
func keccakF1600(a *[25]uint64) {
	var c [5]uint64
	var d [5]uint64
	var b [25]uint64

	for round := 0; round < 24; round++ {
		// Theta
		for x := 0; x < 5; x++ {
			c[x] = a[x] ^ a[x+5] ^ a[x+10] ^ a[x+15] ^ a[x+20]
		}
		for x := 0; x < 5; x++ {
			d[x] = c[(x+4)%5] ^ rotl64(c[(x+1)%5], 1)
		}
		for x := 0; x < 5; x++ {
			for y := 0; y < 5; y++ {
				a[5*y+x] ^= d[x]
			}
		}

		// Rho and Pi
		for x := 0; x < 5; x++ {
			for y := 0; y < 5; y++ {
				nx := y
				ny := (2*x + 3*y) % 5
				b[5*ny+nx] = rotl64(a[5*y+x], rotationOffsets[5*y+x])
			}
		}

		// Chi
		for x := 0; x < 5; x++ {
			for y := 0; y < 5; y++ {
				a[5*y+x] = b[5*y+x] ^ ((^b[5*y+(x+1)%5]) & b[5*y+(x+2)%5])
			}
		}

		// Iota
		a[0] ^= roundConstants[round]
	}
}
