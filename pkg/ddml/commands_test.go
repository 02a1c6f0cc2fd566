package ddml

import (
	"bytes"
	"crypto/ed25519"
	"testing"

	"github.com/iotaledger/streams-go/pkg/spongos"
	"github.com/iotaledger/streams-go/pkg/streamserr"
)

func newKeyedSpongos(key string) *spongos.Spongos {
	s := spongos.NewKeccak()
	s.Absorb([]byte(key))
	return s
}

// wrapScript wraps a simple fixed message: absorb a Uint32, absorb a Bytes
// field, mask an NBytes field, commit, squeeze a MAC. Used to exercise the
// Sizeof/Wrap/Unwrap trio against the same script.
func wrapScript(c *WrapContext, n Uint32, pub Bytes, secretPlain NBytes) error {
	if _, err := c.AbsorbUint32(n); err != nil {
		return err
	}
	if _, err := c.AbsorbBytes(pub); err != nil {
		return err
	}
	if _, err := c.MaskNBytes(secretPlain); err != nil {
		return err
	}
	c.Commit()
	_, err := c.Squeeze(Mac(16))
	return err
}

func sizeofScript(c *SizeofContext, pub Bytes, secretLen int) int {
	c.AbsorbUint32(0)
	c.AbsorbBytes(pub)
	c.MaskNBytes(make(NBytes, secretLen))
	c.Commit()
	c.Squeeze(Mac(16))
	return c.Size()
}

func unwrapScript(c *UnwrapContext, pub *Bytes, secretOut NBytes) (Uint32, error) {
	var n Uint32
	if _, err := c.AbsorbUint32(&n); err != nil {
		return 0, err
	}
	if _, err := c.AbsorbBytes(pub); err != nil {
		return 0, err
	}
	if _, err := c.MaskNBytes(secretOut); err != nil {
		return 0, err
	}
	c.Commit()
	if _, err := c.Squeeze(Mac(16)); err != nil {
		return 0, err
	}
	return n, nil
}

func TestSizeofMatchesWrapLength(t *testing.T) {
	pub := Bytes("hello world")
	secret := NBytes("sixteen byte key")

	expected := sizeofScript(NewSizeofContext(), pub, len(secret))

	os := NewFixedOStream(expected)
	wc := NewWrapContext(newKeyedSpongos("shared key"), os)
	if err := wrapScript(wc, Uint32(42), pub, secret); err != nil {
		t.Fatalf("wrap failed: %v", err)
	}

	if len(os.Bytes()) != expected {
		t.Errorf("Sizeof predicted %d bytes, Wrap produced %d", expected, len(os.Bytes()))
	}
}

func TestWrapUnwrapRoundTrip(t *testing.T) {
	pub := Bytes("public field")
	secret := NBytes("a secret of 16 b")

	size := sizeofScript(NewSizeofContext(), pub, len(secret))
	os := NewFixedOStream(size)
	wc := NewWrapContext(newKeyedSpongos("shared key"), os)
	if err := wrapScript(wc, Uint32(7), pub, secret); err != nil {
		t.Fatalf("wrap: %v", err)
	}

	is := NewSliceIStream(os.Bytes())
	uc := NewUnwrapContext(newKeyedSpongos("shared key"), is)
	var gotPub Bytes
	gotSecret := make(NBytes, len(secret))
	n, err := unwrapScript(uc, &gotPub, gotSecret)
	if err != nil {
		t.Fatalf("unwrap: %v", err)
	}

	if n != 7 {
		t.Errorf("n = %d, want 7", n)
	}
	if !bytes.Equal(gotPub, pub) {
		t.Errorf("pub = %q, want %q", gotPub, pub)
	}
	if !bytes.Equal(gotSecret, secret) {
		t.Errorf("secret = %q, want %q", gotSecret, secret)
	}

	// The squeezed MAC leaves pos != 0; commit both sides before serializing.
	wc.Commit()
	uc.Commit()
	wantInner, err := wc.S.ToInner()
	if err != nil {
		t.Fatalf("wrap side ToInner: %v", err)
	}
	gotInner, err := uc.S.ToInner()
	if err != nil {
		t.Fatalf("unwrap side ToInner: %v", err)
	}
	if !bytes.Equal(wantInner.Capacity, gotInner.Capacity) {
		t.Errorf("final spongos states diverged between wrap and unwrap")
	}
}

func TestTamperedWireByteFailsMac(t *testing.T) {
	pub := Bytes("public field")
	secret := NBytes("a secret of 16 b")

	size := sizeofScript(NewSizeofContext(), pub, len(secret))
	os := NewFixedOStream(size)
	wc := NewWrapContext(newKeyedSpongos("shared key"), os)
	if err := wrapScript(wc, Uint32(7), pub, secret); err != nil {
		t.Fatalf("wrap: %v", err)
	}

	tampered := append([]byte(nil), os.Bytes()...)
	tampered[len(tampered)-1] ^= 0xff // flip a MAC byte

	is := NewSliceIStream(tampered)
	uc := NewUnwrapContext(newKeyedSpongos("shared key"), is)
	var gotPub Bytes
	gotSecret := make(NBytes, len(secret))
	_, err := unwrapScript(uc, &gotPub, gotSecret)
	if !streamserr.Is(err, streamserr.BadMac) {
		t.Fatalf("expected BadMac, got %v", err)
	}
}

func TestSkipBytesIndependentOfTranscript(t *testing.T) {
	sizeof := func(skip Bytes) int {
		c := NewSizeofContext()
		c.AbsorbUint8(0)
		c.SkipBytes(skip)
		c.Commit()
		c.Squeeze(Mac(16))
		return c.Size()
	}
	run := func(skip Bytes) (wireTail []byte, inner spongos.Inner) {
		size := sizeof(skip)
		os := NewFixedOStream(size)
		wc := NewWrapContext(newKeyedSpongos("key"), os)
		wc.AbsorbUint8(Uint8(1))
		wc.SkipBytes(skip)
		wc.Commit()
		wc.Squeeze(Mac(16))
		wc.Commit()
		in, err := wc.S.ToInner()
		if err != nil {
			t.Fatalf("ToInner: %v", err)
		}
		return os.Bytes(), in
	}

	_, innerA := run(Bytes("alpha"))
	_, innerB := run(Bytes("a different payload entirely"))

	if !bytes.Equal(innerA.Capacity, innerB.Capacity) {
		t.Errorf("differing skip contents produced different transcript state")
	}
}

func TestEd25519SignVerifyRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	size := NewSizeofContext()
	size.AbsorbUint8(0)
	size.Commit()
	size.Ed25519Sign()

	os := NewFixedOStream(size.Size())
	wc := NewWrapContext(spongos.NewKeccak(), os)
	if _, err := wc.AbsorbUint8(Uint8(9)); err != nil {
		t.Fatalf("absorb: %v", err)
	}
	if _, err := wc.Ed25519Sign(priv); err != nil {
		t.Fatalf("sign: %v", err)
	}

	is := NewSliceIStream(os.Bytes())
	uc := NewUnwrapContext(spongos.NewKeccak(), is)
	var n Uint8
	if _, err := uc.AbsorbUint8(&n); err != nil {
		t.Fatalf("unwrap absorb: %v", err)
	}
	if _, err := uc.Ed25519Verify(pub); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestEd25519VerifyRejectsTamperedPayload(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	size := NewSizeofContext()
	size.AbsorbUint8(0)
	size.Commit()
	size.Ed25519Sign()

	os := NewFixedOStream(size.Size())
	wc := NewWrapContext(spongos.NewKeccak(), os)
	if _, err := wc.AbsorbUint8(Uint8(9)); err != nil {
		t.Fatalf("absorb: %v", err)
	}
	if _, err := wc.Ed25519Sign(priv); err != nil {
		t.Fatalf("sign: %v", err)
	}

	tampered := append([]byte(nil), os.Bytes()...)
	tampered[0] ^= 0xff

	is := NewSliceIStream(tampered)
	uc := NewUnwrapContext(spongos.NewKeccak(), is)
	var n Uint8
	if _, err := uc.AbsorbUint8(&n); err != nil {
		t.Fatalf("unwrap absorb: %v", err)
	}
	if _, err := uc.Ed25519Verify(pub); !streamserr.Is(err, streamserr.BadSignature) {
		t.Fatalf("expected BadSignature, got %v", err)
	}
}

func TestStreamAllocationExceeded(t *testing.T) {
	os := NewFixedOStream(2)
	wc := NewWrapContext(spongos.NewKeccak(), os)
	_, err := wc.AbsorbUint32(Uint32(1))
	if err != ErrStreamAllocationExceeded {
		t.Fatalf("expected ErrStreamAllocationExceeded, got %v", err)
	}
}

func TestForkIndependentOfParentTranscript(t *testing.T) {
	parent := NewWrapContext(newKeyedSpongos("base"), NewFixedOStream(64))
	if _, err := parent.AbsorbUint8(Uint8(1)); err != nil {
		t.Fatalf("absorb: %v", err)
	}

	fork1 := parent.Fork()
	fork2 := parent.Fork()
	fork1.OS = NewFixedOStream(64)
	fork2.OS = NewFixedOStream(64)

	if _, err := fork1.AbsorbUint8(Uint8(0xAA)); err != nil {
		t.Fatalf("fork1 absorb: %v", err)
	}
	if _, err := fork2.AbsorbUint8(Uint8(0xBB)); err != nil {
		t.Fatalf("fork2 absorb: %v", err)
	}
	fork1.Commit()
	fork2.Commit()

	mac1 := fork1.S.SqueezeN(16)
	mac2 := fork2.S.SqueezeN(16)
	if bytes.Equal(mac1, mac2) {
		t.Errorf("forks that absorbed different data produced identical squeeze output")
	}

	// parent state must be unaffected by either fork.
	parentMac := parent.S.SqueezeN(16)
	control := newKeyedSpongos("base")
	control.Absorb([]byte{1})
	controlMac := control.SqueezeN(16)
	if !bytes.Equal(parentMac, controlMac) {
		t.Errorf("forking mutated the parent spongos state")
	}
}
