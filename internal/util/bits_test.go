package util

import (
	"bytes"
	"math/rand"
	"testing"
	"time"
)

var prng = rand.New(rand.NewSource(time.Now().UnixNano()))

func naiveXor(a, b []byte) []byte {
	dst := make([]byte, len(a))
	for i := range a {
		dst[i] = a[i] ^ b[i]
	}
	return dst
}

func TestBitSetInByte(t *testing.T) {
	b := []byte{1}

	for i := 0; i < 8; i++ {
		if i == 0 {
			if !BitSetInByte(b, i) {
				t.Fatalf("bit extraction failed")
			}
		} else {
			if BitSetInByte(b, i) {
				t.Fatalf("bit extraction failed")
			}
		}
	}

	b = []byte{161}
	for i := 0; i < 8; i++ {
		if i == 0 || i == 7 || i == 5 {
			if !BitSetInByte(b, i) {
				t.Fatalf("bit extraction failed")
			}
		} else {
			if BitSetInByte(b, i) {
				t.Fatalf("bit extraction failed")
			}
		}
	}
}

func TestXor(t *testing.T) {
	for _, l := range []int{0, 1, 7, 8, 9, 15, 16, 33, 100} {
		a := make([]byte, l)
		b := make([]byte, l)
		prng.Read(a)
		prng.Read(b)
		want := naiveXor(a, b)

		Xor(a, b)
		if !bytes.Equal(want, a) {
			t.Fatalf("in place Xor of length %d: want %x, got %x", l, want, a)
		}
	}
}

func TestXorLengthMissMatch(t *testing.T) {
	defer func() {
		if r := recover(); r != ErrByteLengthMissMatch {
			t.Fatalf("expected panic with ErrByteLengthMissMatch, got %v", r)
		}
	}()
	Xor(make([]byte, 3), make([]byte, 4))
}

func TestXorMasked(t *testing.T) {
	dst := []byte{0x00, 0x00, 0x00}
	a := []byte{0xff, 0xff, 0xff}
	XorMasked(dst, a, 0x07)
	if !bytes.Equal(dst, []byte{0xff, 0xff, 0x07}) {
		t.Fatalf("XorMasked: got %x", dst)
	}

	// empty slices are a no-op
	XorMasked(nil, nil, 0xff)

	// single byte rows only touch the masked bits
	dst = []byte{0xf0}
	XorMasked(dst, []byte{0x5a}, 0x0f)
	if dst[0] != 0xfa {
		t.Fatalf("XorMasked on one byte: got %02x", dst[0])
	}
	dst = []byte{0x00}
	XorMasked(dst, []byte{0x5a}, 0xff)
	if dst[0] != 0x5a {
		t.Fatalf("XorMasked on one byte: got %02x", dst[0])
	}
}

func BenchmarkXor(b *testing.B) {
	a := make([]byte, 10000000)
	if _, err := prng.Read(a); err != nil {
		b.Fatalf("error generating random bytes")
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Xor(a, a)
	}
}
