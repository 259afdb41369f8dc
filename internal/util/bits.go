package util

import (
	"fmt"
)

var ErrByteLengthMissMatch = fmt.Errorf("provided bytes do not have the same length for XOR operations")

// XorMasked xors a into dst for all full bytes and only the bits
// selected by mask in the last byte. It is used on packed rows whose
// last byte is partially used. Panic if a and dst do not have the
// same length.
func XorMasked(dst, a []byte, mask byte) {
	if len(dst) != len(a) {
		panic(ErrByteLengthMissMatch)
	}
	if len(dst) == 0 {
		return
	}

	last := len(dst) - 1
	if last > 0 {
		Xor(dst[:last], a[:last])
	}
	dst[last] ^= a[last] & mask
}

// BitSetInByte returns true if bit i is set in a byte slice.
// It extracts bits from the least significant bit (i = 0) to the
// most significant bit (i = 7).
func BitSetInByte(b []byte, i int) bool {
	return b[i/8]&(1<<(i%8)) > 0
}
