package bitmatrix

import (
	"math/big"

	"github.com/bits-and-blooms/bitset"
)

// ValueOf returns a vector of width bits holding the low bits of value.
func ValueOf(value uint64, width int) *BitMatrix {
	b := NewVector(width)
	n := width
	if n > 64 {
		n = 64
	}
	b.SetBits(0, 0, n, value)
	return b
}

// ValueOfBig returns a vector of width bits holding the two's
// complement representation of value, truncated to width bits.
func ValueOfBig(value *big.Int, width int) *BitMatrix {
	b := NewVector(width)
	nbytes := width/8 + 1

	// Euclidean modulus yields the sign extended low bytes
	mod := new(big.Int).Lsh(big.NewInt(1), uint(8*nbytes))
	be := new(big.Int).Mod(value, mod).Bytes()
	for i := 0; i < nbytes && i < len(be); i++ {
		b.SetBits(i*8, 0, 8, uint64(be[len(be)-i-1]))
	}
	return b
}

// AllOnes returns a vector of width bits all set to 1.
func AllOnes(width int) *BitMatrix {
	b := NewVector(width)
	for i := range b.bits {
		b.bits[i] = 0xff
	}
	b.zeroPadded = false
	b.ZeroPad()
	return b
}

// Uint64 returns the first width bits of row 0 as an integer, least
// significant bit first. width is capped at NumCols and 64.
func (m *BitMatrix) Uint64(width int) uint64 {
	if width > m.numCols {
		width = m.numCols
	}
	if width > 64 {
		width = 64
	}
	return m.Bits(0, 0, width)
}

// BigInt returns the first width bits of row 0 as a non negative
// integer. width is capped at NumCols.
func (m *BitMatrix) BigInt(width int) *big.Int {
	if width > m.numCols {
		width = m.numCols
	}

	n := usedBytes(width)
	start := m.rowIndex(0)
	be := make([]byte, n)
	for i := 0; i < n; i++ {
		be[n-i-1] = m.bits[start+i]
	}
	if n > 0 {
		be[0] &= lastByteMask(width)
	}
	return new(big.Int).SetBytes(be)
}

// FromBitSet returns a vector of width bits where bit i is set when i
// is set in b. Bits of b at or beyond width are ignored.
func FromBitSet(b *bitset.BitSet, width int) *BitMatrix {
	v := NewVector(width)
	for i, ok := b.NextSet(0); ok && int(i) < width; i, ok = b.NextSet(i + 1) {
		v.bits[i/8] |= 1 << (i % 8)
	}
	return v
}

// BitSet returns the bits of row as a bitset of length NumCols.
func (m *BitMatrix) BitSet(row int) *bitset.BitSet {
	m.checkRow(row)
	b := bitset.New(uint(m.numCols))
	for col := 0; col < m.numCols; col++ {
		if m.Bit(col, row) == 1 {
			b.Set(uint(col))
		}
	}
	return b
}
