package bitmatrix

import (
	"fmt"

	"github.com/optable/otext/internal/util"
)

// padRow clears the padding bits of row after a row level write.
func (m *BitMatrix) padRow(row int) {
	if !m.zeroPadded {
		m.ZeroPad()
		return
	}
	if m.numCols%8 != 0 {
		m.bits[m.rowIndex(row)+m.numCols/8] &= lastByteMask(m.numCols)
	}
}

// CopyRow copies row srcRow of src into row dstRow of m. Only the first
// min(m.NumCols, src.NumCols) bits are taken from src; the copy is
// truncated to the width of m and the row is zero padded afterwards.
func (m *BitMatrix) CopyRow(dstRow int, src *BitMatrix, srcRow int) {
	m.checkRow(dstRow)
	src.checkRow(srcRow)
	m.beforeWrite()

	n := m.UsedBytesPerRow()
	srcUsed := src.UsedBytesPerRow()
	if srcUsed < n {
		n = srcUsed
	}

	dst := m.bits[m.rowIndex(dstRow):]
	copy(dst[:n], src.bits[src.rowIndex(srcRow):])
	// src padding must not leak into a wider destination
	if n > 0 && n == srcUsed && src.numCols < m.numCols {
		dst[n-1] &= lastByteMask(src.numCols)
	}
	m.padRow(dstRow)
}

// CopyRowBits copies n bits of row srcRow of src starting at srcStart
// into row dstRow of m starting at dstStart. The copy is truncated at
// the end of the destination row. Byte aligned copies move whole bytes,
// anything else is copied bit by bit.
func (m *BitMatrix) CopyRowBits(dstRow, dstStart int, src *BitMatrix, srcRow, srcStart, n int) {
	m.checkRow(dstRow)
	src.checkRow(srcRow)
	if dstStart < 0 || dstStart > m.numCols || srcStart < 0 || n < 0 {
		panic(fmt.Errorf("%w: copy of %d bits at %d to %d", ErrOutOfRange, n, srcStart, dstStart))
	}
	m.beforeWrite()

	if dstStart+n > m.numCols {
		n = m.numCols - dstStart
	}
	if srcStart+n > src.numCols {
		panic(fmt.Errorf("%w: copy of %d bits at %d from a %d bit row", ErrOutOfRange, n, srcStart, src.numCols))
	}

	if (dstStart|srcStart|n)%8 == 0 {
		d := m.rowIndex(dstRow) + dstStart/8
		s := src.rowIndex(srcRow) + srcStart/8
		copy(m.bits[d:d+n/8], src.bits[s:s+n/8])
		return
	}

	for i := 0; i < n; i++ {
		m.SetBit(dstStart+i, dstRow, src.Bit(srcStart+i, srcRow))
	}
}

// XorRow xors the first NumCols bits of row srcRow of src into row
// dstRow of m. Padding bits of m are left untouched.
func (m *BitMatrix) XorRow(dstRow int, src *BitMatrix, srcRow int) {
	if src.numCols < m.numCols {
		panic(fmt.Errorf("%w: xor of a %d bit row into a %d bit row", ErrDimensionMismatch, src.numCols, m.numCols))
	}
	m.checkRow(dstRow)
	src.checkRow(srcRow)
	m.beforeWrite()

	n := m.UsedBytesPerRow()
	d := m.rowIndex(dstRow)
	s := src.rowIndex(srcRow)
	util.XorMasked(m.bits[d:d+n], src.bits[s:s+n], lastByteMask(m.numCols))
}

// Xor xors b into m row by row. b must be at least as large as m in
// both dimensions.
func (m *BitMatrix) Xor(b *BitMatrix) {
	if b.numRows < m.numRows || b.numCols < m.numCols {
		panic(fmt.Errorf("%w: xor of %dx%d into %dx%d", ErrDimensionMismatch, b.numCols, b.numRows, m.numCols, m.numRows))
	}

	for i := 0; i < m.numRows; i++ {
		m.XorRow(i, b, i)
	}
}

// Reset clears every bit of m. Copy-on-write or strided storage is
// replaced by a fresh buffer rather than cleared in place.
func (m *BitMatrix) Reset() {
	used := m.UsedBytesPerRow()
	if m.copyOnWrite || m.bytesPerRow != used {
		m.bits = make([]byte, used*m.numRows)
		m.rowOffs = 0
		m.bytesPerRow = used
		m.copyOnWrite = false
		m.borrowed = false
	} else {
		buf := m.bits[m.rowOffs : m.rowOffs+used*m.numRows]
		for i := range buf {
			buf[i] = 0
		}
	}
	m.zeroPadded = true
}

// SetRowBytes overwrites row i with buf. Bytes past the row width are
// ignored, missing bytes are left unchanged. The row is zero padded
// afterwards.
func (m *BitMatrix) SetRowBytes(i int, buf []byte) {
	m.checkRow(i)
	m.beforeWrite()

	d := m.rowIndex(i)
	n := m.UsedBytesPerRow()
	copy(m.bits[d:d+n], buf)
	m.padRow(i)
}
