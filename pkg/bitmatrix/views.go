package bitmatrix

import (
	"fmt"
)

// Subcolumns shrinks m in place to columns [colStart, colStart+n).
// A byte aligned colStart only moves the row offset. An unaligned
// colStart makes m private and shifts every row.
//
// On a write-through row view, an aligned shrink whose new width ends
// inside a byte leaves the cut off columns in that byte. The next zero
// padding of the view (Row, ZeroPad or any row write) clears them in
// the storage shared with the parent. Detach the view first to keep
// the parent intact.
func (m *BitMatrix) Subcolumns(colStart, n int) {
	if colStart < 0 || n < 0 || colStart+n > m.numCols {
		panic(fmt.Errorf("%w: columns [%d, %d) of %d", ErrOutOfRange, colStart, colStart+n, m.numCols))
	}

	if colStart%8 != 0 {
		m.repack(colStart, n)
		return
	}

	// the new last byte may hold bits of columns that are cut off
	if colStart+n < m.numCols && n%8 != 0 {
		m.zeroPadded = false
	}
	m.rowOffs += colStart / 8
	m.numCols = n
}

// Subrows shrinks m in place to rows [rowStart, rowStart+n). n is
// clamped to the rows that remain after rowStart.
func (m *BitMatrix) Subrows(rowStart, n int) {
	if rowStart < 0 || rowStart > m.numRows || n < 0 {
		panic(fmt.Errorf("%w: rows from %d of %d", ErrOutOfRange, rowStart, m.numRows))
	}

	m.rowOffs = m.rowIndex(rowStart)
	if rest := m.numRows - rowStart; n > rest {
		n = rest
	}
	m.numRows = n
}

// SubMatrix returns a write-through view of rows [startRow, startRow+n).
// m becomes copy-on-write: its next mutation stops the sharing. When
// m's storage is borrowed from a wrapped buffer or a column view, the
// row view is copy-on-write too and never writes through.
func (m *BitMatrix) SubMatrix(startRow, n int) *BitMatrix {
	if startRow < 0 || n < 0 || startRow+n > m.numRows {
		panic(fmt.Errorf("%w: submatrix rows [%d, %d) of %d", ErrOutOfRange, startRow, startRow+n, m.numRows))
	}

	m.copyOnWrite = true
	return &BitMatrix{
		bits:        m.bits,
		numCols:     m.numCols,
		numRows:     n,
		rowOffs:     m.rowIndex(startRow),
		bytesPerRow: m.bytesPerRow,
		zeroPadded:  m.zeroPadded,
		copyOnWrite: m.borrowed,
		borrowed:    m.borrowed,
	}
}

// SubMatrixCols returns columns [startCol, startCol+n) of every row.
// When startCol is byte aligned the view shares storage and both m and
// the view become copy-on-write. Otherwise the view is a private copy.
func (m *BitMatrix) SubMatrixCols(startCol, n int) *BitMatrix {
	if startCol < 0 || n < 0 || startCol+n > m.numCols {
		panic(fmt.Errorf("%w: submatrix columns [%d, %d) of %d", ErrOutOfRange, startCol, startCol+n, m.numCols))
	}

	if startCol%8 != 0 {
		v := New(n, m.numRows)
		m.packInto(v.bits, startCol, n)
		return v
	}

	m.copyOnWrite = true
	m.borrowed = true
	v := &BitMatrix{
		bits:        m.bits,
		numCols:     m.numCols,
		numRows:     m.numRows,
		rowOffs:     m.rowOffs,
		bytesPerRow: m.bytesPerRow,
		zeroPadded:  m.zeroPadded,
		copyOnWrite: true,
		borrowed:    true,
	}
	v.Subcolumns(startCol, n)
	return v
}
