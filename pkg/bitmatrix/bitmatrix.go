// Package bitmatrix implements a packed two dimensional bit array.
//
// Rows are byte aligned: bit c of row r lives in byte r*stride + c/8
// at position c%8 (least significant bit first). When a matrix is
// zero padded, the unused trailing bits of the last byte of every row
// are 0.
//
// Matrices can share their backing storage. Two sharing policies exist:
//
//   - Row views returned by SubMatrix share storage with the parent and
//     are write-through: writes made through the view are observed by
//     the parent. Creating a row view marks the parent copy-on-write,
//     so the first mutation of the parent gives it private storage and
//     breaks the sharing. Detach breaks the sharing explicitly.
//   - Column views returned by SubMatrixCols share storage when the
//     first column is byte aligned; both the view and the parent are
//     then copy-on-write. Unaligned column views are private copies.
//
// Any mutation of a copy-on-write matrix first materializes a private,
// densely packed copy of its content.
//
// A BitMatrix is not safe for concurrent use.
package bitmatrix

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/optable/otext/internal/util"
)

var (
	ErrDimensionMismatch = errors.New("bitmatrix: matrix dimensions do not match")
	ErrOutOfRange        = errors.New("bitmatrix: index out of range")
	ErrInvalidDimensions = errors.New("bitmatrix: invalid matrix dimensions")
)

// BitMatrix is a packed matrix of bits with byte aligned rows.
type BitMatrix struct {
	bits        []byte
	numCols     int
	numRows     int
	rowOffs     int
	bytesPerRow int
	zeroPadded  bool
	copyOnWrite bool
	// borrowed storage is visible to a matrix or buffer that must never
	// see writes made through m or its row views
	borrowed bool
}

// usedBytes returns the number of bytes needed to hold cols bits.
func usedBytes(cols int) int {
	return (cols + 7) / 8
}

// lastByteMask returns the mask of the used bits in the last byte of
// a row that is cols bits wide.
func lastByteMask(cols int) byte {
	if cols%8 == 0 {
		return 0xff
	}
	return byte(1<<uint(cols%8)) - 1
}

// New allocates a zeroed matrix of rows rows of cols bits each.
func New(cols, rows int) *BitMatrix {
	if cols < 0 || rows < 0 {
		panic(ErrInvalidDimensions)
	}

	stride := usedBytes(cols)
	return &BitMatrix{
		bits:        make([]byte, stride*rows),
		numCols:     cols,
		numRows:     rows,
		bytesPerRow: stride,
		zeroPadded:  true,
	}
}

// NewVector allocates a zeroed single row matrix of cols bits.
func NewVector(cols int) *BitMatrix {
	return New(cols, 1)
}

// Wrap returns a single row matrix using all of buf as its storage.
// The matrix is copy-on-write: buf is never modified through it.
func Wrap(buf []byte) *BitMatrix {
	return &BitMatrix{
		bits:        buf,
		numCols:     len(buf) * 8,
		numRows:     1,
		bytesPerRow: len(buf),
		zeroPadded:  true,
		copyOnWrite: true,
		borrowed:    true,
	}
}

// WrapMatrix returns a copy-on-write, zero padded matrix of rows rows
// of cols bits stored densely in buf starting at byte offset.
func WrapMatrix(buf []byte, offset, cols, rows int) *BitMatrix {
	return WrapStrided(buf, offset, cols, rows, usedBytes(cols), true, true)
}

// WrapStrided returns a matrix stored in buf starting at byte offset
// with stride bytes between consecutive rows. If zeroPad is set the
// padding bits are cleared, which copies the storage first when
// copyOnWrite is set and the padding is not already zero.
func WrapStrided(buf []byte, offset, cols, rows, stride int, copyOnWrite, zeroPad bool) *BitMatrix {
	if cols < 0 || rows < 0 || offset < 0 || cols > stride*8 {
		panic(ErrInvalidDimensions)
	}
	if rows > 0 && offset+(rows-1)*stride+usedBytes(cols) > len(buf) {
		panic(ErrInvalidDimensions)
	}

	m := &BitMatrix{
		bits:        buf,
		numCols:     cols,
		numRows:     rows,
		rowOffs:     offset,
		bytesPerRow: stride,
		zeroPadded:  cols%8 == 0,
		copyOnWrite: copyOnWrite,
		borrowed:    copyOnWrite,
	}
	if zeroPad {
		m.ZeroPad()
	}
	return m
}

// NumRows returns the number of rows.
func (m *BitMatrix) NumRows() int {
	return m.numRows
}

// NumCols returns the number of bits in each row.
func (m *BitMatrix) NumCols() int {
	return m.numCols
}

// BytesPerRow returns the row stride of the backing storage.
func (m *BitMatrix) BytesPerRow() int {
	return m.bytesPerRow
}

// UsedBytesPerRow returns ceil(NumCols/8).
func (m *BitMatrix) UsedBytesPerRow() int {
	return usedBytes(m.numCols)
}

// IsZeroPadded reports whether the padding bits of every row are known
// to be zero.
func (m *BitMatrix) IsZeroPadded() bool {
	return m.zeroPadded
}

// IsCopyOnWrite reports whether the next mutation copies the storage.
func (m *BitMatrix) IsCopyOnWrite() bool {
	return m.copyOnWrite
}

func (m *BitMatrix) rowIndex(row int) int {
	return m.rowOffs + row*m.bytesPerRow
}

func (m *BitMatrix) checkRow(row int) {
	if row < 0 || row >= m.numRows {
		panic(fmt.Errorf("%w: row %d of %d", ErrOutOfRange, row, m.numRows))
	}
}

func (m *BitMatrix) check(col, row int) {
	m.checkRow(row)
	if col < 0 || col >= m.numCols {
		panic(fmt.Errorf("%w: column %d of %d", ErrOutOfRange, col, m.numCols))
	}
}

// repack replaces the storage with a private dense copy of columns
// [colStart, colStart+cols).
func (m *BitMatrix) repack(colStart, cols int) {
	stride := usedBytes(cols)
	bits := make([]byte, stride*m.numRows)
	m.packInto(bits, colStart, cols)

	m.bits = bits
	m.rowOffs = 0
	m.numCols = cols
	m.bytesPerRow = stride
	m.zeroPadded = true
	m.copyOnWrite = false
	m.borrowed = false
}

// packInto writes columns [colStart, colStart+cols) of every row
// densely into dst, shifting when colStart is not byte aligned and
// clearing the trailing bits of each packed row.
func (m *BitMatrix) packInto(dst []byte, colStart, cols int) {
	stride := usedBytes(cols)
	if stride == 0 {
		return
	}

	mask := lastByteMask(cols)
	shift := uint(colStart % 8)
	for i := 0; i < m.numRows; i++ {
		row := m.bits[m.rowIndex(i)+colStart/8:]
		out := dst[i*stride : (i+1)*stride]
		if shift == 0 {
			copy(out, row[:stride])
		} else {
			for j := range out {
				b := row[j] >> shift
				if j+1 < len(row) {
					b |= row[j+1] << (8 - shift)
				}
				out[j] = b
			}
		}
		out[stride-1] &= mask
	}
}

// beforeWrite materializes private storage for copy-on-write matrices.
func (m *BitMatrix) beforeWrite() {
	if m.copyOnWrite {
		m.repack(0, m.numCols)
	}
}

// Detach gives m private, densely packed storage, breaking any sharing
// with parents, views or wrapped buffers.
func (m *BitMatrix) Detach() {
	m.repack(0, m.numCols)
}

// ZeroPad clears the padding bits of every row. Storage is only copied
// when m is copy-on-write and some padding bit is actually set.
func (m *BitMatrix) ZeroPad() {
	if m.numCols%8 != 0 {
		last := m.numCols / 8
		mask := lastByteMask(m.numCols)
		dirty := false
		for i := 0; i < m.numRows; i++ {
			if m.bits[m.rowIndex(i)+last]&^mask != 0 {
				dirty = true
				break
			}
		}

		if dirty {
			m.beforeWrite()
			for i := 0; i < m.numRows; i++ {
				m.bits[m.rowIndex(i)+last] &= mask
			}
		}
	}
	m.zeroPadded = true
}

// Row returns the used bytes of row i. The matrix is zero padded first.
// The returned slice aliases the storage and must not be modified.
func (m *BitMatrix) Row(i int) []byte {
	m.checkRow(i)
	if !m.zeroPadded {
		m.ZeroPad()
	}

	start := m.rowIndex(i)
	end := start + m.UsedBytesPerRow()
	return m.bits[start:end:end]
}

// PackedBits returns a dense, zero padded copy of the matrix content.
func (m *BitMatrix) PackedBits() []byte {
	bits := make([]byte, m.UsedBytesPerRow()*m.numRows)
	m.packInto(bits, 0, m.numCols)
	return bits
}

// Clone returns a private copy of m.
func (m *BitMatrix) Clone() *BitMatrix {
	return &BitMatrix{
		bits:        m.PackedBits(),
		numCols:     m.numCols,
		numRows:     m.numRows,
		bytesPerRow: m.UsedBytesPerRow(),
		zeroPadded:  true,
	}
}

// Bit returns the bit at (col, row).
func (m *BitMatrix) Bit(col, row int) uint8 {
	m.check(col, row)
	if util.BitSetInByte(m.bits[m.rowIndex(row):], col) {
		return 1
	}
	return 0
}

// SetBit sets the bit at (col, row) to the low bit of bit.
func (m *BitMatrix) SetBit(col, row int, bit uint8) {
	m.check(col, row)
	m.beforeWrite()

	idx := m.rowIndex(row) + col/8
	shift := uint(col % 8)
	m.bits[idx] = m.bits[idx]&^(1<<shift) | (bit&1)<<shift
}

// XorBit xors the low bit of bit into the bit at (col, row).
func (m *BitMatrix) XorBit(col, row int, bit uint8) {
	m.check(col, row)
	m.beforeWrite()

	m.bits[m.rowIndex(row)+col/8] ^= (bit & 1) << uint(col%8)
}

// Bits returns n <= 64 bits of row starting at col as a word, least
// significant bit first. Bits past the end of the row read as zero.
func (m *BitMatrix) Bits(col, row, n int) uint64 {
	if n < 0 || n > 64 {
		panic(fmt.Errorf("%w: word of %d bits", ErrOutOfRange, n))
	}
	m.checkRow(row)
	if col < 0 || col > m.numCols {
		panic(fmt.Errorf("%w: column %d of %d", ErrOutOfRange, col, m.numCols))
	}
	if col+n > m.numCols {
		n = m.numCols - col
	}
	if n == 0 {
		return 0
	}

	idx := m.rowIndex(row) + col/8
	shift := uint(col % 8)
	nbytes := (int(shift) + n + 7) / 8

	var w uint64
	for j := 0; j < nbytes; j++ {
		b := uint64(m.bits[idx+j])
		if j == 0 {
			w = b >> shift
		} else {
			w |= b << (uint(j)*8 - shift)
		}
	}

	if n < 64 {
		w &= (1 << uint(n)) - 1
	}
	return w
}

// SetBits writes the n <= 64 low bits of word into row starting at col,
// least significant bit first. Writes are silently truncated at the end
// of the row, so padding bits are never touched.
func (m *BitMatrix) SetBits(col, row, n int, word uint64) {
	if n < 0 || n > 64 {
		panic(fmt.Errorf("%w: word of %d bits", ErrOutOfRange, n))
	}
	m.checkRow(row)
	if col < 0 || col > m.numCols {
		panic(fmt.Errorf("%w: column %d of %d", ErrOutOfRange, col, m.numCols))
	}
	m.beforeWrite()
	if col+n > m.numCols {
		n = m.numCols - col
	}

	idx := m.rowIndex(row) + col/8
	shift := uint(col % 8)
	if shift != 0 && n > 0 {
		rem := 8 - int(shift)
		if n < rem {
			rem = n
		}
		mask := byte(1<<uint(rem)) - 1
		m.bits[idx] = m.bits[idx]&^(mask<<shift) | (byte(word)&mask)<<shift
		word >>= uint(rem)
		n -= rem
		idx++
	}

	for n >= 8 {
		m.bits[idx] = byte(word)
		word >>= 8
		n -= 8
		idx++
	}

	if n > 0 {
		mask := byte(1<<uint(n)) - 1
		m.bits[idx] = m.bits[idx]&^mask | byte(word)&mask
	}
}

// Word returns the idx-th word of size bits of the first row.
func (m *BitMatrix) Word(idx, size int) uint64 {
	return m.Bits(idx*size, 0, size)
}

// SetWord sets the idx-th word of size bits of the first row.
func (m *BitMatrix) SetWord(idx, size int, word uint64) {
	m.SetBits(idx*size, 0, size, word)
}

// Equal reports whether m and b have the same dimensions and the same
// bits. Padding and storage layout are ignored.
func (m *BitMatrix) Equal(b *BitMatrix) bool {
	if m.numRows != b.numRows || m.numCols != b.numCols {
		return false
	}

	full := m.numCols / 8
	mask := lastByteMask(m.numCols)
	for i := 0; i < m.numRows; i++ {
		ra := m.bits[m.rowIndex(i):]
		rb := b.bits[b.rowIndex(i):]
		if !bytes.Equal(ra[:full], rb[:full]) {
			return false
		}
		if m.numCols%8 != 0 && (ra[full]^rb[full])&mask != 0 {
			return false
		}
	}
	return true
}

// FillRandom overwrites the whole matrix with bytes read from r and
// re-applies zero padding. Shared, offset or strided storage is first
// replaced by a private dense buffer.
func (m *BitMatrix) FillRandom(r io.Reader) error {
	used := m.UsedBytesPerRow()
	if m.copyOnWrite || m.rowOffs != 0 || m.bytesPerRow != used || len(m.bits) != used*m.numRows {
		m.bits = make([]byte, used*m.numRows)
		m.rowOffs = 0
		m.bytesPerRow = used
		m.copyOnWrite = false
		m.borrowed = false
	}

	if _, err := io.ReadFull(r, m.bits); err != nil {
		return err
	}

	m.zeroPadded = false
	m.ZeroPad()
	return nil
}

// Transpose returns a new matrix T with T.Bit(r, c) == m.Bit(c, r).
func (m *BitMatrix) Transpose() *BitMatrix {
	t := New(m.numRows, m.numCols)
	if m.numRows > 0 && m.numCols > 0 {
		util.TransposeBits(t.bits, t.bytesPerRow, m.bits[m.rowOffs:], m.bytesPerRow, m.numCols, m.numRows)
	}
	return t
}

// String renders the first row as a hexadecimal integer followed by the
// dimensions.
func (m *BitMatrix) String() string {
	dims := fmt.Sprintf("%d", m.numCols)
	if m.numRows > 1 {
		dims = fmt.Sprintf("%dx%d", m.numCols, m.numRows)
	}
	if m.numRows == 0 {
		return fmt.Sprintf("0x0[%dx0]", m.numCols)
	}
	return fmt.Sprintf("0x%s[%s]", m.BigInt(m.numCols).Text(16), dims)
}
