package bitmatrix

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/minio/highwayhash"
)

// MaxWireBytes bounds the payload of a matrix read from the wire.
const MaxWireBytes = 1 << 30

// fingerprintKey is a fixed highwayhash key, fingerprints are only
// meant to compare matrices across logs of two parties.
var fingerprintKey = make([]byte, 32)

// WriteTo writes m as int32 cols, int32 rows (big endian) followed by
// rows rows of ceil(cols/8) bytes each with zeroed trailing bits.
func (m *BitMatrix) WriteTo(w io.Writer) (int64, error) {
	hdr := [2]int32{int32(m.numCols), int32(m.numRows)}
	if err := binary.Write(w, binary.BigEndian, &hdr); err != nil {
		return 0, err
	}

	used := m.UsedBytesPerRow()
	var payload []byte
	if m.zeroPadded && m.bytesPerRow == used {
		payload = m.bits[m.rowOffs : m.rowOffs+used*m.numRows]
	} else {
		payload = m.PackedBits()
	}

	n, err := w.Write(payload)
	return int64(8 + n), err
}

// ReadFrom replaces m with a matrix decoded from r.
func (m *BitMatrix) ReadFrom(r io.Reader) (int64, error) {
	var hdr [2]int32
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return 0, err
	}

	cols, rows := int(hdr[0]), int(hdr[1])
	if cols < 0 || rows < 0 || (rows > 0 && usedBytes(cols) > MaxWireBytes/rows) {
		return 8, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, cols, rows)
	}

	fresh := New(cols, rows)
	n, err := io.ReadFull(r, fresh.bits)
	if err != nil {
		return int64(8 + n), err
	}
	fresh.zeroPadded = false
	fresh.ZeroPad()

	*m = *fresh
	return int64(8 + n), nil
}

// Read decodes a matrix from r.
func Read(r io.Reader) (*BitMatrix, error) {
	m := new(BitMatrix)
	if _, err := m.ReadFrom(r); err != nil {
		return nil, err
	}
	return m, nil
}

// Fingerprint returns a 64 bit highwayhash digest of the dimensions and
// bits of m.
func (m *BitMatrix) Fingerprint() uint64 {
	h, err := highwayhash.New64(fingerprintKey)
	if err != nil {
		panic(err)
	}

	hdr := [2]int32{int32(m.numCols), int32(m.numRows)}
	binary.Write(h, binary.BigEndian, &hdr)
	h.Write(m.PackedBits())
	return h.Sum64()
}
