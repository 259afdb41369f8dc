//go:build !amd64 || generic
// +build !amd64 generic

package util

import (
	"encoding/binary"
)

// loadRow copies p into row i of the block and zeroes the rest of the
// row. p holds at most 64 bytes.
func (b *bitBlock) loadRow(i int, p []byte) {
	var buf [blockBytes]byte
	copy(buf[:], p)
	for j := 0; j < blockWords; j++ {
		b.set[i*blockWords+j] = binary.LittleEndian.Uint64(buf[j*8:])
	}
}

// storeRow copies the first len(p) bytes of row i of the block into p.
func (b *bitBlock) storeRow(i int, p []byte) {
	var buf [blockBytes]byte
	for j := 0; j < blockWords; j++ {
		binary.LittleEndian.PutUint64(buf[j*8:], b.set[i*blockWords+j])
	}
	copy(p, buf[:])
}
