//go:build amd64 && !generic
// +build amd64,!generic

package util

import (
	"github.com/alecthomas/unsafeslice"
)

// loadRow copies p into row i of the block and zeroes the rest of the
// row. p holds at most 64 bytes.
// Only tested on x86-64.
func (b *bitBlock) loadRow(i int, p []byte) {
	row := unsafeslice.ByteSliceFromUint64Slice(b.set[i*blockWords : (i+1)*blockWords])
	n := copy(row, p)
	for j := n; j < len(row); j++ {
		row[j] = 0
	}
}

// storeRow copies the first len(p) bytes of row i of the block into p.
// Only tested on x86-64.
func (b *bitBlock) storeRow(i int, p []byte) {
	copy(p, unsafeslice.ByteSliceFromUint64Slice(b.set[i*blockWords:(i+1)*blockWords]))
}
