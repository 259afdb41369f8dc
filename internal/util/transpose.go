package util

import (
	"runtime"
	"sync"
)

const (
	blockWidth = 512
	blockBytes = blockWidth / 8
	blockWords = blockWidth / 64
)

// A bitBlock is a matrix of 512 by 512 bits. Row i is held in words
// set[i*8 : i*8+8], column c of a row is bit c%64 of word c/64.
type bitBlock struct {
	set [blockWidth * blockWords]uint64
}

// masks used by transpose64, from the 32x32 quadrant swap down to
// single bits.
var transposeMasks = [...]struct {
	width int
	mask  uint64
}{
	{32, 0xFFFFFFFF00000000},
	{16, 0xFFFF0000FFFF0000},
	{8, 0xFF00FF00FF00FF00},
	{4, 0xF0F0F0F0F0F0F0F0},
	{2, 0xCCCCCCCCCCCCCCCC},
	{1, 0xAAAAAAAAAAAAAAAA},
}

// TransposeBits writes the transpose of src into dst. src holds rows
// rows of cols bits, one row every srcStride bytes; dst receives cols
// rows of rows bits, one row every dstStride bytes. Bits are packed
// least significant first. Padding bits past column cols of src are
// ignored and the padding bits of every dst row are cleared.
//
// The matrix is cut into blocks of 512x512 bits which are transposed in
// place by a pool of GOMAXPROCS workers.
func TransposeBits(dst []byte, dstStride int, src []byte, srcStride, cols, rows int) {
	if cols == 0 || rows == 0 {
		return
	}

	rowBlocks := (rows + blockWidth - 1) / blockWidth
	colBlocks := (cols + blockWidth - 1) / blockWidth
	nblks := rowBlocks * colBlocks

	nworkers := runtime.GOMAXPROCS(0)
	if nworkers > nblks {
		nworkers = nblks
	}

	// how many blocks each worker is responsible for
	workerResp := nblks / nworkers

	var wg sync.WaitGroup
	wg.Add(nworkers)
	for w := 0; w < nworkers; w++ {
		first, last := w*workerResp, (w+1)*workerResp
		if w == nworkers-1 { // last worker has extra work
			last = nblks
		}
		go func() {
			defer wg.Done()
			var b bitBlock
			for i := first; i < last; i++ {
				bi, bj := i/colBlocks, i%colBlocks
				b.load(src, srcStride, bi, bj, cols, rows)
				b.transpose()
				b.store(dst, dstStride, bi, bj, cols, rows)
			}
		}()
	}
	wg.Wait()
}

// load fills b with the block of rows [bi*512, bi*512+512) and columns
// [bj*512, bj*512+512) of src. The parts outside of the matrix are
// zeroed.
func (b *bitBlock) load(src []byte, stride, bi, bj, cols, rows int) {
	colStart := bj * blockBytes
	colEnd := min(colStart+blockBytes, (cols+7)/8)

	n := min(blockWidth, rows-bi*blockWidth)
	for i := 0; i < n; i++ {
		row := (bi*blockWidth + i) * stride
		b.loadRow(i, src[row+colStart:row+colEnd])
	}
	for i := n; i < blockWidth; i++ {
		b.loadRow(i, nil)
	}
}

// store writes the transposed block (bi, bj) into dst: row i of b
// becomes row bj*512+i of dst, covering columns [bi*512, bi*512+512).
func (b *bitBlock) store(dst []byte, stride, bi, bj, cols, rows int) {
	colStart := bi * blockBytes
	colEnd := min(colStart+blockBytes, (rows+7)/8)

	n := min(blockWidth, cols-bj*blockWidth)
	for i := 0; i < n; i++ {
		row := (bj*blockWidth + i) * stride
		b.storeRow(i, dst[row+colStart:row+colEnd])
	}
}

// transpose performs an in-place transpose of the block. The 8x8 grid
// of 64x64 sub-blocks is mirrored about the diagonal first, then every
// sub-block is transposed bitwise.
func (b *bitBlock) transpose() {
	for r := 0; r < blockWords; r++ {
		for w := r + 1; w < blockWords; w++ {
			for i := 0; i < 64; i++ {
				x := (r*64+i)*blockWords + w
				y := (w*64+i)*blockWords + r
				b.set[x], b.set[y] = b.set[y], b.set[x]
			}
		}
	}

	for r := 0; r < blockWords; r++ {
		for w := 0; w < blockWords; w++ {
			b.transpose64(r*64*blockWords + w)
		}
	}
}

// transpose64 transposes the 64x64 sub-block whose first word is at
// base. Its rows are blockWords words apart.
func (b *bitBlock) transpose64(base int) {
	for _, m := range transposeMasks {
		for k := 0; k < 64; k++ {
			if k&m.width == 0 {
				b.swap(base+k*blockWords, base+(k+m.width)*blockWords, m.mask, m.width)
			}
		}
	}
}

// swap exchanges the bits of word x selected by mask with the bits of
// word y selected by mask >> width.
func (b *bitBlock) swap(x, y int, mask uint64, width int) {
	t := (b.set[x] ^ (b.set[y] << uint(width))) & mask
	b.set[x] ^= t
	b.set[y] ^= t >> uint(width)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
