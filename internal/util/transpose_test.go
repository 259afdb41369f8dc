package util

import (
	"fmt"
	"testing"
)

func bitAt(buf []byte, stride, row, col int) byte {
	return (buf[row*stride+col/8] >> uint(col%8)) & 1
}

func naiveTranspose(src []byte, srcStride, cols, rows int) []byte {
	dstStride := (rows + 7) / 8
	dst := make([]byte, dstStride*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if bitAt(src, srcStride, r, c) == 1 {
				dst[c*dstStride+r/8] |= 1 << uint(r%8)
			}
		}
	}
	return dst
}

func TestTransposeBits(t *testing.T) {
	for _, dim := range []struct{ cols, rows int }{
		{1, 1},
		{7, 3},
		{64, 64},
		{128, 80},
		{512, 512},
		{513, 9},
		{80, 1000},
		{1030, 700},
	} {
		t.Run(fmt.Sprintf("%dx%d", dim.cols, dim.rows), func(t *testing.T) {
			// one spare byte per row, filled with garbage
			srcStride := (dim.cols+7)/8 + 1
			src := make([]byte, srcStride*dim.rows)
			prng.Read(src)

			want := naiveTranspose(src, srcStride, dim.cols, dim.rows)
			dstStride := (dim.rows + 7) / 8
			got := make([]byte, dstStride*dim.cols)
			TransposeBits(got, dstStride, src, srcStride, dim.cols, dim.rows)

			for c := 0; c < dim.cols; c++ {
				for r := 0; r < dim.rows; r++ {
					if bitAt(got, dstStride, c, r) != bitAt(want, dstStride, c, r) {
						t.Fatalf("bit (%d, %d) differs", c, r)
					}
				}
			}
			// padding bits of the last byte of each row must stay clear
			if dim.rows%8 != 0 {
				pad := ^byte(0) << uint(dim.rows%8)
				for c := 0; c < dim.cols; c++ {
					if got[c*dstStride+dstStride-1]&pad != 0 {
						t.Fatalf("row %d has padding bits set", c)
					}
				}
			}
		})
	}
}

func TestTransposeBitsTwice(t *testing.T) {
	cols, rows := 600, 520
	stride := (cols + 7) / 8
	src := make([]byte, stride*rows)
	prng.Read(src)

	tStride := (rows + 7) / 8
	tr := make([]byte, tStride*cols)
	TransposeBits(tr, tStride, src, stride, cols, rows)
	back := make([]byte, stride*rows)
	TransposeBits(back, stride, tr, tStride, rows, cols)

	for i := range src {
		if src[i] != back[i] {
			t.Fatalf("byte %d differs after transposing twice: %02x != %02x", i, back[i], src[i])
		}
	}
}
