package otext

import (
	"fmt"

	"github.com/optable/otext/pkg/bitmatrix"
)

// Block is a batch of precomputed OTs that can be split.
type Block[B any] interface {
	// Len returns the number of OTs in the block.
	Len() int
	// Remove returns the first n OTs as a new block sharing storage with
	// the receiver, and drops them from the receiver.
	Remove(n int) B
}

// ChoiceBlock holds precomputed OTs for which this party was the
// chooser: for OT i it knows the random choice bit and the string
// selected by that bit.
type ChoiceBlock struct {
	choices    *bitmatrix.BitMatrix
	choiceOffs int
	results    *bitmatrix.BitMatrix
}

// NewChoiceBlock returns a block of results.NumRows() OTs. choices is a
// vector holding at least one bit per OT.
func NewChoiceBlock(choices, results *bitmatrix.BitMatrix) *ChoiceBlock {
	if choices.NumRows() != 1 || choices.NumCols() < results.NumRows() {
		panic(fmt.Errorf("%w: %d choice bits for %d OTs", bitmatrix.ErrDimensionMismatch, choices.NumCols(), results.NumRows()))
	}
	return &ChoiceBlock{choices: choices, results: results}
}

func (b *ChoiceBlock) Len() int {
	return b.results.NumRows()
}

// ChoiceBit returns the choice bit of OT i.
func (b *ChoiceBlock) ChoiceBit(i int) uint8 {
	return b.choices.Bit(b.choiceOffs+i, 0)
}

// Results returns the chosen strings, one row per OT.
func (b *ChoiceBlock) Results() *bitmatrix.BitMatrix {
	return b.results
}

func (b *ChoiceBlock) Remove(n int) *ChoiceBlock {
	head := &ChoiceBlock{
		choices:    b.choices,
		choiceOffs: b.choiceOffs,
		results:    b.results.SubMatrix(0, n),
	}
	b.choiceOffs += n
	b.results.Subrows(n, b.Len()-n)
	return head
}

// SendingBlock holds precomputed OTs for which this party was the
// sender: for OT i it knows both random strings.
type SendingBlock struct {
	x0, x1 *bitmatrix.BitMatrix
}

// NewSendingBlock returns a block of x0.NumRows() OTs.
func NewSendingBlock(x0, x1 *bitmatrix.BitMatrix) *SendingBlock {
	if x0.NumRows() != x1.NumRows() || x0.NumCols() != x1.NumCols() {
		panic(fmt.Errorf("%w: x0 is %dx%d, x1 is %dx%d", bitmatrix.ErrDimensionMismatch, x0.NumCols(), x0.NumRows(), x1.NumCols(), x1.NumRows()))
	}
	return &SendingBlock{x0: x0, x1: x1}
}

func (b *SendingBlock) Len() int {
	return b.x0.NumRows()
}

// X returns the strings of index i, one row per OT.
func (b *SendingBlock) X(i uint8) *bitmatrix.BitMatrix {
	if i == 0 {
		return b.x0
	}
	return b.x1
}

func (b *SendingBlock) Remove(n int) *SendingBlock {
	head := &SendingBlock{
		x0: b.x0.SubMatrix(0, n),
		x1: b.x1.SubMatrix(0, n),
	}
	b.x0.Subrows(n, b.Len()-n)
	b.x1.Subrows(n, b.x1.NumRows()-n)
	return head
}
