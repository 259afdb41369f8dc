package otext

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/optable/otext/pkg/bitmatrix"
)

// numberedBlock returns a sending block of n OTs where both strings of
// OT i hold first+i.
func numberedBlock(first, n int) *SendingBlock {
	x0 := bitmatrix.New(16, n)
	x1 := bitmatrix.New(16, n)
	for i := 0; i < n; i++ {
		x0.SetBits(0, i, 16, uint64(first+i))
		x1.SetBits(0, i, 16, uint64(first+i))
	}
	return NewSendingBlock(x0, x1)
}

func checkNumbers(t *testing.T, b *SendingBlock, first, n int) {
	t.Helper()
	if b.Len() != n {
		t.Fatalf("got a block of %d OTs, expected %d", b.Len(), n)
	}
	for i := 0; i < n; i++ {
		if got := b.X(0).Bits(0, i, 16); got != uint64(first+i) {
			t.Fatalf("OT %d holds %d, expected %d", i, got, first+i)
		}
	}
}

func TestQueueAddGet(t *testing.T) {
	ctx := context.Background()
	q := NewQueue[*SendingBlock](0)
	q.Add(numberedBlock(0, 3))
	q.Add(numberedBlock(100, 0))
	q.Add(numberedBlock(3, 5))
	if q.Available() != 8 {
		t.Fatalf("expected 8 OTs, got %d", q.Available())
	}

	for _, want := range []struct{ ask, first, n int }{
		{2, 0, 2},
		{10, 2, 1},
		{4, 3, 4},
		{4, 7, 1},
	} {
		b, err := q.Get(ctx, want.ask, 0)
		if err != nil {
			t.Fatal(err)
		}
		checkNumbers(t, b, want.first, want.n)
	}
	if q.Available() != 0 {
		t.Fatalf("expected an empty queue, %d OTs left", q.Available())
	}

	if b, err := q.Get(ctx, 0, 0); b != nil || err != nil {
		t.Fatalf("asking for no OTs returned %v, %v", b, err)
	}
}

func TestQueueReserved(t *testing.T) {
	calls := 0
	q := NewQueue[*SendingBlock](0)
	q.SetNeedOTCallback(func() { calls++ })
	q.Add(numberedBlock(0, 10))

	b, err := q.Get(context.Background(), 8, 4)
	if err != nil {
		t.Fatal(err)
	}
	checkNumbers(t, b, 0, 6)
	if q.Available() != 4 {
		t.Fatalf("expected the 4 reserved OTs to be left, got %d", q.Available())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := q.Get(ctx, 1, 4); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected the reserve to be kept until the deadline, got %v", err)
	}
	if calls == 0 {
		t.Fatalf("a starving Get should ask for more OTs")
	}
	if q.Available() != 4 {
		t.Fatalf("a cancelled Get removed OTs")
	}
}

func TestQueueGetWaitsForAdd(t *testing.T) {
	q := NewQueue[*SendingBlock](0)
	needed := make(chan struct{}, 1)
	q.SetNeedOTCallback(func() {
		select {
		case needed <- struct{}{}:
		default:
		}
	})

	type result struct {
		b   *SendingBlock
		err error
	}
	done := make(chan result)
	go func() {
		b, err := q.Get(context.Background(), 5, 0)
		done <- result{b, err}
	}()

	<-needed
	q.Add(numberedBlock(40, 3))
	r := <-done
	if r.err != nil {
		t.Fatal(r.err)
	}
	checkNumbers(t, r.b, 40, 3)
}

func TestQueueLowWaterMark(t *testing.T) {
	calls := 0
	q := NewQueue[*SendingBlock](4)
	q.SetNeedOTCallback(func() { calls++ })
	q.Add(numberedBlock(0, 10))

	ctx := context.Background()
	if _, err := q.Get(ctx, 5, 0); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Fatalf("5 OTs left is above the low water mark, got %d calls", calls)
	}
	if _, err := q.Get(ctx, 2, 0); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("3 OTs left is below the low water mark, got %d calls", calls)
	}
}

func TestChoiceBlockRemove(t *testing.T) {
	choices := randomMatrix(t, 10, 1)
	results := bitmatrix.New(8, 10)
	for i := 0; i < 10; i++ {
		results.SetBits(0, i, 8, uint64(i))
	}
	b := NewChoiceBlock(choices, results)

	check := func(b *ChoiceBlock, first, n int) {
		t.Helper()
		if b.Len() != n {
			t.Fatalf("got a block of %d OTs, expected %d", b.Len(), n)
		}
		for j := 0; j < n; j++ {
			if b.ChoiceBit(j) != choices.Bit(first+j, 0) {
				t.Fatalf("choice bit %d of the block is not choice %d", j, first+j)
			}
			if got := b.Results().Bits(0, j, 8); got != uint64(first+j) {
				t.Fatalf("result %d holds %d, expected %d", j, got, first+j)
			}
		}
	}

	head := b.Remove(4)
	check(head, 0, 4)
	check(b, 4, 6)

	next := b.Remove(2)
	check(next, 4, 2)
	check(b, 6, 4)
	check(head, 0, 4)
}

func TestSendingBlockRemove(t *testing.T) {
	b := numberedBlock(0, 7)
	head := b.Remove(3)
	checkNumbers(t, head, 0, 3)
	checkNumbers(t, b, 3, 4)
	if b.X(1).NumRows() != 4 {
		t.Fatalf("x1 was not shrunk")
	}
}

func TestNewBlockDimensions(t *testing.T) {
	expectPanic(t, bitmatrix.ErrDimensionMismatch, func() {
		NewChoiceBlock(bitmatrix.NewVector(3), bitmatrix.New(8, 4))
	})
	expectPanic(t, bitmatrix.ErrDimensionMismatch, func() {
		NewChoiceBlock(bitmatrix.New(4, 2), bitmatrix.New(8, 4))
	})
	expectPanic(t, bitmatrix.ErrDimensionMismatch, func() {
		NewSendingBlock(bitmatrix.New(8, 4), bitmatrix.New(8, 5))
	})
}
