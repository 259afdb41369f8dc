package otext

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/optable/otext/pkg/bitmatrix"
	"github.com/optable/otext/pkg/channel"
)

// precomputed returns n matching precomputed OTs of k bit strings: the
// sending side and the choice side.
func precomputed(t *testing.T, k, n int) (*SendingBlock, *ChoiceBlock) {
	t.Helper()
	x0 := randomMatrix(t, k, n)
	x1 := randomMatrix(t, k, n)
	r := randomMatrix(t, n, 1)

	results := bitmatrix.New(k, n)
	for i := 0; i < n; i++ {
		if r.Bit(i, 0) == 0 {
			results.CopyRow(i, x0, i)
		} else {
			results.CopyRow(i, x1, i)
		}
	}
	return NewSendingBlock(x0, x1), NewChoiceBlock(r, results)
}

// clientPair returns a bound sending client and choosing client that
// share n precomputed OTs of k bits, split over two blocks.
func clientPair(t *testing.T, k, n int) (*Client, *Client) {
	t.Helper()
	c0, c1 := connPair(t)
	sender := newTestClient(t, 0, 0)
	receiver := newTestClient(t, 1, 0)
	sender.Bind(channel.New(c0))
	receiver.Bind(channel.New(c1))

	sb, cb := precomputed(t, k, n)
	sender.sendingOTs.Add(sb.Remove(n / 3))
	sender.sendingOTs.Add(sb)
	receiver.choiceOTs.Add(cb.Remove(n / 3))
	receiver.choiceOTs.Add(cb)
	return sender, receiver
}

func TestClientSendReceive(t *testing.T) {
	const k, n = 16, 40
	for _, otLen := range []int{1, 7, 8, 12, 16, 17, 100, 300} {
		sender, receiver := clientPair(t, k, n)
		x0 := randomMatrix(t, otLen, n)
		x1 := randomMatrix(t, otLen, n)
		choices := randomMatrix(t, n, 1)

		got := transfer(t, sender, receiver, x0, x1, choices)
		checkTransfer(t, got, x0, x1, choices)

		if sender.AvailableSendingOTs() != 0 || receiver.AvailableChoiceOTs() != 0 {
			t.Fatalf("%d bit OTs did not consume every precomputed OT", otLen)
		}
	}
}

func TestClientReceivePhases(t *testing.T) {
	const k, n = 24, 30
	sender, receiver := clientPair(t, k, 2*n)
	ctx := context.Background()

	var x0s, x1s, choices []*bitmatrix.BitMatrix
	for _, otLen := range []int{10, 50} {
		x0s = append(x0s, randomMatrix(t, otLen, n))
		x1s = append(x1s, randomMatrix(t, otLen, n))
		choices = append(choices, randomMatrix(t, n, 1))
	}

	got := make([]*bitmatrix.BitMatrix, 2)
	both(t,
		func() error {
			for i := range x0s {
				if err := sender.Send(ctx, x0s[i], x1s[i]); err != nil {
					return err
				}
			}
			return nil
		},
		func() error {
			// both batches share the round trip
			states := make([]*ReceiveState, 2)
			for i := range states {
				var err error
				if states[i], err = receiver.ReceiveWritingPhase(ctx, choices[i]); err != nil {
					return err
				}
			}
			for i := range states {
				var err error
				if got[i], err = receiver.ReceiveReadingPhase(ctx, states[i]); err != nil {
					return err
				}
			}
			return nil
		})

	for i := range got {
		checkTransfer(t, got[i], x0s[i], x1s[i], choices[i])
	}
}

func TestClientSingleOT(t *testing.T) {
	sender, receiver := clientPair(t, 16, 2)
	ctx := context.Background()
	x0 := []byte("first message, longer than a key")
	x1 := []byte("second message, as long as first")

	for choice, want := range [][]byte{x0, x1} {
		var got []byte
		both(t,
			func() error { return sender.SendBytes(ctx, x0, x1) },
			func() (err error) {
				got, err = receiver.ReceiveBit(ctx, uint8(choice))
				return err
			})
		if !bytes.Equal(got, want) {
			t.Fatalf("choice %d: got %q, expected %q", choice, got, want)
		}
	}
}

func TestClientReserved(t *testing.T) {
	sender, receiver := clientPair(t, 16, 12)
	sender.SetReserved(0, 4)
	receiver.SetReserved(4, 0)
	if sender.AvailableSendingOTs() != 8 || receiver.AvailableChoiceOTs() != 8 {
		t.Fatalf("reserved OTs are counted as available")
	}

	x0 := randomMatrix(t, 8, 8)
	x1 := randomMatrix(t, 8, 8)
	choices := randomMatrix(t, 8, 1)
	checkTransfer(t, transfer(t, sender, receiver, x0, x1, choices), x0, x1, choices)

	if sender.sendingOTs.Available() != 4 || receiver.choiceOTs.Available() != 4 {
		t.Fatalf("the reserve was consumed")
	}
	if sender.AvailableSendingOTs() != 0 {
		t.Fatalf("expected no available OTs, got %d", sender.AvailableSendingOTs())
	}
}

func TestClientUnexpectedShape(t *testing.T) {
	c0, c1 := connPair(t)
	sender := newTestClient(t, 0, 0)
	sender.Bind(channel.New(c0))
	sb, _ := precomputed(t, 16, 5)
	sender.sendingOTs.Add(sb)

	peer := channel.New(c1)
	if err := peer.WriteMatrix(bitmatrix.NewVector(4)); err != nil {
		t.Fatal(err)
	}
	if err := peer.Flush(); err != nil {
		t.Fatal(err)
	}

	err := sender.Send(context.Background(), bitmatrix.New(8, 5), bitmatrix.New(8, 5))
	if !errors.Is(err, ErrUnexpectedShape) {
		t.Fatalf("expected ErrUnexpectedShape, got %v", err)
	}
}

func TestClientNotBound(t *testing.T) {
	c := newTestClient(t, 0, 0)
	ctx := context.Background()
	if err := c.Send(ctx, bitmatrix.New(8, 1), bitmatrix.New(8, 1)); !errors.Is(err, ErrNotBound) {
		t.Fatalf("expected ErrNotBound, got %v", err)
	}
	if _, err := c.Receive(ctx, bitmatrix.NewVector(1)); !errors.Is(err, ErrNotBound) {
		t.Fatalf("expected ErrNotBound, got %v", err)
	}
	expectPanic(t, bitmatrix.ErrDimensionMismatch, func() {
		c.Send(ctx, bitmatrix.New(8, 1), bitmatrix.New(8, 2))
	})
}
