package otext

import (
	"context"
	"fmt"
	"io"

	"github.com/optable/otext/pkg/bitmatrix"
	"github.com/optable/otext/pkg/channel"
)

// DummyExtender is an insecure OTExtender: the receiver sends its
// choices in the clear and the sender answers with the chosen strings.
// It has the message flow of the real extender and is meant for tests.
type DummyExtender struct {
	ch *channel.Channel
}

// NewDummyExtender returns a DummyExtender talking to its peer over rw.
func NewDummyExtender(rw io.ReadWriter) *DummyExtender {
	return &DummyExtender{ch: channel.New(rw)}
}

func (d *DummyExtender) Send(ctx context.Context, x0, x1 *bitmatrix.BitMatrix) error {
	if x0.NumRows() != x1.NumRows() || x0.NumCols() != x1.NumCols() {
		panic(fmt.Errorf("%w: x0 is %dx%d, x1 is %dx%d", bitmatrix.ErrDimensionMismatch, x0.NumCols(), x0.NumRows(), x1.NumCols(), x1.NumRows()))
	}

	choices, err := d.ch.ReadMatrix()
	if err != nil {
		return fmt.Errorf("send: reading choices: %w", err)
	}
	if err := checkShape("choices", choices, x0.NumRows(), 1); err != nil {
		return err
	}

	results := bitmatrix.New(x0.NumCols(), x0.NumRows())
	for i := 0; i < choices.NumCols(); i++ {
		if choices.Bit(i, 0) == 0 {
			results.CopyRow(i, x0, i)
		} else {
			results.CopyRow(i, x1, i)
		}
	}

	if err := d.ch.WriteMatrix(results); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return d.ch.Flush()
}

func (d *DummyExtender) Receive(ctx context.Context, choices *bitmatrix.BitMatrix) (*bitmatrix.BitMatrix, error) {
	state, err := d.ReceiveWritingPhase(ctx, choices)
	if err != nil {
		return nil, err
	}
	return d.ReceiveReadingPhase(ctx, state)
}

func (d *DummyExtender) ReceiveWritingPhase(ctx context.Context, choices *bitmatrix.BitMatrix) (*ReceiveState, error) {
	if err := d.ch.WriteMatrix(choices); err != nil {
		return nil, fmt.Errorf("receive: %w", err)
	}
	if err := d.ch.Flush(); err != nil {
		return nil, fmt.Errorf("receive: %w", err)
	}
	return &ReceiveState{choices: choices}, nil
}

func (d *DummyExtender) ReceiveReadingPhase(ctx context.Context, state *ReceiveState) (*bitmatrix.BitMatrix, error) {
	results, err := d.ch.ReadMatrix()
	if err != nil {
		return nil, fmt.Errorf("receive: %w", err)
	}
	if err := checkShape("results", results, results.NumCols(), state.choices.NumCols()); err != nil {
		return nil, err
	}
	return results, nil
}

func (d *DummyExtender) SendBytes(ctx context.Context, x0, x1 []byte) error {
	return d.Send(ctx, bitmatrix.Wrap(x0), bitmatrix.Wrap(x1))
}

func (d *DummyExtender) ReceiveBit(ctx context.Context, choice uint8) ([]byte, error) {
	results, err := d.Receive(ctx, bitmatrix.ValueOf(uint64(choice), 1))
	if err != nil {
		return nil, err
	}
	return results.PackedBits(), nil
}
