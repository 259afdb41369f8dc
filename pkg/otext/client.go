package otext

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/optable/otext/internal/crypto"
	"github.com/optable/otext/pkg/bitmatrix"
	"github.com/optable/otext/pkg/channel"
	"github.com/optable/otext/pkg/log"
)

// Client turns precomputed OTs into OTs on application data. The
// precomputed OTs come from a choice queue and a sending queue that are
// filled by a Server. A Client is used from one goroutine at a time:
// its operations exchange messages in lock step with the peer's Client.
type Client struct {
	partyID int
	prg     crypto.PRG
	oracle  crypto.RandomOracle
	ch      *channel.Channel

	choiceOTs       *Queue[*ChoiceBlock]
	sendingOTs      *Queue[*SendingBlock]
	reservedChoice  int
	reservedSending int
}

// ReceiveState carries a receive operation from its writing phase to
// its reading phase.
type ReceiveState struct {
	choices       *bitmatrix.BitMatrix
	maskedChoices *bitmatrix.BitMatrix
	maskKeys      *bitmatrix.BitMatrix
}

// NewClient returns a client with empty queues. The queues ask for more
// OTs once fewer than lowWaterMark unreserved OTs are left.
func NewClient(partyID, lowWaterMark int, prg crypto.PRG, oracle crypto.RandomOracle) *Client {
	checkPartyID(partyID)
	return &Client{
		partyID:    partyID,
		prg:        prg,
		oracle:     oracle,
		choiceOTs:  NewQueue[*ChoiceBlock](lowWaterMark),
		sendingOTs: NewQueue[*SendingBlock](lowWaterMark),
	}
}

// Bind sets the channel to the peer's Client.
func (c *Client) Bind(ch *channel.Channel) {
	c.ch = ch
}

// SetReserved sets the number of choice and sending OTs that Send and
// Receive leave in the queues.
func (c *Client) SetReserved(choice, sending int) {
	c.reservedChoice = choice
	c.reservedSending = sending
}

// SetNeedOTCallback installs f on both queues.
func (c *Client) SetNeedOTCallback(f func()) {
	c.choiceOTs.SetNeedOTCallback(f)
	c.sendingOTs.SetNeedOTCallback(f)
}

// AvailableChoiceOTs returns the number of unreserved choice OTs.
func (c *Client) AvailableChoiceOTs() int {
	if n := c.choiceOTs.Available() - c.reservedChoice; n > 0 {
		return n
	}
	return 0
}

// AvailableSendingOTs returns the number of unreserved sending OTs.
func (c *Client) AvailableSendingOTs() int {
	if n := c.sendingOTs.Available() - c.reservedSending; n > 0 {
		return n
	}
	return 0
}

func (c *Client) logger(ctx context.Context) logr.Logger {
	return log.GetLoggerFromContextWithName(ctx, "client").WithValues("party", c.partyID)
}

// Send runs numOTs = x0.NumRows() OTs of x0.NumCols() bit strings as the
// sender. It panics if x0 and x1 do not have the same dimensions.
func (c *Client) Send(ctx context.Context, x0, x1 *bitmatrix.BitMatrix) error {
	if x0.NumRows() != x1.NumRows() || x0.NumCols() != x1.NumCols() {
		panic(fmt.Errorf("%w: x0 is %dx%d, x1 is %dx%d", bitmatrix.ErrDimensionMismatch, x0.NumCols(), x0.NumRows(), x1.NumCols(), x1.NumRows()))
	}
	if c.ch == nil {
		return ErrNotBound
	}

	numOTs, otLen := x0.NumRows(), x0.NumCols()
	mask0 := bitmatrix.New(otLen, numOTs)
	mask1 := bitmatrix.New(otLen, numOTs)
	buf := make([]byte, mask0.UsedBytesPerRow())

	for i := 0; i < numOTs; {
		block, err := c.sendingOTs.Get(ctx, numOTs-i, c.reservedSending)
		if err != nil {
			return err
		}

		pre0, pre1 := block.X(0), block.X(1)
		for j := 0; j < block.Len(); j++ {
			if otLen > pre0.NumCols() {
				// expand the precomputed keys to otLen bits
				if err := c.expand(mask0, i, pre0.Row(j), buf); err != nil {
					return err
				}
				if err := c.expand(mask1, i, pre1.Row(j), buf); err != nil {
					return err
				}
			} else {
				mask0.CopyRow(i, pre0, j)
				mask1.CopyRow(i, pre1, j)
			}
			i++
		}
	}

	maskedChoices, err := c.ch.ReadMatrix()
	if err != nil {
		return fmt.Errorf("send: reading masked choices: %w", err)
	}
	if err := checkShape("masked choices", maskedChoices, numOTs, 1); err != nil {
		return err
	}

	for i := 0; i < numOTs; i++ {
		if maskedChoices.Bit(i, 0) == 0 {
			mask0.XorRow(i, x0, i)
			mask1.XorRow(i, x1, i)
		} else {
			mask0.XorRow(i, x1, i)
			mask1.XorRow(i, x0, i)
		}
	}

	if err := c.ch.WriteMatrix(mask0); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	if err := c.ch.WriteMatrix(mask1); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	if err := c.ch.Flush(); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	c.logger(ctx).V(2).Info("sent OTs", "n", numOTs, "len", otLen)
	return nil
}

// expand writes the PRG expansion of key into row of dst.
func (c *Client) expand(dst *bitmatrix.BitMatrix, row int, key, buf []byte) error {
	if err := c.prg.SetKey(key); err != nil {
		return err
	}
	if _, err := c.prg.Read(buf); err != nil {
		return err
	}
	dst.SetRowBytes(row, buf)
	return nil
}

// Receive runs choices.NumCols() OTs as the receiver.
func (c *Client) Receive(ctx context.Context, choices *bitmatrix.BitMatrix) (*bitmatrix.BitMatrix, error) {
	state, err := c.ReceiveWritingPhase(ctx, choices)
	if err != nil {
		return nil, err
	}
	return c.ReceiveReadingPhase(ctx, state)
}

// ReceiveWritingPhase masks the choice bits with precomputed choice OTs
// and sends them to the peer.
func (c *Client) ReceiveWritingPhase(ctx context.Context, choices *bitmatrix.BitMatrix) (*ReceiveState, error) {
	if choices.NumRows() != 1 {
		panic(fmt.Errorf("%w: choices must be a vector, got %d rows", bitmatrix.ErrDimensionMismatch, choices.NumRows()))
	}
	if c.ch == nil {
		return nil, ErrNotBound
	}

	numOTs := choices.NumCols()
	state := &ReceiveState{
		choices:       choices,
		maskedChoices: choices.Clone(),
	}

	for i := 0; i < numOTs; {
		block, err := c.choiceOTs.Get(ctx, numOTs-i, c.reservedChoice)
		if err != nil {
			return nil, err
		}

		results := block.Results()
		if state.maskKeys == nil {
			state.maskKeys = bitmatrix.New(results.NumCols(), numOTs)
		}
		for j := 0; j < block.Len(); j++ {
			state.maskedChoices.XorBit(i+j, 0, block.ChoiceBit(j))
			state.maskKeys.CopyRow(i+j, results, j)
		}
		i += block.Len()
	}
	if state.maskKeys == nil {
		state.maskKeys = bitmatrix.New(0, 0)
	}

	if err := c.ch.WriteMatrix(state.maskedChoices); err != nil {
		return nil, fmt.Errorf("receive: %w", err)
	}
	if err := c.ch.Flush(); err != nil {
		return nil, fmt.Errorf("receive: %w", err)
	}
	return state, nil
}

// ReceiveReadingPhase reads the peer's masked strings and unmasks the
// chosen ones.
func (c *Client) ReceiveReadingPhase(ctx context.Context, state *ReceiveState) (*bitmatrix.BitMatrix, error) {
	numOTs := state.choices.NumCols()

	masked0, err := c.ch.ReadMatrix()
	if err != nil {
		return nil, fmt.Errorf("receive: %w", err)
	}
	masked1, err := c.ch.ReadMatrix()
	if err != nil {
		return nil, fmt.Errorf("receive: %w", err)
	}

	otLen := masked0.NumCols()
	if err := checkShape("masked x0", masked0, otLen, numOTs); err != nil {
		return nil, err
	}
	if err := checkShape("masked x1", masked1, otLen, numOTs); err != nil {
		return nil, err
	}

	var results *bitmatrix.BitMatrix
	if keyLen := state.maskKeys.NumCols(); otLen > keyLen {
		results = bitmatrix.New(otLen, numOTs)
		buf := make([]byte, results.UsedBytesPerRow())
		for i := 0; i < numOTs; i++ {
			if err := c.expand(results, i, state.maskKeys.Row(i), buf); err != nil {
				return nil, err
			}
		}
	} else {
		results = state.maskKeys
		results.Subcolumns(0, otLen)
	}

	for i := 0; i < numOTs; i++ {
		if state.maskedChoices.Bit(i, 0)^state.choices.Bit(i, 0) == 0 {
			results.XorRow(i, masked0, i)
		} else {
			results.XorRow(i, masked1, i)
		}
	}
	results.ZeroPad()

	c.logger(ctx).V(2).Info("received OTs", "n", numOTs, "len", otLen)
	return results, nil
}

// SendBytes runs a single OT of len(x0)*8 bit strings.
func (c *Client) SendBytes(ctx context.Context, x0, x1 []byte) error {
	return c.Send(ctx, bitmatrix.Wrap(x0), bitmatrix.Wrap(x1))
}

// ReceiveBit runs a single OT and returns the chosen string.
func (c *Client) ReceiveBit(ctx context.Context, choice uint8) ([]byte, error) {
	choices := bitmatrix.NewVector(1)
	choices.SetBit(0, 0, choice)

	results, err := c.Receive(ctx, choices)
	if err != nil {
		return nil, err
	}
	return results.PackedBits(), nil
}
