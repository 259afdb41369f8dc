package otext

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/optable/otext/internal/crypto"
	"github.com/optable/otext/internal/ot"
	"github.com/optable/otext/pkg/bitmatrix"
	"github.com/optable/otext/pkg/channel"
	"github.com/optable/otext/pkg/log"
)

// Server produces precomputed OTs for a consumer Client. It talks to the
// peer's Server over a channel of its own, so extension rounds run
// concurrently with the consumers' OTs.
//
// Party 0 is the master: it decides when to run an extension round and
// tells the peer which half to run. Party 1 executes the commands it
// receives.
type Server struct {
	k, m          int
	partyID       int
	highWaterMark int
	seeds         ot.OT
	rand          io.Reader
	ch            *channel.Channel

	// ext runs the OTs of the extension protocol itself, on the
	// server's channel. Its queues hold the reserved OTs.
	ext      *Client
	consumer *Client

	choiceReserve  reserve
	sendingReserve reserve

	state   atomic.Int32
	stopped atomic.Bool
	wake    chan struct{}
	rounds  int
}

// NewServer returns a server extending k seed OTs into rounds of m OTs.
// The master runs rounds until both consumer queues hold highWaterMark
// OTs beyond the k needed for the next round. seeds runs the k base OTs
// of ceil(k/8) byte strings in both directions, rand provides the
// random matrices.
func NewServer(k, m, partyID, highWaterMark int, seeds ot.OT, prg crypto.PRG, oracle crypto.RandomOracle, rand io.Reader) *Server {
	checkPartyID(partyID)
	return &Server{
		k:              k,
		m:              m,
		partyID:        partyID,
		highWaterMark:  highWaterMark,
		seeds:          seeds,
		rand:           rand,
		ext:            NewClient(partyID, 0, prg, oracle),
		choiceReserve:  reserve{target: k},
		sendingReserve: reserve{target: k},
		wake:           make(chan struct{}, 1),
	}
}

// SetConsumer sets the client receiving the OTs that are not kept in
// reserve. The consumer wakes the server whenever it runs low.
func (s *Server) SetConsumer(c *Client) {
	s.consumer = c
	c.SetNeedOTCallback(s.signal)
}

// Bind sets the channel to the peer's Server.
func (s *Server) Bind(ch *channel.Channel) {
	s.ch = ch
	s.ext.Bind(ch)
}

// Stop asks the server to stop after the current extension round.
func (s *Server) Stop() {
	s.stopped.Store(true)
	s.signal()
}

// signal wakes a parked master without blocking.
func (s *Server) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Server) getState() state {
	return state(s.state.Load())
}

func (s *Server) setState(st state) {
	s.state.Store(int32(st))
}

func (s *Server) logger(ctx context.Context) logr.Logger {
	return log.GetLoggerFromContextWithName(ctx, "server").WithValues("party", s.partyID)
}

// Init runs the k seed OTs in both directions and fills the reserve
// queues with their results.
func (s *Server) Init(ctx context.Context) error {
	if s.ch == nil {
		return ErrNotBound
	}
	if st := s.getState(); st != stateUninitialized {
		return fmt.Errorf("otext: init in state %v", st)
	}

	logger := s.logger(ctx)
	logger.V(1).Info("Starting seed OTs", "k", s.k)
	start := time.Now()

	halves := []func() error{s.initSending, s.initChoice}
	if s.partyID == 1 {
		halves[0], halves[1] = halves[1], halves[0]
	}
	for _, half := range halves {
		if err := half(); err != nil {
			return fmt.Errorf("seed OTs: %w", err)
		}
	}
	if err := s.ch.Flush(); err != nil {
		return fmt.Errorf("seed OTs: %w", err)
	}

	s.setState(stateAwaitCommand)
	logger.V(1).Info("Finished seed OTs", "time", elapsed(start), "sent", s.ch.Stats.Sent.Load(), "received", s.ch.Stats.Recvd.Load())
	return nil
}

// initChoice runs the seed OTs as the receiver with random choices.
func (s *Server) initChoice() error {
	choices := bitmatrix.NewVector(s.k)
	if err := choices.FillRandom(s.rand); err != nil {
		return err
	}

	bits := make([]uint8, s.k)
	for i := range bits {
		bits[i] = choices.Bit(i, 0)
	}
	msgs := make([][]byte, s.k)
	if err := s.seeds.Receive(bits, msgs, s.ch); err != nil {
		return err
	}

	results := bitmatrix.New(s.k, s.k)
	for i, msg := range msgs {
		results.SetRowBytes(i, msg)
	}
	s.ext.choiceOTs.Add(NewChoiceBlock(choices, results))
	return nil
}

// initSending runs the seed OTs as the sender of random strings.
func (s *Server) initSending() error {
	x0 := bitmatrix.New(s.k, s.k)
	x1 := bitmatrix.New(s.k, s.k)
	if err := x0.FillRandom(s.rand); err != nil {
		return err
	}
	if err := x1.FillRandom(s.rand); err != nil {
		return err
	}

	msgs := make([]ot.OTMessage, s.k)
	for i := range msgs {
		msgs[i] = ot.OTMessage{x0.Row(i), x1.Row(i)}
	}
	if err := s.seeds.Send(msgs, s.ch); err != nil {
		return err
	}

	s.ext.sendingOTs.Add(NewSendingBlock(x0, x1))
	return nil
}

// hashRow sets dst to the first k bits of H(int32(i) || row).
func (s *Server) hashRow(dst []byte, i int, row []byte) error {
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], uint32(i))

	h := s.ext.oracle
	h.Reset()
	if _, err := h.Write(idx[:]); err != nil {
		return err
	}
	if _, err := h.Write(row); err != nil {
		return err
	}
	return h.Digest(dst)
}

// extendChoice runs the chooser side of an IKNP round, producing m
// choice OTs from k internal sending OTs.
func (s *Server) extendChoice(ctx context.Context) error {
	logger := s.logger(ctx)
	if s.ext.sendingOTs.Available() < s.k {
		logger.V(1).Info("Out of sending OTs, extending them first", "reserve", s.sendingReserve.target)
		s.sendingReserve.grow(s.m)
		if err := s.extendSending(ctx); err != nil {
			return err
		}
	}

	s.setState(stateExtendChoice)
	start := time.Now()

	r := bitmatrix.NewVector(s.m)
	if err := r.FillRandom(s.rand); err != nil {
		return err
	}
	t := bitmatrix.New(s.m, s.k)
	if err := t.FillRandom(s.rand); err != nil {
		return err
	}
	tr := t.Clone()
	for i := 0; i < s.k; i++ {
		tr.XorRow(i, r, 0)
	}

	if err := s.ext.Send(ctx, t, tr); err != nil {
		return err
	}

	y0, err := s.ch.ReadMatrix()
	if err != nil {
		return err
	}
	y1, err := s.ch.ReadMatrix()
	if err != nil {
		return err
	}
	if err := checkShape("y0", y0, s.k, s.m); err != nil {
		return err
	}
	if err := checkShape("y1", y1, s.k, s.m); err != nil {
		return err
	}

	tt := t.Transpose()
	results := bitmatrix.New(s.k, s.m)
	h := bitmatrix.NewVector(s.k)
	buf := make([]byte, h.UsedBytesPerRow())
	for i := 0; i < s.m; i++ {
		if err := s.hashRow(buf, i, tt.Row(i)); err != nil {
			return err
		}
		h.SetRowBytes(0, buf)

		if r.Bit(i, 0) == 0 {
			results.CopyRow(i, y0, i)
		} else {
			results.CopyRow(i, y1, i)
		}
		results.XorRow(i, h, 0)
	}

	if l := logger.V(2); l.Enabled() {
		l.Info("Choice round matrices", "r", r.Fingerprint(), "T", t.Fingerprint(), "results", results.Fingerprint())
	}

	block := NewChoiceBlock(r, results)
	if s.ext.choiceOTs.Available() < s.choiceReserve.target {
		s.ext.choiceOTs.Add(block.Remove(s.choiceReserve.target))
	}
	// the consumer owns the block once it is queued
	delivered := block.Len()
	s.consumer.choiceOTs.Add(block)

	s.rounds++
	logger.V(1).Info("Extended choice OTs", "round", s.rounds, "delivered", delivered, "time", elapsed(start))
	return nil
}

// extendSending runs the sender side of an IKNP round, producing m
// sending OTs from k internal choice OTs.
func (s *Server) extendSending(ctx context.Context) error {
	logger := s.logger(ctx)
	if s.ext.choiceOTs.Available() < s.k {
		logger.V(1).Info("Out of choice OTs, extending them first", "reserve", s.choiceReserve.target)
		s.choiceReserve.grow(s.m)
		if err := s.extendChoice(ctx); err != nil {
			return err
		}
	}

	s.setState(stateExtendSending)
	start := time.Now()

	x0 := bitmatrix.New(s.k, s.m)
	x1 := bitmatrix.New(s.k, s.m)
	if err := x0.FillRandom(s.rand); err != nil {
		return err
	}
	if err := x1.FillRandom(s.rand); err != nil {
		return err
	}
	sv := bitmatrix.NewVector(s.k)
	if err := sv.FillRandom(s.rand); err != nil {
		return err
	}

	q, err := s.ext.Receive(ctx, sv)
	if err != nil {
		return err
	}
	if err := checkShape("Q", q, s.m, s.k); err != nil {
		return err
	}
	qt := q.Transpose()

	y0 := x0.Clone()
	y1 := x1.Clone()
	h := bitmatrix.NewVector(s.k)
	buf := make([]byte, h.UsedBytesPerRow())
	for i := 0; i < s.m; i++ {
		if err := s.hashRow(buf, i, qt.Row(i)); err != nil {
			return err
		}
		h.SetRowBytes(0, buf)
		y0.XorRow(i, h, 0)

		qs := sv.Clone()
		qs.XorRow(0, qt, i)
		if err := s.hashRow(buf, i, qs.Row(0)); err != nil {
			return err
		}
		h.SetRowBytes(0, buf)
		y1.XorRow(i, h, 0)
	}

	if err := s.ch.WriteMatrix(y0); err != nil {
		return err
	}
	if err := s.ch.WriteMatrix(y1); err != nil {
		return err
	}
	if err := s.ch.Flush(); err != nil {
		return err
	}

	if l := logger.V(2); l.Enabled() {
		l.Info("Sending round matrices", "s", sv.Fingerprint(), "Q", q.Fingerprint(), "x0", x0.Fingerprint())
	}

	block := NewSendingBlock(x0, x1)
	if s.ext.sendingOTs.Available() < s.sendingReserve.target {
		s.ext.sendingOTs.Add(block.Remove(s.sendingReserve.target))
	}
	// the consumer owns the block once it is queued
	delivered := block.Len()
	s.consumer.sendingOTs.Add(block)

	s.rounds++
	logger.V(1).Info("Extended sending OTs", "round", s.rounds, "delivered", delivered, "time", elapsed(start))
	return nil
}

func (s *Server) needChoice() bool {
	return s.consumer.AvailableChoiceOTs()-s.k < s.highWaterMark
}

func (s *Server) needSending() bool {
	return s.consumer.AvailableSendingOTs()-s.k < s.highWaterMark
}

// Run executes extension rounds until the server is stopped, the peer
// sends a stop command or the channel fails. Init must have been run.
func (s *Server) Run(ctx context.Context) error {
	if s.consumer == nil {
		return fmt.Errorf("otext: server has no consumer")
	}
	if st := s.getState(); st != stateAwaitCommand {
		return fmt.Errorf("otext: run in state %v", st)
	}

	logger := s.logger(ctx)
	var err error
	if s.partyID == 0 {
		err = s.runMaster(ctx)
	} else {
		err = s.runFollower(ctx)
	}
	s.setState(stateStopped)

	switch {
	case err == nil:
		logger.V(1).Info("Stopped OT extension server", "rounds", s.rounds)
	case s.stopped.Load():
		logger.Info("Stopped OT extension server", "err", err.Error())
	default:
		logger.Error(err, "OT extension server failed", "rounds", s.rounds)
	}
	return err
}

func (s *Server) runMaster(ctx context.Context) error {
	var cause error
	for !s.stopped.Load() {
		for !s.stopped.Load() && (s.needChoice() || s.needSending()) {
			if s.needChoice() {
				if err := s.round(ctx, CommandExtendChoice, s.extendChoice); err != nil {
					return err
				}
			}
			if s.needSending() {
				if err := s.round(ctx, CommandExtendSending, s.extendSending); err != nil {
					return err
				}
			}
		}
		if s.stopped.Load() {
			break
		}

		s.setState(stateAwaitCommand)
		select {
		case <-s.wake:
		case <-ctx.Done():
			cause = ctx.Err()
			s.stopped.Store(true)
		}
	}

	if err := writeCommand(s.ch, CommandStop); err != nil {
		return err
	}
	return cause
}

// round tells the peer to run the complementary half of cmd and runs
// extend.
func (s *Server) round(ctx context.Context, cmd Command, extend func(context.Context) error) error {
	if err := writeCommand(s.ch, cmd); err != nil {
		return err
	}
	if err := extend(ctx); err != nil {
		return fmt.Errorf("%v round: %w", cmd, err)
	}
	s.setState(stateAwaitCommand)
	return nil
}

func (s *Server) runFollower(ctx context.Context) error {
	logger := s.logger(ctx)
	for {
		s.setState(stateAwaitCommand)
		cmd, err := readCommand(s.ch)
		if err != nil {
			return err
		}
		logger.V(2).Info("Received command", "command", cmd)

		switch cmd {
		case CommandExtendChoice:
			err = s.extendSending(ctx)
		case CommandExtendSending:
			err = s.extendChoice(ctx)
		case CommandStop:
			return nil
		}
		if err != nil {
			return fmt.Errorf("%v round: %w", cmd, err)
		}
	}
}
