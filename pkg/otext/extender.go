package otext

import (
	"context"
	"crypto/rand"
	"io"

	"github.com/optable/otext/internal/crypto"
	"github.com/optable/otext/internal/ot"
	"github.com/optable/otext/pkg/bitmatrix"
	"github.com/optable/otext/pkg/channel"
	"golang.org/x/sync/errgroup"
)

// Extender bundles the consumer Client and the Server of one party.
type Extender struct {
	partyID int
	client  *Client
	server  *Server
	group   *errgroup.Group
}

var _ OTExtender = (*Extender)(nil)
var _ OTExtender = (*DummyExtender)(nil)

// NewExtender returns the extender of party partyID. Both parties must
// use the same configuration apart from Rand.
func NewExtender(partyID int, cfg Config) (*Extender, error) {
	if partyID != 0 && partyID != 1 {
		return nil, ErrInvalidPartyID
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.Reader
	}

	client, err := newClient(partyID, cfg.LowWaterMark, cfg)
	if err != nil {
		return nil, err
	}

	msgLen := make([]int, cfg.K)
	for i := range msgLen {
		msgLen[i] = (cfg.K + 7) / 8
	}
	seeds, err := ot.NewBaseOT(cfg.BaseOT, cfg.K, msgLen, cfg.CipherMode)
	if err != nil {
		return nil, err
	}
	prg, err := crypto.NewPRG(cfg.PRG)
	if err != nil {
		return nil, err
	}
	oracle, err := crypto.NewRandomOracle(cfg.Oracle)
	if err != nil {
		return nil, err
	}

	server := NewServer(cfg.K, cfg.M, partyID, cfg.HighWaterMark, seeds, prg, oracle, cfg.Rand)
	server.SetConsumer(client)
	return &Extender{partyID: partyID, client: client, server: server}, nil
}

func newClient(partyID, lowWaterMark int, cfg Config) (*Client, error) {
	prg, err := crypto.NewPRG(cfg.PRG)
	if err != nil {
		return nil, err
	}
	oracle, err := crypto.NewRandomOracle(cfg.Oracle)
	if err != nil {
		return nil, err
	}
	return NewClient(partyID, lowWaterMark, prg, oracle), nil
}

// Start binds the client to clientRW and the server to serverRW, then
// runs the seed OTs and the extension server in the background. The
// peer must connect its client and server to the other ends of the same
// connections. If ctx is done, party 0 stops its server and party 1
// closes serverRW when it is an io.Closer.
func (e *Extender) Start(ctx context.Context, clientRW, serverRW io.ReadWriter) {
	e.client.Bind(channel.New(clientRW))
	e.server.Bind(channel.New(serverRW))

	g, ctx := errgroup.WithContext(ctx)
	done := make(chan struct{})
	g.Go(func() error {
		defer close(done)
		if err := e.server.Init(ctx); err != nil {
			return err
		}
		return e.server.Run(ctx)
	})

	// a follower only returns on the master's command or on I/O errors
	if closer, ok := serverRW.(io.Closer); ok && e.partyID == 1 {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				closer.Close()
			case <-done:
			}
			return nil
		})
	}
	e.group = g
}

// Stop asks the server to stop and waits for it. Only party 0 can stop
// the protocol; party 1 stops when party 0 does.
func (e *Extender) Stop() error {
	e.server.Stop()
	return e.Wait()
}

// Wait blocks until the server has stopped and returns its error.
func (e *Extender) Wait() error {
	if e.group == nil {
		return nil
	}
	return e.group.Wait()
}

// Client returns the consumer client.
func (e *Extender) Client() *Client {
	return e.client
}

func (e *Extender) Send(ctx context.Context, x0, x1 *bitmatrix.BitMatrix) error {
	return e.client.Send(ctx, x0, x1)
}

func (e *Extender) Receive(ctx context.Context, choices *bitmatrix.BitMatrix) (*bitmatrix.BitMatrix, error) {
	return e.client.Receive(ctx, choices)
}

func (e *Extender) ReceiveWritingPhase(ctx context.Context, choices *bitmatrix.BitMatrix) (*ReceiveState, error) {
	return e.client.ReceiveWritingPhase(ctx, choices)
}

func (e *Extender) ReceiveReadingPhase(ctx context.Context, state *ReceiveState) (*bitmatrix.BitMatrix, error) {
	return e.client.ReceiveReadingPhase(ctx, state)
}

func (e *Extender) SendBytes(ctx context.Context, x0, x1 []byte) error {
	return e.client.SendBytes(ctx, x0, x1)
}

func (e *Extender) ReceiveBit(ctx context.Context, choice uint8) ([]byte, error) {
	return e.client.ReceiveBit(ctx, choice)
}
