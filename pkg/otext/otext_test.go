package otext

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"net"
	"testing"

	"github.com/optable/otext/internal/crypto"
	"github.com/optable/otext/pkg/bitmatrix"
	"golang.org/x/sync/errgroup"
)

var prng = rand.New(rand.NewSource(7))

func randomMatrix(t *testing.T, cols, rows int) *bitmatrix.BitMatrix {
	t.Helper()
	m := bitmatrix.New(cols, rows)
	if err := m.FillRandom(prng); err != nil {
		t.Fatalf("error filling random matrix: %s", err)
	}
	return m
}

func expectPanic(t *testing.T, target error, f func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		if r == nil {
			t.Fatalf("expected a panic")
		}
		err, ok := r.(error)
		if !ok || !errors.Is(err, target) {
			t.Fatalf("expected a panic wrapping %v, got %v", target, r)
		}
	}()
	f()
}

// connPair returns both ends of a TCP loopback connection.
func connPair(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net listen encountered error: %s", err)
	}
	defer l.Close()

	accepted := make(chan net.Conn, 1)
	errs := make(chan error, 1)
	go func() {
		conn, err := l.Accept()
		if err != nil {
			errs <- err
			return
		}
		accepted <- conn
	}()

	c0, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("could not dial: %s", err)
	}

	var c1 net.Conn
	select {
	case c1 = <-accepted:
	case err := <-errs:
		t.Fatalf("could not accept: %s", err)
	}
	t.Cleanup(func() {
		c0.Close()
		c1.Close()
	})
	return c0, c1
}

func newTestClient(t *testing.T, partyID, lowWaterMark int) *Client {
	t.Helper()
	prg, err := crypto.NewPRG(crypto.PRGBlake3)
	if err != nil {
		t.Fatal(err)
	}
	oracle, err := crypto.NewRandomOracle(crypto.OracleBlake3)
	if err != nil {
		t.Fatal(err)
	}
	return NewClient(partyID, lowWaterMark, prg, oracle)
}

// both runs f0 and f1 concurrently and fails on the first error.
func both(t *testing.T, f0, f1 func() error) {
	t.Helper()
	var g errgroup.Group
	g.Go(f0)
	g.Go(f1)
	if err := g.Wait(); err != nil {
		t.Fatalf("protocol failed: %s", err)
	}
}

// transfer runs n OTs from sender to receiver.
func transfer(t *testing.T, sender, receiver OTExtender, x0, x1, choices *bitmatrix.BitMatrix) *bitmatrix.BitMatrix {
	t.Helper()
	ctx := context.Background()
	var got *bitmatrix.BitMatrix
	both(t,
		func() error { return sender.Send(ctx, x0, x1) },
		func() (err error) {
			got, err = receiver.Receive(ctx, choices)
			return err
		})
	return got
}

// checkTransfer verifies that row i of got is row i of x0 or x1
// according to choice bit i.
func checkTransfer(t *testing.T, got, x0, x1, choices *bitmatrix.BitMatrix) {
	t.Helper()
	if got.NumCols() != x0.NumCols() || got.NumRows() != x0.NumRows() {
		t.Fatalf("received a %dx%d matrix, expected %dx%d", got.NumCols(), got.NumRows(), x0.NumCols(), x0.NumRows())
	}
	for i := 0; i < got.NumRows(); i++ {
		want := x0
		if choices.Bit(i, 0) == 1 {
			want = x1
		}
		if !bytes.Equal(got.Row(i), want.Row(i)) {
			t.Fatalf("OT %d with choice %d: got %x, expected %x", i, choices.Bit(i, 0), got.Row(i), want.Row(i))
		}
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config is invalid: %s", err)
	}

	for _, mutate := range []func(*Config){
		func(c *Config) { c.K = 0 },
		func(c *Config) { c.M = c.K },
		func(c *Config) { c.LowWaterMark = -1 },
		func(c *Config) { c.BaseOT = 9 },
		func(c *Config) { c.CipherMode = 9 },
		func(c *Config) { c.PRG = 9 },
		func(c *Config) { c.Oracle = -1 },
	} {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("expected ErrInvalidConfig for %+v, got %v", cfg, err)
		}
	}
}

func TestInvalidPartyID(t *testing.T) {
	if _, err := NewExtender(2, DefaultConfig()); !errors.Is(err, ErrInvalidPartyID) {
		t.Fatalf("expected ErrInvalidPartyID, got %v", err)
	}
	expectPanic(t, ErrInvalidPartyID, func() { newTestClient(t, -1, 0) })
}
