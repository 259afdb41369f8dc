// Package otext implements IKNP oblivious transfer extension.
//
// A small number of public key base OTs seed an asynchronous extension
// server that keeps two queues of precomputed OTs filled: choice OTs,
// where this party knows a random choice bit and the matching random
// string, and sending OTs, where this party knows both random strings.
// A Client drains these queues to run actual 1 out of 2 OTs on
// application data with only symmetric operations.
//
// Both parties run a Client and a Server. The two Servers talk over
// their own connection, the two Clients over another one.
package otext

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/optable/otext/internal/crypto"
	"github.com/optable/otext/internal/ot"
	"github.com/optable/otext/pkg/bitmatrix"
)

var (
	ErrInvalidConfig   = errors.New("otext: invalid configuration")
	ErrInvalidPartyID  = errors.New("otext: party id must be 0 or 1")
	ErrUnknownCommand  = errors.New("otext: unknown extension command")
	ErrUnexpectedShape = errors.New("otext: peer sent a matrix of unexpected dimensions")
	ErrNotBound        = errors.New("otext: no channel bound")
)

// OTExtender runs 1 out of 2 oblivious transfers of bit strings. For
// every Send on one party the other party runs a matching Receive with
// the same number of OTs.
type OTExtender interface {
	// Send transfers row i of x0 or of x1 to the peer, depending on the
	// peer's choice bit i. x0 and x1 must have the same dimensions.
	Send(ctx context.Context, x0, x1 *bitmatrix.BitMatrix) error
	// Receive returns, for every column i of the choices vector, row i
	// of the peer's x0 when the bit is 0 or of x1 when it is 1.
	Receive(ctx context.Context, choices *bitmatrix.BitMatrix) (*bitmatrix.BitMatrix, error)
	// ReceiveWritingPhase and ReceiveReadingPhase split Receive in the
	// part that only writes and the part that only reads, so that
	// several OT batches can share a network round trip.
	ReceiveWritingPhase(ctx context.Context, choices *bitmatrix.BitMatrix) (*ReceiveState, error)
	ReceiveReadingPhase(ctx context.Context, state *ReceiveState) (*bitmatrix.BitMatrix, error)
	// SendBytes runs a single OT of len(x0)*8 bit strings.
	SendBytes(ctx context.Context, x0, x1 []byte) error
	// ReceiveBit runs a single OT and returns the chosen string.
	ReceiveBit(ctx context.Context, choice uint8) ([]byte, error)
}

// Config holds the parameters of an Extender. Both parties must use
// the same K, M, BaseOT and CipherMode.
type Config struct {
	// K is the security parameter: the number of base OTs and the
	// length in bits of precomputed OT strings.
	K int
	// M is the number of OTs produced by a single extension round.
	M int
	// LowWaterMark is the number of available OTs under which the
	// consumer queues ask the server for more.
	LowWaterMark int
	// HighWaterMark is the number of available OTs the server tries to
	// keep in the consumer queues.
	HighWaterMark int

	BaseOT     int
	CipherMode int
	PRG        int
	Oracle     int

	// Rand is the source of the random matrices drawn by the server.
	Rand io.Reader
}

// DefaultConfig returns the parameters used by the example programs.
func DefaultConfig() Config {
	return Config{
		K:             128,
		M:             1024,
		LowWaterMark:  128,
		HighWaterMark: 3 * 128,
		BaseOT:        ot.Simplest,
		CipherMode:    crypto.XORBlake3,
		PRG:           crypto.PRGBlake3,
		Oracle:        crypto.OracleBlake3,
	}
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	switch {
	case c.K <= 0:
		return fmt.Errorf("%w: K must be positive, got %d", ErrInvalidConfig, c.K)
	case c.M <= c.K:
		return fmt.Errorf("%w: M must be larger than K, got %d <= %d", ErrInvalidConfig, c.M, c.K)
	case c.LowWaterMark < 0 || c.HighWaterMark < 0:
		return fmt.Errorf("%w: negative water mark", ErrInvalidConfig)
	case c.BaseOT != ot.Simplest && c.BaseOT != ot.NaorPinkas:
		return fmt.Errorf("%w: unknown base OT %d", ErrInvalidConfig, c.BaseOT)
	case c.CipherMode < crypto.GCM || c.CipherMode > crypto.XORShake:
		return fmt.Errorf("%w: unknown cipher mode %d", ErrInvalidConfig, c.CipherMode)
	case c.PRG < crypto.PRGBlake3 || c.PRG > crypto.PRGSalsa20:
		return fmt.Errorf("%w: unknown PRG %d", ErrInvalidConfig, c.PRG)
	case c.Oracle < crypto.OracleBlake3 || c.Oracle > crypto.OracleShake:
		return fmt.Errorf("%w: unknown random oracle %d", ErrInvalidConfig, c.Oracle)
	}
	return nil
}

func checkPartyID(partyID int) {
	if partyID != 0 && partyID != 1 {
		panic(fmt.Errorf("%w: %d", ErrInvalidPartyID, partyID))
	}
}

func checkShape(what string, m *bitmatrix.BitMatrix, cols, rows int) error {
	if m.NumCols() != cols || m.NumRows() != rows {
		return fmt.Errorf("%w: %s is %dx%d, expected %dx%d", ErrUnexpectedShape, what, m.NumCols(), m.NumRows(), cols, rows)
	}
	return nil
}

// elapsed formats the time since start for log messages.
func elapsed(start time.Time) string {
	return time.Since(start).Round(time.Microsecond).String()
}
