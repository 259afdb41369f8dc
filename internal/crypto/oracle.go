package crypto

import (
	"fmt"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

const (
	OracleBlake3 = iota
	OracleBlake2
	OracleShake
)

// oracleTag separates the random oracle from every other use of the
// same hash functions.
var oracleTag = []byte("otext random oracle v1")

var ErrUnknownOracle = fmt.Errorf("unknown random oracle")

// RandomOracle is a hash function with arbitrary output length. Digest
// does not change the absorbed state, so it can be called repeatedly
// and a shorter digest is a prefix of a longer one.
type RandomOracle interface {
	Reset()
	Write(p []byte) (int, error)
	Digest(dst []byte) error
}

// NewRandomOracle returns a RandomOracle of type t
func NewRandomOracle(t int) (RandomOracle, error) {
	var o RandomOracle
	switch t {
	case OracleBlake3:
		o = &blake3Oracle{h: blake3.New()}
	case OracleBlake2:
		x, err := blake2b.NewXOF(blake2b.OutputLengthUnknown, nil)
		if err != nil {
			return nil, err
		}
		o = &blake2Oracle{x: x}
	case OracleShake:
		o = &shakeOracle{h: sha3.NewShake256()}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownOracle, t)
	}

	o.Reset()
	return o, nil
}

type blake3Oracle struct {
	h *blake3.Hasher
}

func (o *blake3Oracle) Reset() {
	o.h.Reset()
	o.h.Write(oracleTag)
}

func (o *blake3Oracle) Write(p []byte) (int, error) {
	return o.h.Write(p)
}

func (o *blake3Oracle) Digest(dst []byte) error {
	_, err := o.h.Digest().Read(dst)
	return err
}

type blake2Oracle struct {
	x blake2b.XOF
}

func (o *blake2Oracle) Reset() {
	o.x.Reset()
	o.x.Write(oracleTag)
}

func (o *blake2Oracle) Write(p []byte) (int, error) {
	return o.x.Write(p)
}

func (o *blake2Oracle) Digest(dst []byte) error {
	_, err := o.x.Clone().Read(dst)
	return err
}

type shakeOracle struct {
	h sha3.ShakeHash
}

func (o *shakeOracle) Reset() {
	o.h.Reset()
	o.h.Write(oracleTag)
}

func (o *shakeOracle) Write(p []byte) (int, error) {
	return o.h.Write(p)
}

func (o *shakeOracle) Digest(dst []byte) error {
	_, err := o.h.Clone().Read(dst)
	return err
}
