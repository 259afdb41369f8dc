package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/salsa20/salsa"
)

const (
	PRGBlake3 = iota
	PRGAESCTR
	PRGSalsa20
)

var (
	ErrUnknownPRG = fmt.Errorf("unknown pseudorandom generator")
	ErrNoPRGKey   = fmt.Errorf("pseudorandom generator read before SetKey")
)

// PRG is a keyed pseudorandom generator. The output stream is
// deterministic given the key and the sequence of reads. A PRG is not
// safe for concurrent use.
type PRG interface {
	// SetKey restarts the stream under a new key.
	SetKey(key []byte) error
	// Read fills p with the next bytes of the stream.
	Read(p []byte) (int, error)
	// Reset restarts the stream under the current key.
	Reset()
}

// NewPRG returns a PRG of type t
func NewPRG(t int) (PRG, error) {
	switch t {
	case PRGBlake3:
		return &blake3PRG{h: blake3.New()}, nil
	case PRGAESCTR:
		return &aesCtrPRG{}, nil
	case PRGSalsa20:
		return &salsaPRG{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownPRG, t)
	}
}

// blake3PRG reads the blake3 XOF of the key.
type blake3PRG struct {
	h *blake3.Hasher
	d *blake3.Digest
}

func (p *blake3PRG) SetKey(key []byte) error {
	p.h.Reset()
	if _, err := p.h.Write(key); err != nil {
		return err
	}
	p.d = p.h.Digest()
	return nil
}

func (p *blake3PRG) Reset() {
	if p.d != nil {
		p.d = p.h.Digest()
	}
}

func (p *blake3PRG) Read(dst []byte) (int, error) {
	if p.d == nil {
		return 0, ErrNoPRGKey
	}
	return p.d.Read(dst)
}

// aesCtrPRG is AES-256 in counter mode with a zero IV, keyed by the
// blake3 digest of the key.
type aesCtrPRG struct {
	block  cipher.Block
	stream cipher.Stream
}

var zeroIV = make([]byte, aes.BlockSize)

func (p *aesCtrPRG) SetKey(key []byte) error {
	k := blake3.Sum256(key)
	block, err := aes.NewCipher(k[:])
	if err != nil {
		return err
	}
	p.block = block
	p.Reset()
	return nil
}

func (p *aesCtrPRG) Reset() {
	if p.block != nil {
		p.stream = cipher.NewCTR(p.block, zeroIV)
	}
}

func (p *aesCtrPRG) Read(dst []byte) (int, error) {
	if p.stream == nil {
		return 0, ErrNoPRGKey
	}
	for i := range dst {
		dst[i] = 0
	}
	p.stream.XORKeyStream(dst, dst)
	return len(dst), nil
}

// salsaPRG runs the Salsa20 core over a block counter, keyed by the
// blake3 digest of the key. Partially consumed blocks are kept so that
// the stream does not depend on how reads are split.
type salsaPRG struct {
	key     [32]byte
	keyed   bool
	counter uint64
	buf     [64]byte
	pos     int
}

func (p *salsaPRG) SetKey(key []byte) error {
	p.key = blake3.Sum256(key)
	p.keyed = true
	p.Reset()
	return nil
}

func (p *salsaPRG) Reset() {
	p.counter = 0
	p.pos = len(p.buf)
}

func (p *salsaPRG) refill() {
	var ctr [16]byte
	binary.LittleEndian.PutUint64(ctr[8:], p.counter)
	for i := range p.buf {
		p.buf[i] = 0
	}
	salsa.XORKeyStream(p.buf[:], p.buf[:], &ctr, &p.key)
	p.counter++
	p.pos = 0
}

func (p *salsaPRG) Read(dst []byte) (int, error) {
	if !p.keyed {
		return 0, ErrNoPRGKey
	}
	n := 0
	for n < len(dst) {
		if p.pos == len(p.buf) {
			p.refill()
		}
		c := copy(dst[n:], p.buf[p.pos:])
		p.pos += c
		n += c
	}
	return n, nil
}
