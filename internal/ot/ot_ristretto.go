package ot

import (
	"crypto/rand"
	"io"

	"github.com/gtank/ristretto255"
	"github.com/optable/otext/internal/crypto"
)

/*
ristretto255 element reader, writer and key helpers
*/

type elementWriter struct {
	w   io.Writer
	buf []byte
}

type elementReader struct {
	r   io.Reader
	buf []byte
}

func newElementWriter(w io.Writer) *elementWriter {
	return &elementWriter{w: w, buf: make([]byte, 0, crypto.EncodeLen)}
}

func newElementReader(r io.Reader) *elementReader {
	return &elementReader{r: r, buf: make([]byte, crypto.EncodeLen)}
}

// write writes the encoded element to writer
func (w *elementWriter) write(e *ristretto255.Element) error {
	_, err := w.w.Write(e.Encode(w.buf[:0]))
	return err
}

// read reads an encoded element from reader and stores it in e
func (r *elementReader) read(e *ristretto255.Element) error {
	if _, err := io.ReadFull(r.r, r.buf); err != nil {
		return err
	}
	return e.Decode(r.buf)
}

// randomScalar samples a uniform scalar
func randomScalar() (*ristretto255.Scalar, error) {
	var b [64]byte
	if _, err := rand.Read(b[:]); err != nil {
		return nil, err
	}
	return ristretto255.NewScalar().FromUniformBytes(b[:]), nil
}

// randomElement samples a uniform element whose discrete log is unknown
func randomElement() (*ristretto255.Element, error) {
	var b [64]byte
	if _, err := rand.Read(b[:]); err != nil {
		return nil, err
	}
	return ristretto255.NewElement().FromUniformBytes(b[:]), nil
}

// generateKeys returns a secret key scalar
// and a public key element
func generateKeys() (*ristretto255.Scalar, *ristretto255.Element, error) {
	s, err := randomScalar()
	if err != nil {
		return nil, nil, err
	}
	return s, ristretto255.NewElement().ScalarBaseMult(s), nil
}

// deriveKey returns a key of 32 byte from an element
func deriveKey(e *ristretto255.Element) []byte {
	return crypto.HashToKey(e.Encode(nil))
}
