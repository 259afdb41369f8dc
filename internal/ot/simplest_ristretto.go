package ot

import (
	"fmt"
	"io"

	gr "github.com/bwesterb/go-ristretto"
	"github.com/optable/otext/internal/crypto"
)

/*
1 out of 2 base OT
from the paper: The Simplest Protocol for Oblivious Transfer
by Tung Chou and Claudio Orlandi in 2015.
reference: https://eprint.iacr.org/2015/267.pdf

Simplest OT implemented using Ristretto points for the elliptic curve operations.
*/

type simplestRistretto struct {
	baseCount  int
	msgLen     []int
	cipherMode int
}

func newSimplestRistretto(baseCount int, msgLen []int, cipherMode int) (OT, error) {
	if len(msgLen) != baseCount {
		return nil, ErrBaseCountMissMatch
	}
	return simplestRistretto{baseCount: baseCount, msgLen: msgLen, cipherMode: cipherMode}, nil
}

func (s simplestRistretto) Send(messages []OTMessage, rw io.ReadWriter) (err error) {
	if len(messages) != s.baseCount {
		return ErrBaseCountMissMatch
	}

	// Instantiate Reader, Writer
	r := crypto.NewRistrettoReader(rw)
	w := crypto.NewRistrettoWriter(rw)

	// generate sender secret public key pairs
	a, A := crypto.GenerateRistrettoKeys()
	// T = aA
	var T gr.Point
	T.ScalarMult(&A, &a)

	// send point A to receiver
	if err := w.Write(&A); err != nil {
		return err
	}

	// make a slice of ristretto points to receive B from receiver.
	B := make([]gr.Point, s.baseCount)
	for i := range B {
		if err := r.Read(&B[i]); err != nil {
			return err
		}
	}

	K := make([]gr.Point, 2)
	// encrypt plaintext messages and send it.
	for i := 0; i < s.baseCount; i++ {
		// k0 = aB
		K[0].ScalarMult(&B[i], &a)
		//k1 = a(B - A) = aB - aA
		K[1].Sub(&K[0], &T)

		// Encrypt plaintext message with key derived from received points B
		for choice, plaintext := range messages[i] {
			// derive key for encryption
			key, err := crypto.DeriveRistrettoKey(&K[choice])
			if err != nil {
				return err
			}

			ciphertext, err := crypto.Encrypt(s.cipherMode, key, uint8(choice), plaintext)
			if err != nil {
				return fmt.Errorf("error encrypting sender message: %w", err)
			}

			if _, err = rw.Write(ciphertext); err != nil {
				return err
			}
		}
	}

	return
}

func (s simplestRistretto) Receive(choices []uint8, messages [][]byte, rw io.ReadWriter) (err error) {
	if len(choices) != len(messages) || len(choices) != s.baseCount {
		return ErrBaseCountMissMatch
	}

	// instantiate Reader, Writer
	r := crypto.NewRistrettoReader(rw)
	w := crypto.NewRistrettoWriter(rw)

	// Receive point A from sender
	var A gr.Point
	if err := r.Read(&A); err != nil {
		return err
	}

	// Generate points B, 1 for each OT,
	bSecrets := make([]gr.Scalar, s.baseCount)
	for i := 0; i < s.baseCount; i++ {
		b, B := crypto.GenerateRistrettoKeys()
		bSecrets[i] = b

		// for each choice bit, compute the resultant point B and send it
		switch choices[i] {
		case 0:
		case 1:
			// B = A + bG
			B.Add(&A, &B)
		default:
			return fmt.Errorf("%w, got %v", ErrInvalidChoice, choices[i])
		}
		if err := w.Write(&B); err != nil {
			return err
		}
	}

	// receive encrypted messages, and decrypt it.
	e := make([][]byte, 2)
	var K gr.Point
	for i := 0; i < s.baseCount; i++ {
		// compute # of bytes to be read.
		l := crypto.EncryptLen(s.cipherMode, s.msgLen[i])
		// read both msg
		for j := range e {
			e[j] = make([]byte, l)
			if _, err := io.ReadFull(rw, e[j]); err != nil {
				return err
			}
		}

		// build keys for decryption
		K.ScalarMult(&A, &bSecrets[i])
		key, err := crypto.DeriveRistrettoKey(&K)
		if err != nil {
			return err
		}

		// decrypt the message indexed by choice bit
		messages[i], err = crypto.Decrypt(s.cipherMode, key, choices[i], e[choices[i]])
		if err != nil {
			return fmt.Errorf("error decrypting sender message: %w", err)
		}
	}

	return
}
