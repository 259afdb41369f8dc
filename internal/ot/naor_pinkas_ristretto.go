package ot

import (
	"fmt"
	"io"

	"github.com/gtank/ristretto255"
	"github.com/optable/otext/internal/crypto"
)

/*
1 out of 2 base OT
from the paper: Efficient Oblivious Transfer Protocol
by Moni Naor and Benny Pinkas in 2001.
reference: https://dl.acm.org/doi/abs/10.5555/365411.365502

Naor-Pinkas OT implemented using ristretto255 elements for the group operations.
*/

type naorPinkasRistretto struct {
	baseCount  int
	msgLen     []int
	cipherMode int
}

func newNaorPinkasRistretto(baseCount int, msgLen []int, cipherMode int) (OT, error) {
	if len(msgLen) != baseCount {
		return nil, ErrBaseCountMissMatch
	}
	return naorPinkasRistretto{baseCount: baseCount, msgLen: msgLen, cipherMode: cipherMode}, nil
}

func (n naorPinkasRistretto) Send(messages []OTMessage, rw io.ReadWriter) (err error) {
	if len(messages) != n.baseCount {
		return ErrBaseCountMissMatch
	}

	reader := newElementReader(rw)
	writer := newElementWriter(rw)

	// generate sender A point w/o secret, since a is never used.
	pointA, err := randomElement()
	if err != nil {
		return err
	}

	// generate sender secret public key pairs used for encryption
	secretR, pointR, err := generateKeys()
	if err != nil {
		return err
	}

	// send both public keys to receiver
	if err := writer.write(pointA); err != nil {
		return err
	}
	if err := writer.write(pointR); err != nil {
		return err
	}

	// precompute A = rA
	pointA.ScalarMult(secretR, pointA)

	// receive K0 from receiver
	pointK0 := make([]*ristretto255.Element, n.baseCount)
	for i := range pointK0 {
		pointK0[i] = ristretto255.NewElement()
		if err := reader.read(pointK0[i]); err != nil {
			return err
		}
	}

	pointK := [2]*ristretto255.Element{ristretto255.NewElement(), ristretto255.NewElement()}
	// encrypt plaintext message and send them.
	for i := 0; i < n.baseCount; i++ {
		// compute K0 = rK0
		pointK[0].ScalarMult(secretR, pointK0[i])
		// compute K1 = rA - rK0
		pointK[1].Subtract(pointA, pointK[0])

		// encrypt plaintext message with key derived from K0, K1
		for choice, plaintext := range messages[i] {
			ciphertext, err := crypto.Encrypt(n.cipherMode, deriveKey(pointK[choice]), uint8(choice), plaintext)
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

func (n naorPinkasRistretto) Receive(choices []uint8, messages [][]byte, rw io.ReadWriter) (err error) {
	if len(choices) != len(messages) || len(choices) != n.baseCount {
		return ErrBaseCountMissMatch
	}

	reader := newElementReader(rw)
	writer := newElementWriter(rw)

	// Receive point A and point R from sender
	pointA, pointR := ristretto255.NewElement(), ristretto255.NewElement()
	if err := reader.read(pointA); err != nil {
		return err
	}
	if err := reader.read(pointR); err != nil {
		return err
	}

	// Generate points B, 1 for each OT,
	bSecrets := make([]*ristretto255.Scalar, n.baseCount)
	for i := 0; i < n.baseCount; i++ {
		var pointB *ristretto255.Element
		bSecrets[i], pointB, err = generateKeys()
		if err != nil {
			return err
		}

		// for each choice bit, compute the resultant point Kc, K1-c and send K0
		switch choices[i] {
		case 0:
			// K0 = Kc = B
			// K1 = K1-c = A - B
		case 1:
			// K1 = Kc = B
			// K0 = K1-c = A - B
			pointB.Subtract(pointA, pointB)
		default:
			return fmt.Errorf("%w, got %v", ErrInvalidChoice, choices[i])
		}
		if err := writer.write(pointB); err != nil {
			return err
		}
	}

	e := make([][]byte, 2)
	pointK := ristretto255.NewElement()
	// receive encrypted messages, and decrypt it.
	for i := 0; i < n.baseCount; i++ {
		// compute # of bytes to be read.
		l := crypto.EncryptLen(n.cipherMode, n.msgLen[i])
		// read both msg
		for j := range e {
			e[j] = make([]byte, l)
			if _, err := io.ReadFull(rw, e[j]); err != nil {
				return err
			}
		}

		// build keys for decrypting choice messages
		// K = bR
		pointK.ScalarMult(bSecrets[i], pointR)

		// decrypt the message indexed by choice bit
		messages[i], err = crypto.Decrypt(n.cipherMode, deriveKey(pointK), choices[i], e[choices[i]])
		if err != nil {
			return fmt.Errorf("error decrypting sender message: %w", err)
		}
	}

	return
}
