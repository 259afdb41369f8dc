// Package ot implements the 1 out of 2 base oblivious transfers used to
// seed OT extension.
package ot

import (
	"errors"
	"fmt"
	"io"
)

/*
OT interface
*/

const (
	Simplest = iota
	NaorPinkas
)

var (
	ErrBaseCountMissMatch = errors.New("provided slices is not the same length as the number of base OT")
	ErrUnknownOT          = errors.New("cannot create an OT that follows an unknown protocol")
	ErrInvalidChoice      = errors.New("choice bits should be binary")
)

// OT implements a BaseOT
type OT interface {
	Send(messages []OTMessage, rw io.ReadWriter) error
	Receive(choices []uint8, messages [][]byte, rw io.ReadWriter) error
}

// OTMessage represent a pair of messages
// where an OT receiver with choice bit 0 will
// correctly decode the first message
// and an OT receiver with choice bit 1 will
// correctly decode the second message
type OTMessage [2][]byte

// NewBaseOT returns an OT of type t running baseCount instances at
// once. msgLen[i] is the length in bytes of both messages of instance i.
func NewBaseOT(t int, baseCount int, msgLen []int, cipherMode int) (OT, error) {
	switch t {
	case Simplest:
		return newSimplestRistretto(baseCount, msgLen, cipherMode)
	case NaorPinkas:
		return newNaorPinkasRistretto(baseCount, msgLen, cipherMode)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownOT, t)
	}
}
