package ot

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"testing"
	"time"

	"github.com/optable/otext/internal/crypto"
)

var (
	network = "tcp"
	address = "127.0.0.1:"
	r       = rand.New(rand.NewSource(time.Now().UnixNano()))
)

func genMsg(n int, msgLen []int) []OTMessage {
	data := make([]OTMessage, n)
	for i := 0; i < n; i++ {
		for j := range data[i] {
			data[i][j] = make([]byte, msgLen[i])
			r.Read(data[i][j])
		}
	}

	return data
}

func genChoiceBits(n int) []uint8 {
	choices := make([]uint8, n)
	for i := range choices {
		choices[i] = uint8(r.Intn(2))
	}
	return choices
}

func genMsgLen(n int) []int {
	msgLen := make([]int, n)
	for i := range msgLen {
		msgLen[i] = 1 + r.Intn(64)
	}
	return msgLen
}

// runOT runs a sender and a receiver of protocol t over a loopback tcp
// connection and returns the received messages.
func runOT(t *testing.T, protocol, cipherMode int, messages []OTMessage, msgLen []int, choices []uint8) [][]byte {
	l, err := net.Listen(network, address)
	if err != nil {
		t.Fatalf("net listen encountered error: %s", err)
	}
	defer l.Close()

	errs := make(chan error, 1)
	go func() {
		conn, err := l.Accept()
		if err != nil {
			errs <- fmt.Errorf("cannot create connection in listen accept: %s", err)
			return
		}
		defer conn.Close()

		senderOT, err := NewBaseOT(protocol, len(messages), msgLen, cipherMode)
		if err != nil {
			errs <- err
			return
		}
		errs <- senderOT.Send(messages, conn)
	}()

	conn, err := net.Dial(network, l.Addr().String())
	if err != nil {
		t.Fatalf("cannot dial: %s", err)
	}
	defer conn.Close()

	receiverOT, err := NewBaseOT(protocol, len(choices), msgLen, cipherMode)
	if err != nil {
		t.Fatal(err)
	}
	msg := make([][]byte, len(choices))
	if err := receiverOT.Receive(choices, msg, conn); err != nil {
		t.Fatalf("receive encountered error: %s", err)
	}
	if err := <-errs; err != nil {
		t.Fatalf("send encountered error: %s", err)
	}

	return msg
}

func TestBaseOT(t *testing.T) {
	baseCount := 128
	for _, tc := range []struct {
		name       string
		protocol   int
		cipherMode int
	}{
		{"Simplest/XORBlake3", Simplest, crypto.XORBlake3},
		{"Simplest/GCM", Simplest, crypto.GCM},
		{"NaorPinkas/XORBlake2", NaorPinkas, crypto.XORBlake2},
		{"NaorPinkas/XORShake", NaorPinkas, crypto.XORShake},
	} {
		msgLen := genMsgLen(baseCount)
		messages := genMsg(baseCount, msgLen)
		choices := genChoiceBits(baseCount)

		start := time.Now()
		msg := runOT(t, tc.protocol, tc.cipherMode, messages, msgLen, choices)
		t.Logf("%s: time taken for %d OTs is: %v", tc.name, baseCount, time.Since(start))

		for i, m := range msg {
			if !bytes.Equal(m, messages[i][choices[i]]) {
				t.Fatalf("%s: OT %d failed got: %x, want %x", tc.name, i, m, messages[i][choices[i]])
			}
		}
	}
}

func TestNewBaseOTErrors(t *testing.T) {
	if _, err := NewBaseOT(7, 1, []int{1}, crypto.XORBlake3); !errors.Is(err, ErrUnknownOT) {
		t.Fatalf("expected ErrUnknownOT, got %v", err)
	}
	if _, err := NewBaseOT(Simplest, 2, []int{1}, crypto.XORBlake3); !errors.Is(err, ErrBaseCountMissMatch) {
		t.Fatalf("expected ErrBaseCountMissMatch, got %v", err)
	}

	ot, err := NewBaseOT(NaorPinkas, 2, []int{1, 1}, crypto.XORBlake3)
	if err != nil {
		t.Fatal(err)
	}
	if err := ot.Send(make([]OTMessage, 3), new(bytes.Buffer)); !errors.Is(err, ErrBaseCountMissMatch) {
		t.Fatalf("expected ErrBaseCountMissMatch, got %v", err)
	}
}

func TestInvalidChoice(t *testing.T) {
	for _, protocol := range []int{Simplest, NaorPinkas} {
		ot, err := NewBaseOT(protocol, 1, []int{4}, crypto.XORBlake3)
		if err != nil {
			t.Fatal(err)
		}

		// enough sender points for the receiver to reach its choices
		var buf bytes.Buffer
		for i := 0; i < 2; i++ {
			_, P := crypto.GenerateRistrettoKeys()
			crypto.NewRistrettoWriter(&buf).Write(&P)
		}
		if err := ot.Receive([]uint8{2}, make([][]byte, 1), &buf); !errors.Is(err, ErrInvalidChoice) {
			t.Fatalf("protocol %d: expected ErrInvalidChoice, got %v", protocol, err)
		}
	}
}

func TestElementReadWrite(t *testing.T) {
	var buf bytes.Buffer
	_, e, err := generateKeys()
	if err != nil {
		t.Fatal(err)
	}
	if err := newElementWriter(&buf).write(e); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != crypto.EncodeLen {
		t.Fatalf("expected %d bytes, got %d", crypto.EncodeLen, buf.Len())
	}

	got, _ := randomElement()
	if err := newElementReader(&buf).read(got); err != nil {
		t.Fatal(err)
	}
	if got.Equal(e) != 1 {
		t.Fatalf("read element differs from the written one")
	}
	if !bytes.Equal(deriveKey(got), deriveKey(e)) {
		t.Fatalf("equal elements should derive equal keys")
	}
}
