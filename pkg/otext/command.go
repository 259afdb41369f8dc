package otext

import (
	"fmt"

	"github.com/optable/otext/pkg/channel"
)

// Command is sent by the master server to tell its peer which half of
// the next extension round to run.
type Command byte

const (
	// CommandExtendChoice: the master extends choice OTs, the peer
	// extends sending OTs.
	CommandExtendChoice Command = iota + 1
	// CommandExtendSending: the master extends sending OTs, the peer
	// extends choice OTs.
	CommandExtendSending
	CommandStop
)

func (c Command) String() string {
	switch c {
	case CommandExtendChoice:
		return "extend-choice"
	case CommandExtendSending:
		return "extend-sending"
	case CommandStop:
		return "stop"
	default:
		return fmt.Sprintf("command(%d)", byte(c))
	}
}

func writeCommand(ch *channel.Channel, c Command) error {
	if err := ch.WriteByte(byte(c)); err != nil {
		return err
	}
	return ch.Flush()
}

func readCommand(ch *channel.Channel) (Command, error) {
	b, err := ch.ReadByte()
	if err != nil {
		return 0, err
	}

	c := Command(b)
	switch c {
	case CommandExtendChoice, CommandExtendSending, CommandStop:
		return c, nil
	default:
		return 0, fmt.Errorf("%w: %v", ErrUnknownCommand, c)
	}
}

// state is the position of a server in the extension protocol.
type state int32

const (
	stateUninitialized state = iota
	stateAwaitCommand
	stateExtendChoice
	stateExtendSending
	stateStopped
)

func (s state) String() string {
	switch s {
	case stateUninitialized:
		return "uninitialized"
	case stateAwaitCommand:
		return "await-command"
	case stateExtendChoice:
		return "extend-choice"
	case stateExtendSending:
		return "extend-sending"
	case stateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// reserve is the number of OTs of one kind an extension round keeps for
// the internal client.
type reserve struct {
	target int
}

// grow moves the target towards m: doubling while that stays below m,
// then halving the distance.
func (r *reserve) grow(m int) {
	if 2*r.target < m {
		r.target *= 2
	} else {
		r.target += (m - r.target) / 2
	}
}
