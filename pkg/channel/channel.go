// Package channel provides a buffered, ordered stream of typed values
// between two parties. Writes are buffered until Flush or until the
// next read, so a party never waits on data that is still sitting in
// its own buffer.
package channel

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/optable/otext/pkg/bitmatrix"
)

const (
	bufSize = 64 * 1024

	// MaxFrameSize bounds the length of a frame read by ReadFrame.
	MaxFrameSize = 1 << 26
)

var ErrFrameTooLarge = errors.New("channel: frame exceeds the maximum size")

// IOStats counts the bytes moving through a Channel.
type IOStats struct {
	Sent    atomic.Uint64
	Recvd   atomic.Uint64
	Flushed atomic.Uint64
}

// Channel wraps an io.ReadWriter with buffered typed I/O. A Channel is
// not safe for concurrent use.
type Channel struct {
	conn  io.ReadWriter
	r     *bufio.Reader
	w     *bufio.Writer
	buf   [4]byte
	Stats IOStats
}

// New creates a channel around rw.
func New(rw io.ReadWriter) *Channel {
	return &Channel{
		conn: rw,
		r:    bufio.NewReaderSize(rw, bufSize),
		w:    bufio.NewWriterSize(rw, bufSize),
	}
}

// Flush writes any buffered data to the underlying connection.
func (c *Channel) Flush() error {
	if c.w.Buffered() == 0 {
		return nil
	}
	c.Stats.Flushed.Add(1)
	return c.w.Flush()
}

// Write implements io.Writer. Data is buffered.
func (c *Channel) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.Stats.Sent.Add(uint64(n))
	return n, err
}

// Read implements io.Reader. Pending writes are flushed first.
func (c *Channel) Read(p []byte) (int, error) {
	if err := c.Flush(); err != nil {
		return 0, err
	}
	n, err := c.r.Read(p)
	c.Stats.Recvd.Add(uint64(n))
	return n, err
}

// WriteByte writes a single byte.
func (c *Channel) WriteByte(b byte) error {
	c.buf[0] = b
	_, err := c.Write(c.buf[:1])
	return err
}

// ReadByte reads a single byte.
func (c *Channel) ReadByte() (byte, error) {
	if _, err := c.ReadFull(c.buf[:1]); err != nil {
		return 0, err
	}
	return c.buf[0], nil
}

// WriteInt32 writes v in big endian order.
func (c *Channel) WriteInt32(v int32) error {
	binary.BigEndian.PutUint32(c.buf[:], uint32(v))
	_, err := c.Write(c.buf[:4])
	return err
}

// ReadInt32 reads a big endian int32.
func (c *Channel) ReadInt32() (int32, error) {
	if _, err := c.ReadFull(c.buf[:4]); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(c.buf[:4])), nil
}

// WriteBytes writes p without any framing.
func (c *Channel) WriteBytes(p []byte) error {
	_, err := c.Write(p)
	return err
}

// ReadFull fills p entirely.
func (c *Channel) ReadFull(p []byte) (int, error) {
	return io.ReadFull(c, p)
}

// WriteFrame writes p prefixed by its length.
func (c *Channel) WriteFrame(p []byte) error {
	if len(p) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(p))
	}
	if err := c.WriteInt32(int32(len(p))); err != nil {
		return err
	}
	return c.WriteBytes(p)
}

// ReadFrame reads a length prefixed frame written by WriteFrame.
func (c *Channel) ReadFrame() ([]byte, error) {
	n, err := c.ReadInt32()
	if err != nil {
		return nil, err
	}
	if n < 0 || n > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
	}

	p := make([]byte, n)
	if _, err := c.ReadFull(p); err != nil {
		return nil, err
	}
	return p, nil
}

// WriteMatrix writes m in the bit matrix wire format.
func (c *Channel) WriteMatrix(m *bitmatrix.BitMatrix) error {
	_, err := m.WriteTo(c)
	return err
}

// ReadMatrix reads a bit matrix in its wire format.
func (c *Channel) ReadMatrix() (*bitmatrix.BitMatrix, error) {
	return bitmatrix.Read(c)
}

// Close flushes pending data and closes the underlying connection if it
// is an io.Closer.
func (c *Channel) Close() error {
	if err := c.Flush(); err != nil {
		return err
	}
	if closer, ok := c.conn.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
