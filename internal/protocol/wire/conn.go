package wire

import (
	"errors"
	"fmt"
	"io"
	"time"
)

// ChunkSize is the read granularity of the framing: a read that fills a whole
// chunk means more bytes follow. A message whose length is an exact multiple
// of ChunkSize therefore leaves the reader waiting for a chunk that never
// comes on a stream that stays open.
const ChunkSize = 64

var ErrMessageTooLarge = errors.New("wire: message too large")

type (
	// Channel is the byte stream a session runs on.
	Channel interface {
		io.ReadWriteCloser
	}

	// deadliner is implemented by channels that support read timeouts.
	deadliner interface {
		SetReadDeadline(t time.Time) error
	}

	Conn struct {
		ch          Channel
		maxSize     int
		readTimeout time.Duration
	}

	ConnOption func(*Conn)
)

// WithMaxMessageSize rejects messages longer than n bytes. Zero disables the
// guard.
func WithMaxMessageSize(n int) ConnOption {
	return func(c *Conn) {
		c.maxSize = n
	}
}

// WithReadTimeout bounds the wait for each message when the channel supports
// read deadlines. Zero blocks forever.
func WithReadTimeout(d time.Duration) ConnOption {
	return func(c *Conn) {
		c.readTimeout = d
	}
}

func NewConn(ch Channel, opts ...ConnOption) *Conn {
	c := &Conn{ch: ch}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WriteMessage writes b in a single call, without any length prefix.
func (c *Conn) WriteMessage(b []byte) error {
	n, err := c.ch.Write(b)
	if err != nil {
		return err
	}
	if n != len(b) {
		return io.ErrShortWrite
	}
	return nil
}

// ReadMessage reads one message: chunks of ChunkSize are appended for as long
// as each read fills the chunk. io.EOF after some bytes ends the message; with
// no bytes it is returned as is.
func (c *Conn) ReadMessage() ([]byte, error) {
	if d, ok := c.ch.(deadliner); ok && c.readTimeout > 0 {
		if err := d.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return nil, err
		}
	}

	var (
		msg []byte
		buf = make([]byte, ChunkSize)
	)
	for {
		n, err := c.ch.Read(buf)
		msg = append(msg, buf[:n]...)

		if c.maxSize > 0 && len(msg) > c.maxSize {
			return nil, fmt.Errorf("%w: more than %d bytes", ErrMessageTooLarge, c.maxSize)
		}

		if err != nil {
			if errors.Is(err, io.EOF) && len(msg) > 0 {
				return msg, nil
			}
			return nil, err
		}

		if n < ChunkSize {
			return msg, nil
		}
	}
}

func (c *Conn) Send(cmd *Command) error {
	return c.WriteMessage(cmd.ToBytes())
}

// Receive reads and decodes one command. An empty message yields the decode
// error of FromBytes.
func (c *Conn) Receive() (*Command, error) {
	b, err := c.ReadMessage()
	if err != nil {
		return nil, err
	}
	return FromBytes(b)
}

func (c *Conn) Close() error {
	return c.ch.Close()
}
