package transport

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const closeTimeout = time.Second

type (
	// WSChannel carries one command per WebSocket message. Read fills p from
	// the current message and returns 0, nil once it is exhausted, which ends
	// the chunked read of wire.Conn whatever the message length.
	WSChannel struct {
		conn *websocket.Conn
		r    io.Reader

		wmu sync.Mutex
	}
)

func NewWSChannel(conn *websocket.Conn) *WSChannel {
	return &WSChannel{conn: conn}
}

func (c *WSChannel) Read(p []byte) (int, error) {
	if c.r == nil {
		_, r, err := c.conn.NextReader()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, io.EOF
			}
			return 0, err
		}
		c.r = r
	}

	n := 0
	for n < len(p) {
		m, err := c.r.Read(p[n:])
		n += m
		if errors.Is(err, io.EOF) {
			c.r = nil
			return n, nil
		}
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func (c *WSChannel) Write(p []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if err := c.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *WSChannel) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// Close sends a close frame, best effort, and closes the connection.
func (c *WSChannel) Close() error {
	c.wmu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeTimeout))
	c.wmu.Unlock()

	return c.conn.Close()
}
