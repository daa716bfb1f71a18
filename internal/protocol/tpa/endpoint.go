// Package tpa runs the three-pass mutual authentication handshake and the
// encrypted messaging that follows it, for both the client and the server
// role.
package tpa

import (
	"fmt"
	"sync/atomic"
	"tpa_auth/internal/cryptographic/cipher"
	"tpa_auth/internal/protocol/wire"
	"tpa_auth/internal/utils/bytesutil"
	"tpa_auth/internal/utils/log"

	"go.uber.org/zap"
)

type (
	// MessageHandler receives every plaintext the server decodes.
	MessageHandler func(plaintext []byte)

	options struct {
		logger  *zap.Logger
		handler MessageHandler
	}

	Option func(*options)

	// endpoint is the state both roles share: the channel, the key material
	// and the current phase.
	endpoint struct {
		role   Role
		conn   *wire.Conn
		cipher *cipher.Service
		phase  atomic.Uint32
		log    *zap.Logger
	}
)

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func WithMessageHandler(h MessageHandler) Option {
	return func(o *options) {
		o.handler = h
	}
}

func buildOptions(opts []Option) options {
	o := options{
		handler: func([]byte) {},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.L()
	}
	return o
}

func (e *endpoint) init(role Role, conn *wire.Conn, c *cipher.Service, phase Phase, l *zap.Logger) {
	e.role = role
	e.conn = conn
	e.cipher = c
	e.log = l.With(zap.Stringer("role", role), zap.Stringer("algorithm", c.Algorithm()))
	e.phase.Store(uint32(phase))
}

// Phase is safe to call while the session runs.
func (e *endpoint) Phase() Phase {
	return Phase(e.phase.Load())
}

func (e *endpoint) setPhase(p Phase) {
	e.log.Debug("phase", zap.Stringer("from", e.Phase()), zap.Stringer("to", p))
	e.phase.Store(uint32(p))
}

func (e *endpoint) send(cmd *wire.Command) error {
	return e.sendRaw(cmd.ToBytes())
}

func (e *endpoint) sendRaw(b []byte) error {
	e.log.Debug("send", zap.String("data", bytesutil.Hex(b)))
	if err := e.conn.WriteMessage(b); err != nil {
		return fmt.Errorf("%w: %w", ErrChannel, err)
	}
	return nil
}

func (e *endpoint) receiveRaw() ([]byte, error) {
	b, err := e.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrChannel, err)
	}
	e.log.Debug("receive", zap.String("data", bytesutil.Hex(b)))
	return b, nil
}

func (e *endpoint) receive() (*wire.Command, error) {
	b, err := e.receiveRaw()
	if err != nil {
		return nil, err
	}
	return wire.FromBytes(b)
}

// refusal reports whether b, received where data was expected, is an ERR
// command, and returns its detail.
func refusal(b []byte) (string, bool) {
	cmd, err := wire.FromBytes(b)
	if err != nil || cmd.Instruction != wire.ERR {
		return "", false
	}
	return cmd.Detail(), true
}

func refused(b []byte, what string) error {
	if detail, ok := refusal(b); ok {
		return fmt.Errorf("%w: %s: %s", ErrAuthentication, what, detail)
	}
	return fmt.Errorf("%w: %s: invalid reply of %d bytes", ErrAuthentication, what, len(b))
}
