package app

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"io"
	"tpa_auth/internal/config"
	"tpa_auth/internal/cryptographic/algorithm"
	"tpa_auth/internal/cryptographic/cipher"
	"tpa_auth/internal/protocol/tpa"
	"tpa_auth/internal/protocol/wire"
	"tpa_auth/internal/transport"
	"tpa_auth/internal/utils/log"

	"go.uber.org/zap"
)

type (
	// DialFunc opens the channel to the server.
	DialFunc func(ctx context.Context, network, address string) (wire.Channel, error)

	Option func(*App)

	// App is the client driver: it authenticates, then sends every line of
	// its console as a message until the input ends.
	App struct {
		cfg     *config.Client
		console Console
		dial    DialFunc
		priv    *rsa.PrivateKey
	}
)

func WithDialer(d DialFunc) Option {
	return func(a *App) {
		a.dial = d
	}
}

// WithPrivateKey sets the RSA key of the client. Required for RSA.
func WithPrivateKey(k *rsa.PrivateKey) Option {
	return func(a *App) {
		a.priv = k
	}
}

func NewApp(cfg *config.Client, console Console, opts ...Option) *App {
	a := &App{
		cfg:     cfg,
		console: console,
		dial:    transport.Dial,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run connects, authenticates and sends messages. A rejected or corrupted
// message is reported and the next line is read; channel and cryptographic
// failures end the run.
func (a *App) Run(ctx context.Context) error {
	c, err := a.newCipher()
	if err != nil {
		return err
	}

	address := a.cfg.Connect.Address()
	ch, err := a.dial(ctx, a.cfg.Connect.Network, address)
	if err != nil {
		return err
	}
	defer ch.Close()

	logger := log.With(zap.String("server", address))
	logger.Info("connected")

	client := tpa.NewClient(wire.NewConn(ch, wire.WithReadTimeout(a.cfg.Connect.Timeout())), c, tpa.WithLogger(logger))
	if err := client.Authenticate(); err != nil {
		a.console.Notify(fmt.Sprintf("Authentication failed: %v", err))
		if !errors.Is(err, tpa.ErrChannel) {
			_ = client.Stop()
		}
		return err
	}
	a.console.Notify(fmt.Sprintf("Session established with %s (%v)", address, c.Algorithm()))

	sent := 0
	for ctx.Err() == nil {
		line, err := a.console.ReadLine()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("app: read input: %w", err)
		}
		if line == "" {
			break
		}

		err = client.SendMessage([]byte(line))
		switch {
		case err == nil:
			sent++
			a.console.Notify("Message acknowledged")
		case errors.Is(err, tpa.ErrTransmission), errors.Is(err, tpa.ErrRemote):
			logger.Warn("message not delivered", zap.Error(err))
			a.console.Notify(fmt.Sprintf("Message not delivered: %v", err))
		default:
			return err
		}
	}

	logger.Info("end of transmission", zap.Int("messages", sent))
	return client.Stop()
}

func (a *App) newCipher() (*cipher.Service, error) {
	alg, key, err := a.cfg.Key.Material()
	if err != nil {
		return nil, err
	}

	if alg == algorithm.RSA {
		if a.priv == nil {
			return nil, errors.New("app: RSA needs a private key")
		}
		return cipher.NewRSA(a.priv)
	}
	return cipher.New(alg, key)
}
