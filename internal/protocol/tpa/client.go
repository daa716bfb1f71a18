package tpa

import (
	"bytes"
	"fmt"
	"tpa_auth/internal/cryptographic/algorithm"
	"tpa_auth/internal/cryptographic/cipher"
	"tpa_auth/internal/cryptographic/checksum"
	"tpa_auth/internal/protocol/wire"
	"tpa_auth/internal/utils/bytesutil"

	"go.uber.org/zap"
)

type (
	// Client drives the initiating side of one session.
	Client struct {
		endpoint

		challenge []byte
	}
)

func NewClient(conn *wire.Conn, c *cipher.Service, opts ...Option) *Client {
	o := buildOptions(opts)
	cl := &Client{}
	cl.init(RoleClient, conn, c, PhaseInit, o.logger)
	return cl
}

// Authenticate runs the handshake. For symmetric algorithms both sides prove
// knowledge of the pre-shared key and end up with the same session key; for
// RSA the peers swap public keys.
func (c *Client) Authenticate() error {
	if p := c.Phase(); p != PhaseInit {
		return fmt.Errorf("%w: handshake already run (phase %v)", ErrAuthentication, p)
	}

	var err error
	if c.cipher.Algorithm() == algorithm.RSA {
		err = c.exchangePublicKeys()
	} else {
		err = c.threePass()
	}
	if err != nil {
		c.log.Warn("authentication failed", zap.Error(err))
		return err
	}

	c.setPhase(PhaseSessionEstablished)
	c.log.Info("session established")
	return nil
}

func (c *Client) threePass() error {
	n := c.cipher.Algorithm().ChallengeSize()

	if err := c.send(wire.GetChallenge()); err != nil {
		return err
	}
	c.setPhase(PhaseChallengeRequested)

	serverChallenge, err := c.receiveRaw()
	if err != nil {
		return err
	}
	if len(serverChallenge) != n {
		return refused(serverChallenge, "challenge")
	}

	c.challenge, err = c.cipher.Random()
	if err != nil {
		return err
	}

	ek1, err := c.cipher.Encode(concat(c.challenge, serverChallenge))
	if err != nil {
		return err
	}
	if err := c.send(wire.AuthenticateClient(ek1)); err != nil {
		return err
	}
	c.setPhase(PhaseClientProofSent)

	reply, err := c.receive()
	if err != nil {
		return err
	}
	if reply.Instruction != wire.SUC {
		if reply.Instruction == wire.ERR {
			return fmt.Errorf("%w: %s", ErrAuthentication, reply.Detail())
		}
		return fmt.Errorf("%w: unexpected %v reply", ErrAuthentication, reply.Instruction)
	}
	c.setPhase(PhaseClientVerified)
	c.log.Info("client verified by server")

	challenge2, err := c.cipher.Random()
	if err != nil {
		return err
	}
	if err := c.send(wire.AuthenticateServer(challenge2)); err != nil {
		return err
	}
	c.setPhase(PhaseServerChallengeSent)

	ek2, err := c.receiveRaw()
	if err != nil {
		return err
	}

	dk, err := c.cipher.Decode(ek2)
	if err != nil {
		if _, ok := refusal(ek2); ok {
			return refused(ek2, "server proof")
		}
		return err
	}

	serverChallenge2 := bytesutil.Window(dk, 0, n)
	if !bytes.Equal(bytesutil.Window(dk, n, 2*n), challenge2) {
		return fmt.Errorf("%w: %s", ErrAuthentication, DetailServerMismatch)
	}

	if err := c.cipher.DeriveSessionKey(c.challenge, serverChallenge2); err != nil {
		return err
	}
	c.challenge = nil
	return nil
}

func (c *Client) exchangePublicKeys() error {
	own, err := c.cipher.PublicKey()
	if err != nil {
		return err
	}
	if err := c.send(wire.PublicKey(own)); err != nil {
		return err
	}

	peer, err := c.receiveRaw()
	if err != nil {
		return err
	}
	if err := c.cipher.SetKey(peer); err != nil {
		return refused(peer, "public key")
	}
	return nil
}

// SendMessage encrypts text, sends it and checks the acknowledgement. A
// checksum mismatch returns ErrTransmission and an ERR reply ErrRemote;
// neither ends the session.
func (c *Client) SendMessage(text []byte) error {
	if p := c.Phase(); p != PhaseSessionEstablished && p != PhaseMessaging {
		return ErrSessionNotEstablished
	}

	ct, err := c.cipher.Encode(text)
	if err != nil {
		return err
	}
	if err := c.send(wire.SendMessage(ct)); err != nil {
		return err
	}
	c.setPhase(PhaseMessaging)

	reply, err := c.receive()
	if err != nil {
		return err
	}

	switch reply.Instruction {
	case wire.RCV:
		if !checksum.Verify(text, reply.Payload) {
			return fmt.Errorf("%w: checksum mismatch, got %s want %s", ErrTransmission,
				bytesutil.Hex(reply.Payload), bytesutil.Hex(checksum.Sum(text)))
		}
		c.log.Debug("message acknowledged", zap.Int("size", len(text)))
		return nil
	case wire.ERR:
		return fmt.Errorf("%w: %s", ErrRemote, reply.Detail())
	default:
		return fmt.Errorf("%w: unexpected %v reply", ErrTransmission, reply.Instruction)
	}
}

// Stop tells the server the transmission is over. The channel stays open;
// closing it is up to the caller.
func (c *Client) Stop() error {
	if c.Phase() == PhaseClosed {
		return nil
	}
	err := c.send(wire.Stop())
	c.setPhase(PhaseClosed)
	return err
}

func concat(a, b []byte) []byte {
	out := make([]byte, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
