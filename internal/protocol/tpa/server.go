package tpa

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"tpa_auth/internal/cryptographic/algorithm"
	"tpa_auth/internal/cryptographic/checksum"
	"tpa_auth/internal/cryptographic/cipher"
	"tpa_auth/internal/protocol/wire"
	"tpa_auth/internal/utils/bytesutil"

	"go.uber.org/zap"
)

type (
	// Server answers the commands of one connected client.
	Server struct {
		endpoint

		handler         MessageHandler
		challenge       []byte
		clientChallenge []byte
		messages        int
		established     bool
	}
)

func NewServer(conn *wire.Conn, c *cipher.Service, opts ...Option) *Server {
	o := buildOptions(opts)
	s := &Server{handler: o.handler}
	s.init(RoleServer, conn, c, PhaseAwaitingCommand, o.logger)
	return s
}

// Established reports whether a session key or the peer public key was
// installed at some point of the connection.
func (s *Server) Established() bool {
	return s.established
}

// Messages is the number of messages decoded and acknowledged so far.
func (s *Server) Messages() int {
	return s.messages
}

// Serve handles commands until the client sends STP, the channel fails or
// ctx is done. Handshake and cryptographic failures are answered with ERR
// and the loop goes on.
func (s *Server) Serve(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			s.setPhase(PhaseClosed)
			return err
		}

		b, err := s.receiveRaw()
		if err != nil {
			s.setPhase(PhaseClosed)
			return err
		}

		cmd, err := wire.FromBytes(b)
		if err != nil {
			if err := s.send(wire.Error(DetailEmptyCommand)); err != nil {
				s.setPhase(PhaseClosed)
				return err
			}
			continue
		}

		err = s.Execute(cmd)
		switch {
		case err == nil:
		case errors.Is(err, ErrEndOfTransmission):
			s.log.Info("end of transmission", zap.Int("messages", s.messages))
			return nil
		case errors.Is(err, ErrChannel):
			s.setPhase(PhaseClosed)
			return err
		default:
			s.log.Warn("command failed", zap.Stringer("instruction", cmd.Instruction), zap.Error(err))
		}
	}
}

// Execute handles a single command and writes its reply. It returns
// ErrEndOfTransmission for STP, ErrChannel when the reply could not be
// written, and the handling error otherwise.
func (s *Server) Execute(cmd *wire.Command) error {
	var err error
	switch cmd.Instruction {
	case wire.CLG:
		err = s.getChallenge()
	case wire.AUC:
		err = s.authenticateClient(cmd.Payload)
	case wire.AUS:
		err = s.authenticateServer(cmd.Payload)
	case wire.PUB:
		err = s.publicKey(cmd.Payload)
	case wire.MSG:
		err = s.message(cmd.Payload)
	case wire.STP:
		s.setPhase(PhaseClosed)
		return ErrEndOfTransmission
	default:
		return s.reject(DetailUnknownInstruction, fmt.Errorf("unknown instruction %v", cmd.Instruction))
	}

	if err != nil && errors.Is(err, cipher.ErrCryptographic) {
		return s.reject(DetailCryptographic, err)
	}
	return err
}

// reject sends ERR(detail) and returns cause, or the write failure.
func (s *Server) reject(detail string, cause error) error {
	if err := s.send(wire.Error(detail)); err != nil {
		return err
	}
	return cause
}

// refuseRestart keeps an established session from being sent back through
// the handshake under its session key.
func (s *Server) refuseRestart() error {
	return s.reject(DetailEstablished, fmt.Errorf("%w: %s", ErrAuthentication, DetailEstablished))
}

func (s *Server) getChallenge() error {
	if s.established {
		return s.refuseRestart()
	}

	challenge, err := s.cipher.Random()
	if err != nil {
		return err
	}

	s.challenge = challenge
	s.clientChallenge = nil
	if err := s.sendRaw(challenge); err != nil {
		return err
	}
	s.setPhase(PhaseChallengeIssued)
	return nil
}

func (s *Server) authenticateClient(ek1 []byte) error {
	if s.established {
		return s.refuseRestart()
	}

	n := s.cipher.Algorithm().ChallengeSize()

	dk, err := s.cipher.Decode(ek1)
	if err != nil {
		return err
	}

	clientChallenge := bytesutil.Window(dk, 0, n)
	returned := bytesutil.Window(dk, n, 2*n)
	if s.challenge == nil || !bytes.Equal(returned, s.challenge) {
		s.challenge = nil
		s.setPhase(PhaseAwaitingCommand)
		return s.reject(DetailChallengeMismatch, fmt.Errorf("%w: %s", ErrAuthentication, DetailChallengeMismatch))
	}

	s.challenge = nil
	s.clientChallenge = clientChallenge
	if err := s.send(wire.Success()); err != nil {
		return err
	}
	s.setPhase(PhaseClientVerified)
	s.log.Info("client verified")
	return nil
}

func (s *Server) authenticateServer(challenge []byte) error {
	if s.clientChallenge == nil {
		return s.reject(DetailNotAuthenticated, fmt.Errorf("%w: %s", ErrAuthentication, DetailNotAuthenticated))
	}

	challenge2, err := s.cipher.Random()
	if err != nil {
		return err
	}

	ek2, err := s.cipher.Encode(concat(challenge2, challenge))
	if err != nil {
		return err
	}

	// The reply is already encrypted under the pre-shared key; the session
	// key is installed before it goes out.
	if err := s.cipher.DeriveSessionKey(s.clientChallenge, challenge2); err != nil {
		return err
	}
	s.clientChallenge = nil

	if err := s.sendRaw(ek2); err != nil {
		return err
	}
	s.established = true
	s.setPhase(PhaseSessionEstablished)
	s.log.Info("session established")
	return nil
}

func (s *Server) publicKey(der []byte) error {
	if s.cipher.Algorithm() != algorithm.RSA {
		return s.reject(DetailUnknownInstruction, fmt.Errorf("public key exchange under %v", s.cipher.Algorithm()))
	}

	if err := s.cipher.SetKey(der); err != nil {
		return err
	}
	own, err := s.cipher.PublicKey()
	if err != nil {
		return err
	}
	if err := s.sendRaw(own); err != nil {
		return err
	}
	s.established = true
	s.setPhase(PhaseSessionEstablished)
	s.log.Info("public keys exchanged")
	return nil
}

func (s *Server) message(ct []byte) error {
	if s.cipher.Algorithm().Symmetric() && !s.established {
		return s.reject(DetailNoSession, ErrSessionNotEstablished)
	}

	pt, err := s.cipher.Decode(ct)
	if err != nil {
		return err
	}

	s.messages++
	s.handler(pt)
	return s.send(wire.Receive(checksum.Sum(pt)))
}
