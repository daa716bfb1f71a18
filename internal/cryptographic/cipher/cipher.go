// Package cipher wraps the block ciphers and RSA behind the operations the
// handshake needs: random challenges, encode/decode, key installation and
// session-key derivation.
package cipher

import (
	stdcipher "crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"io"
	"tpa_auth/internal/cryptographic/algorithm"
	"tpa_auth/internal/cryptographic/encryption"
	"tpa_auth/internal/utils/bytesutil"
)

var (
	// ErrCryptographic wraps every failure reported by a Service.
	ErrCryptographic = errors.New("cipher: cryptographic error")

	errNotApplicable = errors.New("not applicable to RSA")
	errNoPeerKey     = errors.New("no peer public key installed")
)

type (
	// Service holds the key material of one protocol session. It is not safe
	// for concurrent use.
	Service struct {
		alg algorithm.Algorithm
		rnd io.Reader

		key   []byte
		block stdcipher.Block

		priv *rsa.PrivateKey
		peer *rsa.PublicKey
	}

	Option func(*Service)
)

// WithRandom replaces crypto/rand as the source of challenges and RSA padding.
func WithRandom(r io.Reader) Option {
	return func(s *Service) {
		s.rnd = r
	}
}

// New returns a Service for a symmetric algorithm keyed with the pre-shared key.
func New(alg algorithm.Algorithm, key []byte, opts ...Option) (*Service, error) {
	if !alg.Valid() {
		return nil, wrap(fmt.Errorf("unknown algorithm %v", alg))
	}
	if !alg.Symmetric() {
		return nil, wrap(fmt.Errorf("%v needs a private key, use NewRSA", alg))
	}

	s := newService(alg, opts)
	if err := s.SetKey(key); err != nil {
		return nil, err
	}
	return s, nil
}

// NewRSA returns an RSA Service owning priv. The peer public key is installed
// later with SetKey.
func NewRSA(priv *rsa.PrivateKey, opts ...Option) (*Service, error) {
	if priv == nil {
		return nil, wrap(errors.New("nil private key"))
	}

	s := newService(algorithm.RSA, opts)
	s.priv = priv
	return s, nil
}

func newService(alg algorithm.Algorithm, opts []Option) *Service {
	s := &Service{
		alg: alg,
		rnd: rand.Reader,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Algorithm() algorithm.Algorithm {
	return s.alg
}

// Key returns a copy of the installed symmetric key after normalization.
func (s *Service) Key() []byte {
	return append([]byte(nil), s.key...)
}

// PublicKey returns the DER (PKIX) encoding of the holder's RSA public key.
func (s *Service) PublicKey() ([]byte, error) {
	if s.priv == nil {
		return nil, wrap(fmt.Errorf("%v has no public key", s.alg))
	}

	der, err := encryption.MarshalPublicKey(&s.priv.PublicKey)
	if err != nil {
		return nil, wrap(err)
	}
	return der, nil
}

// Random returns a fresh challenge of the algorithm's challenge size.
func (s *Service) Random() ([]byte, error) {
	if !s.alg.Symmetric() {
		return nil, wrap(fmt.Errorf("random challenge %w", errNotApplicable))
	}

	b := make([]byte, s.alg.ChallengeSize())
	if _, err := io.ReadFull(s.rnd, b); err != nil {
		return nil, wrap(err)
	}
	return b, nil
}

// Encode encrypts data. Symmetric algorithms zero-pad to the challenge size
// and run CBC with a zero IV; RSA encrypts one PKCS#1 v1.5 block to the peer.
func (s *Service) Encode(data []byte) ([]byte, error) {
	if s.alg == algorithm.RSA {
		if s.peer == nil {
			return nil, wrap(errNoPeerKey)
		}
		ct, err := encryption.RSAEncrypt(s.rnd, s.peer, data)
		if err != nil {
			return nil, wrap(err)
		}
		return ct, nil
	}

	ct, err := encryption.CBCEncrypt(s.block, bytesutil.Pad(data, s.alg.ChallengeSize()))
	if err != nil {
		return nil, wrap(err)
	}
	return ct, nil
}

// Decode reverses Encode. Symmetric plaintexts lose their trailing zero bytes,
// including any that were part of the original data.
func (s *Service) Decode(data []byte) ([]byte, error) {
	if s.alg == algorithm.RSA {
		pt, err := encryption.RSADecrypt(s.priv, data)
		if err != nil {
			return nil, wrap(err)
		}
		return pt, nil
	}

	pt, err := encryption.CBCDecrypt(s.block, data)
	if err != nil {
		return nil, wrap(err)
	}
	return bytesutil.Unpad(pt), nil
}

// SetKey installs new key material. For symmetric algorithms key is
// normalized to a 24-byte DESede key where needed; for RSA key is the peer's
// DER (PKIX) public key. On failure the previous key stays in place.
func (s *Service) SetKey(key []byte) error {
	if s.alg == algorithm.RSA {
		pub, err := encryption.ParsePublicKey(key)
		if err != nil {
			return wrap(err)
		}
		s.peer = pub
		return nil
	}

	k := Normalize(s.alg, key)

	var (
		block stdcipher.Block
		err   error
	)
	switch s.alg.Family() {
	case algorithm.FamilyDESede:
		block, err = encryption.NewTripleDES(k)
	case algorithm.FamilyAES:
		block, err = encryption.NewAES(k)
	default:
		err = fmt.Errorf("no block cipher for %v", s.alg)
	}
	if err != nil {
		return wrap(err)
	}

	s.key = k
	s.block = block
	return nil
}

// DeriveSessionKey builds the session key from the client and server randoms
// following the algorithm's layout and installs it.
func (s *Service) DeriveSessionKey(clientRandom, serverRandom []byte) error {
	k, err := SessionKey(s.alg, clientRandom, serverRandom)
	if err != nil {
		return err
	}
	return s.SetKey(k)
}

// SessionKey concatenates the layout windows of alg. A window reaching past
// the end of its random value is an error.
func SessionKey(alg algorithm.Algorithm, clientRandom, serverRandom []byte) ([]byte, error) {
	layout := alg.SessionKeyLayout()
	if layout == nil {
		return nil, wrap(fmt.Errorf("session key %w", errNotApplicable))
	}

	key := make([]byte, 0, len(layout)*algorithm.WindowSize)
	for _, w := range layout {
		src, name := clientRandom, "client"
		if w.From == algorithm.Server {
			src, name = serverRandom, "server"
		}

		end := w.Offset + algorithm.WindowSize
		if end > len(src) {
			return nil, wrap(fmt.Errorf("%v session key: %s random window [%d:%d] out of range (%d bytes)",
				alg, name, w.Offset, end, len(src)))
		}
		key = append(key, src[w.Offset:end]...)
	}
	return key, nil
}

// Normalize expands short DES keys to 24-byte DESede keys: 8 bytes are
// repeated three times, 16 bytes get their first 8 bytes appended. Any other
// combination is returned unchanged.
func Normalize(alg algorithm.Algorithm, key []byte) []byte {
	switch {
	case alg == algorithm.DES && len(key) == 8:
		out := make([]byte, 0, 24)
		for i := 0; i < 3; i++ {
			out = append(out, key...)
		}
		return out
	case (alg == algorithm.DES || alg == algorithm.TDES) && len(key) == 16:
		out := make([]byte, 0, 24)
		out = append(out, key...)
		return append(out, key[:8]...)
	default:
		return append([]byte(nil), key...)
	}
}

func wrap(err error) error {
	return fmt.Errorf("%w: %w", ErrCryptographic, err)
}
