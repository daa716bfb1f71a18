package encryption

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"os"
)

var errNotRSAKey = errors.New("rsa: key is not an RSA key")

func GenerateRSAKey(bits int) (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("rsa.GenerateKey: %w", err)
	}
	return key, nil
}

// RSAEncrypt encrypts one block with PKCS#1 v1.5 padding.
func RSAEncrypt(rnd io.Reader, pub *rsa.PublicKey, plaintext []byte) ([]byte, error) {
	ct, err := rsa.EncryptPKCS1v15(rnd, pub, plaintext)
	if err != nil {
		return nil, fmt.Errorf("rsa.EncryptPKCS1v15: %w", err)
	}
	return ct, nil
}

func RSADecrypt(priv *rsa.PrivateKey, ciphertext []byte) ([]byte, error) {
	pt, err := rsa.DecryptPKCS1v15(nil, priv, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("rsa.DecryptPKCS1v15: %w", err)
	}
	return pt, nil
}

// MarshalPublicKey encodes pub as DER SubjectPublicKeyInfo (X.509).
func MarshalPublicKey(pub *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("x509.MarshalPKIXPublicKey: %w", err)
	}
	return der, nil
}

func ParsePublicKey(der []byte) (*rsa.PublicKey, error) {
	k, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("x509.ParsePKIXPublicKey: %w", err)
	}
	pub, ok := k.(*rsa.PublicKey)
	if !ok {
		return nil, errNotRSAKey
	}
	return pub, nil
}

// LoadPrivateKeyFile reads a PEM "PRIVATE KEY" (PKCS#8) or "RSA PRIVATE KEY"
// (PKCS#1) file.
func LoadPrivateKeyFile(path string) (*rsa.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	blk, _ := pem.Decode(b)
	if blk == nil {
		return nil, fmt.Errorf("rsa: no PEM block in %s", path)
	}

	switch blk.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(blk.Bytes)
	case "PRIVATE KEY":
		k, err := x509.ParsePKCS8PrivateKey(blk.Bytes)
		if err != nil {
			return nil, err
		}
		priv, ok := k.(*rsa.PrivateKey)
		if !ok {
			return nil, errNotRSAKey
		}
		return priv, nil
	default:
		return nil, fmt.Errorf("rsa: unsupported PEM block %q", blk.Type)
	}
}

// SavePrivateKeyFile writes priv as a PKCS#8 PEM file readable only by the owner.
func SavePrivateKeyFile(path string, priv *rsa.PrivateKey) error {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return err
	}
	return os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), 0600)
}

// LoadOrGenerateKey loads the PEM key at path, or generates a bits-long key
// when path is empty.
func LoadOrGenerateKey(path string, bits int) (*rsa.PrivateKey, error) {
	if path != "" {
		return LoadPrivateKeyFile(path)
	}
	return GenerateRSAKey(bits)
}
