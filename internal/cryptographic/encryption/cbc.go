package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"fmt"
)

// NewTripleDES builds a DESede block cipher. key must be 24 bytes; single and
// two-key DES are expressed as 24-byte keys with repeated parts.
func NewTripleDES(key []byte) (cipher.Block, error) {
	block, err := des.NewTripleDESCipher(key)
	if err != nil {
		return nil, fmt.Errorf("des.NewTripleDESCipher: %w", err)
	}
	return block, nil
}

// NewAES builds an AES block cipher. key must be 16/24/32 bytes.
func NewAES(key []byte) (cipher.Block, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	return block, nil
}

// CBCEncrypt encrypts block-aligned plaintext in CBC mode with an all-zero IV.
// Every call starts from a fresh IV, nothing is chained across calls.
func CBCEncrypt(block cipher.Block, plaintext []byte) ([]byte, error) {
	bs := block.BlockSize()
	if len(plaintext)%bs != 0 {
		return nil, fmt.Errorf("cbc: plaintext length %d is not a multiple of %d", len(plaintext), bs)
	}

	out := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, make([]byte, bs)).CryptBlocks(out, plaintext)
	return out, nil
}

// CBCDecrypt is the inverse of CBCEncrypt.
func CBCDecrypt(block cipher.Block, ciphertext []byte) ([]byte, error) {
	bs := block.BlockSize()
	if len(ciphertext)%bs != 0 {
		return nil, fmt.Errorf("cbc: ciphertext length %d is not a multiple of %d", len(ciphertext), bs)
	}

	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, make([]byte, bs)).CryptBlocks(out, ciphertext)
	return out, nil
}
