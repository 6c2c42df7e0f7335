package cipher

import (
	"crypto/aes"
	stdcipher "crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/flowbaker/vault/pkg/domain"
)

const (
	KeySize = 32
	IVSize  = 16

	separator = ":"
)

// AESCipher seals credential fields with AES-256-GCM under a process-wide
// key. Each call draws a fresh 16-byte IV; the serialized form is
// hex(iv):hex(ciphertext||tag). The GCM tag makes a wrong key or a damaged
// field fail instead of decrypting to garbage.
type AESCipher struct {
	aead stdcipher.AEAD
}

// NewAESCipher builds a cipher from a 64 character hex key.
func NewAESCipher(keyHex string) (*AESCipher, error) {
	key, err := hex.DecodeString(strings.TrimSpace(keyHex))
	if err != nil {
		return nil, fmt.Errorf("failed to decode encryption key: %w", err)
	}

	return NewAESCipherFromKey(key)
}

func NewAESCipherFromKey(key []byte) (*AESCipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("invalid key length: expected %d bytes, got %d", KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	aead, err := stdcipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &AESCipher{aead: aead}, nil
}

func (c *AESCipher) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}

	ciphertext := c.aead.Seal(nil, iv, []byte(plaintext), nil)

	return hex.EncodeToString(iv) + separator + hex.EncodeToString(ciphertext), nil
}

func (c *AESCipher) Decrypt(field string) (string, error) {
	parts := strings.Split(field, separator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", fmt.Errorf("%w: expected two hex segments", domain.ErrMalformedField)
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("%w: invalid iv encoding", domain.ErrMalformedField)
	}

	if len(iv) != IVSize {
		return "", fmt.Errorf("%w: iv must be %d bytes, got %d", domain.ErrMalformedField, IVSize, len(iv))
	}

	ciphertext, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("%w: invalid ciphertext encoding", domain.ErrDecryptionFailed)
	}

	plaintext, err := c.aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrDecryptionFailed, err)
	}

	return string(plaintext), nil
}

// GenerateKey returns a random key in the hex form NewAESCipher expects.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}

	return hex.EncodeToString(key), nil
}
