package initialization

import (
	"fmt"

	"github.com/flowbaker/vault/internal/auth"
	"github.com/flowbaker/vault/pkg/cipher"
)

// GenerateAllKeys creates a fresh field encryption key and the ed25519 pair
// used to sign dashboard requests.
func GenerateAllKeys() (CryptoKeys, error) {
	var keys CryptoKeys

	encryptionKey, err := cipher.GenerateKey()
	if err != nil {
		return keys, fmt.Errorf("failed to generate encryption key: %w", err)
	}

	ed25519Public, ed25519Private, err := auth.GenerateKeyPair()
	if err != nil {
		return keys, fmt.Errorf("failed to generate Ed25519 keys: %w", err)
	}

	keys.EncryptionKey = encryptionKey
	keys.Ed25519Public = ed25519Public
	keys.Ed25519Private = ed25519Private

	return keys, nil
}
