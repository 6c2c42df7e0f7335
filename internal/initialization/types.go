package initialization

import (
	"github.com/flowbaker/vault/internal/scheduler"
	"github.com/flowbaker/vault/pkg/connectors"
	"github.com/flowbaker/vault/pkg/domain"

	"github.com/gofiber/fiber/v3"
)

// CryptoKeys holds the keys printed by keygen
type CryptoKeys struct {
	EncryptionKey  string `json:"encryption_key"`
	Ed25519Public  string `json:"ed25519_public"`
	Ed25519Private string `json:"ed25519_private"`
}

// VaultDependencies is everything serve needs once wiring is done
type VaultDependencies struct {
	Server     *fiber.App
	Aggregator *connectors.Aggregator
	Store      domain.CredentialStore
	// KeepAlive is nil when the store has no long-lived connection
	KeepAlive *scheduler.KeepAliveScheduler

	closeStore func() error
}

// Close releases the store connection.
func (d *VaultDependencies) Close() error {
	if d.closeStore == nil {
		return nil
	}

	return d.closeStore()
}
