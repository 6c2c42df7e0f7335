package cli

import (
	"fmt"

	"github.com/flowbaker/vault/internal/initialization"
	"github.com/spf13/cobra"
)

func NewKeygenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an encryption key and a request signing key pair",
		Long: `Generate a fresh AES-256 key for credential fields and an Ed25519 key pair for
request signatures. The vault needs ENCRYPTION_KEY and API_SIGNING_PUBLIC_KEY; the
private key belongs to the dashboard backend that signs requests.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeygen()
		},
	}

	return cmd
}

func runKeygen() error {
	keys, err := initialization.GenerateAllKeys()
	if err != nil {
		return err
	}

	fmt.Println("🔑 Generated vault keys")
	fmt.Println()
	fmt.Printf("ENCRYPTION_KEY=%s\n", keys.EncryptionKey)
	fmt.Printf("API_SIGNING_PUBLIC_KEY=%s\n", keys.Ed25519Public)
	fmt.Println()
	fmt.Println("Dashboard signing key (keep it out of the vault environment):")
	fmt.Printf("API_SIGNING_PRIVATE_KEY=%s\n", keys.Ed25519Private)

	return nil
}
