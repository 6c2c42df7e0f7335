package cli

import (
	"context"
	"fmt"

	"github.com/flowbaker/vault/internal/initialization"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the credential store schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd)
		},
	}

	return cmd
}

func runMigrate(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := context.Background()

	handle, err := initialization.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := handle.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close credential store")
		}
	}()

	if handle.Migrate == nil {
		fmt.Printf("Store driver %q has no schema to migrate\n", cfg.StoreDriver)
		return nil
	}

	if err := handle.Migrate(ctx); err != nil {
		return err
	}

	fmt.Printf("✅ %s store schema is up to date\n", cfg.StoreDriver)
	return nil
}
