package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flowbaker/vault/internal/initialization"
	"github.com/flowbaker/vault/internal/version"
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the vault HTTP service",
		Long:  `Start the vault HTTP service and the store keep-alive job.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}

	return cmd
}

func runServe(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info().Str("version", version.GetShortVersion()).Msg("Starting vault service")

	deps, err := initialization.BuildVaultDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close credential store")
		}
	}()

	if deps.KeepAlive != nil {
		deps.KeepAlive.Start()
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stopCancel()
			deps.KeepAlive.Stop(stopCtx)
		}()
	}

	log.Info().Str("address", cfg.HTTPAddress).Msg("HTTP server listening")

	if err := deps.Server.Listen(cfg.HTTPAddress, fiber.ListenConfig{
		GracefulContext:       ctx,
		DisableStartupMessage: true,
	}); err != nil {
		log.Error().Err(err).Msg("HTTP server failed")
		return err
	}

	log.Info().Msg("Vault service stopped")
	return nil
}
