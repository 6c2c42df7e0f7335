package cli

import (
	"fmt"
	"os"

	"github.com/flowbaker/vault/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "vault",
		Short: "Flowbaker credential vault",
		Long: `The credential vault stores per-tenant warehouse and source connector credentials
encrypted at rest and verifies that they still open a connection.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	rootCmd.AddCommand(NewServeCommand())
	rootCmd.AddCommand(NewStatusCommand())
	rootCmd.AddCommand(NewKeygenCommand())
	rootCmd.AddCommand(NewMigrateCommand())
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}

// loadConfig reads configuration and applies the log level. --debug wins
// over LOG_LEVEL.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}

	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		level = zerolog.DebugLevel
	}

	zerolog.SetGlobalLevel(level)

	return cfg, nil
}

// Execute runs the root command
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
