package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/flowbaker/vault/internal/initialization"
	"github.com/flowbaker/vault/pkg/domain"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewStatusCommand() *cobra.Command {
	var tenantID string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show connector statuses for a tenant",
		Long:  `Run every connector check for one tenant against the configured store and print the results.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, tenantID)
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant ID to check")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

func runStatus(cmd *cobra.Command, tenantID string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := context.Background()

	deps, err := initialization.BuildVaultDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close credential store")
		}
	}()

	statuses := deps.Aggregator.StatusesForTenant(ctx, tenantID)

	fmt.Printf("Connector statuses for %s\n", tenantID)
	for _, id := range sortedIntegrations(statuses) {
		fmt.Printf("   %s %-12s %s\n", statusMark(statuses[id]), id, statuses[id])
	}

	return nil
}

func sortedIntegrations(statuses map[domain.IntegrationType]domain.ConnectorStatus) []domain.IntegrationType {
	ids := make([]domain.IntegrationType, 0, len(statuses))
	for id := range statuses {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}

func statusMark(status domain.ConnectorStatus) string {
	switch status {
	case domain.ConnectorStatusConnected:
		return "✅"
	case domain.ConnectorStatusNotConfigured:
		return "➖"
	default:
		return "❌"
	}
}
