package managers

import (
	"context"
	"fmt"

	"github.com/flowbaker/vault/pkg/clients/etl"
	"github.com/flowbaker/vault/pkg/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type SyncRequest struct {
	RefreshWindow string `json:"refreshWindow" validate:"required"`
}

type SyncManagerDependencies struct {
	Selector domain.IntegrationSelector
	Client   etl.ClientInterface
}

// SyncManager triggers a manual sync of one connector on the ETL service and
// waits for it to finish.
type SyncManager struct {
	selector domain.IntegrationSelector
	client   etl.ClientInterface
}

func NewSyncManager(deps SyncManagerDependencies) *SyncManager {
	return &SyncManager{
		selector: deps.Selector,
		client:   deps.Client,
	}
}

func (m *SyncManager) Trigger(ctx context.Context, tenantID string, integrationID domain.IntegrationType, req SyncRequest) (etl.SyncResult, error) {
	if _, err := m.selector.SelectConnector(ctx, domain.SelectIntegrationParams{IntegrationType: integrationID}); err != nil {
		return etl.SyncResult{}, err
	}

	manualSyncID := uuid.NewString()

	log.Info().
		Str("tenant_id", tenantID).
		Str("integration_id", string(integrationID)).
		Str("refresh_window", req.RefreshWindow).
		Str("manual_sync_id", manualSyncID).
		Msg("Starting manual sync")

	result, err := m.client.RunAndWait(ctx, etl.StartRunRequest{
		ConnectorID:   string(integrationID),
		AccountID:     tenantID,
		RefreshWindow: req.RefreshWindow,
		ManualSyncID:  manualSyncID,
	})
	if etl.IsNotFoundError(err) {
		return etl.SyncResult{}, fmt.Errorf("%w: etl service has no connector %s", domain.ErrIntegrationNotFound, integrationID)
	}
	if err != nil {
		return etl.SyncResult{}, fmt.Errorf("failed to run sync: %w", err)
	}

	log.Info().
		Str("manual_sync_id", manualSyncID).
		Str("status", string(result.Status)).
		Int("row_count", result.RowCount).
		Msg("Manual sync completed")

	return result, nil
}
