package managers

import (
	"context"
	"fmt"
	"testing"

	"github.com/flowbaker/vault/pkg/clients/etl"
	"github.com/flowbaker/vault/pkg/domain"
	"github.com/flowbaker/vault/pkg/integrations/nclarity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubETL struct {
	requests []etl.StartRunRequest
	err      error
}

func (s *stubETL) StartRun(ctx context.Context, req etl.StartRunRequest) (*etl.Run, error) {
	return nil, nil
}

func (s *stubETL) GetRun(ctx context.Context, runID string) (*etl.Run, error) {
	return nil, nil
}

func (s *stubETL) RunAndWait(ctx context.Context, req etl.StartRunRequest) (etl.SyncResult, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return etl.SyncResult{}, s.err
	}
	return etl.SyncResult{ConnectorID: req.ConnectorID, Status: etl.RunStatusSuccess, RowCount: 12}, nil
}

func TestSyncManager_Trigger(t *testing.T) {
	selector := domain.NewIntegrationSelector()
	selector.RegisterConnector(nclarity.NewNClarityConnectionTester(domain.IntegrationDeps{}))

	client := &stubETL{}
	manager := NewSyncManager(SyncManagerDependencies{Selector: selector, Client: client})

	result, err := manager.Trigger(context.Background(), testTenant, domain.IntegrationType_NClarity, SyncRequest{RefreshWindow: "30d"})
	require.NoError(t, err)
	assert.Equal(t, 12, result.RowCount)

	require.Len(t, client.requests, 1)
	assert.Equal(t, "nclarity", client.requests[0].ConnectorID)
	assert.Equal(t, testTenant, client.requests[0].AccountID)
	assert.Equal(t, "30d", client.requests[0].RefreshWindow)
	assert.NotEmpty(t, client.requests[0].ManualSyncID)

	_, err = manager.Trigger(context.Background(), testTenant, "salesforce", SyncRequest{RefreshWindow: "30d"})
	assert.ErrorIs(t, err, domain.ErrIntegrationNotFound)
	assert.Len(t, client.requests, 1)
}

func TestSyncManager_Trigger_UnknownToETLService(t *testing.T) {
	selector := domain.NewIntegrationSelector()
	selector.RegisterConnector(nclarity.NewNClarityConnectionTester(domain.IntegrationDeps{}))

	client := &stubETL{err: fmt.Errorf("failed to start run: %w", &etl.Error{StatusCode: 404, Message: "no such connector"})}
	manager := NewSyncManager(SyncManagerDependencies{Selector: selector, Client: client})

	_, err := manager.Trigger(context.Background(), testTenant, domain.IntegrationType_NClarity, SyncRequest{RefreshWindow: "7d"})
	assert.ErrorIs(t, err, domain.ErrIntegrationNotFound)
	assert.Contains(t, err.Error(), "nclarity")

	client.err = &etl.Error{StatusCode: 401, Message: "bad token"}

	_, err = manager.Trigger(context.Background(), testTenant, domain.IntegrationType_NClarity, SyncRequest{RefreshWindow: "7d"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrIntegrationNotFound)
	assert.True(t, etl.IsAuthError(err))
}
