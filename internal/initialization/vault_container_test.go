package initialization

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/flowbaker/vault/internal/config"
	"github.com/flowbaker/vault/pkg/audit"
	"github.com/flowbaker/vault/pkg/clients/etl"
	"github.com/flowbaker/vault/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestETLClientOptions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/runs", r.URL.Path)
		assert.True(t, strings.HasPrefix(r.Header.Get("User-Agent"), "flowbaker-vault/"))
		assert.Equal(t, "manual", r.Header.Get("X-Sync-Source"))
		_, _ = w.Write([]byte(`{"id":"run_1","status":"queued"}`))
	}))
	defer server.Close()

	client := etl.NewClient(etlClientOptions(&config.Config{ETLBaseURL: server.URL})...)

	_, err := client.StartRun(context.Background(), etl.StartRunRequest{ConnectorID: "nclarity", AccountID: "acct_1"})
	require.NoError(t, err)
}

func TestOpenStore_MemoryKeepsAuditEvents(t *testing.T) {
	handle, err := OpenStore(context.Background(), &config.Config{StoreDriver: config.StoreDriverMemory})
	require.NoError(t, err)
	t.Cleanup(func() { _ = handle.Close() })

	require.NotNil(t, handle.Audit)
	assert.Nil(t, handle.Migrate)

	trail := audit.NewTrail(handle.Audit)
	trail.Record(context.Background(), audit.Entry{
		TenantID: "acme",
		Action:   domain.AuditActionSaveConnectorConfig,
		Target:   audit.Target("acme", domain.IntegrationType_Stripe),
	})

	events, err := trail.List(context.Background(), "acme", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "acme:stripe", events[0].Target)
}
