package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/flowbaker/vault/internal/auth"
	"github.com/flowbaker/vault/internal/controllers"
	"github.com/flowbaker/vault/internal/managers"
	"github.com/flowbaker/vault/internal/metrics"
	"github.com/flowbaker/vault/internal/middlewares"
	"github.com/flowbaker/vault/pkg/audit"
	"github.com/flowbaker/vault/pkg/cipher"
	"github.com/flowbaker/vault/pkg/clients/etl"
	"github.com/flowbaker/vault/pkg/connectors"
	"github.com/flowbaker/vault/pkg/domain"
	"github.com/flowbaker/vault/pkg/integrations/nclarity"
	"github.com/flowbaker/vault/pkg/oauth"
	"github.com/flowbaker/vault/pkg/store/memory"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rejectingVerifier struct{}

func (rejectingVerifier) Verify(ctx context.Context, descriptor domain.ConnectionDescriptor, timeout time.Duration) domain.VerifyResult {
	return domain.ResultAuthInvalid()
}

type testServer struct {
	app     *fiber.App
	signer  *auth.RequestSigner
	headers map[string]string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(source.Close)

	etlService := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"run_1","status":"success","rowCount":5}`))
	}))
	t.Cleanup(etlService.Close)

	key, err := cipher.GenerateKey()
	require.NoError(t, err)
	c, err := cipher.NewAESCipher(key)
	require.NoError(t, err)

	publicKey, privateKey, err := auth.GenerateKeyPair()
	require.NoError(t, err)
	signer, err := auth.NewRequestSigner(privateKey)
	require.NoError(t, err)
	verifier, err := auth.NewSignatureVerifier(publicKey)
	require.NoError(t, err)

	store := memory.New()
	m := metrics.New()
	trail := audit.NewTrail(store)

	selector := domain.NewIntegrationSelector()
	selector.RegisterConnector(nclarity.NewNClarityConnectionTester(domain.IntegrationDeps{BaseURL: source.URL}))

	apps := oauth.NewAppRegistry(oauth.AppRegistryDependencies{Store: store, Cipher: c})
	tokens := oauth.NewHTTPTokenClient()

	warehouseManager := managers.NewWarehouseManager(managers.WarehouseManagerDependencies{
		Store:    store,
		Cipher:   c,
		Verifier: rejectingVerifier{},
		Coordinator: oauth.NewCoordinator(oauth.CoordinatorDependencies{
			Store:    store,
			Cipher:   c,
			Verifier: rejectingVerifier{},
			Apps:     apps,
			Tokens:   tokens,
			Observer: m,
		}),
		Apps:     apps,
		Tokens:   tokens,
		Observer: m,
		Audit:    trail,
	})

	app := NewHTTPServer(HTTPServerDependencies{
		ConnectorController: controllers.NewConnectorController(controllers.ConnectorControllerDependencies{
			Aggregator: connectors.NewAggregator(connectors.AggregatorDependencies{
				Selector: selector,
				Store:    store,
				Cipher:   c,
				Observer: m,
				Audit:    trail,
			}),
			SyncManager: managers.NewSyncManager(managers.SyncManagerDependencies{
				Selector: selector,
				Client:   etl.NewClient(etl.WithBaseURL(etlService.URL)),
			}),
		}),
		WarehouseController: controllers.NewWarehouseController(controllers.WarehouseControllerDependencies{
			WarehouseManager: warehouseManager,
		}),
		AuditController: controllers.NewAuditController(controllers.AuditControllerDependencies{
			Trail: trail,
		}),
		SignatureVerifier: verifier,
		Metrics:           m,
	})

	return &testServer{app: app, signer: signer}
}

func (s *testServer) do(t *testing.T, method, path string, body any, signed bool) (int, map[string]any) {
	t.Helper()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for key, value := range s.headers {
		req.Header.Set(key, value)
	}

	if signed {
		signedPath, _, _ := strings.Cut(path, "?")
		for key, value := range s.signer.Sign(method, signedPath, payload) {
			req.Header.Set(key, value)
		}
	}

	resp, err := s.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]any
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &decoded)
	}

	return resp.StatusCode, decoded
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/health", nil, false)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])
}

func TestServer_RejectsUnsignedRequests(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/tenants/acct_1/connectors/status", nil, false)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid API signature", body["error"])
}

func TestServer_ConnectorLifecycle(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/tenants/acct_1/connectors/status", nil, true)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"nclarity": "not_configured"}, body["statuses"])

	status, _ = s.do(t, http.MethodPut, "/tenants/acct_1/connectors/nclarity", map[string]string{"apiKey": "good"}, true)
	require.Equal(t, http.StatusOK, status)

	status, body = s.do(t, http.MethodGet, "/tenants/acct_1/connectors/nclarity/status", nil, true)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "connected", body["status"])

	status, body = s.do(t, http.MethodPost, "/tenants/acct_1/connectors/nclarity/test", map[string]string{"apiKey": "bad"}, true)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["success"])

	status, body = s.do(t, http.MethodPost, "/tenants/acct_1/connectors/nclarity/sync", map[string]string{"refreshWindow": "7d"}, true)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(5), body["rowCount"])

	status, _ = s.do(t, http.MethodDelete, "/tenants/acct_1/connectors/nclarity", nil, true)
	assert.Equal(t, http.StatusNoContent, status)

	status, body = s.do(t, http.MethodGet, "/tenants/acct_1/connectors/salesforce/status", nil, true)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "unknown_connector", body["status"])
}

func TestServer_SyncRequiresRefreshWindow(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/tenants/acct_1/connectors/nclarity/sync", map[string]string{}, true)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid field: RefreshWindow", body["error"])
}

func TestServer_Warehouse(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPut, "/tenants/acct_1/warehouse", map[string]any{
		"authMethod": "password",
		"fields":     map[string]string{"host": "acme"},
	}, true)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "incomplete credentials: missing username, password", body["error"])

	status, _ = s.do(t, http.MethodPut, "/tenants/acct_1/warehouse", map[string]any{
		"authMethod": "password",
		"fields":     map[string]string{"host": "acme", "username": "loader", "password": "pw"},
	}, true)
	require.Equal(t, http.StatusOK, status)

	status, body = s.do(t, http.MethodGet, "/tenants/acct_1/warehouse/status", nil, true)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "auth_invalid", body["status"])
	assert.Equal(t, false, body["connected"])

	status, body = s.do(t, http.MethodGet, "/tenants/acct_1/warehouse/oauth/authorize", nil, true)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "OAuth application not configured", body["error"])
}

func TestServer_WarehouseStatusBeforeOAuthCallback(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, http.MethodPut, "/tenants/acct_1/warehouse/oauth-app", map[string]string{
		"clientId":     "client-1",
		"clientSecret": "secret",
		"authUrl":      "https://idp.example.com/authorize",
		"tokenUrl":     "https://idp.example.com/token",
		"redirectUri":  "https://app.example.com/oauth/callback",
		"host":         "acme-xy123",
		"username":     "loader",
		"role":         "LOADER",
		"warehouse":    "COMPUTE_WH",
	}, true)
	require.Equal(t, http.StatusOK, status)

	status, body := s.do(t, http.MethodGet, "/tenants/acct_1/warehouse/status", nil, true)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "not_configured", body["status"])
	assert.Equal(t, false, body["connected"])
}

func TestServer_AuditTrail(t *testing.T) {
	s := newTestServer(t)
	s.headers = map[string]string{middlewares.ActorHeader: "ops@acme.io"}

	status, _ := s.do(t, http.MethodPut, "/tenants/acct_1/connectors/nclarity", map[string]string{"apiKey": "good"}, true)
	require.Equal(t, http.StatusOK, status)

	s.headers = nil
	status, _ = s.do(t, http.MethodDelete, "/tenants/acct_1/warehouse", nil, true)
	require.Equal(t, http.StatusNoContent, status)

	status, body := s.do(t, http.MethodGet, "/tenants/acct_1/audit?limit=10", nil, true)
	require.Equal(t, http.StatusOK, status)

	events, ok := body["events"].([]any)
	require.True(t, ok)
	require.Len(t, events, 2)

	deleted := events[0].(map[string]any)
	assert.Equal(t, "delete_warehouse_config", deleted["action"])
	assert.Equal(t, "system", deleted["actor"])

	saved := events[1].(map[string]any)
	assert.Equal(t, "save_connector_config", saved["action"])
	assert.Equal(t, "ops@acme.io", saved["actor"])
	assert.Equal(t, "acct_1:nclarity", saved["target"])
	assert.Equal(t, "success", saved["status"])

	status, body = s.do(t, http.MethodGet, "/tenants/acct_1/audit?limit=1", nil, true)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["events"], 1)

	status, _ = s.do(t, http.MethodGet, "/tenants/acct_1/audit", nil, false)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestServer_Metrics(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodGet, "/tenants/acct_1/connectors/status", nil, true)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `vault_connector_status_total{integration="nclarity",status="not_configured"} 1`)
}
