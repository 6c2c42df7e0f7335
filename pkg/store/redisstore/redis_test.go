package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/flowbaker/vault/pkg/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := New(client, Opts{})
	store.now = func() time.Time { return time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC) }

	return store
}

func TestStore_UpsertMergesFields(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Upsert(ctx, "acme", domain.IntegrationType_Snowflake, map[string]string{
		"host":     "acme-xy123",
		"password": "aa:bb",
	}))
	require.NoError(t, store.Upsert(ctx, "acme", domain.IntegrationType_Snowflake, map[string]string{
		"password": "cc:dd",
	}))

	bundle, err := store.Get(ctx, "acme", domain.IntegrationType_Snowflake)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"host": "acme-xy123", "password": "cc:dd"}, bundle.Fields)
	assert.True(t, bundle.UpdatedAt.Equal(time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)))
}

func TestStore_GetMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "acme", domain.IntegrationType_Stripe)
	assert.ErrorIs(t, err, domain.ErrCredentialNotFound)
}

func TestStore_ListIsTenantScoped(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Upsert(ctx, "acme", domain.IntegrationType_Stripe, map[string]string{"secretKey": "a"}))
	require.NoError(t, store.Upsert(ctx, "acme", domain.IntegrationType_NClarity, map[string]string{"apiKey": "b"}))
	require.NoError(t, store.Upsert(ctx, "globex", domain.IntegrationType_Github, map[string]string{"accessToken": "c"}))

	bundles, err := store.List(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, bundles, 2)

	assert.Equal(t, domain.IntegrationType_NClarity, bundles[0].IntegrationID)
	assert.Equal(t, domain.IntegrationType_Stripe, bundles[1].IntegrationID)
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Upsert(ctx, "acme", domain.IntegrationType_Stripe, map[string]string{"secretKey": "a"}))
	require.NoError(t, store.Delete(ctx, "acme", domain.IntegrationType_Stripe))
	require.NoError(t, store.Delete(ctx, "acme", domain.IntegrationType_Stripe))

	_, err := store.Get(ctx, "acme", domain.IntegrationType_Stripe)
	assert.ErrorIs(t, err, domain.ErrCredentialNotFound)

	bundles, err := store.List(ctx, "acme")
	require.NoError(t, err)
	assert.Empty(t, bundles)
}

func TestStore_AuditEvents(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	created := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.RecordAuditEvent(ctx, domain.AuditEvent{
		ID:        "0b6a3c1e-0000-4000-8000-000000000001",
		TenantID:  "acme",
		Actor:     "ops@acme.io",
		Action:    domain.AuditActionSaveConnectorConfig,
		Target:    "acme:stripe",
		Status:    domain.AuditStatusSuccess,
		Metadata:  map[string]string{"fields": "secretKey"},
		CreatedAt: created,
	}))
	require.NoError(t, store.RecordAuditEvent(ctx, domain.AuditEvent{
		TenantID: "acme",
		Action:   domain.AuditActionDeleteConnectorConfig,
		Status:   domain.AuditStatusFail,
	}))

	events, err := store.ListAuditEvents(ctx, "acme", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.AuditActionDeleteConnectorConfig, events[0].Action)
	assert.Equal(t, "ops@acme.io", events[1].Actor)
	assert.Equal(t, "secretKey", events[1].Metadata["fields"])
	assert.True(t, events[1].CreatedAt.Equal(created))

	events, err = store.ListAuditEvents(ctx, "acme", 1)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestStore_AuditEvents_Trimmed(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for i := 0; i < auditRetention+5; i++ {
		require.NoError(t, store.RecordAuditEvent(ctx, domain.AuditEvent{TenantID: "acme", Action: domain.AuditActionSaveConnectorConfig}))
	}

	length, err := store.client.LLen(ctx, store.auditKey("acme")).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(auditRetention), length)
}
