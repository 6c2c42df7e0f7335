package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flowbaker/vault/pkg/domain"
	"github.com/flowbaker/vault/pkg/store/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingLog struct {
	calls int
}

func (f *failingLog) RecordAuditEvent(ctx context.Context, event domain.AuditEvent) error {
	f.calls++
	return errors.New("audit table missing")
}

func (f *failingLog) ListAuditEvents(ctx context.Context, tenantID string, limit int) ([]domain.AuditEvent, error) {
	return nil, errors.New("audit table missing")
}

func TestTrail_Record(t *testing.T) {
	store := memory.New()
	trail := NewTrail(store)
	trail.now = func() time.Time { return time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC) }

	ctx := domain.WithActor(context.Background(), "ops@acme.io")
	trail.Record(ctx, Entry{
		TenantID: "acme",
		Action:   domain.AuditActionSaveConnectorConfig,
		Target:   Target("acme", domain.IntegrationType_Stripe),
		Metadata: map[string]string{"fields": "secretKey"},
	})
	trail.Record(context.Background(), Entry{
		TenantID: "acme",
		Action:   domain.AuditActionDeleteConnectorConfig,
		Target:   Target("acme", domain.IntegrationType_Stripe),
		Err:      errors.New("db down"),
	})

	events, err := trail.List(context.Background(), "acme", 0)
	require.NoError(t, err)
	require.Len(t, events, 2)

	failed := events[0]
	assert.Equal(t, domain.AuditActionDeleteConnectorConfig, failed.Action)
	assert.Equal(t, domain.AuditStatusFail, failed.Status)
	assert.Equal(t, domain.SystemActor, failed.Actor)
	assert.Equal(t, "db down", failed.Metadata["error"])

	saved := events[1]
	_, err = uuid.Parse(saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "acme", saved.TenantID)
	assert.Equal(t, "ops@acme.io", saved.Actor)
	assert.Equal(t, "acme:stripe", saved.Target)
	assert.Equal(t, domain.AuditStatusSuccess, saved.Status)
	assert.Equal(t, "secretKey", saved.Metadata["fields"])
	assert.Equal(t, time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC), saved.CreatedAt)
}

func TestTrail_Record_WriteFailureIsSwallowed(t *testing.T) {
	sink := &failingLog{}
	trail := NewTrail(sink)

	assert.NotPanics(t, func() {
		trail.Record(context.Background(), Entry{TenantID: "acme", Action: domain.AuditActionSaveWarehouseConfig})
	})
	assert.Equal(t, 1, sink.calls)

	_, err := trail.List(context.Background(), "acme", 10)
	assert.ErrorContains(t, err, "failed to list audit events")
}

func TestTrail_Nil(t *testing.T) {
	var trail *Trail

	trail.Record(context.Background(), Entry{TenantID: "acme"})

	events, err := trail.List(context.Background(), "acme", 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestActorFromContext(t *testing.T) {
	assert.Equal(t, domain.SystemActor, domain.ActorFromContext(context.Background()))
	assert.Equal(t, domain.SystemActor, domain.ActorFromContext(domain.WithActor(context.Background(), "")))
	assert.Equal(t, "ops@acme.io", domain.ActorFromContext(domain.WithActor(context.Background(), "ops@acme.io")))
}
