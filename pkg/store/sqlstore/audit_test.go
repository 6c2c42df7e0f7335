package sqlstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/flowbaker/vault/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	pgInsertAudit = `(?s)^INSERT INTO audit_events \(id, tenant_id, actor, action, target, status, metadata, created_at\)`
	pgSelectAudit = `(?s)^SELECT id, actor, action, target, status, metadata, created_at FROM audit_events.*ORDER BY created_at DESC LIMIT \$2$`
)

func TestStore_RecordAuditEvent(t *testing.T) {
	store, mock := newStoreWithMock(t, PostgresDialect)

	created := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec(pgInsertAudit).
		WithArgs(
			"3f1c9a52-7d4e-4b8a-9c61-2a4f0e9b7d10",
			"acme",
			"ops@acme.io",
			"save_connector_config",
			"acme:stripe",
			"success",
			`{"fields":"secretKey"}`,
			created,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.RecordAuditEvent(context.Background(), domain.AuditEvent{
		ID:        "3f1c9a52-7d4e-4b8a-9c61-2a4f0e9b7d10",
		TenantID:  "acme",
		Actor:     "ops@acme.io",
		Action:    domain.AuditActionSaveConnectorConfig,
		Target:    "acme:stripe",
		Status:    domain.AuditStatusSuccess,
		Metadata:  map[string]string{"fields": "secretKey"},
		CreatedAt: created,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_RecordAuditEvent_DBError(t *testing.T) {
	store, mock := newStoreWithMock(t, PostgresDialect)

	mock.ExpectExec(pgInsertAudit).
		WithArgs(sqlmock.AnyArg(), "acme", "system", "delete_warehouse_config", "acme:snowflake", "fail", `{}`, sqlmock.AnyArg()).
		WillReturnError(errors.New("relation audit_events does not exist"))

	err := store.RecordAuditEvent(context.Background(), domain.AuditEvent{
		ID:       "id-1",
		TenantID: "acme",
		Actor:    domain.SystemActor,
		Action:   domain.AuditActionDeleteWarehouseConfig,
		Target:   "acme:snowflake",
		Status:   domain.AuditStatusFail,
	})
	assert.ErrorContains(t, err, "failed to record audit event")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListAuditEvents(t *testing.T) {
	store, mock := newStoreWithMock(t, PostgresDialect)

	newer := time.Date(2026, 10, 19, 9, 5, 0, 0, time.UTC)
	older := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(pgSelectAudit).
		WithArgs("acme", 100).
		WillReturnRows(sqlmock.NewRows([]string{"id", "actor", "action", "target", "status", "metadata", "created_at"}).
			AddRow("id-2", "system", "delete_connector_config", "acme:stripe", "fail", []byte(`{"error":"db down"}`), newer).
			AddRow("id-1", "ops@acme.io", "save_connector_config", "acme:stripe", "success", []byte(`{}`), older))

	events, err := store.ListAuditEvents(context.Background(), "acme", 100)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, domain.AuditEvent{
		ID:        "id-2",
		TenantID:  "acme",
		Actor:     "system",
		Action:    domain.AuditActionDeleteConnectorConfig,
		Target:    "acme:stripe",
		Status:    domain.AuditStatusFail,
		Metadata:  map[string]string{"error": "db down"},
		CreatedAt: newer,
	}, events[0])
	assert.Nil(t, events[1].Metadata)
	assert.Equal(t, domain.AuditStatusSuccess, events[1].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Snowflake_RecordAuditEventParsesJSON(t *testing.T) {
	store, mock := newStoreWithMock(t, SnowflakeDialect)

	mock.ExpectExec(`(?s)^INSERT INTO AUDIT_EVENTS .*PARSE_JSON\(\?\)`).
		WithArgs("id-1", "acme", "system", "connect_warehouse_oauth", "acme:snowflake", "success", `{}`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.RecordAuditEvent(context.Background(), domain.AuditEvent{
		ID:       "id-1",
		TenantID: "acme",
		Actor:    domain.SystemActor,
		Action:   domain.AuditActionConnectWarehouseOAuth,
		Target:   "acme:snowflake",
		Status:   domain.AuditStatusSuccess,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
