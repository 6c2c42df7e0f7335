package domain

import (
	"context"
	"time"
)

type AuditAction string

const (
	AuditActionSaveConnectorConfig   AuditAction = "save_connector_config"
	AuditActionDeleteConnectorConfig AuditAction = "delete_connector_config"
	AuditActionSaveWarehouseConfig   AuditAction = "save_warehouse_config"
	AuditActionDeleteWarehouseConfig AuditAction = "delete_warehouse_config"
	AuditActionConnectWarehouseOAuth AuditAction = "connect_warehouse_oauth"
)

type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFail    AuditStatus = "fail"
)

// SystemActor is recorded when a change carries no caller identity.
const SystemActor = "system"

// MaxAuditListLimit bounds how many events one listing returns.
const MaxAuditListLimit = 100

// AuditEvent records one credential mutation. Metadata never holds secret
// values, only field names and outcome details.
type AuditEvent struct {
	ID        string            `json:"id"`
	TenantID  string            `json:"tenantId"`
	Actor     string            `json:"actor"`
	Action    AuditAction       `json:"action"`
	Target    string            `json:"target"`
	Status    AuditStatus       `json:"status"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// AuditLog appends events and lists a tenant's most recent ones, newest
// first.
type AuditLog interface {
	RecordAuditEvent(ctx context.Context, event AuditEvent) error
	ListAuditEvents(ctx context.Context, tenantID string, limit int) ([]AuditEvent, error)
}

type actorKey struct{}

// WithActor attaches the identity of whoever triggered the request.
func WithActor(ctx context.Context, actor string) context.Context {
	if actor == "" {
		return ctx
	}

	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFromContext(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}

	return SystemActor
}
