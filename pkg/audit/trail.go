// Package audit records who changed which credentials and whether the change
// went through.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/flowbaker/vault/pkg/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Trail writes audit events to a log. A failed write is logged and never
// fails the change being audited. A nil Trail records nothing.
type Trail struct {
	log domain.AuditLog
	now func() time.Time
}

func NewTrail(auditLog domain.AuditLog) *Trail {
	return &Trail{
		log: auditLog,
		now: time.Now,
	}
}

type Entry struct {
	TenantID string
	Action   domain.AuditAction
	Target   string
	Err      error
	Metadata map[string]string
}

// Target joins a tenant and an integration the way events name what changed.
func Target(tenantID string, integrationID domain.IntegrationType) string {
	return fmt.Sprintf("%s:%s", tenantID, integrationID)
}

func (t *Trail) Record(ctx context.Context, entry Entry) {
	if t == nil || t.log == nil {
		return
	}

	event := domain.AuditEvent{
		ID:        uuid.NewString(),
		TenantID:  entry.TenantID,
		Actor:     domain.ActorFromContext(ctx),
		Action:    entry.Action,
		Target:    entry.Target,
		Status:    domain.AuditStatusSuccess,
		Metadata:  entry.Metadata,
		CreatedAt: t.now().UTC(),
	}

	if entry.Err != nil {
		event.Status = domain.AuditStatusFail
		event.Metadata = domain.MergeFields(entry.Metadata, map[string]string{"error": entry.Err.Error()})
	}

	// The change has already happened; losing the request context must not
	// lose its record.
	if err := t.log.RecordAuditEvent(context.WithoutCancel(ctx), event); err != nil {
		log.Error().
			Err(err).
			Str("tenant_id", event.TenantID).
			Str("action", string(event.Action)).
			Str("target", event.Target).
			Msg("Failed to write audit event")
	}
}

func (t *Trail) List(ctx context.Context, tenantID string, limit int) ([]domain.AuditEvent, error) {
	if t == nil || t.log == nil {
		return []domain.AuditEvent{}, nil
	}

	if limit <= 0 || limit > domain.MaxAuditListLimit {
		limit = domain.MaxAuditListLimit
	}

	events, err := t.log.ListAuditEvents(ctx, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}

	if events == nil {
		events = []domain.AuditEvent{}
	}

	return events, nil
}
