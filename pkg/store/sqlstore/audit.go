package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/flowbaker/vault/pkg/domain"
)

func (s *Store) RecordAuditEvent(ctx context.Context, event domain.AuditEvent) error {
	db, err := s.keeper.DB(ctx)
	if err != nil {
		return err
	}

	metadata := event.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}

	payload, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to encode audit metadata: %w", err)
	}

	_, err = db.ExecContext(ctx, s.dialect.insertAudit,
		event.ID,
		event.TenantID,
		event.Actor,
		string(event.Action),
		event.Target,
		string(event.Status),
		string(payload),
		event.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record audit event: %w", s.dbError(err))
	}

	return nil
}

func (s *Store) ListAuditEvents(ctx context.Context, tenantID string, limit int) ([]domain.AuditEvent, error) {
	db, err := s.keeper.DB(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, s.dialect.selectAudit, tenantID, limit)
	if err != nil {
		return nil, s.dbError(err)
	}
	defer rows.Close()

	var events []domain.AuditEvent
	for rows.Next() {
		var (
			event     domain.AuditEvent
			action    string
			status    string
			raw       []byte
			createdAt time.Time
		)

		if err := rows.Scan(&event.ID, &event.Actor, &action, &event.Target, &status, &raw, &createdAt); err != nil {
			return nil, s.dbError(err)
		}

		metadata, err := decodeFields(raw)
		if err != nil {
			return nil, err
		}

		event.TenantID = tenantID
		event.Action = domain.AuditAction(action)
		event.Status = domain.AuditStatus(status)
		event.CreatedAt = createdAt
		if len(metadata) > 0 {
			event.Metadata = metadata
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, s.dbError(err)
	}

	return events, nil
}
