package sqlstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/flowbaker/vault/pkg/domain"
)

// Store persists credential bundles as one JSON document per
// (tenant, integration) row.
type Store struct {
	keeper  *Keeper
	dialect Dialect
	now     func() time.Time
}

func New(keeper *Keeper, dialect Dialect) *Store {
	return &Store{
		keeper:  keeper,
		dialect: dialect,
		now:     time.Now,
	}
}

func (s *Store) Get(ctx context.Context, tenantID string, integrationID domain.IntegrationType) (domain.CredentialBundle, error) {
	db, err := s.keeper.DB(ctx)
	if err != nil {
		return domain.CredentialBundle{}, err
	}

	fields, updatedAt, err := s.selectFields(ctx, db, s.dialect.selectBundle, tenantID, integrationID)
	if err != nil {
		return domain.CredentialBundle{}, err
	}

	return domain.CredentialBundle{
		TenantID:      tenantID,
		IntegrationID: integrationID,
		Fields:        fields,
		UpdatedAt:     updatedAt,
	}, nil
}

func (s *Store) List(ctx context.Context, tenantID string) ([]domain.CredentialBundle, error) {
	db, err := s.keeper.DB(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, s.dialect.selectTenant, tenantID)
	if err != nil {
		return nil, s.dbError(err)
	}
	defer rows.Close()

	var bundles []domain.CredentialBundle
	for rows.Next() {
		var (
			integrationID string
			raw           []byte
			updatedAt     time.Time
		)

		if err := rows.Scan(&integrationID, &raw, &updatedAt); err != nil {
			return nil, s.dbError(err)
		}

		fields, err := decodeFields(raw)
		if err != nil {
			return nil, err
		}

		bundles = append(bundles, domain.CredentialBundle{
			TenantID:      tenantID,
			IntegrationID: domain.IntegrationType(integrationID),
			Fields:        fields,
			UpdatedAt:     updatedAt,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, s.dbError(err)
	}

	return bundles, nil
}

func (s *Store) Upsert(ctx context.Context, tenantID string, integrationID domain.IntegrationType, fields map[string]string) error {
	db, err := s.keeper.DB(ctx)
	if err != nil {
		return err
	}

	err = WithTx(ctx, db, nil, func(ctx context.Context, tx DBTX) error {
		if s.dialect.lockBundle != "" {
			if _, err := tx.ExecContext(ctx, s.dialect.lockBundle, tenantID, string(integrationID)); err != nil {
				return s.dbError(err)
			}
		}

		existing, _, err := s.selectFields(ctx, tx, s.dialect.selectForUpdate, tenantID, integrationID)
		if err != nil && !errors.Is(err, domain.ErrCredentialNotFound) {
			return err
		}

		payload, err := json.Marshal(domain.MergeFields(existing, fields))
		if err != nil {
			return fmt.Errorf("failed to encode credential fields: %w", err)
		}

		if _, err := tx.ExecContext(ctx, s.dialect.upsertBundle, tenantID, string(integrationID), string(payload), s.now().UTC()); err != nil {
			return s.dbError(err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to upsert credential bundle: %w", err)
	}

	return nil
}

func (s *Store) Delete(ctx context.Context, tenantID string, integrationID domain.IntegrationType) error {
	db, err := s.keeper.DB(ctx)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, s.dialect.deleteBundle, tenantID, string(integrationID)); err != nil {
		return fmt.Errorf("failed to delete credential bundle: %w", s.dbError(err))
	}

	return nil
}

func (s *Store) selectFields(ctx context.Context, db DBTX, query string, tenantID string, integrationID domain.IntegrationType) (map[string]string, time.Time, error) {
	var (
		raw       []byte
		updatedAt time.Time
	)

	err := db.QueryRowContext(ctx, query, tenantID, string(integrationID)).Scan(&raw, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, domain.ErrCredentialNotFound
	}
	if err != nil {
		return nil, time.Time{}, s.dbError(err)
	}

	fields, err := decodeFields(raw)
	if err != nil {
		return nil, time.Time{}, err
	}

	return fields, updatedAt, nil
}

// dbError wraps a driver error and flags the shared handle for a health
// check when the driver reports a broken connection.
func (s *Store) dbError(err error) error {
	if errors.Is(err, driver.ErrBadConn) {
		s.keeper.MarkStale()
	}

	return fmt.Errorf("db error: %w", err)
}

func decodeFields(raw []byte) (map[string]string, error) {
	fields := map[string]string{}
	if len(raw) == 0 {
		return fields, nil
	}

	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode credential fields: %w", err)
	}

	return fields, nil
}
