package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/flowbaker/vault/pkg/domain"
)

type bundleKey struct {
	tenantID      string
	integrationID domain.IntegrationType
}

// Store keeps bundles and audit events in process memory. Returned bundles
// are copies.
type Store struct {
	mu      sync.RWMutex
	bundles map[bundleKey]domain.CredentialBundle
	events  []domain.AuditEvent
	now     func() time.Time
}

func New() *Store {
	return &Store{
		bundles: make(map[bundleKey]domain.CredentialBundle),
		now:     time.Now,
	}
}

func (s *Store) Get(ctx context.Context, tenantID string, integrationID domain.IntegrationType) (domain.CredentialBundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bundle, ok := s.bundles[bundleKey{tenantID, integrationID}]
	if !ok {
		return domain.CredentialBundle{}, domain.ErrCredentialNotFound
	}

	return copyBundle(bundle), nil
}

func (s *Store) List(ctx context.Context, tenantID string) ([]domain.CredentialBundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var bundles []domain.CredentialBundle
	for key, bundle := range s.bundles {
		if key.tenantID == tenantID {
			bundles = append(bundles, copyBundle(bundle))
		}
	}

	sort.Slice(bundles, func(i, j int) bool {
		return bundles[i].IntegrationID < bundles[j].IntegrationID
	})

	return bundles, nil
}

func (s *Store) Upsert(ctx context.Context, tenantID string, integrationID domain.IntegrationType, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := bundleKey{tenantID, integrationID}
	existing := s.bundles[key]

	s.bundles[key] = domain.CredentialBundle{
		TenantID:      tenantID,
		IntegrationID: integrationID,
		Fields:        domain.MergeFields(existing.Fields, fields),
		UpdatedAt:     s.now().UTC(),
	}

	return nil
}

func (s *Store) Delete(ctx context.Context, tenantID string, integrationID domain.IntegrationType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.bundles, bundleKey{tenantID, integrationID})

	return nil
}

func (s *Store) RecordAuditEvent(ctx context.Context, event domain.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.Metadata != nil {
		event.Metadata = domain.MergeFields(nil, event.Metadata)
	}
	s.events = append(s.events, event)

	return nil
}

func (s *Store) ListAuditEvents(ctx context.Context, tenantID string, limit int) ([]domain.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []domain.AuditEvent
	for i := len(s.events) - 1; i >= 0 && len(events) < limit; i-- {
		if s.events[i].TenantID == tenantID {
			events = append(events, s.events[i])
		}
	}

	return events, nil
}

func copyBundle(b domain.CredentialBundle) domain.CredentialBundle {
	b.Fields = domain.MergeFields(nil, b.Fields)
	return b
}
