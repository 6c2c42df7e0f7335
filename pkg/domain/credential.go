package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCredentialNotFound = errors.New("credential not found")
)

// CredentialBundle is the persisted form of one integration's credentials.
// Sensitive fields hold the serialized EncryptedField, everything else is
// stored as submitted.
type CredentialBundle struct {
	TenantID      string
	IntegrationID IntegrationType
	Fields        map[string]string
	UpdatedAt     time.Time
}

// Value returns the stored value of a field, or "" when it is absent.
func (b CredentialBundle) Value(field string) string {
	if b.Fields == nil {
		return ""
	}

	return b.Fields[field]
}

// CredentialStore persists bundles keyed by (tenant, integration). It never
// encrypts or decrypts: callers seal sensitive fields before Upsert and open
// them after Get.
type CredentialStore interface {
	Get(ctx context.Context, tenantID string, integrationID IntegrationType) (CredentialBundle, error)
	List(ctx context.Context, tenantID string) ([]CredentialBundle, error)
	// Upsert merges fields into the stored bundle. Present fields overwrite,
	// omitted fields are retained.
	Upsert(ctx context.Context, tenantID string, integrationID IntegrationType, fields map[string]string) error
	Delete(ctx context.Context, tenantID string, integrationID IntegrationType) error
}

// FieldCipher seals and opens individual credential fields.
type FieldCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(field string) (string, error)
}

// MergeFields overlays update onto base and returns a new map.
func MergeFields(base, update map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(update))

	for k, v := range base {
		merged[k] = v
	}

	for k, v := range update {
		merged[k] = v
	}

	return merged
}
