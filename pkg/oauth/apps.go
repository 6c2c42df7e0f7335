package oauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/flowbaker/vault/pkg/cipher"
	"github.com/flowbaker/vault/pkg/domain"
)

// AppSensitiveFields are encrypted in the registration bundle.
var AppSensitiveFields = []string{domain.FieldClientSecret}

var appRequiredFields = []string{
	domain.FieldClientID,
	domain.FieldClientSecret,
	domain.FieldAuthURL,
	domain.FieldTokenURL,
	domain.FieldRedirectURI,
}

// DefaultScope is the Snowflake scope that lets the session assume any role
// granted to the user.
func DefaultScope(accountURL string) string {
	return strings.TrimSuffix(accountURL, "/") + "/session:role-any"
}

type AppRegistryDependencies struct {
	Store  domain.CredentialStore
	Cipher domain.FieldCipher
}

// AppRegistry reads and writes a tenant's OAuth application registration.
type AppRegistry struct {
	store  domain.CredentialStore
	cipher domain.FieldCipher
}

func NewAppRegistry(deps AppRegistryDependencies) *AppRegistry {
	return &AppRegistry{
		store:  deps.Store,
		cipher: deps.Cipher,
	}
}

// Load returns the decrypted registration. A missing bundle or a missing
// field both yield domain.ErrOAuthAppNotConfigured.
func (r *AppRegistry) Load(ctx context.Context, tenantID string) (domain.OAuthApp, error) {
	bundle, err := r.store.Get(ctx, tenantID, domain.IntegrationType_SnowflakeOAuthApp)
	if errors.Is(err, domain.ErrCredentialNotFound) {
		return domain.OAuthApp{}, domain.ErrOAuthAppNotConfigured
	}
	if err != nil {
		return domain.OAuthApp{}, fmt.Errorf("failed to load oauth application: %w", err)
	}

	fields, err := cipher.OpenFields(r.cipher, bundle.Fields, AppSensitiveFields)
	if err != nil {
		return domain.OAuthApp{}, fmt.Errorf("failed to decrypt oauth application: %w", err)
	}

	for _, field := range appRequiredFields {
		if strings.TrimSpace(fields[field]) == "" {
			return domain.OAuthApp{}, fmt.Errorf("%w: missing %s", domain.ErrOAuthAppNotConfigured, field)
		}
	}

	return domain.OAuthApp{
		ClientID:     fields[domain.FieldClientID],
		ClientSecret: fields[domain.FieldClientSecret],
		AuthURL:      fields[domain.FieldAuthURL],
		TokenURL:     fields[domain.FieldTokenURL],
		RedirectURI:  fields[domain.FieldRedirectURI],
		Scope:        fields[domain.FieldScope],
	}, nil
}

// Save validates and stores the registration with the client secret sealed.
func (r *AppRegistry) Save(ctx context.Context, tenantID string, app domain.OAuthApp) error {
	fields := map[string]string{
		domain.FieldClientID:     strings.TrimSpace(app.ClientID),
		domain.FieldClientSecret: app.ClientSecret,
		domain.FieldAuthURL:      strings.TrimSpace(app.AuthURL),
		domain.FieldTokenURL:     strings.TrimSpace(app.TokenURL),
		domain.FieldRedirectURI:  strings.TrimSpace(app.RedirectURI),
		domain.FieldScope:        strings.TrimSpace(app.Scope),
	}

	// A blank secret keeps the stored one.
	if fields[domain.FieldClientSecret] == "" {
		existing, err := r.store.Get(ctx, tenantID, domain.IntegrationType_SnowflakeOAuthApp)
		if err != nil && !errors.Is(err, domain.ErrCredentialNotFound) {
			return fmt.Errorf("failed to load oauth application: %w", err)
		}
		if existing.Value(domain.FieldClientSecret) != "" {
			delete(fields, domain.FieldClientSecret)
		}
	}

	var missing []string
	for _, field := range appRequiredFields {
		if value, ok := fields[field]; ok && value == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return &domain.IncompleteCredentialsError{Missing: missing}
	}

	sealed, err := cipher.SealFields(r.cipher, fields, AppSensitiveFields)
	if err != nil {
		return fmt.Errorf("failed to encrypt oauth application: %w", err)
	}

	if err := r.store.Upsert(ctx, tenantID, domain.IntegrationType_SnowflakeOAuthApp, sealed); err != nil {
		return fmt.Errorf("failed to save oauth application: %w", err)
	}

	return nil
}
