package managers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flowbaker/vault/pkg/audit"
	"github.com/flowbaker/vault/pkg/authmethod"
	"github.com/flowbaker/vault/pkg/cipher"
	"github.com/flowbaker/vault/pkg/connectors"
	"github.com/flowbaker/vault/pkg/domain"
	"github.com/flowbaker/vault/pkg/integrations/snowflake"
	"github.com/flowbaker/vault/pkg/oauth"
	"github.com/rs/zerolog/log"
)

const (
	DefaultVerifyTimeout = 15 * time.Second

	// Snowflake omits expires_in on some grants; sessions last an hour.
	defaultTokenLifetime = time.Hour
)

// Warehouse status values beyond the verification kinds.
const (
	WarehouseStatusNotConfigured         = "not_configured"
	WarehouseStatusInvalidCredentials    = "invalid_credentials"
	WarehouseStatusDecryptionFailed      = "decryption_failed"
	WarehouseStatusRefreshFailed         = "refresh_failed"
	WarehouseStatusOAuthAppNotConfigured = "oauth_app_not_configured"
)

var warehouseFields = []string{
	domain.FieldHost,
	domain.FieldUsername,
	domain.FieldPassword,
	domain.FieldPrivateKey,
	domain.FieldPassphrase,
	domain.FieldAccessToken,
	domain.FieldRefreshToken,
	domain.FieldRole,
	domain.FieldWarehouse,
	domain.FieldDatabase,
	domain.FieldSchema,
}

type WarehouseConfig struct {
	AuthMethod string            `json:"authMethod" validate:"required,oneof=password keypair oauth"`
	Fields     map[string]string `json:"fields" validate:"required"`
}

type OAuthAppConfig struct {
	ClientID     string `json:"clientId" validate:"required"`
	ClientSecret string `json:"clientSecret"`
	AuthURL      string `json:"authUrl" validate:"required,url"`
	TokenURL     string `json:"tokenUrl" validate:"required,url"`
	RedirectURI  string `json:"redirectUri" validate:"required,url"`
	Scope        string `json:"scope"`
	Host         string `json:"host" validate:"required"`
	Username     string `json:"username" validate:"required"`
	Role         string `json:"role" validate:"required"`
	Warehouse    string `json:"warehouse" validate:"required"`
}

type WarehouseStatus struct {
	Status     string            `json:"status"`
	Connected  bool              `json:"connected"`
	AuthMethod domain.AuthMethod `json:"authMethod,omitempty"`
	Message    string            `json:"message"`
	Refreshed  bool              `json:"refreshed,omitempty"`
}

// WarehouseObserver is told how each status check ended.
type WarehouseObserver interface {
	ObserveWarehouseStatus(status string, duration time.Duration)
}

type WarehouseManagerDependencies struct {
	Store         domain.CredentialStore
	Cipher        domain.FieldCipher
	Verifier      domain.ConnectionVerifier
	Coordinator   *oauth.Coordinator
	Apps          *oauth.AppRegistry
	Tokens        oauth.TokenClient
	VerifyTimeout time.Duration
	Observer      WarehouseObserver
	Audit         *audit.Trail
}

// WarehouseManager owns the tenant's warehouse bundle and its OAuth
// application registration.
type WarehouseManager struct {
	store         domain.CredentialStore
	cipher        domain.FieldCipher
	verifier      domain.ConnectionVerifier
	coordinator   *oauth.Coordinator
	apps          *oauth.AppRegistry
	tokens        oauth.TokenClient
	verifyTimeout time.Duration
	observer      WarehouseObserver
	audit         *audit.Trail
	now           func() time.Time
}

func NewWarehouseManager(deps WarehouseManagerDependencies) *WarehouseManager {
	timeout := deps.VerifyTimeout
	if timeout <= 0 {
		timeout = DefaultVerifyTimeout
	}

	return &WarehouseManager{
		store:         deps.Store,
		cipher:        deps.Cipher,
		verifier:      deps.Verifier,
		coordinator:   deps.Coordinator,
		apps:          deps.Apps,
		tokens:        deps.Tokens,
		verifyTimeout: timeout,
		observer:      deps.Observer,
		audit:         deps.Audit,
		now:           time.Now,
	}
}

// Save merges the submitted configuration into the warehouse bundle. Blank
// secrets keep the stored ones.
func (m *WarehouseManager) Save(ctx context.Context, tenantID string, config WarehouseConfig) error {
	method, err := domain.ParseAuthMethod(config.AuthMethod)
	if err != nil {
		return err
	}

	err = m.save(ctx, tenantID, method, config.Fields)

	m.audit.Record(ctx, audit.Entry{
		TenantID: tenantID,
		Action:   domain.AuditActionSaveWarehouseConfig,
		Target:   audit.Target(tenantID, domain.IntegrationType_Snowflake),
		Err:      err,
		Metadata: map[string]string{"authMethod": string(method)},
	})

	return err
}

func (m *WarehouseManager) save(ctx context.Context, tenantID string, method domain.AuthMethod, fields map[string]string) error {
	submitted := make(map[string]string, len(fields))
	for _, name := range warehouseFields {
		value, ok := fields[name]
		if !ok {
			continue
		}

		if name != domain.FieldPrivateKey && name != domain.FieldPassword && name != domain.FieldPassphrase {
			value = strings.TrimSpace(value)
		}

		if value != "" {
			submitted[name] = value
		}
	}

	existing, err := m.store.Get(ctx, tenantID, domain.IntegrationType_Snowflake)
	if err != nil && !errors.Is(err, domain.ErrCredentialNotFound) {
		return fmt.Errorf("failed to load warehouse config: %w", err)
	}

	merged := domain.MergeFields(existing.Fields, submitted)

	var missing []string
	for _, name := range authmethod.RequiredFields(method) {
		if merged[name] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &domain.IncompleteCredentialsError{Missing: missing}
	}

	sealed, err := cipher.SealFields(m.cipher, submitted, authmethod.AllSensitiveFields())
	if err != nil {
		return err
	}
	sealed[domain.FieldAuthMethod] = string(method)

	if err := m.store.Upsert(ctx, tenantID, domain.IntegrationType_Snowflake, sealed); err != nil {
		return fmt.Errorf("failed to save warehouse config: %w", err)
	}

	log.Info().
		Str("tenant_id", tenantID).
		Str("auth_method", string(method)).
		Msg("Saved warehouse config")

	return nil
}

// Status verifies the stored warehouse credentials, refreshing an expired
// OAuth access token once if possible.
func (m *WarehouseManager) Status(ctx context.Context, tenantID string) (WarehouseStatus, error) {
	start := m.now()

	status, err := m.status(ctx, tenantID)
	if err == nil && m.observer != nil {
		m.observer.ObserveWarehouseStatus(status.Status, m.now().Sub(start))
	}

	return status, err
}

func (m *WarehouseManager) status(ctx context.Context, tenantID string) (WarehouseStatus, error) {
	bundle, err := m.store.Get(ctx, tenantID, domain.IntegrationType_Snowflake)
	if errors.Is(err, domain.ErrCredentialNotFound) {
		return WarehouseStatus{Status: WarehouseStatusNotConfigured, Message: "Warehouse is not configured"}, nil
	}
	if err != nil {
		return WarehouseStatus{}, fmt.Errorf("failed to load warehouse config: %w", err)
	}

	// SaveOAuthApp stores coordinates before the callback records a method.
	if bundle.Value(domain.FieldAuthMethod) == "" {
		return WarehouseStatus{Status: WarehouseStatusNotConfigured, Message: "Warehouse authorization has not been completed"}, nil
	}

	method, err := domain.ParseAuthMethod(bundle.Value(domain.FieldAuthMethod))
	if err != nil {
		return WarehouseStatus{}, err
	}

	status := WarehouseStatus{AuthMethod: method}

	fields, err := cipher.OpenFields(m.cipher, bundle.Fields, authmethod.AllSensitiveFields())
	if err != nil {
		log.Warn().Err(err).Str("tenant_id", tenantID).Msg("Failed to decrypt warehouse config")

		status.Status = WarehouseStatusDecryptionFailed
		status.Message = "Stored credentials could not be decrypted"
		return status, nil
	}

	outcome, err := m.coordinator.Verify(ctx, oauth.VerifyParams{
		TenantID:      tenantID,
		IntegrationID: domain.IntegrationType_Snowflake,
		Method:        method,
		Fields:        fields,
		Timeout:       m.verifyTimeout,
	})
	status.Refreshed = outcome.Refreshed

	switch {
	case errors.Is(err, domain.ErrIncompleteCredentials), errors.Is(err, domain.ErrInvalidKeyMaterial):
		status.Status = WarehouseStatusInvalidCredentials
		status.Message = "Stored credentials are incomplete"
		return status, nil
	case errors.Is(err, domain.ErrOAuthAppNotConfigured):
		status.Status = WarehouseStatusOAuthAppNotConfigured
		status.Message = "Credentials have expired and no OAuth application is configured"
		return status, nil
	case errors.Is(err, domain.ErrRefreshFailed):
		log.Warn().Err(err).Str("tenant_id", tenantID).Msg("Warehouse token refresh failed")

		status.Status = WarehouseStatusRefreshFailed
		status.Message = "Credentials have expired and could not be refreshed"
		return status, nil
	case err != nil:
		return status, err
	}

	status.Status = string(outcome.Result.Kind)
	status.Connected = outcome.Result.Ok()
	status.Message = outcome.Result.UserMessage()

	return status, nil
}

// Test verifies unsaved credentials. No refresh is attempted.
func (m *WarehouseManager) Test(ctx context.Context, config WarehouseConfig) connectors.TestResult {
	method, err := domain.ParseAuthMethod(config.AuthMethod)
	if err != nil {
		return connectors.TestResult{Message: fmt.Sprintf("Unsupported auth method %q", config.AuthMethod)}
	}

	descriptor, err := authmethod.Describe(method, config.Fields)
	if err != nil {
		var incomplete *domain.IncompleteCredentialsError
		if errors.As(err, &incomplete) {
			return connectors.TestResult{Message: fmt.Sprintf("Missing required fields: %s", strings.Join(incomplete.Missing, ", "))}
		}
		return connectors.TestResult{Message: "Private key could not be read"}
	}

	result := m.verifier.Verify(ctx, descriptor, m.verifyTimeout)

	return connectors.TestResult{Success: result.Ok(), Message: result.UserMessage()}
}

func (m *WarehouseManager) Delete(ctx context.Context, tenantID string) error {
	err := m.store.Delete(ctx, tenantID, domain.IntegrationType_Snowflake)
	if err != nil {
		err = fmt.Errorf("failed to delete warehouse config: %w", err)
	} else {
		log.Info().Str("tenant_id", tenantID).Msg("Deleted warehouse config")
	}

	m.audit.Record(ctx, audit.Entry{
		TenantID: tenantID,
		Action:   domain.AuditActionDeleteWarehouseConfig,
		Target:   audit.Target(tenantID, domain.IntegrationType_Snowflake),
		Err:      err,
	})

	return err
}

// SaveOAuthApp stores the OAuth application and the account coordinates the
// authorized session will use.
func (m *WarehouseManager) SaveOAuthApp(ctx context.Context, tenantID string, config OAuthAppConfig) error {
	scope := strings.TrimSpace(config.Scope)
	if scope == "" {
		scope = oauth.DefaultScope(snowflake.AccountURL(config.Host))
	}

	err := m.apps.Save(ctx, tenantID, domain.OAuthApp{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		AuthURL:      config.AuthURL,
		TokenURL:     config.TokenURL,
		RedirectURI:  config.RedirectURI,
		Scope:        scope,
	})
	if err != nil {
		return err
	}

	coordinates := nonBlank(map[string]string{
		domain.FieldHost:      config.Host,
		domain.FieldUsername:  config.Username,
		domain.FieldRole:      config.Role,
		domain.FieldWarehouse: config.Warehouse,
	})

	if err := m.store.Upsert(ctx, tenantID, domain.IntegrationType_Snowflake, coordinates); err != nil {
		return fmt.Errorf("failed to save warehouse coordinates: %w", err)
	}

	return nil
}

// AuthorizeURL is where the tenant's admin grants the OAuth application
// access. The tenant id travels as the state parameter.
func (m *WarehouseManager) AuthorizeURL(ctx context.Context, tenantID string) (string, error) {
	app, err := m.apps.Load(ctx, tenantID)
	if err != nil {
		return "", err
	}

	return oauth.AuthCodeURL(app, tenantID), nil
}

// Callback exchanges an authorization code and switches the warehouse to the
// oauth method.
func (m *WarehouseManager) Callback(ctx context.Context, tenantID string, code string) error {
	err := m.callback(ctx, tenantID, code)

	m.audit.Record(ctx, audit.Entry{
		TenantID: tenantID,
		Action:   domain.AuditActionConnectWarehouseOAuth,
		Target:   audit.Target(tenantID, domain.IntegrationType_Snowflake),
		Err:      err,
	})

	return err
}

func (m *WarehouseManager) callback(ctx context.Context, tenantID string, code string) error {
	app, err := m.apps.Load(ctx, tenantID)
	if err != nil {
		return err
	}

	tokens, err := m.tokens.Exchange(ctx, app, code)
	if err != nil {
		return err
	}

	if tokens.AccessToken == "" {
		return &domain.RefreshError{ProviderMessage: "no access_token returned"}
	}

	if tokens.Expiry.IsZero() {
		tokens.Expiry = m.now().Add(defaultTokenLifetime)
	}

	update, err := oauth.TokenFields(m.cipher, tokens)
	if err != nil {
		return err
	}
	update[domain.FieldAuthMethod] = string(domain.AuthMethodOAuth2)

	if err := m.store.Upsert(ctx, tenantID, domain.IntegrationType_Snowflake, update); err != nil {
		return fmt.Errorf("failed to save oauth tokens: %w", err)
	}

	log.Info().Str("tenant_id", tenantID).Msg("Warehouse OAuth connection established")

	return nil
}

func nonBlank(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))

	for k, v := range fields {
		if v = strings.TrimSpace(v); v != "" {
			out[k] = v
		}
	}

	return out
}
