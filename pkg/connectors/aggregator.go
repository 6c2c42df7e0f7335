// Package connectors reports, for one tenant, whether each source connector's
// stored credentials still authenticate.
package connectors

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/flowbaker/vault/pkg/audit"
	"github.com/flowbaker/vault/pkg/cipher"
	"github.com/flowbaker/vault/pkg/domain"
	"github.com/rs/zerolog/log"
)

const DefaultProbeTimeout = 10 * time.Second

// Observer is told about every status the aggregator derives.
type Observer interface {
	ObserveConnectorStatus(integrationID domain.IntegrationType, status domain.ConnectorStatus)
}

type noopObserver struct{}

func (noopObserver) ObserveConnectorStatus(domain.IntegrationType, domain.ConnectorStatus) {}

type AggregatorDependencies struct {
	Selector     domain.IntegrationSelector
	Store        domain.CredentialStore
	Cipher       domain.FieldCipher
	ProbeTimeout time.Duration
	Observer     Observer
	Audit        *audit.Trail
}

type Aggregator struct {
	selector     domain.IntegrationSelector
	store        domain.CredentialStore
	cipher       domain.FieldCipher
	probeTimeout time.Duration
	observer     Observer
	audit        *audit.Trail
}

func NewAggregator(deps AggregatorDependencies) *Aggregator {
	timeout := deps.ProbeTimeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}

	observer := deps.Observer
	if observer == nil {
		observer = noopObserver{}
	}

	return &Aggregator{
		selector:     deps.Selector,
		store:        deps.Store,
		cipher:       deps.Cipher,
		probeTimeout: timeout,
		observer:     observer,
		audit:        deps.Audit,
	}
}

// StatusesForTenant checks every registered connector concurrently. The result
// always holds one entry per connector, whatever happens to individual probes.
func (a *Aggregator) StatusesForTenant(ctx context.Context, tenantID string) map[domain.IntegrationType]domain.ConnectorStatus {
	connectors := a.selector.Connectors()
	statuses := make(map[domain.IntegrationType]domain.ConnectorStatus, len(connectors))

	bundles, err := a.store.List(ctx, tenantID)
	if err != nil {
		log.Error().Err(err).Str("tenant_id", tenantID).Msg("Failed to list credentials")

		for _, connector := range connectors {
			statuses[connector.Definition().Type] = a.record(connector.Definition().Type, domain.ConnectorStatusFetchFailed)
		}

		return statuses
	}

	bundlesByType := make(map[domain.IntegrationType]domain.CredentialBundle, len(bundles))
	for _, bundle := range bundles {
		bundlesByType[bundle.IntegrationID] = bundle
	}

	results := make([]domain.ConnectorStatus, len(connectors))

	var wg sync.WaitGroup
	for i, connector := range connectors {
		wg.Add(1)

		go func(i int, connector domain.SourceConnector) {
			defer wg.Done()

			var bundle *domain.CredentialBundle
			if b, ok := bundlesByType[connector.Definition().Type]; ok {
				bundle = &b
			}

			results[i] = a.check(ctx, tenantID, connector, bundle)
		}(i, connector)
	}
	wg.Wait()

	for i, connector := range connectors {
		statuses[connector.Definition().Type] = a.record(connector.Definition().Type, results[i])
	}

	return statuses
}

func (a *Aggregator) StatusForIntegration(ctx context.Context, tenantID string, integrationID domain.IntegrationType) domain.ConnectorStatus {
	connector, err := a.connector(ctx, integrationID)
	if err != nil {
		return a.record(integrationID, domain.ConnectorStatusUnknownConnector)
	}

	bundle, err := a.store.Get(ctx, tenantID, integrationID)
	switch {
	case errors.Is(err, domain.ErrCredentialNotFound):
		return a.record(integrationID, domain.ConnectorStatusNotConfigured)
	case err != nil:
		log.Error().Err(err).
			Str("tenant_id", tenantID).
			Str("integration_id", string(integrationID)).
			Msg("Failed to load credentials")
		return a.record(integrationID, domain.ConnectorStatusFetchFailed)
	}

	return a.record(integrationID, a.check(ctx, tenantID, connector, &bundle))
}

type TestResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// TestConnection probes a connector with credentials that have not been saved.
func (a *Aggregator) TestConnection(ctx context.Context, integrationID domain.IntegrationType, fields map[string]string) TestResult {
	connector, err := a.connector(ctx, integrationID)
	if err != nil {
		return TestResult{Message: fmt.Sprintf("Unknown connector %q", integrationID)}
	}

	definition := connector.Definition()

	if missing := missingFields(definition, fields); len(missing) > 0 {
		return TestResult{Message: fmt.Sprintf("Missing required fields: %s", strings.Join(missing, ", "))}
	}

	accepted, err := a.probe(ctx, connector, domain.TestConnectionParams{Credentials: fields})
	switch {
	case err != nil:
		log.Warn().Err(err).Str("integration_id", string(integrationID)).Msg("Connection test failed")
		return TestResult{Message: fmt.Sprintf("Could not reach %s", definition.Name)}
	case !accepted:
		return TestResult{Message: fmt.Sprintf("%s rejected the credentials", definition.Name)}
	}

	return TestResult{Success: true, Message: "Connection successful"}
}

// SaveCredentials encrypts the connector's sensitive fields and merges the
// submission into the stored bundle. Unknown fields are dropped.
func (a *Aggregator) SaveCredentials(ctx context.Context, tenantID string, integrationID domain.IntegrationType, fields map[string]string) error {
	connector, err := a.connector(ctx, integrationID)
	if err != nil {
		return err
	}

	saved, err := a.saveCredentials(ctx, tenantID, connector.Definition(), fields)

	a.audit.Record(ctx, audit.Entry{
		TenantID: tenantID,
		Action:   domain.AuditActionSaveConnectorConfig,
		Target:   audit.Target(tenantID, integrationID),
		Err:      err,
		Metadata: fieldNames(saved),
	})

	return err
}

func (a *Aggregator) saveCredentials(ctx context.Context, tenantID string, definition domain.ConnectorDefinition, fields map[string]string) (map[string]string, error) {
	integrationID := definition.Type

	submitted := make(map[string]string, len(definition.RequiredFields))
	for name, value := range fields {
		if !isDeclared(definition, name) {
			log.Debug().Str("field", name).Str("integration_id", string(integrationID)).Msg("Dropping undeclared field")
			continue
		}

		submitted[name] = strings.TrimSpace(value)
	}

	existing, err := a.store.Get(ctx, tenantID, integrationID)
	if err != nil && !errors.Is(err, domain.ErrCredentialNotFound) {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	// Blank values keep what is already stored.
	submitted = nonEmpty(submitted)

	merged := domain.MergeFields(existing.Fields, submitted)
	if missing := missingFields(definition, merged); len(missing) > 0 {
		return submitted, &domain.IncompleteCredentialsError{Missing: missing}
	}

	sealed, err := cipher.SealFields(a.cipher, submitted, definition.SensitiveFields)
	if err != nil {
		return submitted, err
	}

	if err := a.store.Upsert(ctx, tenantID, integrationID, sealed); err != nil {
		return submitted, fmt.Errorf("failed to save credentials: %w", err)
	}

	log.Info().Str("tenant_id", tenantID).Str("integration_id", string(integrationID)).Msg("Saved connector credentials")

	return submitted, nil
}

func (a *Aggregator) DeleteCredentials(ctx context.Context, tenantID string, integrationID domain.IntegrationType) error {
	if _, err := a.connector(ctx, integrationID); err != nil {
		return err
	}

	err := a.store.Delete(ctx, tenantID, integrationID)
	if err != nil {
		err = fmt.Errorf("failed to delete credentials: %w", err)
	}

	a.audit.Record(ctx, audit.Entry{
		TenantID: tenantID,
		Action:   domain.AuditActionDeleteConnectorConfig,
		Target:   audit.Target(tenantID, integrationID),
		Err:      err,
	})

	return err
}

func (a *Aggregator) connector(ctx context.Context, integrationID domain.IntegrationType) (domain.SourceConnector, error) {
	if integrationID.IsReserved() {
		return nil, fmt.Errorf("%w: %s", domain.ErrIntegrationNotFound, integrationID)
	}

	return a.selector.SelectConnector(ctx, domain.SelectIntegrationParams{IntegrationType: integrationID})
}

func (a *Aggregator) check(ctx context.Context, tenantID string, connector domain.SourceConnector, bundle *domain.CredentialBundle) (status domain.ConnectorStatus) {
	definition := connector.Definition()

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("integration_id", string(definition.Type)).
				Msg("Connector check panicked")
			status = domain.ConnectorStatusFetchFailed
		}
	}()

	if bundle == nil {
		return domain.ConnectorStatusNotConfigured
	}

	credentials, status := openCredentials(a.cipher, definition, bundle.Fields)
	if status != "" {
		return status
	}

	accepted, err := a.probe(ctx, connector, domain.TestConnectionParams{
		TenantID:    tenantID,
		Credentials: credentials,
	})
	switch {
	case err != nil:
		log.Warn().Err(err).
			Str("tenant_id", tenantID).
			Str("integration_id", string(definition.Type)).
			Msg("Connector probe failed")
		return domain.ConnectorStatusFetchFailed
	case !accepted:
		return domain.ConnectorStatusNotConnected
	}

	return domain.ConnectorStatusConnected
}

type probeResult struct {
	accepted bool
	err      error
}

// probe runs the connector under the per-probe timeout. A probe that ignores
// its context is abandoned and finishes in the background.
func (a *Aggregator) probe(ctx context.Context, connector domain.SourceConnector, params domain.TestConnectionParams) (bool, error) {
	probeCtx, cancel := context.WithTimeout(ctx, a.probeTimeout)
	defer cancel()

	done := make(chan probeResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Connector probe panicked")
				done <- probeResult{err: fmt.Errorf("probe panicked: %v", r)}
			}
		}()

		accepted, err := connector.TestConnection(probeCtx, params)
		done <- probeResult{accepted: accepted, err: err}
	}()

	select {
	case result := <-done:
		return result.accepted, result.err
	case <-probeCtx.Done():
		return false, fmt.Errorf("probe abandoned: %w", probeCtx.Err())
	}
}

func (a *Aggregator) record(integrationID domain.IntegrationType, status domain.ConnectorStatus) domain.ConnectorStatus {
	a.observer.ObserveConnectorStatus(integrationID, status)
	return status
}

// openCredentials decrypts a stored bundle. A non-empty status means the
// bundle cannot be probed.
func openCredentials(fc domain.FieldCipher, definition domain.ConnectorDefinition, fields map[string]string) (map[string]string, domain.ConnectorStatus) {
	for _, name := range definition.RequiredFields {
		if _, ok := fields[name]; !ok {
			return nil, domain.ConnectorStatusInvalidCredentials
		}
	}

	opened, err := cipher.OpenFields(fc, fields, definition.SensitiveFields)
	if err != nil {
		log.Warn().Err(err).Str("integration_id", string(definition.Type)).Msg("Failed to decrypt credentials")
		return nil, domain.ConnectorStatusDecryptionFailed
	}

	if len(missingFields(definition, opened)) > 0 {
		return nil, domain.ConnectorStatusInvalidCredentials
	}

	return opened, ""
}

func missingFields(definition domain.ConnectorDefinition, fields map[string]string) []string {
	var missing []string

	for _, name := range definition.RequiredFields {
		if strings.TrimSpace(fields[name]) == "" {
			missing = append(missing, name)
		}
	}

	return missing
}

func isDeclared(definition domain.ConnectorDefinition, field string) bool {
	for _, name := range definition.RequiredFields {
		if name == field {
			return true
		}
	}

	return definition.IsSensitive(field)
}

func nonEmpty(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))

	for k, v := range fields {
		if v != "" {
			out[k] = v
		}
	}

	return out
}

// fieldNames names the submitted fields for the audit trail. Values are never
// recorded.
func fieldNames(fields map[string]string) map[string]string {
	if len(fields) == 0 {
		return nil
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	return map[string]string{"fields": strings.Join(names, ",")}
}
