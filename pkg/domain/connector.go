package domain

import (
	"context"
	"slices"
)

type ConnectorStatus string

const (
	ConnectorStatusConnected          ConnectorStatus = "connected"
	ConnectorStatusNotConfigured      ConnectorStatus = "not_configured"
	ConnectorStatusNotConnected       ConnectorStatus = "not_connected"
	ConnectorStatusInvalidCredentials ConnectorStatus = "invalid_credentials"
	ConnectorStatusDecryptionFailed   ConnectorStatus = "decryption_failed"
	ConnectorStatusFetchFailed        ConnectorStatus = "fetch_failed"
	ConnectorStatusUnknownConnector   ConnectorStatus = "unknown_connector"
)

// ConnectorDefinition is the static declaration of a source connector: which
// fields it needs and which of them are stored encrypted.
type ConnectorDefinition struct {
	Type            IntegrationType
	Name            string
	RequiredFields  []string
	SensitiveFields []string
}

func (d ConnectorDefinition) IsSensitive(field string) bool {
	return slices.Contains(d.SensitiveFields, field)
}

type TestConnectionParams struct {
	TenantID    string
	Credentials map[string]string
}

// SourceConnector probes a third-party source with decrypted credentials.
// TestConnection returns true when the source accepted the credentials, false
// with a nil error when it answered but rejected them, and an error when the
// source could not be reached or answered unintelligibly.
type SourceConnector interface {
	Definition() ConnectorDefinition
	TestConnection(ctx context.Context, params TestConnectionParams) (bool, error)
}
