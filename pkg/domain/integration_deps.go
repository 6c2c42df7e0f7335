package domain

import (
	"net/http"
	"time"
)

const DefaultProbeTimeout = 10 * time.Second

// IntegrationDeps is handed to every source connector constructor.
type IntegrationDeps struct {
	HTTPClient *http.Client
	// BaseURL overrides the provider's public API root.
	BaseURL string
}

// Client returns the configured HTTP client or a default one bounded by
// timeout.
func (d IntegrationDeps) Client() *http.Client {
	if d.HTTPClient != nil {
		return d.HTTPClient
	}

	return &http.Client{Timeout: DefaultProbeTimeout}
}

// BaseURLOr returns BaseURL when set, otherwise fallback.
func (d IntegrationDeps) BaseURLOr(fallback string) string {
	if d.BaseURL != "" {
		return d.BaseURL
	}

	return fallback
}
