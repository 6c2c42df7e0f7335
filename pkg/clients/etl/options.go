package etl

import (
	"net/http"
	"time"
)

// ClientOption represents an option for configuring the ETL client
type ClientOption func(*ClientConfig)

// ClientConfig holds the configuration for the ETL client
type ClientConfig struct {
	BaseURL        string
	Timeout        time.Duration
	RetryAttempts  int
	RetryDelay     time.Duration
	PollInterval   time.Duration
	RunTimeout     time.Duration
	DefaultHeaders map[string]string
	HTTPClient     *http.Client
	UserAgent      string
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		Timeout:       30 * time.Second,
		RetryAttempts: 2,
		RetryDelay:    1 * time.Second,
		PollInterval:  5 * time.Second,
		RunTimeout:    30 * time.Minute,
		DefaultHeaders: map[string]string{
			"Content-Type": "application/json",
		},
		UserAgent: "flowbaker-vault/1.0.0",
	}
}

// WithBaseURL sets the base URL of the ETL service
func WithBaseURL(baseURL string) ClientOption {
	return func(c *ClientConfig) {
		c.BaseURL = baseURL
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.Timeout = timeout
	}
}

// WithRetry sets the retry configuration for server errors
func WithRetry(attempts int, delay time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.RetryAttempts = attempts
		c.RetryDelay = delay
	}
}

// WithPolling sets how often a run is polled and how long to wait for it
func WithPolling(interval, runTimeout time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.PollInterval = interval
		c.RunTimeout = runTimeout
	}
}

// WithHeader adds a default header to all requests
func WithHeader(key, value string) ClientOption {
	return func(c *ClientConfig) {
		if c.DefaultHeaders == nil {
			c.DefaultHeaders = make(map[string]string)
		}
		c.DefaultHeaders[key] = value
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *ClientConfig) {
		c.HTTPClient = httpClient
	}
}

// WithUserAgent sets a custom user agent
func WithUserAgent(userAgent string) ClientOption {
	return func(c *ClientConfig) {
		c.UserAgent = userAgent
	}
}
