package stripe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flowbaker/vault/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripeConnectionTester(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected bool
	}{
		{
			name:     "balance returned",
			status:   http.StatusOK,
			body:     `{"object":"balance","available":[],"pending":[],"livemode":false}`,
			expected: true,
		},
		{
			name:     "invalid key",
			status:   http.StatusUnauthorized,
			body:     `{"error":{"type":"invalid_request_error","message":"Invalid API Key provided"}}`,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/balance", r.URL.Path)
				assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			tester := NewStripeConnectionTester(domain.IntegrationDeps{BaseURL: server.URL})

			ok, err := tester.TestConnection(context.Background(), domain.TestConnectionParams{
				Credentials: map[string]string{FieldSecretKey: "sk_test_123"},
			})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ok)
		})
	}
}
