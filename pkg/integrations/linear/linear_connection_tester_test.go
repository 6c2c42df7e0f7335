package linear

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flowbaker/vault/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearConnectionTester(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected bool
	}{
		{name: "viewer", status: http.StatusOK, body: `{"data":{"viewer":{"id":"u1","name":"Ada"}}}`, expected: true},
		{name: "graphql error", status: http.StatusOK, body: `{"errors":[{"message":"Authentication required"}]}`, expected: false},
		{name: "bad request", status: http.StatusBadRequest, body: `{"errors":[{"message":"invalid token"}]}`, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/graphql", r.URL.Path)
				assert.Equal(t, "Bearer lin_api", r.Header.Get("Authorization"))

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			tester := NewLinearConnectionTester(domain.IntegrationDeps{BaseURL: server.URL})

			ok, err := tester.TestConnection(context.Background(), domain.TestConnectionParams{
				Credentials: map[string]string{FieldAccessToken: "lin_api"},
			})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ok)
		})
	}
}
