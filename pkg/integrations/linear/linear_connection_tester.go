package linear

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/flowbaker/vault/pkg/domain"
	"github.com/flowbaker/vault/pkg/integrations/probe"
	"github.com/rs/zerolog/log"
)

const (
	defaultBaseURL = "https://api.linear.app"

	FieldAccessToken = "accessToken"
)

const viewerQuery = `
query Viewer {
	viewer {
		id
		name
	}
}`

var Definition = domain.ConnectorDefinition{
	Type:            domain.IntegrationType_Linear,
	Name:            "Linear",
	RequiredFields:  []string{FieldAccessToken},
	SensitiveFields: []string{FieldAccessToken},
}

type Viewer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type GraphQLError struct {
	Message string `json:"message"`
}

type ViewerResponse struct {
	Data struct {
		Viewer Viewer `json:"viewer"`
	} `json:"data"`
	Errors []GraphQLError `json:"errors,omitempty"`
}

type LinearConnectionTester struct {
	client  *http.Client
	baseURL string
}

func NewLinearConnectionTester(deps domain.IntegrationDeps) domain.SourceConnector {
	return &LinearConnectionTester{
		client:  deps.Client(),
		baseURL: strings.TrimSuffix(deps.BaseURLOr(defaultBaseURL), "/"),
	}
}

func (c *LinearConnectionTester) Definition() domain.ConnectorDefinition {
	return Definition
}

func (c *LinearConnectionTester) TestConnection(ctx context.Context, params domain.TestConnectionParams) (bool, error) {
	jsonBody, err := json.Marshal(map[string]any{"query": viewerQuery})
	if err != nil {
		return false, fmt.Errorf("failed to marshal GraphQL request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/graphql", bytes.NewReader(jsonBody))
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+params.Credentials[FieldAccessToken])
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to make request to Linear API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return probe.Accepted(string(domain.IntegrationType_Linear), resp), nil
	}

	var response ViewerResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return false, fmt.Errorf("failed to decode Linear API response: %w", err)
	}

	// Linear reports some auth failures as GraphQL errors on a 200.
	if len(response.Errors) > 0 || response.Data.Viewer.ID == "" {
		log.Warn().Int("errors", len(response.Errors)).Msg("Linear API did not return the viewer")
		return false, nil
	}

	return true, nil
}
