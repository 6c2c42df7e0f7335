package nclarity

import (
	"context"
	"net/http"
	"strings"

	"github.com/flowbaker/vault/pkg/domain"
	"github.com/flowbaker/vault/pkg/integrations/probe"
)

const (
	defaultBaseURL = "https://api.nclarity.com"
	FieldAPIKey    = "apiKey"
)

var Definition = domain.ConnectorDefinition{
	Type:            domain.IntegrationType_NClarity,
	Name:            "nClarity",
	RequiredFields:  []string{FieldAPIKey},
	SensitiveFields: []string{FieldAPIKey},
}

type NClarityConnectionTester struct {
	client  *http.Client
	baseURL string
}

func NewNClarityConnectionTester(deps domain.IntegrationDeps) domain.SourceConnector {
	return &NClarityConnectionTester{
		client:  deps.Client(),
		baseURL: strings.TrimSuffix(deps.BaseURLOr(defaultBaseURL), "/"),
	}
}

func (c *NClarityConnectionTester) Definition() domain.ConnectorDefinition {
	return Definition
}

func (c *NClarityConnectionTester) TestConnection(ctx context.Context, params domain.TestConnectionParams) (bool, error) {
	return probe.BearerGET(ctx, c.client, probe.Request{
		Source: string(domain.IntegrationType_NClarity),
		URL:    c.baseURL + "/v3/customers",
		Token:  params.Credentials[FieldAPIKey],
	})
}
