package notionintegration

import (
	"context"
	"net/http"
	"strings"

	"github.com/flowbaker/vault/pkg/domain"
	"github.com/flowbaker/vault/pkg/integrations/probe"
)

const (
	defaultBaseURL   = "https://api.notion.com"
	notionAPIVersion = "2022-06-28"

	FieldAccessToken = "accessToken"
)

var Definition = domain.ConnectorDefinition{
	Type:            domain.IntegrationType_Notion,
	Name:            "Notion",
	RequiredFields:  []string{FieldAccessToken},
	SensitiveFields: []string{FieldAccessToken},
}

type NotionConnectionTester struct {
	client  *http.Client
	baseURL string
}

func NewNotionConnectionTester(deps domain.IntegrationDeps) domain.SourceConnector {
	return &NotionConnectionTester{
		client:  deps.Client(),
		baseURL: strings.TrimSuffix(deps.BaseURLOr(defaultBaseURL), "/"),
	}
}

func (c *NotionConnectionTester) Definition() domain.ConnectorDefinition {
	return Definition
}

func (c *NotionConnectionTester) TestConnection(ctx context.Context, params domain.TestConnectionParams) (bool, error) {
	return probe.BearerGET(ctx, c.client, probe.Request{
		Source: string(domain.IntegrationType_Notion),
		URL:    c.baseURL + "/v1/users/me",
		Token:  params.Credentials[FieldAccessToken],
		Header: map[string]string{"Notion-Version": notionAPIVersion},
	})
}
