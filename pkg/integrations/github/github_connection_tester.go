package githubintegration

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/flowbaker/vault/pkg/domain"
	"github.com/google/go-github/v57/github"
	"github.com/rs/zerolog/log"
)

const FieldAccessToken = "accessToken"

var Definition = domain.ConnectorDefinition{
	Type:            domain.IntegrationType_Github,
	Name:            "GitHub",
	RequiredFields:  []string{FieldAccessToken},
	SensitiveFields: []string{FieldAccessToken},
}

type GitHubConnectionTester struct {
	deps domain.IntegrationDeps
}

func NewGitHubConnectionTester(deps domain.IntegrationDeps) domain.SourceConnector {
	return &GitHubConnectionTester{deps: deps}
}

func (c *GitHubConnectionTester) Definition() domain.ConnectorDefinition {
	return Definition
}

func (c *GitHubConnectionTester) client(accessToken string) (*github.Client, error) {
	client := github.NewClient(c.deps.Client()).WithAuthToken(accessToken)

	if c.deps.BaseURL != "" {
		baseURL, err := url.Parse(strings.TrimSuffix(c.deps.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub base URL: %w", err)
		}
		client.BaseURL = baseURL
	}

	return client, nil
}

func (c *GitHubConnectionTester) TestConnection(ctx context.Context, params domain.TestConnectionParams) (bool, error) {
	client, err := c.client(params.Credentials[FieldAccessToken])
	if err != nil {
		return false, err
	}

	user, _, err := client.Users.Get(ctx, "")
	if err != nil {
		var errorResponse *github.ErrorResponse
		if errors.As(err, &errorResponse) && errorResponse.Response != nil {
			log.Warn().
				Int("status_code", errorResponse.Response.StatusCode).
				Str("message", errorResponse.Message).
				Msg("GitHub rejected credentials")
			return false, nil
		}

		return false, fmt.Errorf("failed to reach GitHub: %w", err)
	}

	log.Debug().Str("user", user.GetLogin()).Msg("Successfully connected to GitHub")

	return true, nil
}
