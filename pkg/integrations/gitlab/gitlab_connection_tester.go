package gitlab

import (
	"context"
	"errors"
	"fmt"

	"github.com/flowbaker/vault/pkg/domain"
	"github.com/rs/zerolog/log"
	"github.com/xanzy/go-gitlab"
)

const FieldAccessToken = "accessToken"

var Definition = domain.ConnectorDefinition{
	Type:            domain.IntegrationType_Gitlab,
	Name:            "GitLab",
	RequiredFields:  []string{FieldAccessToken},
	SensitiveFields: []string{FieldAccessToken},
}

type GitLabConnectionTester struct {
	deps domain.IntegrationDeps
}

func NewGitLabConnectionTester(deps domain.IntegrationDeps) domain.SourceConnector {
	return &GitLabConnectionTester{deps: deps}
}

func (c *GitLabConnectionTester) Definition() domain.ConnectorDefinition {
	return Definition
}

func (c *GitLabConnectionTester) TestConnection(ctx context.Context, params domain.TestConnectionParams) (bool, error) {
	opts := []gitlab.ClientOptionFunc{
		gitlab.WithHTTPClient(c.deps.Client()),
		// Retries are a caller policy.
		gitlab.WithCustomRetryMax(0),
	}
	if c.deps.BaseURL != "" {
		opts = append(opts, gitlab.WithBaseURL(c.deps.BaseURL))
	}

	client, err := gitlab.NewOAuthClient(params.Credentials[FieldAccessToken], opts...)
	if err != nil {
		return false, fmt.Errorf("failed to create GitLab client: %w", err)
	}

	user, _, err := client.Users.CurrentUser(gitlab.WithContext(ctx))
	if err != nil {
		var errorResponse *gitlab.ErrorResponse
		if errors.As(err, &errorResponse) && errorResponse.Response != nil {
			log.Warn().
				Int("status_code", errorResponse.Response.StatusCode).
				Str("message", errorResponse.Message).
				Msg("GitLab rejected credentials")
			return false, nil
		}

		return false, fmt.Errorf("failed to reach GitLab: %w", err)
	}

	log.Debug().Str("user", user.Username).Msg("Successfully connected to GitLab")

	return true, nil
}
