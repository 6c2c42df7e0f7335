package initialization

import (
	githubintegration "github.com/flowbaker/vault/pkg/integrations/github"
	"github.com/flowbaker/vault/pkg/integrations/gitlab"
	"github.com/flowbaker/vault/pkg/integrations/linear"
	"github.com/flowbaker/vault/pkg/integrations/nclarity"
	notionintegration "github.com/flowbaker/vault/pkg/integrations/notion"
	"github.com/flowbaker/vault/pkg/integrations/sageintacct"
	"github.com/flowbaker/vault/pkg/integrations/stripe"

	"github.com/flowbaker/vault/pkg/domain"

	"github.com/rs/zerolog/log"
)

type connectorRegisterParams struct {
	IntegrationType     domain.IntegrationType
	NewConnectionTester func(deps domain.IntegrationDeps) domain.SourceConnector
}

var connectorRegisterParamsList = []connectorRegisterParams{
	{
		IntegrationType:     domain.IntegrationType_NClarity,
		NewConnectionTester: nclarity.NewNClarityConnectionTester,
	},
	{
		IntegrationType:     domain.IntegrationType_SageIntacct,
		NewConnectionTester: sageintacct.NewSageIntacctConnectionTester,
	},
	{
		IntegrationType:     domain.IntegrationType_Stripe,
		NewConnectionTester: stripe.NewStripeConnectionTester,
	},
	{
		IntegrationType:     domain.IntegrationType_Github,
		NewConnectionTester: githubintegration.NewGitHubConnectionTester,
	},
	{
		IntegrationType:     domain.IntegrationType_Gitlab,
		NewConnectionTester: gitlab.NewGitLabConnectionTester,
	},
	{
		IntegrationType:     domain.IntegrationType_Linear,
		NewConnectionTester: linear.NewLinearConnectionTester,
	},
	{
		IntegrationType:     domain.IntegrationType_Notion,
		NewConnectionTester: notionintegration.NewNotionConnectionTester,
	},
}

// RegisterConnectors adds every source connector to selector. Connectors share
// deps, so one HTTP client bounds every probe.
func RegisterConnectors(selector domain.IntegrationSelector, deps domain.IntegrationDeps) {
	for _, params := range connectorRegisterParamsList {
		log.Debug().Msgf("Registering connection tester for %s", params.IntegrationType)

		selector.RegisterConnector(params.NewConnectionTester(deps))
	}
}
